package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Telemetry TelemetryConfig
	SmartCode SmartCodeConfig
	Resolver  ResolverConfig
	Attribute AttributeConfig
	Ledger    LedgerConfig
	Identity  IdentityConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. An empty Host disables Redis.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// Enabled reports whether a Redis host is configured
func (r RedisConfig) Enabled() bool {
	return r.Host != ""
}

// JWTConfig holds bearer token verification settings
type JWTConfig struct {
	Secret string
	Issuer string
	Leeway time.Duration
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	MaxBodySize    int64
	TrustedProxies []string
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	MetricsEnabled    bool
	MetricsInterval   time.Duration
	LogsEnabled       bool
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings (default: 200ms)
}

// SmartCodeConfig configures the smart code governor
type SmartCodeConfig struct {
	Mode        string // strict or advisory
	CatalogPath string // optional YAML catalog
}

// ResolverConfig configures entity resolution
type ResolverConfig struct {
	DefaultThreshold  float64
	Metric            string
	Thresholds        map[string]float64 // per entity type
	Metrics           map[string]string  // per entity type
	FuzzyDisabled     []string           // entity types with fuzzy matching off
	CandidatePageSize int
	MaxCandidates     int
}

// AttributeConfig configures the dynamic attribute store
type AttributeConfig struct {
	BulkChunkSize int
}

// LedgerConfig configures the transaction ledger engine
type LedgerConfig struct {
	BalanceTolerance float64
	MaxQueryLimit    int
	LockTTL          time.Duration // in-flight idempotency lock; Redis only
}

// IdentityConfig configures introspection hints
type IdentityConfig struct {
	HintTTL   time.Duration
	HintStore string // memory or redis
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with LEDGER_ prefix (e.g., LEDGER_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("LEDGER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret: v.GetString("jwt.secret"),
			Issuer: v.GetString("jwt.issuer"),
			Leeway: v.GetDuration("jwt.leeway"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			MaxBodySize:    v.GetInt64("http.max_body_size"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			MetricsEnabled:    v.GetBool("telemetry.metrics_enabled"),
			MetricsInterval:   v.GetDuration("telemetry.metrics_interval"),
			LogsEnabled:       v.GetBool("telemetry.logs_enabled"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),
		},
		SmartCode: SmartCodeConfig{
			Mode:        strings.ToLower(v.GetString("smartcode.mode")),
			CatalogPath: v.GetString("smartcode.catalog_path"),
		},
		Resolver: ResolverConfig{
			DefaultThreshold:  v.GetFloat64("resolver.default_threshold"),
			Metric:            v.GetString("resolver.metric"),
			Thresholds:        floatMap(v.GetStringMap("resolver.thresholds")),
			Metrics:           upperKeys(v.GetStringMapString("resolver.metrics")),
			FuzzyDisabled:     v.GetStringSlice("resolver.fuzzy_disabled"),
			CandidatePageSize: v.GetInt("resolver.candidate_page_size"),
			MaxCandidates:     v.GetInt("resolver.max_candidates"),
		},
		Attribute: AttributeConfig{
			BulkChunkSize: v.GetInt("attribute.bulk_chunk_size"),
		},
		Ledger: LedgerConfig{
			BalanceTolerance: v.GetFloat64("ledger.balance_tolerance"),
			MaxQueryLimit:    v.GetInt("ledger.max_query_limit"),
			LockTTL:          v.GetDuration("ledger.lock_ttl"),
		},
		Identity: IdentityConfig{
			HintTTL:   v.GetDuration("identity.hint_ttl"),
			HintStore: strings.ToLower(v.GetString("identity.hint_store")),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// setDefaults registers built-in defaults so env vars and the file can override them
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "ledgerbase")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "ledgerbase")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.conn_max_idle_time", 30)

	v.SetDefault("redis.port", 6379)

	v.SetDefault("jwt.issuer", "ledgerbase")
	v.SetDefault("jwt.leeway", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 15*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.max_header_bytes", 1<<20)
	v.SetDefault("http.max_body_size", 10<<20)

	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "ledgerbase")
	v.SetDefault("telemetry.metrics_interval", 60*time.Second)
	v.SetDefault("telemetry.db_slow_query_threshold", 200*time.Millisecond)

	v.SetDefault("smartcode.mode", "advisory")

	v.SetDefault("resolver.default_threshold", 0.92)
	v.SetDefault("resolver.metric", "levenshtein")
	v.SetDefault("resolver.candidate_page_size", 500)
	v.SetDefault("resolver.max_candidates", 10000)

	v.SetDefault("attribute.bulk_chunk_size", 200)

	v.SetDefault("ledger.balance_tolerance", 0.01)
	v.SetDefault("ledger.max_query_limit", 500)
	v.SetDefault("ledger.lock_ttl", 10*time.Second)

	v.SetDefault("identity.hint_ttl", 5*time.Minute)
	v.SetDefault("identity.hint_store", "memory")
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.SmartCode.Mode != "strict" && c.SmartCode.Mode != "advisory" {
		return fmt.Errorf("smartcode.mode must be strict or advisory, got %q", c.SmartCode.Mode)
	}
	if err := checkRatio("resolver.default_threshold", c.Resolver.DefaultThreshold); err != nil {
		return err
	}
	for entityType, threshold := range c.Resolver.Thresholds {
		if err := checkRatio("resolver.thresholds."+entityType, threshold); err != nil {
			return err
		}
	}
	if c.Resolver.CandidatePageSize <= 0 || c.Resolver.MaxCandidates <= 0 {
		return fmt.Errorf("resolver.candidate_page_size and resolver.max_candidates must be positive")
	}
	if c.Attribute.BulkChunkSize <= 0 {
		return fmt.Errorf("attribute.bulk_chunk_size must be positive")
	}
	if c.Ledger.BalanceTolerance < 0 {
		return fmt.Errorf("ledger.balance_tolerance cannot be negative")
	}
	if c.Ledger.MaxQueryLimit <= 0 {
		return fmt.Errorf("ledger.max_query_limit must be positive")
	}
	switch c.Identity.HintStore {
	case "memory":
	case "redis":
		if !c.Redis.Enabled() {
			return fmt.Errorf("identity.hint_store=redis requires redis.host")
		}
	default:
		return fmt.Errorf("identity.hint_store must be memory or redis, got %q", c.Identity.HintStore)
	}

	if c.App.Env == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}

	return nil
}

func checkRatio(key string, v float64) error {
	if v <= 0 || v > 1 {
		return fmt.Errorf("%s must be in (0, 1], got %f", key, v)
	}
	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func floatMap(raw map[string]any) map[string]float64 {
	out := make(map[string]float64, len(raw))
	for k, v := range raw {
		switch n := v.(type) {
		case float64:
			out[strings.ToUpper(k)] = n
		case int:
			out[strings.ToUpper(k)] = float64(n)
		case int64:
			out[strings.ToUpper(k)] = float64(n)
		}
	}
	return out
}

func upperKeys(raw map[string]string) map[string]string {
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		out[strings.ToUpper(k)] = strings.ToLower(v)
	}
	return out
}
