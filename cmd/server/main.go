package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/ledgerbase/backend/internal/application/action"
	entityapp "github.com/ledgerbase/backend/internal/application/entity"
	identityapp "github.com/ledgerbase/backend/internal/application/identity"
	ledgerapp "github.com/ledgerbase/backend/internal/application/ledger"
	orgapp "github.com/ledgerbase/backend/internal/application/organization"
	relapp "github.com/ledgerbase/backend/internal/application/relationship"
	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/infrastructure/auth"
	"github.com/ledgerbase/backend/internal/infrastructure/cache"
	"github.com/ledgerbase/backend/internal/infrastructure/catalog"
	"github.com/ledgerbase/backend/internal/infrastructure/config"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence"
	"github.com/ledgerbase/backend/internal/infrastructure/telemetry"
	"github.com/ledgerbase/backend/internal/interfaces/http/handler"
	"github.com/ledgerbase/backend/internal/interfaces/http/middleware"
	"github.com/ledgerbase/backend/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	bootLog, err := logger.New(loggerConfig(cfg))
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	providers, err := telemetry.NewProviders(context.Background(), telemetryConfig(cfg), bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(ctx); err != nil {
			bootLog.Error("Error flushing telemetry", zap.Error(err))
		}
	}()

	// Rebuild the logger so entries also reach the OTLP logs pipeline
	log, err := logger.New(loggerConfig(cfg), providers.ZapCore(cfg.Telemetry.ServiceName, logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting ledger backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	var gormOpts []logger.GormLoggerOption
	if cfg.Telemetry.DBSlowQueryThresh > 0 {
		gormOpts = append(gormOpts, logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh))
	}
	db, err := persistence.NewDatabase(&cfg.Database, persistence.Options{
		Logger:  logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), gormOpts...),
		Tracing: telemetry.DBTracingConfig{
			Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
			DBName:          cfg.Database.DBName,
		},
		ZapLogger:   log,
		PrepareStmt: true,
	})
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	registry, mode, err := catalog.NewRegistry(cfg.SmartCode.CatalogPath, governance.ParseMode(cfg.SmartCode.Mode))
	if err != nil {
		log.Fatal("Failed to load smart code catalog", zap.Error(err))
	}
	governor := governance.NewGovernor(registry, mode)
	log.Info("Smart code governor ready", zap.String("mode", string(mode)))

	var redisClient redis.UniversalClient
	if cfg.Redis.Enabled() {
		client, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() {
			if err := client.Close(); err != nil {
				log.Error("Error closing Redis client", zap.Error(err))
			}
		}()
		redisClient = client
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	var domainMetrics *telemetry.DomainMetrics
	var meter metric.Meter
	if providers.Meter != nil {
		meter = providers.Meter.Meter(cfg.Telemetry.ServiceName)
		if domainMetrics, err = telemetry.NewDomainMetrics(meter); err != nil {
			log.Fatal("Failed to create domain metrics", zap.Error(err))
		}
	}

	uow := persistence.NewGormUnitOfWork(db.DB)
	repos := persistence.NewRepositories(db.DB)
	hints := cache.NewHintStore(cfg.Identity, redisClient, log)
	if c, ok := hints.(io.Closer); ok {
		defer func() { _ = c.Close() }()
	}

	entities := entityapp.NewEntityService(uow, repos, governor, resolverConfig(cfg.Resolver), cfg.Attribute.BulkChunkSize, log)
	transactions := ledgerapp.NewTransactionService(uow, repos, governor, ledgerConfig(cfg.Ledger), log)
	periods := ledgerapp.NewPeriodService(uow, repos, log)
	relationships := relapp.NewRelationshipService(uow, repos, governor, hints, log)
	identities := identityapp.NewIdentityService(uow, repos, hints, cfg.Identity.HintTTL, log)
	organizations := orgapp.NewOrganizationService(uow, repos, governor, hints, log)

	entities.SetHintStore(hints)
	transactions.SetKeyLock(cache.NewKeyLock(redisClient))
	if domainMetrics != nil {
		entities.SetDomainMetrics(domainMetrics)
		transactions.SetDomainMetrics(domainMetrics)
		identities.SetDomainMetrics(domainMetrics)
	}

	bootCtx, cancelBoot := context.WithTimeout(context.Background(), 30*time.Second)
	if err := organizations.EnsurePlatform(bootCtx); err != nil {
		cancelBoot()
		log.Fatal("Failed to provision platform organization", zap.Error(err))
	}
	cancelBoot()

	dispatcher := action.NewDispatcher(action.Services{
		Entities:      entities,
		Transactions:  transactions,
		Periods:       periods,
		Relationships: relationships,
		Access:        identities,
	}, log)

	engine, err := router.New(
		router.Config{
			ServiceName:    cfg.Telemetry.ServiceName,
			TracingEnabled: cfg.Telemetry.Enabled,
			MaxBodySize:    cfg.HTTP.MaxBodySize,
			TrustedProxies: cfg.HTTP.TrustedProxies,
			Meter:          meter,
		},
		router.Handlers{
			Actions:       handler.NewActionHandler(dispatcher),
			Identity:      handler.NewIdentityHandler(identities),
			Organizations: handler.NewOrganizationHandler(organizations, identities),
			Health:        handler.NewHealthHandler(version, healthChecks(db, redisClient)),
		},
		middleware.AuthConfig{
			Verifier: auth.NewVerifier(cfg.JWT),
			Actors:   identities,
			Logger:   log,
		},
		log,
	)
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
