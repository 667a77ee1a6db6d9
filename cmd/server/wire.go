package main

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	ledgerapp "github.com/ledgerbase/backend/internal/application/ledger"
	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/infrastructure/config"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
	"github.com/ledgerbase/backend/internal/infrastructure/telemetry"
	"github.com/ledgerbase/backend/internal/interfaces/http/handler"
)

func loggerConfig(cfg *config.Config) *logger.Config {
	return &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
}

func telemetryConfig(cfg *config.Config) telemetry.Config {
	return telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
		MetricsEnabled:    cfg.Telemetry.MetricsEnabled,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
		LogsEnabled:       cfg.Telemetry.LogsEnabled,
	}
}

// resolverConfig builds resolver policies; per-type settings override the defaults field by field
func resolverConfig(cfg config.ResolverConfig) entity.ResolverConfig {
	out := entity.DefaultResolverConfig()
	if cfg.DefaultThreshold > 0 {
		out.Default.Threshold = cfg.DefaultThreshold
	}
	if cfg.Metric != "" {
		out.Default.Metric = entity.ParseMetric(cfg.Metric)
	}
	if cfg.CandidatePageSize > 0 {
		out.CandidatePageSize = cfg.CandidatePageSize
	}
	if cfg.MaxCandidates > 0 {
		out.MaxCandidates = cfg.MaxCandidates
	}

	policy := func(name string) (entity.Type, entity.MatchPolicy, bool) {
		t, err := entity.ParseType(name)
		if err != nil {
			return "", entity.MatchPolicy{}, false
		}
		if p, ok := out.ByType[t]; ok {
			return t, p, true
		}
		return t, out.Default, true
	}
	set := func(t entity.Type, p entity.MatchPolicy) {
		if out.ByType == nil {
			out.ByType = make(map[entity.Type]entity.MatchPolicy)
		}
		out.ByType[t] = p
	}

	for name, threshold := range cfg.Thresholds {
		if t, p, ok := policy(name); ok {
			p.Threshold = threshold
			set(t, p)
		}
	}
	for name, metric := range cfg.Metrics {
		if t, p, ok := policy(name); ok {
			p.Metric = entity.ParseMetric(metric)
			set(t, p)
		}
	}
	for _, name := range cfg.FuzzyDisabled {
		if t, p, ok := policy(name); ok {
			p.FuzzyEnabled = false
			set(t, p)
		}
	}
	return out
}

func ledgerConfig(cfg config.LedgerConfig) ledgerapp.Config {
	return ledgerapp.Config{
		Tolerance:     decimal.NewFromFloat(cfg.BalanceTolerance),
		MaxQueryLimit: cfg.MaxQueryLimit,
		LockTTL:       cfg.LockTTL,
	}
}

type redisPinger struct {
	client redis.UniversalClient
}

func (p redisPinger) Ping() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return p.client.Ping(ctx).Err()
}

func healthChecks(db handler.Pinger, client redis.UniversalClient) map[string]handler.Pinger {
	checks := map[string]handler.Pinger{"database": db}
	if client != nil {
		checks["redis"] = redisPinger{client: client}
	}
	return checks
}
