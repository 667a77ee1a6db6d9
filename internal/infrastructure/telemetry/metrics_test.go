package telemetry_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/ledgerbase/backend/internal/infrastructure/telemetry"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func TestNewDomainMetrics_NilMeter(t *testing.T) {
	m, err := telemetry.NewDomainMetrics(nil)
	assert.ErrorIs(t, err, telemetry.ErrMeterNil)
	assert.Nil(t, m)
}

func TestDomainMetrics_Record(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	m, err := telemetry.NewDomainMetrics(provider.Meter("test"))
	require.NoError(t, err)

	ctx := context.Background()
	org := uuid.New()
	m.RecordResolution(ctx, org, "VENDOR", "", 3*time.Millisecond)
	m.RecordResolution(ctx, org, "VENDOR", "fuzzy", time.Millisecond)
	m.RecordTransaction(ctx, org, "journal_entry", "LEDGER_POSTING", "posted", 150)
	m.RecordTransaction(ctx, org, "journal_entry", "LEDGER_POSTING", "replayed", 150)
	m.RecordHintLookup(ctx, "hit")

	data := collect(t, reader)

	resolutions, ok := data["ledgerbase_entity_resolutions_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, resolutions.DataPoints, 2)
	var total int64
	for _, dp := range resolutions.DataPoints {
		total += dp.Value
	}
	assert.Equal(t, int64(2), total)

	amount, ok := data["ledgerbase_posted_amount_total"].(metricdata.Sum[float64])
	require.True(t, ok)
	require.Len(t, amount.DataPoints, 1)
	assert.Equal(t, 150.0, amount.DataPoints[0].Value)

	hints, ok := data["ledgerbase_identity_hint_lookups_total"].(metricdata.Sum[int64])
	require.True(t, ok)
	assert.Equal(t, int64(1), hints.DataPoints[0].Value)
}

func TestDomainMetrics_NilReceiver(t *testing.T) {
	var m *telemetry.DomainMetrics
	assert.NotPanics(t, func() {
		m.RecordResolution(context.Background(), uuid.New(), "X", "code", 0)
		m.RecordTransaction(context.Background(), uuid.New(), "x", "GENERAL", "posted", 1)
		m.RecordHintLookup(context.Background(), "miss")
	})
}
