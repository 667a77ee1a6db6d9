package telemetry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
var (
	AttrOrganizationID  = attribute.Key("organization_id")
	AttrEntityType      = attribute.Key("entity_type")
	AttrMatchedBy       = attribute.Key("matched_by")
	AttrPostingKind     = attribute.Key("posting_kind")
	AttrTransactionType = attribute.Key("transaction_type")
	AttrOutcome         = attribute.Key("outcome")
)

// ResolveDurationBuckets are histogram boundaries for entity resolution (seconds).
var ResolveDurationBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5}

// ErrMeterNil is returned when no meter is supplied.
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// DomainMetrics records counters for resolver, ledger and identity activity.
type DomainMetrics struct {
	entitiesResolved  metric.Int64Counter
	resolveDuration   metric.Float64Histogram
	transactionsTotal metric.Int64Counter
	postedAmount      metric.Float64Counter
	hintLookups       metric.Int64Counter
}

// NewDomainMetrics registers the instruments on meter.
func NewDomainMetrics(meter metric.Meter) (*DomainMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	m := &DomainMetrics{}
	var err error

	if m.entitiesResolved, err = meter.Int64Counter("ledgerbase_entity_resolutions_total",
		metric.WithDescription("Entity resolve-or-create outcomes"), metric.WithUnit("{resolutions}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.resolveDuration, err = meter.Float64Histogram("ledgerbase_entity_resolve_duration_seconds",
		metric.WithDescription("Entity resolution latency"), metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(ResolveDurationBuckets...)); err != nil {
		return nil, fmt.Errorf("failed to create histogram: %w", err)
	}
	if m.transactionsTotal, err = meter.Int64Counter("ledgerbase_transactions_total",
		metric.WithDescription("Transaction ledger operations by outcome"), metric.WithUnit("{transactions}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.postedAmount, err = meter.Float64Counter("ledgerbase_posted_amount_total",
		metric.WithDescription("Sum of posted transaction totals")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	if m.hintLookups, err = meter.Int64Counter("ledgerbase_identity_hint_lookups_total",
		metric.WithDescription("Role hint cache lookups by result"), metric.WithUnit("{lookups}")); err != nil {
		return nil, fmt.Errorf("failed to create counter: %w", err)
	}
	return m, nil
}

// RecordResolution counts one entity resolution; matchedBy is empty for new entities.
func (m *DomainMetrics) RecordResolution(ctx context.Context, orgID uuid.UUID, entityType, matchedBy string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if matchedBy == "" {
		matchedBy = "created"
	}
	attrs := metric.WithAttributes(
		AttrOrganizationID.String(orgID.String()),
		AttrEntityType.String(entityType),
		AttrMatchedBy.String(matchedBy),
	)
	m.entitiesResolved.Add(ctx, 1, attrs)
	m.resolveDuration.Record(ctx, elapsed.Seconds(), attrs)
}

// RecordTransaction counts a ledger operation; outcome is posted, replayed, reversed or rejected.
func (m *DomainMetrics) RecordTransaction(ctx context.Context, orgID uuid.UUID, transactionType, postingKind, outcome string, amount float64) {
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		AttrOrganizationID.String(orgID.String()),
		AttrTransactionType.String(transactionType),
		AttrPostingKind.String(postingKind),
		AttrOutcome.String(outcome),
	)
	m.transactionsTotal.Add(ctx, 1, attrs)
	if outcome == "posted" && amount > 0 {
		m.postedAmount.Add(ctx, amount, attrs)
	}
}

// RecordHintLookup counts a role hint lookup; result is hit, miss or error.
func (m *DomainMetrics) RecordHintLookup(ctx context.Context, result string) {
	if m == nil {
		return
	}
	m.hintLookups.Add(ctx, 1, metric.WithAttributes(AttrOutcome.String(result)))
}
