// Package ledger implements the transaction actions and fiscal period administration.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/domain/attribute"
	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
	"github.com/ledgerbase/backend/internal/infrastructure/telemetry"
)

// Outcome labels for transaction metrics
const (
	OutcomePosted   = "posted"
	OutcomeReplayed = "replayed"
	OutcomeReversed = "reversed"
	OutcomeRejected = "rejected"
)

const defaultLockTTL = 10 * time.Second

// Config holds the ledger engine settings
type Config struct {
	Tolerance     decimal.Decimal
	MaxQueryLimit int
	LockTTL       time.Duration
}

// TransactionService posts, reads, queries and reverses transactions
type TransactionService struct {
	uow      appshared.UnitOfWork
	repos    appshared.Repositories
	governor *governance.Governor
	config   Config
	lock     appshared.KeyLock
	metrics  *telemetry.DomainMetrics
	logger   *zap.Logger
}

// NewTransactionService creates a new transaction service
func NewTransactionService(
	uow appshared.UnitOfWork,
	repos appshared.Repositories,
	governor *governance.Governor,
	config Config,
	logger *zap.Logger,
) *TransactionService {
	if config.Tolerance.IsZero() {
		config.Tolerance = ledger.DefaultTolerance
	}
	if config.MaxQueryLimit <= 0 {
		config.MaxQueryLimit = shared.MaxPageSize
	}
	if config.LockTTL <= 0 {
		config.LockTTL = defaultLockTTL
	}
	return &TransactionService{
		uow:      uow,
		repos:    repos,
		governor: governor,
		config:   config,
		lock:     appshared.NopKeyLock{},
		logger:   logger,
	}
}

// SetKeyLock sets the lock used to serialize creates that share an idempotency key
func (s *TransactionService) SetKeyLock(lock appshared.KeyLock) {
	if lock == nil {
		lock = appshared.NopKeyLock{}
	}
	s.lock = lock
}

// SetDomainMetrics sets the domain metrics recorder
func (s *TransactionService) SetDomainMetrics(m *telemetry.DomainMetrics) {
	s.metrics = m
}

// Create validates and posts a transaction with its lines.
// A request repeating an idempotency key with the same content returns the original.
func (s *TransactionService) Create(ctx context.Context, scope shared.OrgScope, in CreateInput) (*CreateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrganizationID, scope.OrganizationID.String(),
		telemetry.SpanAttrSmartCode, in.Transaction.SmartCode,
	)

	result, err := s.create(ctx, scope, in)
	if err != nil {
		telemetry.RecordError(span, err)
		if shared.KindOf(err) != shared.KindInternal {
			s.metrics.RecordTransaction(ctx, scope.OrganizationID, in.Transaction.TransactionType, "", OutcomeRejected, 0)
		}
		return nil, err
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTransactionID, result.Transaction.ID.String(),
		telemetry.SpanAttrFiscalPeriod, result.Transaction.FiscalPeriod,
		telemetry.SpanAttrReplayed, result.Replayed,
	)
	outcome := OutcomePosted
	if result.Replayed {
		outcome = OutcomeReplayed
	}
	s.metrics.RecordTransaction(ctx, scope.OrganizationID, result.Transaction.TransactionType,
		result.Transaction.PostingKind, outcome, result.Transaction.TotalAmount.InexactFloat64())
	return result, nil
}

func (s *TransactionService) create(ctx context.Context, scope shared.OrgScope, in CreateInput) (*CreateResult, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	class, err := appshared.Govern(ctx, s.governor, scope.OrganizationID, in.Transaction.SmartCode)
	if err != nil {
		return nil, err
	}
	fingerprint, err := ledger.Fingerprint(in.Transaction, in.Lines)
	if err != nil {
		return nil, err
	}
	t, err := ledger.NewTransaction(scope, in.Transaction, in.Lines, ledger.PostingRules{
		Kind:      class.Kind,
		Tolerance: s.config.Tolerance,
	})
	if err != nil {
		return nil, err
	}
	t.RequestFingerprint = fingerprint

	if t.IdempotencyKey != "" {
		release := s.acquire(ctx, scope, t.IdempotencyKey)
		defer release(context.WithoutCancel(ctx))

		existing, err := s.repos.Transactions().FindByIdempotencyKey(ctx, scope.OrganizationID, t.IdempotencyKey)
		if err != nil && shared.KindOf(err) != shared.KindNotFound {
			return nil, err
		}
		if existing != nil {
			return s.replay(ctx, s.repos.Transactions(), existing, fingerprint)
		}
	}

	var result *CreateResult
	err = s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		if err := checkPeriod(ctx, repos.Periods(), t.OrganizationID, t.FiscalPeriod, t.PostingKind); err != nil {
			return err
		}
		err := repos.Transactions().Create(ctx, t)
		if errors.Is(err, ledger.ErrDuplicateKey) {
			existing, findErr := repos.Transactions().FindByIdempotencyKey(ctx, scope.OrganizationID, t.IdempotencyKey)
			if findErr != nil {
				return findErr
			}
			result, err = s.replay(ctx, repos.Transactions(), existing, fingerprint)
			return err
		}
		if err != nil {
			return err
		}
		if err := appshared.SaveEvents(ctx, repos.Outbox(), t.GetDomainEvents()); err != nil {
			return fmt.Errorf("save events: %w", err)
		}
		t.ClearDomainEvents()
		result = &CreateResult{Transaction: ToTransactionDTO(t, true)}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !result.Replayed {
		logger.L(ctx).Info("Transaction posted",
			zap.String("transaction_id", t.ID.String()),
			zap.String("smart_code", t.SmartCode),
			zap.String("fiscal_period", t.FiscalPeriod),
			zap.String("total_amount", t.TotalAmount.String()),
		)
	}
	return result, nil
}

// acquire takes the in-flight lock for key; failure to get it within the wait is not an error
func (s *TransactionService) acquire(ctx context.Context, scope shared.OrgScope, key string) func(context.Context) {
	lockKey := fmt.Sprintf("ledger:idempotency:%s:%s", scope.OrganizationID, key)
	release, ok, err := s.lock.Acquire(ctx, lockKey, s.config.LockTTL)
	if err != nil {
		s.logger.Warn("Idempotency lock unavailable, relying on unique index",
			zap.String("key", lockKey), zap.Error(err))
		return func(context.Context) {}
	}
	if !ok {
		s.logger.Debug("Idempotency lock still held, continuing", zap.String("key", lockKey))
		return func(context.Context) {}
	}
	return release
}

// replay returns existing when it was created from the same request, otherwise a conflict
func (s *TransactionService) replay(ctx context.Context, repo ledger.TransactionRepository, existing *ledger.Transaction, fingerprint string) (*CreateResult, error) {
	if existing.RequestFingerprint != fingerprint {
		return nil, shared.NewConflictError(ledger.CodeDuplicateIdempotencyKey,
			"idempotency key %q was already used for a different request", existing.IdempotencyKey)
	}
	if err := loadLines(ctx, repo, existing); err != nil {
		return nil, err
	}
	return &CreateResult{Transaction: ToTransactionDTO(existing, true), Replayed: true}, nil
}

// Read returns one transaction, with its lines on request
func (s *TransactionService) Read(ctx context.Context, scope shared.OrgScope, in ReadInput) (*TransactionDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "read")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTransactionID, in.TransactionID.String())

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	t, err := s.repos.Transactions().FindByID(ctx, scope.OrganizationID, in.TransactionID)
	if err != nil {
		return nil, err
	}
	if in.IncludeLines {
		if err := loadLines(ctx, s.repos.Transactions(), t); err != nil {
			return nil, err
		}
	}
	dto := ToTransactionDTO(t, in.IncludeLines)
	return &dto, nil
}

// Query lists transactions of the organization; no filters returns all of them
func (s *TransactionService) Query(ctx context.Context, scope shared.OrgScope, in QueryFilters) (*shared.Paginated[TransactionDTO], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "query")
	defer span.End()

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	filter := ledger.Filter{
		TransactionType: strings.TrimSpace(in.TransactionType),
		SmartCodePrefix: strings.TrimSpace(in.SmartCodePrefix),
		Status:          ledger.Status(strings.ToUpper(strings.TrimSpace(in.Status))),
		SourceEntityID:  in.SourceEntityID,
	}
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, shared.NewValidationError(ledger.CodeInvalidTransaction, "invalid status %q", in.Status)
	}
	var err error
	if filter.DateFrom, err = lowerBound(in.DateFrom); err != nil {
		return nil, err
	}
	if filter.DateBefore, err = upperBound(in.DateTo); err != nil {
		return nil, err
	}
	page := shared.Page{Limit: in.Limit, Offset: in.Offset}.Normalize(s.config.MaxQueryLimit)

	items, total, err := s.repos.Transactions().Query(ctx, scope.OrganizationID, filter, page)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if in.IncludeLines && len(items) > 0 {
		ids := make([]uuid.UUID, 0, len(items))
		for _, t := range items {
			ids = append(ids, t.ID)
		}
		lines, err := s.repos.Transactions().Lines(ctx, scope.OrganizationID, ids)
		if err != nil {
			return nil, err
		}
		for _, t := range items {
			t.Lines = lines[t.ID]
		}
	}
	dtos := make([]TransactionDTO, 0, len(items))
	for _, t := range items {
		dtos = append(dtos, ToTransactionDTO(t, in.IncludeLines))
	}
	result := shared.NewPaginated(dtos, total, page)
	return &result, nil
}

// Reverse posts the compensating transaction and marks the original REVERSED
func (s *TransactionService) Reverse(ctx context.Context, scope shared.OrgScope, in ReverseInput) (*ReverseResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "reverse")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTransactionID, in.TransactionID.String())

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	date := time.Now().UTC()
	if in.ReversalDate != nil && !in.ReversalDate.IsZero() {
		date = in.ReversalDate.UTC()
	}

	var result *ReverseResult
	var reversal *ledger.Transaction
	err := s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		original, err := repos.Transactions().FindByID(ctx, scope.OrganizationID, in.TransactionID)
		if err != nil {
			return err
		}
		if err := loadLines(ctx, repos.Transactions(), original); err != nil {
			return err
		}
		reversal, err = original.Reverse(scope, in.Reason, date)
		if err != nil {
			return err
		}
		if err := checkPeriod(ctx, repos.Periods(), reversal.OrganizationID, reversal.FiscalPeriod, reversal.PostingKind); err != nil {
			return err
		}
		ok, err := repos.Transactions().MarkReversed(ctx, original)
		if err != nil {
			return err
		}
		if !ok {
			return shared.NewConflictError(ledger.CodeAlreadyReversed, "transaction %s is already reversed", original.ID)
		}
		if err := repos.Transactions().Create(ctx, reversal); err != nil {
			return err
		}
		events := append(original.GetDomainEvents(), reversal.GetDomainEvents()...)
		if err := appshared.SaveEvents(ctx, repos.Outbox(), events); err != nil {
			return fmt.Errorf("save events: %w", err)
		}
		original.ClearDomainEvents()
		reversal.ClearDomainEvents()
		result = &ReverseResult{
			Original: ToTransactionDTO(original, true),
			Reversal: ToTransactionDTO(reversal, true),
		}
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordTransaction(ctx, scope.OrganizationID, reversal.TransactionType, string(reversal.PostingKind),
		OutcomeReversed, reversal.TotalAmount.InexactFloat64())
	logger.L(ctx).Info("Transaction reversed",
		zap.String("transaction_id", in.TransactionID.String()),
		zap.String("reversal_id", reversal.ID.String()),
	)
	return result, nil
}

// TrialBalance sums debits and credits per account over posted and reversed transactions
func (s *TransactionService) TrialBalance(ctx context.Context, scope shared.OrgScope, in TrialBalanceInput) (*TrialBalanceDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger", "trial_balance")
	defer span.End()

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	from, err := lowerBound(in.DateFrom)
	if err != nil {
		return nil, err
	}
	before, err := upperBound(in.DateTo)
	if err != nil {
		return nil, err
	}
	start, end := time.Time{}, time.Date(9999, 12, 31, 0, 0, 0, 0, time.UTC)
	if from != nil {
		start = *from
	}
	if before != nil {
		end = *before
	}
	lines, err := s.repos.Transactions().LedgerLines(ctx, scope.OrganizationID, start, end)
	if err != nil {
		return nil, err
	}
	out := &TrialBalanceDTO{Accounts: ledger.TrialBalance(lines), TotalDebit: decimal.Zero, TotalCredit: decimal.Zero}
	for _, b := range out.Accounts {
		out.TotalDebit = out.TotalDebit.Add(b.Debit)
		out.TotalCredit = out.TotalCredit.Add(b.Credit)
	}
	out.Balanced = out.TotalDebit.Sub(out.TotalCredit).Abs().LessThanOrEqual(s.config.Tolerance)
	return out, nil
}

func loadLines(ctx context.Context, repo ledger.TransactionRepository, t *ledger.Transaction) error {
	lines, err := repo.Lines(ctx, t.OrganizationID, []uuid.UUID{t.ID})
	if err != nil {
		return err
	}
	t.Lines = lines[t.ID]
	if t.Lines == nil {
		t.Lines = []*ledger.Line{}
	}
	return nil
}

// checkPeriod holds the period shared for the rest of the unit of work and
// treats a period without a stored row as open
func checkPeriod(ctx context.Context, repo ledger.PeriodRepository, organizationID uuid.UUID, code string, kind governance.Kind) error {
	if err := repo.Lock(ctx, organizationID, code, false); err != nil {
		return err
	}
	p, err := repo.Find(ctx, organizationID, code)
	if err != nil && shared.KindOf(err) != shared.KindNotFound {
		return err
	}
	return ledger.CheckPostingAllowed(p, code, kind)
}

// lowerBound parses an inclusive start; a date-only value starts at midnight UTC
func lowerBound(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := attribute.ParseDate(raw)
	if err != nil {
		return nil, shared.NewValidationError(ledger.CodeInvalidTransaction, "invalid date_from %q", raw)
	}
	t = t.UTC()
	return &t, nil
}

// upperBound turns an inclusive end into an exclusive bound. A date-only value covers the
// whole day and a value without fractional seconds covers the whole second.
func upperBound(raw string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	t, err := attribute.ParseDate(raw)
	if err != nil {
		return nil, shared.NewValidationError(ledger.CodeInvalidTransaction, "invalid date_to %q", raw)
	}
	t = t.UTC()
	switch {
	case len(raw) == len(time.DateOnly):
		t = t.AddDate(0, 0, 1)
	case !strings.Contains(raw, "."):
		t = t.Add(time.Second)
	default:
		t = t.Add(time.Microsecond)
	}
	return &t, nil
}
