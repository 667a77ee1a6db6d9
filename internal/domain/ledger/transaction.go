// Package ledger posts balanced, idempotent, period-aware business transactions.
package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

const (
	CodeInvalidTransaction      = "INVALID_TRANSACTION"
	CodeTransactionNotFound     = "TRANSACTION_NOT_FOUND"
	CodeUnbalancedLines         = "UNBALANCED_LINES"
	CodeTotalMismatch           = "TOTAL_MISMATCH"
	CodePeriodClosed            = "PERIOD_CLOSED"
	CodeDuplicateIdempotencyKey = "DUPLICATE_IDEMPOTENCY_KEY"
	CodeAlreadyReversed         = "ALREADY_REVERSED"
	CodeInvalidState            = "INVALID_STATE"
	CodeDuplicateLineNumber     = "DUPLICATE_LINE_NUMBER"
	CodeNegativeQuantity        = "NEGATIVE_QUANTITY"
)

// DefaultTolerance is the maximum allowed difference between debits and credits
var DefaultTolerance = decimal.NewFromFloat(0.01)

// Status is the lifecycle state of a transaction
type Status string

const (
	StatusDraft    Status = "DRAFT"
	StatusPosted   Status = "POSTED"
	StatusReversed Status = "REVERSED"
)

// IsValid checks if the status is known
func (s Status) IsValid() bool {
	switch s {
	case StatusDraft, StatusPosted, StatusReversed:
		return true
	}
	return false
}

// Transaction is the header of a business event with its lines
type Transaction struct {
	shared.OrgAggregateRoot
	TransactionType    string
	TransactionCode    string
	IdempotencyKey     string
	RequestFingerprint string
	PostingKind        governance.Kind
	SourceEntityID     *uuid.UUID
	TargetEntityID     *uuid.UUID
	TotalAmount        decimal.Decimal
	Status             Status
	TransactionDate    time.Time
	FiscalPeriod       string
	Currency           string
	Metadata           map[string]any
	ReversalOfID       *uuid.UUID
	ReversedByID       *uuid.UUID
	ReversedAt         *time.Time
	ReversalReason     string
	Lines              []*Line
}

// IsLedgerPosting reports whether the transaction's lines must balance
func (t *Transaction) IsLedgerPosting() bool {
	return t.PostingKind.IsLedgerPosting()
}

// Header describes the transaction header supplied by a caller
type Header struct {
	TransactionType string           `json:"transaction_type"`
	TransactionCode string           `json:"transaction_code,omitempty"`
	IdempotencyKey  string           `json:"idempotency_key,omitempty"`
	SmartCode       string           `json:"smart_code"`
	SourceEntityID  *uuid.UUID       `json:"source_entity_id,omitempty"`
	TargetEntityID  *uuid.UUID       `json:"target_entity_id,omitempty"`
	TotalAmount     *decimal.Decimal `json:"total_amount,omitempty"`
	Status          Status           `json:"status,omitempty"`
	TransactionDate *time.Time       `json:"transaction_date,omitempty"`
	Currency        string           `json:"currency,omitempty"`
	Metadata        map[string]any   `json:"metadata,omitempty"`
}

// Key returns the idempotency key: the explicit key, else the transaction code
func (h Header) Key() string {
	if k := strings.TrimSpace(h.IdempotencyKey); k != "" {
		return k
	}
	return strings.TrimSpace(h.TransactionCode)
}

// PostingRules carries the classification and tolerance used to validate a posting
type PostingRules struct {
	Kind      governance.Kind
	Tolerance decimal.Decimal
}

// normalizeCurrency upper-cases an ISO 4217 code; empty means unset
func normalizeCurrency(raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if code == "" {
		return "", nil
	}
	if len(code) != 3 || strings.IndexFunc(code, func(r rune) bool { return r < 'A' || r > 'Z' }) >= 0 {
		return "", fmt.Errorf("currency %q is not a three-letter ISO 4217 code", raw)
	}
	return code, nil
}

// NewTransaction validates header and lines and builds a transaction ready to persist
func NewTransaction(scope shared.OrgScope, h Header, lines []LineInput, rules PostingRules) (*Transaction, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	txType := strings.TrimSpace(h.TransactionType)
	if txType == "" {
		return nil, shared.NewValidationError(CodeInvalidTransaction, "transaction_type is required")
	}
	if strings.TrimSpace(h.SmartCode) == "" {
		return nil, shared.NewValidationError(CodeInvalidTransaction, "smart_code is required")
	}
	status := h.Status
	if status == "" {
		status = StatusPosted
	}
	if status != StatusPosted && status != StatusDraft {
		return nil, shared.NewValidationError(CodeInvalidTransaction, "a new transaction cannot have status %q", h.Status)
	}
	if rules.Tolerance.IsZero() {
		rules.Tolerance = DefaultTolerance
	}
	if rules.Kind == "" {
		rules.Kind = governance.KindGeneral
	}

	currency, err := normalizeCurrency(h.Currency)
	if err != nil {
		return nil, shared.NewValidationError(CodeInvalidTransaction, "%s", err.Error())
	}

	date := time.Now().UTC()
	if h.TransactionDate != nil && !h.TransactionDate.IsZero() {
		date = h.TransactionDate.UTC()
	}

	t := &Transaction{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(scope, strings.TrimSpace(h.SmartCode)),
		TransactionType:  txType,
		TransactionCode:  strings.TrimSpace(h.TransactionCode),
		IdempotencyKey:   h.Key(),
		PostingKind:      rules.Kind,
		SourceEntityID:   h.SourceEntityID,
		TargetEntityID:   h.TargetEntityID,
		Status:           status,
		TransactionDate:  date,
		FiscalPeriod:     PeriodCode(date),
		Currency:         currency,
		Metadata:         h.Metadata,
	}

	built, err := buildLines(t, lines)
	if err != nil {
		return nil, err
	}
	t.Lines = built

	computed, err := validatePosting(t, rules)
	if err != nil {
		return nil, err
	}
	t.TotalAmount = computed
	if h.TotalAmount != nil {
		if len(t.Lines) > 0 && h.TotalAmount.Sub(computed).Abs().GreaterThan(rules.Tolerance) {
			return nil, shared.NewValidationError(CodeTotalMismatch,
				"total_amount %s does not match line total %s", h.TotalAmount.String(), computed.String())
		}
		t.TotalAmount = *h.TotalAmount
	}

	if t.Status == StatusPosted {
		t.AddDomainEvent(NewTransactionPostedEvent(t))
	}
	return t, nil
}

// validatePosting enforces the balance rule for ledger postings and returns the computed total
func validatePosting(t *Transaction, rules PostingRules) (decimal.Decimal, error) {
	if !rules.Kind.IsLedgerPosting() {
		total := decimal.Zero
		for _, l := range t.Lines {
			total = total.Add(l.LineAmount)
		}
		return total, nil
	}

	debits, credits := decimal.Zero, decimal.Zero
	sided := 0
	for _, l := range t.Lines {
		switch l.Side {
		case SideDebit:
			debits = debits.Add(l.LineAmount)
			sided++
		case SideCredit:
			credits = credits.Add(l.LineAmount)
			sided++
		}
	}
	if sided == 0 {
		return decimal.Zero, shared.NewImbalanceError(CodeUnbalancedLines,
			"ledger posting %s requires at least one DR/CR line", t.SmartCode)
	}
	if debits.Sub(credits).Abs().GreaterThan(rules.Tolerance) {
		return decimal.Zero, shared.NewImbalanceError(CodeUnbalancedLines,
			"debits %s do not equal credits %s", debits.StringFixed(2), credits.StringFixed(2))
	}
	return debits, nil
}

// Reverse builds the compensating transaction and marks t as reversed.
// Ledger lines swap sides; other lines are negated.
func (t *Transaction) Reverse(scope shared.OrgScope, reason string, date time.Time) (*Transaction, error) {
	if err := t.CanReverse(); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, shared.NewValidationError(CodeInvalidTransaction, "reversal reason is required")
	}
	if date.IsZero() {
		date = time.Now().UTC()
	}
	date = date.UTC()

	metadata := map[string]any{"reversal_reason": reason, "reversal_of_code": t.TransactionCode}
	originalID := t.ID
	r := &Transaction{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(scope, t.SmartCode),
		TransactionType:  t.TransactionType,
		PostingKind:      t.PostingKind,
		SourceEntityID:   t.SourceEntityID,
		TargetEntityID:   t.TargetEntityID,
		Status:           StatusPosted,
		TransactionDate:  date,
		FiscalPeriod:     PeriodCode(date),
		Currency:         t.Currency,
		Metadata:         metadata,
		ReversalOfID:     &originalID,
		ReversalReason:   reason,
	}
	if t.IsLedgerPosting() {
		r.TotalAmount = t.TotalAmount
	} else {
		r.TotalAmount = t.TotalAmount.Neg()
	}
	r.Lines = make([]*Line, 0, len(t.Lines))
	for _, l := range t.Lines {
		r.Lines = append(r.Lines, l.reversed(r))
	}
	r.AddDomainEvent(NewTransactionPostedEvent(r))

	now := time.Now().UTC()
	reversalID := r.ID
	t.Status = StatusReversed
	t.ReversedByID = &reversalID
	t.ReversedAt = &now
	t.ReversalReason = reason
	t.UpdatedAt = now
	t.IncrementVersion()
	t.AddDomainEvent(NewTransactionReversedEvent(t, r))
	return r, nil
}

// CanReverse checks the state machine for a reversal
func (t *Transaction) CanReverse() error {
	switch t.Status {
	case StatusPosted:
		return nil
	case StatusReversed:
		return shared.NewConflictError(CodeAlreadyReversed, "transaction %s is already reversed", t.ID)
	default:
		return shared.NewValidationError(CodeInvalidState, "transaction %s in status %s cannot be reversed", t.ID, t.Status)
	}
}

// NotFound builds the standard not-found error for id
func NotFound(id uuid.UUID) error {
	return shared.NewNotFoundError(CodeTransactionNotFound, "transaction %s not found", id)
}
