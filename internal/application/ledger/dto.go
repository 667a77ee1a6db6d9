package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerbase/backend/internal/domain/ledger"
)

// CreateInput is a transaction header with its lines
type CreateInput struct {
	Transaction ledger.Header      `json:"transaction"`
	Lines       []ledger.LineInput `json:"lines"`
}

// ReadInput identifies the transaction to read
type ReadInput struct {
	TransactionID uuid.UUID `json:"transaction_id" validate:"required"`
	IncludeLines  bool      `json:"include_lines,omitempty"`
}

// QueryFilters narrows a transaction query.
// Date-only values cover whole UTC days and DateTo is inclusive.
type QueryFilters struct {
	TransactionType string     `json:"transaction_type,omitempty"`
	SmartCodePrefix string     `json:"smart_code_prefix,omitempty"`
	Status          string     `json:"status,omitempty" validate:"omitempty,oneof=DRAFT POSTED REVERSED"`
	SourceEntityID  *uuid.UUID `json:"source_entity_id,omitempty"`
	DateFrom        string     `json:"date_from,omitempty"`
	DateTo          string     `json:"date_to,omitempty"`
	Limit           int        `json:"limit,omitempty" validate:"gte=0"`
	Offset          int        `json:"offset,omitempty" validate:"gte=0"`
	IncludeLines    bool       `json:"include_lines,omitempty"`
}

// ReverseInput identifies the transaction to reverse
type ReverseInput struct {
	TransactionID uuid.UUID  `json:"transaction_id" validate:"required"`
	Reason        string     `json:"reason" validate:"required,max=500"`
	ReversalDate  *time.Time `json:"reversal_date,omitempty"`
}

// PeriodInput names one fiscal period
type PeriodInput struct {
	PeriodCode string `json:"period_code" validate:"required,len=7"`
}

// TrialBalanceInput bounds a trial balance; both dates are inclusive
type TrialBalanceInput struct {
	DateFrom string `json:"date_from,omitempty"`
	DateTo   string `json:"date_to,omitempty"`
}

// LineDTO is the read model of a transaction line
type LineDTO struct {
	ID          uuid.UUID       `json:"id"`
	LineNumber  int             `json:"line_number"`
	LineType    string          `json:"line_type,omitempty"`
	Description string          `json:"description,omitempty"`
	EntityID    *uuid.UUID      `json:"entity_id,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitAmount  decimal.Decimal `json:"unit_amount"`
	LineAmount  decimal.Decimal `json:"line_amount"`
	SmartCode   string          `json:"smart_code,omitempty"`
	LineData    map[string]any  `json:"line_data"`
}

// TransactionDTO is the read model of a transaction
type TransactionDTO struct {
	ID              uuid.UUID       `json:"id"`
	OrganizationID  uuid.UUID       `json:"organization_id"`
	TransactionType string          `json:"transaction_type"`
	TransactionCode string          `json:"transaction_code,omitempty"`
	IdempotencyKey  string          `json:"idempotency_key,omitempty"`
	SmartCode       string          `json:"smart_code"`
	PostingKind     string          `json:"posting_kind"`
	SourceEntityID  *uuid.UUID      `json:"source_entity_id,omitempty"`
	TargetEntityID  *uuid.UUID      `json:"target_entity_id,omitempty"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Status          string          `json:"transaction_status"`
	TransactionDate time.Time       `json:"transaction_date"`
	FiscalPeriod    string          `json:"fiscal_period"`
	Currency        string          `json:"currency,omitempty"`
	Metadata        map[string]any  `json:"metadata,omitempty"`
	ReversalOfID    *uuid.UUID      `json:"reversal_of_id,omitempty"`
	ReversedByID    *uuid.UUID      `json:"reversed_by_id,omitempty"`
	ReversedAt      *time.Time      `json:"reversed_at,omitempty"`
	ReversalReason  string          `json:"reversal_reason,omitempty"`
	CreatedBy       *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Lines           []LineDTO       `json:"lines,omitempty"`
}

// CreateResult is the outcome of Create; Replayed is true when an earlier identical request is returned
type CreateResult struct {
	Transaction TransactionDTO `json:"transaction"`
	Replayed    bool           `json:"replayed"`
}

// ReverseResult holds the reversed original and its compensating transaction
type ReverseResult struct {
	Original TransactionDTO `json:"original"`
	Reversal TransactionDTO `json:"reversal"`
}

// PeriodDTO is the posting state of one fiscal period
type PeriodDTO struct {
	PeriodCode string     `json:"period_code"`
	Status     string     `json:"status"`
	ClosedAt   *time.Time `json:"closed_at,omitempty"`
	ClosedBy   *uuid.UUID `json:"closed_by,omitempty"`
}

// TrialBalanceDTO lists debit and credit totals per account
type TrialBalanceDTO struct {
	Accounts    []ledger.AccountBalance `json:"accounts"`
	TotalDebit  decimal.Decimal         `json:"total_debit"`
	TotalCredit decimal.Decimal         `json:"total_credit"`
	Balanced    bool                    `json:"balanced"`
}

// ToTransactionDTO converts a transaction; lines are included when withLines is set
func ToTransactionDTO(t *ledger.Transaction, withLines bool) TransactionDTO {
	dto := TransactionDTO{
		ID:              t.ID,
		OrganizationID:  t.OrganizationID,
		TransactionType: t.TransactionType,
		TransactionCode: t.TransactionCode,
		IdempotencyKey:  t.IdempotencyKey,
		SmartCode:       t.SmartCode,
		PostingKind:     string(t.PostingKind),
		SourceEntityID:  t.SourceEntityID,
		TargetEntityID:  t.TargetEntityID,
		TotalAmount:     t.TotalAmount,
		Status:          string(t.Status),
		TransactionDate: t.TransactionDate,
		FiscalPeriod:    t.FiscalPeriod,
		Currency:        t.Currency,
		Metadata:        t.Metadata,
		ReversalOfID:    t.ReversalOfID,
		ReversedByID:    t.ReversedByID,
		ReversedAt:      t.ReversedAt,
		ReversalReason:  t.ReversalReason,
		CreatedBy:       t.CreatedBy,
		CreatedAt:       t.CreatedAt,
	}
	if withLines {
		dto.Lines = make([]LineDTO, 0, len(t.Lines))
		for _, l := range t.Lines {
			dto.Lines = append(dto.Lines, ToLineDTO(l))
		}
	}
	return dto
}

// ToLineDTO converts a line
func ToLineDTO(l *ledger.Line) LineDTO {
	return LineDTO{
		ID:          l.ID,
		LineNumber:  l.LineNumber,
		LineType:    l.LineType,
		Description: l.Description,
		EntityID:    l.EntityID,
		Quantity:    l.Quantity,
		UnitAmount:  l.UnitAmount,
		LineAmount:  l.LineAmount,
		SmartCode:   l.SmartCode,
		LineData:    l.LineData(),
	}
}

// ToPeriodDTO converts a period row
func ToPeriodDTO(p *ledger.FiscalPeriod) PeriodDTO {
	return PeriodDTO{
		PeriodCode: p.PeriodCode,
		Status:     string(p.Status),
		ClosedAt:   p.ClosedAt,
		ClosedBy:   p.ClosedBy,
	}
}
