package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

const (
	AggregateTypeTransaction     = "Transaction"
	EventTypeTransactionPosted   = "TransactionPosted"
	EventTypeTransactionReversed = "TransactionReversed"
)

// TransactionPostedEvent is raised when a transaction reaches POSTED
type TransactionPostedEvent struct {
	shared.BaseDomainEvent
	TransactionType string          `json:"transaction_type"`
	SmartCode       string          `json:"smart_code"`
	TotalAmount     decimal.Decimal `json:"total_amount"`
	Currency        string          `json:"currency,omitempty"`
	FiscalPeriod    string          `json:"fiscal_period"`
	LineCount       int             `json:"line_count"`
	ReversalOfID    *uuid.UUID      `json:"reversal_of_id,omitempty"`
}

// NewTransactionPostedEvent builds the event for t
func NewTransactionPostedEvent(t *Transaction) *TransactionPostedEvent {
	return &TransactionPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionPosted, AggregateTypeTransaction, t.ID, t.OrganizationID),
		TransactionType: t.TransactionType,
		SmartCode:       t.SmartCode,
		TotalAmount:     t.TotalAmount,
		Currency:        t.Currency,
		FiscalPeriod:    t.FiscalPeriod,
		LineCount:       len(t.Lines),
		ReversalOfID:    t.ReversalOfID,
	}
}

// TransactionReversedEvent is raised on the original when it is reversed
type TransactionReversedEvent struct {
	shared.BaseDomainEvent
	ReversalID uuid.UUID `json:"reversal_id"`
	Reason     string    `json:"reason"`
}

// NewTransactionReversedEvent builds the event for original reversed by reversal
func NewTransactionReversedEvent(original, reversal *Transaction) *TransactionReversedEvent {
	return &TransactionReversedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeTransactionReversed, AggregateTypeTransaction, original.ID, original.OrganizationID),
		ReversalID:      reversal.ID,
		Reason:          original.ReversalReason,
	}
}
