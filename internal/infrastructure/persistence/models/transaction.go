package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

// TransactionModel is the persistence model for universal_transactions
type TransactionModel struct {
	ID                 uuid.UUID       `gorm:"type:uuid;primaryKey"`
	OrganizationID     uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_universal_transactions_idempotency,priority:1,where:idempotency_key <> '';uniqueIndex:uq_universal_transactions_reversal,priority:1,where:reversal_of_id IS NOT NULL;index:idx_universal_transactions_date,priority:1"`
	TransactionType    string          `gorm:"type:varchar(100);not null"`
	TransactionCode    string          `gorm:"type:varchar(200);not null;default:''"`
	IdempotencyKey     string          `gorm:"type:varchar(200);not null;default:'';uniqueIndex:uq_universal_transactions_idempotency,priority:2"`
	RequestFingerprint string          `gorm:"type:varchar(64);not null;default:''"`
	SmartCode          string          `gorm:"type:varchar(200);not null"`
	PostingKind        string          `gorm:"type:varchar(30);not null;default:GENERAL"`
	SourceEntityID     *uuid.UUID      `gorm:"type:uuid;index:idx_universal_transactions_source"`
	TargetEntityID     *uuid.UUID      `gorm:"type:uuid"`
	TotalAmount        decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	TransactionStatus  string          `gorm:"type:varchar(20);not null"`
	TransactionDate    time.Time       `gorm:"not null;index:idx_universal_transactions_date,priority:2"`
	FiscalPeriod       string          `gorm:"type:varchar(7);not null"`
	Currency           string          `gorm:"type:varchar(3);not null;default:''"`
	Metadata           string          `gorm:"type:jsonb;not null;default:'{}'"`
	ReversalOfID       *uuid.UUID      `gorm:"type:uuid;uniqueIndex:uq_universal_transactions_reversal,priority:2"`
	ReversedByID       *uuid.UUID      `gorm:"type:uuid"`
	ReversedAt         *time.Time
	ReversalReason     string     `gorm:"type:text;not null;default:''"`
	CreatedBy          *uuid.UUID `gorm:"type:uuid"`
	CreatedAt          time.Time  `gorm:"not null"`
	UpdatedAt          time.Time  `gorm:"not null"`
	Version            int        `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (TransactionModel) TableName() string {
	return "universal_transactions"
}

// ToDomain converts the header to a domain Transaction without lines
func (m *TransactionModel) ToDomain() *ledger.Transaction {
	return &ledger.Transaction{
		OrgAggregateRoot: shared.OrgAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
				Version:    m.Version,
			},
			OrganizationID: m.OrganizationID,
			SmartCode:      m.SmartCode,
			CreatedBy:      m.CreatedBy,
		},
		TransactionType:    m.TransactionType,
		TransactionCode:    m.TransactionCode,
		IdempotencyKey:     m.IdempotencyKey,
		RequestFingerprint: m.RequestFingerprint,
		PostingKind:        governance.Kind(m.PostingKind),
		SourceEntityID:     m.SourceEntityID,
		TargetEntityID:     m.TargetEntityID,
		TotalAmount:        m.TotalAmount,
		Status:             ledger.Status(m.TransactionStatus),
		TransactionDate:    m.TransactionDate.UTC(),
		FiscalPeriod:       m.FiscalPeriod,
		Currency:           m.Currency,
		Metadata:           decodeDocument(m.Metadata),
		ReversalOfID:       m.ReversalOfID,
		ReversedByID:       m.ReversedByID,
		ReversedAt:         m.ReversedAt,
		ReversalReason:     m.ReversalReason,
	}
}

// FromDomain populates the header from a domain Transaction
func (m *TransactionModel) FromDomain(t *ledger.Transaction) {
	m.ID = t.ID
	m.OrganizationID = t.OrganizationID
	m.TransactionType = t.TransactionType
	m.TransactionCode = t.TransactionCode
	m.IdempotencyKey = t.IdempotencyKey
	m.RequestFingerprint = t.RequestFingerprint
	m.SmartCode = t.SmartCode
	m.PostingKind = string(t.PostingKind)
	m.SourceEntityID = t.SourceEntityID
	m.TargetEntityID = t.TargetEntityID
	m.TotalAmount = t.TotalAmount
	m.TransactionStatus = string(t.Status)
	m.TransactionDate = t.TransactionDate
	m.FiscalPeriod = t.FiscalPeriod
	m.Currency = t.Currency
	m.Metadata = encodeDocument(t.Metadata)
	m.ReversalOfID = t.ReversalOfID
	m.ReversedByID = t.ReversedByID
	m.ReversedAt = t.ReversedAt
	m.ReversalReason = t.ReversalReason
	m.CreatedBy = t.CreatedBy
	m.CreatedAt = t.CreatedAt
	m.UpdatedAt = t.UpdatedAt
	m.Version = t.Version
}

// TransactionModelFromDomain creates a new persistence model from a domain Transaction
func TransactionModelFromDomain(t *ledger.Transaction) *TransactionModel {
	m := &TransactionModel{}
	m.FromDomain(t)
	return m
}

// TransactionLineModel is the persistence model for universal_transaction_lines.
// Side and account are stored as columns for trial balance queries and echoed in line_data.
type TransactionLineModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primaryKey"`
	TransactionID  uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:uq_universal_transaction_lines_number,priority:1"`
	OrganizationID uuid.UUID       `gorm:"type:uuid;not null;index:idx_universal_transaction_lines_org"`
	LineNumber     int             `gorm:"not null;uniqueIndex:uq_universal_transaction_lines_number,priority:2"`
	LineType       string          `gorm:"type:varchar(100);not null;default:''"`
	Description    string          `gorm:"type:text;not null;default:''"`
	EntityID       *uuid.UUID      `gorm:"type:uuid"`
	Quantity       decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	UnitAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	LineAmount     decimal.Decimal `gorm:"type:decimal(20,4);not null"`
	SmartCode      string          `gorm:"type:varchar(200);not null"`
	Side           string          `gorm:"type:varchar(2);not null;default:''"`
	Account        string          `gorm:"type:varchar(100);not null;default:''"`
	LineData       string          `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TransactionLineModel) TableName() string {
	return "universal_transaction_lines"
}

// ToDomain converts the persistence model to a domain Line
func (m *TransactionLineModel) ToDomain() *ledger.Line {
	l := &ledger.Line{
		ID:             m.ID,
		TransactionID:  m.TransactionID,
		OrganizationID: m.OrganizationID,
		LineNumber:     m.LineNumber,
		LineType:       m.LineType,
		Description:    m.Description,
		EntityID:       m.EntityID,
		Quantity:       m.Quantity,
		UnitAmount:     m.UnitAmount,
		LineAmount:     m.LineAmount,
		SmartCode:      m.SmartCode,
		Side:           ledger.Side(m.Side),
		Account:        m.Account,
		CreatedAt:      m.CreatedAt,
	}
	data := decodeDocument(m.LineData)
	if c, ok := data["currency"].(string); ok {
		l.Currency = c
	}
	for _, k := range []string{"side", "account", "amount", "currency"} {
		delete(data, k)
	}
	if len(data) > 0 {
		l.Extra = data
	}
	return l
}

// FromDomain populates the persistence model from a domain Line
func (m *TransactionLineModel) FromDomain(l *ledger.Line) {
	m.ID = l.ID
	m.TransactionID = l.TransactionID
	m.OrganizationID = l.OrganizationID
	m.LineNumber = l.LineNumber
	m.LineType = l.LineType
	m.Description = l.Description
	m.EntityID = l.EntityID
	m.Quantity = l.Quantity
	m.UnitAmount = l.UnitAmount
	m.LineAmount = l.LineAmount
	m.SmartCode = l.SmartCode
	m.Side = string(l.Side)
	m.Account = l.Account
	m.LineData = encodeDocument(l.LineData())
	m.CreatedAt = l.CreatedAt
}

// TransactionLineModelFromDomain creates a new persistence model from a domain Line
func TransactionLineModelFromDomain(l *ledger.Line) *TransactionLineModel {
	m := &TransactionLineModel{}
	m.FromDomain(l)
	return m
}
