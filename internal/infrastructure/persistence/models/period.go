package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/ledger"
)

// FiscalPeriodModel is the persistence model for fiscal_periods
type FiscalPeriodModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_fiscal_periods_code,priority:1"`
	PeriodCode     string     `gorm:"type:varchar(7);not null;uniqueIndex:uq_fiscal_periods_code,priority:2"`
	Status         string     `gorm:"type:varchar(10);not null"`
	ClosedAt       *time.Time
	ClosedBy       *uuid.UUID `gorm:"type:uuid"`
	UpdatedAt      time.Time  `gorm:"not null"`
}

// TableName returns the table name for GORM
func (FiscalPeriodModel) TableName() string {
	return "fiscal_periods"
}

// ToDomain converts the persistence model to a domain FiscalPeriod
func (m *FiscalPeriodModel) ToDomain() *ledger.FiscalPeriod {
	return &ledger.FiscalPeriod{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		PeriodCode:     m.PeriodCode,
		Status:         ledger.PeriodStatus(m.Status),
		ClosedAt:       m.ClosedAt,
		ClosedBy:       m.ClosedBy,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain FiscalPeriod
func (m *FiscalPeriodModel) FromDomain(p *ledger.FiscalPeriod) {
	m.ID = p.ID
	m.OrganizationID = p.OrganizationID
	m.PeriodCode = p.PeriodCode
	m.Status = string(p.Status)
	m.ClosedAt = p.ClosedAt
	m.ClosedBy = p.ClosedBy
	m.UpdatedAt = p.UpdatedAt
}

// FiscalPeriodModelFromDomain creates a new persistence model from a domain FiscalPeriod
func FiscalPeriodModelFromDomain(p *ledger.FiscalPeriod) *FiscalPeriodModel {
	m := &FiscalPeriodModel{}
	m.FromDomain(p)
	return m
}
