package ledger

import (
	"context"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

const CodeInvalidPeriod = "INVALID_PERIOD"

var periodPattern = regexp.MustCompile(`^[0-9]{4}-(0[1-9]|1[0-2])$`)

// PeriodCode is the fiscal period (YYYY-MM, UTC) a date falls in
func PeriodCode(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// ValidatePeriodCode checks the YYYY-MM shape
func ValidatePeriodCode(code string) error {
	if !periodPattern.MatchString(code) {
		return shared.NewValidationError(CodeInvalidPeriod, "invalid fiscal period %q, expected YYYY-MM", code)
	}
	return nil
}

// PeriodStatus is the posting state of a fiscal period
type PeriodStatus string

const (
	PeriodOpen   PeriodStatus = "OPEN"
	PeriodClosed PeriodStatus = "CLOSED"
)

// FiscalPeriod tracks whether postings into one month are allowed.
// A period without a stored row is open.
type FiscalPeriod struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	PeriodCode     string
	Status         PeriodStatus
	ClosedAt       *time.Time
	ClosedBy       *uuid.UUID
	UpdatedAt      time.Time
}

// NewFiscalPeriod creates an open period row
func NewFiscalPeriod(organizationID uuid.UUID, code string) (*FiscalPeriod, error) {
	if err := shared.RequireOrganization(organizationID); err != nil {
		return nil, err
	}
	if err := ValidatePeriodCode(code); err != nil {
		return nil, err
	}
	return &FiscalPeriod{
		ID:             uuid.New(),
		OrganizationID: organizationID,
		PeriodCode:     code,
		Status:         PeriodOpen,
		UpdatedAt:      time.Now().UTC(),
	}, nil
}

// IsClosed reports whether postings are blocked
func (p *FiscalPeriod) IsClosed() bool {
	return p != nil && p.Status == PeriodClosed
}

// Close blocks further postings
func (p *FiscalPeriod) Close(actor *uuid.UUID) error {
	if p.IsClosed() {
		return shared.NewConflictError(CodePeriodClosed, "period %s is already closed", p.PeriodCode)
	}
	now := time.Now().UTC()
	p.Status = PeriodClosed
	p.ClosedAt = &now
	p.ClosedBy = actor
	p.UpdatedAt = now
	return nil
}

// Reopen allows postings again
func (p *FiscalPeriod) Reopen() error {
	if !p.IsClosed() {
		return shared.NewConflictError(CodeInvalidState, "period %s is not closed", p.PeriodCode)
	}
	p.Status = PeriodOpen
	p.ClosedAt = nil
	p.ClosedBy = nil
	p.UpdatedAt = time.Now().UTC()
	return nil
}

// CheckPostingAllowed rejects postings into a closed period unless the
// smart code is a period-close override.
func CheckPostingAllowed(period *FiscalPeriod, code string, kind governance.Kind) error {
	if !period.IsClosed() || kind == governance.KindPeriodCloseOverride {
		return nil
	}
	return shared.NewPeriodClosedError(CodePeriodClosed, "fiscal period %s is closed", code)
}

// PeriodRepository persists fiscal period rows
type PeriodRepository interface {
	// Find returns the period row or a NotFoundError when none is stored
	Find(ctx context.Context, organizationID uuid.UUID, code string) (*FiscalPeriod, error)
	Save(ctx context.Context, p *FiscalPeriod) error
	// Lock holds the period until the enclosing transaction ends. Postings take it shared
	// and close or reopen take it exclusive, so no posting commits into a period closed under it.
	Lock(ctx context.Context, organizationID uuid.UUID, code string, exclusive bool) error
	List(ctx context.Context, organizationID uuid.UUID) ([]*FiscalPeriod, error)
}
