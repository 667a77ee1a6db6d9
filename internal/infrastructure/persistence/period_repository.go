package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/models"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/tenant"
)

// GormPeriodRepository implements ledger.PeriodRepository using GORM
type GormPeriodRepository struct {
	db *gorm.DB
}

// NewGormPeriodRepository creates a new GormPeriodRepository
func NewGormPeriodRepository(db *gorm.DB) *GormPeriodRepository {
	return &GormPeriodRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *GormPeriodRepository) WithTx(tx *gorm.DB) *GormPeriodRepository {
	return &GormPeriodRepository{db: tx}
}

// Find returns the stored period row
func (r *GormPeriodRepository) Find(ctx context.Context, organizationID uuid.UUID, code string) (*ledger.FiscalPeriod, error) {
	var m models.FiscalPeriodModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.OrganizationScope(organizationID)).
		Where("period_code = ?", code).
		First(&m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError(ledger.CodeInvalidPeriod, "fiscal period %s has no stored state", code)
		}
		return nil, fmt.Errorf("find fiscal period: %w", err)
	}
	return m.ToDomain(), nil
}

// Save upserts the period row on (organization_id, period_code)
func (r *GormPeriodRepository) Save(ctx context.Context, p *ledger.FiscalPeriod) error {
	m := models.FiscalPeriodModelFromDomain(p)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "organization_id"}, {Name: "period_code"}},
		DoUpdates: clause.AssignmentColumns([]string{"status", "closed_at", "closed_by", "updated_at"}),
	}).Create(m).Error
	if err != nil {
		return fmt.Errorf("save fiscal period: %w", err)
	}
	return nil
}

// Lock takes a transaction-scoped advisory lock on the period. Other dialects
// serialize writers on their own and skip it.
func (r *GormPeriodRepository) Lock(ctx context.Context, organizationID uuid.UUID, code string, exclusive bool) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	fn := "pg_advisory_xact_lock_shared"
	if exclusive {
		fn = "pg_advisory_xact_lock"
	}
	key := fmt.Sprintf("ledger:period:%s:%s", organizationID, code)
	if err := r.db.WithContext(ctx).Exec("SELECT "+fn+"(hashtext(?))", key).Error; err != nil {
		return fmt.Errorf("lock fiscal period: %w", err)
	}
	return nil
}

// List returns the stored periods ordered by code
func (r *GormPeriodRepository) List(ctx context.Context, organizationID uuid.UUID) ([]*ledger.FiscalPeriod, error) {
	var rows []models.FiscalPeriodModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.OrganizationScope(organizationID)).
		Order("period_code ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list fiscal periods: %w", err)
	}
	out := make([]*ledger.FiscalPeriod, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

var _ ledger.PeriodRepository = (*GormPeriodRepository)(nil)
