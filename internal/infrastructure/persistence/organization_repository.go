package persistence

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerbase/backend/internal/domain/organization"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/models"
)

// GormOrganizationRepository implements organization.Repository using GORM.
// Organizations are the tenant boundary and are not themselves organization scoped.
type GormOrganizationRepository struct {
	db *gorm.DB
}

// NewGormOrganizationRepository creates a new GormOrganizationRepository
func NewGormOrganizationRepository(db *gorm.DB) *GormOrganizationRepository {
	return &GormOrganizationRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *GormOrganizationRepository) WithTx(tx *gorm.DB) *GormOrganizationRepository {
	return &GormOrganizationRepository{db: tx}
}

// FindByID finds an organization by id
func (r *GormOrganizationRepository) FindByID(ctx context.Context, id uuid.UUID) (*organization.Organization, error) {
	var m models.OrganizationModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, organization.NotFound(id)
		}
		return nil, fmt.Errorf("find organization: %w", err)
	}
	return m.ToDomain(), nil
}

// FindByIDs returns the organizations with the given ids; missing ids are skipped
func (r *GormOrganizationRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*organization.Organization, error) {
	out := make([]*organization.Organization, 0, len(ids))
	for _, part := range chunk(ids, lookupChunkSize) {
		var rows []models.OrganizationModel
		if err := r.db.WithContext(ctx).Where("id IN ?", part).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("find organizations: %w", err)
		}
		for i := range rows {
			out = append(out, rows[i].ToDomain())
		}
	}
	return out, nil
}

// FindByCode finds an organization by its code
func (r *GormOrganizationRepository) FindByCode(ctx context.Context, code string) (*organization.Organization, error) {
	var m models.OrganizationModel
	code = strings.ToUpper(strings.TrimSpace(code))
	if err := r.db.WithContext(ctx).Where("organization_code = ?", code).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError(organization.CodeOrganizationNotFound, "organization %s not found", code)
		}
		return nil, fmt.Errorf("find organization by code: %w", err)
	}
	return m.ToDomain(), nil
}

// Create inserts the organization inside a savepoint
func (r *GormOrganizationRepository) Create(ctx context.Context, o *organization.Organization) error {
	m := models.OrganizationModelFromDomain(o)
	err := inSavepoint(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Create(m).Error
	})
	if isDuplicate(err) {
		return organization.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create organization: %w", err)
	}
	return nil
}

// Update writes the mutable columns of o
func (r *GormOrganizationRepository) Update(ctx context.Context, o *organization.Organization) error {
	m := models.OrganizationModelFromDomain(o)
	res := r.db.WithContext(ctx).Model(&models.OrganizationModel{}).
		Where("id = ?", o.ID).
		Updates(map[string]any{
			"name":       m.Name,
			"status":     m.Status,
			"settings":   m.Settings,
			"smart_code": m.SmartCode,
			"updated_at": m.UpdatedAt,
			"version":    m.Version,
		})
	if res.Error != nil {
		return fmt.Errorf("update organization: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return organization.NotFound(o.ID)
	}
	return nil
}

// List returns organizations ordered by name
func (r *GormOrganizationRepository) List(ctx context.Context, page shared.Page) ([]*organization.Organization, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.OrganizationModel{})
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count organizations: %w", err)
	}
	var rows []models.OrganizationModel
	if err := q.Order("name ASC, id ASC").Limit(page.Limit).Offset(page.Offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("list organizations: %w", err)
	}
	out := make([]*organization.Organization, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, total, nil
}

var _ organization.Repository = (*GormOrganizationRepository)(nil)
