package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerbase/backend/internal/domain/attribute"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/models"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/tenant"
)

// GormDynamicFieldRepository implements attribute.Repository using GORM.
// Rows are only ever inserted.
type GormDynamicFieldRepository struct {
	db *gorm.DB
}

// NewGormDynamicFieldRepository creates a new GormDynamicFieldRepository
func NewGormDynamicFieldRepository(db *gorm.DB) *GormDynamicFieldRepository {
	return &GormDynamicFieldRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *GormDynamicFieldRepository) WithTx(tx *gorm.DB) *GormDynamicFieldRepository {
	return &GormDynamicFieldRepository{db: tx}
}

// Append inserts field rows in one statement
func (r *GormDynamicFieldRepository) Append(ctx context.Context, fields ...*attribute.Field) error {
	if len(fields) == 0 {
		return nil
	}
	rows := make([]*models.DynamicFieldModel, 0, len(fields))
	for _, f := range fields {
		rows = append(rows, models.DynamicFieldModelFromDomain(f))
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return fmt.Errorf("append fields: %w", err)
	}
	return nil
}

// ListForEntities returns every row of the given entities, oldest first
func (r *GormDynamicFieldRepository) ListForEntities(ctx context.Context, organizationID uuid.UUID, entityIDs []uuid.UUID) ([]*attribute.Field, error) {
	if len(entityIDs) == 0 {
		return []*attribute.Field{}, nil
	}
	var rows []models.DynamicFieldModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.OrganizationScope(organizationID)).
		Where("entity_id IN ?", entityIDs).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list fields: %w", err)
	}
	return toFields(rows), nil
}

// History returns the rows of one field, oldest first
func (r *GormDynamicFieldRepository) History(ctx context.Context, organizationID, entityID uuid.UUID, name string) ([]*attribute.Field, error) {
	var rows []models.DynamicFieldModel
	err := r.db.WithContext(ctx).
		Scopes(tenant.OrganizationScope(organizationID)).
		Where("entity_id = ? AND field_name = ?", entityID, name).
		Order("created_at ASC, id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("field history: %w", err)
	}
	return toFields(rows), nil
}

func toFields(rows []models.DynamicFieldModel) []*attribute.Field {
	out := make([]*attribute.Field, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out
}

var _ attribute.Repository = (*GormDynamicFieldRepository)(nil)
