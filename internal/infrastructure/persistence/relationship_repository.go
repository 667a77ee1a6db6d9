package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerbase/backend/internal/domain/relationship"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/models"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/tenant"
)

// GormRelationshipRepository implements relationship.Repository using GORM
type GormRelationshipRepository struct {
	db *gorm.DB
}

// NewGormRelationshipRepository creates a new GormRelationshipRepository
func NewGormRelationshipRepository(db *gorm.DB) *GormRelationshipRepository {
	return &GormRelationshipRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *GormRelationshipRepository) WithTx(tx *gorm.DB) *GormRelationshipRepository {
	return &GormRelationshipRepository{db: tx}
}

func (r *GormRelationshipRepository) scoped(ctx context.Context, organizationID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.RelationshipModel{}).Scopes(tenant.OrganizationScope(organizationID))
}

// FindByID finds an edge by id
func (r *GormRelationshipRepository) FindByID(ctx context.Context, organizationID, id uuid.UUID) (*relationship.Relationship, error) {
	var m models.RelationshipModel
	if err := r.scoped(ctx, organizationID).Where("id = ?", id).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError(relationship.CodeRelationshipNotFound, "relationship %s not found", id)
		}
		return nil, fmt.Errorf("find relationship: %w", err)
	}
	return m.ToDomain(), nil
}

// Find lists edges matching filter, oldest first
func (r *GormRelationshipRepository) Find(ctx context.Context, organizationID uuid.UUID, filter relationship.Filter) ([]*relationship.Relationship, error) {
	q := r.scoped(ctx, organizationID)
	if filter.From != nil {
		q = q.Where("from_entity_id = ?", *filter.From)
	}
	if filter.To != nil {
		q = q.Where("to_entity_id = ?", *filter.To)
	}
	if filter.Type != "" {
		q = q.Where("relationship_type = ?", filter.Type)
	}
	if filter.ActiveOnly {
		q = q.Where("is_active = ?", true)
	}
	var rows []models.RelationshipModel
	if err := q.Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("find relationships: %w", err)
	}
	out := make([]*relationship.Relationship, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Create inserts the edge inside a savepoint
func (r *GormRelationshipRepository) Create(ctx context.Context, rel *relationship.Relationship) error {
	m := models.RelationshipModelFromDomain(rel)
	err := inSavepoint(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Create(m).Error
	})
	if isDuplicate(err) {
		return relationship.ErrRelinkConflict
	}
	if err != nil {
		return fmt.Errorf("create relationship: %w", err)
	}
	return nil
}

// Deactivate ends the active edges with the given endpoints and type
func (r *GormRelationshipRepository) Deactivate(ctx context.Context, organizationID, from, to uuid.UUID, relType relationship.Type) (int64, error) {
	res := r.scoped(ctx, organizationID).
		Where("from_entity_id = ? AND to_entity_id = ? AND relationship_type = ? AND is_active = ?", from, to, relType, true).
		Updates(deactivation(time.Now().UTC()))
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate relationship: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// DeactivateAllFor ends every active edge from or to entityID
func (r *GormRelationshipRepository) DeactivateAllFor(ctx context.Context, organizationID, entityID uuid.UUID) (int64, error) {
	res := r.scoped(ctx, organizationID).
		Where("(from_entity_id = ? OR to_entity_id = ?) AND is_active = ?", entityID, entityID, true).
		Updates(deactivation(time.Now().UTC()))
	if res.Error != nil {
		return 0, fmt.Errorf("deactivate relationships: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func deactivation(now time.Time) map[string]any {
	return map[string]any{
		"is_active":      false,
		"deactivated_at": now,
		"updated_at":     now,
	}
}

var _ relationship.Repository = (*GormRelationshipRepository)(nil)
