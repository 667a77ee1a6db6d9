package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/models"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/tenant"
)

// GormEntityRepository implements entity.Repository using GORM
type GormEntityRepository struct {
	db *gorm.DB
}

// NewGormEntityRepository creates a new GormEntityRepository
func NewGormEntityRepository(db *gorm.DB) *GormEntityRepository {
	return &GormEntityRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *GormEntityRepository) WithTx(tx *gorm.DB) *GormEntityRepository {
	return &GormEntityRepository{db: tx}
}

func (r *GormEntityRepository) scoped(ctx context.Context, organizationID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.EntityModel{}).Scopes(tenant.OrganizationScope(organizationID))
}

// FindByID finds an entity by id, including deleted ones
func (r *GormEntityRepository) FindByID(ctx context.Context, organizationID, id uuid.UUID) (*entity.Entity, error) {
	var m models.EntityModel
	if err := r.scoped(ctx, organizationID).Where("id = ?", id).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, entity.NotFound(id)
		}
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return m.ToDomain(), nil
}

// FindByIDs returns the entities with the given ids; missing ids are skipped
func (r *GormEntityRepository) FindByIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]*entity.Entity, error) {
	out := make([]*entity.Entity, 0, len(ids))
	for _, part := range chunk(ids, lookupChunkSize) {
		var rows []models.EntityModel
		if err := r.scoped(ctx, organizationID).Where("id IN ?", part).Find(&rows).Error; err != nil {
			return nil, fmt.Errorf("find entities: %w", err)
		}
		for i := range rows {
			out = append(out, rows[i].ToDomain())
		}
	}
	return out, nil
}

// FindByCode finds a live entity by (type, code)
func (r *GormEntityRepository) FindByCode(ctx context.Context, organizationID uuid.UUID, entityType entity.Type, code string) (*entity.Entity, error) {
	if code == "" {
		return nil, shared.NewNotFoundError(entity.CodeEntityNotFound, "entity code is empty")
	}
	return r.findLive(ctx, organizationID, entityType, "entity_code = ?", code)
}

// FindByNormalizedName finds a live entity by (type, normalized name)
func (r *GormEntityRepository) FindByNormalizedName(ctx context.Context, organizationID uuid.UUID, entityType entity.Type, normalized string) (*entity.Entity, error) {
	return r.findLive(ctx, organizationID, entityType, "normalized_name = ?", normalized)
}

func (r *GormEntityRepository) findLive(ctx context.Context, organizationID uuid.UUID, entityType entity.Type, cond string, value string) (*entity.Entity, error) {
	var m models.EntityModel
	err := r.scoped(ctx, organizationID).
		Where("entity_type = ? AND status <> ?", entityType, entity.StatusDeleted).
		Where(cond, value).
		Order("created_at ASC, id ASC").
		First(&m).Error
	if err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError(entity.CodeEntityNotFound, "no %s entity matches %q", entityType, value)
		}
		return nil, fmt.Errorf("find entity: %w", err)
	}
	return m.ToDomain(), nil
}

// ScanCandidates pages through live entities of one type in (created_at, id) order
func (r *GormEntityRepository) ScanCandidates(ctx context.Context, organizationID uuid.UUID, entityType entity.Type, after *entity.Cursor, limit int) ([]*entity.Entity, error) {
	q := r.scoped(ctx, organizationID).
		Where("entity_type = ? AND status <> ?", entityType, entity.StatusDeleted)
	if after != nil {
		q = q.Where("(created_at > ? OR (created_at = ? AND id > ?))", after.CreatedAt, after.CreatedAt, after.ID)
	}
	var rows []models.EntityModel
	if err := q.Order("created_at ASC, id ASC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("scan candidates: %w", err)
	}
	out := make([]*entity.Entity, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

// Create inserts the entity inside a savepoint
func (r *GormEntityRepository) Create(ctx context.Context, e *entity.Entity) error {
	m := models.EntityModelFromDomain(e)
	err := inSavepoint(ctx, r.db, func(tx *gorm.DB) error {
		return tx.Create(m).Error
	})
	if isDuplicate(err) {
		return entity.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create entity: %w", err)
	}
	return nil
}

// Update writes every mutable column of e
func (r *GormEntityRepository) Update(ctx context.Context, e *entity.Entity) error {
	m := models.EntityModelFromDomain(e)
	var affected int64
	err := inSavepoint(ctx, r.db, func(tx *gorm.DB) error {
		res := tx.Model(&models.EntityModel{}).
			Scopes(tenant.OrganizationScope(e.OrganizationID)).
			Where("id = ?", e.ID).
			Updates(map[string]any{
				"entity_name":     m.EntityName,
				"normalized_name": m.NormalizedName,
				"entity_code":     m.EntityCode,
				"status":          m.Status,
				"smart_code":      m.SmartCode,
				"metadata":        m.Metadata,
				"updated_at":      m.UpdatedAt,
				"version":         m.Version,
			})
		affected = res.RowsAffected
		return res.Error
	})
	if isDuplicate(err) {
		return entity.ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update entity: %w", err)
	}
	if affected == 0 {
		return entity.NotFound(e.ID)
	}
	return nil
}

// Query lists entities matching filter, newest first, with the total count
func (r *GormEntityRepository) Query(ctx context.Context, organizationID uuid.UUID, filter entity.Filter, page shared.Page) ([]*entity.Entity, int64, error) {
	q := r.scoped(ctx, organizationID)
	if filter.EntityType != "" {
		q = q.Where("entity_type = ?", filter.EntityType)
	}
	switch {
	case filter.Status != "":
		q = q.Where("status = ?", filter.Status)
	case !filter.IncludeDeleted:
		q = q.Where("status <> ?", entity.StatusDeleted)
	}
	if filter.SmartCodePrefix != "" {
		q = q.Where(`smart_code LIKE ? ESCAPE '\'`, likePrefix(filter.SmartCodePrefix))
	}
	if filter.Search != "" {
		q = q.Where(`normalized_name LIKE ? ESCAPE '\'`, likeContains(entity.Normalize(filter.Search)))
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count entities: %w", err)
	}

	var rows []models.EntityModel
	if err := q.Order("created_at DESC, id DESC").Limit(page.Limit).Offset(page.Offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("query entities: %w", err)
	}
	out := make([]*entity.Entity, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, total, nil
}

// lookupChunkSize bounds IN lists built from caller-supplied ids
const lookupChunkSize = 500

var _ entity.Repository = (*GormEntityRepository)(nil)
