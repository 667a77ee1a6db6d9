package entity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

// Filter narrows an entity query within one organization
type Filter struct {
	EntityType      Type
	Status          Status
	SmartCodePrefix string
	Search          string // case-insensitive match on the normalized name
	IncludeDeleted  bool
}

// Cursor is a keyset position over (created_at, id)
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Repository persists entities. Every method is scoped to one organization.
type Repository interface {
	FindByID(ctx context.Context, organizationID, id uuid.UUID) (*Entity, error)
	FindByIDs(ctx context.Context, organizationID uuid.UUID, ids []uuid.UUID) ([]*Entity, error)
	FindByCode(ctx context.Context, organizationID uuid.UUID, entityType Type, code string) (*Entity, error)
	FindByNormalizedName(ctx context.Context, organizationID uuid.UUID, entityType Type, normalized string) (*Entity, error)
	// ScanCandidates returns up to limit non-deleted entities of entityType ordered by
	// (created_at, id), starting after the cursor when one is given.
	ScanCandidates(ctx context.Context, organizationID uuid.UUID, entityType Type, after *Cursor, limit int) ([]*Entity, error)
	// Create inserts e. A uniqueness violation returns a ConflictError with code DUPLICATE_ENTITY
	// and leaves any enclosing transaction usable.
	Create(ctx context.Context, e *Entity) error
	Update(ctx context.Context, e *Entity) error
	Query(ctx context.Context, organizationID uuid.UUID, filter Filter, page shared.Page) ([]*Entity, int64, error)
}

// ErrDuplicate is returned by Repository.Create on a uniqueness violation
var ErrDuplicate = shared.NewConflictError(CodeDuplicateEntity, "an entity with the same name or code already exists")
