package attribute

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

// FieldNormalizedName holds the comparison form of an entity's name
const FieldNormalizedName = "normalized_name"

var fieldNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Field is one appended value of a named attribute. Rows are never updated;
// the most recent row per (entity, field name) is the current value.
type Field struct {
	ID             uuid.UUID
	OrganizationID uuid.UUID
	EntityID       uuid.UUID
	FieldName      string
	Value          Value
	SmartCode      string
	CreatedBy      *uuid.UUID
	CreatedAt      time.Time
}

// NewField validates and builds a field row with a time-ordered id
func NewField(scope shared.OrgScope, entityID uuid.UUID, name string, value Value, smartCode string) (*Field, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	if !fieldNamePattern.MatchString(name) {
		return nil, shared.NewValidationError(CodeInvalidField, "invalid field name %q", name)
	}
	if entityID == uuid.Nil {
		return nil, shared.NewValidationError(CodeInvalidField, "entity_id is required for field %s", name)
	}
	if value.IsZero() {
		return nil, shared.NewValidationError(CodeInvalidField, "field %s has no value", name)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	return &Field{
		ID:             id,
		OrganizationID: scope.OrganizationID,
		EntityID:       entityID,
		FieldName:      name,
		Value:          value,
		SmartCode:      smartCode,
		CreatedBy:      scope.ActorPtr(),
		CreatedAt:      time.Now().UTC(),
	}, nil
}

// Repository persists field rows. Every method is scoped to one organization.
type Repository interface {
	Append(ctx context.Context, fields ...*Field) error
	// ListForEntities returns every row of the given entities ordered oldest first
	ListForEntities(ctx context.Context, organizationID uuid.UUID, entityIDs []uuid.UUID) ([]*Field, error)
	// History returns the rows of one field ordered oldest first
	History(ctx context.Context, organizationID, entityID uuid.UUID, name string) ([]*Field, error)
}
