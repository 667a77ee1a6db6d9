// Package relationship models directed, typed edges between entities.
package relationship

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

const (
	CodeInvalidRelationship  = "INVALID_RELATIONSHIP"
	CodeRelationshipNotFound = "RELATIONSHIP_NOT_FOUND"
	CodeRelinkConflict       = "RELINK_CONFLICT"
	CodeEndpointNotFound     = "ENDPOINT_NOT_FOUND"
)

// Type is an upper-case relationship type such as MEMBER_OF
type Type string

// Identity edge types may point at entities held in the platform organization
const (
	TypeMemberOf  Type = "MEMBER_OF"
	TypeHasRole   Type = "HAS_ROLE"
	TypeHasStatus Type = "HAS_STATUS"
)

var typePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// ParseType trims and upper-cases s and validates the result
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !typePattern.MatchString(string(t)) {
		return "", shared.NewValidationError(CodeInvalidRelationship, "invalid relationship_type %q", s)
	}
	return t, nil
}

// IsIdentity reports whether the edge type belongs to the identity registry
func (t Type) IsIdentity() bool {
	return t == TypeMemberOf || t == TypeHasRole
}

// Relationship is a directed edge from one entity to another
type Relationship struct {
	ID               uuid.UUID
	OrganizationID   uuid.UUID
	FromEntityID     uuid.UUID
	ToEntityID       uuid.UUID
	RelationshipType Type
	IsActive         bool
	Data             map[string]any
	SmartCode        string
	CreatedBy        *uuid.UUID
	CreatedAt        time.Time
	UpdatedAt        time.Time
	DeactivatedAt    *time.Time
}

// NewInput describes an edge to create
type NewInput struct {
	From      uuid.UUID
	To        uuid.UUID
	Type      Type
	Data      map[string]any
	SmartCode string
}

// NewRelationship validates input and creates an active edge in the scope's organization
func NewRelationship(scope shared.OrgScope, in NewInput) (*Relationship, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if in.From == uuid.Nil || in.To == uuid.Nil {
		return nil, shared.NewValidationError(CodeInvalidRelationship, "from_entity_id and to_entity_id are required")
	}
	if !typePattern.MatchString(string(in.Type)) {
		return nil, shared.NewValidationError(CodeInvalidRelationship, "invalid relationship_type %q", in.Type)
	}
	if strings.TrimSpace(in.SmartCode) == "" {
		return nil, shared.NewValidationError(CodeInvalidRelationship, "smart_code is required")
	}
	now := time.Now().UTC()
	return &Relationship{
		ID:               uuid.New(),
		OrganizationID:   scope.OrganizationID,
		FromEntityID:     in.From,
		ToEntityID:       in.To,
		RelationshipType: in.Type,
		IsActive:         true,
		Data:             in.Data,
		SmartCode:        in.SmartCode,
		CreatedBy:        scope.ActorPtr(),
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Deactivate ends the edge
func (r *Relationship) Deactivate() {
	if !r.IsActive {
		return
	}
	now := time.Now().UTC()
	r.IsActive = false
	r.DeactivatedAt = &now
	r.UpdatedAt = now
}

// DataString returns a string value from the relationship data
func (r *Relationship) DataString(key string) string {
	if r.Data == nil {
		return ""
	}
	s, _ := r.Data[key].(string)
	return s
}

// DataStrings returns a string list from the relationship data
func (r *Relationship) DataStrings(key string) []string {
	if r.Data == nil {
		return nil
	}
	switch v := r.Data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// Filter narrows a relationship query
type Filter struct {
	From       *uuid.UUID
	To         *uuid.UUID
	Type       Type
	ActiveOnly bool
}

// Repository persists relationships. Every method is scoped to one organization.
type Repository interface {
	FindByID(ctx context.Context, organizationID, id uuid.UUID) (*Relationship, error)
	Find(ctx context.Context, organizationID uuid.UUID, filter Filter) ([]*Relationship, error)
	// Create inserts r. A violation of the active-edge uniqueness returns ErrRelinkConflict
	// and leaves any enclosing transaction usable.
	Create(ctx context.Context, r *Relationship) error
	// Deactivate ends every active edge matching from, to and type and returns the number ended
	Deactivate(ctx context.Context, organizationID, from, to uuid.UUID, relType Type) (int64, error)
	// DeactivateAllFor ends every active edge touching entityID
	DeactivateAllFor(ctx context.Context, organizationID, entityID uuid.UUID) (int64, error)
}

// ErrRelinkConflict is returned when another writer created the same active edge
var ErrRelinkConflict = shared.NewConflictError(CodeRelinkConflict, "an active relationship with the same endpoints and type already exists")
