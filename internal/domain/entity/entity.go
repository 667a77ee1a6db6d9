package entity

import (
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

const (
	CodeInvalidEntity   = "INVALID_ENTITY"
	CodeEntityNotFound  = "ENTITY_NOT_FOUND"
	CodeDuplicateEntity = "DUPLICATE_ENTITY"
)

// Well-known entity types used by the identity and organization registries
const (
	TypeUser         Type = "USER"
	TypeRole         Type = "ROLE"
	TypeOrganization Type = "ORGANIZATION"
)

var typePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// Type is an upper-case entity type such as CUSTOMER or ROLE
type Type string

// ParseType trims and upper-cases s and validates the result
func ParseType(s string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(s)))
	if !t.IsValid() {
		return "", shared.NewValidationError(CodeInvalidEntity, "invalid entity_type %q", s)
	}
	return t, nil
}

// IsValid checks the type shape
func (t Type) IsValid() bool {
	return typePattern.MatchString(string(t))
}

func (t Type) String() string {
	return string(t)
}

// Status represents the lifecycle status of an entity
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusDeleted  Status = "DELETED"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusInactive, StatusDeleted:
		return true
	}
	return false
}

// Entity is the generic business object
type Entity struct {
	shared.OrgAggregateRoot
	EntityType     Type
	EntityName     string
	NormalizedName string
	EntityCode     string
	Status         Status
	Metadata       map[string]any
}

// NewInput carries the fields needed to create an entity
type NewInput struct {
	ID         uuid.UUID // optional; used for organization anchors
	EntityType Type
	EntityName string
	EntityCode string
	SmartCode  string
	Status     Status
	Metadata   map[string]any
}

// NewEntity validates input and creates an entity in the scope's organization
func NewEntity(scope shared.OrgScope, in NewInput) (*Entity, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if !in.EntityType.IsValid() {
		return nil, shared.NewValidationError(CodeInvalidEntity, "invalid entity_type %q", in.EntityType)
	}
	name := strings.TrimSpace(in.EntityName)
	if name == "" {
		return nil, shared.NewValidationError(CodeInvalidEntity, "entity_name is required")
	}
	normalized := Normalize(name)
	if normalized == "" {
		return nil, shared.NewValidationError(CodeInvalidEntity, "entity_name %q has no comparable characters", name)
	}
	if strings.TrimSpace(in.SmartCode) == "" {
		return nil, shared.NewValidationError(CodeInvalidEntity, "smart_code is required")
	}
	status := in.Status
	if status == "" {
		status = StatusActive
	}
	if !status.IsValid() || status == StatusDeleted {
		return nil, shared.NewValidationError(CodeInvalidEntity, "invalid status %q", in.Status)
	}

	e := &Entity{
		OrgAggregateRoot: shared.NewOrgAggregateRoot(scope, in.SmartCode),
		EntityType:       in.EntityType,
		EntityName:       name,
		NormalizedName:   normalized,
		EntityCode:       strings.TrimSpace(in.EntityCode),
		Status:           status,
		Metadata:         in.Metadata,
	}
	if in.ID != uuid.Nil {
		e.ID = in.ID
	}
	return e, nil
}

// IsDeleted reports whether the entity was soft deleted
func (e *Entity) IsDeleted() bool {
	return e.Status == StatusDeleted
}

// Rename changes the display name and recomputes the normalized name
func (e *Entity) Rename(name string) error {
	name = strings.TrimSpace(name)
	normalized := Normalize(name)
	if normalized == "" {
		return shared.NewValidationError(CodeInvalidEntity, "entity_name is required")
	}
	e.EntityName = name
	e.NormalizedName = normalized
	e.touch()
	return nil
}

// SetCode replaces the entity code; empty clears it
func (e *Entity) SetCode(code string) {
	e.EntityCode = strings.TrimSpace(code)
	e.touch()
}

// SetStatus changes the status; deletion goes through MarkDeleted
func (e *Entity) SetStatus(status Status) error {
	if !status.IsValid() || status == StatusDeleted {
		return shared.NewValidationError(CodeInvalidEntity, "invalid status %q", status)
	}
	e.Status = status
	e.touch()
	return nil
}

// SetSmartCode reclassifies the entity
func (e *Entity) SetSmartCode(code string) {
	e.SmartCode = code
	e.touch()
}

// MergeMetadata overlays values onto the metadata document; nil values remove keys
func (e *Entity) MergeMetadata(values map[string]any) {
	if len(values) == 0 {
		return
	}
	if e.Metadata == nil {
		e.Metadata = make(map[string]any, len(values))
	}
	for k, v := range values {
		if v == nil {
			delete(e.Metadata, k)
			continue
		}
		e.Metadata[k] = v
	}
	e.touch()
}

// MarkDeleted soft deletes the entity
func (e *Entity) MarkDeleted() error {
	if e.IsDeleted() {
		return shared.NewConflictError(CodeEntityNotFound, "entity %s is already deleted", e.ID)
	}
	e.Status = StatusDeleted
	e.touch()
	return nil
}

func (e *Entity) touch() {
	e.UpdatedAt = time.Now().UTC()
	e.IncrementVersion()
}

// NotFound builds the standard not-found error for id
func NotFound(id uuid.UUID) error {
	return shared.NewNotFoundError(CodeEntityNotFound, "entity %s not found", id)
}
