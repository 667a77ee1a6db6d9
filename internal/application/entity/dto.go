package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/attribute"
	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/relationship"
)

// FieldInput is a dynamic field supplied by a caller. An empty Type infers it from Value.
type FieldInput struct {
	Name      string `json:"field_name" validate:"required,max=100"`
	Type      string `json:"field_type,omitempty" validate:"omitempty,oneof=text number boolean date json"`
	Value     any    `json:"field_value"`
	SmartCode string `json:"smart_code,omitempty"`
}

// CreateInput contains input for creating (or resolving) an entity
type CreateInput struct {
	EntityType string         `json:"entity_type" validate:"required,max=100"`
	EntityName string         `json:"entity_name" validate:"required,max=255"`
	EntityCode string         `json:"entity_code,omitempty" validate:"max=100"`
	SmartCode  string         `json:"smart_code" validate:"required,max=255"`
	Status     string         `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Fields     []FieldInput   `json:"dynamic_fields,omitempty" validate:"dive"`
}

// ReadInput identifies the entity to read
type ReadInput struct {
	EntityID             uuid.UUID `json:"entity_id" validate:"required"`
	IncludeRelationships bool      `json:"include_relationships,omitempty"`
}

// UpdateInput changes an entity; nil pointers leave the value untouched
type UpdateInput struct {
	EntityID   uuid.UUID      `json:"entity_id" validate:"required"`
	EntityName *string        `json:"entity_name,omitempty" validate:"omitempty,max=255"`
	EntityCode *string        `json:"entity_code,omitempty" validate:"omitempty,max=100"`
	Status     *string        `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	SmartCode  *string        `json:"smart_code,omitempty" validate:"omitempty,max=255"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Fields     []FieldInput   `json:"dynamic_fields,omitempty" validate:"dive"`
}

// DeleteInput identifies the entity to delete
type DeleteInput struct {
	EntityID uuid.UUID `json:"entity_id" validate:"required"`
}

// QueryInput filters entities of one organization
type QueryInput struct {
	EntityType      string `json:"entity_type,omitempty"`
	Status          string `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE INACTIVE DELETED"`
	SmartCodePrefix string `json:"smart_code_prefix,omitempty"`
	Search          string `json:"search,omitempty"`
	IncludeDeleted  bool   `json:"include_deleted,omitempty"`
	IncludeFields   bool   `json:"include_dynamic_fields,omitempty"`
	Limit           int    `json:"limit,omitempty" validate:"gte=0"`
	Offset          int    `json:"offset,omitempty" validate:"gte=0"`
}

// EntityDTO is the read model of an entity
type EntityDTO struct {
	ID             uuid.UUID         `json:"id"`
	OrganizationID uuid.UUID         `json:"organization_id"`
	EntityType     string            `json:"entity_type"`
	EntityName     string            `json:"entity_name"`
	NormalizedName string            `json:"normalized_name"`
	EntityCode     string            `json:"entity_code,omitempty"`
	Status         string            `json:"status"`
	SmartCode      string            `json:"smart_code"`
	Metadata       map[string]any    `json:"metadata,omitempty"`
	Fields         attribute.Values  `json:"dynamic_fields,omitempty"`
	Relationships  []RelationshipDTO `json:"relationships,omitempty"`
	CreatedBy      *uuid.UUID        `json:"created_by,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
	Version        int               `json:"version"`
}

// RelationshipDTO is an edge touching the entity being read
type RelationshipDTO struct {
	ID               uuid.UUID      `json:"id"`
	FromEntityID     uuid.UUID      `json:"from_entity_id"`
	ToEntityID       uuid.UUID      `json:"to_entity_id"`
	RelationshipType string         `json:"relationship_type"`
	IsActive         bool           `json:"is_active"`
	Data             map[string]any `json:"relationship_data,omitempty"`
	SmartCode        string         `json:"smart_code"`
	CreatedAt        time.Time      `json:"created_at"`
}

// CreateResult is the outcome of Create
type CreateResult struct {
	Entity     EntityDTO `json:"entity"`
	IsNew      bool      `json:"is_new"`
	MatchedBy  string    `json:"matched_by,omitempty"`
	Similarity float64   `json:"similarity,omitempty"`
}

// DeleteResult is the outcome of Delete
type DeleteResult struct {
	EntityID                 uuid.UUID `json:"entity_id"`
	DeactivatedRelationships int64     `json:"deactivated_relationships"`
}

// ToEntityDTO converts a domain entity
func ToEntityDTO(e *entity.Entity) EntityDTO {
	return EntityDTO{
		ID:             e.ID,
		OrganizationID: e.OrganizationID,
		EntityType:     e.EntityType.String(),
		EntityName:     e.EntityName,
		NormalizedName: e.NormalizedName,
		EntityCode:     e.EntityCode,
		Status:         string(e.Status),
		SmartCode:      e.SmartCode,
		Metadata:       e.Metadata,
		CreatedBy:      e.CreatedBy,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
		Version:        e.Version,
	}
}

// ToRelationshipDTO converts a domain relationship
func ToRelationshipDTO(r *relationship.Relationship) RelationshipDTO {
	return RelationshipDTO{
		ID:               r.ID,
		FromEntityID:     r.FromEntityID,
		ToEntityID:       r.ToEntityID,
		RelationshipType: string(r.RelationshipType),
		IsActive:         r.IsActive,
		Data:             r.Data,
		SmartCode:        r.SmartCode,
		CreatedAt:        r.CreatedAt,
	}
}
