package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/relationship"
)

// RelationshipModel is the persistence model for core_relationships.
// At most one active edge exists per (organization, from, to, type).
type RelationshipModel struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OrganizationID   uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_core_relationships_active,priority:1,where:is_active;index:idx_core_relationships_from,priority:1;index:idx_core_relationships_to,priority:1"`
	FromEntityID     uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_core_relationships_active,priority:2;index:idx_core_relationships_from,priority:2"`
	ToEntityID       uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_core_relationships_active,priority:3;index:idx_core_relationships_to,priority:2"`
	RelationshipType string     `gorm:"type:varchar(100);not null;uniqueIndex:uq_core_relationships_active,priority:4"`
	IsActive         bool       `gorm:"not null"`
	RelationshipData string     `gorm:"type:jsonb;not null;default:'{}'"`
	SmartCode        string     `gorm:"type:varchar(200);not null"`
	CreatedBy        *uuid.UUID `gorm:"type:uuid"`
	CreatedAt        time.Time  `gorm:"not null"`
	UpdatedAt        time.Time  `gorm:"not null"`
	DeactivatedAt    *time.Time
}

// TableName returns the table name for GORM
func (RelationshipModel) TableName() string {
	return "core_relationships"
}

// ToDomain converts the persistence model to a domain Relationship
func (m *RelationshipModel) ToDomain() *relationship.Relationship {
	return &relationship.Relationship{
		ID:               m.ID,
		OrganizationID:   m.OrganizationID,
		FromEntityID:     m.FromEntityID,
		ToEntityID:       m.ToEntityID,
		RelationshipType: relationship.Type(m.RelationshipType),
		IsActive:         m.IsActive,
		Data:             decodeDocument(m.RelationshipData),
		SmartCode:        m.SmartCode,
		CreatedBy:        m.CreatedBy,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
		DeactivatedAt:    m.DeactivatedAt,
	}
}

// FromDomain populates the persistence model from a domain Relationship
func (m *RelationshipModel) FromDomain(r *relationship.Relationship) {
	m.ID = r.ID
	m.OrganizationID = r.OrganizationID
	m.FromEntityID = r.FromEntityID
	m.ToEntityID = r.ToEntityID
	m.RelationshipType = string(r.RelationshipType)
	m.IsActive = r.IsActive
	m.RelationshipData = encodeDocument(r.Data)
	m.SmartCode = r.SmartCode
	m.CreatedBy = r.CreatedBy
	m.CreatedAt = r.CreatedAt
	m.UpdatedAt = r.UpdatedAt
	m.DeactivatedAt = r.DeactivatedAt
}

// RelationshipModelFromDomain creates a new persistence model from a domain Relationship
func RelationshipModelFromDomain(r *relationship.Relationship) *RelationshipModel {
	m := &RelationshipModel{}
	m.FromDomain(r)
	return m
}
