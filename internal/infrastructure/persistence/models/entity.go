package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

// EntityModel is the persistence model for core_entities.
// Names and codes are unique per (organization, type) among rows that are not deleted.
type EntityModel struct {
	ID             uuid.UUID  `gorm:"type:uuid;primaryKey"`
	OrganizationID uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex:uq_core_entities_name,priority:1,where:status <> 'DELETED';uniqueIndex:uq_core_entities_code,priority:1,where:status <> 'DELETED' AND entity_code <> '';index:idx_core_entities_scan,priority:1"`
	EntityType     string     `gorm:"type:varchar(100);not null;uniqueIndex:uq_core_entities_name,priority:2;uniqueIndex:uq_core_entities_code,priority:2;index:idx_core_entities_scan,priority:2"`
	EntityName     string     `gorm:"type:varchar(500);not null"`
	NormalizedName string     `gorm:"type:varchar(500);not null;uniqueIndex:uq_core_entities_name,priority:3"`
	EntityCode     string     `gorm:"type:varchar(200);not null;default:'';uniqueIndex:uq_core_entities_code,priority:3"`
	Status         string     `gorm:"type:varchar(20);not null;default:ACTIVE"`
	SmartCode      string     `gorm:"type:varchar(200);not null;index:idx_core_entities_smart_code"`
	Metadata       string     `gorm:"type:jsonb;not null;default:'{}'"`
	CreatedBy      *uuid.UUID `gorm:"type:uuid"`
	CreatedAt      time.Time  `gorm:"not null;index:idx_core_entities_scan,priority:3"`
	UpdatedAt      time.Time  `gorm:"not null"`
	Version        int        `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (EntityModel) TableName() string {
	return "core_entities"
}

// ToDomain converts the persistence model to a domain Entity
func (m *EntityModel) ToDomain() *entity.Entity {
	return &entity.Entity{
		OrgAggregateRoot: shared.OrgAggregateRoot{
			BaseAggregateRoot: shared.BaseAggregateRoot{
				BaseEntity: shared.BaseEntity{ID: m.ID, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt},
				Version:    m.Version,
			},
			OrganizationID: m.OrganizationID,
			SmartCode:      m.SmartCode,
			CreatedBy:      m.CreatedBy,
		},
		EntityType:     entity.Type(m.EntityType),
		EntityName:     m.EntityName,
		NormalizedName: m.NormalizedName,
		EntityCode:     m.EntityCode,
		Status:         entity.Status(m.Status),
		Metadata:       decodeDocument(m.Metadata),
	}
}

// FromDomain populates the persistence model from a domain Entity
func (m *EntityModel) FromDomain(e *entity.Entity) {
	m.ID = e.ID
	m.OrganizationID = e.OrganizationID
	m.EntityType = string(e.EntityType)
	m.EntityName = e.EntityName
	m.NormalizedName = e.NormalizedName
	m.EntityCode = e.EntityCode
	m.Status = string(e.Status)
	m.SmartCode = e.SmartCode
	m.Metadata = encodeDocument(e.Metadata)
	m.CreatedBy = e.CreatedBy
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
	m.Version = e.Version
}

// EntityModelFromDomain creates a new persistence model from a domain Entity
func EntityModelFromDomain(e *entity.Entity) *EntityModel {
	m := &EntityModel{}
	m.FromDomain(e)
	return m
}
