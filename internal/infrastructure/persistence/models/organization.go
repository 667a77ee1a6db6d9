package models

import (
	"github.com/ledgerbase/backend/internal/domain/organization"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

// OrganizationModel is the persistence model for organizations
type OrganizationModel struct {
	BaseModel
	Name             string `gorm:"type:varchar(200);not null"`
	OrganizationCode string `gorm:"type:varchar(100);not null;uniqueIndex:uq_organizations_code"`
	Status           string `gorm:"type:varchar(20);not null;default:ACTIVE"`
	Settings         string `gorm:"type:jsonb;not null;default:'{}'"`
	SmartCode        string `gorm:"type:varchar(200);not null"`
	Version          int    `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (OrganizationModel) TableName() string {
	return "organizations"
}

// ToDomain converts the persistence model to a domain Organization
func (m *OrganizationModel) ToDomain() *organization.Organization {
	return &organization.Organization{
		BaseAggregateRoot: shared.BaseAggregateRoot{
			BaseEntity: m.BaseModel.ToDomain(),
			Version:    m.Version,
		},
		Name:      m.Name,
		Code:      m.OrganizationCode,
		Status:    organization.Status(m.Status),
		Settings:  decodeDocument(m.Settings),
		SmartCode: m.SmartCode,
	}
}

// FromDomain populates the persistence model from a domain Organization
func (m *OrganizationModel) FromDomain(o *organization.Organization) {
	m.FromDomainBaseEntity(o.BaseEntity)
	m.Version = o.Version
	m.Name = o.Name
	m.OrganizationCode = o.Code
	m.Status = string(o.Status)
	m.Settings = encodeDocument(o.Settings)
	m.SmartCode = o.SmartCode
}

// OrganizationModelFromDomain creates a new persistence model from a domain Organization
func OrganizationModelFromDomain(o *organization.Organization) *OrganizationModel {
	m := &OrganizationModel{}
	m.FromDomain(o)
	return m
}
