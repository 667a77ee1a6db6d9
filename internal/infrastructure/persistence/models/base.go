package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

// BaseModel provides common persistence fields for all models.
// It maps to the domain's BaseEntity.
type BaseModel struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	CreatedAt time.Time `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// ToDomain converts BaseModel to domain BaseEntity
func (m *BaseModel) ToDomain() shared.BaseEntity {
	return shared.BaseEntity{
		ID:        m.ID,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomainBaseEntity populates BaseModel from domain BaseEntity
func (m *BaseModel) FromDomainBaseEntity(e shared.BaseEntity) {
	m.ID = e.ID
	m.CreatedAt = e.CreatedAt
	m.UpdatedAt = e.UpdatedAt
}

// encodeDocument renders a jsonb column; nil maps become an empty object
func encodeDocument(doc map[string]any) string {
	if len(doc) == 0 {
		return "{}"
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "{}"
	}
	return string(b)
}

// decodeDocument parses a jsonb column, returning nil for empty documents
func decodeDocument(raw string) map[string]any {
	if raw == "" || raw == "{}" || raw == "null" {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil
	}
	return doc
}

// AllModels lists every model for auto-migration in tests and tooling
func AllModels() []any {
	return []any{
		&OrganizationModel{},
		&EntityModel{},
		&DynamicFieldModel{},
		&RelationshipModel{},
		&TransactionModel{},
		&TransactionLineModel{},
		&FiscalPeriodModel{},
		&OutboxEntryModel{},
	}
}
