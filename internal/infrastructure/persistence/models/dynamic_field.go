package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerbase/backend/internal/domain/attribute"
)

// DynamicFieldModel is the persistence model for core_dynamic_data.
// Exactly one field_value_* column is populated, selected by field_type.
type DynamicFieldModel struct {
	ID                uuid.UUID        `gorm:"type:uuid;primaryKey"`
	OrganizationID    uuid.UUID        `gorm:"type:uuid;not null;index:idx_core_dynamic_data_entity,priority:1"`
	EntityID          uuid.UUID        `gorm:"type:uuid;not null;index:idx_core_dynamic_data_entity,priority:2"`
	FieldName         string           `gorm:"type:varchar(100);not null;index:idx_core_dynamic_data_entity,priority:3"`
	FieldType         string           `gorm:"type:varchar(20);not null"`
	FieldValueText    *string          `gorm:"type:text"`
	FieldValueNumber  *decimal.Decimal `gorm:"type:decimal(38,10)"`
	FieldValueBoolean *bool
	FieldValueDate    *time.Time
	FieldValueJSON    *string    `gorm:"column:field_value_json;type:jsonb"`
	SmartCode         string     `gorm:"type:varchar(200);not null;default:''"`
	CreatedBy         *uuid.UUID `gorm:"type:uuid"`
	CreatedAt         time.Time  `gorm:"not null;index:idx_core_dynamic_data_entity,priority:4"`
}

// TableName returns the table name for GORM
func (DynamicFieldModel) TableName() string {
	return "core_dynamic_data"
}

// ToDomain converts the persistence model to a domain Field
func (m *DynamicFieldModel) ToDomain() *attribute.Field {
	return &attribute.Field{
		ID:             m.ID,
		OrganizationID: m.OrganizationID,
		EntityID:       m.EntityID,
		FieldName:      m.FieldName,
		Value:          m.value(),
		SmartCode:      m.SmartCode,
		CreatedBy:      m.CreatedBy,
		CreatedAt:      m.CreatedAt,
	}
}

func (m *DynamicFieldModel) value() attribute.Value {
	switch attribute.FieldType(m.FieldType) {
	case attribute.TypeText:
		if m.FieldValueText != nil {
			return attribute.Text(*m.FieldValueText)
		}
	case attribute.TypeNumber:
		if m.FieldValueNumber != nil {
			return attribute.Number(*m.FieldValueNumber)
		}
	case attribute.TypeBoolean:
		if m.FieldValueBoolean != nil {
			return attribute.Bool(*m.FieldValueBoolean)
		}
	case attribute.TypeDate:
		if m.FieldValueDate != nil {
			return attribute.Date(*m.FieldValueDate)
		}
	case attribute.TypeJSON:
		if m.FieldValueJSON != nil {
			return attribute.JSON(json.RawMessage(*m.FieldValueJSON))
		}
	}
	return attribute.Value{}
}

// FromDomain populates the persistence model from a domain Field
func (m *DynamicFieldModel) FromDomain(f *attribute.Field) {
	m.ID = f.ID
	m.OrganizationID = f.OrganizationID
	m.EntityID = f.EntityID
	m.FieldName = f.FieldName
	m.FieldType = string(f.Value.Type())
	m.SmartCode = f.SmartCode
	m.CreatedBy = f.CreatedBy
	m.CreatedAt = f.CreatedAt

	if s, ok := f.Value.Text(); ok {
		m.FieldValueText = &s
	}
	if d, ok := f.Value.Number(); ok {
		m.FieldValueNumber = &d
	}
	if b, ok := f.Value.Bool(); ok {
		m.FieldValueBoolean = &b
	}
	if t, ok := f.Value.Date(); ok {
		m.FieldValueDate = &t
	}
	if doc, ok := f.Value.JSON(); ok {
		s := string(doc)
		if s == "" {
			s = "null"
		}
		m.FieldValueJSON = &s
	}
}

// DynamicFieldModelFromDomain creates a new persistence model from a domain Field
func DynamicFieldModelFromDomain(f *attribute.Field) *DynamicFieldModel {
	m := &DynamicFieldModel{}
	m.FromDomain(f)
	return m
}
