package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbase/backend/internal/domain/attribute"
	"github.com/ledgerbase/backend/internal/domain/ledger"
)

func TestDocumentColumns(t *testing.T) {
	assert.Equal(t, "{}", encodeDocument(nil))
	assert.Equal(t, "{}", encodeDocument(map[string]any{}))
	assert.Equal(t, `{"a":1}`, encodeDocument(map[string]any{"a": 1}))

	assert.Nil(t, decodeDocument(""))
	assert.Nil(t, decodeDocument("null"))
	assert.Nil(t, decodeDocument("not json"))
	assert.Equal(t, map[string]any{"a": float64(1)}, decodeDocument(`{"a":1}`))
}

func TestDynamicFieldModel_RoundTrip(t *testing.T) {
	when := time.Date(2024, 2, 29, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name   string
		value  attribute.Value
		column func(m *DynamicFieldModel) bool
	}{
		{"text", attribute.Text("gold"), func(m *DynamicFieldModel) bool { return m.FieldValueText != nil }},
		{"number", attribute.Number(decimal.RequireFromString("12.5")), func(m *DynamicFieldModel) bool { return m.FieldValueNumber != nil }},
		{"boolean", attribute.Bool(false), func(m *DynamicFieldModel) bool { return m.FieldValueBoolean != nil }},
		{"date", attribute.Date(when), func(m *DynamicFieldModel) bool { return m.FieldValueDate != nil }},
		{"json", attribute.JSON(json.RawMessage(`{"tier":2}`)), func(m *DynamicFieldModel) bool { return m.FieldValueJSON != nil }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := &attribute.Field{
				ID:             uuid.New(),
				OrganizationID: uuid.New(),
				EntityID:       uuid.New(),
				FieldName:      "loyalty",
				Value:          tc.value,
			}
			m := DynamicFieldModelFromDomain(f)
			assert.Equal(t, tc.name, m.FieldType)
			assert.True(t, tc.column(m), "value stored in its typed column")

			populated := 0
			for _, set := range []bool{m.FieldValueText != nil, m.FieldValueNumber != nil, m.FieldValueBoolean != nil, m.FieldValueDate != nil, m.FieldValueJSON != nil} {
				if set {
					populated++
				}
			}
			assert.Equal(t, 1, populated)

			back := m.ToDomain()
			assert.Equal(t, tc.value.Type(), back.Value.Type())
			assert.Equal(t, f.EntityID, back.EntityID)
		})
	}

	t.Run("unknown type decodes to zero value", func(t *testing.T) {
		m := &DynamicFieldModel{FieldType: "blob"}
		assert.Equal(t, attribute.Value{}, m.ToDomain().Value)
	})
}

func TestTransactionLineModel_LineData(t *testing.T) {
	l := &ledger.Line{
		ID:         uuid.New(),
		LineNumber: 1,
		Side:       ledger.SideDebit,
		Account:    "1000",
		LineAmount: decimal.RequireFromString("99.95"),
		Currency:   "USD",
		Extra:      map[string]any{"memo": "deposit"},
	}

	m := TransactionLineModelFromDomain(l)
	assert.Equal(t, "DR", m.Side)
	assert.Equal(t, "1000", m.Account)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(m.LineData), &doc))
	assert.Equal(t, "DR", doc["side"])
	assert.Equal(t, "99.95", doc["amount"])
	assert.Equal(t, "USD", doc["currency"])
	assert.Equal(t, "deposit", doc["memo"])

	back := m.ToDomain()
	assert.Equal(t, "USD", back.Currency)
	assert.Equal(t, map[string]any{"memo": "deposit"}, back.Extra)
	assert.True(t, back.LineAmount.Equal(l.LineAmount))
}
