// Package attribute stores typed, versioned key/value fields attached to entities.
package attribute

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

const (
	CodeInvalidField = "INVALID_FIELD"
)

// FieldType tags which slot of a Value is populated
type FieldType string

const (
	TypeText    FieldType = "text"
	TypeNumber  FieldType = "number"
	TypeBoolean FieldType = "boolean"
	TypeDate    FieldType = "date"
	TypeJSON    FieldType = "json"
)

// IsValid checks if the field type is known
func (t FieldType) IsValid() bool {
	switch t {
	case TypeText, TypeNumber, TypeBoolean, TypeDate, TypeJSON:
		return true
	}
	return false
}

// Value is a tagged variant holding exactly one typed value
type Value struct {
	kind   FieldType
	text   string
	number decimal.Decimal
	flag   bool
	date   time.Time
	doc    json.RawMessage
}

// Text creates a text value
func Text(s string) Value { return Value{kind: TypeText, text: s} }

// Number creates a numeric value
func Number(d decimal.Decimal) Value { return Value{kind: TypeNumber, number: d} }

// Bool creates a boolean value
func Bool(b bool) Value { return Value{kind: TypeBoolean, flag: b} }

// Date creates a date value normalized to UTC
func Date(t time.Time) Value { return Value{kind: TypeDate, date: t.UTC()} }

// JSON creates a document value
func JSON(raw json.RawMessage) Value { return Value{kind: TypeJSON, doc: bytes.Clone(raw)} }

// Type returns the populated slot
func (v Value) Type() FieldType { return v.kind }

// IsZero reports whether no slot is populated
func (v Value) IsZero() bool { return v.kind == "" }

func (v Value) Text() (string, bool) { return v.text, v.kind == TypeText }
func (v Value) Number() (decimal.Decimal, bool) { return v.number, v.kind == TypeNumber }
func (v Value) Bool() (bool, bool) { return v.flag, v.kind == TypeBoolean }
func (v Value) Date() (time.Time, bool) { return v.date, v.kind == TypeDate }
func (v Value) JSON() (json.RawMessage, bool) { return v.doc, v.kind == TypeJSON }

// Interface returns the value as a plain Go value for rendering
func (v Value) Interface() any {
	switch v.kind {
	case TypeText:
		return v.text
	case TypeNumber:
		return v.number
	case TypeBoolean:
		return v.flag
	case TypeDate:
		return v.date.Format(time.RFC3339)
	case TypeJSON:
		return v.doc
	}
	return nil
}

// MarshalJSON renders the populated slot
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == TypeJSON {
		if len(v.doc) == 0 {
			return []byte("null"), nil
		}
		return v.doc, nil
	}
	return json.Marshal(v.Interface())
}

// ParseValue converts a decoded JSON value into a Value.
// An empty fieldType infers the type from the JSON shape.
func ParseValue(fieldType FieldType, raw any) (Value, error) {
	if fieldType == "" {
		fieldType = inferType(raw)
	}
	switch fieldType {
	case TypeText:
		s, ok := raw.(string)
		if !ok {
			return Value{}, invalidValue(fieldType, raw)
		}
		return Text(s), nil
	case TypeNumber:
		d, err := toDecimal(raw)
		if err != nil {
			return Value{}, invalidValue(fieldType, raw)
		}
		return Number(d), nil
	case TypeBoolean:
		b, ok := raw.(bool)
		if !ok {
			return Value{}, invalidValue(fieldType, raw)
		}
		return Bool(b), nil
	case TypeDate:
		s, ok := raw.(string)
		if !ok {
			return Value{}, invalidValue(fieldType, raw)
		}
		t, err := ParseDate(s)
		if err != nil {
			return Value{}, invalidValue(fieldType, raw)
		}
		return Date(t), nil
	case TypeJSON:
		b, err := json.Marshal(raw)
		if err != nil {
			return Value{}, invalidValue(fieldType, raw)
		}
		return JSON(b), nil
	}
	return Value{}, shared.NewValidationError(CodeInvalidField, "unknown field_type %q", fieldType)
}

// ParseDate accepts RFC3339 timestamps and YYYY-MM-DD dates
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}

func inferType(raw any) FieldType {
	switch raw.(type) {
	case string:
		return TypeText
	case bool:
		return TypeBoolean
	case float64, float32, int, int64, json.Number, decimal.Decimal:
		return TypeNumber
	default:
		return TypeJSON
	}
}

func toDecimal(raw any) (decimal.Decimal, error) {
	switch n := raw.(type) {
	case decimal.Decimal:
		return n, nil
	case float64:
		return decimal.NewFromFloat(n), nil
	case float32:
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int64:
		return decimal.NewFromInt(n), nil
	case json.Number:
		return decimal.NewFromString(n.String())
	case string:
		return decimal.NewFromString(strings.TrimSpace(n))
	}
	return decimal.Zero, fmt.Errorf("not a number: %T", raw)
}

func invalidValue(fieldType FieldType, raw any) error {
	return shared.NewValidationError(CodeInvalidField, "value %v is not a valid %s", raw, fieldType)
}
