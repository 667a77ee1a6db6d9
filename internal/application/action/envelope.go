// Package action is the uniform request boundary: it checks tenancy, decodes
// payloads strictly and shapes every outcome into {success, data|error}.
package action

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

const (
	CodeInvalidEnvelope   = "INVALID_ENVELOPE"
	CodeInvalidPayload    = "INVALID_PAYLOAD"
	CodeUnsupportedAction = "UNSUPPORTED_ACTION"
	CodeInternal          = "INTERNAL_ERROR"
)

// EntityRequest is the entity action envelope
type EntityRequest struct {
	Action         string          `json:"action" validate:"required"`
	ActorID        uuid.UUID       `json:"actor_id" validate:"required"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	EntityType     string          `json:"entity_type,omitempty" validate:"max=100"`
	EntityPayload  json.RawMessage `json:"entity_payload"`
}

// Request is the envelope for transaction, relationship and period actions
type Request struct {
	Action         string          `json:"action" validate:"required"`
	ActorID        uuid.UUID       `json:"actor_id" validate:"required"`
	OrganizationID uuid.UUID       `json:"organization_id"`
	Payload        json.RawMessage `json:"payload"`
}

// Result is the outcome of every action
type Result struct {
	Success bool                `json:"success"`
	Data    any                 `json:"data,omitempty"`
	Error   *shared.DomainError `json:"error,omitempty"`
}

// Ok wraps data in a successful result
func Ok(data any) Result {
	return Result{Success: true, Data: data}
}

// Fail wraps a domain error in a failed result
func Fail(err *shared.DomainError) Result {
	return Result{Success: false, Error: err}
}

// DecodeStrict unmarshals raw into dst rejecting unknown fields and trailing data
func DecodeStrict(raw []byte, dst any) error {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		raw = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return shared.NewValidationError(CodeInvalidPayload, "invalid payload: %s", describeDecodeError(err))
	}
	if dec.More() {
		return shared.NewValidationError(CodeInvalidPayload, "invalid payload: unexpected data after JSON value")
	}
	return nil
}

func describeDecodeError(err error) string {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return fmt.Sprintf("field %q must be %s", typeErr.Field, typeErr.Type)
	}
	return strings.TrimPrefix(err.Error(), "json: ")
}

// NewValidator returns a validator reporting JSON field names
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validationError converts validator output into a ValidationError naming every failed field
func validationError(code string, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return shared.NewValidationError(code, "invalid request: %v", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fieldMessage(e))
	}
	return shared.NewValidationError(code, "%s", strings.Join(msgs, "; "))
}

func fieldMessage(e validator.FieldError) string {
	field := jsonPath(e.Namespace())
	switch e.Tag() {
	case "required":
		return field + " is required"
	case "max":
		return field + " must be at most " + e.Param()
	case "len":
		return field + " must be exactly " + e.Param() + " characters"
	case "oneof":
		return field + " must be one of: " + e.Param()
	case "gte":
		return field + " must be greater than or equal to " + e.Param()
	case "email":
		return field + " must be an email address"
	default:
		return field + " is invalid"
	}
}

// jsonPath drops the root type and embedded Go type names from a validator namespace
func jsonPath(namespace string) string {
	parts := strings.Split(namespace, ".")
	if len(parts) > 1 {
		parts = parts[1:]
	}
	out := parts[:0]
	for _, p := range parts {
		if p != "" && p[0] >= 'A' && p[0] <= 'Z' {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}
