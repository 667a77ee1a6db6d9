package shared

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a DomainError for the action boundary
type ErrorKind string

const (
	KindValidation   ErrorKind = "ValidationError"
	KindNotFound     ErrorKind = "NotFoundError"
	KindConflict     ErrorKind = "ConflictError"
	KindImbalance    ErrorKind = "ImbalanceError"
	KindPeriodClosed ErrorKind = "PeriodClosedError"
	KindTenantScope  ErrorKind = "TenantScopeError"
	KindInternal     ErrorKind = "InternalError"
)

// DomainError represents a domain-level error
type DomainError struct {
	Kind    ErrorKind `json:"kind"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is matches on kind and code so sentinel errors work with errors.Is
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind && e.Code == t.Code
}

// NewDomainError creates a new domain error
func NewDomainError(kind ErrorKind, code, message string) *DomainError {
	return &DomainError{
		Kind:    kind,
		Code:    code,
		Message: message,
	}
}

// NewValidationError creates a ValidationError
func NewValidationError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindValidation, code, fmt.Sprintf(format, args...))
}

// NewNotFoundError creates a NotFoundError
func NewNotFoundError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindNotFound, code, fmt.Sprintf(format, args...))
}

// NewConflictError creates a ConflictError
func NewConflictError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindConflict, code, fmt.Sprintf(format, args...))
}

// NewImbalanceError creates an ImbalanceError
func NewImbalanceError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindImbalance, code, fmt.Sprintf(format, args...))
}

// NewPeriodClosedError creates a PeriodClosedError
func NewPeriodClosedError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindPeriodClosed, code, fmt.Sprintf(format, args...))
}

// NewTenantScopeError creates a TenantScopeError
func NewTenantScopeError(code, format string, args ...any) *DomainError {
	return NewDomainError(KindTenantScope, code, fmt.Sprintf(format, args...))
}

// KindOf returns the kind of err, or KindInternal when err is not a DomainError
func KindOf(err error) ErrorKind {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

// Common domain errors
var (
	ErrNotFound             = NewDomainError(KindNotFound, "NOT_FOUND", "Resource not found")
	ErrInvalidInput         = NewDomainError(KindValidation, "INVALID_INPUT", "Invalid input provided")
	ErrInvalidState         = NewDomainError(KindValidation, "INVALID_STATE", "Operation not allowed in current state")
	ErrConcurrencyConflict  = NewDomainError(KindConflict, "CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrOrganizationRequired = NewDomainError(KindTenantScope, "ORGANIZATION_REQUIRED", "organization_id is required")
	ErrOrganizationMismatch = NewDomainError(KindTenantScope, "ORGANIZATION_MISMATCH", "payload organization_id does not match the request organization")
	ErrNotAMember           = NewDomainError(KindTenantScope, "NOT_A_MEMBER", "actor is not a member of the organization")
)
