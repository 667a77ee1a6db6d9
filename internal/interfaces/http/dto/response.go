package dto

import (
	"github.com/ledgerbase/backend/internal/domain/shared"
)

// Response is the {success, data|error} body of every API response
type Response struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Error   *ErrorInfo `json:"error,omitempty"`
}

// ErrorInfo carries the error kind, a stable code and a message
type ErrorInfo struct {
	Kind      shared.ErrorKind `json:"kind"`
	Code      string           `json:"code"`
	Message   string           `json:"message"`
	RequestID string           `json:"request_id,omitempty"`
}

// NewSuccessResponse creates a success response
func NewSuccessResponse(data any) Response {
	return Response{Success: true, Data: data}
}

// NewErrorResponse creates an error response
func NewErrorResponse(kind shared.ErrorKind, code, message, requestID string) Response {
	return Response{
		Success: false,
		Error: &ErrorInfo{
			Kind:      kind,
			Code:      code,
			Message:   message,
			RequestID: requestID,
		},
	}
}

// FromDomainError converts a domain error into an error response
func FromDomainError(err *shared.DomainError, requestID string) Response {
	return NewErrorResponse(err.Kind, err.Code, err.Message, requestID)
}

// HealthResponse reports liveness and dependency state
type HealthResponse struct {
	Status  string            `json:"status"`
	Version string            `json:"version"`
	Uptime  string            `json:"uptime"`
	Checks  map[string]string `json:"checks"`
}
