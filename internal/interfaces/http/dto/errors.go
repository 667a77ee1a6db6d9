package dto

import (
	"net/http"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

// Transport error codes; domain codes travel unchanged
const (
	ErrCodeUnauthorized    = "UNAUTHORIZED"
	ErrCodeTokenExpired    = "TOKEN_EXPIRED"
	ErrCodeTokenInvalid    = "INVALID_TOKEN"
	ErrCodeActorMismatch   = "ACTOR_MISMATCH"
	ErrCodeInvalidJSON     = "INVALID_JSON"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeNotFound        = "ROUTE_NOT_FOUND"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// KindHTTPStatus maps error kinds to HTTP status codes
var KindHTTPStatus = map[shared.ErrorKind]int{
	shared.KindValidation:   http.StatusBadRequest,
	shared.KindTenantScope:  http.StatusForbidden,
	shared.KindNotFound:     http.StatusNotFound,
	shared.KindConflict:     http.StatusConflict,
	shared.KindImbalance:    http.StatusUnprocessableEntity,
	shared.KindPeriodClosed: http.StatusUnprocessableEntity,
	shared.KindInternal:     http.StatusInternalServerError,
}

// HTTPStatus returns the HTTP status for an error kind, 500 for unknown kinds
func HTTPStatus(kind shared.ErrorKind) int {
	if status, ok := KindHTTPStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}
