package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ledgerbase/backend/internal/application/action"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
	"github.com/ledgerbase/backend/internal/interfaces/http/dto"
	"github.com/ledgerbase/backend/internal/interfaces/http/middleware"
)

// ErrActorMismatch is returned when an envelope names a different actor than the bearer token
var ErrActorMismatch = shared.NewDomainError(shared.KindTenantScope, dto.ErrCodeActorMismatch,
	"actor_id does not match the authenticated actor")

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a 200 response with data
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Respond sends an action result, deriving the status from the error kind
func (h *BaseHandler) Respond(c *gin.Context, res action.Result) {
	if res.Success {
		h.Success(c, res.Data)
		return
	}
	c.JSON(dto.HTTPStatus(res.Error.Kind), dto.FromDomainError(res.Error, middleware.GetRequestID(c)))
}

// HandleError sends err as an error response. Errors that are not domain
// errors are logged and reported without their details.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	requestID := middleware.GetRequestID(c)

	var de *shared.DomainError
	if errors.As(err, &de) {
		if de.Kind == shared.KindInternal {
			logger.L(c.Request.Context()).Error("Request failed", zap.Error(err))
		}
		c.JSON(dto.HTTPStatus(de.Kind), dto.FromDomainError(de, requestID))
		return
	}

	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		c.JSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponse(shared.KindValidation,
			dto.ErrCodeRequestTooLarge, "request body exceeds maximum allowed size", requestID))
		return
	}

	logger.L(c.Request.Context()).Error("Request failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponse(shared.KindInternal,
		dto.ErrCodeInternal, "internal error", requestID))
}

// actor returns the authenticated actor or sends 401
func (h *BaseHandler) actor(c *gin.Context) (uuid.UUID, bool) {
	id, ok := middleware.GetActorID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, dto.NewErrorResponse(middleware.KindUnauthenticated,
			dto.ErrCodeUnauthorized, "authentication required", middleware.GetRequestID(c)))
	}
	return id, ok
}

// bindEnvelope strictly decodes the request body into dst and reconciles the
// envelope actor with the authenticated one: an absent actor_id is filled in,
// a different one is refused.
func (h *BaseHandler) bindEnvelope(c *gin.Context, dst any, actorID *uuid.UUID) bool {
	authenticated, ok := h.actor(c)
	if !ok {
		return false
	}
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.HandleError(c, err)
		return false
	}
	if err := action.DecodeStrict(raw, dst); err != nil {
		h.HandleError(c, err)
		return false
	}
	switch *actorID {
	case uuid.Nil:
		*actorID = authenticated
	case authenticated:
	default:
		h.HandleError(c, ErrActorMismatch)
		return false
	}
	return true
}

// pathID parses a uuid path parameter or sends 400
func (h *BaseHandler) pathID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		h.HandleError(c, shared.NewValidationError("INVALID_ID", "%s must be a UUID", name))
		return uuid.Nil, false
	}
	return id, true
}
