package handler

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/identity"
)

// Introspector resolves what an actor may access
type Introspector interface {
	Introspect(ctx context.Context, actorID uuid.UUID) (*identity.Introspection, error)
}

// IdentityHandler serves identity introspection
type IdentityHandler struct {
	BaseHandler
	identities Introspector
}

// NewIdentityHandler creates a new IdentityHandler
func NewIdentityHandler(identities Introspector) *IdentityHandler {
	return &IdentityHandler{identities: identities}
}

// RegisterRoutes registers identity routes
func (h *IdentityHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/identity/introspect", h.Introspect)
}

// Introspect returns the organizations, roles and apps of the authenticated actor
func (h *IdentityHandler) Introspect(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	result, err := h.identities.Introspect(c.Request.Context(), actorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
