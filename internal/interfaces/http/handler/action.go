package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/ledgerbase/backend/internal/application/action"
)

// ActionHandler serves the entity, transaction, relationship and period envelopes
type ActionHandler struct {
	BaseHandler
	dispatcher *action.Dispatcher
}

// NewActionHandler creates a new ActionHandler
func NewActionHandler(dispatcher *action.Dispatcher) *ActionHandler {
	return &ActionHandler{dispatcher: dispatcher}
}

// RegisterRoutes registers the action endpoints
func (h *ActionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/entities", h.Entities)
	rg.POST("/transactions", h.Transactions)
	rg.POST("/relationships", h.Relationships)
	rg.POST("/periods", h.Periods)
}

// Entities runs an entity action
func (h *ActionHandler) Entities(c *gin.Context) {
	var req action.EntityRequest
	if !h.bindEnvelope(c, &req, &req.ActorID) {
		return
	}
	h.Respond(c, h.dispatcher.Entity(c.Request.Context(), req))
}

// Transactions runs a transaction action
func (h *ActionHandler) Transactions(c *gin.Context) {
	var req action.Request
	if !h.bindEnvelope(c, &req, &req.ActorID) {
		return
	}
	h.Respond(c, h.dispatcher.Transaction(c.Request.Context(), req))
}

// Relationships runs a relationship action
func (h *ActionHandler) Relationships(c *gin.Context) {
	var req action.Request
	if !h.bindEnvelope(c, &req, &req.ActorID) {
		return
	}
	h.Respond(c, h.dispatcher.Relationship(c.Request.Context(), req))
}

// Periods runs a fiscal period action
func (h *ActionHandler) Periods(c *gin.Context) {
	var req action.Request
	if !h.bindEnvelope(c, &req, &req.ActorID) {
		return
	}
	h.Respond(c, h.dispatcher.Period(c.Request.Context(), req))
}
