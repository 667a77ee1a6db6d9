package handler

import (
	"errors"
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/application/action"
	orgapp "github.com/ledgerbase/backend/internal/application/organization"
	"github.com/ledgerbase/backend/internal/domain/identity"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

// roleAdmin may manage an organization alongside its owners
const roleAdmin = "ADMIN"

// ErrNotOrganizationManager is returned when the actor may not change an organization
var ErrNotOrganizationManager = shared.NewDomainError(shared.KindTenantScope, "NOT_ORGANIZATION_MANAGER",
	"actor must be an owner or admin of the organization")

// ErrPlatformAdminRequired is returned for platform-wide reads by ordinary actors
var ErrPlatformAdminRequired = shared.NewDomainError(shared.KindTenantScope, "PLATFORM_ADMIN_REQUIRED",
	"actor must be a platform administrator")

// OrganizationHandler manages organizations and their members
type OrganizationHandler struct {
	BaseHandler
	orgs     *orgapp.OrganizationService
	access   Introspector
	validate *validator.Validate
}

// NewOrganizationHandler creates a new OrganizationHandler
func NewOrganizationHandler(orgs *orgapp.OrganizationService, access Introspector) *OrganizationHandler {
	return &OrganizationHandler{orgs: orgs, access: access, validate: action.NewValidator()}
}

// RegisterRoutes registers organization routes
func (h *OrganizationHandler) RegisterRoutes(rg *gin.RouterGroup) {
	g := rg.Group("/organizations")
	g.POST("", h.Create)
	g.GET("", h.List)
	g.GET("/:id", h.Get)
	g.PATCH("/:id", h.Update)
	g.POST("/:id/members", h.AddMember)
	g.DELETE("/:id/members/:actor_id", h.RemoveMember)
}

// Create registers an organization owned by the authenticated actor
func (h *OrganizationHandler) Create(c *gin.Context) {
	actorID, ok := h.actor(c)
	if !ok {
		return
	}
	var in orgapp.CreateInput
	if !h.bind(c, &in) {
		return
	}
	out, err := h.orgs.Create(c.Request.Context(), actorID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// List pages through all organizations; platform administrators only
func (h *OrganizationHandler) List(c *gin.Context) {
	access, ok := h.introspect(c)
	if !ok {
		return
	}
	if !access.IsPlatformAdmin {
		h.HandleError(c, ErrPlatformAdminRequired)
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	offset, _ := strconv.Atoi(c.Query("offset"))
	out, err := h.orgs.List(c.Request.Context(), shared.Page{Limit: limit, Offset: offset})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// Get returns an organization the actor belongs to
func (h *OrganizationHandler) Get(c *gin.Context) {
	orgID, ok := h.pathID(c, "id")
	if !ok {
		return
	}
	access, ok := h.introspect(c)
	if !ok {
		return
	}
	if !access.CanAccess(orgID) {
		h.HandleError(c, shared.ErrNotAMember)
		return
	}
	out, err := h.orgs.Get(c.Request.Context(), orgID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// Update renames, suspends or reconfigures an organization
func (h *OrganizationHandler) Update(c *gin.Context) {
	orgID, actorID, ok := h.manager(c)
	if !ok {
		return
	}
	var in orgapp.UpdateInput
	in.OrganizationID = orgID
	if !h.bind(c, &in) {
		return
	}
	if in.OrganizationID != orgID {
		h.HandleError(c, shared.ErrOrganizationMismatch)
		return
	}
	out, err := h.orgs.Update(c.Request.Context(), actorID, in)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, out)
}

// AddMember grants an actor membership with a role
func (h *OrganizationHandler) AddMember(c *gin.Context) {
	orgID, actorID, ok := h.manager(c)
	if !ok {
		return
	}
	var in orgapp.MemberInput
	in.OrganizationID = orgID
	if !h.bind(c, &in) {
		return
	}
	if in.OrganizationID != orgID {
		h.HandleError(c, shared.ErrOrganizationMismatch)
		return
	}
	if err := h.orgs.AddMember(c.Request.Context(), actorID, in); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"organization_id": orgID, "actor_id": in.ActorID})
}

// RemoveMember ends an actor's membership
func (h *OrganizationHandler) RemoveMember(c *gin.Context) {
	orgID, _, ok := h.manager(c)
	if !ok {
		return
	}
	memberID, ok := h.pathID(c, "actor_id")
	if !ok {
		return
	}
	if err := h.orgs.RemoveMember(c.Request.Context(), orgID, memberID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"removed": true})
}

func (h *OrganizationHandler) bind(c *gin.Context, dst any) bool {
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		h.HandleError(c, err)
		return false
	}
	if err := action.DecodeStrict(raw, dst); err != nil {
		h.HandleError(c, err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		h.HandleError(c, shared.NewValidationError(action.CodeInvalidPayload, "%s", firstFieldError(err)))
		return false
	}
	return true
}

func (h *OrganizationHandler) introspect(c *gin.Context) (*identity.Introspection, bool) {
	actorID, ok := h.actor(c)
	if !ok {
		return nil, false
	}
	access, err := h.access.Introspect(c.Request.Context(), actorID)
	if err != nil {
		h.HandleError(c, err)
		return nil, false
	}
	return access, true
}

// manager resolves the path organization and checks the actor holds OWNER or ADMIN there
func (h *OrganizationHandler) manager(c *gin.Context) (uuid.UUID, uuid.UUID, bool) {
	orgID, ok := h.pathID(c, "id")
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	access, ok := h.introspect(c)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	if access.IsPlatformAdmin {
		return orgID, access.ActorID, true
	}
	org, member := access.Organization(orgID)
	if !member {
		h.HandleError(c, shared.ErrNotAMember)
		return uuid.Nil, uuid.Nil, false
	}
	for _, r := range org.Roles {
		if r == orgapp.RoleOwner || r == roleAdmin {
			return orgID, access.ActorID, true
		}
	}
	h.HandleError(c, ErrNotOrganizationManager)
	return uuid.Nil, uuid.Nil, false
}

func firstFieldError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	if verrs[0].Tag() == "required" {
		return verrs[0].Field() + " is required"
	}
	return verrs[0].Field() + " is invalid"
}
