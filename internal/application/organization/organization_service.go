// Package organization creates tenants and manages their members.
package organization

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/domain/identity"
	"github.com/ledgerbase/backend/internal/domain/organization"
	"github.com/ledgerbase/backend/internal/domain/relationship"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
	"github.com/ledgerbase/backend/internal/infrastructure/telemetry"
)

// EntityTypeOrganization is the entity type of organization anchors in the platform organization
const EntityTypeOrganization entity.Type = "ORGANIZATION"

// RoleOwner is the membership role given to the creator of an organization
const RoleOwner = "OWNER"

// CreateInput describes a new organization
type CreateInput struct {
	Name      string         `json:"name" validate:"required,max=255"`
	Code      string         `json:"organization_code" validate:"required,max=100"`
	SmartCode string         `json:"smart_code,omitempty" validate:"max=255"`
	Settings  map[string]any `json:"settings,omitempty"`
}

// UpdateInput changes name, status or settings; nil settings values remove keys
type UpdateInput struct {
	OrganizationID uuid.UUID      `json:"organization_id" validate:"required"`
	Name           *string        `json:"name,omitempty" validate:"omitempty,max=255"`
	Status         *string        `json:"status,omitempty" validate:"omitempty,oneof=ACTIVE SUSPENDED"`
	Settings       map[string]any `json:"settings,omitempty"`
}

// MemberInput grants an actor membership in an organization
type MemberInput struct {
	OrganizationID uuid.UUID `json:"organization_id" validate:"required"`
	ActorID        uuid.UUID `json:"actor_id" validate:"required"`
	Role           string    `json:"role,omitempty" validate:"max=100"`
	Permissions    []string  `json:"permissions,omitempty"`
}

// OrganizationDTO is the read model of an organization
type OrganizationDTO struct {
	ID        uuid.UUID      `json:"id"`
	Name      string         `json:"name"`
	Code      string         `json:"organization_code"`
	Status    string         `json:"status"`
	SmartCode string         `json:"smart_code"`
	Settings  map[string]any `json:"settings"`
	Apps      []string       `json:"apps"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// ToOrganizationDTO converts a domain organization
func ToOrganizationDTO(o *organization.Organization) OrganizationDTO {
	settings := o.Settings
	if settings == nil {
		settings = map[string]any{}
	}
	return OrganizationDTO{
		ID:        o.ID,
		Name:      o.Name,
		Code:      o.Code,
		Status:    string(o.Status),
		SmartCode: o.SmartCode,
		Settings:  settings,
		Apps:      o.Apps(),
		CreatedAt: o.CreatedAt,
		UpdatedAt: o.UpdatedAt,
	}
}

// OrganizationService manages tenants and their anchor entities
type OrganizationService struct {
	uow      appshared.UnitOfWork
	repos    appshared.Repositories
	governor *governance.Governor
	hints    identity.HintStore
	logger   *zap.Logger
}

// NewOrganizationService creates a new organization service; hints may be nil
func NewOrganizationService(
	uow appshared.UnitOfWork,
	repos appshared.Repositories,
	governor *governance.Governor,
	hints identity.HintStore,
	logger *zap.Logger,
) *OrganizationService {
	return &OrganizationService{
		uow:      uow,
		repos:    repos,
		governor: governor,
		hints:    hints,
		logger:   logger,
	}
}

// EnsurePlatform creates the platform organization and its anchor when missing
func (s *OrganizationService) EnsurePlatform(ctx context.Context) error {
	return s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		_, err := repos.Organizations().FindByID(ctx, shared.PlatformOrganizationID)
		if err == nil {
			return nil
		}
		if shared.KindOf(err) != shared.KindNotFound {
			return err
		}
		o, err := organization.NewOrganization("Platform", "PLATFORM", governance.SystemOrganization, nil)
		if err != nil {
			return err
		}
		o.ID = shared.PlatformOrganizationID
		if err := repos.Organizations().Create(ctx, o); err != nil {
			return err
		}
		if err := createAnchor(ctx, repos, shared.OrgScope{OrganizationID: shared.PlatformOrganizationID}, o); err != nil {
			return err
		}
		s.logger.Info("Platform organization created")
		return nil
	})
}

// Create registers a new organization with its anchor entity. A creating actor becomes its OWNER.
func (s *OrganizationService) Create(ctx context.Context, actorID uuid.UUID, in CreateInput) (*OrganizationDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "organization", "create")
	defer span.End()

	smartCode := strings.TrimSpace(in.SmartCode)
	if smartCode == "" {
		smartCode = governance.SystemOrganization
	}
	if _, err := appshared.Govern(ctx, s.governor, shared.PlatformOrganizationID, smartCode); err != nil {
		return nil, err
	}
	o, err := organization.NewOrganization(in.Name, in.Code, smartCode, in.Settings)
	if err != nil {
		return nil, err
	}
	platform := shared.OrgScope{OrganizationID: shared.PlatformOrganizationID, ActorID: actorID}

	err = s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		if err := repos.Organizations().Create(ctx, o); err != nil {
			return err
		}
		if err := createAnchor(ctx, repos, platform, o); err != nil {
			return err
		}
		if actorID == uuid.Nil {
			return nil
		}
		return addMember(ctx, repos, platform, MemberInput{OrganizationID: o.ID, ActorID: actorID, Role: RoleOwner})
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.invalidate(ctx, actorID)

	logger.L(ctx).Info("Organization created",
		zap.String("organization_id", o.ID.String()),
		zap.String("organization_code", o.Code),
	)
	dto := ToOrganizationDTO(o)
	return &dto, nil
}

// Get returns one organization
func (s *OrganizationService) Get(ctx context.Context, id uuid.UUID) (*OrganizationDTO, error) {
	o, err := s.repos.Organizations().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	dto := ToOrganizationDTO(o)
	return &dto, nil
}

// List pages through organizations
func (s *OrganizationService) List(ctx context.Context, page shared.Page) (*shared.Paginated[OrganizationDTO], error) {
	page = page.Normalize(shared.MaxPageSize)
	orgs, total, err := s.repos.Organizations().List(ctx, page)
	if err != nil {
		return nil, err
	}
	items := make([]OrganizationDTO, 0, len(orgs))
	for _, o := range orgs {
		items = append(items, ToOrganizationDTO(o))
	}
	result := shared.NewPaginated(items, total, page)
	return &result, nil
}

// Update renames, suspends or reconfigures an organization and keeps the anchor name in step.
// Every member's role hint is dropped since name, apps and status all feed introspection.
func (s *OrganizationService) Update(ctx context.Context, actorID uuid.UUID, in UpdateInput) (*OrganizationDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "organization", "update")
	defer span.End()

	var (
		out     OrganizationDTO
		members []uuid.UUID
	)
	err := s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		o, err := repos.Organizations().FindByID(ctx, in.OrganizationID)
		if err != nil {
			return err
		}
		renamed := false
		if in.Name != nil && strings.TrimSpace(*in.Name) != o.Name {
			if err := o.Rename(*in.Name); err != nil {
				return err
			}
			renamed = true
		}
		if in.Status != nil {
			if err := o.SetStatus(organization.Status(strings.ToUpper(*in.Status))); err != nil {
				return err
			}
		}
		if in.Settings != nil {
			o.UpdateSettings(in.Settings)
		}
		if err := repos.Organizations().Update(ctx, o); err != nil {
			return err
		}
		if renamed {
			anchor, err := repos.Entities().FindByID(ctx, shared.PlatformOrganizationID, o.ID)
			if err != nil {
				return err
			}
			if err := anchor.Rename(o.Name); err != nil {
				return err
			}
			if err := repos.Entities().Update(ctx, anchor); err != nil {
				return err
			}
		}
		members, err = memberIDs(ctx, repos, o.ID)
		if err != nil {
			return err
		}
		out = ToOrganizationDTO(o)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.invalidate(ctx, members...)
	logger.L(ctx).Info("Organization updated",
		zap.String("organization_id", in.OrganizationID.String()),
		zap.String("actor_id", actorID.String()),
	)
	return &out, nil
}

// AddMember links the actor to the organization anchor with a MEMBER_OF edge
func (s *OrganizationService) AddMember(ctx context.Context, grantedBy uuid.UUID, in MemberInput) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "organization", "add_member")
	defer span.End()

	platform := shared.OrgScope{OrganizationID: shared.PlatformOrganizationID, ActorID: grantedBy}
	err := s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		if _, err := repos.Organizations().FindByID(ctx, in.OrganizationID); err != nil {
			return err
		}
		return addMember(ctx, repos, platform, in)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.invalidate(ctx, in.ActorID)
	return nil
}

// RemoveMember ends the actor's membership
func (s *OrganizationService) RemoveMember(ctx context.Context, organizationID, actorID uuid.UUID) error {
	platform := shared.OrgScope{OrganizationID: shared.PlatformOrganizationID}
	err := s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		return relationship.NewGraph(repos.Relationships(), repos.Entities()).
			Unlink(ctx, platform, actorID, organizationID, relationship.TypeMemberOf)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, actorID)
	return nil
}

func (s *OrganizationService) invalidate(ctx context.Context, actorIDs ...uuid.UUID) {
	ids := make([]uuid.UUID, 0, len(actorIDs))
	for _, id := range actorIDs {
		if id != uuid.Nil {
			ids = append(ids, id)
		}
	}
	if s.hints == nil || len(ids) == 0 {
		return
	}
	if err := s.hints.Invalidate(ctx, ids...); err != nil {
		logger.L(ctx).Warn("Failed to invalidate role hints", zap.Int("actors", len(ids)), zap.Error(err))
	}
}

// memberIDs lists the actors holding an active membership in organizationID
func memberIDs(ctx context.Context, repos appshared.Repositories, organizationID uuid.UUID) ([]uuid.UUID, error) {
	edges, err := repos.Relationships().Find(ctx, shared.PlatformOrganizationID, relationship.Filter{
		To: &organizationID, Type: relationship.TypeMemberOf, ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.FromEntityID)
	}
	return ids, nil
}

// createAnchor inserts the ORGANIZATION entity that membership edges point at.
// Anchor names share the platform's name uniqueness, so two organizations cannot share a name.
func createAnchor(ctx context.Context, repos appshared.Repositories, platform shared.OrgScope, o *organization.Organization) error {
	anchor, err := entity.NewEntity(platform, entity.NewInput{
		ID:         o.ID,
		EntityType: EntityTypeOrganization,
		EntityName: o.Name,
		EntityCode: o.Code,
		SmartCode:  governance.SystemOrganization,
	})
	if err != nil {
		return err
	}
	err = repos.Entities().Create(ctx, anchor)
	if errors.Is(err, entity.ErrDuplicate) {
		return organization.ErrDuplicate
	}
	return err
}

func addMember(ctx context.Context, repos appshared.Repositories, platform shared.OrgScope, in MemberInput) error {
	role := strings.ToUpper(strings.TrimSpace(in.Role))
	if role == "" {
		role = identity.RoleMember
	}
	data := map[string]any{identity.DataKeyRole: role}
	if len(in.Permissions) > 0 {
		data[identity.DataKeyPermissions] = in.Permissions
	}
	_, err := relationship.NewGraph(repos.Relationships(), repos.Entities()).Link(ctx, platform, relationship.NewInput{
		From:      in.ActorID,
		To:        in.OrganizationID,
		Type:      relationship.TypeMemberOf,
		Data:      data,
		SmartCode: governance.SystemMemberOf,
	})
	return err
}
