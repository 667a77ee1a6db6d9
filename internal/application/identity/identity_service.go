// Package identity resolves auth subjects to actors and actors to their organizations and roles.
package identity

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
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

const (
	EntityTypeUser entity.Type = "USER"
	EntityTypeRole entity.Type = "ROLE"

	metadataDisplayName = "display_name"
	metadataEmail       = "email"

	hintHit   = "hit"
	hintMiss  = "miss"
	hintError = "error"
)

// DefaultHintTTL bounds how long a cached introspection may lag behind organization settings
const DefaultHintTTL = 5 * time.Minute

// IdentityService maps auth subjects to USER entities and computes introspections
type IdentityService struct {
	uow     appshared.UnitOfWork
	repos   appshared.Repositories
	hints   identity.HintStore
	hintTTL time.Duration
	metrics *telemetry.DomainMetrics
	logger  *zap.Logger
}

// NewIdentityService creates a new identity service; hints may be nil to always compute
func NewIdentityService(
	uow appshared.UnitOfWork,
	repos appshared.Repositories,
	hints identity.HintStore,
	hintTTL time.Duration,
	logger *zap.Logger,
) *IdentityService {
	if hintTTL <= 0 {
		hintTTL = DefaultHintTTL
	}
	return &IdentityService{
		uow:     uow,
		repos:   repos,
		hints:   hints,
		hintTTL: hintTTL,
		logger:  logger,
	}
}

// SetDomainMetrics enables hint cache metrics
func (s *IdentityService) SetDomainMetrics(m *telemetry.DomainMetrics) {
	s.metrics = m
}

// ResolveActor finds the USER entity for subject without creating it
func (s *IdentityService) ResolveActor(ctx context.Context, subject string) (*ActorDTO, error) {
	subject = strings.TrimSpace(subject)
	if subject == "" {
		return nil, shared.NewValidationError("INVALID_SUBJECT", "subject is required")
	}
	e, err := s.repos.Entities().FindByCode(ctx, shared.PlatformOrganizationID, EntityTypeUser, subject)
	if err != nil {
		return nil, err
	}
	return toActorDTO(e, false), nil
}

// EnsureActor returns the USER entity for the subject, creating it on first sight.
// Users are keyed by entity_code; the entity name is the email, or the subject
// when no email is known, so that display names may repeat.
func (s *IdentityService) EnsureActor(ctx context.Context, in EnsureActorInput) (*ActorDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "ensure_actor")
	defer span.End()

	subject := strings.TrimSpace(in.Subject)
	if subject == "" {
		return nil, shared.NewValidationError("INVALID_SUBJECT", "subject is required")
	}
	if actor, err := s.ResolveActor(ctx, subject); err == nil {
		return actor, nil
	} else if shared.KindOf(err) != shared.KindNotFound {
		return nil, err
	}

	name := strings.TrimSpace(in.Email)
	if name == "" {
		name = subject
	}
	metadata := map[string]any{metadataDisplayName: strings.TrimSpace(in.Name)}
	if in.Email != "" {
		metadata[metadataEmail] = strings.TrimSpace(in.Email)
	}
	platform := shared.OrgScope{OrganizationID: shared.PlatformOrganizationID}

	var out *ActorDTO
	err := s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		user, err := entity.NewEntity(platform, entity.NewInput{
			EntityType: EntityTypeUser,
			EntityName: name,
			EntityCode: subject,
			SmartCode:  governance.SystemUser,
			Metadata:   metadata,
		})
		if err != nil {
			return err
		}
		err = repos.Entities().Create(ctx, user)
		if errors.Is(err, entity.ErrDuplicate) {
			// lost a race with another first request for the same subject
			existing, findErr := repos.Entities().FindByCode(ctx, shared.PlatformOrganizationID, EntityTypeUser, subject)
			if findErr != nil {
				return err
			}
			out = toActorDTO(existing, false)
			return nil
		}
		if err != nil {
			return err
		}
		out = toActorDTO(user, true)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if out.IsNew {
		logger.L(ctx).Info("Actor registered",
			zap.String("actor_id", out.ID.String()),
			zap.String("subject", subject),
		)
	}
	return out, nil
}

// Introspect returns the organizations, roles and apps of actorID.
// A cached hint is served when present; otherwise the graph is read and the hint refreshed.
func (s *IdentityService) Introspect(ctx context.Context, actorID uuid.UUID) (*identity.Introspection, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "identity", "introspect")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrActorID, actorID.String())

	if actorID == uuid.Nil {
		return nil, shared.NewValidationError("INVALID_ACTOR", "actor_id is required")
	}

	if s.hints != nil {
		hint, ok, err := s.hints.Get(ctx, actorID)
		switch {
		case err != nil:
			s.recordHint(ctx, span, hintError)
			logger.L(ctx).Warn("Role hint lookup failed, computing from graph", zap.Error(err))
		case ok:
			s.recordHint(ctx, span, hintHit)
			return hint, nil
		default:
			s.recordHint(ctx, span, hintMiss)
		}
	}

	out, err := s.compute(ctx, actorID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if s.hints != nil {
		if err := s.hints.Set(ctx, actorID, out, s.hintTTL); err != nil {
			logger.L(ctx).Warn("Failed to store role hint", zap.Error(err))
		}
	}
	return out, nil
}

// CanAccess reports whether actorID may act in organizationID
func (s *IdentityService) CanAccess(ctx context.Context, actorID, organizationID uuid.UUID) (bool, error) {
	in, err := s.Introspect(ctx, actorID)
	if err != nil {
		return false, err
	}
	return in.CanAccess(organizationID), nil
}

// Invalidate drops cached hints for the given actors
func (s *IdentityService) Invalidate(ctx context.Context, actorIDs ...uuid.UUID) error {
	if s.hints == nil || len(actorIDs) == 0 {
		return nil
	}
	return s.hints.Invalidate(ctx, actorIDs...)
}

func (s *IdentityService) recordHint(ctx context.Context, span trace.Span, result string) {
	telemetry.SetAttributes(span, telemetry.SpanAttrHintCacheResult, result)
	s.metrics.RecordHintLookup(ctx, result)
}

// compute reads the actor's identity edges in the platform organization
func (s *IdentityService) compute(ctx context.Context, actorID uuid.UUID) (*identity.Introspection, error) {
	edges := s.repos.Relationships()
	memberships, err := edges.Find(ctx, shared.PlatformOrganizationID, relationship.Filter{
		From: &actorID, Type: relationship.TypeMemberOf, ActiveOnly: true,
	})
	if err != nil {
		return nil, err
	}
	grants, err := s.roleGrants(ctx, actorID)
	if err != nil {
		return nil, err
	}

	orgIDs := make([]uuid.UUID, 0, len(memberships))
	for _, m := range memberships {
		orgIDs = append(orgIDs, m.ToEntityID)
	}
	orgs := make(map[uuid.UUID]identity.OrgInfo, len(orgIDs))
	if len(orgIDs) > 0 {
		found, err := s.repos.Organizations().FindByIDs(ctx, orgIDs)
		if err != nil {
			return nil, err
		}
		for _, o := range found {
			if o.Status != organization.StatusActive {
				continue
			}
			orgs[o.ID] = identity.OrgInfo{ID: o.ID, Name: o.Name, Apps: o.Apps()}
		}
	}
	return identity.Build(actorID, memberships, grants, orgs), nil
}

// roleGrants resolves HAS_ROLE edges to live ROLE entities
func (s *IdentityService) roleGrants(ctx context.Context, actorID uuid.UUID) ([]identity.RoleGrant, error) {
	edges, err := s.repos.Relationships().Find(ctx, shared.PlatformOrganizationID, relationship.Filter{
		From: &actorID, Type: relationship.TypeHasRole, ActiveOnly: true,
	})
	if err != nil || len(edges) == 0 {
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(edges))
	for _, e := range edges {
		ids = append(ids, e.ToEntityID)
	}
	roles, err := s.repos.Entities().FindByIDs(ctx, shared.PlatformOrganizationID, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uuid.UUID]string, len(roles))
	for _, r := range roles {
		if r.EntityType == EntityTypeRole && !r.IsDeleted() {
			names[r.ID] = r.EntityName
		}
	}

	grants := make([]identity.RoleGrant, 0, len(edges))
	for _, e := range edges {
		name, ok := names[e.ToEntityID]
		if !ok {
			continue
		}
		g := identity.RoleGrant{RoleName: name}
		if raw := e.DataString(identity.DataKeyOrganization); raw != "" {
			orgID, err := uuid.Parse(raw)
			if err != nil {
				s.logger.Warn("Ignoring role grant with malformed organization_id",
					zap.String("relationship_id", e.ID.String()),
					zap.String("organization_id", raw),
				)
				continue
			}
			g.OrganizationID = orgID
		}
		grants = append(grants, g)
	}
	return grants, nil
}
