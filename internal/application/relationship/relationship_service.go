// Package relationship implements the link, unlink and query actions over the relationship graph.
package relationship

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/domain/identity"
	"github.com/ledgerbase/backend/internal/domain/relationship"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/logger"
	"github.com/ledgerbase/backend/internal/infrastructure/telemetry"
)

// LinkInput describes an edge to create
type LinkInput struct {
	FromEntityID     uuid.UUID      `json:"from_entity_id" validate:"required"`
	ToEntityID       uuid.UUID      `json:"to_entity_id" validate:"required"`
	RelationshipType string         `json:"relationship_type" validate:"required,max=100"`
	Data             map[string]any `json:"relationship_data,omitempty"`
	SmartCode        string         `json:"smart_code" validate:"required,max=255"`
}

// UnlinkInput identifies the active edge to end
type UnlinkInput struct {
	FromEntityID     uuid.UUID `json:"from_entity_id" validate:"required"`
	ToEntityID       uuid.UUID `json:"to_entity_id" validate:"required"`
	RelationshipType string    `json:"relationship_type" validate:"required,max=100"`
}

// QueryInput filters edges; ActiveOnly defaults to true
type QueryInput struct {
	FromEntityID     *uuid.UUID `json:"from_entity_id,omitempty"`
	ToEntityID       *uuid.UUID `json:"to_entity_id,omitempty"`
	RelationshipType string     `json:"relationship_type,omitempty"`
	ActiveOnly       *bool      `json:"active_only,omitempty"`
}

// StatusInput points an entity at its current status entity
type StatusInput struct {
	EntityID       uuid.UUID `json:"entity_id" validate:"required"`
	StatusEntityID uuid.UUID `json:"status_entity_id" validate:"required"`
	SmartCode      string    `json:"smart_code" validate:"required,max=255"`
}

// RelationshipDTO is the read model of an edge
type RelationshipDTO struct {
	ID               uuid.UUID      `json:"id"`
	OrganizationID   uuid.UUID      `json:"organization_id"`
	FromEntityID     uuid.UUID      `json:"from_entity_id"`
	ToEntityID       uuid.UUID      `json:"to_entity_id"`
	RelationshipType string         `json:"relationship_type"`
	IsActive         bool           `json:"is_active"`
	Data             map[string]any `json:"relationship_data,omitempty"`
	SmartCode        string         `json:"smart_code"`
	CreatedAt        time.Time      `json:"created_at"`
	DeactivatedAt    *time.Time     `json:"deactivated_at,omitempty"`
}

// LinkResult is the outcome of Link and SetStatus
type LinkResult struct {
	Relationship RelationshipDTO `json:"relationship"`
	Replaced     int64           `json:"replaced"`
}

// ToRelationshipDTO converts a domain relationship
func ToRelationshipDTO(r *relationship.Relationship) RelationshipDTO {
	return RelationshipDTO{
		ID:               r.ID,
		OrganizationID:   r.OrganizationID,
		FromEntityID:     r.FromEntityID,
		ToEntityID:       r.ToEntityID,
		RelationshipType: string(r.RelationshipType),
		IsActive:         r.IsActive,
		Data:             r.Data,
		SmartCode:        r.SmartCode,
		CreatedAt:        r.CreatedAt,
		DeactivatedAt:    r.DeactivatedAt,
	}
}

// RelationshipService links entities and keeps identity hints fresh
type RelationshipService struct {
	uow      appshared.UnitOfWork
	repos    appshared.Repositories
	governor *governance.Governor
	hints    identity.HintStore
	logger   *zap.Logger
}

// NewRelationshipService creates a new relationship service; hints may be nil
func NewRelationshipService(
	uow appshared.UnitOfWork,
	repos appshared.Repositories,
	governor *governance.Governor,
	hints identity.HintStore,
	logger *zap.Logger,
) *RelationshipService {
	return &RelationshipService{
		uow:      uow,
		repos:    repos,
		governor: governor,
		hints:    hints,
		logger:   logger,
	}
}

// Link creates the edge, replacing an active edge with the same endpoints and type
func (s *RelationshipService) Link(ctx context.Context, scope shared.OrgScope, in LinkInput) (*LinkResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "relationship", "link")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrRelationType, in.RelationshipType)

	relType, err := relationship.ParseType(in.RelationshipType)
	if err != nil {
		return nil, err
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if _, err := appshared.Govern(ctx, s.governor, scope.OrganizationID, in.SmartCode); err != nil {
		return nil, err
	}

	var res relationship.LinkResult
	err = s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		var err error
		res, err = graph(repos).Link(ctx, scope, relationship.NewInput{
			From:      in.FromEntityID,
			To:        in.ToEntityID,
			Type:      relType,
			Data:      in.Data,
			SmartCode: in.SmartCode,
		})
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.invalidate(ctx, relType, in.FromEntityID)
	return &LinkResult{Relationship: ToRelationshipDTO(res.Relationship), Replaced: res.Replaced}, nil
}

// Unlink ends the active edge with the given endpoints and type
func (s *RelationshipService) Unlink(ctx context.Context, scope shared.OrgScope, in UnlinkInput) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "relationship", "unlink")
	defer span.End()

	relType, err := relationship.ParseType(in.RelationshipType)
	if err != nil {
		return err
	}
	err = s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		return graph(repos).Unlink(ctx, scope, in.FromEntityID, in.ToEntityID, relType)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return err
	}
	s.invalidate(ctx, relType, in.FromEntityID)
	return nil
}

// Query lists edges of the organization
func (s *RelationshipService) Query(ctx context.Context, scope shared.OrgScope, in QueryInput) ([]RelationshipDTO, error) {
	filter := relationship.Filter{From: in.FromEntityID, To: in.ToEntityID, ActiveOnly: true}
	if in.ActiveOnly != nil {
		filter.ActiveOnly = *in.ActiveOnly
	}
	if strings.TrimSpace(in.RelationshipType) != "" {
		t, err := relationship.ParseType(in.RelationshipType)
		if err != nil {
			return nil, err
		}
		filter.Type = t
	}
	edges, err := graph(s.repos).Query(ctx, scope, filter)
	if err != nil {
		return nil, err
	}
	out := make([]RelationshipDTO, 0, len(edges))
	for _, e := range edges {
		out = append(out, ToRelationshipDTO(e))
	}
	return out, nil
}

// SetStatus replaces the entity's HAS_STATUS edge
func (s *RelationshipService) SetStatus(ctx context.Context, scope shared.OrgScope, in StatusInput) (*LinkResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "relationship", "set_status")
	defer span.End()

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if _, err := appshared.Govern(ctx, s.governor, scope.OrganizationID, in.SmartCode); err != nil {
		return nil, err
	}
	var res relationship.LinkResult
	err := s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		var err error
		res, err = graph(repos).SetStatus(ctx, scope, in.EntityID, in.StatusEntityID, in.SmartCode)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return &LinkResult{Relationship: ToRelationshipDTO(res.Relationship), Replaced: res.Replaced}, nil
}

// invalidate drops the role hint of actor after an identity edge changed.
// The edge is already committed, so a failure only delays freshness until the hint expires.
func (s *RelationshipService) invalidate(ctx context.Context, relType relationship.Type, actor uuid.UUID) {
	if s.hints == nil || !relType.IsIdentity() {
		return
	}
	if err := s.hints.Invalidate(ctx, actor); err != nil {
		logger.L(ctx).Warn("Failed to invalidate role hint",
			zap.String("actor_id", actor.String()),
			zap.Error(err),
		)
	}
}

func graph(repos appshared.Repositories) *relationship.Graph {
	return relationship.NewGraph(repos.Relationships(), repos.Entities())
}
