// Package entity implements the entity actions: create with resolution, read, update, delete and query.
package entity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/domain/attribute"
	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/domain/identity"
	"github.com/ledgerbase/backend/internal/domain/relationship"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/telemetry"
)

// EntityService handles the entity lifecycle within one organization
type EntityService struct {
	uow       appshared.UnitOfWork
	repos     appshared.Repositories
	governor  *governance.Governor
	resolver  entity.ResolverConfig
	chunkSize int
	maxLimit  int
	metrics   *telemetry.DomainMetrics
	hints     identity.HintStore
	logger    *zap.Logger
}

// NewEntityService creates a new entity service.
// repos serves reads outside a unit of work; writes go through uow.
func NewEntityService(
	uow appshared.UnitOfWork,
	repos appshared.Repositories,
	governor *governance.Governor,
	resolver entity.ResolverConfig,
	chunkSize int,
	logger *zap.Logger,
) *EntityService {
	return &EntityService{
		uow:       uow,
		repos:     repos,
		governor:  governor,
		resolver:  resolver,
		chunkSize: chunkSize,
		maxLimit:  shared.MaxPageSize,
		logger:    logger,
	}
}

// SetDomainMetrics sets the domain metrics recorder
func (s *EntityService) SetDomainMetrics(m *telemetry.DomainMetrics) {
	s.metrics = m
}

// SetHintStore sets the role hint cache dropped when a delete ends identity edges
func (s *EntityService) SetHintStore(h identity.HintStore) {
	s.hints = h
}

// Create resolves the candidate to an existing entity or creates it, then writes the supplied fields
func (s *EntityService) Create(ctx context.Context, scope shared.OrgScope, in CreateInput) (*CreateResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "entity", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrOrganizationID, scope.OrganizationID.String(),
		telemetry.SpanAttrEntityType, in.EntityType,
		telemetry.SpanAttrSmartCode, in.SmartCode,
	)

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	entityType, err := entity.ParseType(in.EntityType)
	if err != nil {
		return nil, err
	}
	if _, err := appshared.Govern(ctx, s.governor, scope.OrganizationID, in.SmartCode); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	candidate, err := entity.NewEntity(scope, entity.NewInput{
		EntityType: entityType,
		EntityName: in.EntityName,
		EntityCode: in.EntityCode,
		SmartCode:  in.SmartCode,
		Status:     entity.Status(strings.ToUpper(in.Status)),
		Metadata:   in.Metadata,
	})
	if err != nil {
		return nil, err
	}
	fields, err := s.parseFields(ctx, scope, in.SmartCode, in.Fields)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var res entity.Resolution
	err = s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		var err error
		res, err = entity.NewResolver(repos.Entities(), s.resolver).ResolveOrCreate(ctx, candidate)
		if err != nil {
			return err
		}
		writes := fields
		if res.IsNew {
			writes = append([]attribute.FieldInput{normalizedNameField(res.Entity)}, fields...)
		}
		_, err = attribute.NewStore(repos.Fields(), s.chunkSize).SetFields(ctx, scope, res.Entity.ID, writes)
		return err
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	s.metrics.RecordResolution(ctx, scope.OrganizationID, entityType.String(), string(res.MatchedBy), time.Since(start))
	telemetry.SetAttributes(span,
		telemetry.SpanAttrEntityID, res.Entity.ID.String(),
		telemetry.SpanAttrMatchedBy, string(res.MatchedBy),
	)
	if !res.IsNew {
		s.logger.Debug("Entity resolved to existing record",
			zap.String("entity_id", res.Entity.ID.String()),
			zap.String("matched_by", string(res.MatchedBy)),
			zap.Float64("similarity", res.Similarity),
		)
	}

	values, err := s.store().GetFields(ctx, scope, res.Entity.ID)
	if err != nil {
		return nil, err
	}
	dto := ToEntityDTO(res.Entity)
	dto.Fields = values
	return &CreateResult{
		Entity:     dto,
		IsNew:      res.IsNew,
		MatchedBy:  string(res.MatchedBy),
		Similarity: res.Similarity,
	}, nil
}

// Read returns the entity with its current fields and, on request, its active relationships
func (s *EntityService) Read(ctx context.Context, scope shared.OrgScope, in ReadInput) (*EntityDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "entity", "read")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrEntityID, in.EntityID.String())

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	e, err := s.repos.Entities().FindByID(ctx, scope.OrganizationID, in.EntityID)
	if err != nil {
		return nil, err
	}
	values, err := s.store().GetFields(ctx, scope, e.ID)
	if err != nil {
		return nil, err
	}
	dto := ToEntityDTO(e)
	dto.Fields = values
	if in.IncludeRelationships {
		edges, err := s.edgesOf(ctx, scope, e.ID)
		if err != nil {
			return nil, err
		}
		dto.Relationships = edges
	}
	return &dto, nil
}

// Update changes header values and upserts fields.
// Renaming onto another entity's normalized name or code is a conflict.
func (s *EntityService) Update(ctx context.Context, scope shared.OrgScope, in UpdateInput) (*EntityDTO, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "entity", "update")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrEntityID, in.EntityID.String())

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	if in.SmartCode != nil {
		if _, err := appshared.Govern(ctx, s.governor, scope.OrganizationID, *in.SmartCode); err != nil {
			return nil, err
		}
	}

	var updated *entity.Entity
	err := s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		e, err := repos.Entities().FindByID(ctx, scope.OrganizationID, in.EntityID)
		if err != nil {
			return err
		}
		if e.IsDeleted() {
			return entity.NotFound(e.ID)
		}
		fields, err := s.parseFields(ctx, scope, e.SmartCode, in.Fields)
		if err != nil {
			return err
		}

		renamed := false
		if in.EntityName != nil {
			previous := e.NormalizedName
			if err := e.Rename(*in.EntityName); err != nil {
				return err
			}
			if e.NormalizedName != previous {
				if err := checkNameFree(ctx, repos.Entities(), e); err != nil {
					return err
				}
				renamed = true
			}
		}
		if in.EntityCode != nil {
			e.SetCode(*in.EntityCode)
			if err := checkCodeFree(ctx, repos.Entities(), e); err != nil {
				return err
			}
		}
		if in.Status != nil {
			if err := e.SetStatus(entity.Status(strings.ToUpper(*in.Status))); err != nil {
				return err
			}
		}
		if in.SmartCode != nil {
			e.SetSmartCode(*in.SmartCode)
		}
		if len(in.Metadata) > 0 {
			e.MergeMetadata(in.Metadata)
		}
		if err := repos.Entities().Update(ctx, e); err != nil {
			return err
		}

		if renamed {
			fields = append([]attribute.FieldInput{normalizedNameField(e)}, fields...)
		}
		if _, err := attribute.NewStore(repos.Fields(), s.chunkSize).SetFields(ctx, scope, e.ID, fields); err != nil {
			return err
		}
		updated = e
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	values, err := s.store().GetFields(ctx, scope, updated.ID)
	if err != nil {
		return nil, err
	}
	dto := ToEntityDTO(updated)
	dto.Fields = values
	return &dto, nil
}

// Delete marks the entity deleted and deactivates every active edge touching it
func (s *EntityService) Delete(ctx context.Context, scope shared.OrgScope, in DeleteInput) (*DeleteResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "entity", "delete")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrEntityID, in.EntityID.String())

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	result := &DeleteResult{EntityID: in.EntityID}
	var actors []uuid.UUID
	err := s.uow.Execute(ctx, func(repos appshared.Repositories) error {
		e, err := repos.Entities().FindByID(ctx, scope.OrganizationID, in.EntityID)
		if err != nil {
			return err
		}
		if e.IsDeleted() {
			return entity.NotFound(e.ID)
		}
		if err := e.MarkDeleted(); err != nil {
			return err
		}
		if err := repos.Entities().Update(ctx, e); err != nil {
			return err
		}
		actors, err = identityActors(ctx, repos.Relationships(), scope.OrganizationID, e.ID)
		if err != nil {
			return err
		}
		n, err := repos.Relationships().DeactivateAllFor(ctx, scope.OrganizationID, e.ID)
		if err != nil {
			return fmt.Errorf("deactivate relationships: %w", err)
		}
		result.DeactivatedRelationships = n
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if s.hints != nil && len(actors) > 0 {
		if err := s.hints.Invalidate(ctx, actors...); err != nil {
			s.logger.Warn("Failed to invalidate role hints", zap.Int("actors", len(actors)), zap.Error(err))
		}
	}
	s.logger.Info("Entity deleted",
		zap.String("organization_id", scope.OrganizationID.String()),
		zap.String("entity_id", in.EntityID.String()),
		zap.Int64("deactivated_relationships", result.DeactivatedRelationships),
	)
	return result, nil
}

// identityActors returns the actors on the active MEMBER_OF and HAS_ROLE edges touching entityID
func identityActors(ctx context.Context, edges relationship.Repository, organizationID, entityID uuid.UUID) ([]uuid.UUID, error) {
	from, err := edges.Find(ctx, organizationID, relationship.Filter{From: &entityID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	to, err := edges.Find(ctx, organizationID, relationship.Filter{To: &entityID, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool)
	var out []uuid.UUID
	for _, e := range append(from, to...) {
		if !e.RelationshipType.IsIdentity() || seen[e.FromEntityID] {
			continue
		}
		seen[e.FromEntityID] = true
		out = append(out, e.FromEntityID)
	}
	return out, nil
}

// Query lists entities matching the filter, optionally with their current fields
func (s *EntityService) Query(ctx context.Context, scope shared.OrgScope, in QueryInput) (*shared.Paginated[EntityDTO], error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "entity", "query")
	defer span.End()

	if err := scope.Validate(); err != nil {
		return nil, err
	}
	filter := entity.Filter{
		Status:          entity.Status(strings.ToUpper(in.Status)),
		SmartCodePrefix: strings.TrimSpace(in.SmartCodePrefix),
		Search:          strings.TrimSpace(in.Search),
		IncludeDeleted:  in.IncludeDeleted,
	}
	if in.EntityType != "" {
		t, err := entity.ParseType(in.EntityType)
		if err != nil {
			return nil, err
		}
		filter.EntityType = t
	}
	page := shared.Page{Limit: in.Limit, Offset: in.Offset}.Normalize(s.maxLimit)

	items, total, err := s.repos.Entities().Query(ctx, scope.OrganizationID, filter, page)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	dtos := make([]EntityDTO, 0, len(items))
	ids := make([]uuid.UUID, 0, len(items))
	for _, e := range items {
		dtos = append(dtos, ToEntityDTO(e))
		ids = append(ids, e.ID)
	}
	if in.IncludeFields {
		bulk, err := s.store().GetFieldsBulk(ctx, scope, ids)
		if err != nil {
			return nil, err
		}
		for i := range dtos {
			dtos[i].Fields = bulk[dtos[i].ID]
			if dtos[i].Fields == nil {
				dtos[i].Fields = attribute.Values{}
			}
		}
	}
	result := shared.NewPaginated(dtos, total, page)
	return &result, nil
}

// FieldHistory returns every value written to one field of the entity
func (s *EntityService) FieldHistory(ctx context.Context, scope shared.OrgScope, entityID uuid.UUID, name string) ([]*attribute.Field, error) {
	if _, err := s.repos.Entities().FindByID(ctx, scope.OrganizationID, entityID); err != nil {
		return nil, err
	}
	return s.store().GetFieldHistory(ctx, scope, entityID, name)
}

func (s *EntityService) store() *attribute.Store {
	return attribute.NewStore(s.repos.Fields(), s.chunkSize)
}

// parseFields converts caller fields into typed values; fields without a smart code inherit fallback
func (s *EntityService) parseFields(ctx context.Context, scope shared.OrgScope, fallback string, in []FieldInput) ([]attribute.FieldInput, error) {
	out := make([]attribute.FieldInput, 0, len(in))
	for _, f := range in {
		v, err := attribute.ParseValue(attribute.FieldType(strings.ToLower(f.Type)), f.Value)
		if err != nil {
			return nil, err
		}
		code := fallback
		if f.SmartCode != "" {
			if _, err := appshared.Govern(ctx, s.governor, scope.OrganizationID, f.SmartCode); err != nil {
				return nil, err
			}
			code = f.SmartCode
		}
		out = append(out, attribute.FieldInput{Name: f.Name, Value: v, SmartCode: code})
	}
	return out, nil
}

func (s *EntityService) edgesOf(ctx context.Context, scope shared.OrgScope, id uuid.UUID) ([]RelationshipDTO, error) {
	outgoing, err := s.repos.Relationships().Find(ctx, scope.OrganizationID, relationship.Filter{From: &id, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	incoming, err := s.repos.Relationships().Find(ctx, scope.OrganizationID, relationship.Filter{To: &id, ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	seen := make(map[uuid.UUID]bool, len(outgoing)+len(incoming))
	out := make([]RelationshipDTO, 0, len(outgoing)+len(incoming))
	for _, r := range append(outgoing, incoming...) {
		if seen[r.ID] {
			continue
		}
		seen[r.ID] = true
		out = append(out, ToRelationshipDTO(r))
	}
	return out, nil
}

func normalizedNameField(e *entity.Entity) attribute.FieldInput {
	return attribute.FieldInput{
		Name:      attribute.FieldNormalizedName,
		Value:     attribute.Text(e.NormalizedName),
		SmartCode: governance.SystemNormalizedName,
	}
}

func checkNameFree(ctx context.Context, repo entity.Repository, e *entity.Entity) error {
	other, err := repo.FindByNormalizedName(ctx, e.OrganizationID, e.EntityType, e.NormalizedName)
	if err != nil && shared.KindOf(err) != shared.KindNotFound {
		return err
	}
	if other != nil && other.ID != e.ID {
		return shared.NewConflictError(entity.CodeDuplicateEntity,
			"%s %q already exists as %s", e.EntityType, e.EntityName, other.ID)
	}
	return nil
}

func checkCodeFree(ctx context.Context, repo entity.Repository, e *entity.Entity) error {
	if e.EntityCode == "" {
		return nil
	}
	other, err := repo.FindByCode(ctx, e.OrganizationID, e.EntityType, e.EntityCode)
	if err != nil && shared.KindOf(err) != shared.KindNotFound {
		return err
	}
	if other != nil && other.ID != e.ID {
		return shared.NewConflictError(entity.CodeDuplicateEntity,
			"%s code %q is already used by %s", e.EntityType, e.EntityCode, other.ID)
	}
	return nil
}
