package relationship

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

// LinkResult describes the outcome of Link
type LinkResult struct {
	Relationship *Relationship
	Replaced     int64
}

// Graph links entities within an organization
type Graph struct {
	edges    Repository
	entities entity.Repository
}

// NewGraph creates a graph over the given repositories
func NewGraph(edges Repository, entities entity.Repository) *Graph {
	return &Graph{edges: edges, entities: entities}
}

// Link creates the edge, first deactivating an existing active edge with the
// same endpoints and type. A concurrent relink is retried once.
func (g *Graph) Link(ctx context.Context, scope shared.OrgScope, in NewInput) (LinkResult, error) {
	edge, err := NewRelationship(scope, in)
	if err != nil {
		return LinkResult{}, err
	}
	if err := g.checkEndpoint(ctx, scope, in.Type, in.From); err != nil {
		return LinkResult{}, err
	}
	if err := g.checkEndpoint(ctx, scope, in.Type, in.To); err != nil {
		return LinkResult{}, err
	}

	var replaced int64
	for attempt := 0; attempt < 2; attempt++ {
		n, err := g.edges.Deactivate(ctx, scope.OrganizationID, in.From, in.To, in.Type)
		if err != nil {
			return LinkResult{}, fmt.Errorf("deactivate previous edge: %w", err)
		}
		replaced += n
		err = g.edges.Create(ctx, edge)
		if err == nil {
			return LinkResult{Relationship: edge, Replaced: replaced}, nil
		}
		if !errors.Is(err, ErrRelinkConflict) {
			return LinkResult{}, err
		}
	}
	return LinkResult{}, ErrRelinkConflict
}

// Unlink deactivates the active edge with the given endpoints and type
func (g *Graph) Unlink(ctx context.Context, scope shared.OrgScope, from, to uuid.UUID, relType Type) error {
	if err := scope.Validate(); err != nil {
		return err
	}
	n, err := g.edges.Deactivate(ctx, scope.OrganizationID, from, to, relType)
	if err != nil {
		return fmt.Errorf("deactivate edge: %w", err)
	}
	if n == 0 {
		return shared.NewNotFoundError(CodeRelationshipNotFound, "no active %s relationship from %s to %s", relType, from, to)
	}
	return nil
}

// Query lists edges of the scope's organization
func (g *Graph) Query(ctx context.Context, scope shared.OrgScope, filter Filter) ([]*Relationship, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	edges, err := g.edges.Find(ctx, scope.OrganizationID, filter)
	if err != nil {
		return nil, err
	}
	if edges == nil {
		edges = []*Relationship{}
	}
	return edges, nil
}

// SetStatus points subject at a single status entity, ending any previous HAS_STATUS edge
func (g *Graph) SetStatus(ctx context.Context, scope shared.OrgScope, subject, status uuid.UUID, smartCode string) (LinkResult, error) {
	current, err := g.Query(ctx, scope, Filter{From: &subject, Type: TypeHasStatus, ActiveOnly: true})
	if err != nil {
		return LinkResult{}, err
	}
	var replaced int64
	for _, edge := range current {
		if edge.ToEntityID == status {
			continue
		}
		n, err := g.edges.Deactivate(ctx, scope.OrganizationID, subject, edge.ToEntityID, TypeHasStatus)
		if err != nil {
			return LinkResult{}, fmt.Errorf("deactivate status edge: %w", err)
		}
		replaced += n
	}
	res, err := g.Link(ctx, scope, NewInput{From: subject, To: status, Type: TypeHasStatus, SmartCode: smartCode})
	res.Replaced += replaced
	return res, err
}

// checkEndpoint requires a live entity in the edge organization, or in the
// platform organization for identity edge types.
func (g *Graph) checkEndpoint(ctx context.Context, scope shared.OrgScope, relType Type, id uuid.UUID) error {
	e, err := g.entities.FindByID(ctx, scope.OrganizationID, id)
	if err != nil && shared.KindOf(err) != shared.KindNotFound {
		return err
	}
	if e == nil && relType.IsIdentity() && !scope.IsPlatform() {
		e, err = g.entities.FindByID(ctx, shared.PlatformOrganizationID, id)
		if err != nil && shared.KindOf(err) != shared.KindNotFound {
			return err
		}
	}
	if e == nil || e.IsDeleted() {
		return shared.NewNotFoundError(CodeEndpointNotFound, "entity %s not found in organization", id)
	}
	return nil
}
