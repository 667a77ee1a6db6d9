package relationship

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

type memoryEdges struct {
	edges        []*Relationship
	conflictOnce int
}

func (m *memoryEdges) FindByID(_ context.Context, org, id uuid.UUID) (*Relationship, error) {
	for _, e := range m.edges {
		if e.OrganizationID == org && e.ID == id {
			return e, nil
		}
	}
	return nil, shared.ErrNotFound
}

func (m *memoryEdges) Find(_ context.Context, org uuid.UUID, f Filter) ([]*Relationship, error) {
	var out []*Relationship
	for _, e := range m.edges {
		if e.OrganizationID != org {
			continue
		}
		if f.From != nil && e.FromEntityID != *f.From {
			continue
		}
		if f.To != nil && e.ToEntityID != *f.To {
			continue
		}
		if f.Type != "" && e.RelationshipType != f.Type {
			continue
		}
		if f.ActiveOnly && !e.IsActive {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (m *memoryEdges) Create(_ context.Context, r *Relationship) error {
	if m.conflictOnce > 0 {
		m.conflictOnce--
		return ErrRelinkConflict
	}
	for _, e := range m.edges {
		if e.IsActive && e.OrganizationID == r.OrganizationID && e.FromEntityID == r.FromEntityID &&
			e.ToEntityID == r.ToEntityID && e.RelationshipType == r.RelationshipType {
			return ErrRelinkConflict
		}
	}
	m.edges = append(m.edges, r)
	return nil
}

func (m *memoryEdges) Deactivate(_ context.Context, org, from, to uuid.UUID, t Type) (int64, error) {
	var n int64
	for _, e := range m.edges {
		if e.IsActive && e.OrganizationID == org && e.FromEntityID == from && e.ToEntityID == to && e.RelationshipType == t {
			e.Deactivate()
			n++
		}
	}
	return n, nil
}

func (m *memoryEdges) DeactivateAllFor(_ context.Context, org, id uuid.UUID) (int64, error) {
	var n int64
	for _, e := range m.edges {
		if e.IsActive && e.OrganizationID == org && (e.FromEntityID == id || e.ToEntityID == id) {
			e.Deactivate()
			n++
		}
	}
	return n, nil
}

type memoryEntities struct {
	items map[uuid.UUID]*entity.Entity
}

func (m *memoryEntities) add(t *testing.T, org uuid.UUID, typ entity.Type, name string) *entity.Entity {
	t.Helper()
	e, err := entity.NewEntity(shared.OrgScope{OrganizationID: org}, entity.NewInput{EntityType: typ, EntityName: name, SmartCode: "HERA.TEST.ENT.v1"})
	require.NoError(t, err)
	m.items[e.ID] = e
	return e
}

func (m *memoryEntities) FindByID(_ context.Context, org, id uuid.UUID) (*entity.Entity, error) {
	if e, ok := m.items[id]; ok && e.OrganizationID == org {
		return e, nil
	}
	return nil, entity.NotFound(id)
}

func (m *memoryEntities) FindByIDs(context.Context, uuid.UUID, []uuid.UUID) ([]*entity.Entity, error) {
	return nil, nil
}

func (m *memoryEntities) FindByCode(context.Context, uuid.UUID, entity.Type, string) (*entity.Entity, error) {
	return nil, shared.ErrNotFound
}

func (m *memoryEntities) FindByNormalizedName(context.Context, uuid.UUID, entity.Type, string) (*entity.Entity, error) {
	return nil, shared.ErrNotFound
}

func (m *memoryEntities) ScanCandidates(context.Context, uuid.UUID, entity.Type, *entity.Cursor, int) ([]*entity.Entity, error) {
	return nil, nil
}

func (m *memoryEntities) Create(context.Context, *entity.Entity) error { return nil }
func (m *memoryEntities) Update(context.Context, *entity.Entity) error { return nil }

func (m *memoryEntities) Query(context.Context, uuid.UUID, entity.Filter, shared.Page) ([]*entity.Entity, int64, error) {
	return nil, 0, nil
}

func TestGraph_Link(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	scope := shared.OrgScope{OrganizationID: org, ActorID: uuid.New()}
	const sc = "HERA.REL.LINK.v1"

	setup := func(t *testing.T) (*Graph, *memoryEdges, *memoryEntities) {
		edges := &memoryEdges{}
		entities := &memoryEntities{items: map[uuid.UUID]*entity.Entity{}}
		return NewGraph(edges, entities), edges, entities
	}

	t.Run("relink leaves exactly one active edge", func(t *testing.T) {
		g, edges, entities := setup(t)
		a := entities.add(t, org, "CUSTOMER", "A")
		b := entities.add(t, org, "STATUS", "B")

		first, err := g.Link(ctx, scope, NewInput{From: a.ID, To: b.ID, Type: "HAS_TIER", SmartCode: sc})
		require.NoError(t, err)
		assert.Zero(t, first.Replaced)

		second, err := g.Link(ctx, scope, NewInput{From: a.ID, To: b.ID, Type: "HAS_TIER", SmartCode: sc, Data: map[string]any{"v": 2}})
		require.NoError(t, err)
		assert.Equal(t, int64(1), second.Replaced)

		active, err := g.Query(ctx, scope, Filter{From: &a.ID, ActiveOnly: true})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, second.Relationship.ID, active[0].ID)
		assert.Len(t, edges.edges, 2)
	})

	t.Run("concurrent relink is retried once", func(t *testing.T) {
		g, edges, entities := setup(t)
		a := entities.add(t, org, "CUSTOMER", "A")
		b := entities.add(t, org, "CUSTOMER", "B")
		edges.conflictOnce = 1
		_, err := g.Link(ctx, scope, NewInput{From: a.ID, To: b.ID, Type: "REFERS", SmartCode: sc})
		require.NoError(t, err)

		edges.conflictOnce = 2
		_, err = g.Link(ctx, scope, NewInput{From: a.ID, To: b.ID, Type: "REFERS", SmartCode: sc})
		assert.Equal(t, shared.KindConflict, shared.KindOf(err))
	})

	t.Run("endpoints must live in the organization", func(t *testing.T) {
		g, _, entities := setup(t)
		a := entities.add(t, org, "CUSTOMER", "A")
		foreign := entities.add(t, uuid.New(), "CUSTOMER", "F")
		_, err := g.Link(ctx, scope, NewInput{From: a.ID, To: foreign.ID, Type: "REFERS", SmartCode: sc})
		assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

		deleted := entities.add(t, org, "CUSTOMER", "D")
		require.NoError(t, deleted.MarkDeleted())
		_, err = g.Link(ctx, scope, NewInput{From: a.ID, To: deleted.ID, Type: "REFERS", SmartCode: sc})
		assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	})

	t.Run("identity edges may reach platform entities", func(t *testing.T) {
		g, _, entities := setup(t)
		user := entities.add(t, shared.PlatformOrganizationID, entity.TypeUser, "user-1")
		role := entities.add(t, shared.PlatformOrganizationID, entity.TypeRole, "ADMIN")

		_, err := g.Link(ctx, scope, NewInput{From: user.ID, To: role.ID, Type: TypeHasRole, SmartCode: sc})
		require.NoError(t, err)

		_, err = g.Link(ctx, scope, NewInput{From: user.ID, To: role.ID, Type: "REFERS", SmartCode: sc})
		assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	})

	t.Run("validation and tenant errors", func(t *testing.T) {
		g, _, _ := setup(t)
		_, err := g.Link(ctx, shared.OrgScope{}, NewInput{From: uuid.New(), To: uuid.New(), Type: "X", SmartCode: sc})
		assert.Equal(t, shared.KindTenantScope, shared.KindOf(err))
		_, err = g.Link(ctx, scope, NewInput{From: uuid.New(), To: uuid.New(), Type: "bad type", SmartCode: sc})
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
		_, err = g.Link(ctx, scope, NewInput{To: uuid.New(), Type: "X", SmartCode: sc})
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})
}

func TestGraph_UnlinkAndStatus(t *testing.T) {
	ctx := context.Background()
	org := uuid.New()
	scope := shared.OrgScope{OrganizationID: org}
	edges := &memoryEdges{}
	entities := &memoryEntities{items: map[uuid.UUID]*entity.Entity{}}
	g := NewGraph(edges, entities)

	order := entities.add(t, org, "ORDER", "SO-1")
	draft := entities.add(t, org, "STATUS", "Draft")
	approved := entities.add(t, org, "STATUS", "Approved")

	_, err := g.SetStatus(ctx, scope, order.ID, draft.ID, "HERA.WF.STATUS.v1")
	require.NoError(t, err)
	res, err := g.SetStatus(ctx, scope, order.ID, approved.ID, "HERA.WF.STATUS.v1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Replaced)

	active, err := g.Query(ctx, scope, Filter{From: &order.ID, Type: TypeHasStatus, ActiveOnly: true})
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, approved.ID, active[0].ToEntityID)

	all, err := g.Query(ctx, scope, Filter{From: &order.ID})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, g.Unlink(ctx, scope, order.ID, approved.ID, TypeHasStatus))
	err = g.Unlink(ctx, scope, order.ID, approved.ID, TypeHasStatus)
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	none, err := g.Query(ctx, scope, Filter{From: &order.ID, ActiveOnly: true})
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestRelationship_Data(t *testing.T) {
	r := &Relationship{Data: map[string]any{"role": "ADMIN", "permissions": []any{"a", "b", 3}}}
	assert.Equal(t, "ADMIN", r.DataString("role"))
	assert.Equal(t, []string{"a", "b"}, r.DataStrings("permissions"))
	assert.Empty(t, (&Relationship{}).DataString("role"))

	typ, err := ParseType(" member_of ")
	require.NoError(t, err)
	assert.True(t, typ.IsIdentity())
}
