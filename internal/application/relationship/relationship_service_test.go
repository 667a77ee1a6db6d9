package relationship

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/domain/identity"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/cache"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence"
	"github.com/ledgerbase/backend/internal/testutil"
)

const (
	partyCode  = "HERA.CRM.PARTY.ENT.v1"
	partnerRel = "HERA.CRM.REL.PARTNER.v1"
	statusCode = "HERA.CRM.STATUS.ENT.v1"
	statusRel  = "HERA.CRM.REL.STATUS.v1"
)

type fixture struct {
	svc   *RelationshipService
	repos appshared.Repositories
	hints *cache.MemoryHintStore
	scope shared.OrgScope
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	repos := persistence.NewRepositories(db)
	registry := governance.NewRegistry()
	require.NoError(t, registry.Register(
		governance.Entry{Code: partyCode},
		governance.Entry{Code: partnerRel},
		governance.Entry{Code: statusCode},
		governance.Entry{Code: statusRel},
	))
	require.NoError(t, registry.Register(governance.SystemEntries()...))
	hints := cache.NewMemoryHintStore(0)
	t.Cleanup(func() { _ = hints.Close() })

	scope := testutil.TestScope()
	return &fixture{
		svc: NewRelationshipService(
			persistence.NewGormUnitOfWork(db),
			repos,
			governance.NewGovernor(registry, governance.ModeStrict),
			hints,
			zap.NewNop(),
		),
		repos: repos,
		hints: hints,
		scope: scope,
		ctx:   testutil.ScopedContext(scope),
	}
}

func (f *fixture) entity(t *testing.T, entityType entity.Type, name string) uuid.UUID {
	t.Helper()
	e, err := entity.NewEntity(f.scope, entity.NewInput{EntityType: entityType, EntityName: name, SmartCode: partyCode})
	require.NoError(t, err)
	require.NoError(t, f.repos.Entities().Create(f.ctx, e))
	return e.ID
}

func TestRelationshipService_Link(t *testing.T) {
	f := newFixture(t)
	a := f.entity(t, "CUSTOMER", "Acme Rockets")
	b := f.entity(t, "VENDOR", "Initech")

	t.Run("creates an active edge", func(t *testing.T) {
		res, err := f.svc.Link(f.ctx, f.scope, LinkInput{
			FromEntityID: a, ToEntityID: b, RelationshipType: "partner_of",
			Data: map[string]any{"since": "2024"}, SmartCode: partnerRel,
		})
		require.NoError(t, err)
		assert.Equal(t, "PARTNER_OF", res.Relationship.RelationshipType)
		assert.True(t, res.Relationship.IsActive)
		assert.Equal(t, f.scope.OrganizationID, res.Relationship.OrganizationID)
		assert.Zero(t, res.Replaced)
	})

	t.Run("relink leaves one active edge", func(t *testing.T) {
		res, err := f.svc.Link(f.ctx, f.scope, LinkInput{
			FromEntityID: a, ToEntityID: b, RelationshipType: "PARTNER_OF", SmartCode: partnerRel,
		})
		require.NoError(t, err)
		assert.EqualValues(t, 1, res.Replaced)

		active, err := f.svc.Query(f.ctx, f.scope, QueryInput{FromEntityID: &a, RelationshipType: "PARTNER_OF"})
		require.NoError(t, err)
		require.Len(t, active, 1)
		assert.Equal(t, res.Relationship.ID, active[0].ID)

		all := false
		history, err := f.svc.Query(f.ctx, f.scope, QueryInput{FromEntityID: &a, ActiveOnly: &all})
		require.NoError(t, err)
		assert.Len(t, history, 2)
	})

	t.Run("unknown endpoint", func(t *testing.T) {
		_, err := f.svc.Link(f.ctx, f.scope, LinkInput{
			FromEntityID: a, ToEntityID: uuid.New(), RelationshipType: "PARTNER_OF", SmartCode: partnerRel,
		})
		assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	})

	t.Run("unregistered smart code", func(t *testing.T) {
		_, err := f.svc.Link(f.ctx, f.scope, LinkInput{
			FromEntityID: a, ToEntityID: b, RelationshipType: "PARTNER_OF", SmartCode: "HERA.CRM.REL.OTHER.v1",
		})
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})

	t.Run("invalid type", func(t *testing.T) {
		_, err := f.svc.Link(f.ctx, f.scope, LinkInput{
			FromEntityID: a, ToEntityID: b, RelationshipType: "partner of", SmartCode: partnerRel,
		})
		assert.Equal(t, shared.KindValidation, shared.KindOf(err))
	})

	t.Run("other organizations see nothing", func(t *testing.T) {
		other := shared.OrgScope{OrganizationID: testutil.NewTestUUID("other-org"), ActorID: f.scope.ActorID}
		edges, err := f.svc.Query(f.ctx, other, QueryInput{FromEntityID: &a})
		require.NoError(t, err)
		assert.Empty(t, edges)
	})
}

func TestRelationshipService_Unlink(t *testing.T) {
	f := newFixture(t)
	a := f.entity(t, "CUSTOMER", "Acme Rockets")
	b := f.entity(t, "VENDOR", "Initech")
	_, err := f.svc.Link(f.ctx, f.scope, LinkInput{FromEntityID: a, ToEntityID: b, RelationshipType: "PARTNER_OF", SmartCode: partnerRel})
	require.NoError(t, err)

	require.NoError(t, f.svc.Unlink(f.ctx, f.scope, UnlinkInput{FromEntityID: a, ToEntityID: b, RelationshipType: "PARTNER_OF"}))

	active, err := f.svc.Query(f.ctx, f.scope, QueryInput{FromEntityID: &a})
	require.NoError(t, err)
	assert.Empty(t, active)

	err = f.svc.Unlink(f.ctx, f.scope, UnlinkInput{FromEntityID: a, ToEntityID: b, RelationshipType: "PARTNER_OF"})
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
}

func TestRelationshipService_IdentityEdgesInvalidateHints(t *testing.T) {
	f := newFixture(t)
	user := f.entity(t, "USER", "Jane Doe")
	org := f.entity(t, "ORGANIZATION", "Acme Holdings")

	seed := func() {
		require.NoError(t, f.hints.Set(f.ctx, user, &identity.Introspection{ActorID: user}, time.Minute))
	}

	seed()
	_, err := f.svc.Link(f.ctx, f.scope, LinkInput{
		FromEntityID: user, ToEntityID: org, RelationshipType: "MEMBER_OF",
		Data: map[string]any{"role": "OWNER"}, SmartCode: governance.SystemMemberOf,
	})
	require.NoError(t, err)
	_, ok, err := f.hints.Get(f.ctx, user)
	require.NoError(t, err)
	assert.False(t, ok, "membership change must drop the hint")

	seed()
	require.NoError(t, f.svc.Unlink(f.ctx, f.scope, UnlinkInput{FromEntityID: user, ToEntityID: org, RelationshipType: "MEMBER_OF"}))
	_, ok, err = f.hints.Get(f.ctx, user)
	require.NoError(t, err)
	assert.False(t, ok)

	seed()
	_, err = f.svc.Link(f.ctx, f.scope, LinkInput{FromEntityID: user, ToEntityID: org, RelationshipType: "PARTNER_OF", SmartCode: partnerRel})
	require.NoError(t, err)
	_, ok, err = f.hints.Get(f.ctx, user)
	require.NoError(t, err)
	assert.True(t, ok, "non-identity edges keep the hint")
}

func TestRelationshipService_SetStatus(t *testing.T) {
	f := newFixture(t)
	order := f.entity(t, "ORDER", "SO-1001")
	draft := f.entity(t, "STATUS", "Draft")
	approved := f.entity(t, "STATUS", "Approved")

	_, err := f.svc.SetStatus(f.ctx, f.scope, StatusInput{EntityID: order, StatusEntityID: draft, SmartCode: statusRel})
	require.NoError(t, err)
	res, err := f.svc.SetStatus(f.ctx, f.scope, StatusInput{EntityID: order, StatusEntityID: approved, SmartCode: statusRel})
	require.NoError(t, err)
	assert.EqualValues(t, 1, res.Replaced)

	current, err := f.svc.Query(f.ctx, f.scope, QueryInput{FromEntityID: &order, RelationshipType: "HAS_STATUS"})
	require.NoError(t, err)
	require.Len(t, current, 1)
	assert.Equal(t, approved, current[0].ToEntityID)
}
