package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	entityapp "github.com/ledgerbase/backend/internal/application/entity"
	orgapp "github.com/ledgerbase/backend/internal/application/organization"
	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/domain/identity"
	"github.com/ledgerbase/backend/internal/domain/relationship"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/cache"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence"
	"github.com/ledgerbase/backend/internal/testutil"
)

type fixture struct {
	svc      *IdentityService
	orgs     *orgapp.OrganizationService
	entities *entityapp.EntityService
	repos appshared.Repositories
	hints *cache.MemoryHintStore
	ctx   context.Context
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	repos := persistence.NewRepositories(db)
	uow := persistence.NewGormUnitOfWork(db)
	registry := governance.NewRegistry()
	require.NoError(t, registry.Register(governance.SystemEntries()...))
	hints := cache.NewMemoryHintStore(0)
	t.Cleanup(func() { _ = hints.Close() })

	governor := governance.NewGovernor(registry, governance.ModeStrict)
	f := &fixture{
		svc:      NewIdentityService(uow, repos, hints, 0, zap.NewNop()),
		orgs:     orgapp.NewOrganizationService(uow, repos, governor, hints, zap.NewNop()),
		entities: entityapp.NewEntityService(uow, repos, governor, entity.DefaultResolverConfig(), 0, zap.NewNop()),
		repos:    repos,
		hints:    hints,
		ctx:      context.Background(),
	}
	f.entities.SetHintStore(hints)
	require.NoError(t, f.orgs.EnsurePlatform(f.ctx))
	return f
}

func (f *fixture) actor(t *testing.T, subject string) uuid.UUID {
	t.Helper()
	a, err := f.svc.EnsureActor(f.ctx, EnsureActorInput{Subject: subject, Name: subject, Email: subject + "@example.com"})
	require.NoError(t, err)
	return a.ID
}

func (f *fixture) grantRole(t *testing.T, actor uuid.UUID, roleName string, orgID uuid.UUID) uuid.UUID {
	t.Helper()
	platform := shared.OrgScope{OrganizationID: shared.PlatformOrganizationID}
	role, err := entity.NewEntity(platform, entity.NewInput{EntityType: EntityTypeRole, EntityName: roleName, SmartCode: governance.SystemRole})
	require.NoError(t, err)
	require.NoError(t, f.repos.Entities().Create(f.ctx, role))

	data := map[string]any{}
	if orgID != uuid.Nil {
		data[identity.DataKeyOrganization] = orgID.String()
	}
	edge, err := relationship.NewRelationship(platform, relationship.NewInput{
		From: actor, To: role.ID, Type: relationship.TypeHasRole, Data: data, SmartCode: governance.SystemHasRole,
	})
	require.NoError(t, err)
	require.NoError(t, f.repos.Relationships().Create(f.ctx, edge))
	require.NoError(t, f.svc.Invalidate(f.ctx, actor))
	return role.ID
}

func TestIdentityService_EnsureActor(t *testing.T) {
	f := newFixture(t)

	first, err := f.svc.EnsureActor(f.ctx, EnsureActorInput{Subject: "auth0|42", Name: "Jane Doe", Email: "jane@example.com"})
	require.NoError(t, err)
	assert.True(t, first.IsNew)
	assert.Equal(t, "Jane Doe", first.DisplayName)
	assert.Equal(t, "jane@example.com", first.Email)

	second, err := f.svc.EnsureActor(f.ctx, EnsureActorInput{Subject: "auth0|42"})
	require.NoError(t, err)
	assert.False(t, second.IsNew)
	assert.Equal(t, first.ID, second.ID)

	other, err := f.svc.EnsureActor(f.ctx, EnsureActorInput{Subject: "auth0|43", Name: "Jane Doe"})
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID, "display names may repeat")

	resolved, err := f.svc.ResolveActor(f.ctx, "auth0|42")
	require.NoError(t, err)
	assert.Equal(t, first.ID, resolved.ID)

	_, err = f.svc.ResolveActor(f.ctx, "unknown")
	assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

	_, err = f.svc.EnsureActor(f.ctx, EnsureActorInput{Subject: "  "})
	assert.Equal(t, shared.KindValidation, shared.KindOf(err))
}

func TestIdentityService_Introspect(t *testing.T) {
	f := newFixture(t)
	jane := f.actor(t, "jane")

	acme, err := f.orgs.Create(f.ctx, jane, orgapp.CreateInput{Name: "Acme", Code: "ACME", Settings: map[string]any{"apps": []string{"crm"}}})
	require.NoError(t, err)
	beta, err := f.orgs.Create(f.ctx, uuid.Nil, orgapp.CreateInput{Name: "Beta", Code: "BETA"})
	require.NoError(t, err)
	require.NoError(t, f.orgs.AddMember(f.ctx, uuid.Nil, orgapp.MemberInput{OrganizationID: beta.ID, ActorID: jane, Role: "accountant"}))
	f.grantRole(t, jane, "Auditor", beta.ID)

	got, err := f.svc.Introspect(f.ctx, jane)
	require.NoError(t, err)
	require.Len(t, got.Organizations, 2)
	assert.False(t, got.IsPlatformAdmin)

	assert.Equal(t, acme.ID, got.Organizations[0].ID)
	assert.Equal(t, "Acme", got.Organizations[0].Name)
	assert.Equal(t, "OWNER", got.Organizations[0].Role)
	assert.Equal(t, []string{"OWNER"}, got.Organizations[0].Roles)
	assert.Equal(t, []string{"crm"}, got.Organizations[0].Apps)

	assert.Equal(t, beta.ID, got.Organizations[1].ID)
	assert.Equal(t, "ACCOUNTANT", got.Organizations[1].Role)
	assert.Equal(t, []string{"ACCOUNTANT", "AUDITOR"}, got.Organizations[1].Roles)
	assert.Equal(t, []string{}, got.Organizations[1].Apps)

	ok, err := f.svc.CanAccess(f.ctx, jane, acme.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = f.svc.CanAccess(f.ctx, jane, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestIdentityService_HintPaths(t *testing.T) {
	f := newFixture(t)
	jane := f.actor(t, "jane")
	acme, err := f.orgs.Create(f.ctx, jane, orgapp.CreateInput{Name: "Acme", Code: "ACME"})
	require.NoError(t, err)

	slow, err := f.svc.Introspect(f.ctx, jane)
	require.NoError(t, err)
	_, cached, err := f.hints.Get(f.ctx, jane)
	require.NoError(t, err)
	require.True(t, cached, "slow path refreshes the hint")

	fast, err := f.svc.Introspect(f.ctx, jane)
	require.NoError(t, err)
	assert.Equal(t, slow, fast, "both paths agree")

	t.Run("membership change invalidates the hint", func(t *testing.T) {
		beta, err := f.orgs.Create(f.ctx, uuid.Nil, orgapp.CreateInput{Name: "Beta", Code: "BETA"})
		require.NoError(t, err)
		require.NoError(t, f.orgs.AddMember(f.ctx, uuid.Nil, orgapp.MemberInput{OrganizationID: beta.ID, ActorID: jane}))

		got, err := f.svc.Introspect(f.ctx, jane)
		require.NoError(t, err)
		require.Len(t, got.Organizations, 2)
		assert.Equal(t, "MEMBER", got.Organizations[1].Role)
	})

	t.Run("fast path serves the stored hint", func(t *testing.T) {
		require.NoError(t, f.hints.Set(f.ctx, jane, &identity.Introspection{ActorID: jane, Organizations: []identity.OrganizationAccess{}}, time.Minute))
		got, err := f.svc.Introspect(f.ctx, jane)
		require.NoError(t, err)
		assert.Empty(t, got.Organizations)
		require.NoError(t, f.svc.Invalidate(f.ctx, jane))

		got, err = f.svc.Introspect(f.ctx, jane)
		require.NoError(t, err)
		assert.True(t, got.CanAccess(acme.ID))
	})
}

func TestIdentityService_PlatformAdmin(t *testing.T) {
	t.Run("platform membership", func(t *testing.T) {
		f := newFixture(t)
		root := f.actor(t, "root")
		require.NoError(t, f.orgs.AddMember(f.ctx, uuid.Nil, orgapp.MemberInput{
			OrganizationID: shared.PlatformOrganizationID, ActorID: root, Role: identity.RolePlatformAdmin,
		}))

		got, err := f.svc.Introspect(f.ctx, root)
		require.NoError(t, err)
		assert.True(t, got.IsPlatformAdmin)
		assert.True(t, got.CanAccess(uuid.New()))
	})

	t.Run("role grant", func(t *testing.T) {
		f := newFixture(t)
		ops := f.actor(t, "ops")
		f.grantRole(t, ops, "platform_admin", uuid.Nil)

		got, err := f.svc.Introspect(f.ctx, ops)
		require.NoError(t, err)
		assert.True(t, got.IsPlatformAdmin)
		assert.Empty(t, got.Organizations)
	})
}

func TestIdentityService_AccessRevocation(t *testing.T) {
	platform := shared.OrgScope{OrganizationID: shared.PlatformOrganizationID}

	warm := func(t *testing.T, f *fixture, actor, orgID uuid.UUID) {
		t.Helper()
		ok, err := f.svc.CanAccess(f.ctx, actor, orgID)
		require.NoError(t, err)
		require.True(t, ok)
		_, cached, err := f.hints.Get(f.ctx, actor)
		require.NoError(t, err)
		require.True(t, cached)
	}

	t.Run("suspending an organization revokes member access", func(t *testing.T) {
		f := newFixture(t)
		jane := f.actor(t, "jane")
		clerk := f.actor(t, "clerk")
		acme, err := f.orgs.Create(f.ctx, jane, orgapp.CreateInput{Name: "Acme", Code: "ACME"})
		require.NoError(t, err)
		require.NoError(t, f.orgs.AddMember(f.ctx, jane, orgapp.MemberInput{OrganizationID: acme.ID, ActorID: clerk}))
		warm(t, f, jane, acme.ID)
		warm(t, f, clerk, acme.ID)

		status := "SUSPENDED"
		_, err = f.orgs.Update(f.ctx, jane, orgapp.UpdateInput{OrganizationID: acme.ID, Status: &status})
		require.NoError(t, err)

		for _, actor := range []uuid.UUID{jane, clerk} {
			ok, err := f.svc.CanAccess(f.ctx, actor, acme.ID)
			require.NoError(t, err)
			assert.False(t, ok)
		}
	})

	t.Run("renaming an organization refreshes member hints", func(t *testing.T) {
		f := newFixture(t)
		jane := f.actor(t, "jane")
		acme, err := f.orgs.Create(f.ctx, jane, orgapp.CreateInput{Name: "Acme", Code: "ACME"})
		require.NoError(t, err)
		warm(t, f, jane, acme.ID)

		name := "Acme Holdings"
		_, err = f.orgs.Update(f.ctx, jane, orgapp.UpdateInput{OrganizationID: acme.ID, Name: &name})
		require.NoError(t, err)

		got, err := f.svc.Introspect(f.ctx, jane)
		require.NoError(t, err)
		require.Len(t, got.Organizations, 1)
		assert.Equal(t, "Acme Holdings", got.Organizations[0].Name)
	})

	t.Run("deleting the organization anchor revokes member access", func(t *testing.T) {
		f := newFixture(t)
		bob := f.actor(t, "bob")
		beta, err := f.orgs.Create(f.ctx, bob, orgapp.CreateInput{Name: "Beta", Code: "BETA"})
		require.NoError(t, err)
		warm(t, f, bob, beta.ID)

		_, err = f.entities.Delete(f.ctx, platform, entityapp.DeleteInput{EntityID: beta.ID})
		require.NoError(t, err)

		ok, err := f.svc.CanAccess(f.ctx, bob, beta.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("deleting a user revokes its memberships", func(t *testing.T) {
		f := newFixture(t)
		owner := f.actor(t, "owner")
		gone := f.actor(t, "gone")
		acme, err := f.orgs.Create(f.ctx, owner, orgapp.CreateInput{Name: "Acme", Code: "ACME"})
		require.NoError(t, err)
		require.NoError(t, f.orgs.AddMember(f.ctx, owner, orgapp.MemberInput{OrganizationID: acme.ID, ActorID: gone}))
		warm(t, f, gone, acme.ID)

		res, err := f.entities.Delete(f.ctx, platform, entityapp.DeleteInput{EntityID: gone})
		require.NoError(t, err)
		assert.EqualValues(t, 1, res.DeactivatedRelationships)

		ok, err := f.svc.CanAccess(f.ctx, gone, acme.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("deleting a role revokes the grant", func(t *testing.T) {
		f := newFixture(t)
		ops := f.actor(t, "ops")
		role := f.grantRole(t, ops, "platform_admin", uuid.Nil)
		warm(t, f, ops, uuid.New())

		_, err := f.entities.Delete(f.ctx, platform, entityapp.DeleteInput{EntityID: role})
		require.NoError(t, err)

		got, err := f.svc.Introspect(f.ctx, ops)
		require.NoError(t, err)
		assert.False(t, got.IsPlatformAdmin)
	})
}
