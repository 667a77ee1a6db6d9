package persistence_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbase/backend/internal/domain/attribute"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence"
	"github.com/ledgerbase/backend/internal/testutil"
)

func TestGormDynamicFieldRepository(t *testing.T) {
	repo := persistence.NewGormDynamicFieldRepository(testutil.NewSQLiteDB(t))
	store := attribute.NewStore(repo, 2)
	scope := newScope()
	entityID := uuid.New()

	birthday := time.Date(1990, 4, 12, 0, 0, 0, 0, time.UTC)
	_, err := store.SetFields(ctx, scope, entityID, []attribute.FieldInput{
		{Name: "email", Value: attribute.Text("a@example.com")},
		{Name: "credit_limit", Value: attribute.Number(decimal.RequireFromString("1500.25"))},
		{Name: "vip", Value: attribute.Bool(true)},
		{Name: "birthday", Value: attribute.Date(birthday)},
		{Name: "address", Value: attribute.JSON(json.RawMessage(`{"city":"Lisbon"}`))},
	})
	require.NoError(t, err)
	_, err = store.SetField(ctx, scope, entityID, attribute.FieldInput{Name: "email", Value: attribute.Text("b@example.com")})
	require.NoError(t, err)

	t.Run("current values with last write winning", func(t *testing.T) {
		values, err := store.GetFields(ctx, scope, entityID)
		require.NoError(t, err)
		require.Len(t, values, 5)

		email, ok := values["email"].Text()
		require.True(t, ok)
		assert.Equal(t, "b@example.com", email)

		limit, ok := values["credit_limit"].Number()
		require.True(t, ok)
		assert.True(t, limit.Equal(decimal.RequireFromString("1500.25")))

		vip, ok := values["vip"].Bool()
		require.True(t, ok)
		assert.True(t, vip)

		day, ok := values["birthday"].Date()
		require.True(t, ok)
		assert.True(t, birthday.Equal(day))

		doc, ok := values["address"].JSON()
		require.True(t, ok)
		assert.JSONEq(t, `{"city":"Lisbon"}`, string(doc))
	})

	t.Run("history keeps every write", func(t *testing.T) {
		history, err := store.GetFieldHistory(ctx, scope, entityID, "EMAIL")
		require.NoError(t, err)
		require.Len(t, history, 2)
		first, _ := history[0].Value.Text()
		assert.Equal(t, "a@example.com", first)
	})

	t.Run("bulk read across chunks", func(t *testing.T) {
		other := uuid.New()
		_, err := store.SetField(ctx, scope, other, attribute.FieldInput{Name: "email", Value: attribute.Text("c@example.com")})
		require.NoError(t, err)

		bulk, err := store.GetFieldsBulk(ctx, scope, []uuid.UUID{entityID, uuid.New(), other})
		require.NoError(t, err)
		assert.Len(t, bulk, 2)
		assert.Len(t, bulk[other], 1)
	})

	t.Run("other organizations see nothing", func(t *testing.T) {
		values, err := store.GetFields(ctx, newScope(), entityID)
		require.NoError(t, err)
		assert.Empty(t, values)
	})

	t.Run("empty id list", func(t *testing.T) {
		rows, err := repo.ListForEntities(ctx, scope.OrganizationID, nil)
		require.NoError(t, err)
		assert.Empty(t, rows)
	})
}
