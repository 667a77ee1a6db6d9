package persistence_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence"
	"github.com/ledgerbase/backend/internal/testutil"
)

func TestGormOutboxRepository(t *testing.T) {
	repo := persistence.NewGormOutboxRepository(testutil.NewSQLiteDB(t))
	scope := newScope()

	tx := newJournal(t, scope, "", time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), "42")
	events := tx.GetDomainEvents()
	require.Len(t, events, 1)

	entry, err := shared.NewOutboxEntry(events[0])
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, entry))
	require.NoError(t, repo.Save(ctx))

	pending, err := repo.FindPending(ctx, scope.OrganizationID, 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, ledger.EventTypeTransactionPosted, pending[0].EventType)
	assert.Equal(t, tx.ID, pending[0].AggregateID)
	assert.Equal(t, shared.OutboxStatusPending, pending[0].Status)
	assert.Contains(t, string(pending[0].Payload), `"fiscal_period":"2024-02"`)

	var decoded ledger.TransactionPostedEvent
	require.NoError(t, json.Unmarshal(pending[0].Payload, &decoded))
	assert.True(t, decoded.TotalAmount.Equal(decimal.NewFromInt(42)))

	others, err := repo.FindPending(ctx, newScope().OrganizationID, 10)
	require.NoError(t, err)
	assert.Empty(t, others)
}
