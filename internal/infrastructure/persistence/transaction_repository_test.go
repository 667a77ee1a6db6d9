package persistence_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbase/backend/internal/domain/governance"
	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence"
	"github.com/ledgerbase/backend/internal/testutil"
)

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newJournal(t *testing.T, scope shared.OrgScope, key string, date time.Time, value string) *ledger.Transaction {
	t.Helper()
	tx, err := ledger.NewTransaction(scope, ledger.Header{
		TransactionType: "JOURNAL",
		IdempotencyKey:  key,
		SmartCode:       "HERA.FIN.GL.TXN.JOURNAL.v1",
		TransactionDate: &date,
		Currency:        "usd",
	}, []ledger.LineInput{
		{Side: "DR", Account: "1000", LineAmount: amount(value), Extra: map[string]any{"memo": "cash in"}},
		{Side: "CR", Account: "4000", LineAmount: amount(value)},
	}, ledger.PostingRules{Kind: governance.KindLedgerPosting})
	require.NoError(t, err)
	return tx
}

func TestGormTransactionRepository_CreateAndRead(t *testing.T) {
	repo := persistence.NewGormTransactionRepository(testutil.NewSQLiteDB(t))
	scope := newScope()
	date := time.Date(2024, 3, 15, 10, 30, 0, 0, time.UTC)

	tx := newJournal(t, scope, "JE-1", date, "250.50")
	require.NoError(t, repo.Create(ctx, tx))

	got, err := repo.FindByID(ctx, scope.OrganizationID, tx.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusPosted, got.Status)
	assert.Equal(t, "2024-03", got.FiscalPeriod)
	assert.Equal(t, "USD", got.Currency)
	assert.Equal(t, governance.KindLedgerPosting, got.PostingKind)
	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("250.50")))
	assert.True(t, date.Equal(got.TransactionDate))

	byKey, err := repo.FindByIdempotencyKey(ctx, scope.OrganizationID, "JE-1")
	require.NoError(t, err)
	assert.Equal(t, tx.ID, byKey.ID)

	lines, err := repo.Lines(ctx, scope.OrganizationID, []uuid.UUID{tx.ID})
	require.NoError(t, err)
	require.Len(t, lines[tx.ID], 2)
	dr := lines[tx.ID][0]
	assert.Equal(t, 1, dr.LineNumber)
	assert.Equal(t, ledger.SideDebit, dr.Side)
	assert.Equal(t, "1000", dr.Account)
	assert.Equal(t, "USD", dr.Currency)
	assert.Equal(t, "cash in", dr.Extra["memo"])
	assert.True(t, dr.LineAmount.Equal(decimal.RequireFromString("250.50")))

	t.Run("missing transaction", func(t *testing.T) {
		_, err := repo.FindByID(ctx, scope.OrganizationID, uuid.New())
		assert.Equal(t, shared.KindNotFound, shared.KindOf(err))

		_, err = repo.FindByID(ctx, uuid.New(), tx.ID)
		assert.Equal(t, shared.KindNotFound, shared.KindOf(err))
	})

	t.Run("duplicate idempotency key", func(t *testing.T) {
		err := repo.Create(ctx, newJournal(t, scope, "JE-1", date, "10"))
		assert.ErrorIs(t, err, ledger.ErrDuplicateKey)
	})

	t.Run("same key in another organization", func(t *testing.T) {
		assert.NoError(t, repo.Create(ctx, newJournal(t, newScope(), "JE-1", date, "10")))
	})

	t.Run("transactions without a key never collide", func(t *testing.T) {
		assert.NoError(t, repo.Create(ctx, newJournal(t, scope, "", date, "1")))
		assert.NoError(t, repo.Create(ctx, newJournal(t, scope, "", date, "2")))
	})
}

func TestGormTransactionRepository_Reversal(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	repo := persistence.NewGormTransactionRepository(db)
	scope := newScope()
	original := newJournal(t, scope, "JE-R", time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC), "100")
	require.NoError(t, repo.Create(ctx, original))

	reversal, err := original.Reverse(scope, "entered twice", time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, reversal))

	ok, err := repo.MarkReversed(ctx, original)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindByID(ctx, scope.OrganizationID, original.ID)
	require.NoError(t, err)
	assert.Equal(t, ledger.StatusReversed, stored.Status)
	require.NotNil(t, stored.ReversedByID)
	assert.Equal(t, reversal.ID, *stored.ReversedByID)
	assert.Equal(t, "entered twice", stored.ReversalReason)

	t.Run("second mark loses", func(t *testing.T) {
		ok, err := repo.MarkReversed(ctx, original)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("second reversal row is rejected", func(t *testing.T) {
		fresh := newJournal(t, scope, "", original.TransactionDate, "100")
		fresh.ID = original.ID
		again, err := fresh.Reverse(scope, "again", time.Time{})
		require.NoError(t, err)
		assert.ErrorIs(t, repo.Create(ctx, again), ledger.ErrAlreadyReversed)
	})
}

func TestGormTransactionRepository_Query(t *testing.T) {
	repo := persistence.NewGormTransactionRepository(testutil.NewSQLiteDB(t))
	scope := newScope()
	source := uuid.New()

	day := time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC)
	for i, ts := range []time.Time{
		day.Add(-time.Second),       // previous day
		day,                         // midnight
		day.Add(13 * time.Hour),     // afternoon
		day.Add(24*time.Hour - 1),   // last nanosecond
		day.Add(24 * time.Hour),     // next day
	} {
		tx := newJournal(t, scope, "", ts, "5")
		if i == 2 {
			tx.SourceEntityID = &source
			tx.TransactionType = "SALE"
			tx.SmartCode = "HERA.RETAIL.SALE.TXN.v1"
		}
		require.NoError(t, repo.Create(ctx, tx))
	}

	page := shared.Page{Limit: 50}
	from, before := day, day.Add(24*time.Hour)

	t.Run("day window", func(t *testing.T) {
		items, total, err := repo.Query(ctx, scope.OrganizationID, ledger.Filter{DateFrom: &from, DateBefore: &before}, page)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
		require.Len(t, items, 3)
		assert.True(t, items[0].TransactionDate.After(items[2].TransactionDate))
	})

	t.Run("no filters returns everything", func(t *testing.T) {
		_, total, err := repo.Query(ctx, scope.OrganizationID, ledger.Filter{}, page)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
	})

	t.Run("type, prefix and source filters", func(t *testing.T) {
		_, total, err := repo.Query(ctx, scope.OrganizationID, ledger.Filter{TransactionType: "SALE"}, page)
		require.NoError(t, err)
		assert.Equal(t, int64(1), total)

		_, total, err = repo.Query(ctx, scope.OrganizationID, ledger.Filter{SmartCodePrefix: "HERA.FIN.GL"}, page)
		require.NoError(t, err)
		assert.Equal(t, int64(4), total)

		items, _, err := repo.Query(ctx, scope.OrganizationID, ledger.Filter{SourceEntityID: &source}, page)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "SALE", items[0].TransactionType)
	})

	t.Run("status filter", func(t *testing.T) {
		_, total, err := repo.Query(ctx, scope.OrganizationID, ledger.Filter{Status: ledger.StatusReversed}, page)
		require.NoError(t, err)
		assert.Zero(t, total)
	})

	t.Run("ledger lines in window", func(t *testing.T) {
		lines, err := repo.LedgerLines(ctx, scope.OrganizationID, from, before)
		require.NoError(t, err)
		assert.Len(t, lines, 6)

		balances := ledger.TrialBalance(lines)
		require.Len(t, balances, 2)
		assert.Equal(t, "1000", balances[0].Account)
		assert.True(t, balances[0].Debit.Equal(decimal.NewFromInt(15)))
		assert.True(t, balances[1].Credit.Equal(decimal.NewFromInt(15)))
	})
}
