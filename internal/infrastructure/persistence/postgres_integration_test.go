//go:build integration

package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/migration"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence"
)

// newPostgresDB starts postgres:16, applies migrations/ and returns a gorm handle
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	bg := context.Background()

	container, err := tcpostgres.Run(bg,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledgerbase_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(bg); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(bg, "sslmode=disable")
	require.NoError(t, err)

	database, err := persistence.Open(gormpostgres.Open(dsn), persistence.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close() })

	sqlDB, err := database.DB.DB()
	require.NoError(t, err)
	m, err := migration.New(sqlDB, "../../../migrations", zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	return database.DB
}

func TestPostgres_Schema(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	db := newPostgresDB(t)

	t.Run("platform organization is seeded", func(t *testing.T) {
		org, err := persistence.NewGormOrganizationRepository(db).FindByID(ctx, shared.PlatformOrganizationID)
		require.NoError(t, err)
		assert.Equal(t, "PLATFORM", org.Code)
	})

	t.Run("partial unique index on live entity names", func(t *testing.T) {
		repo := persistence.NewGormEntityRepository(db)
		scope := newScope()

		first := newEntity(t, scope, "CUSTOMER", "Acme Corp", "C-1")
		require.NoError(t, repo.Create(ctx, first))
		assert.ErrorIs(t, repo.Create(ctx, newEntity(t, scope, "CUSTOMER", "ACME  corp", "")), entity.ErrDuplicate)

		require.NoError(t, first.MarkDeleted())
		require.NoError(t, repo.Update(ctx, first))
		require.NoError(t, repo.Create(ctx, newEntity(t, scope, "CUSTOMER", "Acme Corp", "C-1")))
	})

	t.Run("duplicate idempotency key inside a unit of work", func(t *testing.T) {
		uow := persistence.NewGormUnitOfWork(db)
		scope := newScope()
		date := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
		require.NoError(t, persistence.NewGormTransactionRepository(db).Create(ctx, newJournal(t, scope, "INV-7", date, "10")))

		err := uow.Execute(ctx, func(repos appshared.Repositories) error {
			err := repos.Transactions().Create(ctx, newJournal(t, scope, "INV-7", date, "10"))
			assert.ErrorIs(t, err, ledger.ErrDuplicateKey)
			// the savepoint keeps the transaction usable
			return repos.Transactions().Create(ctx, newJournal(t, scope, "INV-8", date, "10"))
		})
		require.NoError(t, err)

		got, err := persistence.NewGormTransactionRepository(db).FindByIdempotencyKey(ctx, scope.OrganizationID, "INV-8")
		require.NoError(t, err)
		assert.Equal(t, "INV-8", got.IdempotencyKey)
	})
	t.Run("posting holds the period against a close", func(t *testing.T) {
		scope := newScope()
		const period = "2024-05"
		withTimeout := func(tx *gorm.DB) *persistence.GormPeriodRepository {
			require.NoError(t, tx.Exec("SET LOCAL lock_timeout = '200ms'").Error)
			return persistence.NewGormPeriodRepository(tx)
		}

		held := make(chan struct{})
		release := make(chan struct{})
		done := make(chan error, 1)
		go func() {
			done <- db.Transaction(func(tx *gorm.DB) error {
				if err := persistence.NewGormPeriodRepository(tx).Lock(ctx, scope.OrganizationID, period, false); err != nil {
					return err
				}
				close(held)
				<-release
				return nil
			})
		}()
		select {
		case <-held:
		case err := <-done:
			t.Fatalf("posting lock: %v", err)
		}

		err := db.Transaction(func(tx *gorm.DB) error {
			return withTimeout(tx).Lock(ctx, scope.OrganizationID, period, true)
		})
		assert.Error(t, err, "close waits for the open posting")

		err = db.Transaction(func(tx *gorm.DB) error {
			return withTimeout(tx).Lock(ctx, scope.OrganizationID, period, false)
		})
		assert.NoError(t, err, "postings share the lock")

		close(release)
		require.NoError(t, <-done)
		err = db.Transaction(func(tx *gorm.DB) error {
			return withTimeout(tx).Lock(ctx, scope.OrganizationID, period, true)
		})
		assert.NoError(t, err)
	})
}
