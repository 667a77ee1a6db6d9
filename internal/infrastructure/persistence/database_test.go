package persistence

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/ledgerbase/backend/internal/infrastructure/logger"
)

// newMockDatabase opens a Database over a mocked PostgreSQL connection
func newMockDatabase(t *testing.T) (*Database, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	mockDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	db, err := Open(postgres.New(postgres.Config{
		Conn:       mockDB,
		DriverName: "postgres",
	}), Options{})
	require.NoError(t, err)

	return db, mock, mockDB
}

type scopedItem struct {
	ID             uint
	OrganizationID string
	Name           string
}

func TestOpen(t *testing.T) {
	t.Run("installs the organization filter", func(t *testing.T) {
		db, mock, mockDB := newMockDatabase(t)
		defer mockDB.Close()

		orgID := uuid.New()
		mock.ExpectQuery(`SELECT \* FROM "scoped_items" WHERE "scoped_items"."organization_id" = \$1`).
			WithArgs(orgID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name"}).AddRow(1, orgID.String(), "a"))

		ctx := logger.WithOrganizationID(context.Background(), orgID.String())
		var rows []scopedItem
		require.NoError(t, db.DB.WithContext(ctx).Find(&rows).Error)
		require.Len(t, rows, 1)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("translates unique violations", func(t *testing.T) {
		db, err := Open(sqlite.Open(":memory:"), Options{})
		require.NoError(t, err)
		defer db.Close()

		type uniqueItem struct {
			ID   uint
			Code string `gorm:"uniqueIndex"`
		}
		require.NoError(t, db.DB.AutoMigrate(&uniqueItem{}))
		require.NoError(t, db.DB.Create(&uniqueItem{Code: "A"}).Error)

		err = db.DB.Create(&uniqueItem{Code: "A"}).Error
		assert.ErrorIs(t, err, gorm.ErrDuplicatedKey)
	})

	t.Run("savepoint keeps the outer transaction usable", func(t *testing.T) {
		db, err := Open(sqlite.Open(":memory:"), Options{})
		require.NoError(t, err)
		defer db.Close()

		type uniqueItem struct {
			ID   uint
			Code string `gorm:"uniqueIndex"`
		}
		require.NoError(t, db.DB.AutoMigrate(&uniqueItem{}))

		err = db.DB.Transaction(func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&uniqueItem{Code: "A"}).Error)
			dup := inSavepoint(context.Background(), tx, func(sp *gorm.DB) error {
				return sp.Create(&uniqueItem{Code: "A"}).Error
			})
			assert.True(t, isDuplicate(dup))
			return tx.Create(&uniqueItem{Code: "B"}).Error
		})
		require.NoError(t, err)

		var count int64
		require.NoError(t, db.DB.Model(&uniqueItem{}).Count(&count).Error)
		assert.Equal(t, int64(2), count)
	})
}

func TestDatabase_Stats(t *testing.T) {
	db, _, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	stats, err := db.Stats()
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, stats.OpenConnections, stats.InUse)
	assert.Equal(t, stats.OpenConnections, stats.InUse+stats.Idle)
}

func TestDatabase_Ping(t *testing.T) {
	db, mock, mockDB := newMockDatabase(t)
	defer mockDB.Close()

	mock.ExpectPing()
	assert.NoError(t, db.Ping())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDatabase_Close(t *testing.T) {
	db, mock, _ := newMockDatabase(t)

	mock.ExpectClose()
	assert.NoError(t, db.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLikePatterns(t *testing.T) {
	assert.Equal(t, `HERA.FIN%`, likePrefix("HERA.FIN"))
	assert.Equal(t, `50\%\_off%`, likePrefix("50%_off"))
	assert.Equal(t, `%a\\b%`, likeContains(`a\b`))
}

func TestChunk(t *testing.T) {
	assert.Nil(t, chunk([]int{}, 2))
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, chunk([]int{1, 2, 3, 4, 5}, 2))
	assert.Equal(t, [][]int{{1, 2, 3}}, chunk([]int{1, 2, 3}, 0))
}
