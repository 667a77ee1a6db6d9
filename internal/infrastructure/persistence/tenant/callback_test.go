package tenant

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrgCallback(t *testing.T) {
	t.Run("injects organization from context", func(t *testing.T) {
		db, mock, _ := setupMockDB(t)
		require.NoError(t, NewOrgCallback().Register(db))
		orgID := uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "scoped_rows" WHERE "scoped_rows"."organization_id" = \$1`).
			WithArgs(orgID.String()).
			WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name"}))

		var rows []scopedRow
		require.NoError(t, db.WithContext(orgContext(orgID.String())).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("explicit organization condition is kept as is", func(t *testing.T) {
		db, mock, _ := setupMockDB(t)
		require.NoError(t, NewOrgCallback().Register(db))
		ctxOrg, explicit := uuid.New(), uuid.New()

		mock.ExpectQuery(`SELECT \* FROM "scoped_rows" WHERE organization_id = \$1$`).
			WithArgs(explicit).
			WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name"}))

		var rows []scopedRow
		err := db.WithContext(orgContext(ctxOrg.String())).Scopes(OrganizationScope(explicit)).Find(&rows).Error
		require.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("models without the column are untouched", func(t *testing.T) {
		db, mock, _ := setupMockDB(t)
		require.NoError(t, NewOrgCallback().Register(db))

		mock.ExpectQuery(`SELECT \* FROM "global_rows"$`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

		var rows []globalRow
		require.NoError(t, db.WithContext(orgContext(uuid.New().String())).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no organization in context leaves statement alone", func(t *testing.T) {
		db, mock, _ := setupMockDB(t)
		require.NoError(t, NewOrgCallback().Register(db))

		mock.ExpectQuery(`SELECT \* FROM "scoped_rows"$`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name"}))

		var rows []scopedRow
		require.NoError(t, db.WithContext(context.Background()).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("malformed organization fails the statement", func(t *testing.T) {
		db, _, _ := setupMockDB(t)
		require.NoError(t, NewOrgCallback().Register(db))

		var rows []scopedRow
		err := db.WithContext(orgContext("bogus")).Find(&rows).Error
		assert.ErrorIs(t, err, ErrInvalidOrganizationID)
	})

	t.Run("remove uninstalls", func(t *testing.T) {
		db, mock, _ := setupMockDB(t)
		cb := NewOrgCallback()
		require.NoError(t, cb.Register(db))
		cb.Remove(db)

		mock.ExpectQuery(`SELECT \* FROM "scoped_rows"$`).
			WillReturnRows(sqlmock.NewRows([]string{"id", "organization_id", "name"}))

		var rows []scopedRow
		require.NoError(t, db.WithContext(orgContext(uuid.New().String())).Find(&rows).Error)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
