package persistence_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

func newScope() shared.OrgScope {
	return shared.OrgScope{OrganizationID: uuid.New(), ActorID: uuid.New()}
}

func newEntity(t *testing.T, scope shared.OrgScope, entityType entity.Type, name, code string) *entity.Entity {
	t.Helper()
	e, err := entity.NewEntity(scope, entity.NewInput{
		EntityType: entityType,
		EntityName: name,
		EntityCode: code,
		SmartCode:  "HERA.CRM.CUST.ENT.PROF.v1",
	})
	require.NoError(t, err)
	return e
}

// at pins created timestamps so ordering assertions do not depend on the clock
func at(e *entity.Entity, ts time.Time) *entity.Entity {
	e.CreatedAt = ts
	e.UpdatedAt = ts
	return e
}

var ctx = context.Background()

var testTime = time.Date(2024, 7, 1, 9, 0, 0, 0, time.UTC)
