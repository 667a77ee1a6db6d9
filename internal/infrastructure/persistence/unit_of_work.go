package persistence

import (
	"context"

	"gorm.io/gorm"

	appshared "github.com/ledgerbase/backend/internal/application/shared"
	"github.com/ledgerbase/backend/internal/domain/attribute"
	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/organization"
	"github.com/ledgerbase/backend/internal/domain/relationship"
	"github.com/ledgerbase/backend/internal/domain/shared"
)

// GormUnitOfWork implements UnitOfWork using GORM transactions.
// Repositories created from an Execute call share its transaction.
type GormUnitOfWork struct {
	db *gorm.DB
}

// NewGormUnitOfWork creates a new GormUnitOfWork.
func NewGormUnitOfWork(db *gorm.DB) *GormUnitOfWork {
	return &GormUnitOfWork{db: db}
}

// Execute runs the given function within a database transaction.
// If the function returns an error, the transaction is rolled back.
func (u *GormUnitOfWork) Execute(ctx context.Context, fn func(repos appshared.Repositories) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewRepositories(tx))
	})
}

// gormRepositories provides access to all repositories over one *gorm.DB
type gormRepositories struct {
	db *gorm.DB
}

// NewRepositories returns repositories bound to db, which may be a transaction
func NewRepositories(db *gorm.DB) appshared.Repositories {
	return &gormRepositories{db: db}
}

func (r *gormRepositories) Entities() entity.Repository {
	return NewGormEntityRepository(r.db)
}

func (r *gormRepositories) Fields() attribute.Repository {
	return NewGormDynamicFieldRepository(r.db)
}

func (r *gormRepositories) Relationships() relationship.Repository {
	return NewGormRelationshipRepository(r.db)
}

func (r *gormRepositories) Transactions() ledger.TransactionRepository {
	return NewGormTransactionRepository(r.db)
}

func (r *gormRepositories) Periods() ledger.PeriodRepository {
	return NewGormPeriodRepository(r.db)
}

func (r *gormRepositories) Organizations() organization.Repository {
	return NewGormOrganizationRepository(r.db)
}

func (r *gormRepositories) Outbox() shared.OutboxRepository {
	return NewGormOutboxRepository(r.db)
}

// Ensure GormUnitOfWork implements UnitOfWork
var _ appshared.UnitOfWork = (*GormUnitOfWork)(nil)
