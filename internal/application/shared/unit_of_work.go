// Package shared holds contracts used by every application service.
package shared

import (
	"context"

	"github.com/ledgerbase/backend/internal/domain/attribute"
	"github.com/ledgerbase/backend/internal/domain/entity"
	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/organization"
	"github.com/ledgerbase/backend/internal/domain/relationship"
	domainshared "github.com/ledgerbase/backend/internal/domain/shared"
)

// UnitOfWork runs a function inside one database transaction.
// Nested calls through the repositories of an active unit of work use savepoints.
type UnitOfWork interface {
	// Execute commits when fn returns nil and rolls back otherwise
	Execute(ctx context.Context, fn func(repos Repositories) error) error
}

// Repositories gives access to every repository bound to the same transaction
type Repositories interface {
	Entities() entity.Repository
	Fields() attribute.Repository
	Relationships() relationship.Repository
	Transactions() ledger.TransactionRepository
	Periods() ledger.PeriodRepository
	Organizations() organization.Repository
	Outbox() domainshared.OutboxRepository
}

// SaveEvents moves the pending events of aggregates into the outbox
func SaveEvents(ctx context.Context, outbox domainshared.OutboxRepository, events []domainshared.DomainEvent) error {
	if len(events) == 0 {
		return nil
	}
	entries := make([]*domainshared.OutboxEntry, 0, len(events))
	for _, ev := range events {
		entry, err := domainshared.NewOutboxEntry(ev)
		if err != nil {
			return err
		}
		entries = append(entries, entry)
	}
	return outbox.Save(ctx, entries...)
}
