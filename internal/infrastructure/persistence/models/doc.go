// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain types to keep the domain layer free from ORM concerns.
//
// Tables:
//   - organizations: tenant boundary (organization.go)
//   - core_entities: generic business objects (entity.go)
//   - core_dynamic_data: append-only typed attributes (dynamic_field.go)
//   - core_relationships: directed edges between entities (relationship.go)
//   - universal_transactions, universal_transaction_lines: ledger (transaction.go)
//   - fiscal_periods: period close state (period.go)
//   - outbox_events: transactional outbox (outbox.go)
//
// Partial unique indexes are declared in the gorm tags so that SQLite test databases
// enforce the same uniqueness as the SQL migrations.
package models
