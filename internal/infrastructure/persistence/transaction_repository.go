package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ledgerbase/backend/internal/domain/ledger"
	"github.com/ledgerbase/backend/internal/domain/shared"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/models"
	"github.com/ledgerbase/backend/internal/infrastructure/persistence/tenant"
)

const lineBatchSize = 100

// GormTransactionRepository implements ledger.TransactionRepository using GORM
type GormTransactionRepository struct {
	db *gorm.DB
}

// NewGormTransactionRepository creates a new GormTransactionRepository
func NewGormTransactionRepository(db *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: db}
}

// WithTx returns a repository bound to tx
func (r *GormTransactionRepository) WithTx(tx *gorm.DB) *GormTransactionRepository {
	return &GormTransactionRepository{db: tx}
}

func (r *GormTransactionRepository) scoped(ctx context.Context, organizationID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.TransactionModel{}).Scopes(tenant.OrganizationScope(organizationID))
}

// FindByID loads a transaction header
func (r *GormTransactionRepository) FindByID(ctx context.Context, organizationID, id uuid.UUID) (*ledger.Transaction, error) {
	var m models.TransactionModel
	if err := r.scoped(ctx, organizationID).Where("id = ?", id).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, ledger.NotFound(id)
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return m.ToDomain(), nil
}

// FindByIdempotencyKey loads the header that claimed key
func (r *GormTransactionRepository) FindByIdempotencyKey(ctx context.Context, organizationID uuid.UUID, key string) (*ledger.Transaction, error) {
	if key == "" {
		return nil, shared.NewNotFoundError(ledger.CodeTransactionNotFound, "idempotency key is empty")
	}
	var m models.TransactionModel
	if err := r.scoped(ctx, organizationID).Where("idempotency_key = ?", key).First(&m).Error; err != nil {
		if isNotFound(err) {
			return nil, shared.NewNotFoundError(ledger.CodeTransactionNotFound, "no transaction with idempotency key %q", key)
		}
		return nil, fmt.Errorf("find transaction by key: %w", err)
	}
	return m.ToDomain(), nil
}

// Lines loads the lines of many transactions, one query per chunk of ids
func (r *GormTransactionRepository) Lines(ctx context.Context, organizationID uuid.UUID, transactionIDs []uuid.UUID) (map[uuid.UUID][]*ledger.Line, error) {
	out := make(map[uuid.UUID][]*ledger.Line, len(transactionIDs))
	for _, part := range chunk(transactionIDs, lookupChunkSize) {
		var rows []models.TransactionLineModel
		err := r.db.WithContext(ctx).
			Scopes(tenant.OrganizationScope(organizationID)).
			Where("transaction_id IN ?", part).
			Order("transaction_id ASC, line_number ASC").
			Find(&rows).Error
		if err != nil {
			return nil, fmt.Errorf("load transaction lines: %w", err)
		}
		for i := range rows {
			l := rows[i].ToDomain()
			out[l.TransactionID] = append(out[l.TransactionID], l)
		}
	}
	return out, nil
}

// Create inserts the header and its lines inside a savepoint
func (r *GormTransactionRepository) Create(ctx context.Context, t *ledger.Transaction) error {
	header := models.TransactionModelFromDomain(t)
	lines := make([]*models.TransactionLineModel, 0, len(t.Lines))
	for _, l := range t.Lines {
		lines = append(lines, models.TransactionLineModelFromDomain(l))
	}

	err := inSavepoint(ctx, r.db, func(tx *gorm.DB) error {
		if err := tx.Create(header).Error; err != nil {
			return err
		}
		if len(lines) == 0 {
			return nil
		}
		return tx.CreateInBatches(lines, lineBatchSize).Error
	})
	if isDuplicate(err) {
		if t.ReversalOfID != nil {
			return ledger.ErrAlreadyReversed
		}
		return ledger.ErrDuplicateKey
	}
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}
	return nil
}

// MarkReversed moves a POSTED header to REVERSED with a conditional update
func (r *GormTransactionRepository) MarkReversed(ctx context.Context, t *ledger.Transaction) (bool, error) {
	res := r.scoped(ctx, t.OrganizationID).
		Where("id = ? AND transaction_status = ?", t.ID, ledger.StatusPosted).
		Updates(map[string]any{
			"transaction_status": string(ledger.StatusReversed),
			"reversed_by_id":     t.ReversedByID,
			"reversed_at":        t.ReversedAt,
			"reversal_reason":    t.ReversalReason,
			"updated_at":         t.UpdatedAt,
			"version":            t.Version,
		})
	if res.Error != nil {
		return false, fmt.Errorf("mark transaction reversed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Query lists headers matching filter, latest transaction date first, with the total count
func (r *GormTransactionRepository) Query(ctx context.Context, organizationID uuid.UUID, filter ledger.Filter, page shared.Page) ([]*ledger.Transaction, int64, error) {
	q := r.scoped(ctx, organizationID)
	if filter.TransactionType != "" {
		q = q.Where("transaction_type = ?", filter.TransactionType)
	}
	if filter.SmartCodePrefix != "" {
		q = q.Where(`smart_code LIKE ? ESCAPE '\'`, likePrefix(filter.SmartCodePrefix))
	}
	if filter.Status != "" {
		q = q.Where("transaction_status = ?", filter.Status)
	}
	if filter.SourceEntityID != nil {
		q = q.Where("source_entity_id = ?", *filter.SourceEntityID)
	}
	if filter.DateFrom != nil {
		q = q.Where("transaction_date >= ?", filter.DateFrom.UTC())
	}
	if filter.DateBefore != nil {
		q = q.Where("transaction_date < ?", filter.DateBefore.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count transactions: %w", err)
	}

	var rows []models.TransactionModel
	if err := q.Order("transaction_date DESC, id DESC").Limit(page.Limit).Offset(page.Offset).Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("query transactions: %w", err)
	}
	out := make([]*ledger.Transaction, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, total, nil
}

// LedgerLines returns the sided lines of posted and reversed transactions dated in [from, before)
func (r *GormTransactionRepository) LedgerLines(ctx context.Context, organizationID uuid.UUID, from, before time.Time) ([]*ledger.Line, error) {
	var rows []models.TransactionLineModel
	err := r.db.WithContext(ctx).
		Table("universal_transaction_lines AS l").
		Select("l.*").
		Joins("JOIN universal_transactions t ON t.id = l.transaction_id AND t.organization_id = l.organization_id").
		Where("l.organization_id = ?", organizationID).
		Where("t.transaction_status IN ?", []string{string(ledger.StatusPosted), string(ledger.StatusReversed)}).
		Where("t.transaction_date >= ? AND t.transaction_date < ?", from.UTC(), before.UTC()).
		Where("l.side <> ''").
		Order("l.account ASC, l.id ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load ledger lines: %w", err)
	}
	out := make([]*ledger.Line, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].ToDomain())
	}
	return out, nil
}

var _ ledger.TransactionRepository = (*GormTransactionRepository)(nil)
