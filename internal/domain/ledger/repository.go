package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

// Filter narrows a transaction query within one organization
type Filter struct {
	TransactionType string
	SmartCodePrefix string
	Status          Status
	SourceEntityID  *uuid.UUID
	DateFrom        *time.Time // inclusive
	DateBefore      *time.Time // exclusive
}

// AccountBalance is the debit and credit total of one account
type AccountBalance struct {
	Account string          `json:"account"`
	Debit   decimal.Decimal `json:"debit"`
	Credit  decimal.Decimal `json:"credit"`
}

// Net is debit minus credit
func (b AccountBalance) Net() decimal.Decimal {
	return b.Debit.Sub(b.Credit)
}

// TransactionRepository persists transactions. Every method is scoped to one organization.
type TransactionRepository interface {
	FindByID(ctx context.Context, organizationID, id uuid.UUID) (*Transaction, error)
	FindByIdempotencyKey(ctx context.Context, organizationID uuid.UUID, key string) (*Transaction, error)
	// Lines returns the lines of the given transactions keyed by transaction id
	Lines(ctx context.Context, organizationID uuid.UUID, transactionIDs []uuid.UUID) (map[uuid.UUID][]*Line, error)
	// Create inserts the header and lines. A duplicate idempotency key returns
	// ErrDuplicateKey and a second reversal of the same original returns
	// ErrAlreadyReversed; both leave any enclosing transaction usable.
	Create(ctx context.Context, t *Transaction) error
	// MarkReversed moves t from POSTED to REVERSED, reporting false when another writer got there first
	MarkReversed(ctx context.Context, t *Transaction) (bool, error)
	Query(ctx context.Context, organizationID uuid.UUID, filter Filter, page shared.Page) ([]*Transaction, int64, error)
	// LedgerLines returns sided lines of posted and reversed transactions dated in [from, before)
	LedgerLines(ctx context.Context, organizationID uuid.UUID, from, before time.Time) ([]*Line, error)
}

var (
	ErrDuplicateKey    = shared.NewConflictError(CodeDuplicateIdempotencyKey, "idempotency key already used")
	ErrAlreadyReversed = shared.NewConflictError(CodeAlreadyReversed, "transaction is already reversed")
)

// Fingerprint hashes the canonical JSON of a create request.
// encoding/json emits struct fields in declaration order and map keys sorted.
func Fingerprint(h Header, lines []LineInput) (string, error) {
	payload := struct {
		Header Header      `json:"transaction"`
		Lines  []LineInput `json:"lines"`
	}{Header: h, Lines: lines}
	if payload.Lines == nil {
		payload.Lines = []LineInput{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}

// TrialBalance folds sided lines into per-account totals
func TrialBalance(lines []*Line) []AccountBalance {
	index := make(map[string]int)
	var out []AccountBalance
	for _, l := range lines {
		if l.Side == SideNone {
			continue
		}
		i, ok := index[l.Account]
		if !ok {
			i = len(out)
			index[l.Account] = i
			out = append(out, AccountBalance{Account: l.Account, Debit: decimal.Zero, Credit: decimal.Zero})
		}
		if l.Side == SideDebit {
			out[i].Debit = out[i].Debit.Add(l.LineAmount)
		} else {
			out[i].Credit = out[i].Credit.Add(l.LineAmount)
		}
	}
	if out == nil {
		return []AccountBalance{}
	}
	slices.SortFunc(out, func(a, b AccountBalance) int { return strings.Compare(a.Account, b.Account) })
	return out
}
