package ledger

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

// Side is the debit/credit side of a ledger line
type Side string

const (
	SideNone   Side = ""
	SideDebit  Side = "DR"
	SideCredit Side = "CR"
)

// ParseSide accepts DR/CR and DEBIT/CREDIT in any case
func ParseSide(s string) (Side, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "":
		return SideNone, nil
	case "DR", "DEBIT":
		return SideDebit, nil
	case "CR", "CREDIT":
		return SideCredit, nil
	}
	return SideNone, shared.NewValidationError(CodeInvalidTransaction, "invalid side %q, expected DR or CR", s)
}

// Opposite returns the other side
func (s Side) Opposite() Side {
	switch s {
	case SideDebit:
		return SideCredit
	case SideCredit:
		return SideDebit
	}
	return SideNone
}

// Line is one line of a transaction
type Line struct {
	ID             uuid.UUID
	TransactionID  uuid.UUID
	OrganizationID uuid.UUID
	LineNumber     int
	LineType       string
	Description    string
	EntityID       *uuid.UUID
	Quantity       decimal.Decimal
	UnitAmount     decimal.Decimal
	LineAmount     decimal.Decimal
	SmartCode      string
	Side           Side
	Account        string
	Currency       string
	Extra          map[string]any
	CreatedAt      time.Time
}

// LineData renders the line_data document: side, account and amount plus any extras
func (l *Line) LineData() map[string]any {
	data := make(map[string]any, len(l.Extra)+4)
	for k, v := range l.Extra {
		data[k] = v
	}
	if l.Side != SideNone {
		data["side"] = string(l.Side)
		data["amount"] = l.LineAmount.String()
	}
	if l.Account != "" {
		data["account"] = l.Account
	}
	if l.Currency != "" {
		data["currency"] = l.Currency
	}
	return data
}

// LineInput describes a line supplied by a caller
type LineInput struct {
	LineNumber  int              `json:"line_number,omitempty"`
	LineType    string           `json:"line_type,omitempty"`
	Description string           `json:"description,omitempty"`
	EntityID    *uuid.UUID       `json:"entity_id,omitempty"`
	Quantity    *decimal.Decimal `json:"quantity,omitempty"`
	UnitAmount  *decimal.Decimal `json:"unit_amount,omitempty"`
	LineAmount  *decimal.Decimal `json:"line_amount,omitempty"`
	SmartCode   string           `json:"smart_code,omitempty"`
	Side        string           `json:"side,omitempty"`
	Account     string           `json:"account,omitempty"`
	Currency    string           `json:"currency,omitempty"`
	Extra       map[string]any   `json:"line_data,omitempty"`
}

// buildLines validates inputs, assigns missing line numbers and derives amounts
func buildLines(t *Transaction, inputs []LineInput) ([]*Line, error) {
	lines := make([]*Line, 0, len(inputs))
	used := make(map[int]bool, len(inputs))
	for _, in := range inputs {
		if in.LineNumber < 0 {
			return nil, shared.NewValidationError(CodeInvalidTransaction, "line_number must be positive, got %d", in.LineNumber)
		}
		if in.LineNumber > 0 {
			if used[in.LineNumber] {
				return nil, shared.NewValidationError(CodeDuplicateLineNumber, "line_number %d is used more than once", in.LineNumber)
			}
			used[in.LineNumber] = true
		}
	}

	next := 1
	for _, in := range inputs {
		number := in.LineNumber
		if number == 0 {
			for used[next] {
				next++
			}
			number = next
			used[number] = true
		}
		in, err := liftLineData(in, number)
		if err != nil {
			return nil, err
		}

		qty := decimal.NewFromInt(1)
		if in.Quantity != nil {
			qty = *in.Quantity
		}
		if qty.IsNegative() {
			return nil, shared.NewValidationError(CodeNegativeQuantity, "line %d has negative quantity %s", number, qty.String())
		}
		unit := decimal.Zero
		if in.UnitAmount != nil {
			unit = *in.UnitAmount
		}
		amount := qty.Mul(unit)
		if in.LineAmount != nil {
			amount = *in.LineAmount
		}

		side, err := ParseSide(in.Side)
		if err != nil {
			return nil, err
		}
		if side != SideNone && amount.IsNegative() {
			return nil, shared.NewValidationError(CodeInvalidTransaction, "line %d: %s amount must not be negative", number, side)
		}

		smartCode := strings.TrimSpace(in.SmartCode)
		if smartCode == "" {
			smartCode = t.SmartCode
		}
		currency, err := normalizeCurrency(in.Currency)
		if err != nil {
			return nil, shared.NewValidationError(CodeInvalidTransaction, "line %d: %s", number, err.Error())
		}
		if currency == "" {
			currency = t.Currency
		}

		lines = append(lines, &Line{
			ID:             uuid.New(),
			TransactionID:  t.ID,
			OrganizationID: t.OrganizationID,
			LineNumber:     number,
			LineType:       strings.TrimSpace(in.LineType),
			Description:    in.Description,
			EntityID:       in.EntityID,
			Quantity:       qty,
			UnitAmount:     unit,
			LineAmount:     amount,
			SmartCode:      smartCode,
			Side:           side,
			Account:        strings.TrimSpace(in.Account),
			Currency:       currency,
			Extra:          withoutReserved(in.Extra),
			CreatedAt:      t.CreatedAt,
		})
	}
	slices.SortFunc(lines, func(a, b *Line) int { return a.LineNumber - b.LineNumber })
	return lines, nil
}

// reversed copies l into the reversal transaction r
func (l *Line) reversed(r *Transaction) *Line {
	out := *l
	out.ID = uuid.New()
	out.TransactionID = r.ID
	out.CreatedAt = r.CreatedAt
	if l.Side != SideNone {
		out.Side = l.Side.Opposite()
	} else {
		out.UnitAmount = l.UnitAmount.Neg()
		out.LineAmount = l.LineAmount.Neg()
	}
	return &out
}

// liftLineData accepts side, account, amount and currency given inside line_data.
// An amount that is present must be a decimal string or a number.
func liftLineData(in LineInput, number int) (LineInput, error) {
	if len(in.Extra) == 0 {
		return in, nil
	}
	if s, ok := in.Extra["side"].(string); ok && in.Side == "" {
		in.Side = s
	}
	if s, ok := in.Extra["account"].(string); ok && in.Account == "" {
		in.Account = s
	}
	if s, ok := in.Extra["currency"].(string); ok && in.Currency == "" {
		in.Currency = s
	}
	raw, present := in.Extra["amount"]
	if in.LineAmount != nil || !present || raw == nil {
		return in, nil
	}
	var (
		amount decimal.Decimal
		err    error
	)
	switch v := raw.(type) {
	case string:
		amount, err = decimal.NewFromString(strings.TrimSpace(v))
	case json.Number:
		amount, err = decimal.NewFromString(v.String())
	case float64:
		amount = decimal.NewFromFloat(v)
	case int:
		amount = decimal.NewFromInt(int64(v))
	case int64:
		amount = decimal.NewFromInt(v)
	case decimal.Decimal:
		amount = v
	default:
		err = fmt.Errorf("unsupported type %T", raw)
	}
	if err != nil {
		return in, shared.NewValidationError(CodeInvalidTransaction,
			"line %d: line_data.amount must be a decimal string or number, got %v", number, raw)
	}
	in.LineAmount = &amount
	return in, nil
}

func withoutReserved(extra map[string]any) map[string]any {
	if len(extra) == 0 {
		return nil
	}
	out := make(map[string]any, len(extra))
	for k, v := range extra {
		switch k {
		case "side", "account", "amount", "currency":
			continue
		}
		out[k] = v
	}
	return out
}
