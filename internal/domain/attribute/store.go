package attribute

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/ledgerbase/backend/internal/domain/shared"
)

// DefaultBulkChunkSize bounds the number of entity ids per bulk query
const DefaultBulkChunkSize = 200

// Values maps field names to their current value
type Values map[string]Value

// FieldInput is one field to write
type FieldInput struct {
	Name      string
	Value     Value
	SmartCode string
}

// Store reads and writes dynamic fields on top of a Repository
type Store struct {
	repo      Repository
	chunkSize int
}

// NewStore creates a store; chunkSize <= 0 uses DefaultBulkChunkSize
func NewStore(repo Repository, chunkSize int) *Store {
	if chunkSize <= 0 {
		chunkSize = DefaultBulkChunkSize
	}
	return &Store{repo: repo, chunkSize: chunkSize}
}

// SetField appends a new value for one field
func (s *Store) SetField(ctx context.Context, scope shared.OrgScope, entityID uuid.UUID, in FieldInput) (*Field, error) {
	fields, err := s.SetFields(ctx, scope, entityID, []FieldInput{in})
	if err != nil {
		return nil, err
	}
	return fields[0], nil
}

// SetFields appends several values in one write
func (s *Store) SetFields(ctx context.Context, scope shared.OrgScope, entityID uuid.UUID, inputs []FieldInput) ([]*Field, error) {
	if len(inputs) == 0 {
		return nil, nil
	}
	fields := make([]*Field, 0, len(inputs))
	for _, in := range inputs {
		f, err := NewField(scope, entityID, in.Name, in.Value, in.SmartCode)
		if err != nil {
			return nil, err
		}
		fields = append(fields, f)
	}
	if err := s.repo.Append(ctx, fields...); err != nil {
		return nil, fmt.Errorf("append fields: %w", err)
	}
	return fields, nil
}

// GetFields returns the current value of every field of one entity
func (s *Store) GetFields(ctx context.Context, scope shared.OrgScope, entityID uuid.UUID) (Values, error) {
	bulk, err := s.GetFieldsBulk(ctx, scope, []uuid.UUID{entityID})
	if err != nil {
		return nil, err
	}
	if v, ok := bulk[entityID]; ok {
		return v, nil
	}
	return Values{}, nil
}

// GetFieldsBulk returns current values for many entities, one query per chunk.
// An empty id list returns an empty map without touching the repository.
func (s *Store) GetFieldsBulk(ctx context.Context, scope shared.OrgScope, entityIDs []uuid.UUID) (map[uuid.UUID]Values, error) {
	out := make(map[uuid.UUID]Values, len(entityIDs))
	if len(entityIDs) == 0 {
		return out, nil
	}
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	for start := 0; start < len(entityIDs); start += s.chunkSize {
		end := min(start+s.chunkSize, len(entityIDs))
		rows, err := s.repo.ListForEntities(ctx, scope.OrganizationID, entityIDs[start:end])
		if err != nil {
			return nil, fmt.Errorf("list fields: %w", err)
		}
		for _, f := range rows {
			if out[f.EntityID] == nil {
				out[f.EntityID] = Values{}
			}
			out[f.EntityID][f.FieldName] = f.Value
		}
	}
	return out, nil
}

// GetFieldHistory returns every value ever written to one field, oldest first
func (s *Store) GetFieldHistory(ctx context.Context, scope shared.OrgScope, entityID uuid.UUID, name string) ([]*Field, error) {
	if err := scope.Validate(); err != nil {
		return nil, err
	}
	rows, err := s.repo.History(ctx, scope.OrganizationID, entityID, strings.ToLower(strings.TrimSpace(name)))
	if err != nil {
		return nil, fmt.Errorf("field history: %w", err)
	}
	if rows == nil {
		rows = []*Field{}
	}
	return rows, nil
}
