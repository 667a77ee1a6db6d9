package persistence

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
)

// isDuplicate reports a unique violation translated by gorm
func isDuplicate(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey)
}

// isNotFound reports gorm's record-not-found
func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}

// inSavepoint runs fn in a nested transaction. Inside an open transaction gorm
// issues a savepoint, so a failed statement does not abort the outer transaction.
func inSavepoint(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	return db.WithContext(ctx).Transaction(fn)
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePrefix builds a LIKE pattern matching values starting with s; use with ESCAPE '\'
func likePrefix(s string) string {
	return likeEscaper.Replace(s) + "%"
}

// likeContains builds a LIKE pattern matching values containing s; use with ESCAPE '\'
func likeContains(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

// chunk splits ids into slices of at most size elements
func chunk[T any](ids []T, size int) [][]T {
	if size <= 0 {
		size = len(ids)
	}
	var out [][]T
	for start := 0; start < len(ids); start += size {
		out = append(out, ids[start:min(start+size, len(ids))])
	}
	return out
}
