package sqlite

import (
	"database/sql"
	"time"
)

func msOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().UnixMilli()
}

func timeOrNil(ms sql.NullInt64) *time.Time {
	if !ms.Valid {
		return nil
	}
	t := time.UnixMilli(ms.Int64).UTC()
	return &t
}

// nullIfEmpty stores "" as NULL so optional text columns stay queryable with IS NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
