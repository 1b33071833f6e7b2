package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type devAccount struct {
	userID, first, last, email string
}

var devAccounts = []devAccount{
	{"1001", "Ana", "Reyes", "ana.reyes@example.test"},
	{"1002", "Ben", "Cruz", "ben.cruz@example.test"},
	{"1003", "Carla", "Santos", ""},
}

// SeedDev inserts a few accounts with matching employment records so the
// enrollment flow can be exercised against a fresh dev database. Re-running
// it leaves existing rows untouched.
func SeedDev(ctx context.Context, db *sql.DB) error {
	now := time.Now().UTC().UnixMilli()

	for _, a := range devAccounts {
		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO accounts(user_id, first_name, last_name, email, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?);`, a.userID, a.first, a.last, a.email, now, now); err != nil {
			return fmt.Errorf("seed account %s: %w", a.userID, err)
		}

		// Employment rows have no natural key; skip when one already matches.
		if _, err := db.ExecContext(ctx, `
INSERT INTO employees(first_name, last_name, email, created_at_ms, updated_at_ms)
SELECT ?, ?, ?, ?, ?
WHERE NOT EXISTS (
  SELECT 1 FROM employees
  WHERE first_name = ? COLLATE NOCASE AND last_name = ? COLLATE NOCASE
);`, a.first, a.last, a.email, now, now, a.first, a.last); err != nil {
			return fmt.Errorf("seed employee %s %s: %w", a.first, a.last, err)
		}
	}

	return nil
}
