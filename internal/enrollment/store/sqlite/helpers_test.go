package sqlite_test

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/db"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production. The connection is closed when the test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Shared cache keeps the database alive while the pool holds a conn.
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	dsn := fmt.Sprintf(
		"file:test_%s?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)",
		name,
	)

	conn, err := sql.Open("sqlite", dsn)
	require.NoError(t, err, "sql.Open")

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	require.NoError(t, conn.Ping(), "ping")
	require.NoError(t, db.Migrate(context.Background(), conn), "migrate")

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestWriter returns a db.Worker backed by conn, closed with the test.
func newTestWriter(t *testing.T, conn *sql.DB) *db.Worker {
	t.Helper()

	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return w
}

func seedAccount(t *testing.T, conn *sql.DB, userID, first, last, email string) {
	t.Helper()
	now := time.Now().UTC().UnixMilli()
	_, err := conn.Exec(`
INSERT INTO accounts(user_id, first_name, last_name, email, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?, ?);`, userID, first, last, email, now, now)
	require.NoError(t, err, "seed account %s", userID)
}

func seedEmployee(t *testing.T, conn *sql.DB, first, last, email string) int64 {
	t.Helper()
	now := time.Now().UTC().UnixMilli()
	res, err := conn.Exec(`
INSERT INTO employees(first_name, last_name, email, created_at_ms, updated_at_ms)
VALUES (?, ?, ?, ?, ?);`, first, last, email, now, now)
	require.NoError(t, err, "seed employee %s %s", first, last)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	return id
}

func fingerprintOf(t *testing.T, conn *sql.DB, table, keyCol string, key any) (sql.NullString, string) {
	t.Helper()
	var (
		fp     sql.NullString
		status string
	)
	err := conn.QueryRow(
		`SELECT fingerprint_id, fingerprint_status FROM `+table+` WHERE `+keyCol+` = ?`, key,
	).Scan(&fp, &status)
	require.NoError(t, err, "read %s fingerprint", table)
	return fp, status
}
