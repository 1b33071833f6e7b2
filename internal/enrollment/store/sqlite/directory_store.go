package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	dbpkg "github.com/JasonAseoche/hrmcapstone-sub001/internal/db"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
)

var errReadOnly = errors.New("directory view is read-only")

// DirectoryStore reads and writes the accounts and employees tables. Each
// Update runs as a single worker transaction.
type DirectoryStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewDirectoryStore(db *sql.DB, writer *dbpkg.Worker) *DirectoryStore {
	return &DirectoryStore{db: db, writer: writer}
}

func (s *DirectoryStore) View(ctx context.Context, fn func(ctx context.Context, tx store.DirectoryTx) error) error {
	return fn(ctx, &directoryTx{q: s.db, readOnly: true})
}

func (s *DirectoryStore) Update(ctx context.Context, fn func(ctx context.Context, tx store.DirectoryTx) error) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, &directoryTx{q: tx})
	})
}

func (s *DirectoryStore) ListAccounts(ctx context.Context) ([]store.AccountRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT user_id, first_name, last_name, email, fingerprint_id, fingerprint_status
FROM accounts
ORDER BY user_id;
`)
	if err != nil {
		return nil, fmt.Errorf("ListAccounts query: %w", err)
	}
	return collectAccounts(rows)
}

type directoryTx struct {
	q        dbpkg.DBTX
	readOnly bool
}

func (t *directoryTx) Account(ctx context.Context, userID string) (store.AccountRecord, error) {
	row := t.q.QueryRowContext(ctx, `
SELECT user_id, first_name, last_name, email, fingerprint_id, fingerprint_status
FROM accounts
WHERE user_id = ?;
`, userID)

	a, err := scanAccount(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.AccountRecord{}, store.ErrNotFound
	}
	if err != nil {
		return store.AccountRecord{}, fmt.Errorf("Account query: %w", err)
	}
	return a, nil
}

func (t *directoryTx) EmploymentByEmail(ctx context.Context, email string) ([]store.EmploymentRecord, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	rows, err := t.q.QueryContext(ctx, `
SELECT employee_id, first_name, last_name, email, fingerprint_id, fingerprint_status
FROM employees
WHERE email = ? COLLATE NOCASE
ORDER BY employee_id;
`, email)
	if err != nil {
		return nil, fmt.Errorf("EmploymentByEmail query: %w", err)
	}
	return collectEmployment(rows)
}

// EmploymentByName returns nothing unless both names are given.
func (t *directoryTx) EmploymentByName(ctx context.Context, firstName, lastName string) ([]store.EmploymentRecord, error) {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, nil
	}
	rows, err := t.q.QueryContext(ctx, `
SELECT employee_id, first_name, last_name, email, fingerprint_id, fingerprint_status
FROM employees
WHERE first_name = ? COLLATE NOCASE AND last_name = ? COLLATE NOCASE
ORDER BY employee_id;
`, firstName, lastName)
	if err != nil {
		return nil, fmt.Errorf("EmploymentByName query: %w", err)
	}
	return collectEmployment(rows)
}

func (t *directoryTx) AccountsWithFingerprint(ctx context.Context, fingerprintID string) ([]store.AccountRecord, error) {
	if fingerprintID == "" {
		return nil, nil
	}
	rows, err := t.q.QueryContext(ctx, `
SELECT user_id, first_name, last_name, email, fingerprint_id, fingerprint_status
FROM accounts
WHERE fingerprint_id = ?
ORDER BY user_id;
`, fingerprintID)
	if err != nil {
		return nil, fmt.Errorf("AccountsWithFingerprint query: %w", err)
	}
	return collectAccounts(rows)
}

func (t *directoryTx) EmploymentWithFingerprint(ctx context.Context, fingerprintID string) ([]store.EmploymentRecord, error) {
	if fingerprintID == "" {
		return nil, nil
	}
	rows, err := t.q.QueryContext(ctx, `
SELECT employee_id, first_name, last_name, email, fingerprint_id, fingerprint_status
FROM employees
WHERE fingerprint_id = ?
ORDER BY employee_id;
`, fingerprintID)
	if err != nil {
		return nil, fmt.Errorf("EmploymentWithFingerprint query: %w", err)
	}
	return collectEmployment(rows)
}

func (t *directoryTx) SetAccountFingerprint(ctx context.Context, userID, fingerprintID, status string) error {
	if t.readOnly {
		return errReadOnly
	}
	res, err := t.q.ExecContext(ctx, `
UPDATE accounts
SET fingerprint_id = ?,
    fingerprint_status = ?,
    updated_at_ms = ?
WHERE user_id = ?;
`, nullIfEmpty(fingerprintID), status, time.Now().UTC().UnixMilli(), userID)
	if err != nil {
		return fmt.Errorf("SetAccountFingerprint: %w", err)
	}
	return requireOneRow(res, "SetAccountFingerprint")
}

func (t *directoryTx) SetEmploymentFingerprint(ctx context.Context, employeeID int64, fingerprintID, status string) error {
	if t.readOnly {
		return errReadOnly
	}
	res, err := t.q.ExecContext(ctx, `
UPDATE employees
SET fingerprint_id = ?,
    fingerprint_status = ?,
    updated_at_ms = ?
WHERE employee_id = ?;
`, nullIfEmpty(fingerprintID), status, time.Now().UTC().UnixMilli(), employeeID)
	if err != nil {
		return fmt.Errorf("SetEmploymentFingerprint: %w", err)
	}
	return requireOneRow(res, "SetEmploymentFingerprint")
}

func requireOneRow(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanAccount(row rowScanner) (store.AccountRecord, error) {
	var (
		a  store.AccountRecord
		fp sql.NullString
	)
	if err := row.Scan(&a.UserID, &a.FirstName, &a.LastName, &a.Email, &fp, &a.FingerprintStatus); err != nil {
		return store.AccountRecord{}, err
	}
	a.FingerprintID = fp.String
	return a, nil
}

func collectAccounts(rows *sql.Rows) ([]store.AccountRecord, error) {
	defer rows.Close()

	var out []store.AccountRecord
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	return out, nil
}

func collectEmployment(rows *sql.Rows) ([]store.EmploymentRecord, error) {
	defer rows.Close()

	var out []store.EmploymentRecord
	for rows.Next() {
		var (
			e  store.EmploymentRecord
			fp sql.NullString
		)
		if err := rows.Scan(&e.EmployeeID, &e.FirstName, &e.LastName, &e.Email, &fp, &e.FingerprintStatus); err != nil {
			return nil, fmt.Errorf("scan employment: %w", err)
		}
		e.FingerprintID = fp.String
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employment: %w", err)
	}
	return out, nil
}
