package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	dbpkg "github.com/JasonAseoche/hrmcapstone-sub001/internal/db"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

const attemptColumns = `user_id, fingerprint_id, state, created_at_ms, resolved_at_ms,
  failure_reason, scanned_fingerprint_id, device_timestamp_ms`

type AttemptStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewAttemptStore(db *sql.DB, writer *dbpkg.Worker) *AttemptStore {
	return &AttemptStore{db: db, writer: writer}
}

func (s *AttemptStore) Replace(ctx context.Context, a types.Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.State == "" {
		a.State = types.StateWaiting
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM enrollment_attempts WHERE user_id = ?;
`, a.UserID); err != nil {
			return fmt.Errorf("Replace delete prior: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
INSERT INTO enrollment_attempts(`+attemptColumns+`)
VALUES (?, ?, ?, ?, ?, ?, ?, ?);
`,
			a.UserID, a.FingerprintID, string(a.State), a.CreatedAt.UTC().UnixMilli(),
			msOrNil(a.ResolvedAt), nullIfEmpty(a.FailureReason),
			nullIfEmpty(a.ScannedFingerprintID), msOrNil(a.DeviceTimestamp),
		); err != nil {
			return fmt.Errorf("Replace insert: %w", err)
		}
		return nil
	})
}

func (s *AttemptStore) Get(ctx context.Context, userID, fingerprintID string) (types.Attempt, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+attemptColumns+`
FROM enrollment_attempts
WHERE user_id = ? AND fingerprint_id = ?;
`, userID, fingerprintID)

	a, err := scanAttempt(row)
	if errors.Is(err, sql.ErrNoRows) {
		return types.Attempt{}, store.ErrNotFound
	}
	if err != nil {
		return types.Attempt{}, fmt.Errorf("Get attempt: %w", err)
	}
	return a, nil
}

func (s *AttemptStore) WaitingByFingerprint(ctx context.Context, fingerprintID string) ([]types.Attempt, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+attemptColumns+`
FROM enrollment_attempts
WHERE state = 'waiting' AND fingerprint_id = ?
ORDER BY created_at_ms, user_id;
`, fingerprintID)
	if err != nil {
		return nil, fmt.Errorf("WaitingByFingerprint query: %w", err)
	}
	return collectAttempts(rows)
}

func (s *AttemptStore) Resolve(ctx context.Context, userID, fingerprintID string, res store.Resolution) error {
	resolvedAt := resolutionTime(res)

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		result, err := tx.ExecContext(ctx, `
UPDATE enrollment_attempts
SET state = ?,
    resolved_at_ms = ?,
    failure_reason = ?,
    scanned_fingerprint_id = ?,
    device_timestamp_ms = ?
WHERE user_id = ? AND fingerprint_id = ? AND state = 'waiting';
`,
			string(res.State), resolvedAt.UnixMilli(), nullIfEmpty(res.FailureReason),
			nullIfEmpty(res.ScannedFingerprintID), msOrNil(res.DeviceTimestamp),
			userID, fingerprintID,
		)
		if err != nil {
			return fmt.Errorf("Resolve update: %w", err)
		}

		n, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("Resolve rows affected: %w", err)
		}
		if n == 1 {
			return nil
		}

		// Lost the compare-and-swap; tell the caller why.
		var exists int
		err = tx.QueryRowContext(ctx, `
SELECT 1 FROM enrollment_attempts WHERE user_id = ? AND fingerprint_id = ?;
`, userID, fingerprintID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("Resolve existence check: %w", err)
		}
		return store.ErrNotWaiting
	})
}

func (s *AttemptStore) FailAllWaiting(ctx context.Context, res store.Resolution) ([]types.Attempt, error) {
	resolvedAt := resolutionTime(res)
	var failed []types.Attempt

	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, `
SELECT `+attemptColumns+`
FROM enrollment_attempts
WHERE state = 'waiting'
ORDER BY created_at_ms, user_id;
`)
		if err != nil {
			return fmt.Errorf("FailAllWaiting select: %w", err)
		}
		waiting, err := collectAttempts(rows)
		if err != nil {
			return err
		}
		if len(waiting) == 0 {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE enrollment_attempts
SET state = ?,
    resolved_at_ms = ?,
    failure_reason = ?,
    scanned_fingerprint_id = ?,
    device_timestamp_ms = ?
WHERE state = 'waiting';
`,
			string(res.State), resolvedAt.UnixMilli(), nullIfEmpty(res.FailureReason),
			nullIfEmpty(res.ScannedFingerprintID), msOrNil(res.DeviceTimestamp),
		); err != nil {
			return fmt.Errorf("FailAllWaiting update: %w", err)
		}

		for _, a := range waiting {
			at := resolvedAt
			a.State = res.State
			a.ResolvedAt = &at
			a.FailureReason = res.FailureReason
			a.ScannedFingerprintID = res.ScannedFingerprintID
			a.DeviceTimestamp = res.DeviceTimestamp
			failed = append(failed, a)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return failed, nil
}

func (s *AttemptStore) Delete(ctx context.Context, userID, fingerprintID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM enrollment_attempts WHERE user_id = ? AND fingerprint_id = ?;
`, userID, fingerprintID); err != nil {
			return fmt.Errorf("Delete attempt: %w", err)
		}
		return nil
	})
}

func (s *AttemptStore) DeleteForUser(ctx context.Context, userID string) error {
	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
DELETE FROM enrollment_attempts WHERE user_id = ?;
`, userID); err != nil {
			return fmt.Errorf("DeleteForUser: %w", err)
		}
		return nil
	})
}

// PruneResolvedBefore deletes terminal attempts whose resolved_at_ms is older
// than cutoff. Waiting attempts are never touched.
func (s *AttemptStore) PruneResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM enrollment_attempts
WHERE state <> 'waiting' AND resolved_at_ms IS NOT NULL AND resolved_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneResolvedBefore: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAttempt(row rowScanner) (types.Attempt, error) {
	var (
		a                 types.Attempt
		state             string
		createdMs         int64
		resolvedMs        sql.NullInt64
		reason, scanned   sql.NullString
		deviceTimestampMs sql.NullInt64
	)
	if err := row.Scan(
		&a.UserID, &a.FingerprintID, &state, &createdMs, &resolvedMs,
		&reason, &scanned, &deviceTimestampMs,
	); err != nil {
		return types.Attempt{}, err
	}

	a.State = types.State(state)
	a.CreatedAt = time.UnixMilli(createdMs).UTC()
	a.ResolvedAt = timeOrNil(resolvedMs)
	a.FailureReason = reason.String
	a.ScannedFingerprintID = scanned.String
	a.DeviceTimestamp = timeOrNil(deviceTimestampMs)
	return a, nil
}

func collectAttempts(rows *sql.Rows) ([]types.Attempt, error) {
	defer rows.Close()

	var out []types.Attempt
	for rows.Next() {
		a, err := scanAttempt(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attempts: %w", err)
	}
	return out, nil
}

func resolutionTime(res store.Resolution) time.Time {
	if res.ResolvedAt.IsZero() {
		return time.Now().UTC()
	}
	return res.ResolvedAt.UTC()
}
