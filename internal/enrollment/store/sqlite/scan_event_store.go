package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	dbpkg "github.com/JasonAseoche/hrmcapstone-sub001/internal/db"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
)

type ScanEventStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewScanEventStore(db *sql.DB, writer *dbpkg.Worker) *ScanEventStore {
	return &ScanEventStore{db: db, writer: writer}
}

func (s *ScanEventStore) RecordScan(ctx context.Context, rec store.ScanEventRecord) error {
	if rec.ReceivedAt.IsZero() {
		rec.ReceivedAt = time.Now().UTC()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO scan_events(
  scanned_id, received_at_ms, device_timestamp_ms, outcome, user_id, detail
) VALUES (?, ?, ?, ?, ?, ?);
`,
			rec.ScannedID, rec.ReceivedAt.UTC().UnixMilli(), msOrNil(rec.DeviceTimestamp),
			rec.Outcome, nullIfEmpty(rec.UserID), nullIfEmpty(rec.Detail),
		); err != nil {
			return fmt.Errorf("RecordScan insert: %w", err)
		}
		return nil
	})
}

// PruneOlderThan deletes scan rows received before cutoff.
func (s *ScanEventStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	cutoffMs := cutoff.UTC().UnixMilli()

	var deleted int64
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
DELETE FROM scan_events WHERE received_at_ms < ?;
`, cutoffMs)
		if err != nil {
			return fmt.Errorf("PruneOlderThan scan_events: %w", err)
		}
		deleted, err = res.RowsAffected()
		return err
	})
	return deleted, err
}
