package store

import (
	"context"
	"time"
)

// ScanEventRecord captures one device scan and how it was correlated.
type ScanEventRecord struct {
	ScannedID       string
	ReceivedAt      time.Time
	DeviceTimestamp *time.Time // optional device-reported timestamp
	Outcome         string
	UserID          string // set when the scan completed or was rejected for a user
	Detail          string
}

// ScanEventStore persists scans as an append-only audit log.
type ScanEventStore interface {
	RecordScan(ctx context.Context, rec ScanEventRecord) error
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
