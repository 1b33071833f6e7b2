package memory

import (
	"context"
	"sync"
	"time"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
)

// ScanEventStore is an in-memory append-only log of device scans.
// It is intended for use in tests and dev environments.
type ScanEventStore struct {
	mu     sync.Mutex
	events []store.ScanEventRecord
}

func NewScanEventStore() *ScanEventStore {
	return &ScanEventStore{}
}

func (s *ScanEventStore) RecordScan(_ context.Context, rec store.ScanEventRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, rec)
	return nil
}

func (s *ScanEventStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var n int64
	for _, ev := range s.events {
		if ev.ReceivedAt.Before(cutoff) {
			n++
			continue
		}
		kept = append(kept, ev)
	}
	s.events = kept
	return n, nil
}

// Events returns a copy of all recorded scans.  Test-only helper.
func (s *ScanEventStore) Events() []store.ScanEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.ScanEventRecord, len(s.events))
	copy(out, s.events)
	return out
}
