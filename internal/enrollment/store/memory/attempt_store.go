package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

type attemptKey struct {
	userID        string
	fingerprintID string
}

// AttemptStore keeps enrollment attempts in a map. It is intended for tests
// and single-process dev runs.
type AttemptStore struct {
	mu   sync.RWMutex
	data map[attemptKey]types.Attempt
}

func NewAttemptStore() *AttemptStore {
	return &AttemptStore{data: make(map[attemptKey]types.Attempt)}
}

func (s *AttemptStore) Replace(_ context.Context, a types.Attempt) error {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if k.userID == a.UserID {
			delete(s.data, k)
		}
	}
	s.data[attemptKey{a.UserID, a.FingerprintID}] = a
	return nil
}

func (s *AttemptStore) Get(_ context.Context, userID, fingerprintID string) (types.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.data[attemptKey{userID, fingerprintID}]
	if !ok {
		return types.Attempt{}, store.ErrNotFound
	}
	return a, nil
}

func (s *AttemptStore) WaitingByFingerprint(_ context.Context, fingerprintID string) ([]types.Attempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.Attempt
	for _, a := range s.data {
		if a.State == types.StateWaiting && a.FingerprintID == fingerprintID {
			out = append(out, a)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *AttemptStore) Resolve(_ context.Context, userID, fingerprintID string, res store.Resolution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := attemptKey{userID, fingerprintID}
	a, ok := s.data[k]
	if !ok {
		return store.ErrNotFound
	}
	if a.State != types.StateWaiting {
		return store.ErrNotWaiting
	}
	s.data[k] = applyResolution(a, res)
	return nil
}

func (s *AttemptStore) FailAllWaiting(_ context.Context, res store.Resolution) ([]types.Attempt, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var failed []types.Attempt
	for k, a := range s.data {
		if a.State != types.StateWaiting {
			continue
		}
		a = applyResolution(a, res)
		s.data[k] = a
		failed = append(failed, a)
	}
	sortByCreated(failed)
	return failed, nil
}

func (s *AttemptStore) Delete(_ context.Context, userID, fingerprintID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, attemptKey{userID, fingerprintID})
	return nil
}

func (s *AttemptStore) DeleteForUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.data {
		if k.userID == userID {
			delete(s.data, k)
		}
	}
	return nil
}

func (s *AttemptStore) PruneResolvedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for k, a := range s.data {
		if a.State.Terminal() && a.ResolvedAt != nil && a.ResolvedAt.Before(cutoff) {
			delete(s.data, k)
			n++
		}
	}
	return n, nil
}

// Attempts returns a snapshot of every stored attempt, oldest first. Test-only helper.
func (s *AttemptStore) Attempts() []types.Attempt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Attempt, 0, len(s.data))
	for _, a := range s.data {
		out = append(out, a)
	}
	sortByCreated(out)
	return out
}

func applyResolution(a types.Attempt, res store.Resolution) types.Attempt {
	at := res.ResolvedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	a.State = res.State
	a.ResolvedAt = &at
	a.FailureReason = res.FailureReason
	a.ScannedFingerprintID = res.ScannedFingerprintID
	a.DeviceTimestamp = res.DeviceTimestamp
	return a
}

func sortByCreated(as []types.Attempt) {
	sort.SliceStable(as, func(i, j int) bool {
		if as[i].CreatedAt.Equal(as[j].CreatedAt) {
			return as[i].UserID < as[j].UserID
		}
		return as[i].CreatedAt.Before(as[j].CreatedAt)
	})
}
