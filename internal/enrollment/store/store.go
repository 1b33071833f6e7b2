package store

import (
	"context"
	"errors"
	"time"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrNotWaiting = errors.New("attempt is not waiting")
)

// Resolution describes a terminal transition applied to a waiting attempt.
type Resolution struct {
	State                types.State
	ResolvedAt           time.Time
	FailureReason        string
	ScannedFingerprintID string
	DeviceTimestamp      *time.Time
}

// AttemptStore persists enrollment attempts. Every method is atomic on its
// own; callers that need several calls to act as one hold the registry lock.
type AttemptStore interface {
	// Replace discards every attempt for a.UserID and inserts a.
	Replace(ctx context.Context, a types.Attempt) error
	Get(ctx context.Context, userID, fingerprintID string) (types.Attempt, error)
	// WaitingByFingerprint returns waiting attempts for fingerprintID, oldest first.
	WaitingByFingerprint(ctx context.Context, fingerprintID string) ([]types.Attempt, error)
	// Resolve moves a waiting attempt to a terminal state. It returns
	// ErrNotWaiting when the attempt exists but already left waiting.
	Resolve(ctx context.Context, userID, fingerprintID string, res Resolution) error
	// FailAllWaiting fails every waiting attempt in one transaction and
	// returns the attempts it changed.
	FailAllWaiting(ctx context.Context, res Resolution) ([]types.Attempt, error)
	Delete(ctx context.Context, userID, fingerprintID string) error
	DeleteForUser(ctx context.Context, userID string) error
	// PruneResolvedBefore deletes terminal attempts resolved before cutoff.
	PruneResolvedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
