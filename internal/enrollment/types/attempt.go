package types

import "time"

// State is the lifecycle state of an enrollment attempt.
type State string

const (
	StateWaiting   State = "waiting"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateExpired   State = "expired"
)

// Terminal reports whether no further transition may apply.
func (s State) Terminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateExpired:
		return true
	}
	return false
}

func (s State) Valid() bool {
	return s == StateWaiting || s.Terminal()
}

// Failure reasons recorded on failed attempts.
const (
	ReasonWrongFingerprint = "wrong fingerprint scanned"
	ReasonAlreadyAssigned  = "fingerprint already assigned"
)

// Attempt is one in-flight or recently resolved enrollment.
type Attempt struct {
	UserID        string
	FingerprintID string
	State         State
	CreatedAt     time.Time
	ResolvedAt    *time.Time
	FailureReason string

	// ScannedFingerprintID is the identifier that caused a mismatch failure.
	ScannedFingerprintID string
	// DeviceTimestamp is the scanner-reported time of the completing scan.
	DeviceTimestamp *time.Time
}

// Expired reports whether a waiting attempt has outlived window at now.
func (a Attempt) Expired(now time.Time, window time.Duration) bool {
	return a.State == StateWaiting && now.Sub(a.CreatedAt) > window
}
