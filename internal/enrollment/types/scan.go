package types

// ScanEvent is pushed by the fingerprint scanner. The scanner has no notion
// of who is enrolling; it only reports the identifier it read.
type ScanEvent struct {
	ScannedID       string `json:"scanned_id"`
	DeviceTimestamp string `json:"device_timestamp,omitempty"` // optional device clock, RFC3339
}

// ScanAck is returned to the scanner regardless of the match result.
type ScanAck struct {
	OK         bool   `json:"ok"`
	ServerTime string `json:"server_time"`
}

// Outcome of correlating one scan with the pending attempts.
type Outcome string

const (
	OutcomeCompleted  Outcome = "completed"
	OutcomeNoMatch    Outcome = "no_match"
	OutcomeRejected   Outcome = "rejected"
	OutcomeBindFailed Outcome = "bind_failed"
	OutcomeInvalid    Outcome = "invalid"
	OutcomeError      Outcome = "error"
)

type MatchOutcome struct {
	Outcome       Outcome
	UserID        string
	FingerprintID string
	// FailedUserIDs lists the attempts failed by a mismatching scan.
	FailedUserIDs []string
}
