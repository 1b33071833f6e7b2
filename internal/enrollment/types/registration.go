package types

import (
	"bytes"
	"encoding/json"
)

// FlexID is an identifier that accepts both JSON strings and JSON numbers.
// The web client sends numeric account ids and some scanners send numeric
// template slots.
type FlexID string

func (u *FlexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*u = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*u = FlexID(n.String())
	return nil
}

type StartRequest struct {
	UserID        FlexID `json:"user_id" validate:"required,max=64"`
	FingerprintID string `json:"fingerprint_id" validate:"required,max=128"`
}

type StartResponse struct {
	OK            bool   `json:"ok"`
	State         State  `json:"state"`
	UserID        string `json:"user_id"`
	FingerprintID string `json:"fingerprint_id"`
	ServerTime    string `json:"server_time"`
}

// Status is what a polling client observes for its attempt.
type Status string

const (
	StatusNotFound  Status = "not_found"
	StatusWaiting   Status = Status(StateWaiting)
	StatusCompleted Status = Status(StateCompleted)
	StatusFailed    Status = Status(StateFailed)
	StatusExpired   Status = Status(StateExpired)
)

type CheckResponse struct {
	OK            bool   `json:"ok"`
	Status        Status `json:"status"`
	Reason        string `json:"reason,omitempty"`
	UserID        string `json:"user_id"`
	FingerprintID string `json:"fingerprint_id"`
	ServerTime    string `json:"server_time"`
}

type UnregisterResponse struct {
	OK         bool   `json:"ok"`
	UserID     string `json:"user_id"`
	ServerTime string `json:"server_time"`
}
