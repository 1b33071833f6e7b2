package types

const (
	FingerprintRegistered    = "Registered"
	FingerprintNotRegistered = "Not Registered"
)

// AccountView is one row of the directory listing.
type AccountView struct {
	UserID            string `json:"user_id"`
	Name              string `json:"name"`
	Email             string `json:"email,omitempty"`
	FingerprintID     string `json:"fingerprint_id,omitempty"`
	FingerprintStatus string `json:"fingerprint_status"`
}

type AccountsResponse struct {
	OK       bool          `json:"ok"`
	Accounts []AccountView `json:"accounts"`
}
