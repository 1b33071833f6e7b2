package store

import "context"

// AccountRecord is the login-side identity record.
type AccountRecord struct {
	UserID            string
	FirstName         string
	LastName          string
	Email             string
	FingerprintID     string // empty means unbound
	FingerprintStatus string
}

// EmploymentRecord is the HR-side identity record. It has no foreign key to
// the account; the two are joined by email or by first and last name.
type EmploymentRecord struct {
	EmployeeID        int64
	FirstName         string
	LastName          string
	Email             string
	FingerprintID     string
	FingerprintStatus string
}

// DirectoryTx is the set of capabilities available inside one directory unit.
type DirectoryTx interface {
	Account(ctx context.Context, userID string) (AccountRecord, error)
	EmploymentByEmail(ctx context.Context, email string) ([]EmploymentRecord, error)
	EmploymentByName(ctx context.Context, firstName, lastName string) ([]EmploymentRecord, error)
	AccountsWithFingerprint(ctx context.Context, fingerprintID string) ([]AccountRecord, error)
	EmploymentWithFingerprint(ctx context.Context, fingerprintID string) ([]EmploymentRecord, error)
	SetAccountFingerprint(ctx context.Context, userID, fingerprintID, status string) error
	SetEmploymentFingerprint(ctx context.Context, employeeID int64, fingerprintID, status string) error
}

// DirectoryStore is the external identity directory. Update runs fn as one
// atomic unit: if fn returns an error nothing it wrote is kept.
type DirectoryStore interface {
	View(ctx context.Context, fn func(ctx context.Context, tx DirectoryTx) error) error
	Update(ctx context.Context, fn func(ctx context.Context, tx DirectoryTx) error) error
	ListAccounts(ctx context.Context) ([]AccountRecord, error)
}
