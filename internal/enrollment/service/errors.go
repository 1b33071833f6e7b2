package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidUserID              = errors.New("user_id is required")
	ErrInvalidFingerprintID       = errors.New("fingerprint_id is required")
	ErrIdentityNotFound           = errors.New("identity not found")
	ErrFingerprintAlreadyAssigned = errors.New("fingerprint already assigned")
	ErrFingerprintPending         = errors.New("fingerprint has a pending enrollment for another user")
)

// FingerprintAlreadyAssignedError names the identity that already holds a
// fingerprint. It matches ErrFingerprintAlreadyAssigned with errors.Is.
type FingerprintAlreadyAssignedError struct {
	FingerprintID string
	Owner         string // display name of the holder
	OwnerUserID   string // empty when the holder is an employment record only
}

func (e *FingerprintAlreadyAssignedError) Error() string {
	return fmt.Sprintf("fingerprint already assigned to %s", e.Owner)
}

func (e *FingerprintAlreadyAssignedError) Is(target error) bool {
	return target == ErrFingerprintAlreadyAssigned
}
