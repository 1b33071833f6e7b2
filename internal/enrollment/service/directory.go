package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

// DirectorySynchronizer keeps the fingerprint binding on account and
// employment records in agreement. Employment records carry no reference to
// the account; they are resolved by email, falling back to first and last
// name when the email matches nothing.
type DirectorySynchronizer struct {
	dir    store.DirectoryStore
	logger zerolog.Logger
}

func NewDirectorySynchronizer(dir store.DirectoryStore, logger zerolog.Logger) *DirectorySynchronizer {
	return &DirectorySynchronizer{
		dir:    dir,
		logger: logger.With().Str("component", "directory").Logger(),
	}
}

// Bind assigns fingerprintID to the user's account and every employment
// record resolved from it, as one unit. Ownership is checked again inside
// the unit so a binding made since Start cannot be overwritten.
func (d *DirectorySynchronizer) Bind(ctx context.Context, userID, fingerprintID string) error {
	return d.dir.Update(ctx, func(ctx context.Context, tx store.DirectoryTx) error {
		acct, err := loadAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		emps, err := d.resolveEmployment(ctx, tx, acct)
		if err != nil {
			return err
		}
		if err := checkOwnership(ctx, tx, acct.UserID, fingerprintID, emps); err != nil {
			return err
		}
		return applyBinding(ctx, tx, acct, emps, fingerprintID, types.FingerprintRegistered)
	})
}

// Unbind clears the binding from the account and its employment records.
// Having no employment record is fine.
func (d *DirectorySynchronizer) Unbind(ctx context.Context, userID string) error {
	return d.dir.Update(ctx, func(ctx context.Context, tx store.DirectoryTx) error {
		acct, err := loadAccount(ctx, tx, userID)
		if err != nil {
			return err
		}
		emps, err := d.resolveEmployment(ctx, tx, acct)
		if err != nil {
			return err
		}
		return applyBinding(ctx, tx, acct, emps, "", types.FingerprintNotRegistered)
	})
}

// CheckAvailable returns a *FingerprintAlreadyAssignedError if any account
// or employment record other than the user's own holds fingerprintID. An
// unknown user is not an error here; Bind reports it when the scan arrives.
func (d *DirectorySynchronizer) CheckAvailable(ctx context.Context, userID, fingerprintID string) error {
	return d.dir.View(ctx, func(ctx context.Context, tx store.DirectoryTx) error {
		var own []store.EmploymentRecord
		acct, err := tx.Account(ctx, userID)
		switch {
		case err == nil:
			if own, err = d.resolveEmployment(ctx, tx, acct); err != nil {
				return err
			}
		case !errors.Is(err, store.ErrNotFound):
			return fmt.Errorf("load account %s: %w", userID, err)
		}
		return checkOwnership(ctx, tx, userID, fingerprintID, own)
	})
}

func (d *DirectorySynchronizer) ListAccounts(ctx context.Context) ([]types.AccountView, error) {
	recs, err := d.dir.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	out := make([]types.AccountView, 0, len(recs))
	for _, r := range recs {
		out = append(out, types.AccountView{
			UserID:            r.UserID,
			Name:              displayName(r.FirstName, r.LastName),
			Email:             r.Email,
			FingerprintID:     r.FingerprintID,
			FingerprintStatus: r.FingerprintStatus,
		})
	}
	return out, nil
}

func (d *DirectorySynchronizer) resolveEmployment(ctx context.Context, tx store.DirectoryTx, acct store.AccountRecord) ([]store.EmploymentRecord, error) {
	var (
		emps []store.EmploymentRecord
		err  error
		key  = "email"
	)
	if email := strings.TrimSpace(acct.Email); email != "" {
		if emps, err = tx.EmploymentByEmail(ctx, email); err != nil {
			return nil, fmt.Errorf("employment by email: %w", err)
		}
	}
	// A name join needs both halves; a nameless account matches nothing.
	first, last := strings.TrimSpace(acct.FirstName), strings.TrimSpace(acct.LastName)
	if len(emps) == 0 && first != "" && last != "" {
		key = "name"
		if emps, err = tx.EmploymentByName(ctx, first, last); err != nil {
			return nil, fmt.Errorf("employment by name: %w", err)
		}
	}
	if len(emps) > 1 {
		ids := make([]int64, 0, len(emps))
		for _, e := range emps {
			ids = append(ids, e.EmployeeID)
		}
		d.logger.Warn().
			Str("user_id", acct.UserID).
			Str("join_key", key).
			Ints64("employee_ids", ids).
			Msg("ambiguous employment match; updating all")
	}
	return emps, nil
}

func loadAccount(ctx context.Context, tx store.DirectoryTx, userID string) (store.AccountRecord, error) {
	acct, err := tx.Account(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return store.AccountRecord{}, ErrIdentityNotFound
	}
	if err != nil {
		return store.AccountRecord{}, fmt.Errorf("load account %s: %w", userID, err)
	}
	return acct, nil
}

func checkOwnership(ctx context.Context, tx store.DirectoryTx, userID, fingerprintID string, own []store.EmploymentRecord) error {
	accts, err := tx.AccountsWithFingerprint(ctx, fingerprintID)
	if err != nil {
		return fmt.Errorf("accounts with fingerprint: %w", err)
	}
	for _, a := range accts {
		if a.UserID != userID {
			return &FingerprintAlreadyAssignedError{
				FingerprintID: fingerprintID,
				Owner:         ownerName(a.FirstName, a.LastName, a.UserID),
				OwnerUserID:   a.UserID,
			}
		}
	}

	mine := make(map[int64]struct{}, len(own))
	for _, e := range own {
		mine[e.EmployeeID] = struct{}{}
	}
	emps, err := tx.EmploymentWithFingerprint(ctx, fingerprintID)
	if err != nil {
		return fmt.Errorf("employment with fingerprint: %w", err)
	}
	for _, e := range emps {
		if _, ok := mine[e.EmployeeID]; !ok {
			return &FingerprintAlreadyAssignedError{
				FingerprintID: fingerprintID,
				Owner:         ownerName(e.FirstName, e.LastName, fmt.Sprintf("employee %d", e.EmployeeID)),
			}
		}
	}
	return nil
}

func applyBinding(ctx context.Context, tx store.DirectoryTx, acct store.AccountRecord, emps []store.EmploymentRecord, fingerprintID, status string) error {
	if err := tx.SetAccountFingerprint(ctx, acct.UserID, fingerprintID, status); err != nil {
		return fmt.Errorf("update account %s: %w", acct.UserID, err)
	}
	for _, e := range emps {
		if err := tx.SetEmploymentFingerprint(ctx, e.EmployeeID, fingerprintID, status); err != nil {
			return fmt.Errorf("update employee %d: %w", e.EmployeeID, err)
		}
	}
	return nil
}

func displayName(first, last string) string {
	return strings.TrimSpace(strings.TrimSpace(first) + " " + strings.TrimSpace(last))
}

func ownerName(first, last, fallback string) string {
	if n := displayName(first, last); n != "" {
		return n
	}
	return fallback
}
