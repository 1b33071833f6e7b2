package memory

import (
	"context"
	"errors"
	"maps"
	"sort"
	"strings"
	"sync"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

var errReadOnly = errors.New("directory view is read-only")

// DirectoryStore holds account and employment records in memory. Update
// works on copies and swaps them in only when the unit succeeds.
type DirectoryStore struct {
	mu        sync.Mutex
	accounts  map[string]store.AccountRecord
	employees map[int64]store.EmploymentRecord
	nextID    int64

	employmentWriteErr error
}

func NewDirectoryStore() *DirectoryStore {
	return &DirectoryStore{
		accounts:  make(map[string]store.AccountRecord),
		employees: make(map[int64]store.EmploymentRecord),
	}
}

// AddAccount inserts or overwrites an account record.
func (s *DirectoryStore) AddAccount(rec store.AccountRecord) {
	if rec.FingerprintStatus == "" {
		rec.FingerprintStatus = types.FingerprintNotRegistered
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[rec.UserID] = rec
}

// AddEmployee inserts an employment record and returns its id.
func (s *DirectoryStore) AddEmployee(rec store.EmploymentRecord) int64 {
	if rec.FingerprintStatus == "" {
		rec.FingerprintStatus = types.FingerprintNotRegistered
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	rec.EmployeeID = s.nextID
	s.employees[rec.EmployeeID] = rec
	return rec.EmployeeID
}

// FailEmploymentWrites makes every subsequent employment update return err.
// Passing nil clears it. Test-only helper.
func (s *DirectoryStore) FailEmploymentWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.employmentWriteErr = err
}

// AccountByID returns the stored account. Test-only helper.
func (s *DirectoryStore) AccountByID(userID string) (store.AccountRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.accounts[userID]
	return rec, ok
}

// EmployeeByID returns the stored employment record. Test-only helper.
func (s *DirectoryStore) EmployeeByID(id int64) (store.EmploymentRecord, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.employees[id]
	return rec, ok
}

func (s *DirectoryStore) View(ctx context.Context, fn func(ctx context.Context, tx store.DirectoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(ctx, &directoryTx{accounts: s.accounts, employees: s.employees, readOnly: true})
}

func (s *DirectoryStore) Update(ctx context.Context, fn func(ctx context.Context, tx store.DirectoryTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &directoryTx{
		accounts:           maps.Clone(s.accounts),
		employees:          maps.Clone(s.employees),
		employmentWriteErr: s.employmentWriteErr,
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.accounts = tx.accounts
	s.employees = tx.employees
	return nil
}

func (s *DirectoryStore) ListAccounts(_ context.Context) ([]store.AccountRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]store.AccountRecord, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

type directoryTx struct {
	accounts           map[string]store.AccountRecord
	employees          map[int64]store.EmploymentRecord
	readOnly           bool
	employmentWriteErr error
}

func (t *directoryTx) Account(_ context.Context, userID string) (store.AccountRecord, error) {
	a, ok := t.accounts[userID]
	if !ok {
		return store.AccountRecord{}, store.ErrNotFound
	}
	return a, nil
}

func (t *directoryTx) EmploymentByEmail(_ context.Context, email string) ([]store.EmploymentRecord, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, nil
	}
	return t.employeesWhere(func(e store.EmploymentRecord) bool {
		return strings.EqualFold(e.Email, email)
	}), nil
}

// EmploymentByName returns nothing unless both names are given.
func (t *directoryTx) EmploymentByName(_ context.Context, firstName, lastName string) ([]store.EmploymentRecord, error) {
	firstName, lastName = strings.TrimSpace(firstName), strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, nil
	}
	return t.employeesWhere(func(e store.EmploymentRecord) bool {
		return strings.EqualFold(e.FirstName, firstName) && strings.EqualFold(e.LastName, lastName)
	}), nil
}

func (t *directoryTx) AccountsWithFingerprint(_ context.Context, fingerprintID string) ([]store.AccountRecord, error) {
	var out []store.AccountRecord
	for _, a := range t.accounts {
		if fingerprintID != "" && a.FingerprintID == fingerprintID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (t *directoryTx) EmploymentWithFingerprint(_ context.Context, fingerprintID string) ([]store.EmploymentRecord, error) {
	return t.employeesWhere(func(e store.EmploymentRecord) bool {
		return fingerprintID != "" && e.FingerprintID == fingerprintID
	}), nil
}

func (t *directoryTx) SetAccountFingerprint(_ context.Context, userID, fingerprintID, status string) error {
	if t.readOnly {
		return errReadOnly
	}
	a, ok := t.accounts[userID]
	if !ok {
		return store.ErrNotFound
	}
	a.FingerprintID = fingerprintID
	a.FingerprintStatus = status
	t.accounts[userID] = a
	return nil
}

func (t *directoryTx) SetEmploymentFingerprint(_ context.Context, employeeID int64, fingerprintID, status string) error {
	if t.readOnly {
		return errReadOnly
	}
	if t.employmentWriteErr != nil {
		return t.employmentWriteErr
	}
	e, ok := t.employees[employeeID]
	if !ok {
		return store.ErrNotFound
	}
	e.FingerprintID = fingerprintID
	e.FingerprintStatus = status
	t.employees[employeeID] = e
	return nil
}

func (t *directoryTx) employeesWhere(match func(store.EmploymentRecord) bool) []store.EmploymentRecord {
	var out []store.EmploymentRecord
	for _, e := range t.employees {
		if match(e) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EmployeeID < out[j].EmployeeID })
	return out
}
