package service_test

import (
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/service"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store/memory"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// harness wires every enrollment component over in-memory stores.
type harness struct {
	clock    *fakeClock
	attempts *memory.AttemptStore
	dir      *memory.DirectoryStore
	scans    *memory.ScanEventStore

	registry  *service.Registry
	directory *service.DirectorySynchronizer
	manager   *service.RegistrationManager
	matcher   *service.EventMatcher
	poller    *service.StatusPoller
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	h := &harness{
		clock:    &fakeClock{now: t0},
		attempts: memory.NewAttemptStore(),
		dir:      memory.NewDirectoryStore(),
		scans:    memory.NewScanEventStore(),
	}
	log := zerolog.Nop()

	h.registry = service.NewRegistry(h.attempts, service.RegistryConfig{Now: h.clock.Now})
	h.directory = service.NewDirectorySynchronizer(h.dir, log)
	h.manager = service.NewRegistrationManager(h.registry, h.directory, log)
	h.matcher = service.NewEventMatcher(h.registry, h.directory, h.scans, log)
	h.poller = service.NewStatusPoller(h.registry, log)
	return h
}

// addPerson creates an account and an employment record joined by email.
func (h *harness) addPerson(userID, first, last, email string) int64 {
	h.dir.AddAccount(store.AccountRecord{UserID: userID, FirstName: first, LastName: last, Email: email})
	return h.dir.AddEmployee(store.EmploymentRecord{FirstName: first, LastName: last, Email: email})
}
