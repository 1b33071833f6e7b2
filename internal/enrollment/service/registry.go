package service

import (
	"context"
	"sync"
	"time"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
)

// DefaultExpiry is how long a waiting attempt may go without a scan.
const DefaultExpiry = 5 * time.Minute

type RegistryConfig struct {
	// Expiry is the window after which a waiting attempt is reported
	// expired. Defaults to DefaultExpiry.
	Expiry time.Duration

	// Now overrides the clock. Defaults to time.Now in UTC.
	Now func() time.Time
}

// Registry is the single owner of enrollment attempts. Every operation that
// reads and then writes attempts (replace, match-or-fail-all, check-and-purge,
// unregister) runs under its lock so concurrent requests and device scans
// cannot interleave. The store's compare-and-swap on state stays as a second
// guard.
type Registry struct {
	mu     sync.Mutex
	store  store.AttemptStore
	expiry time.Duration
	now    func() time.Time
}

func NewRegistry(s store.AttemptStore, cfg RegistryConfig) *Registry {
	if cfg.Expiry <= 0 {
		cfg.Expiry = DefaultExpiry
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Registry{store: s, expiry: cfg.Expiry, now: cfg.Now}
}

func (r *Registry) Expiry() time.Duration { return r.expiry }

// exclusive runs fn while holding the registry lock. fn receives the time
// at which the lock was acquired.
func (r *Registry) exclusive(ctx context.Context, fn func(ctx context.Context, now time.Time) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(ctx, r.now())
}
