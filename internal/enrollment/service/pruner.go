package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
)

// AttemptPruner periodically deletes terminal attempts that no client
// polled, and scan audit rows, once they are older than the retention
// window. Waiting attempts are never touched.
//
// A retention of 0 disables pruning entirely.
type AttemptPruner struct {
	registry  *Registry
	scans     store.ScanEventStore
	retention time.Duration
	interval  time.Duration
	logger    zerolog.Logger
	cancel    context.CancelFunc
	done      chan struct{}
}

type PrunerConfig struct {
	Retention time.Duration
	// Interval defaults to one hour.
	Interval time.Duration
}

// NewAttemptPruner creates a pruner but does not start it.
func NewAttemptPruner(reg *Registry, scans store.ScanEventStore, cfg PrunerConfig, logger zerolog.Logger) *AttemptPruner {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &AttemptPruner{
		registry:  reg,
		scans:     scans,
		retention: cfg.Retention,
		interval:  cfg.Interval,
		logger:    logger.With().Str("component", "pruner").Logger(),
		done:      make(chan struct{}),
	}
}

// Start prunes once immediately, then on every interval until ctx is
// cancelled or Stop is called.
func (p *AttemptPruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		p.logger.Info().Msg("pruner disabled (retention=0)")
		close(p.done)
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	go p.loop(ctx)

	p.logger.Info().
		Dur("retention", p.retention).
		Dur("interval", p.interval).
		Msg("pruner started")
}

// Stop signals the pruner to exit and waits for it to finish.
func (p *AttemptPruner) Stop() {
	if p.cancel != nil {
		p.cancel()
	}
	<-p.done
}

func (p *AttemptPruner) loop(ctx context.Context) {
	defer close(p.done)

	p.PruneOnce(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PruneOnce(ctx)
		}
	}
}

// PruneOnce runs a single pruning pass.
func (p *AttemptPruner) PruneOnce(ctx context.Context) {
	var cutoff time.Time
	var attempts int64
	err := p.registry.exclusive(ctx, func(ctx context.Context, now time.Time) error {
		cutoff = now.Add(-p.retention)
		var err error
		attempts, err = p.registry.store.PruneResolvedBefore(ctx, cutoff)
		return err
	})
	if err != nil {
		p.logger.Error().Err(err).Msg("attempt prune failed")
	} else if attempts > 0 {
		p.logger.Info().Int64("deleted", attempts).Time("cutoff", cutoff).Msg("pruned resolved attempts")
	}

	if p.scans == nil || cutoff.IsZero() {
		return
	}
	scans, err := p.scans.PruneOlderThan(ctx, cutoff)
	if err != nil {
		p.logger.Error().Err(err).Msg("scan audit prune failed")
		return
	}
	if scans > 0 {
		p.logger.Info().Int64("deleted", scans).Time("cutoff", cutoff).Msg("pruned scan audit rows")
	}
}
