package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

// StatusPoller answers client polls. It is the only place waiting attempts
// expire, and it purges an attempt once a terminal state has been reported.
type StatusPoller struct {
	registry *Registry
	logger   zerolog.Logger
}

func NewStatusPoller(reg *Registry, logger zerolog.Logger) *StatusPoller {
	return &StatusPoller{
		registry: reg,
		logger:   logger.With().Str("component", "poller").Logger(),
	}
}

func (p *StatusPoller) Check(ctx context.Context, userID, fingerprintID string) (types.CheckResponse, error) {
	userID = strings.TrimSpace(userID)
	fingerprintID = strings.TrimSpace(fingerprintID)
	if userID == "" {
		return types.CheckResponse{}, ErrInvalidUserID
	}
	if fingerprintID == "" {
		return types.CheckResponse{}, ErrInvalidFingerprintID
	}

	ctx, span := tracer.Start(ctx, "enrollment.check", attemptAttrs(userID, fingerprintID))
	defer span.End()

	resp := types.CheckResponse{OK: true, UserID: userID, FingerprintID: fingerprintID}
	err := p.registry.exclusive(ctx, func(ctx context.Context, now time.Time) error {
		resp.ServerTime = now.Format(time.RFC3339Nano)

		a, err := p.registry.store.Get(ctx, userID, fingerprintID)
		if errors.Is(err, store.ErrNotFound) {
			resp.Status = types.StatusNotFound
			return nil
		}
		if err != nil {
			return fmt.Errorf("get attempt: %w", err)
		}

		switch a.State {
		case types.StateWaiting:
			if !a.Expired(now, p.registry.expiry) {
				resp.Status = types.StatusWaiting
				return nil
			}
			if err := p.registry.store.Resolve(ctx, userID, fingerprintID, store.Resolution{
				State:      types.StateExpired,
				ResolvedAt: now,
			}); err != nil {
				return fmt.Errorf("expire attempt: %w", err)
			}
			p.logger.Info().
				Str("user_id", userID).
				Str("fingerprint_id", fingerprintID).
				Dur("age", now.Sub(a.CreatedAt)).
				Msg("enrollment expired")
			resp.Status = types.StatusExpired

		case types.StateCompleted:
			resp.Status = types.StatusCompleted
		case types.StateFailed:
			resp.Status = types.StatusFailed
			resp.Reason = a.FailureReason
		case types.StateExpired:
			resp.Status = types.StatusExpired
		default:
			return fmt.Errorf("attempt for %s has unknown state %q", userID, a.State)
		}

		// Terminal states are reported once.
		if err := p.registry.store.Delete(ctx, userID, fingerprintID); err != nil {
			return fmt.Errorf("purge attempt: %w", err)
		}
		return nil
	})
	if err != nil {
		spanError(span, err)
		p.logger.Error().Err(err).Str("user_id", userID).Str("fingerprint_id", fingerprintID).Msg("status check failed")
		return types.CheckResponse{}, err
	}
	return resp, nil
}
