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

// RegistrationManager handles client-initiated enrollment and removal.
type RegistrationManager struct {
	registry  *Registry
	directory *DirectorySynchronizer
	logger    zerolog.Logger
}

func NewRegistrationManager(reg *Registry, dir *DirectorySynchronizer, logger zerolog.Logger) *RegistrationManager {
	return &RegistrationManager{
		registry:  reg,
		directory: dir,
		logger:    logger.With().Str("component", "registration").Logger(),
	}
}

// Start admits a waiting attempt for (user, fingerprint). It does not wait
// for the scan; callers poll StatusPoller.Check.
func (m *RegistrationManager) Start(ctx context.Context, req types.StartRequest) (types.StartResponse, error) {
	userID := strings.TrimSpace(string(req.UserID))
	fingerprintID := strings.TrimSpace(req.FingerprintID)

	if userID == "" {
		return types.StartResponse{}, ErrInvalidUserID
	}
	if fingerprintID == "" {
		return types.StartResponse{}, ErrInvalidFingerprintID
	}

	ctx, span := tracer.Start(ctx, "enrollment.start", attemptAttrs(userID, fingerprintID))
	defer span.End()

	var createdAt time.Time
	err := m.registry.exclusive(ctx, func(ctx context.Context, now time.Time) error {
		if err := m.directory.CheckAvailable(ctx, userID, fingerprintID); err != nil {
			return err
		}

		pending, err := m.registry.store.WaitingByFingerprint(ctx, fingerprintID)
		if err != nil {
			return fmt.Errorf("pending attempts for fingerprint: %w", err)
		}
		for _, a := range pending {
			if a.UserID == userID {
				continue
			}
			if !a.Expired(now, m.registry.expiry) {
				return ErrFingerprintPending
			}
			// Abandoned attempt: expire it now so it cannot be matched. The
			// owner's next poll still reports expired.
			if err := m.registry.store.Resolve(ctx, a.UserID, a.FingerprintID, store.Resolution{
				State:      types.StateExpired,
				ResolvedAt: now,
			}); err != nil && !errors.Is(err, store.ErrNotWaiting) {
				return fmt.Errorf("expire stale attempt for %s: %w", a.UserID, err)
			}
		}

		createdAt = now
		return m.registry.store.Replace(ctx, types.Attempt{
			UserID:        userID,
			FingerprintID: fingerprintID,
			State:         types.StateWaiting,
			CreatedAt:     now,
		})
	})
	if err != nil {
		spanError(span, err)
		ev := m.logger.Warn()
		if !errors.Is(err, ErrFingerprintAlreadyAssigned) && !errors.Is(err, ErrFingerprintPending) {
			ev = m.logger.Error()
		}
		ev.Err(err).Str("user_id", userID).Str("fingerprint_id", fingerprintID).Msg("enrollment not started")
		return types.StartResponse{}, err
	}

	m.logger.Info().
		Str("user_id", userID).
		Str("fingerprint_id", fingerprintID).
		Msg("enrollment waiting for scan")

	return types.StartResponse{
		OK:            true,
		State:         types.StateWaiting,
		UserID:        userID,
		FingerprintID: fingerprintID,
		ServerTime:    createdAt.Format(time.RFC3339Nano),
	}, nil
}

// Unregister clears the user's fingerprint binding from the directory and
// drops any attempt still pending for the user.
func (m *RegistrationManager) Unregister(ctx context.Context, userID string) (types.UnregisterResponse, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return types.UnregisterResponse{}, ErrInvalidUserID
	}

	ctx, span := tracer.Start(ctx, "enrollment.unregister", attemptAttrs(userID, ""))
	defer span.End()

	var at time.Time
	err := m.registry.exclusive(ctx, func(ctx context.Context, now time.Time) error {
		at = now
		if err := m.directory.Unbind(ctx, userID); err != nil {
			return err
		}
		if err := m.registry.store.DeleteForUser(ctx, userID); err != nil && !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("discard attempts for %s: %w", userID, err)
		}
		return nil
	})
	if err != nil {
		spanError(span, err)
		m.logger.Warn().Err(err).Str("user_id", userID).Msg("unregister failed")
		return types.UnregisterResponse{}, err
	}

	m.logger.Info().Str("user_id", userID).Msg("fingerprint unregistered")
	return types.UnregisterResponse{
		OK:         true,
		UserID:     userID,
		ServerTime: at.Format(time.RFC3339Nano),
	}, nil
}
