package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

// scanTimeout bounds one scan's processing once it is detached from the
// device request.
const scanTimeout = 15 * time.Second

// EventMatcher correlates anonymous scanner events with waiting attempts.
// The only join key is the scanned identifier.
type EventMatcher struct {
	registry  *Registry
	directory *DirectorySynchronizer
	scans     store.ScanEventStore
	logger    zerolog.Logger
}

func NewEventMatcher(reg *Registry, dir *DirectorySynchronizer, scans store.ScanEventStore, logger zerolog.Logger) *EventMatcher {
	return &EventMatcher{
		registry:  reg,
		directory: dir,
		scans:     scans,
		logger:    logger.With().Str("component", "matcher").Logger(),
	}
}

// OnScan applies one scan to the registry:
//   - exactly one waiting attempt for the identifier: bind it in the
//     directory and complete the attempt
//   - none: fail every waiting attempt as a wrong scan
//
// A failed bind leaves the attempt waiting so the user can scan again; the
// error is returned for logging only. Mismatch and rejection are outcomes.
//
// Cancellation of ctx is ignored: a scanner that hangs up early must not
// lose its scan or leave a bind half applied.
func (m *EventMatcher) OnScan(ctx context.Context, ev types.ScanEvent) (types.MatchOutcome, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), scanTimeout)
	defer cancel()

	scanned := strings.TrimSpace(ev.ScannedID)
	deviceAt := parseOptionalTimestamp(ev.DeviceTimestamp)
	receivedAt := m.registry.now()

	if scanned == "" {
		out := types.MatchOutcome{Outcome: types.OutcomeInvalid}
		m.recordScan(ctx, ev.ScannedID, receivedAt, deviceAt, out, ErrInvalidFingerprintID)
		return out, ErrInvalidFingerprintID
	}

	ctx, span := tracer.Start(ctx, "enrollment.scan", trace.WithAttributes(
		attribute.String("enrollment.scanned_id", scanned),
	))
	defer span.End()

	var out types.MatchOutcome
	err := m.registry.exclusive(ctx, func(ctx context.Context, now time.Time) error {
		var err error
		out, err = m.match(ctx, scanned, deviceAt, now)
		return err
	})
	if err != nil && out.Outcome == "" {
		out.Outcome = types.OutcomeError
	}
	span.SetAttributes(attribute.String("enrollment.outcome", string(out.Outcome)))
	spanError(span, err)

	m.recordScan(ctx, scanned, receivedAt, deviceAt, out, err)
	m.logOutcome(scanned, out, err)
	return out, err
}

func (m *EventMatcher) match(ctx context.Context, scanned string, deviceAt *time.Time, now time.Time) (types.MatchOutcome, error) {
	matches, err := m.registry.store.WaitingByFingerprint(ctx, scanned)
	if err != nil {
		return types.MatchOutcome{}, fmt.Errorf("waiting attempts for %s: %w", scanned, err)
	}

	if len(matches) == 0 {
		return m.failAllWaiting(ctx, scanned, now)
	}

	if len(matches) > 1 {
		users := make([]string, 0, len(matches))
		for _, a := range matches {
			users = append(users, a.UserID)
		}
		m.logger.Error().
			Str("fingerprint_id", scanned).
			Strs("user_ids", users).
			Msg("consistency fault: several waiting attempts share a fingerprint; matching the earliest")
	}

	return m.complete(ctx, matches[0], deviceAt, now)
}

func (m *EventMatcher) complete(ctx context.Context, a types.Attempt, deviceAt *time.Time, now time.Time) (types.MatchOutcome, error) {
	out := types.MatchOutcome{UserID: a.UserID, FingerprintID: a.FingerprintID}

	err := m.directory.Bind(ctx, a.UserID, a.FingerprintID)

	var conflict *FingerprintAlreadyAssignedError
	switch {
	case errors.As(err, &conflict):
		if err := m.registry.store.Resolve(ctx, a.UserID, a.FingerprintID, store.Resolution{
			State:                types.StateFailed,
			ResolvedAt:           now,
			FailureReason:        conflict.Error(),
			ScannedFingerprintID: a.FingerprintID,
		}); err != nil {
			out.Outcome = types.OutcomeError
			return out, fmt.Errorf("reject attempt for %s: %w", a.UserID, err)
		}
		out.Outcome = types.OutcomeRejected
		out.FailedUserIDs = []string{a.UserID}
		return out, nil

	case err != nil:
		out.Outcome = types.OutcomeBindFailed
		return out, fmt.Errorf("bind %s to user %s: %w", a.FingerprintID, a.UserID, err)
	}

	if err := m.registry.store.Resolve(ctx, a.UserID, a.FingerprintID, store.Resolution{
		State:           types.StateCompleted,
		ResolvedAt:      now,
		DeviceTimestamp: deviceAt,
	}); err != nil {
		out.Outcome = types.OutcomeError
		return out, fmt.Errorf("complete attempt for %s: %w", a.UserID, err)
	}

	out.Outcome = types.OutcomeCompleted
	return out, nil
}

func (m *EventMatcher) failAllWaiting(ctx context.Context, scanned string, now time.Time) (types.MatchOutcome, error) {
	failed, err := m.registry.store.FailAllWaiting(ctx, store.Resolution{
		State:                types.StateFailed,
		ResolvedAt:           now,
		FailureReason:        types.ReasonWrongFingerprint,
		ScannedFingerprintID: scanned,
	})
	if err != nil {
		return types.MatchOutcome{Outcome: types.OutcomeError}, fmt.Errorf("fail waiting attempts: %w", err)
	}

	out := types.MatchOutcome{Outcome: types.OutcomeNoMatch}
	for _, a := range failed {
		out.FailedUserIDs = append(out.FailedUserIDs, a.UserID)
	}
	return out, nil
}

// recordScan appends the scan to the audit log. Errors are dropped: the
// scanner gets its ack whether or not the audit write lands.
func (m *EventMatcher) recordScan(ctx context.Context, scanned string, receivedAt time.Time, deviceAt *time.Time, out types.MatchOutcome, err error) {
	if m.scans == nil {
		return
	}

	rec := store.ScanEventRecord{
		ScannedID:       scanned,
		ReceivedAt:      receivedAt,
		DeviceTimestamp: deviceAt,
		Outcome:         string(out.Outcome),
		UserID:          out.UserID,
	}
	switch {
	case err != nil:
		rec.Detail = err.Error()
	case len(out.FailedUserIDs) > 0:
		rec.Detail = "failed: " + strings.Join(out.FailedUserIDs, ",")
	}

	if werr := m.scans.RecordScan(ctx, rec); werr != nil {
		m.logger.Debug().Err(werr).Msg("scan audit write failed")
	}
}

func (m *EventMatcher) logOutcome(scanned string, out types.MatchOutcome, err error) {
	var ev *zerolog.Event
	switch {
	case err != nil:
		ev = m.logger.Error().Err(err)
	case out.Outcome == types.OutcomeCompleted:
		ev = m.logger.Info()
	default:
		ev = m.logger.Warn()
	}
	ev.Str("scanned_id", scanned).
		Str("outcome", string(out.Outcome)).
		Str("user_id", out.UserID).
		Strs("failed_user_ids", out.FailedUserIDs).
		Msg("scan processed")
}

// parseOptionalTimestamp parses a device-reported timestamp. It returns nil
// when the string is empty or not RFC3339.
func parseOptionalTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		u := t.UTC()
		return &u
	}
	return nil
}
