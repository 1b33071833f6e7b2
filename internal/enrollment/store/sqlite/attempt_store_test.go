package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store"
	sqlitestore "github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/store/sqlite"
	"github.com/JasonAseoche/hrmcapstone-sub001/internal/enrollment/types"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func waiting(userID, fp string, createdAt time.Time) types.Attempt {
	return types.Attempt{
		UserID:        userID,
		FingerprintID: fp,
		State:         types.StateWaiting,
		CreatedAt:     createdAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Replace / Get
// ═══════════════════════════════════════════════════════════════════════════

func TestAttemptStore_ReplaceThenGet(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, as.Replace(ctx, waiting("42", "7", t0)))

	got, err := as.Get(ctx, "42", "7")
	require.NoError(t, err)
	assert.Equal(t, types.StateWaiting, got.State)
	assert.True(t, got.CreatedAt.Equal(t0))
	assert.Nil(t, got.ResolvedAt)
	assert.Empty(t, got.FailureReason)
}

func TestAttemptStore_Get_NotFound(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))

	_, err := as.Get(context.Background(), "42", "7")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAttemptStore_Replace_DiscardsPriorAttemptsForUser(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, as.Replace(ctx, waiting("42", "7", t0)))
	require.NoError(t, as.Replace(ctx, waiting("42", "8", t0.Add(time.Second))))

	_, err := as.Get(ctx, "42", "7")
	assert.ErrorIs(t, err, store.ErrNotFound)

	var count int
	require.NoError(t, conn.QueryRow(
		`SELECT COUNT(*) FROM enrollment_attempts WHERE user_id = ?`, "42",
	).Scan(&count))
	assert.Equal(t, 1, count)
}

func TestAttemptStore_SchemaRejectsSecondWaitingForUser(t *testing.T) {
	conn := openTestDB(t)

	_, err := conn.Exec(`
INSERT INTO enrollment_attempts(user_id, fingerprint_id, state, created_at_ms)
VALUES ('42', '7', 'waiting', 1), ('42', '8', 'waiting', 2);`)
	assert.Error(t, err, "partial unique index must allow one waiting attempt per user")
}

// ═══════════════════════════════════════════════════════════════════════════
// WaitingByFingerprint
// ═══════════════════════════════════════════════════════════════════════════

func TestAttemptStore_WaitingByFingerprint_OldestFirst(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, as.Replace(ctx, waiting("b", "7", t0.Add(time.Minute))))
	require.NoError(t, as.Replace(ctx, waiting("a", "7", t0)))
	require.NoError(t, as.Replace(ctx, waiting("c", "9", t0)))

	got, err := as.WaitingByFingerprint(ctx, "7")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].UserID)
	assert.Equal(t, "b", got[1].UserID)
}

// ═══════════════════════════════════════════════════════════════════════════
// Resolve: compare-and-swap
// ═══════════════════════════════════════════════════════════════════════════

func TestAttemptStore_Resolve_CompletesWaiting(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, as.Replace(ctx, waiting("42", "7", t0)))

	deviceAt := t0.Add(30 * time.Second)
	err := as.Resolve(ctx, "42", "7", store.Resolution{
		State:           types.StateCompleted,
		ResolvedAt:      t0.Add(31 * time.Second),
		DeviceTimestamp: &deviceAt,
	})
	require.NoError(t, err)

	got, err := as.Get(ctx, "42", "7")
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, got.State)
	require.NotNil(t, got.ResolvedAt)
	assert.True(t, got.ResolvedAt.Equal(t0.Add(31*time.Second)))
	require.NotNil(t, got.DeviceTimestamp)
	assert.True(t, got.DeviceTimestamp.Equal(deviceAt))
}

func TestAttemptStore_Resolve_TerminalIsInert(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, as.Replace(ctx, waiting("42", "7", t0)))
	require.NoError(t, as.Resolve(ctx, "42", "7", store.Resolution{State: types.StateCompleted}))

	err := as.Resolve(ctx, "42", "7", store.Resolution{
		State:         types.StateFailed,
		FailureReason: types.ReasonWrongFingerprint,
	})
	assert.ErrorIs(t, err, store.ErrNotWaiting)

	got, err := as.Get(ctx, "42", "7")
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, got.State)
	assert.Empty(t, got.FailureReason)
}

func TestAttemptStore_Resolve_Missing(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))

	err := as.Resolve(context.Background(), "42", "7", store.Resolution{State: types.StateExpired})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// ═══════════════════════════════════════════════════════════════════════════
// FailAllWaiting
// ═══════════════════════════════════════════════════════════════════════════

func TestAttemptStore_FailAllWaiting_OnlyTouchesWaiting(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, as.Replace(ctx, waiting("a", "1", t0)))
	require.NoError(t, as.Replace(ctx, waiting("b", "2", t0.Add(time.Second))))
	require.NoError(t, as.Replace(ctx, waiting("c", "3", t0.Add(2*time.Second))))
	require.NoError(t, as.Resolve(ctx, "c", "3", store.Resolution{State: types.StateCompleted}))

	failed, err := as.FailAllWaiting(ctx, store.Resolution{
		State:                types.StateFailed,
		ResolvedAt:           t0.Add(time.Minute),
		FailureReason:        types.ReasonWrongFingerprint,
		ScannedFingerprintID: "99",
	})
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, "a", failed[0].UserID)
	assert.Equal(t, "b", failed[1].UserID)

	for _, u := range []struct{ user, fp string }{{"a", "1"}, {"b", "2"}} {
		got, err := as.Get(ctx, u.user, u.fp)
		require.NoError(t, err)
		assert.Equal(t, types.StateFailed, got.State)
		assert.Equal(t, types.ReasonWrongFingerprint, got.FailureReason)
		assert.Equal(t, "99", got.ScannedFingerprintID)
	}

	got, err := as.Get(ctx, "c", "3")
	require.NoError(t, err)
	assert.Equal(t, types.StateCompleted, got.State)
}

func TestAttemptStore_FailAllWaiting_NoneWaiting(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))

	failed, err := as.FailAllWaiting(context.Background(), store.Resolution{State: types.StateFailed})
	require.NoError(t, err)
	assert.Empty(t, failed)
}

// ═══════════════════════════════════════════════════════════════════════════
// Delete / DeleteForUser / PruneResolvedBefore
// ═══════════════════════════════════════════════════════════════════════════

func TestAttemptStore_DeleteAndDeleteForUser(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, as.Replace(ctx, waiting("a", "1", t0)))
	require.NoError(t, as.Replace(ctx, waiting("b", "2", t0)))

	require.NoError(t, as.Delete(ctx, "a", "1"))
	_, err := as.Get(ctx, "a", "1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.NoError(t, as.DeleteForUser(ctx, "b"))
	_, err = as.Get(ctx, "b", "2")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// Deleting something absent is not an error.
	assert.NoError(t, as.Delete(ctx, "zzz", "0"))
}

func TestAttemptStore_PruneResolvedBefore_KeepsWaitingAndRecent(t *testing.T) {
	conn := openTestDB(t)
	as := sqlitestore.NewAttemptStore(conn, newTestWriter(t, conn))
	ctx := context.Background()

	require.NoError(t, as.Replace(ctx, waiting("old", "1", t0.Add(-48*time.Hour))))
	require.NoError(t, as.Resolve(ctx, "old", "1", store.Resolution{
		State: types.StateCompleted, ResolvedAt: t0.Add(-47 * time.Hour),
	}))
	require.NoError(t, as.Replace(ctx, waiting("recent", "2", t0.Add(-time.Hour))))
	require.NoError(t, as.Resolve(ctx, "recent", "2", store.Resolution{
		State: types.StateFailed, ResolvedAt: t0.Add(-time.Hour),
	}))
	require.NoError(t, as.Replace(ctx, waiting("pending", "3", t0.Add(-72*time.Hour))))

	deleted, err := as.PruneResolvedBefore(ctx, t0.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = as.Get(ctx, "recent", "2")
	assert.NoError(t, err)
	_, err = as.Get(ctx, "pending", "3")
	assert.NoError(t, err, "waiting attempts are never pruned")
}
