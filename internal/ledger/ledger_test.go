package ledger

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stormsignal/strike-alert/internal/model"
	"github.com/stormsignal/strike-alert/internal/store"
)

func newTestLedger(t *testing.T) (*Ledger, store.Store) {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ledger_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return New(st), st
}

func seedLocation(t *testing.T, st store.Store, userID string, lat, lon float64) {
	t.Helper()

	_, err := st.SetActiveLocation(context.Background(), model.Location{
		UserID:    userID,
		ZipCode:   "60601",
		Latitude:  lat,
		Longitude: lon,
		City:      "Chicago",
		State:     "IL",
	})
	require.NoError(t, err)
}

func seedStrike(t *testing.T, st store.Store, lat, lon float64) *model.Strike {
	t.Helper()

	s, err := st.CreateStrike(context.Background(), model.Strike{
		Latitude:  lat,
		Longitude: lon,
		Timestamp: time.Now().UTC(),
		Intensity: 55.0,
	})
	require.NoError(t, err)
	return s
}

func TestRecordMatchesCreatesPendingNotifications(t *testing.T) {
	t.Parallel()

	l, st := newTestLedger(t)
	ctx := context.Background()

	seedLocation(t, st, "user-near", 41.8795, -87.6298)
	seedLocation(t, st, "user-far", 39.7392, -104.9903)
	strike := seedStrike(t, st, 41.8781, -87.6298)

	got, err := l.RecordMatches(ctx, *strike, 20)
	require.NoError(t, err)
	require.Len(t, got, 1)

	n := got[0]
	require.Equal(t, "user-near", n.UserID)
	require.Equal(t, strike.ID, n.StrikeID)
	require.Equal(t, model.DeliveryPending, n.Status)
	require.Nil(t, n.SentAt)
	require.Greater(t, n.DistanceMiles, 0.0)
	require.Less(t, n.DistanceMiles, 1.0)
}

func TestRecordMatchesIsIdempotent(t *testing.T) {
	t.Parallel()

	l, st := newTestLedger(t)
	ctx := context.Background()

	seedLocation(t, st, "user-1", 41.8795, -87.6298)
	strike := seedStrike(t, st, 41.8781, -87.6298)

	first, err := l.RecordMatches(ctx, *strike, 20)
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := l.RecordMatches(ctx, *strike, 20)
	require.NoError(t, err)
	require.Len(t, second, 1)
	require.Equal(t, first[0].ID, second[0].ID)

	pending, err := l.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
}

func TestRecordMatchesRejectsOutOfBoundsStrike(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)

	_, err := l.RecordMatches(context.Background(), model.Strike{
		ID:        "bogus",
		Latitude:  60.0,
		Longitude: -87.6298,
		Timestamp: time.Now().UTC(),
		Intensity: 10,
	}, 20)
	require.ErrorIs(t, err, model.ErrValidation)
}

func TestRecordMatchesNoMatches(t *testing.T) {
	t.Parallel()

	l, st := newTestLedger(t)
	ctx := context.Background()

	seedLocation(t, st, "user-denver", 39.7392, -104.9903)
	strike := seedStrike(t, st, 41.8781, -87.6298)

	got, err := l.RecordMatches(ctx, *strike, 20)
	require.NoError(t, err)
	require.Empty(t, got)

	pending, err := l.ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMarkSentLifecycle(t *testing.T) {
	t.Parallel()

	l, st := newTestLedger(t)
	ctx := context.Background()

	seedLocation(t, st, "user-1", 41.8795, -87.6298)
	strike := seedStrike(t, st, 41.8781, -87.6298)

	recs, err := l.RecordMatches(ctx, *strike, 20)
	require.NoError(t, err)
	require.Len(t, recs, 1)

	sentAt := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, l.MarkSent(ctx, recs[0].ID, sentAt))

	// Second mark is a no-op and keeps the original timestamp.
	require.NoError(t, l.MarkSent(ctx, recs[0].ID, sentAt.Add(time.Hour)))

	forUser, err := l.ListForUser(ctx, "user-1")
	require.NoError(t, err)
	require.Len(t, forUser, 1)
	require.Equal(t, model.DeliverySent, forUser[0].Status)
	require.NotNil(t, forUser[0].SentAt)
	require.WithinDuration(t, sentAt, *forUser[0].SentAt, time.Second)

	pending, err := l.ListPending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestMarkSentUnknownID(t *testing.T) {
	t.Parallel()

	l, _ := newTestLedger(t)

	err := l.MarkSent(context.Background(), "no-such-notification", time.Now().UTC())
	require.ErrorIs(t, err, model.ErrNotFound)
}
