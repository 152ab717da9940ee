package match

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stormsignal/strike-alert/internal/model"
	"github.com/stormsignal/strike-alert/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "match_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func setLocation(t *testing.T, st store.Store, userID string, lat, lon float64) {
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

func TestFindNearOrdersByDistanceThenUserID(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	m := New(st)
	ctx := context.Background()

	// Strike point is downtown Chicago. Two users share a coordinate so
	// the tie must break on user id.
	setLocation(t, st, "user-far", 41.95, -87.65)   // ~5 miles out
	setLocation(t, st, "user-b", 41.8795, -87.6298) // ~0.2 miles
	setLocation(t, st, "user-a", 41.8795, -87.6298)
	setLocation(t, st, "user-denver", 39.7392, -104.9903) // way outside

	matches, err := m.FindNear(ctx, 41.8781, -87.6298, 20)
	require.NoError(t, err)
	require.Len(t, matches, 3)

	require.Equal(t, "user-a", matches[0].UserID)
	require.Equal(t, "user-b", matches[1].UserID)
	require.Equal(t, "user-far", matches[2].UserID)
	require.InDelta(t, matches[0].DistanceMiles, matches[1].DistanceMiles, 1e-9)
	require.Greater(t, matches[2].DistanceMiles, matches[1].DistanceMiles)
}

func TestFindNearRadiusIsInclusive(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	m := New(st)
	ctx := context.Background()

	setLocation(t, st, "user-1", 41.8781, -87.6298)

	// A match at distance zero must survive a zero radius.
	matches, err := m.FindNear(ctx, 41.8781, -87.6298, 0)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.InDelta(t, 0, matches[0].DistanceMiles, 1e-6)
}

func TestFindNearEmptyWhenNobodyClose(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	m := New(st)

	setLocation(t, st, "user-1", 39.7392, -104.9903)

	matches, err := m.FindNear(context.Background(), 41.8781, -87.6298, 20)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestFindNearIgnoresDeactivatedLocations(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	m := New(st)
	ctx := context.Background()

	// Second call deactivates the Chicago row; only Denver is active.
	setLocation(t, st, "user-1", 41.8781, -87.6298)
	setLocation(t, st, "user-1", 39.7392, -104.9903)

	matches, err := m.FindNear(ctx, 41.8781, -87.6298, 20)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestNearbyStrikes(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	m := New(st)
	ctx := context.Background()

	setLocation(t, st, "user-1", 41.8781, -87.6298)

	now := time.Now().UTC()
	mkStrike := func(lat, lon float64, ts time.Time) *model.Strike {
		s, err := st.CreateStrike(ctx, model.Strike{
			Latitude:  lat,
			Longitude: lon,
			Timestamp: ts,
			Intensity: 42.5,
		})
		require.NoError(t, err)
		return s
	}

	near := mkStrike(41.88, -87.63, now.Add(-1*time.Hour))
	nearOlder := mkStrike(41.89, -87.62, now.Add(-3*time.Hour))
	mkStrike(39.7392, -104.9903, now.Add(-1*time.Hour)) // Denver, out of range
	mkStrike(41.88, -87.63, now.Add(-48*time.Hour))     // outside lookback

	got, err := m.NearbyStrikes(ctx, "user-1", 20, 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	require.Equal(t, near.ID, got[0].ID)
	require.Equal(t, nearOlder.ID, got[1].ID)
	require.Greater(t, got[0].DistanceMiles, 0.0)
}

func TestNearbyStrikesNoActiveLocation(t *testing.T) {
	t.Parallel()

	st := newTestStore(t)
	m := New(st)

	got, err := m.NearbyStrikes(context.Background(), "nobody", 20, 24*time.Hour)
	require.NoError(t, err)
	require.Empty(t, got)
}
