package delivery

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stormsignal/strike-alert/internal/ledger"
	"github.com/stormsignal/strike-alert/internal/model"
	"github.com/stormsignal/strike-alert/internal/resilience"
	"github.com/stormsignal/strike-alert/internal/store"
)

// stubMailer records sends and fails for the user ids it is told to.
type stubMailer struct {
	mu      sync.Mutex
	sent    []string
	failFor map[string]bool
}

func (m *stubMailer) Send(ctx context.Context, userID, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[userID] {
		return resilience.NewTransientError(eris.New("mail provider unavailable"), 503)
	}
	m.sent = append(m.sent, userID)
	return nil
}

func (m *stubMailer) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

type deliveryFixture struct {
	store  store.Store
	ledger *ledger.Ledger
	mailer *stubMailer
	worker *Worker
}

func newFixture(t *testing.T, failFor ...string) *deliveryFixture {
	t.Helper()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "delivery_test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	fail := make(map[string]bool, len(failFor))
	for _, u := range failFor {
		fail[u] = true
	}

	l := ledger.New(st)
	m := &stubMailer{failFor: fail}
	return &deliveryFixture{
		store:  st,
		ledger: l,
		mailer: m,
		worker: NewWorker(st, l, m, WorkerConfig{Concurrency: 2, AttemptTimeout: time.Second}),
	}
}

func (f *deliveryFixture) seedUser(t *testing.T, userID string) {
	t.Helper()

	_, err := f.store.SetActiveLocation(context.Background(), model.Location{
		UserID:    userID,
		ZipCode:   "60601",
		Latitude:  41.8795,
		Longitude: -87.6298,
		City:      "Chicago",
		State:     "IL",
	})
	require.NoError(t, err)
}

func (f *deliveryFixture) seedStrikeWithMatches(t *testing.T) *model.Strike {
	t.Helper()

	s, err := f.store.CreateStrike(context.Background(), model.Strike{
		Latitude:  41.8781,
		Longitude: -87.6298,
		Timestamp: time.Now().UTC(),
		Intensity: 62.1,
	})
	require.NoError(t, err)

	_, err = f.ledger.RecordMatches(context.Background(), *s, 20)
	require.NoError(t, err)
	return s
}

func TestRunPassDeliversAllPending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.seedUser(t, "user-1")
	f.seedUser(t, "user-2")
	f.seedUser(t, "user-3")
	f.seedStrikeWithMatches(t)

	res, err := f.worker.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Attempted: 3, Sent: 3, Failed: 0}, res)
	assert.Len(t, f.mailer.sentTo(), 3)

	pending, err := f.ledger.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunPassIsolatesFailures(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "user-2")
	ctx := context.Background()

	f.seedUser(t, "user-1")
	f.seedUser(t, "user-2")
	f.seedUser(t, "user-3")
	f.seedStrikeWithMatches(t)

	res, err := f.worker.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Attempted: 3, Sent: 2, Failed: 1}, res)

	// The failed notification stays pending for the next pass.
	pending, err := f.ledger.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "user-2", pending[0].UserID)
}

func TestRunPassMissingLocationStaysPending(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.seedUser(t, "user-1")
	strike := f.seedStrikeWithMatches(t)

	// A notification for a user with no location row at all. Delivery
	// cannot render the alert, so it counts as failed and stays pending.
	_, created, err := f.store.CreateNotification(ctx, model.Notification{
		UserID:        "user-ghost",
		StrikeID:      strike.ID,
		DistanceMiles: 0.5,
	})
	require.NoError(t, err)
	require.True(t, created)

	res, err := f.worker.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Attempted: 2, Sent: 1, Failed: 1}, res)
	assert.Equal(t, []string{"user-1"}, f.mailer.sentTo())

	pending, err := f.ledger.ListPending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "user-ghost", pending[0].UserID)
	assert.Equal(t, model.DeliveryPending, pending[0].Status)
}

func TestRunPassRetrySucceedsNextPass(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "user-1")
	ctx := context.Background()

	f.seedUser(t, "user-1")
	f.seedStrikeWithMatches(t)

	res, err := f.worker.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Attempted: 1, Sent: 0, Failed: 1}, res)

	// Provider recovers.
	f.mailer.mu.Lock()
	f.mailer.failFor = nil
	f.mailer.mu.Unlock()

	res, err = f.worker.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{Attempted: 1, Sent: 1, Failed: 0}, res)

	pending, err := f.ledger.ListPending(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestRunPassEmptyQueue(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	res, err := f.worker.RunPass(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PassResult{}, res)
	assert.Empty(t, f.mailer.sentTo())
}

func TestRunPassAlreadySentSkipped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()

	f.seedUser(t, "user-1")
	f.seedStrikeWithMatches(t)

	_, err := f.worker.RunPass(ctx)
	require.NoError(t, err)

	// A second pass finds nothing to do.
	res, err := f.worker.RunPass(ctx)
	require.NoError(t, err)
	assert.Equal(t, PassResult{}, res)
	assert.Len(t, f.mailer.sentTo(), 1)
}

func TestRenderAlertBody(t *testing.T) {
	t.Parallel()

	ts := time.Date(2024, 6, 15, 14, 30, 0, 0, time.UTC)
	body := RenderAlertBody(
		model.Notification{DistanceMiles: 3.27},
		model.Strike{Latitude: 41.8781, Longitude: -87.6298, Timestamp: ts, Intensity: 62.5},
		model.Location{City: "Chicago", State: "IL", ZipCode: "60601"},
	)

	assert.Contains(t, body, "Lightning Strike Alert!")
	assert.Contains(t, body, "3.3 miles from your location in Chicago, IL (60601)")
	assert.Contains(t, body, "41.8781, -87.6298")
	assert.Contains(t, body, "Intensity: 62.5")
	assert.Contains(t, body, "Stay safe!")
}
