// Package ledger keeps the per-user record of strike notifications and
// drives them through the pending to sent lifecycle.
//
// A notification is created in the pending state when a strike matches
// a user's active location, and moves to sent exactly once when a
// delivery succeeds. There is no terminal failure state: a delivery
// attempt that errors leaves the row pending so a later pass can retry
// it. The (user, strike) pair is unique, so recording the matches for
// a strike twice yields the same set of rows.
package ledger

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stormsignal/strike-alert/internal/match"
	"github.com/stormsignal/strike-alert/internal/model"
	"github.com/stormsignal/strike-alert/internal/store"
)

// Ledger records strike/user matches as notifications and exposes the
// delivery state machine.
type Ledger struct {
	store   store.Store
	matcher *match.Matcher
}

// New creates a Ledger over the given store.
func New(st store.Store) *Ledger {
	return &Ledger{store: st, matcher: match.New(st)}
}

// RecordMatches finds every user within radiusMiles of the strike and
// records one pending notification per match. Calling it again for the
// same strike returns the same notifications without creating
// duplicates. The result is ordered like the match set, nearest user
// first.
func (l *Ledger) RecordMatches(ctx context.Context, strike model.Strike, radiusMiles float64) ([]model.Notification, error) {
	// Strikes are validated at ingestion; re-check here so a caller
	// handing us a raw strike cannot fan out garbage coordinates.
	if err := strike.Validate(); err != nil {
		return nil, err
	}

	matches, err := l.matcher.FindNear(ctx, strike.Latitude, strike.Longitude, radiusMiles)
	if err != nil {
		return nil, eris.Wrap(err, "ledger: find matches")
	}

	out := make([]model.Notification, 0, len(matches))
	for _, m := range matches {
		n, created, err := l.store.CreateNotification(ctx, model.Notification{
			UserID:        m.UserID,
			StrikeID:      strike.ID,
			DistanceMiles: roundMiles(m.DistanceMiles),
			Status:        model.DeliveryPending,
		})
		if err != nil {
			return nil, eris.Wrapf(err, "ledger: record match for user %s", m.UserID)
		}
		if !created {
			// Already recorded by an earlier pass; return the existing row.
			n, err = l.store.GetNotificationByPair(ctx, m.UserID, strike.ID)
			if err != nil {
				return nil, eris.Wrapf(err, "ledger: load existing notification for user %s", m.UserID)
			}
		}
		out = append(out, *n)
	}

	zap.L().Info("recorded strike matches",
		zap.String("strike_id", strike.ID),
		zap.Int("matched", len(matches)),
		zap.Float64("radius_miles", radiusMiles),
	)

	return out, nil
}

// MarkSent transitions a notification from pending to sent. Marking an
// already sent notification is a no-op that preserves the original
// sent timestamp; an unknown id returns model.ErrNotFound.
func (l *Ledger) MarkSent(ctx context.Context, notificationID string, sentAt time.Time) error {
	return l.store.MarkNotificationSent(ctx, notificationID, sentAt)
}

// ListPending returns every notification still awaiting delivery,
// oldest first.
func (l *Ledger) ListPending(ctx context.Context) ([]model.Notification, error) {
	return l.store.ListPendingNotifications(ctx)
}

// ListForUser returns a user's notifications newest first, any status.
func (l *Ledger) ListForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	return l.store.ListNotificationsForUser(ctx, userID)
}

// roundMiles keeps the stored distance readable without losing the
// precision the alert message needs.
func roundMiles(d float64) float64 {
	return math.Round(d*100) / 100
}
