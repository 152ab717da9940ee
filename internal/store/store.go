// Package store persists locations, strikes, and notifications.
//
// The Postgres implementation is the production backend; the SQLite
// implementation backs local development and single-binary deployments.
// Both enforce the two storage invariants: at most one active location
// per user (deactivate-then-insert transaction backed by a partial
// unique index) and at most one notification per (user, strike) pair
// (unique constraint, duplicate inserts treated as already recorded).
package store

import (
	"context"
	"time"

	"github.com/stormsignal/strike-alert/internal/model"
)

// Store defines persistence for the strike alert pipeline.
type Store interface {
	// Locations
	SetActiveLocation(ctx context.Context, loc model.Location) (*model.Location, error)
	GetActiveLocation(ctx context.Context, userID string) (*model.Location, error)
	// GetLatestLocation returns the most recently updated location for a
	// user, active or not, for delivery address context.
	GetLatestLocation(ctx context.Context, userID string) (*model.Location, error)
	UpdateLocation(ctx context.Context, locationID string, patch model.LocationPatch) (*model.Location, error)
	ListActiveLocations(ctx context.Context) ([]model.Location, error)

	// Strikes
	CreateStrike(ctx context.Context, s model.Strike) (*model.Strike, error)
	GetStrike(ctx context.Context, strikeID string) (*model.Strike, error)
	ListStrikesSince(ctx context.Context, since time.Time) ([]model.Strike, error)

	// Notifications
	// CreateNotification inserts a pending notification. The bool result
	// is false when a row for the same (user, strike) pair already
	// existed; that is not an error.
	CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, bool, error)
	GetNotificationByPair(ctx context.Context, userID, strikeID string) (*model.Notification, error)
	// MarkNotificationSent transitions pending → sent. Unknown id is
	// model.ErrNotFound; an already-sent notification is a no-op so
	// at-least-once delivery confirmations are tolerated.
	MarkNotificationSent(ctx context.Context, notificationID string, sentAt time.Time) error
	ListPendingNotifications(ctx context.Context) ([]model.Notification, error)
	ListNotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
