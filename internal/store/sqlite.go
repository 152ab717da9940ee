package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/stormsignal/strike-alert/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Intended for
// local development and single-binary deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// SQLite is a single-writer engine.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS user_locations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	zip_code   TEXT NOT NULL,
	latitude   REAL NOT NULL,
	longitude  REAL NOT NULL,
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	is_active  INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMP NOT NULL,
	updated_at TIMESTAMP NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_user_locations_active ON user_locations(user_id) WHERE is_active = 1;
CREATE INDEX IF NOT EXISTS idx_user_locations_user_updated ON user_locations(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS lightning_strikes (
	id          TEXT PRIMARY KEY,
	latitude    REAL NOT NULL,
	longitude   REAL NOT NULL,
	occurred_at TIMESTAMP NOT NULL,
	intensity   REAL NOT NULL,
	created_at  TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lightning_strikes_occurred ON lightning_strikes(occurred_at DESC);

CREATE TABLE IF NOT EXISTS notifications (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	strike_id      TEXT NOT NULL REFERENCES lightning_strikes(id),
	distance_miles REAL NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	sent_at        TIMESTAMP,
	created_at     TIMESTAMP NOT NULL,
	UNIQUE (user_id, strike_id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SetActiveLocation(ctx context.Context, loc model.Location) (*model.Location, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	loc.ID = uuid.New().String()
	loc.IsActive = true
	loc.CreatedAt = now
	loc.UpdatedAt = now

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin set active location")
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`UPDATE user_locations SET is_active = 0, updated_at = ? WHERE user_id = ? AND is_active = 1`,
		now, loc.UserID,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: deactivate locations")
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO user_locations (id, user_id, zip_code, latitude, longitude, city, state, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		loc.ID, loc.UserID, loc.ZipCode, loc.Latitude, loc.Longitude, loc.City, loc.State, now, now,
	); err != nil {
		return nil, eris.Wrap(err, "sqlite: insert location")
	}
	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit set active location")
	}

	return &loc, nil
}

const sqliteLocationCols = `id, user_id, zip_code, latitude, longitude, city, state, is_active, created_at, updated_at`

func (s *SQLiteStore) GetActiveLocation(ctx context.Context, userID string) (*model.Location, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLocationCols+` FROM user_locations WHERE user_id = ? AND is_active = 1`, userID)
	loc, err := scanSQLiteLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get active location")
	}
	return loc, nil
}

func (s *SQLiteStore) GetLatestLocation(ctx context.Context, userID string) (*model.Location, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLocationCols+` FROM user_locations WHERE user_id = ? ORDER BY updated_at DESC LIMIT 1`, userID)
	loc, err := scanSQLiteLocation(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get latest location")
	}
	return loc, nil
}

func (s *SQLiteStore) UpdateLocation(ctx context.Context, locationID string, patch model.LocationPatch) (*model.Location, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	sets := "updated_at = ?"
	args := []any{time.Now().UTC()}
	add := func(col string, val any) {
		sets += fmt.Sprintf(", %s = ?", col)
		args = append(args, val)
	}
	if patch.ZipCode != nil {
		add("zip_code", *patch.ZipCode)
	}
	if patch.Latitude != nil {
		add("latitude", *patch.Latitude)
	}
	if patch.Longitude != nil {
		add("longitude", *patch.Longitude)
	}
	if patch.City != nil {
		add("city", *patch.City)
	}
	if patch.State != nil {
		add("state", *patch.State)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}
	args = append(args, locationID)

	res, err := s.db.ExecContext(ctx, "UPDATE user_locations SET "+sets+" WHERE id = ?", args...)
	if err != nil {
		// Flipping is_active on this row while the user already has a
		// different active one trips uq_user_locations_active.
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return nil, eris.Wrap(model.ErrValidation, "another location is already active for this user")
		}
		return nil, eris.Wrap(err, "sqlite: update location")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: update location rows affected")
	}
	if affected == 0 {
		return nil, eris.Wrapf(model.ErrNotFound, "location %s", locationID)
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteLocationCols+` FROM user_locations WHERE id = ?`, locationID)
	loc, err := scanSQLiteLocation(row)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: reload location")
	}
	return loc, nil
}

func (s *SQLiteStore) ListActiveLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteLocationCols+` FROM user_locations WHERE is_active = 1 ORDER BY user_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list active locations")
	}
	defer rows.Close()

	var locs []model.Location
	for rows.Next() {
		loc, err := scanSQLiteLocation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan location")
		}
		locs = append(locs, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate locations")
	}
	return locs, nil
}

func (s *SQLiteStore) CreateStrike(ctx context.Context, strike model.Strike) (*model.Strike, error) {
	if err := strike.Validate(); err != nil {
		return nil, err
	}

	strike.ID = uuid.New().String()
	strike.CreatedAt = time.Now().UTC()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO lightning_strikes (id, latitude, longitude, occurred_at, intensity, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		strike.ID, strike.Latitude, strike.Longitude, strike.Timestamp.UTC(), strike.Intensity, strike.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert strike")
	}
	return &strike, nil
}

const sqliteStrikeCols = `id, latitude, longitude, occurred_at, intensity, created_at`

func (s *SQLiteStore) GetStrike(ctx context.Context, strikeID string) (*model.Strike, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteStrikeCols+` FROM lightning_strikes WHERE id = ?`, strikeID)

	var strike model.Strike
	err := row.Scan(&strike.ID, &strike.Latitude, &strike.Longitude, &strike.Timestamp, &strike.Intensity, &strike.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "strike %s", strikeID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get strike")
	}
	return &strike, nil
}

func (s *SQLiteStore) ListStrikesSince(ctx context.Context, since time.Time) ([]model.Strike, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sqliteStrikeCols+` FROM lightning_strikes WHERE occurred_at >= ? ORDER BY occurred_at DESC`, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list strikes since")
	}
	defer rows.Close()

	var strikes []model.Strike
	for rows.Next() {
		var strike model.Strike
		if err := rows.Scan(&strike.ID, &strike.Latitude, &strike.Longitude, &strike.Timestamp, &strike.Intensity, &strike.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan strike")
		}
		strikes = append(strikes, strike)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate strikes")
	}
	return strikes, nil
}

func (s *SQLiteStore) CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, bool, error) {
	n.ID = uuid.New().String()
	n.Status = model.DeliveryPending
	n.SentAt = nil
	n.CreatedAt = time.Now().UTC()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO notifications (id, user_id, strike_id, distance_miles, status, created_at)
		 VALUES (?, ?, ?, ?, 'pending', ?) ON CONFLICT (user_id, strike_id) DO NOTHING`,
		n.ID, n.UserID, n.StrikeID, n.DistanceMiles, n.CreatedAt,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: insert notification")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, false, eris.Wrap(err, "sqlite: insert notification rows affected")
	}
	if affected == 0 {
		return nil, false, nil
	}
	return &n, true, nil
}

const sqliteNotificationCols = `id, user_id, strike_id, distance_miles, status, sent_at, created_at`

func (s *SQLiteStore) GetNotificationByPair(ctx context.Context, userID, strikeID string) (*model.Notification, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sqliteNotificationCols+` FROM notifications WHERE user_id = ? AND strike_id = ?`, userID, strikeID)
	n, err := scanSQLiteNotification(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "notification for user %s strike %s", userID, strikeID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get notification by pair")
	}
	return n, nil
}

func (s *SQLiteStore) MarkNotificationSent(ctx context.Context, notificationID string, sentAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE notifications SET status = 'sent', sent_at = ? WHERE id = ? AND status = 'pending'`,
		sentAt.UTC(), notificationID,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: mark notification sent")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: mark sent rows affected")
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM notifications WHERE id = ?`, notificationID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(model.ErrNotFound, "notification %s", notificationID)
	}
	if err != nil {
		return eris.Wrap(err, "sqlite: check notification status")
	}
	return nil
}

func (s *SQLiteStore) ListPendingNotifications(ctx context.Context) ([]model.Notification, error) {
	return s.listNotifications(ctx,
		`SELECT `+sqliteNotificationCols+` FROM notifications WHERE status = 'pending' ORDER BY created_at`)
}

func (s *SQLiteStore) ListNotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	return s.listNotifications(ctx,
		`SELECT `+sqliteNotificationCols+` FROM notifications WHERE user_id = ? ORDER BY created_at DESC`, userID)
}

func (s *SQLiteStore) listNotifications(ctx context.Context, query string, args ...any) ([]model.Notification, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list notifications")
	}
	defer rows.Close()

	var ns []model.Notification
	for rows.Next() {
		n, err := scanSQLiteNotification(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan notification")
		}
		ns = append(ns, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: iterate notifications")
	}
	return ns, nil
}

// sqlRow covers both *sql.Row and *sql.Rows.
type sqlRow interface {
	Scan(dest ...any) error
}

func scanSQLiteLocation(row sqlRow) (*model.Location, error) {
	var loc model.Location
	err := row.Scan(
		&loc.ID, &loc.UserID, &loc.ZipCode, &loc.Latitude, &loc.Longitude,
		&loc.City, &loc.State, &loc.IsActive, &loc.CreatedAt, &loc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func scanSQLiteNotification(row sqlRow) (*model.Notification, error) {
	var n model.Notification
	var status string
	var sentAt sql.NullTime
	err := row.Scan(&n.ID, &n.UserID, &n.StrikeID, &n.DistanceMiles, &status, &sentAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Status = model.DeliveryStatus(status)
	if sentAt.Valid {
		t := sentAt.Time
		n.SentAt = &t
	}
	return &n, nil
}
