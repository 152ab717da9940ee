package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/stormsignal/strike-alert/internal/db"
	"github.com/stormsignal/strike-alert/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const (
	sqlInsertLocation = `INSERT INTO user_locations (id, user_id, zip_code, latitude, longitude, city, state, is_active, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, $8, $8)`

	sqlDeactivateLocations = `UPDATE user_locations SET is_active = FALSE, updated_at = $2 WHERE user_id = $1 AND is_active`

	sqlGetActiveLocation = `SELECT id, user_id, zip_code, latitude, longitude, city, state, is_active, created_at, updated_at FROM user_locations WHERE user_id = $1 AND is_active`

	sqlGetLatestLocation = `SELECT id, user_id, zip_code, latitude, longitude, city, state, is_active, created_at, updated_at FROM user_locations WHERE user_id = $1 ORDER BY updated_at DESC LIMIT 1`

	sqlListActiveLocations = `SELECT id, user_id, zip_code, latitude, longitude, city, state, is_active, created_at, updated_at FROM user_locations WHERE is_active ORDER BY user_id`

	sqlInsertStrike = `INSERT INTO lightning_strikes (id, latitude, longitude, occurred_at, intensity, created_at) VALUES ($1, $2, $3, $4, $5, $6)`

	sqlGetStrike = `SELECT id, latitude, longitude, occurred_at, intensity, created_at FROM lightning_strikes WHERE id = $1`

	sqlListStrikesSince = `SELECT id, latitude, longitude, occurred_at, intensity, created_at FROM lightning_strikes WHERE occurred_at >= $1 ORDER BY occurred_at DESC`

	sqlInsertNotification = `INSERT INTO notifications (id, user_id, strike_id, distance_miles, status, created_at) VALUES ($1, $2, $3, $4, 'pending', $5) ON CONFLICT (user_id, strike_id) DO NOTHING`

	sqlGetNotificationByPair = `SELECT id, user_id, strike_id, distance_miles, status, sent_at, created_at FROM notifications WHERE user_id = $1 AND strike_id = $2`

	sqlMarkNotificationSent = `UPDATE notifications SET status = 'sent', sent_at = $2 WHERE id = $1 AND status = 'pending'`

	sqlGetNotificationStatus = `SELECT status FROM notifications WHERE id = $1`

	sqlListPendingNotifications = `SELECT id, user_id, strike_id, distance_miles, status, sent_at, created_at FROM notifications WHERE status = 'pending' ORDER BY created_at`

	sqlListNotificationsForUser = `SELECT id, user_id, strike_id, distance_miles, status, sent_at, created_at FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`
)

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations.
var preparedStatements = map[string]string{
	"get_active_location": sqlGetActiveLocation,
	"list_active":         sqlListActiveLocations,
	"insert_notification": sqlInsertNotification,
	"mark_sent":           sqlMarkNotificationSent,
	"list_pending":        sqlListPendingNotifications,
	"get_strike":          sqlGetStrike,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS user_locations (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	zip_code   TEXT NOT NULL,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	city       TEXT NOT NULL DEFAULT '',
	state      TEXT NOT NULL DEFAULT '',
	is_active  BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

-- At most one active location per user, enforced under concurrent
-- writers regardless of the deactivate-then-insert transaction.
CREATE UNIQUE INDEX IF NOT EXISTS uq_user_locations_active ON user_locations(user_id) WHERE is_active;
CREATE INDEX IF NOT EXISTS idx_user_locations_user_updated ON user_locations(user_id, updated_at DESC);

CREATE TABLE IF NOT EXISTS lightning_strikes (
	id          TEXT PRIMARY KEY,
	latitude    DOUBLE PRECISION NOT NULL,
	longitude   DOUBLE PRECISION NOT NULL,
	occurred_at TIMESTAMPTZ NOT NULL,
	intensity   DOUBLE PRECISION NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_lightning_strikes_occurred ON lightning_strikes(occurred_at DESC);

CREATE TABLE IF NOT EXISTS notifications (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	strike_id      TEXT NOT NULL REFERENCES lightning_strikes(id),
	distance_miles DOUBLE PRECISION NOT NULL,
	status         TEXT NOT NULL DEFAULT 'pending',
	sent_at        TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (user_id, strike_id)
);

CREATE INDEX IF NOT EXISTS idx_notifications_status ON notifications(status);
CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS zip_cache (
	zip_code  TEXT PRIMARY KEY,
	city      TEXT NOT NULL,
	state     TEXT NOT NULL,
	latitude  DOUBLE PRECISION NOT NULL,
	longitude DOUBLE PRECISION NOT NULL,
	cached_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Pool returns the underlying database pool for subsystems that need
// direct query access (e.g., the ZIP lookup cache).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// SetActiveLocation deactivates any existing active locations for the
// user and inserts the new active one, as a single transaction. No reader
// can observe two active locations, or zero, mid-flight.
//
// Under READ COMMITTED two concurrent calls for the same user can both
// pass the deactivate step before either commits, and the loser then
// trips uq_user_locations_active on insert. That violation gets one
// retry, which sees the winner's committed row and deactivates it.
func (s *PostgresStore) SetActiveLocation(ctx context.Context, loc model.Location) (*model.Location, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	loc.ID = uuid.New().String()
	loc.IsActive = true
	loc.CreatedAt = now
	loc.UpdatedAt = now

	err := s.setActiveLocationTx(ctx, loc, now)
	if isUniqueViolation(err) {
		err = s.setActiveLocationTx(ctx, loc, now)
	}
	if err != nil {
		return nil, err
	}
	return &loc, nil
}

func (s *PostgresStore) setActiveLocationTx(ctx context.Context, loc model.Location, now time.Time) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin set active location")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, sqlDeactivateLocations, loc.UserID, now); err != nil {
		return eris.Wrap(err, "postgres: deactivate locations")
	}
	if _, err := tx.Exec(ctx, sqlInsertLocation,
		loc.ID, loc.UserID, loc.ZipCode, loc.Latitude, loc.Longitude, loc.City, loc.State, now,
	); err != nil {
		return eris.Wrap(err, "postgres: insert location")
	}
	if err := tx.Commit(ctx); err != nil {
		return eris.Wrap(err, "postgres: commit set active location")
	}
	return nil
}

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func (s *PostgresStore) GetActiveLocation(ctx context.Context, userID string) (*model.Location, error) {
	row := s.pool.QueryRow(ctx, sqlGetActiveLocation, userID)
	loc, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get active location")
	}
	return loc, nil
}

func (s *PostgresStore) GetLatestLocation(ctx context.Context, userID string) (*model.Location, error) {
	row := s.pool.QueryRow(ctx, sqlGetLatestLocation, userID)
	loc, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get latest location")
	}
	return loc, nil
}

func (s *PostgresStore) UpdateLocation(ctx context.Context, locationID string, patch model.LocationPatch) (*model.Location, error) {
	if err := patch.Validate(); err != nil {
		return nil, err
	}

	sql, args := buildLocationUpdate(locationID, patch, time.Now().UTC())
	row := s.pool.QueryRow(ctx, sql, args...)
	loc, err := scanLocation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "location %s", locationID)
	}
	if isUniqueViolation(err) {
		// Flipping is_active on this row while the user already has a
		// different active one would break the single-active invariant.
		return nil, eris.Wrap(model.ErrValidation, "another location is already active for this user")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: update location")
	}
	return loc, nil
}

func (s *PostgresStore) ListActiveLocations(ctx context.Context) ([]model.Location, error) {
	rows, err := s.pool.Query(ctx, sqlListActiveLocations)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list active locations")
	}
	defer rows.Close()

	var locs []model.Location
	for rows.Next() {
		loc, err := scanLocation(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan location")
		}
		locs = append(locs, *loc)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate locations")
	}
	return locs, nil
}

func (s *PostgresStore) CreateStrike(ctx context.Context, strike model.Strike) (*model.Strike, error) {
	if err := strike.Validate(); err != nil {
		return nil, err
	}

	strike.ID = uuid.New().String()
	strike.CreatedAt = time.Now().UTC()

	_, err := s.pool.Exec(ctx, sqlInsertStrike,
		strike.ID, strike.Latitude, strike.Longitude, strike.Timestamp.UTC(), strike.Intensity, strike.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert strike")
	}
	return &strike, nil
}

func (s *PostgresStore) GetStrike(ctx context.Context, strikeID string) (*model.Strike, error) {
	row := s.pool.QueryRow(ctx, sqlGetStrike, strikeID)
	strike, err := scanStrike(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "strike %s", strikeID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get strike")
	}
	return strike, nil
}

func (s *PostgresStore) ListStrikesSince(ctx context.Context, since time.Time) ([]model.Strike, error) {
	rows, err := s.pool.Query(ctx, sqlListStrikesSince, since.UTC())
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list strikes since")
	}
	defer rows.Close()

	var strikes []model.Strike
	for rows.Next() {
		strike, err := scanStrike(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan strike")
		}
		strikes = append(strikes, *strike)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate strikes")
	}
	return strikes, nil
}

func (s *PostgresStore) CreateNotification(ctx context.Context, n model.Notification) (*model.Notification, bool, error) {
	n.ID = uuid.New().String()
	n.Status = model.DeliveryPending
	n.SentAt = nil
	n.CreatedAt = time.Now().UTC()

	tag, err := s.pool.Exec(ctx, sqlInsertNotification,
		n.ID, n.UserID, n.StrikeID, n.DistanceMiles, n.CreatedAt,
	)
	if err != nil {
		return nil, false, eris.Wrap(err, "postgres: insert notification")
	}
	if tag.RowsAffected() == 0 {
		// Unique (user_id, strike_id) conflict: already recorded.
		return nil, false, nil
	}
	return &n, true, nil
}

func (s *PostgresStore) GetNotificationByPair(ctx context.Context, userID, strikeID string) (*model.Notification, error) {
	row := s.pool.QueryRow(ctx, sqlGetNotificationByPair, userID, strikeID)
	n, err := scanNotification(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(model.ErrNotFound, "notification for user %s strike %s", userID, strikeID)
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get notification by pair")
	}
	return n, nil
}

func (s *PostgresStore) MarkNotificationSent(ctx context.Context, notificationID string, sentAt time.Time) error {
	tag, err := s.pool.Exec(ctx, sqlMarkNotificationSent, notificationID, sentAt.UTC())
	if err != nil {
		return eris.Wrap(err, "postgres: mark notification sent")
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	// No pending row was updated: either the id is unknown, or a racing
	// pass already marked it sent (a tolerated no-op).
	var status string
	err = s.pool.QueryRow(ctx, sqlGetNotificationStatus, notificationID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return eris.Wrapf(model.ErrNotFound, "notification %s", notificationID)
	}
	if err != nil {
		return eris.Wrap(err, "postgres: check notification status")
	}
	return nil
}

func (s *PostgresStore) ListPendingNotifications(ctx context.Context) ([]model.Notification, error) {
	return s.listNotifications(ctx, sqlListPendingNotifications)
}

func (s *PostgresStore) ListNotificationsForUser(ctx context.Context, userID string) ([]model.Notification, error) {
	return s.listNotifications(ctx, sqlListNotificationsForUser, userID)
}

func (s *PostgresStore) listNotifications(ctx context.Context, sql string, args ...any) ([]model.Notification, error) {
	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list notifications")
	}
	defer rows.Close()

	var ns []model.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan notification")
		}
		ns = append(ns, *n)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: iterate notifications")
	}
	return ns, nil
}

// buildLocationUpdate assembles an UPDATE for only the supplied patch
// fields, always refreshing updated_at, returning the full row.
func buildLocationUpdate(locationID string, patch model.LocationPatch, now time.Time) (string, []any) {
	sets := "updated_at = $2"
	args := []any{locationID, now}

	add := func(col string, val any) {
		args = append(args, val)
		sets += fmt.Sprintf(", %s = $%d", col, len(args))
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

	sql := "UPDATE user_locations SET " + sets + " WHERE id = $1 RETURNING id, user_id, zip_code, latitude, longitude, city, state, is_active, created_at, updated_at"
	return sql, args
}

func scanLocation(row pgx.Row) (*model.Location, error) {
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

func scanStrike(row pgx.Row) (*model.Strike, error) {
	var s model.Strike
	err := row.Scan(&s.ID, &s.Latitude, &s.Longitude, &s.Timestamp, &s.Intensity, &s.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func scanNotification(row pgx.Row) (*model.Notification, error) {
	var n model.Notification
	var status string
	err := row.Scan(&n.ID, &n.UserID, &n.StrikeID, &n.DistanceMiles, &status, &n.SentAt, &n.CreatedAt)
	if err != nil {
		return nil, err
	}
	n.Status = model.DeliveryStatus(status)
	return &n, nil
}
