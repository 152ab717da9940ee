package zipcode

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// checkCache looks up a cached ZIP result. Any error (including no
// row) means a miss; the caller falls through to the provider.
func (c *client) checkCache(ctx context.Context, base string) (*Result, error) {
	var r Result
	row := c.pool.QueryRow(ctx,
		"SELECT zip_code, city, state, latitude, longitude FROM zip_cache WHERE zip_code = $1", base)
	if err := row.Scan(&r.ZipCode, &r.City, &r.State, &r.Latitude, &r.Longitude); err != nil {
		return nil, err
	}

	zap.L().Debug("zip cache hit", zap.String("zip", base))
	return &r, nil
}

// storeCache upserts a provider result into the cache.
func (c *client) storeCache(ctx context.Context, r *Result) error {
	_, err := c.pool.Exec(ctx, `
		INSERT INTO zip_cache (zip_code, city, state, latitude, longitude, cached_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (zip_code) DO UPDATE SET
			city = EXCLUDED.city,
			state = EXCLUDED.state,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			cached_at = now()`,
		r.ZipCode, r.City, r.State, r.Latitude, r.Longitude,
	)
	if err != nil {
		return eris.Wrap(err, "zipcode: store cache")
	}
	return nil
}

func zapWarnCacheStore(base string, err error) {
	zap.L().Warn("zip cache store failed", zap.String("zip", base), zap.Error(err))
}
