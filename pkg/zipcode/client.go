// Package zipcode resolves US ZIP codes to a city, state, and centroid
// coordinate. The default client chains a small built-in table, an
// optional Postgres-backed cache, and an optional HTTP provider.
package zipcode

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/stormsignal/strike-alert/internal/db"
	"github.com/stormsignal/strike-alert/internal/model"
)

// Result holds the lookup output for a ZIP code.
type Result struct {
	ZipCode   string  `json:"zip_code"`
	City      string  `json:"city"`
	State     string  `json:"state"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Client resolves ZIP codes.
type Client interface {
	// Lookup resolves a ZIP code. An unknown but well-formed ZIP
	// returns model.ErrNotFound; a malformed one returns
	// model.ErrValidation.
	Lookup(ctx context.Context, zip string) (*Result, error)
}

// Option configures the client.
type Option func(*client)

// WithHTTPClient sets a custom HTTP client for remote lookups.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithBaseURL enables the remote provider at the given endpoint. The
// ZIP code is appended to the URL path.
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithRateLimit throttles remote lookups to rps requests per second.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithCache stores remote results in the zip_cache table so repeat
// lookups skip the provider.
func WithCache(pool db.Pool) Option {
	return func(c *client) {
		c.pool = pool
	}
}

type client struct {
	httpClient *http.Client
	baseURL    string
	limiter    *rate.Limiter
	pool       db.Pool
}

// NewClient creates a ZIP code client with the given options. Without
// WithBaseURL only the built-in table is consulted.
func NewClient(opts ...Option) Client {
	c := &client{
		httpClient: &http.Client{Timeout: 10 * time.Second},
		limiter:    rate.NewLimiter(10, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup resolves zip through the static table, then the cache, then
// the remote provider. A ZIP+4 code is resolved by its five-digit base.
func (c *client) Lookup(ctx context.Context, zip string) (*Result, error) {
	if err := model.ValidateZipCode(zip); err != nil {
		return nil, err
	}
	base := zip[:5]

	if r, ok := staticTable[base]; ok {
		out := r
		out.ZipCode = zip
		return &out, nil
	}

	if c.pool != nil {
		if r, err := c.checkCache(ctx, base); err == nil {
			r.ZipCode = zip
			return r, nil
		}
	}

	if c.baseURL == "" {
		return nil, eris.Wrapf(model.ErrNotFound, "zipcode: %s", zip)
	}

	r, err := c.lookupRemote(ctx, base)
	if err != nil {
		return nil, err
	}

	if c.pool != nil {
		if err := c.storeCache(ctx, r); err != nil {
			// Cache write failures must not fail the lookup.
			zapWarnCacheStore(base, err)
		}
	}

	r.ZipCode = zip
	return r, nil
}
