// Package match implements proximity matching between strikes and
// active user locations.
package match

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/stormsignal/strike-alert/internal/geo"
	"github.com/stormsignal/strike-alert/internal/model"
	"github.com/stormsignal/strike-alert/internal/store"
)

// Match is one user within range of a strike.
type Match struct {
	UserID        string  `json:"user_id"`
	DistanceMiles float64 `json:"distance_miles"`
}

// Matcher finds users near strikes and strikes near users.
type Matcher struct {
	store store.Store
}

// New creates a Matcher over the given store.
func New(st store.Store) *Matcher {
	return &Matcher{store: st}
}

// FindNear returns the users whose active location lies within
// radiusMiles of the given point (boundary inclusive), ordered by
// ascending distance with ties broken by ascending user id. An empty
// result is valid: nobody was nearby.
//
// Logically a filter-then-sort over the full active-location set; a
// storage-side range query would have to produce identical results.
func (m *Matcher) FindNear(ctx context.Context, lat, lon, radiusMiles float64) ([]Match, error) {
	locs, err := m.store.ListActiveLocations(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "match: list active locations")
	}

	matches := make([]Match, 0, len(locs))
	for _, loc := range locs {
		d, err := geo.Distance(lat, lon, loc.Latitude, loc.Longitude)
		if err != nil {
			// A stored location with bad coordinates should never exist;
			// skip it rather than failing the whole pass.
			zap.L().Warn("skipping location with invalid coordinates",
				zap.String("location_id", loc.ID),
				zap.String("user_id", loc.UserID),
				zap.Error(err),
			)
			continue
		}
		if d <= radiusMiles {
			matches = append(matches, Match{UserID: loc.UserID, DistanceMiles: d})
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].DistanceMiles != matches[j].DistanceMiles {
			return matches[i].DistanceMiles < matches[j].DistanceMiles
		}
		return matches[i].UserID < matches[j].UserID
	})

	return matches, nil
}

// NearbyStrikes returns the strikes within radiusMiles of the user's
// active location that occurred inside the lookback window, newest
// first, each annotated with its distance. A user without an active
// location gets an empty result.
func (m *Matcher) NearbyStrikes(ctx context.Context, userID string, radiusMiles float64, lookback time.Duration) ([]model.StrikeWithDistance, error) {
	loc, err := m.store.GetActiveLocation(ctx, userID)
	if err != nil {
		return nil, eris.Wrap(err, "match: get active location")
	}
	if loc == nil {
		return nil, nil
	}

	strikes, err := m.store.ListStrikesSince(ctx, time.Now().UTC().Add(-lookback))
	if err != nil {
		return nil, eris.Wrap(err, "match: list strikes")
	}

	var out []model.StrikeWithDistance
	for _, s := range strikes {
		d, err := geo.Distance(loc.Latitude, loc.Longitude, s.Latitude, s.Longitude)
		if err != nil {
			zap.L().Warn("skipping strike with invalid coordinates",
				zap.String("strike_id", s.ID),
				zap.Error(err),
			)
			continue
		}
		if d <= radiusMiles {
			out = append(out, model.StrikeWithDistance{Strike: s, DistanceMiles: d})
		}
	}

	// ListStrikesSince already orders newest first; the filter preserves it.
	return out, nil
}
