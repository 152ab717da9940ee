package model

import (
	"time"

	"github.com/rotisserie/eris"
)

// Continental US bounding box. Strikes outside it are rejected at creation,
// so no out-of-bounds strike record can ever exist.
const (
	BoundsMinLat = 24.396308
	BoundsMaxLat = 49.384358
	BoundsMinLon = -125.0
	BoundsMaxLon = -66.93457
)

// Strike is a single lightning strike report. Immutable after creation;
// creating one triggers exactly one proximity-matching pass.
type Strike struct {
	ID        string    `json:"id"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
	Intensity float64   `json:"intensity"`
	CreatedAt time.Time `json:"created_at"`
}

// StrikeWithDistance pairs a strike with its distance from a reference
// point, for nearby-strike queries.
type StrikeWithDistance struct {
	Strike
	DistanceMiles float64 `json:"distance_miles"`
}

// ValidateBounds checks that a coordinate pair falls inside the
// continental US bounding box.
func ValidateBounds(lat, lon float64) error {
	if lat < BoundsMinLat || lat > BoundsMaxLat {
		return eris.Wrapf(ErrValidation, "latitude %v outside continental bounds [%v, %v]",
			lat, BoundsMinLat, BoundsMaxLat)
	}
	if lon < BoundsMinLon || lon > BoundsMaxLon {
		return eris.Wrapf(ErrValidation, "longitude %v outside continental bounds [%v, %v]",
			lon, BoundsMinLon, BoundsMaxLon)
	}
	return nil
}

// Validate checks a Strike before insert.
func (s *Strike) Validate() error {
	if err := ValidateBounds(s.Latitude, s.Longitude); err != nil {
		return err
	}
	if s.Intensity <= 0 {
		return eris.Wrapf(ErrValidation, "intensity %v must be positive", s.Intensity)
	}
	if s.Timestamp.IsZero() {
		return eris.Wrap(ErrValidation, "strike timestamp is required")
	}
	return nil
}
