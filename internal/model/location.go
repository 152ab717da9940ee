package model

import (
	"regexp"
	"time"

	"github.com/rotisserie/eris"
)

// zipPattern matches US ZIP codes: five digits with an optional +4 extension.
var zipPattern = regexp.MustCompile(`^\d{5}(-\d{4})?$`)

// Location is a user's geographic position. At most one Location per user
// is active at any time; superseded rows are deactivated, never deleted.
type Location struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ZipCode   string    `json:"zip_code"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LocationPatch holds optional fields for a partial location update.
// Nil fields are left unchanged.
type LocationPatch struct {
	ZipCode   *string  `json:"zip_code,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	City      *string  `json:"city,omitempty"`
	State     *string  `json:"state,omitempty"`
	IsActive  *bool    `json:"is_active,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p LocationPatch) Empty() bool {
	return p.ZipCode == nil && p.Latitude == nil && p.Longitude == nil &&
		p.City == nil && p.State == nil && p.IsActive == nil
}

// Validate checks the fields the patch supplies.
func (p LocationPatch) Validate() error {
	if p.ZipCode != nil {
		if err := ValidateZipCode(*p.ZipCode); err != nil {
			return err
		}
	}
	if p.Latitude != nil || p.Longitude != nil {
		if p.Latitude == nil || p.Longitude == nil {
			return eris.Wrap(ErrValidation, "latitude and longitude must be updated together")
		}
		if err := ValidateCoordinates(*p.Latitude, *p.Longitude); err != nil {
			return err
		}
	}
	return nil
}

// ValidateZipCode checks the NNNNN or NNNNN-NNNN format.
func ValidateZipCode(zip string) error {
	if !zipPattern.MatchString(zip) {
		return eris.Wrapf(ErrValidation, "invalid ZIP code format %q", zip)
	}
	return nil
}

// ValidateCoordinates checks that lat/lon fall within the WGS-84 ranges.
func ValidateCoordinates(lat, lon float64) error {
	if lat < -90 || lat > 90 {
		return eris.Wrapf(ErrValidation, "latitude %v out of range [-90, 90]", lat)
	}
	if lon < -180 || lon > 180 {
		return eris.Wrapf(ErrValidation, "longitude %v out of range [-180, 180]", lon)
	}
	return nil
}

// Validate checks a Location before insert.
func (l *Location) Validate() error {
	if l.UserID == "" {
		return eris.Wrap(ErrValidation, "user id is required")
	}
	if err := ValidateZipCode(l.ZipCode); err != nil {
		return err
	}
	return ValidateCoordinates(l.Latitude, l.Longitude)
}
