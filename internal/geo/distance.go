// Package geo provides great-circle distance math for proximity matching.
package geo

import (
	"math"

	"github.com/rotisserie/eris"
)

// EarthRadiusMiles is the mean Earth radius used for great-circle distance.
const EarthRadiusMiles = 3959.0

// ErrInvalidCoordinate indicates a non-finite or out-of-range input.
var ErrInvalidCoordinate = eris.New("invalid coordinate")

// Distance returns the great-circle distance in miles between two points,
// using the spherical law of cosines:
//
//	d = R * acos(sin(lat1)*sin(lat2) + cos(lat1)*cos(lat2)*cos(lon2-lon1))
//
// For identical or antipodal points, floating-point error can push the
// acos argument slightly outside [-1, 1]; the argument is clamped to that
// range so the result is never NaN.
func Distance(lat1, lon1, lat2, lon2 float64) (float64, error) {
	for _, c := range []struct {
		v        float64
		min, max float64
	}{
		{lat1, -90, 90},
		{lat2, -90, 90},
		{lon1, -180, 180},
		{lon2, -180, 180},
	} {
		if math.IsNaN(c.v) || math.IsInf(c.v, 0) {
			return 0, eris.Wrap(ErrInvalidCoordinate, "coordinate is not finite")
		}
		if c.v < c.min || c.v > c.max {
			return 0, eris.Wrapf(ErrInvalidCoordinate, "coordinate %v out of range [%v, %v]", c.v, c.min, c.max)
		}
	}

	rlat1 := lat1 * math.Pi / 180
	rlat2 := lat2 * math.Pi / 180
	dlon := (lon2 - lon1) * math.Pi / 180

	arg := math.Sin(rlat1)*math.Sin(rlat2) + math.Cos(rlat1)*math.Cos(rlat2)*math.Cos(dlon)
	arg = math.Max(-1, math.Min(1, arg))

	return EarthRadiusMiles * math.Acos(arg), nil
}
