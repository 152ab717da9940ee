package geo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistanceZeroForIdenticalPoints(t *testing.T) {
	t.Parallel()

	points := [][2]float64{
		{41.8781, -87.6298},
		{0, 0},
		{90, 0},
		{-90, 0},
		{24.396308, -125.0},
	}
	for _, p := range points {
		d, err := Distance(p[0], p[1], p[0], p[1])
		require.NoError(t, err)
		assert.InDelta(t, 0, d, 1e-6)
		assert.False(t, math.IsNaN(d), "identical points must not produce NaN")
	}
}

func TestDistanceSymmetry(t *testing.T) {
	t.Parallel()

	// Chicago and Denver.
	d1, err := Distance(41.8781, -87.6298, 39.7392, -104.9903)
	require.NoError(t, err)
	d2, err := Distance(39.7392, -104.9903, 41.8781, -87.6298)
	require.NoError(t, err)
	assert.InDelta(t, d1, d2, 1e-6)
}

func TestDistanceKnownValues(t *testing.T) {
	t.Parallel()

	// Chicago loop to a strike under a mile away.
	d, err := Distance(41.8781, -87.6298, 41.8825, -87.6231)
	require.NoError(t, err)
	assert.Less(t, d, 1.0)
	assert.Greater(t, d, 0.0)

	// Chicago to Denver is roughly 920 miles great-circle.
	d, err = Distance(41.8781, -87.6298, 39.7392, -104.9903)
	require.NoError(t, err)
	assert.InDelta(t, 920, d, 20)
}

func TestDistanceAntipodalClamped(t *testing.T) {
	t.Parallel()

	d, err := Distance(0, 0, 0, 180)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(d))
	assert.InDelta(t, math.Pi*EarthRadiusMiles, d, 1)
}

func TestDistanceInvalidInputs(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name                   string
		lat1, lon1, lat2, lon2 float64
	}{
		{"nan latitude", math.NaN(), 0, 0, 0},
		{"inf longitude", 0, math.Inf(1), 0, 0},
		{"latitude out of range", 91, 0, 0, 0},
		{"longitude out of range", 0, 0, 0, -181},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Distance(tt.lat1, tt.lon1, tt.lat2, tt.lon2)
			assert.ErrorIs(t, err, ErrInvalidCoordinate)
		})
	}
}
