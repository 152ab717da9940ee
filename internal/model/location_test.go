package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateZipCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		zip     string
		wantErr bool
	}{
		{"90210", false},
		{"90210-1234", false},
		{"10001", false},
		{"ABCDE", true},
		{"1234", true},
		{"123456", true},
		{"90210-12", true},
		{"90210-12345", true},
		{"", true},
		{"90 210", true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.zip, func(t *testing.T) {
			t.Parallel()
			err := ValidateZipCode(tt.zip)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrValidation))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestValidateCoordinates(t *testing.T) {
	t.Parallel()

	assert.NoError(t, ValidateCoordinates(41.8781, -87.6298))
	assert.NoError(t, ValidateCoordinates(-90, 180))
	assert.NoError(t, ValidateCoordinates(90, -180))

	for _, c := range [][2]float64{{90.1, 0}, {-90.1, 0}, {0, 180.1}, {0, -180.1}} {
		err := ValidateCoordinates(c[0], c[1])
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrValidation))
	}
}

func TestLocationValidate(t *testing.T) {
	t.Parallel()

	loc := Location{
		UserID:    "user-1",
		ZipCode:   "60601",
		Latitude:  41.8825,
		Longitude: -87.6441,
		City:      "Chicago",
		State:     "IL",
	}
	assert.NoError(t, loc.Validate())

	missing := loc
	missing.UserID = ""
	assert.ErrorIs(t, missing.Validate(), ErrValidation)

	badZip := loc
	badZip.ZipCode = "chicago"
	assert.ErrorIs(t, badZip.Validate(), ErrValidation)
}

func TestLocationPatchValidate(t *testing.T) {
	t.Parallel()

	zip := "90210-1234"
	lat, lon := 34.0901, -118.4065
	active := false

	assert.True(t, LocationPatch{}.Empty())
	assert.False(t, LocationPatch{IsActive: &active}.Empty())

	assert.NoError(t, LocationPatch{ZipCode: &zip}.Validate())
	assert.NoError(t, LocationPatch{Latitude: &lat, Longitude: &lon}.Validate())

	// Coordinates must travel as a pair.
	assert.ErrorIs(t, LocationPatch{Latitude: &lat}.Validate(), ErrValidation)
	assert.ErrorIs(t, LocationPatch{Longitude: &lon}.Validate(), ErrValidation)

	bad := "ABCDE"
	assert.ErrorIs(t, LocationPatch{ZipCode: &bad}.Validate(), ErrValidation)
}
