package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDistance_IdenticalPoints(t *testing.T) {
	tests := []struct {
		lat, lon float64
	}{
		{0, 0},
		{-1.95, 30.05},
		{89.9, -179.9},
	}

	for _, test := range tests {
		assert.Equal(t, 0.0, Distance(test.lat, test.lon, test.lat, test.lon))
	}
}

func TestDistance_Symmetry(t *testing.T) {
	tests := []struct {
		lat1, lon1, lat2, lon2 float64
	}{
		{-1.95, 30.05, -1.9683524, 30.0890925},
		{52.52, 13.405, 48.8566, 2.3522},
		{0, 0, 0, 180},
	}

	for _, test := range tests {
		d1 := Distance(test.lat1, test.lon1, test.lat2, test.lon2)
		d2 := Distance(test.lat2, test.lon2, test.lat1, test.lon1)
		assert.InDelta(t, d1, d2, 1e-9)
	}
}

func TestDistance_KnownValues(t *testing.T) {
	// One degree of latitude on the meridian is about 111.19 km.
	d := Distance(0, 0, 1, 0)
	assert.InDelta(t, 111195, d, 10)

	// Berlin to Paris, roughly 878 km.
	d = Distance(52.52, 13.405, 48.8566, 2.3522)
	assert.InDelta(t, 878000, d, 2000)
}

func TestETASeconds(t *testing.T) {
	tests := []struct {
		distance float64
		speed    float64
		expected int64
		ok       bool
	}{
		{1000, 36, 100, true}, // 36 km/h = 10 m/s
		{5000, 72, 250, true},
		{0, 50, 0, true},
		{1000, 0, 0, false},
		{1000, -10, 0, false},
		{0, 0, 0, false},
	}

	for _, test := range tests {
		eta, ok := ETASeconds(test.distance, test.speed)
		assert.Equal(t, test.ok, ok)
		if test.ok {
			assert.Equal(t, test.expected, eta)
		}
	}
}
