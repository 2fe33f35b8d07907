package geo_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fridayce/rork-mapcask/internal/domain"
	"github.com/fridayce/rork-mapcask/internal/geo"
)

func TestDistanceKm(t *testing.T) {
	louisville := geo.Fallback
	lexington := domain.Location{Latitude: 38.0406, Longitude: -84.5037}

	assert.InDelta(t, 111.0, geo.DistanceKm(louisville, lexington), 3.0)
	assert.Equal(t, 0.0, geo.DistanceKm(louisville, louisville))
	assert.InDelta(t, geo.DistanceKm(lexington, louisville), geo.DistanceKm(louisville, lexington), 1e-9)
}

func TestOrFallback(t *testing.T) {
	assert.Equal(t, geo.Fallback, geo.OrFallback(domain.Location{}))
	l := domain.Location{Latitude: 1, Longitude: 2}
	assert.Equal(t, l, geo.OrFallback(l))
}
