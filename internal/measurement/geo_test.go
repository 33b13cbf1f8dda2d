package measurement

import (
	"testing"

	"github.com/golang/geo/s2"
	"github.com/stretchr/testify/assert"
)

func latLng(lat, lng float64) s2.LatLng {
	return s2.LatLngFromDegrees(lat, lng)
}

func TestFindBestNeighbourInRangeExcludesDistantSite(t *testing.T) {
	h := NewHistory(10, 0)
	near := NeighbourKey{ARFCN: 1, BSIC: 1}
	far := NeighbourKey{ARFCN: 2, BSIC: 2}
	for _, fn := range []uint32{1, 2, 3} {
		h.AddNeighbour(fn, near, NeighbourPoint{Frame: fn, RXLEV: -80})
		h.AddNeighbour(fn, far, NeighbourPoint{Frame: fn, RXLEV: -60})
	}

	serving := latLng(40.0, -74.0)
	site := func(key NeighbourKey) (s2.LatLng, bool) {
		if key == near {
			return latLng(40.01, -74.0), true
		}
		return latLng(50.0, -74.0), true // far away
	}
	guard := SiteGuard{Serving: serving, MaxRange: 50000}

	best, ok := h.FindBestNeighbourInRange(3, 2, 3, nil, site, guard)
	assert.True(t, ok)
	assert.Equal(t, near, best.Key)
}

func TestSiteGuardDisabledByDefault(t *testing.T) {
	g := SiteGuard{}
	assert.True(t, g.withinRange(s2.LatLngFromDegrees(0, 0)))
}
