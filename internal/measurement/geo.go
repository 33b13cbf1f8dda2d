package measurement

import (
	"github.com/golang/geo/s1"
	"github.com/golang/geo/s2"
)

// earthRadiusMeters is the mean Earth radius used to convert the s2
// angular separation returned by LatLng.Distance into meters.
const earthRadiusMeters = 6371000.0

// SiteGuard excludes neighbour reports whose configured location is
// implausibly far from the serving site before they ever reach
// best-neighbour selection. Distances are computed with golang/geo's
// s2.LatLng + s1.Angle for site-survey coordinates.
type SiteGuard struct {
	Serving  s2.LatLng
	MaxRange float64 // meters; zero disables the guard
}

// NeighbourSite optionally associates a NeighbourKey with a surveyed
// location, looked up by the caller (typically from System Information
// neighbour-cell configuration, not carried in the measurement report
// itself).
type NeighbourSite func(key NeighbourKey) (s2.LatLng, bool)

// withinRange reports whether loc is within g.MaxRange of the serving
// site. A disabled guard (MaxRange == 0) always passes.
func (g SiteGuard) withinRange(loc s2.LatLng) bool {
	if g.MaxRange == 0 {
		return true
	}
	angle := g.Serving.Distance(loc)
	return metersFromAngle(angle) <= g.MaxRange
}

func metersFromAngle(a s1.Angle) float64 {
	return float64(a) * earthRadiusMeters
}

// FindBestNeighbourInRange wraps FindBestNeighbour with the site-
// distance sanity guard: a neighbour whose surveyed location (as
// resolved by site) lies beyond g.MaxRange is excluded before the RXLEV
// comparison runs.
func (h *History) FindBestNeighbourInRange(nowFrame uint32, requiredConsecutive, trendPoints int, congested IsCongested, site NeighbourSite, guard SiteGuard) (BestNeighbour, bool) {
	gated := func(key NeighbourKey) bool {
		if congested != nil && congested(key) {
			return true
		}
		if site == nil || guard.MaxRange == 0 {
			return false
		}
		loc, ok := site(key)
		if !ok {
			return false
		}
		return !guard.withinRange(loc)
	}
	return h.FindBestNeighbour(nowFrame, requiredConsecutive, trendPoints, gated)
}
