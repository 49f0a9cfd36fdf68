// Package proximity selects affected entities within a distance threshold of a site.
package proximity

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"

	"github.com/sells-group/liability-cli/internal/model"
)

// KMPerDegree converts a planar degree displacement to kilometers.
const KMPerDegree = 111.32

// PlanarDistanceKM treats the latitude/longitude deltas as a flat Cartesian
// displacement scaled by KMPerDegree. It is not geodesic: accuracy degrades
// with latitude and distance.
func PlanarDistanceKM(a, b model.LocationPoint) float64 {
	return planar.Distance(toPoint(a), toPoint(b)) * KMPerDegree
}

// KMToDegrees is the inverse of the planar scale, used for drawing radii.
func KMToDegrees(km float64) float64 {
	return km / KMPerDegree
}

func toPoint(p model.LocationPoint) orb.Point {
	return orb.Point{p.Longitude, p.Latitude}
}
