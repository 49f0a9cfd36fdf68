// Package mapview renders an analysis as a GeoJSON map layer.
package mapview

import (
	"encoding/json"
	"math"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/geojson"

	"github.com/sells-group/liability-cli/internal/model"
	"github.com/sells-group/liability-cli/internal/proximity"
)

// CircleSegments is the number of edges approximating the affected area.
const CircleSegments = 64

// Feature roles, exposed as the "role" property.
const (
	RoleSite         = "site"
	RoleAffectedArea = "affected_area"
	RoleEntity       = "entity"
)

// Build converts a to a FeatureCollection: the site point, the affected-area
// circle, then one point per population center and medical facility.
func Build(a *model.Analysis) *geojson.FeatureCollection {
	fc := &geojson.FeatureCollection{}
	if a == nil {
		return fc
	}

	fc.Features = append(fc.Features,
		&geojson.Feature{
			ID:       "site",
			Geometry: point(a.Site),
			Properties: map[string]any{
				"role":            RoleSite,
				"location_source": string(a.LocationSource),
				"place":           a.Request.Place(),
			},
		},
		&geojson.Feature{
			ID:       "affected_area",
			Geometry: Circle(a.Site, a.RadiusKM, CircleSegments),
			Properties: map[string]any{
				"role":      RoleAffectedArea,
				"radius_km": a.RadiusKM,
			},
		},
	)

	for _, r := range a.PopulationCenters {
		fc.Features = append(fc.Features, entityFeature(r))
	}
	for _, r := range a.MedicalFacilities {
		fc.Features = append(fc.Features, entityFeature(r))
	}
	return fc
}

// Marshal encodes the map layer of a as GeoJSON.
func Marshal(a *model.Analysis) ([]byte, error) {
	data, err := json.Marshal(Build(a))
	if err != nil {
		return nil, eris.Wrap(err, "mapview: marshal geojson")
	}
	return data, nil
}

// Circle approximates a circle of radiusKM around center with a closed ring of
// segments edges. Degrees are converted with the same planar constant used
// for distances, so every entity inside the ring passes the radius test.
func Circle(center model.LocationPoint, radiusKM float64, segments int) *geom.Polygon {
	if segments < 3 {
		segments = 3
	}
	r := proximity.KMToDegrees(radiusKM)
	flat := make([]float64, 0, 2*(segments+1))
	for i := 0; i < segments; i++ {
		theta := 2 * math.Pi * float64(i) / float64(segments)
		flat = append(flat, center.Longitude+r*math.Cos(theta), center.Latitude+r*math.Sin(theta))
	}
	flat = append(flat, flat[0], flat[1])
	return geom.NewPolygonFlat(geom.XY, flat, []int{len(flat)})
}

func point(p model.LocationPoint) *geom.Point {
	return geom.NewPointFlat(geom.XY, []float64{p.Longitude, p.Latitude})
}

func entityFeature(r model.ProximityResult) *geojson.Feature {
	e := r.Entity
	props := map[string]any{
		"role":        RoleEntity,
		"name":        e.Name,
		"type":        string(e.Type),
		"label":       e.Type.Label(),
		"distance_km": math.Round(r.DistanceKM*1000) / 1000,
	}
	switch e.Type {
	case model.PopulationCenter:
		props["population"] = e.Population
		props["historical_population"] = e.HistoricalPopulation
	case model.MedicalFacility:
		props["facility_type"] = e.FacilityType
	}
	return &geojson.Feature{Geometry: point(e.Location), Properties: props}
}
