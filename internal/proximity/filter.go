package proximity

import "github.com/sells-group/liability-cli/internal/model"

// Default threshold factors applied to the user radius.
const (
	DefaultPopulationFactor = 2.0
	DefaultMedicalFactor    = 2.5
)

// Factors maps each entity category to its radius multiplier.
type Factors struct {
	Population float64
	Medical    float64
}

// DefaultFactors returns the population-center and medical-facility multipliers.
func DefaultFactors() Factors {
	return Factors{Population: DefaultPopulationFactor, Medical: DefaultMedicalFactor}
}

// ThresholdFor returns the threshold radius in km for the given category.
func (f Factors) ThresholdFor(radiusKM float64, t model.EntityType) float64 {
	switch t {
	case model.PopulationCenter:
		return radiusKM * f.Population
	case model.MedicalFacility:
		return radiusKM * f.Medical
	default:
		return radiusKM
	}
}

// Thresholds returns both category thresholds for radiusKM.
func (f Factors) Thresholds(radiusKM float64) model.Thresholds {
	return model.Thresholds{
		PopulationKM: f.ThresholdFor(radiusKM, model.PopulationCenter),
		MedicalKM:    f.ThresholdFor(radiusKM, model.MedicalFacility),
	}
}

// Filter returns the candidates within thresholdKM of center, annotated with
// their distance, in input order. It never returns nil.
func Filter(center model.LocationPoint, candidates []model.AffectedEntity, thresholdKM float64) []model.ProximityResult {
	results := make([]model.ProximityResult, 0, len(candidates))
	for _, c := range candidates {
		d := PlanarDistanceKM(center, c.Location)
		if d <= thresholdKM {
			results = append(results, model.ProximityResult{Entity: c, DistanceKM: d})
		}
	}
	return results
}
