// Package estimate derives the affected-population figures shown next to a
// proximity analysis.
package estimate

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/liability-cli/internal/model"
)

// Bounds of the simulated affected-population draw, [DefaultMin, DefaultMax).
const (
	DefaultMin = 5000
	DefaultMax = 50000
)

// historyFloor is the share of the current figure at the start of the series.
const historyFloor = 0.3

// Estimator produces the simulated affected-population figure. It is safe for
// concurrent use.
type Estimator struct {
	mu  sync.Mutex
	rng *rand.Rand
	min int
	max int
}

// NewEstimator creates an Estimator drawing from [lo, hi). A zero seed uses
// the current time.
func NewEstimator(seed int64, lo, hi int) (*Estimator, error) {
	if lo < 0 || hi <= lo {
		return nil, eris.Errorf("estimate: invalid range [%d, %d)", lo, hi)
	}
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Estimator{rng: rand.New(rand.NewSource(seed)), min: lo, max: hi}, nil
}

// AffectedPopulation returns a uniform draw in [min, max). The value is a
// placeholder until a population raster is wired in.
func (e *Estimator) AffectedPopulation() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.min + e.rng.Intn(e.max-e.min)
}

// Estimate assembles the full estimate for the centers found in range.
func (e *Estimator) Estimate(centers []model.ProximityResult, yearsBack int) model.Estimate {
	current := e.AffectedPopulation()
	pop, hist := Tabulated(centers)
	return model.Estimate{
		AffectedPopulation:  current,
		Simulated:           true,
		History:             History(current, yearsBack),
		TabulatedPopulation: pop,
		TabulatedHistorical: hist,
	}
}

// History returns years+1 values evenly spaced from 30% of current up to
// current, indexed by years back.
func History(current, years int) []int {
	if years < 1 {
		return []int{current}
	}
	start := historyFloor * float64(current)
	step := (float64(current) - start) / float64(years)
	out := make([]int, years+1)
	for i := range out {
		out[i] = int(math.Round(start + step*float64(i)))
	}
	out[years] = current
	return out
}

// Tabulated sums current and historical population over the given centers.
func Tabulated(centers []model.ProximityResult) (population, historical int) {
	for _, c := range centers {
		population += c.Entity.Population
		historical += c.Entity.HistoricalPopulation
	}
	return population, historical
}
