package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/liability-cli/internal/estimate"
	"github.com/sells-group/liability-cli/internal/model"
	"github.com/sells-group/liability-cli/internal/proximity"
	"github.com/sells-group/liability-cli/internal/tables"
	"github.com/sells-group/liability-cli/pkg/geocode"
)

type fakeGeocoder struct {
	result *geocode.Result
	err    error
	calls  int
	query  string
}

func (f *fakeGeocoder) Search(_ context.Context, q string) (*geocode.Result, error) {
	f.calls++
	f.query = q
	return f.result, f.err
}

type fakeTables map[string]*tables.Table

func (f fakeTables) Load(_ context.Context, source string, t model.EntityType) (*tables.Table, error) {
	switch source {
	case "missing":
		return nil, eris.Wrapf(tables.ErrTableNotFound, "%s", source)
	case "broken":
		return nil, eris.New("tables: boom")
	}
	tbl := f[source]
	tbl.Type = t
	return tbl, nil
}

func newEstimator(t *testing.T) *estimate.Estimator {
	t.Helper()
	e, err := estimate.NewEstimator(1, estimate.DefaultMin, estimate.DefaultMax)
	require.NoError(t, err)
	return e
}

func manualRequest() model.Request {
	req := model.DefaultRequest()
	req.Latitude, req.Longitude = -7.163, -78.5
	req.RadiusKM = 5
	return req
}

func pc(name string, lat, lon float64, pop, hist int) model.AffectedEntity {
	return model.AffectedEntity{
		Name: name, Type: model.PopulationCenter,
		Location:   model.LocationPoint{Latitude: lat, Longitude: lon},
		Population: pop, HistoricalPopulation: hist,
	}
}

func mf(name string, lat, lon float64) model.AffectedEntity {
	return model.AffectedEntity{
		Name: name, Type: model.MedicalFacility,
		Location:     model.LocationPoint{Latitude: lat, Longitude: lon},
		FacilityType: "Hospital",
	}
}

func TestResolve_Geocoded(t *testing.T) {
	gc := &fakeGeocoder{result: &geocode.Result{Latitude: -7.16, Longitude: -78.51, DisplayName: "Cajamarca, Perú"}}
	res := NewResolver(gc).Resolve(context.Background(), manualRequest())

	assert.Equal(t, model.LocationGeocoded, res.Source)
	assert.Equal(t, model.LocationPoint{Latitude: -7.16, Longitude: -78.51}, res.Point)
	assert.Equal(t, "Cajamarca, Perú", res.DisplayName)
	assert.Nil(t, res.Warning)
	assert.Equal(t, "Cajamarca, Perú", gc.query)
}

func TestResolve_FailureFallsBack(t *testing.T) {
	for _, err := range []error{geocode.ErrNoResult, eris.New("geocode: dial tcp: connection refused")} {
		gc := &fakeGeocoder{err: err}
		res := NewResolver(gc).Resolve(context.Background(), manualRequest())

		assert.Equal(t, model.LocationManual, res.Source)
		assert.Equal(t, model.LocationPoint{Latitude: -7.163, Longitude: -78.5}, res.Point)
		require.NotNil(t, res.Warning)
		assert.Equal(t, model.WarningGeocodeFailed, res.Warning.Kind)
	}
}

func TestResolve_NoLookup(t *testing.T) {
	gc := &fakeGeocoder{err: geocode.ErrNoResult}

	empty := manualRequest()
	empty.City, empty.Country = " ", ""
	res := NewResolver(gc).Resolve(context.Background(), empty)
	assert.Equal(t, model.LocationManual, res.Source)
	assert.Nil(t, res.Warning)

	skip := manualRequest()
	skip.SkipGeocode = true
	res = NewResolver(gc).Resolve(context.Background(), skip)
	assert.Equal(t, model.LocationManual, res.Source)
	assert.Nil(t, res.Warning)

	assert.Zero(t, gc.calls)

	res = NewResolver(nil).Resolve(context.Background(), manualRequest())
	assert.Equal(t, model.LocationManual, res.Source)
	assert.Nil(t, res.Warning)
}

func TestRun_FiltersBothCategories(t *testing.T) {
	ts := fakeTables{
		"pop": {Entities: []model.AffectedEntity{
			pc("Cerca", -7.17, -78.51, 1200, 800),
			pc("Lejos", -7.40, -78.50, 5000, 4000),
			pc("Borde", -7.163, -78.5+proximity.KMToDegrees(9.99), 300, 200),
		}},
		"med": {Entities: []model.AffectedEntity{
			mf("Hospital", -7.163, -78.5+proximity.KMToDegrees(12)),
			mf("Posta lejana", -7.163, -78.5+proximity.KMToDegrees(13)),
		}},
	}
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc := NewService(NewResolver(nil), ts, newEstimator(t),
		WithSources(Sources{Population: "pop", Medical: "med"}),
		WithClock(func() time.Time { return fixed }),
	)

	a, err := svc.Run(context.Background(), manualRequest())
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.Equal(t, fixed, a.GeneratedAt)
	assert.Equal(t, model.LocationManual, a.LocationSource)
	assert.Equal(t, 5.0, a.RadiusKM)
	assert.Equal(t, model.Thresholds{PopulationKM: 10, MedicalKM: 12.5}, a.Thresholds)

	require.Len(t, a.PopulationCenters, 2)
	assert.Equal(t, "Cerca", a.PopulationCenters[0].Entity.Name)
	assert.Equal(t, "Borde", a.PopulationCenters[1].Entity.Name)
	require.Len(t, a.MedicalFacilities, 1)
	assert.Equal(t, "Hospital", a.MedicalFacilities[0].Entity.Name)

	assert.True(t, a.Estimate.Simulated)
	assert.Len(t, a.Estimate.History, 21)
	assert.Equal(t, 1500, a.Estimate.TabulatedPopulation)
	assert.Equal(t, 1000, a.Estimate.TabulatedHistorical)
	assert.Empty(t, a.Warnings)
}

func TestRun_TableProblemsBecomeWarnings(t *testing.T) {
	svc := NewService(NewResolver(nil), fakeTables{}, newEstimator(t),
		WithSources(Sources{Population: "missing", Medical: "broken"}))

	a, err := svc.Run(context.Background(), manualRequest())
	require.NoError(t, err)
	assert.Empty(t, a.PopulationCenters)
	assert.NotNil(t, a.PopulationCenters)
	assert.Empty(t, a.MedicalFacilities)

	require.Len(t, a.Warnings, 2)
	assert.Equal(t, model.WarningTableMissing, a.Warnings[0].Kind)
	assert.Equal(t, model.WarningTableUnreadable, a.Warnings[1].Kind)
}

func TestRun_GeocodeWarningFirst(t *testing.T) {
	svc := NewService(NewResolver(&fakeGeocoder{err: geocode.ErrNoResult}), fakeTables{}, newEstimator(t))

	a, err := svc.Run(context.Background(), manualRequest())
	require.NoError(t, err)
	require.Len(t, a.Warnings, 1)
	assert.Equal(t, model.WarningGeocodeFailed, a.Warnings[0].Kind)
	assert.Equal(t, model.LocationManual, a.LocationSource)
}

func TestRun_InvalidRequest(t *testing.T) {
	svc := NewService(NewResolver(nil), fakeTables{}, newEstimator(t))

	req := manualRequest()
	req.RadiusKM = 0
	_, err := svc.Run(context.Background(), req)
	require.Error(t, err)
	assert.True(t, eris.Is(err, model.ErrInvalidRequest))
}

func TestRun_NoEstimator(t *testing.T) {
	svc := NewService(NewResolver(nil), fakeTables{}, nil)
	_, err := svc.Run(context.Background(), manualRequest())
	require.Error(t, err)
}

func TestRunWith_CSVTables(t *testing.T) {
	dir := t.TempDir()
	popPath := filepath.Join(dir, "poblaciones.csv")
	require.NoError(t, os.WriteFile(popPath, []byte(
		"nombre,latitud,longitud,poblacion\n"+
			"Baños del Inca,-7.16,-78.47,\n"+
			"Sin coordenadas,,\n"+
			"Celendín,-6.87,-78.15,25000\n"), 0o644))

	svc := NewService(NewResolver(nil), tables.NewLoader(model.DefaultFieldDefaults()), newEstimator(t))
	a, err := svc.RunWith(context.Background(), manualRequest(), Sources{Population: popPath})
	require.NoError(t, err)

	require.Len(t, a.PopulationCenters, 1)
	assert.Equal(t, "Baños del Inca", a.PopulationCenters[0].Entity.Name)
	assert.Equal(t, 1000, a.PopulationCenters[0].Entity.Population)

	kinds := make([]model.WarningKind, 0, len(a.Warnings))
	for _, w := range a.Warnings {
		kinds = append(kinds, w.Kind)
	}
	assert.ElementsMatch(t, []model.WarningKind{model.WarningRowSkipped, model.WarningDefaultApplied}, kinds)
}
