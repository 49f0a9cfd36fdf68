package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/liability-cli/internal/analysis"
	"github.com/sells-group/liability-cli/internal/config"
)

func TestResolveSources(t *testing.T) {
	tc := config.TablesConfig{
		PopulationPath:  "data/centros.csv",
		PopulationTable: "geo.centros",
		MedicalTable:    "geo.establecimientos",
	}

	got := resolveSources(tc, tableOverrides{})
	assert.Equal(t, analysis.Sources{Population: "data/centros.csv", Medical: "pg:geo.establecimientos"}, got)
	assert.True(t, needsPostgres(got))

	got = resolveSources(tc, tableOverrides{Population: "x.xlsx", Medical: "y.shp"})
	assert.Equal(t, analysis.Sources{Population: "x.xlsx", Medical: "y.shp"}, got)
	assert.False(t, needsPostgres(got))

	assert.Equal(t, analysis.Sources{}, resolveSources(config.TablesConfig{}, tableOverrides{}))
}

func TestInitGeocoder_Disabled(t *testing.T) {
	c := &config.Config{}
	gc, closeFn, err := initGeocoder(context.Background(), c)
	require.NoError(t, err)
	assert.Nil(t, gc)
	closeFn()
}

func TestInitGeocoder_CachedLookup(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"lat":"-7.1617","lon":"-78.5128","display_name":"Cajamarca, Perú"}]`))
	}))
	defer srv.Close()

	c := &config.Config{Geocode: config.GeocodeConfig{
		Enabled:     true,
		BaseURL:     srv.URL,
		UserAgent:   "liability-cli-test",
		TimeoutSecs: 5,
		RatePerSec:  100,
		MaxAttempts: 1,
		CachePath:   filepath.Join(t.TempDir(), "geocode.db"),
	}}

	gc, closeFn, err := initGeocoder(context.Background(), c)
	require.NoError(t, err)
	defer closeFn()
	require.NotNil(t, gc)

	first, err := gc.Search(context.Background(), "Cajamarca, Perú")
	require.NoError(t, err)
	assert.InDelta(t, -7.1617, first.Latitude, 1e-9)

	second, err := gc.Search(context.Background(), "cajamarca,  peru")
	require.NoError(t, err)
	assert.Equal(t, "cache", second.Source)
	assert.Equal(t, int64(1), hits.Load())
}
