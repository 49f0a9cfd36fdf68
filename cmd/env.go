package main

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/liability-cli/internal/analysis"
	"github.com/sells-group/liability-cli/internal/config"
	"github.com/sells-group/liability-cli/internal/db"
	"github.com/sells-group/liability-cli/internal/estimate"
	"github.com/sells-group/liability-cli/internal/proximity"
	"github.com/sells-group/liability-cli/internal/store"
	"github.com/sells-group/liability-cli/internal/tables"
	"github.com/sells-group/liability-cli/pkg/geocode"
)

// analysisEnv holds the initialized collaborators shared by the analyze,
// batch, and serve commands.
type analysisEnv struct {
	Service  *analysis.Service
	Geocoder geocode.Client // nil when geocoding is disabled
	closers  []func()
}

// Close releases the cache database and Postgres pool, if any.
func (e *analysisEnv) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// tableOverrides are per-invocation table sources from command flags.
type tableOverrides struct {
	Population string
	Medical    string
	Sheet      string
}

// resolveSources picks, per category, the flag value, then the configured
// file path, then the configured Postgres table.
func resolveSources(tc config.TablesConfig, o tableOverrides) analysis.Sources {
	pick := func(flag, path, table string) string {
		switch {
		case flag != "":
			return flag
		case path != "":
			return path
		case table != "":
			return tables.PostgresPrefix + table
		default:
			return ""
		}
	}
	return analysis.Sources{
		Population: pick(o.Population, tc.PopulationPath, tc.PopulationTable),
		Medical:    pick(o.Medical, tc.MedicalPath, tc.MedicalTable),
	}
}

func needsPostgres(src analysis.Sources) bool {
	return strings.HasPrefix(src.Population, tables.PostgresPrefix) ||
		strings.HasPrefix(src.Medical, tables.PostgresPrefix)
}

// initGeocoder builds the Nominatim client, wrapped with the SQLite cache
// when geocode.cache_path is set. It returns nil when geocoding is disabled.
func initGeocoder(ctx context.Context, c *config.Config) (geocode.Client, func(), error) {
	noop := func() {}
	if !c.Geocode.Enabled {
		return nil, noop, nil
	}

	client := geocode.NewClient(
		geocode.WithBaseURL(c.Geocode.BaseURL),
		geocode.WithUserAgent(c.Geocode.UserAgent),
		geocode.WithTimeout(c.Geocode.Timeout()),
		geocode.WithRateLimit(c.Geocode.RatePerSec),
		geocode.WithMaxAttempts(c.Geocode.MaxAttempts),
	)
	if c.Geocode.CachePath == "" {
		return client, noop, nil
	}

	cache, err := store.NewGeocodeCache(c.Geocode.CachePath, c.Geocode.CacheTTL())
	if err != nil {
		return nil, noop, err
	}
	if err := cache.Migrate(ctx); err != nil {
		_ = cache.Close()
		return nil, noop, err
	}
	if n, err := cache.Purge(ctx); err != nil {
		zap.L().Warn("geocode cache purge failed", zap.Error(err))
	} else if n > 0 {
		zap.L().Debug("geocode cache purged", zap.Int("expired", n))
	}

	return geocode.NewCachedClient(client, cache), func() { _ = cache.Close() }, nil
}

// initAnalysis validates the config for mode and wires the analysis service.
// Callers should defer env.Close().
func initAnalysis(ctx context.Context, mode string, o tableOverrides) (*analysisEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &analysisEnv{}

	gc, closeCache, err := initGeocoder(ctx, cfg)
	if err != nil {
		return nil, err
	}
	env.Geocoder = gc
	env.closers = append(env.closers, closeCache)

	sources := resolveSources(cfg.Tables, o)
	sheet := o.Sheet
	if sheet == "" {
		sheet = cfg.Tables.Sheet
	}
	loaderOpts := []tables.LoaderOption{tables.WithSheet(sheet)}

	if needsPostgres(sources) {
		connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		pool, err := db.Connect(connCtx, cfg.Tables.DatabaseURL)
		cancel()
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "connect tables database")
		}
		env.closers = append(env.closers, pool.Close)
		loaderOpts = append(loaderOpts, tables.WithPool(pool))
	}

	est, err := estimate.NewEstimator(cfg.Estimate.Seed, cfg.Estimate.Min, cfg.Estimate.Max)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.Service = analysis.NewService(
		analysis.NewResolver(gc),
		tables.NewLoader(cfg.Defaults.FieldDefaults(), loaderOpts...),
		est,
		analysis.WithFactors(proximity.Factors{
			Population: cfg.Proximity.PopulationFactor,
			Medical:    cfg.Proximity.MedicalFactor,
		}),
		analysis.WithSources(sources),
	)

	zap.L().Debug("analysis environment ready",
		zap.Bool("geocoding", gc != nil),
		zap.String("population_source", sources.Population),
		zap.String("medical_source", sources.Medical),
	)
	return env, nil
}
