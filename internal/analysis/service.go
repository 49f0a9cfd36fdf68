// Package analysis runs a proximity analysis end to end: resolve the site,
// load the entity tables, filter by distance, and estimate the affected
// population.
package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/liability-cli/internal/estimate"
	"github.com/sells-group/liability-cli/internal/model"
	"github.com/sells-group/liability-cli/internal/proximity"
	"github.com/sells-group/liability-cli/internal/tables"
)

// TableSource loads one entity table.
type TableSource interface {
	Load(ctx context.Context, source string, t model.EntityType) (*tables.Table, error)
}

// Sources names the tables to load. An empty source skips that overlay.
type Sources struct {
	Population string
	Medical    string
}

// Service runs analyses. It holds no per-run state and is safe for
// concurrent use.
type Service struct {
	resolver  *Resolver
	tables    TableSource
	estimator *estimate.Estimator
	factors   proximity.Factors
	sources   Sources
	now       func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithFactors overrides the per-category threshold factors.
func WithFactors(f proximity.Factors) Option {
	return func(s *Service) { s.factors = f }
}

// WithSources sets the default table sources.
func WithSources(src Sources) Option {
	return func(s *Service) { s.sources = src }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates a Service.
func NewService(resolver *Resolver, ts TableSource, est *estimate.Estimator, opts ...Option) *Service {
	s := &Service{
		resolver:  resolver,
		tables:    ts,
		estimator: est,
		factors:   proximity.DefaultFactors(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sources returns the default table sources.
func (s *Service) Sources() Sources {
	return s.sources
}

// Run analyzes req against the default sources.
func (s *Service) Run(ctx context.Context, req model.Request) (*model.Analysis, error) {
	return s.RunWith(ctx, req, s.sources)
}

// RunWith analyzes req against src. Only an invalid request is an error;
// geocoding and table problems are reported as warnings.
func (s *Service) RunWith(ctx context.Context, req model.Request, src Sources) (*model.Analysis, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if s.estimator == nil {
		return nil, eris.New("analysis: estimator not configured")
	}

	res := s.resolver.Resolve(ctx, req)
	radius := float64(req.RadiusKM)
	thresholds := s.factors.Thresholds(radius)

	a := &model.Analysis{
		ID:                uuid.New().String(),
		Request:           req,
		Site:              res.Point,
		LocationSource:    res.Source,
		RadiusKM:          radius,
		Thresholds:        thresholds,
		PopulationCenters: []model.ProximityResult{},
		MedicalFacilities: []model.ProximityResult{},
		Warnings:          []model.Warning{},
		GeneratedAt:       s.now().UTC(),
	}
	if res.Warning != nil {
		a.Warnings = append(a.Warnings, *res.Warning)
	}

	if entities, ok := s.load(ctx, src.Population, model.PopulationCenter, a); ok {
		a.PopulationCenters = proximity.Filter(a.Site, entities, thresholds.PopulationKM)
	}
	if entities, ok := s.load(ctx, src.Medical, model.MedicalFacility, a); ok {
		a.MedicalFacilities = proximity.Filter(a.Site, entities, thresholds.MedicalKM)
	}

	a.Estimate = s.estimator.Estimate(a.PopulationCenters, req.YearsBack)

	zap.L().Info("analysis: completed",
		zap.String("id", a.ID),
		zap.String("location_source", string(a.LocationSource)),
		zap.Float64("lat", a.Site.Latitude),
		zap.Float64("lon", a.Site.Longitude),
		zap.Int("population_centers", len(a.PopulationCenters)),
		zap.Int("medical_facilities", len(a.MedicalFacilities)),
		zap.Int("warnings", len(a.Warnings)),
	)
	return a, nil
}

// load reads one table and records any problem on a as a warning.
func (s *Service) load(ctx context.Context, source string, t model.EntityType, a *model.Analysis) ([]model.AffectedEntity, bool) {
	if source == "" || s.tables == nil {
		return nil, false
	}

	tbl, err := s.tables.Load(ctx, source, t)
	if err != nil {
		zap.L().Warn("analysis: table skipped",
			zap.String("source", source),
			zap.String("type", string(t)),
			zap.Error(err),
		)
		if eris.Is(err, tables.ErrTableNotFound) {
			a.Warnings = append(a.Warnings, model.Warnf(model.WarningTableMissing,
				"%s table not found: %s", t.Label(), source))
		} else {
			a.Warnings = append(a.Warnings, model.Warnf(model.WarningTableUnreadable,
				"could not read %s table %s: %v", t.Label(), source, err))
		}
		return nil, false
	}

	if tbl.Skipped > 0 {
		a.Warnings = append(a.Warnings, model.Warnf(model.WarningRowSkipped,
			"%s: %d rows without a name or valid coordinates were skipped", source, tbl.Skipped))
	}
	if tbl.Defaulted > 0 {
		a.Warnings = append(a.Warnings, model.Warnf(model.WarningDefaultApplied,
			"%s: default values applied to %d rows", source, tbl.Defaulted))
	}
	return tbl.Entities, true
}
