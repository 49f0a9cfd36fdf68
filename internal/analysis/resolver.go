package analysis

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/liability-cli/internal/model"
	"github.com/sells-group/liability-cli/pkg/geocode"
)

// Resolution is the outcome of resolving a request to a site location.
type Resolution struct {
	Point       model.LocationPoint
	Source      model.LocationSource
	DisplayName string
	// Warning is set when the lookup failed and the manual coordinates were used.
	Warning *model.Warning
}

// Resolver turns a request into a site location, preferring the geocoder and
// falling back to the manual coordinates.
type Resolver struct {
	geocoder geocode.Client
}

// NewResolver creates a Resolver. A nil geocoder always uses manual coordinates.
func NewResolver(gc geocode.Client) *Resolver {
	return &Resolver{geocoder: gc}
}

// Resolve never fails: any lookup error yields the manual coordinates and a
// geocode_failed warning. No lookup is attempted when the request names no
// place, asks to skip geocoding, or no geocoder is configured.
func (r *Resolver) Resolve(ctx context.Context, req model.Request) Resolution {
	manual := Resolution{Point: req.ManualLocation(), Source: model.LocationManual}

	place := req.Place()
	if r == nil || r.geocoder == nil || req.SkipGeocode || place == "" {
		return manual
	}

	res, err := r.geocoder.Search(ctx, place)
	if err != nil {
		zap.L().Warn("analysis: geocode failed, using manual coordinates",
			zap.String("place", place),
			zap.Error(err),
		)
		w := model.Warnf(model.WarningGeocodeFailed,
			"could not geocode %q, using manual coordinates (%.4f, %.4f)",
			place, req.Latitude, req.Longitude)
		manual.Warning = &w
		return manual
	}

	return Resolution{
		Point:       model.LocationPoint{Latitude: res.Latitude, Longitude: res.Longitude},
		Source:      model.LocationGeocoded,
		DisplayName: res.DisplayName,
	}
}
