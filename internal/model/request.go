package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/rotisserie/eris"
)

// Default inputs, matching the dashboard's initial form values.
const (
	DefaultCountry   = "Perú"
	DefaultCity      = "Cajamarca"
	DefaultLatitude  = -7.163
	DefaultLongitude = -78.5
	DefaultRadiusKM  = 5
	DefaultYearsBack = 20
)

// Request carries the user inputs for one analysis.
type Request struct {
	Country   string  `json:"country" yaml:"country"`
	City      string  `json:"city" yaml:"city"`
	Latitude  float64 `json:"latitude" yaml:"latitude" validate:"min=-90,max=90"`
	Longitude float64 `json:"longitude" yaml:"longitude" validate:"min=-180,max=180"`
	RadiusKM  int     `json:"radius_km" yaml:"radius_km" validate:"min=1,max=20"`
	YearsBack int     `json:"years_back" yaml:"years_back" validate:"min=5,max=50"`
	// SkipGeocode forces the manual coordinates.
	SkipGeocode bool `json:"skip_geocode,omitempty" yaml:"skip_geocode,omitempty"`
}

// DefaultRequest returns a Request populated with the default form values.
func DefaultRequest() Request {
	return Request{
		Country:   DefaultCountry,
		City:      DefaultCity,
		Latitude:  DefaultLatitude,
		Longitude: DefaultLongitude,
		RadiusKM:  DefaultRadiusKM,
		YearsBack: DefaultYearsBack,
	}
}

// Place returns the free-text geocoding query, or "" when no place was given.
func (r Request) Place() string {
	var parts []string
	for _, p := range []string{r.City, r.Country} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ManualLocation returns the manually supplied coordinates.
func (r Request) ManualLocation() LocationPoint {
	return LocationPoint{Latitude: r.Latitude, Longitude: r.Longitude}
}

// ErrInvalidRequest is wrapped by every validation failure.
var ErrInvalidRequest = eris.New("invalid request")

var validate = validator.New()

// Validate checks the numeric bounds of the request.
func (r Request) Validate() error {
	err := validate.Struct(r)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return eris.Wrap(err, "model: validate request")
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s must be %s %s", fe.Field(), boundWord(fe.Tag()), fe.Param()))
	}
	return eris.Wrap(ErrInvalidRequest, strings.Join(msgs, "; "))
}

func boundWord(tag string) string {
	switch tag {
	case "min":
		return ">="
	case "max":
		return "<="
	default:
		return tag
	}
}
