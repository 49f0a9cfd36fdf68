package model

import "time"

// EntityType identifies the category of an affected entity.
type EntityType string

const (
	PopulationCenter EntityType = "population_center"
	MedicalFacility  EntityType = "medical_facility"
)

// Valid reports whether t is a known entity type.
func (t EntityType) Valid() bool {
	return t == PopulationCenter || t == MedicalFacility
}

// Label returns the display label used in reports and the dashboard.
func (t EntityType) Label() string {
	switch t {
	case PopulationCenter:
		return "Centro poblado"
	case MedicalFacility:
		return "Centro de salud"
	default:
		return string(t)
	}
}

// LocationPoint is a WGS84 coordinate pair in decimal degrees.
type LocationPoint struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// AffectedEntity is a row from a population-centers or medical-facilities table.
// Population fields apply to population centers, FacilityType to medical facilities.
type AffectedEntity struct {
	Name                 string        `json:"name" yaml:"name"`
	Type                 EntityType    `json:"type" yaml:"type"`
	Location             LocationPoint `json:"location" yaml:"location"`
	Population           int           `json:"population,omitempty" yaml:"population,omitempty"`
	HistoricalPopulation int           `json:"historical_population,omitempty" yaml:"historical_population,omitempty"`
	FacilityType         string        `json:"facility_type,omitempty" yaml:"facility_type,omitempty"`
}

// ProximityResult is an entity that fell within its category threshold.
type ProximityResult struct {
	Entity     AffectedEntity `json:"entity" yaml:"entity"`
	DistanceKM float64        `json:"distance_km" yaml:"distance_km"`
}

// FieldDefaults holds the values substituted for missing optional table columns.
type FieldDefaults struct {
	Population           int    `json:"population" yaml:"population"`
	HistoricalPopulation int    `json:"historical_population" yaml:"historical_population"`
	FacilityType         string `json:"facility_type" yaml:"facility_type"`
}

// DefaultFieldDefaults returns the documented fallback values.
func DefaultFieldDefaults() FieldDefaults {
	return FieldDefaults{
		Population:           1000,
		HistoricalPopulation: 1000,
		FacilityType:         "unspecified",
	}
}

// LocationSource records how the site coordinates were obtained.
type LocationSource string

const (
	LocationGeocoded LocationSource = "geocoded"
	LocationManual   LocationSource = "manual"
)

// Thresholds are the per-category radii derived from the user radius.
type Thresholds struct {
	PopulationKM float64 `json:"population_km" yaml:"population_km"`
	MedicalKM    float64 `json:"medical_km" yaml:"medical_km"`
}

// Analysis is the complete output of one proximity analysis.
type Analysis struct {
	ID                string            `json:"id" yaml:"id"`
	Request           Request           `json:"request" yaml:"request"`
	Site              LocationPoint     `json:"site" yaml:"site"`
	LocationSource    LocationSource    `json:"location_source" yaml:"location_source"`
	RadiusKM          float64           `json:"radius_km" yaml:"radius_km"`
	Thresholds        Thresholds        `json:"thresholds" yaml:"thresholds"`
	PopulationCenters []ProximityResult `json:"population_centers" yaml:"population_centers"`
	MedicalFacilities []ProximityResult `json:"medical_facilities" yaml:"medical_facilities"`
	Estimate          Estimate          `json:"estimate" yaml:"estimate"`
	Warnings          []Warning         `json:"warnings,omitempty" yaml:"warnings,omitempty"`
	GeneratedAt       time.Time         `json:"generated_at" yaml:"generated_at"`
}

// Estimate holds the (partly simulated) affected-population figures.
type Estimate struct {
	// AffectedPopulation is a placeholder random draw, not a model output.
	AffectedPopulation  int   `json:"affected_population" yaml:"affected_population"`
	Simulated           bool  `json:"simulated" yaml:"simulated"`
	History             []int `json:"history" yaml:"history"`
	TabulatedPopulation int   `json:"tabulated_population" yaml:"tabulated_population"`
	TabulatedHistorical int   `json:"tabulated_historical" yaml:"tabulated_historical"`
}
