// Package report renders an analysis as text, JSON, YAML, or an XLSX workbook.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/liability-cli/internal/model"
)

// Format selects an output encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ErrUnknownFormat is returned by ParseFormat and Write for unsupported formats.
var ErrUnknownFormat = eris.New("report: unknown format")

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", eris.Wrapf(ErrUnknownFormat, "%q", s)
	}
}

// Write renders a to w in format f.
func Write(w io.Writer, a *model.Analysis, f Format) error {
	switch f {
	case FormatText:
		return WriteText(w, a)
	case FormatJSON:
		return WriteJSON(w, a)
	case FormatYAML:
		return WriteYAML(w, a)
	default:
		return eris.Wrapf(ErrUnknownFormat, "%q", f)
	}
}

// WriteJSON encodes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode json")
	}
	return nil
}

// WriteYAML encodes v as YAML.
func WriteYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return eris.Wrap(err, "report: encode yaml")
	}
	return eris.Wrap(enc.Close(), "report: close yaml encoder")
}

// WriteText writes a human-readable summary followed by one table per
// category and any warnings.
func WriteText(out io.Writer, a *model.Analysis) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	place := a.Request.Place()
	if place == "" {
		place = "-"
	}
	_, _ = fmt.Fprintf(w, "Análisis:\t%s\n", a.ID)
	_, _ = fmt.Fprintf(w, "Lugar:\t%s\n", place)
	_, _ = fmt.Fprintf(w, "Ubicación:\t%.5f, %.5f (%s)\n", a.Site.Latitude, a.Site.Longitude, a.LocationSource)
	_, _ = fmt.Fprintf(w, "Radio:\t%g km\n", a.RadiusKM)
	_, _ = fmt.Fprintf(w, "Umbral poblaciones:\t%g km\n", a.Thresholds.PopulationKM)
	_, _ = fmt.Fprintf(w, "Umbral centros de salud:\t%g km\n", a.Thresholds.MedicalKM)
	_, _ = fmt.Fprintf(w, "Personas afectadas (estimado):\t%d\n", a.Estimate.AffectedPopulation)
	_, _ = fmt.Fprintf(w, "Población tabulada:\t%d (histórica %d)\n", a.Estimate.TabulatedPopulation, a.Estimate.TabulatedHistorical)
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintf(w, "POBLACIONES CERCANAS (%d)\n", len(a.PopulationCenters))
	if len(a.PopulationCenters) == 0 {
		_, _ = fmt.Fprintln(w, "  ninguna")
	} else {
		_, _ = fmt.Fprintln(w, "NOMBRE\tDISTANCIA_KM\tPOBLACION\tHISTORICA")
		_, _ = fmt.Fprintln(w, "------\t------------\t---------\t---------")
		for _, r := range a.PopulationCenters {
			_, _ = fmt.Fprintf(w, "%s\t%.2f\t%d\t%d\n",
				r.Entity.Name, r.DistanceKM, r.Entity.Population, r.Entity.HistoricalPopulation)
		}
	}
	_, _ = fmt.Fprintln(w)

	_, _ = fmt.Fprintf(w, "CENTROS DE SALUD CERCANOS (%d)\n", len(a.MedicalFacilities))
	if len(a.MedicalFacilities) == 0 {
		_, _ = fmt.Fprintln(w, "  ninguno")
	} else {
		_, _ = fmt.Fprintln(w, "NOMBRE\tDISTANCIA_KM\tTIPO")
		_, _ = fmt.Fprintln(w, "------\t------------\t----")
		for _, r := range a.MedicalFacilities {
			_, _ = fmt.Fprintf(w, "%s\t%.2f\t%s\n", r.Entity.Name, r.DistanceKM, r.Entity.FacilityType)
		}
	}

	if len(a.Warnings) > 0 {
		_, _ = fmt.Fprintln(w)
		_, _ = fmt.Fprintln(w, "AVISOS")
		for _, warn := range a.Warnings {
			_, _ = fmt.Fprintf(w, "  [%s]\t%s\n", warn.Kind, warn.Message)
		}
	}

	if err := w.Flush(); err != nil {
		return eris.Wrap(err, "report: write text")
	}
	return nil
}
