package report

import (
	"io"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/liability-cli/internal/model"
)

// Workbook sheet names.
const (
	SheetSummary    = "Resumen"
	SheetPopulation = "Poblaciones"
	SheetMedical    = "Centros de salud"
	SheetHistory    = "Historico"
)

// Workbook builds an XLSX workbook with a summary sheet, one sheet per
// category, and the historical series.
func Workbook(a *model.Analysis) (*xlsx.File, error) {
	f := xlsx.NewFile()

	summary, err := f.AddSheet(SheetSummary)
	if err != nil {
		return nil, eris.Wrap(err, "report: add summary sheet")
	}
	addRow(summary, "Campo", "Valor")
	addRow(summary, "ID", a.ID)
	addRow(summary, "País", a.Request.Country)
	addRow(summary, "Ciudad", a.Request.City)
	addFloatRow(summary, "Latitud", a.Site.Latitude)
	addFloatRow(summary, "Longitud", a.Site.Longitude)
	addRow(summary, "Origen de la ubicación", string(a.LocationSource))
	addFloatRow(summary, "Radio (km)", a.RadiusKM)
	addFloatRow(summary, "Umbral poblaciones (km)", a.Thresholds.PopulationKM)
	addFloatRow(summary, "Umbral centros de salud (km)", a.Thresholds.MedicalKM)
	addIntRow(summary, "Personas afectadas (estimado)", a.Estimate.AffectedPopulation)
	addIntRow(summary, "Población tabulada", a.Estimate.TabulatedPopulation)
	addIntRow(summary, "Población histórica tabulada", a.Estimate.TabulatedHistorical)
	addRow(summary, "Generado", a.GeneratedAt.Format("2006-01-02 15:04:05"))
	for _, w := range a.Warnings {
		addRow(summary, "Aviso ("+string(w.Kind)+")", w.Message)
	}

	pop, err := f.AddSheet(SheetPopulation)
	if err != nil {
		return nil, eris.Wrap(err, "report: add population sheet")
	}
	addRow(pop, "Nombre", "Latitud", "Longitud", "Distancia (km)", "Población", "Población histórica")
	for _, r := range a.PopulationCenters {
		row := pop.AddRow()
		row.AddCell().SetString(r.Entity.Name)
		row.AddCell().SetFloat(r.Entity.Location.Latitude)
		row.AddCell().SetFloat(r.Entity.Location.Longitude)
		row.AddCell().SetFloat(r.DistanceKM)
		row.AddCell().SetInt(r.Entity.Population)
		row.AddCell().SetInt(r.Entity.HistoricalPopulation)
	}

	med, err := f.AddSheet(SheetMedical)
	if err != nil {
		return nil, eris.Wrap(err, "report: add medical sheet")
	}
	addRow(med, "Nombre", "Latitud", "Longitud", "Distancia (km)", "Tipo")
	for _, r := range a.MedicalFacilities {
		row := med.AddRow()
		row.AddCell().SetString(r.Entity.Name)
		row.AddCell().SetFloat(r.Entity.Location.Latitude)
		row.AddCell().SetFloat(r.Entity.Location.Longitude)
		row.AddCell().SetFloat(r.DistanceKM)
		row.AddCell().SetString(r.Entity.FacilityType)
	}

	hist, err := f.AddSheet(SheetHistory)
	if err != nil {
		return nil, eris.Wrap(err, "report: add history sheet")
	}
	addRow(hist, "Años atrás", "Personas afectadas (estimado)")
	for i, v := range a.Estimate.History {
		row := hist.AddRow()
		row.AddCell().SetInt(i)
		row.AddCell().SetInt(v)
	}

	return f, nil
}

// WriteXLSX writes the workbook for a to w.
func WriteXLSX(w io.Writer, a *model.Analysis) error {
	f, err := Workbook(a)
	if err != nil {
		return err
	}
	if err := f.Write(w); err != nil {
		return eris.Wrap(err, "report: write xlsx")
	}
	return nil
}

// SaveXLSX writes the workbook for a to path.
func SaveXLSX(path string, a *model.Analysis) error {
	f, err := Workbook(a)
	if err != nil {
		return err
	}
	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "report: save xlsx %s", path)
	}
	return nil
}

func addRow(s *xlsx.Sheet, values ...string) {
	row := s.AddRow()
	for _, v := range values {
		row.AddCell().SetString(v)
	}
}

func addIntRow(s *xlsx.Sheet, label string, v int) {
	row := s.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetInt(v)
}

func addFloatRow(s *xlsx.Sheet, label string, v float64) {
	row := s.AddRow()
	row.AddCell().SetString(label)
	row.AddCell().SetFloat(v)
}
