package tables

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/liability-cli/internal/model"
)

type column int

const (
	colName column = iota
	colLatitude
	colLongitude
	colPopulation
	colHistorical
	colFacilityType
)

// aliases lists accepted header spellings per column, already folded.
var aliases = map[column][]string{
	colName:         {"name", "nombre", "centro_poblado", "establecimiento", "nom_ccpp"},
	colLatitude:     {"latitude", "latitud", "lat", "y"},
	colLongitude:    {"longitude", "longitud", "lon", "lng", "long", "x"},
	colPopulation:   {"population", "poblacion", "poblacion_actual", "current_population", "pob", "pop"},
	colHistorical:   {"historical_population", "poblacion_historica", "past_population", "pob_hist", "hist_pop"},
	colFacilityType: {"facility_type", "tipo", "categoria", "category", "type", "tipo_estab"},
}

// foldHeader lower-cases, strips accents, and joins words with underscores.
func foldHeader(h string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, h)
	if err != nil {
		folded = h
	}
	folded = strings.TrimRight(folded, "\x00")
	return strings.Join(strings.Fields(strings.ToLower(folded)), "_")
}

// indexColumns maps each known column to its position in header, or -1.
func indexColumns(header []string) map[column]int {
	idx := make(map[column]int, len(aliases))
	for col := range aliases {
		idx[col] = -1
	}
	folded := make([]string, len(header))
	for i, h := range header {
		folded[i] = foldHeader(h)
	}
	for col, names := range aliases {
		for _, name := range names {
			for i, h := range folded {
				if h == name {
					idx[col] = i
					break
				}
			}
			if idx[col] >= 0 {
				break
			}
		}
	}
	return idx
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// parseDecimal accepts "." or "," as the decimal separator.
func parseDecimal(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if strings.Contains(s, ",") && !strings.Contains(s, ".") {
		s = strings.ReplaceAll(s, ",", ".")
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// dottedThousands matches counts written with "." as the thousands
// separator, as in "1.234" or "12.500.000".
var dottedThousands = regexp.MustCompile(`^\d{1,3}(\.\d{3})+$`)

// parseCount accepts thousands separators and rounds fractional values.
// A "." followed by groups of exactly three digits is a thousands separator.
func parseCount(s string) (int, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	if dottedThousands.MatchString(s) {
		s = strings.ReplaceAll(s, ".", "")
	}
	if n, err := strconv.Atoi(strings.NewReplacer(",", "", " ", "", "_", "").Replace(s)); err == nil {
		return n, n >= 0
	}
	v, ok := parseDecimal(s)
	if !ok || v < 0 {
		return 0, false
	}
	return int(math.Round(v)), true
}

func validCoordinate(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// buildTable converts raw rows into entities of type t. Rows missing a name
// or a valid coordinate are skipped; missing optional fields take defaults.
func buildTable(header []string, rows [][]string, t model.EntityType, defaults model.FieldDefaults) (*Table, error) {
	idx := indexColumns(header)
	for _, required := range []column{colName, colLatitude, colLongitude} {
		if idx[required] < 0 {
			return nil, missingColumnError(required)
		}
	}

	tbl := &Table{Type: t, Entities: make([]model.AffectedEntity, 0, len(rows))}
	for _, row := range rows {
		name := cell(row, idx[colName])
		lat, latOK := parseDecimal(cell(row, idx[colLatitude]))
		lon, lonOK := parseDecimal(cell(row, idx[colLongitude]))
		if name == "" || !latOK || !lonOK || !validCoordinate(lat, lon) {
			tbl.Skipped++
			continue
		}

		raw := rawAttributes{
			population:   cell(row, idx[colPopulation]),
			historical:   cell(row, idx[colHistorical]),
			facilityType: cell(row, idx[colFacilityType]),
		}
		e, defaulted := raw.entity(name, t, model.LocationPoint{Latitude: lat, Longitude: lon}, defaults)
		if defaulted {
			tbl.Defaulted++
		}
		tbl.Entities = append(tbl.Entities, e)
	}
	return tbl, nil
}

// rawAttributes holds the optional fields of a row before defaults apply.
type rawAttributes struct {
	population   string
	historical   string
	facilityType string
}

func (r rawAttributes) entity(name string, t model.EntityType, loc model.LocationPoint, d model.FieldDefaults) (model.AffectedEntity, bool) {
	e := model.AffectedEntity{Name: name, Type: t, Location: loc}
	defaulted := false

	switch t {
	case model.PopulationCenter:
		if n, ok := parseCount(r.population); ok {
			e.Population = n
		} else {
			e.Population = d.Population
			defaulted = true
		}
		if n, ok := parseCount(r.historical); ok {
			e.HistoricalPopulation = n
		} else {
			e.HistoricalPopulation = d.HistoricalPopulation
			defaulted = true
		}
	case model.MedicalFacility:
		if r.facilityType != "" {
			e.FacilityType = r.facilityType
		} else {
			e.FacilityType = d.FacilityType
			defaulted = true
		}
	}
	return e, defaulted
}

func missingColumnError(c column) error {
	names := map[column]string{colName: "name", colLatitude: "latitude", colLongitude: "longitude"}
	return eris.Wrapf(ErrMissingColumn, "%s", names[c])
}
