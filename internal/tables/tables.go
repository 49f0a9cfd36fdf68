// Package tables loads population-center and medical-facility tables from
// CSV, XLSX, point shapefiles, or Postgres.
package tables

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/liability-cli/internal/db"
	"github.com/sells-group/liability-cli/internal/model"
)

// PostgresPrefix selects a Postgres table source, e.g. "pg:geo.centros_poblados".
const PostgresPrefix = "pg:"

var (
	// ErrTableNotFound means the table file does not exist.
	ErrTableNotFound = eris.New("tables: table not found")
	// ErrMissingColumn means a required column is absent from the header.
	ErrMissingColumn = eris.New("tables: required column missing")
	// ErrUnsupportedFormat means the source extension is not recognized.
	ErrUnsupportedFormat = eris.New("tables: unsupported format")
)

// Table is the parsed content of one source.
type Table struct {
	Source   string
	Type     model.EntityType
	Entities []model.AffectedEntity
	// Skipped counts rows without a name or a usable coordinate.
	Skipped int
	// Defaulted counts rows where at least one optional field was filled
	// from FieldDefaults.
	Defaulted int
}

// Loader reads entity tables. The zero value is not usable; see NewLoader.
type Loader struct {
	defaults model.FieldDefaults
	sheet    string
	pool     db.Pool
	csvOpts  CSVOptions
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithSheet selects the XLSX sheet by name instead of the first sheet.
func WithSheet(name string) LoaderOption {
	return func(l *Loader) { l.sheet = name }
}

// WithPool enables "pg:" sources.
func WithPool(p db.Pool) LoaderOption {
	return func(l *Loader) { l.pool = p }
}

// WithCSVDelimiter overrides the CSV field separator.
func WithCSVDelimiter(r rune) LoaderOption {
	return func(l *Loader) {
		if r != 0 {
			l.csvOpts.Delimiter = r
		}
	}
}

// NewLoader creates a Loader that fills missing optional fields from defaults.
func NewLoader(defaults model.FieldDefaults, opts ...LoaderOption) *Loader {
	l := &Loader{
		defaults: defaults,
		csvOpts:  CSVOptions{HasHeader: false, TrimSpace: true, LazyQuotes: true},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load reads the table at source as entities of type t.
func (l *Loader) Load(ctx context.Context, source string, t model.EntityType) (*Table, error) {
	if !t.Valid() {
		return nil, eris.Errorf("tables: unknown entity type %q", t)
	}
	if strings.HasPrefix(source, PostgresPrefix) {
		return l.loadPostgres(ctx, strings.TrimPrefix(source, PostgresPrefix), t)
	}

	if _, err := os.Stat(source); err != nil {
		if os.IsNotExist(err) {
			return nil, eris.Wrapf(ErrTableNotFound, "%s", source)
		}
		return nil, eris.Wrapf(err, "tables: stat %s", source)
	}

	var (
		header []string
		rows   [][]string
		err    error
	)
	switch strings.ToLower(filepath.Ext(source)) {
	case ".csv", ".txt":
		header, rows, err = l.readCSVFile(ctx, source)
	case ".xlsx":
		header, rows, err = l.readXLSX(source)
	case ".shp":
		header, rows, err = readShapefile(source)
	default:
		return nil, eris.Wrapf(ErrUnsupportedFormat, "%s", source)
	}
	if err != nil {
		return nil, err
	}

	tbl, err := buildTable(header, rows, t, l.defaults)
	if err != nil {
		return nil, eris.Wrapf(err, "tables: %s", source)
	}
	tbl.Source = source

	zap.L().Debug("tables: loaded",
		zap.String("source", source),
		zap.String("type", string(t)),
		zap.Int("entities", len(tbl.Entities)),
		zap.Int("skipped", tbl.Skipped),
		zap.Int("defaulted", tbl.Defaulted),
	)
	return tbl, nil
}
