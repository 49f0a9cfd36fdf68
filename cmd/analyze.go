package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/liability-cli/internal/mapview"
	"github.com/sells-group/liability-cli/internal/model"
	"github.com/sells-group/liability-cli/internal/report"
)

var (
	analyzeReq        = model.DefaultRequest()
	analyzePopTable   string
	analyzeMedTable   string
	analyzeSheet      string
	analyzeFormat     string
	analyzeXLSXPath   string
	analyzeGeoJSON    string
	analyzeOutputPath string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Analyze one environmental liability site",
	Long: `Resolves the site (geocoding "<city>, <country>" and falling back to --lat/--lon),
loads the population-center and medical-facility tables, and reports every
entity within the category threshold: 2x the radius for population centers,
2.5x for medical facilities.

Examples:
  liability-cli analyze --city Cajamarca --country Perú --radius 5 \
    --population-table data/centros_poblados.csv --medical-table data/establecimientos.xlsx

  liability-cli analyze --no-geocode --lat -6.76 --lon -78.61 --format json --geojson mapa.geojson`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		format, err := report.ParseFormat(analyzeFormat)
		if err != nil {
			return err
		}

		env, err := initAnalysis(ctx, "analyze", tableOverrides{
			Population: analyzePopTable,
			Medical:    analyzeMedTable,
			Sheet:      analyzeSheet,
		})
		if err != nil {
			return err
		}
		defer env.Close()

		a, err := env.Service.Run(ctx, analyzeReq)
		if err != nil {
			return eris.Wrap(err, "analyze")
		}

		if analyzeXLSXPath != "" {
			if err := report.SaveXLSX(analyzeXLSXPath, a); err != nil {
				return err
			}
			zap.L().Info("wrote workbook", zap.String("path", analyzeXLSXPath))
		}
		if analyzeGeoJSON != "" {
			data, err := mapview.Marshal(a)
			if err != nil {
				return err
			}
			if err := os.WriteFile(analyzeGeoJSON, data, 0o644); err != nil {
				return eris.Wrapf(err, "analyze: write %s", analyzeGeoJSON)
			}
			zap.L().Info("wrote map layer", zap.String("path", analyzeGeoJSON))
		}

		out := os.Stdout
		if analyzeOutputPath != "" {
			f, err := os.Create(analyzeOutputPath)
			if err != nil {
				return eris.Wrapf(err, "analyze: create %s", analyzeOutputPath)
			}
			defer f.Close() //nolint:errcheck
			out = f
		}
		return report.Write(out, a, format)
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeReq.Country, "country", model.DefaultCountry, "country of the site")
	f.StringVar(&analyzeReq.City, "city", model.DefaultCity, "city or region of the site")
	f.Float64Var(&analyzeReq.Latitude, "lat", model.DefaultLatitude, "latitude used when geocoding fails")
	f.Float64Var(&analyzeReq.Longitude, "lon", model.DefaultLongitude, "longitude used when geocoding fails")
	f.IntVar(&analyzeReq.RadiusKM, "radius", model.DefaultRadiusKM, "affected radius in km (1-20)")
	f.IntVar(&analyzeReq.YearsBack, "years", model.DefaultYearsBack, "years of history to chart (5-50)")
	f.BoolVar(&analyzeReq.SkipGeocode, "no-geocode", false, "use --lat/--lon without a geocoding lookup")
	f.StringVar(&analyzePopTable, "population-table", "", "population centers table (.csv, .xlsx, .shp, or pg:<table>)")
	f.StringVar(&analyzeMedTable, "medical-table", "", "medical facilities table (.csv, .xlsx, .shp, or pg:<table>)")
	f.StringVar(&analyzeSheet, "sheet", "", "XLSX sheet name (default first sheet)")
	f.StringVar(&analyzeFormat, "format", string(report.FormatText), "output format: text, json, or yaml")
	f.StringVarP(&analyzeOutputPath, "output", "o", "", "write the report to a file instead of stdout")
	f.StringVar(&analyzeXLSXPath, "xlsx", "", "also write an XLSX workbook to this path")
	f.StringVar(&analyzeGeoJSON, "geojson", "", "also write a GeoJSON map layer to this path")
	rootCmd.AddCommand(analyzeCmd)
}
