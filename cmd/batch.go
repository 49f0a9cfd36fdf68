package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/liability-cli/internal/model"
	"github.com/sells-group/liability-cli/internal/report"
	"github.com/sells-group/liability-cli/internal/tables"
)

var (
	batchSites       string
	batchConcurrency int
	batchOutput      string
	batchPopTable    string
	batchMedTable    string
)

var batchCmd = &cobra.Command{
	Use:   "batch",
	Short: "Analyze many sites from a CSV",
	Long: `Reads sites from a CSV with the header
  name,country,city,lat,lon,radius,years
and analyzes them concurrently. Blank cells take the analyze defaults.
Results are written as a JSON array in input order.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		f, err := os.Open(batchSites)
		if err != nil {
			return eris.Wrapf(err, "batch: open %s", batchSites)
		}
		defer f.Close() //nolint:errcheck

		sites, err := readSites(ctx, f)
		if err != nil {
			return err
		}

		env, err := initAnalysis(ctx, "batch", tableOverrides{Population: batchPopTable, Medical: batchMedTable})
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := batchConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Batch.Concurrency
		}

		results, err := processBatch(ctx, sites, concurrency, env.Service.Run)
		if err != nil {
			return err
		}

		var out io.Writer = os.Stdout
		if batchOutput != "" {
			of, err := os.Create(batchOutput)
			if err != nil {
				return eris.Wrapf(err, "batch: create %s", batchOutput)
			}
			defer of.Close() //nolint:errcheck
			out = of
		}
		return report.WriteJSON(out, results)
	},
}

func init() {
	batchCmd.Flags().StringVar(&batchSites, "sites", "", "CSV of sites to analyze")
	batchCmd.Flags().IntVar(&batchConcurrency, "concurrency", 0, "parallel analyses (default from config)")
	batchCmd.Flags().StringVar(&batchOutput, "output", "", "write the JSON results to this file instead of stdout")
	batchCmd.Flags().StringVar(&batchPopTable, "population-table", "", "population centers table")
	batchCmd.Flags().StringVar(&batchMedTable, "medical-table", "", "medical facilities table")
	_ = batchCmd.MarkFlagRequired("sites")
	rootCmd.AddCommand(batchCmd)
}

// site is one row of the batch input.
type site struct {
	Name    string
	Request model.Request
}

// siteResult is one element of the batch output.
type siteResult struct {
	Name     string          `json:"name"`
	Analysis *model.Analysis `json:"analysis,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// readSites parses the batch CSV. Columns are matched by header name; blank
// cells keep the default request values.
func readSites(ctx context.Context, r io.Reader) ([]site, error) {
	headerCh := make(chan []string, 1)
	rowCh, errCh := tables.StreamCSV(ctx, r, tables.CSVOptions{
		HasHeader:  true,
		HeaderCh:   headerCh,
		TrimSpace:  true,
		LazyQuotes: true,
	})

	var rows [][]string
	for row := range rowCh {
		rows = append(rows, row)
	}
	if err := <-errCh; err != nil {
		return nil, eris.Wrap(err, "batch: read sites")
	}

	var header []string
	select {
	case header = <-headerCh:
	default:
		return nil, eris.New("batch: sites file is empty")
	}

	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(row []string, col string) string {
		i, ok := idx[col]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	sites := make([]site, 0, len(rows))
	for n, row := range rows {
		line := n + 2
		req := model.DefaultRequest()
		if v := get(row, "country"); v != "" {
			req.Country = v
		}
		if v := get(row, "city"); v != "" {
			req.City = v
		}
		var err error
		if req.Latitude, err = parseFloatCell(get(row, "lat"), req.Latitude); err != nil {
			return nil, eris.Wrapf(err, "batch: line %d lat", line)
		}
		if req.Longitude, err = parseFloatCell(get(row, "lon"), req.Longitude); err != nil {
			return nil, eris.Wrapf(err, "batch: line %d lon", line)
		}
		if req.RadiusKM, err = parseIntCell(get(row, "radius"), req.RadiusKM); err != nil {
			return nil, eris.Wrapf(err, "batch: line %d radius", line)
		}
		if req.YearsBack, err = parseIntCell(get(row, "years"), req.YearsBack); err != nil {
			return nil, eris.Wrapf(err, "batch: line %d years", line)
		}

		name := get(row, "name")
		if name == "" {
			name = req.Place()
		}
		sites = append(sites, site{Name: name, Request: req})
	}
	return sites, nil
}

func parseFloatCell(s string, def float64) (float64, error) {
	if s == "" {
		return def, nil
	}
	return strconv.ParseFloat(strings.Replace(s, ",", ".", 1), 64)
}

func parseIntCell(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}

// analyzeFunc is the callback signature for analyzing one site.
type analyzeFunc func(ctx context.Context, req model.Request) (*model.Analysis, error)

// processBatch analyzes sites concurrently. A failed site is recorded in its
// result and does not abort the batch; results keep input order.
func processBatch(ctx context.Context, sites []site, concurrency int, analyze analyzeFunc) ([]siteResult, error) {
	results := make([]siteResult, len(sites))
	if len(sites) == 0 {
		zap.L().Info("no sites to analyze")
		return results, nil
	}
	if concurrency < 1 {
		concurrency = 1
	}

	zap.L().Info("processing batch",
		zap.Int("sites", len(sites)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64

	for i, s := range sites {
		i, s := i, s
		g.Go(func() error {
			log := zap.L().With(zap.String("site", s.Name))
			results[i].Name = s.Name

			a, err := analyze(gctx, s.Request)
			if err != nil {
				failed.Add(1)
				results[i].Error = err.Error()
				log.Error("analysis failed", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			succeeded.Add(1)
			results[i].Analysis = a
			log.Info("analysis complete",
				zap.Int("population_centers", len(a.PopulationCenters)),
				zap.Int("medical_facilities", len(a.MedicalFacilities)),
			)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return results, nil
}
