package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/liability-cli/pkg/geocode"
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode <place...>",
	Short: "Resolve a place name to coordinates",
	Example: `  liability-cli geocode "Cajamarca, Perú"
  liability-cli geocode Hualgayoc Perú`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("geocode"); err != nil {
			return err
		}
		if !cfg.Geocode.Enabled {
			return eris.New("geocode: disabled by configuration (geocode.enabled=false)")
		}

		gc, closeCache, err := initGeocoder(ctx, cfg)
		if err != nil {
			return err
		}
		defer closeCache()

		place := strings.Join(args, " ")
		res, err := gc.Search(ctx, place)
		if err != nil {
			return eris.Wrapf(err, "geocode %q", place)
		}
		printGeocode(os.Stdout, place, res)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(geocodeCmd)
}

func printGeocode(w io.Writer, place string, res *geocode.Result) {
	_, _ = fmt.Fprintf(w, "%s\t%.6f\t%.6f\t%s\n", place, res.Latitude, res.Longitude, res.Source)
	if res.DisplayName != "" {
		_, _ = fmt.Fprintf(w, "  %s\n", res.DisplayName)
	}
}
