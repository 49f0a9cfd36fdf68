package tables

import (
	"strconv"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
)

// readShapefile flattens a point shapefile into header/rows form. The point
// geometry is appended as "latitude" (Y) and "longitude" (X) columns;
// non-point shapes yield empty coordinates and are skipped downstream.
func readShapefile(path string) ([]string, [][]string, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "shapefile: open %s", path)
	}
	defer func() { _ = reader.Close() }()

	fields := reader.Fields()
	header := make([]string, 0, len(fields)+2)
	for _, f := range fields {
		header = append(header, strings.TrimRight(f.String(), "\x00"))
	}
	header = append(header, "latitude", "longitude")

	var rows [][]string
	for reader.Next() {
		_, shape := reader.Shape()
		row := make([]string, 0, len(header))
		for i := range fields {
			row = append(row, strings.TrimSpace(reader.Attribute(i)))
		}
		if p, ok := shape.(*shp.Point); ok {
			row = append(row,
				strconv.FormatFloat(p.Y, 'f', -1, 64),
				strconv.FormatFloat(p.X, 'f', -1, 64),
			)
		} else {
			row = append(row, "", "")
		}
		rows = append(rows, row)
	}
	if err := reader.Err(); err != nil {
		return nil, nil, eris.Wrapf(err, "shapefile: read %s", path)
	}
	return header, rows, nil
}
