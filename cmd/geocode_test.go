package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/liability-cli/pkg/geocode"
)

func TestPrintGeocode(t *testing.T) {
	var buf bytes.Buffer
	printGeocode(&buf, "Cajamarca, Perú", &geocode.Result{
		Latitude: -7.1617, Longitude: -78.5128,
		DisplayName: "Cajamarca, Provincia de Cajamarca, Perú",
		Source:      "nominatim",
	})
	assert.Equal(t, "Cajamarca, Perú\t-7.161700\t-78.512800\tnominatim\n  Cajamarca, Provincia de Cajamarca, Perú\n", buf.String())
}
