// mkfixture writes a small synthetic NetCDF grid for local runs of ncload.
// Usage: go run ./cmd/mkfixture --out testdata/sst.nc --lat 18 --lon 36 --epsg ESPG4326
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/MarlonSantos/geonode-cloud/internal/fixture"
)

func main() {
	out := flag.String("out", "testdata/sst.nc", "output file")
	lat := flag.Int("lat", 3, "latitude cells")
	lon := flag.Int("lon", 4, "longitude cells")
	vars := flag.String("vars", "delta_sst_mean", "comma-separated data variables")
	epsg := flag.String("epsg", "", "value of a global epsg attribute; empty writes none")
	gridMapping := flag.Bool("grid-mapping", false, "add a WGS-84 crs variable")
	flag.Parse()

	spec := fixture.Default()
	spec.Lat, spec.Lon = *lat, *lon
	spec.DataVars = strings.Split(*vars, ",")
	if *epsg != "" {
		spec.Global["epsg"] = *epsg
	}
	if *gridMapping {
		spec.GridMapping = map[string]any{
			"grid_mapping_name":  "latitude_longitude",
			"semi_major_axis":    6378137.0,
			"inverse_flattening": 298.257223563,
		}
		spec.VarAttrs = make(map[string]map[string]any)
		for _, v := range spec.DataVars {
			spec.VarAttrs[v] = map[string]any{"grid_mapping": "crs"}
		}
	}

	if err := fixture.Write(*out, spec); err != nil {
		fmt.Fprintf(os.Stderr, "write fixture: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s (%dx%d, vars=%s)\n", *out, *lat, *lon, *vars)
}
