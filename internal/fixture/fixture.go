// Package fixture writes small synthetic NetCDF files for tests and local
// experiments with the ingest pipeline.
package fixture

import (
	"sort"

	"github.com/batchatco/go-native-netcdf/netcdf/api"
	"github.com/batchatco/go-native-netcdf/netcdf/cdf"
	"github.com/batchatco/go-native-netcdf/netcdf/util"
	"github.com/cockroachdb/errors"
)

// Spec describes the grid to write.
type Spec struct {
	Lat, Lon int
	// DataVars are float32 variables over (lat, lon).
	DataVars []string
	// Global attributes. Values must be types the CDF writer accepts:
	// string, int8/16/32, float32/64 or slices of those.
	Global map[string]any
	// VarAttrs adds attributes to named data variables.
	VarAttrs map[string]map[string]any
	// GridMapping, when non-nil, adds a scalar int32 variable named by
	// GridMappingName carrying these attributes.
	GridMapping     map[string]any
	GridMappingName string
}

// Default returns a 3x4 global grid with one data variable and no CRS.
func Default() Spec {
	return Spec{
		Lat:      3,
		Lon:      4,
		DataVars: []string{"delta_sst_mean"},
		Global: map[string]any{
			"title":       "synthetic grid",
			"Conventions": "CF-1.8",
		},
	}
}

// Write creates path as a classic-format NetCDF file.
func Write(path string, spec Spec) error {
	if spec.Lat <= 0 || spec.Lon <= 0 {
		return errors.Newf("grid must be non-empty, got %dx%d", spec.Lat, spec.Lon)
	}
	cw, err := cdf.OpenWriter(path)
	if err != nil {
		return errors.Wrap(err, "open cdf writer")
	}

	if len(spec.Global) > 0 {
		global, err := orderedMap(spec.Global)
		if err != nil {
			cw.Close()
			return err
		}
		if err := cw.AddGlobalAttrs(global); err != nil {
			cw.Close()
			return errors.Wrap(err, "add global attributes")
		}
	}

	if err := addCoord(cw, "lat", "latitude", "degrees_north", axis(spec.Lat, -90, 180)); err != nil {
		cw.Close()
		return err
	}
	if err := addCoord(cw, "lon", "longitude", "degrees_east", axis(spec.Lon, -180, 360)); err != nil {
		cw.Close()
		return err
	}

	for _, name := range spec.DataVars {
		values := make([][]float32, spec.Lat)
		for i := range values {
			values[i] = make([]float32, spec.Lon)
			for j := range values[i] {
				values[i][j] = float32(i*spec.Lon + j)
			}
		}
		attrs := map[string]any{"units": "K"}
		for k, v := range spec.VarAttrs[name] {
			attrs[k] = v
		}
		om, err := orderedMap(attrs)
		if err != nil {
			cw.Close()
			return err
		}
		if err := cw.AddVar(name, api.Variable{
			Values:     values,
			Dimensions: []string{"lat", "lon"},
			Attributes: om,
		}); err != nil {
			cw.Close()
			return errors.Wrapf(err, "add variable %s", name)
		}
	}

	if spec.GridMapping != nil {
		name := spec.GridMappingName
		if name == "" {
			name = "crs"
		}
		om, err := orderedMap(spec.GridMapping)
		if err != nil {
			cw.Close()
			return err
		}
		if err := cw.AddVar(name, api.Variable{
			Values:     int32(0),
			Dimensions: nil,
			Attributes: om,
		}); err != nil {
			cw.Close()
			return errors.Wrapf(err, "add grid mapping %s", name)
		}
	}

	return errors.Wrap(cw.Close(), "close cdf writer")
}

func addCoord(cw *cdf.CDFWriter, name, standardName, units string, values []float32) error {
	om, err := orderedMap(map[string]any{
		"standard_name": standardName,
		"units":         units,
	})
	if err != nil {
		return err
	}
	err = cw.AddVar(name, api.Variable{
		Values:     values,
		Dimensions: []string{name},
		Attributes: om,
	})
	return errors.Wrapf(err, "add coordinate %s", name)
}

func axis(n int, start, span float32) []float32 {
	out := make([]float32, n)
	step := span / float32(n)
	for i := range out {
		out[i] = start + step*(float32(i)+0.5)
	}
	return out
}

func orderedMap(vals map[string]any) (*util.OrderedMap, error) {
	keys := make([]string, 0, len(vals))
	for k := range vals {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	om, err := util.NewOrderedMap(keys, vals)
	if err != nil {
		return nil, errors.Wrap(err, "build attribute map")
	}
	return om, nil
}
