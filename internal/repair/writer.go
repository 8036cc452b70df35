// Package repair injects a WGS-84 CRS descriptor into grid files that carry
// no CRS information at all. The source file is never modified; a repaired
// copy is written next to it (or into a configured directory).
package repair

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/gridread"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// CRSVariable is the name of the auxiliary variable added by a repair.
const CRSVariable = "crs"

// RepairedSuffix is appended to the stem of a repaired file.
const RepairedSuffix = "_crsfixed"

// WGS84WKT is the spatial_ref written into repaired files.
const WGS84WKT = `GEOGCS["WGS 84",DATUM["WGS_1984",SPHEROID["WGS 84",6378137,298.257223563,AUTHORITY["EPSG","7030"]],AUTHORITY["EPSG","6326"]],PRIMEM["Greenwich",0,AUTHORITY["EPSG","8901"]],UNIT["degree",0.0174532925199433,AUTHORITY["EPSG","9122"]],AUTHORITY["EPSG","4326"]]`

// coordinateNames are never treated as data variables. This is a naming
// heuristic: a data variable that happens to be called "lat" will not get a
// grid_mapping reference.
var coordinateNames = map[string]bool{
	"lat":       true,
	"lon":       true,
	"latitude":  true,
	"longitude": true,
	CRSVariable: true,
}

// Writer produces repaired copies of grid files.
type Writer struct {
	tools  Toolchain
	source gridread.MetadataSource
	outDir string
	log    zerolog.Logger
}

// NewWriter returns a Writer. When outDir is empty the repaired file is
// written next to its source.
func NewWriter(tools Toolchain, source gridread.MetadataSource, outDir string, log zerolog.Logger) *Writer {
	return &Writer{tools: tools, source: source, outDir: outDir, log: log}
}

// OutputPath returns where Repair writes the repaired copy of path.
func (w *Writer) OutputPath(path string) string {
	dir := w.outDir
	if dir == "" {
		dir = filepath.Dir(path)
	}
	base := filepath.Base(path)
	ext := filepath.Ext(base)
	return filepath.Join(dir, strings.TrimSuffix(base, ext)+RepairedSuffix+ext)
}

// Repair writes a copy of path with a WGS-84 CRS variable and grid_mapping
// references on every data variable, and returns the new path.
//
// On any failure it returns path itself together with the error; callers
// treat an unchanged path as "repair not possible" and continue with the
// default CRS. Intermediate files are removed on every exit path.
func (w *Writer) Repair(ctx context.Context, path string) (string, error) {
	log := w.log.With().Str("file", filepath.Base(path)).Logger()

	meta, err := w.source.ReadMetadata(path)
	if err != nil {
		return path, errors.Wrap(err, "repair read metadata")
	}
	dataVars := DataVariables(meta)
	if len(dataVars) == 0 {
		return path, errors.Newf("repair: no data variables found in %s", path)
	}

	final := w.OutputPath(path)
	tmpDir, err := os.MkdirTemp(filepath.Dir(final), ".ncrepair-*")
	if err != nil {
		return path, errors.Wrap(err, "repair temp dir")
	}
	defer func() {
		if rmErr := os.RemoveAll(tmpDir); rmErr != nil {
			log.Warn().Err(rmErr).Str("dir", tmpDir).Msg("failed to remove repair temp dir")
		}
	}()

	withVar := filepath.Join(tmpDir, "1-crs-variable.nc")
	if err := w.tools.AddVariable(ctx, path, withVar, CRSVariable, "0"); err != nil {
		return path, errors.Wrap(err, "repair add crs variable")
	}

	withCRS := filepath.Join(tmpDir, "2-crs-attributes.nc")
	if err := w.tools.SetAttributes(ctx, withVar, withCRS, WGS84Edits(CRSVariable)); err != nil {
		return path, errors.Wrap(err, "repair set crs attributes")
	}

	mapped := filepath.Join(tmpDir, "3-grid-mapping.nc")
	if err := w.tools.SetAttributes(ctx, withCRS, mapped, GridMappingEdits(dataVars, CRSVariable)); err != nil {
		return path, errors.Wrap(err, "repair set grid_mapping")
	}

	if err := os.Rename(mapped, final); err != nil {
		return path, errors.Wrap(err, "repair move result")
	}

	log.Info().
		Str("output", final).
		Strs("data_vars", dataVars).
		Msg("crs repaired")
	return final, nil
}

// WGS84Edits are the attributes describing a WGS-84 geographic CRS.
func WGS84Edits(variable string) []AttrEdit {
	return []AttrEdit{
		{Var: variable, Name: "grid_mapping_name", Type: TypeChar, Value: "latitude_longitude"},
		{Var: variable, Name: "longitude_of_prime_meridian", Type: TypeDouble, Value: "0.0"},
		{Var: variable, Name: "semi_major_axis", Type: TypeDouble, Value: "6378137.0"},
		{Var: variable, Name: "inverse_flattening", Type: TypeDouble, Value: "298.257223563"},
		{Var: variable, Name: "spatial_ref", Type: TypeChar, Value: WGS84WKT},
	}
}

// GridMappingEdits point every listed variable at the CRS variable.
func GridMappingEdits(vars []string, crsVar string) []AttrEdit {
	edits := make([]AttrEdit, len(vars))
	for i, v := range vars {
		edits[i] = AttrEdit{Var: v, Name: "grid_mapping", Type: TypeChar, Value: crsVar}
	}
	return edits
}

// DataVariables returns the variables that should reference the CRS
// variable: everything except well-known coordinate names and CF
// coordinate variables (a 1-D variable named after its own dimension).
func DataVariables(meta *model.GridMetadata) []string {
	var out []string
	for _, v := range meta.Variables {
		if coordinateNames[strings.ToLower(v.Name)] {
			continue
		}
		if len(v.Dimensions) == 1 && v.Dimensions[0] == v.Name {
			continue
		}
		if len(v.Dimensions) == 0 {
			continue
		}
		out = append(out, v.Name)
	}
	return out
}
