package crs

import (
	"sort"
	"strings"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// GlobalCandidates are the file-level attributes checked for CRS
// information, in priority order.
var GlobalCandidates = []string{"crs_wkt", "crs", "epsg", "EPSG", "srid", "SRID", "spatial_ref"}

// GridMappingCandidates are checked, in priority order, on every variable
// referenced by a data variable's grid_mapping attribute.
var GridMappingCandidates = []string{"crs_wkt", "spatial_ref", "epsg_code", "epsg", "EPSG", "grid_mapping_name"}

// Resolution is the outcome of resolving one file's CRS.
type Resolution struct {
	CRS model.CRSIdentifier
	// Discovered is false when no candidate attribute was present at all,
	// which is the only case the repair writer acts on.
	Discovered bool
	// Source names where the value came from, e.g. "global:epsg" or
	// "crs:spatial_ref".
	Source string
	Raw    model.AttrValue
	// Defaulted is set when the result is DefaultCRS because the input
	// was missing or unrecognizable, as opposed to genuinely EPSG:4326.
	Defaulted bool
}

// Resolve determines the CRS of a grid file from its metadata. It never
// fails and has no side effects.
func Resolve(meta *model.GridMetadata) Resolution {
	source, raw, ok := Discover(meta)
	if !ok {
		return Resolution{CRS: model.DefaultCRS, Defaulted: true}
	}
	id := Normalize(raw)
	return Resolution{
		CRS:        id,
		Discovered: true,
		Source:     source,
		Raw:        raw,
		Defaulted:  id == model.DefaultCRS && !mentions4326(raw),
	}
}

// Discover returns the first non-empty candidate attribute, checking the
// global candidates first and then every grid_mapping-referenced variable.
func Discover(meta *model.GridMetadata) (source string, raw model.AttrValue, ok bool) {
	if meta == nil {
		return "", model.Absent(), false
	}
	for _, name := range GlobalCandidates {
		if v := meta.Global.Get(name); present(v) {
			return "global:" + name, v, true
		}
	}
	for _, mapping := range gridMappings(meta) {
		gm, found := meta.Variable(mapping)
		if !found {
			continue
		}
		for _, name := range GridMappingCandidates {
			if v := gm.Attributes.Get(name); present(v) {
				return mapping + ":" + name, v, true
			}
		}
	}
	return "", model.Absent(), false
}

// gridMappings returns the distinct grid_mapping targets, ordered by the
// name of the variable referencing them.
func gridMappings(meta *model.GridMetadata) []string {
	vars := make([]model.Variable, len(meta.Variables))
	copy(vars, meta.Variables)
	sort.Slice(vars, func(i, j int) bool { return vars[i].Name < vars[j].Name })

	seen := make(map[string]bool)
	var out []string
	for _, v := range vars {
		ref := v.Attributes.Get("grid_mapping")
		if ref.Kind != model.KindString {
			continue
		}
		// CF allows "crs: lat lon" style extended references; the variable
		// name is the first token.
		name := strings.TrimSpace(ref.Str)
		if i := strings.IndexAny(name, ": "); i > 0 {
			name = name[:i]
		}
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func present(v model.AttrValue) bool {
	if v.Kind == model.KindString {
		return strings.TrimSpace(v.Str) != ""
	}
	return v.Kind != model.KindAbsent
}

func mentions4326(v model.AttrValue) bool {
	return strings.Contains(v.String(), "4326")
}
