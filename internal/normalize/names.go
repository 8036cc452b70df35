package normalize

import (
	"path/filepath"
	"regexp"
	"strings"
)

var (
	multiSpace  = regexp.MustCompile(`\s+`)
	nonLayerRun = regexp.MustCompile(`[^a-z0-9]+`)
)

// NormalizeName lowercases, collapses whitespace, and trims the input.
// Returns "" when nothing is left.
func NormalizeName(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	return multiSpace.ReplaceAllString(strings.ToLower(s), " ")
}

// LayerName turns an arbitrary string into a layer/store name: lower case,
// runs of anything but [a-z0-9] collapsed to "_", no leading or trailing "_".
// Names starting with a digit get an "l_" prefix.
func LayerName(s string) string {
	s = nonLayerRun.ReplaceAllString(NormalizeName(s), "_")
	s = strings.Trim(s, "_")
	if s == "" {
		return ""
	}
	if s[0] >= '0' && s[0] <= '9' {
		s = "l_" + s
	}
	return s
}

// LayerNameFromPath derives a layer name from the stem of a file path.
func LayerNameFromPath(path string) string {
	base := filepath.Base(path)
	return LayerName(strings.TrimSuffix(base, filepath.Ext(base)))
}

// Alternate returns the workspace-qualified layer name.
func Alternate(workspace, layer string) string {
	if workspace == "" {
		return layer
	}
	return workspace + ":" + layer
}
