// Package crs resolves the coordinate reference system of a grid file from
// its attributes and normalizes the many spellings found in real data to a
// canonical AUTHORITY:CODE identifier.
//
// Resolution never fails. Missing or unrecognizable values resolve to
// model.DefaultCRS so that ingestion is never blocked on CRS metadata.
package crs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

var (
	epsgForm    = regexp.MustCompile(`(?i)^EPSG:(\d+)$`)
	espgTypo    = regexp.MustCompile(`(?i)^ESPG:?(\d+)`)
	numericOnly = regexp.MustCompile(`^\d+$`)
	digitRun    = regexp.MustCompile(`\d+`)

	// WKT1 puts the CRS authority last; WKT2 uses ID[...].
	wkt1Authority = regexp.MustCompile(`(?i)AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
	wkt2Authority = regexp.MustCompile(`(?i)\bID\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
	wktRoot       = regexp.MustCompile(`(?i)^(GEOGCS|PROJCS|GEOCCS|COMPD_CS|GEOGCRS|PROJCRS|GEODCRS|BASEGEOGCRS)\s*\[`)
)

// Normalize maps a raw attribute value to a canonical identifier.
//
// Rules, after trimming whitespace:
//   - EPSG:<digits> in any case is upper-cased.
//   - The ESPG transposition, followed by digits or :digits, becomes EPSG:.
//   - A purely numeric value (string, integer or integral float) is wrapped.
//   - WKT carrying an EPSG authority yields that authority's code.
//   - A value without a colon but with digits uses its first digit run.
//   - Anything else, including absent and empty values, is DefaultCRS.
func Normalize(v model.AttrValue) model.CRSIdentifier {
	switch v.Kind {
	case model.KindInt:
		if v.Int < 0 {
			return NormalizeString(strconv.FormatInt(v.Int, 10))
		}
		return epsg(strconv.FormatInt(v.Int, 10))
	case model.KindFloat:
		if n, ok := v.IntegralFloat(); ok && n >= 0 {
			return epsg(strconv.FormatInt(n, 10))
		}
		return NormalizeString(v.String())
	case model.KindString:
		return NormalizeString(v.Str)
	default:
		return model.DefaultCRS
	}
}

// NormalizeString applies the Normalize rules to a string value.
func NormalizeString(raw string) model.CRSIdentifier {
	s := strings.TrimSpace(raw)
	if s == "" {
		return model.DefaultCRS
	}
	if m := epsgForm.FindStringSubmatch(s); m != nil {
		return epsg(m[1])
	}
	if m := espgTypo.FindStringSubmatch(s); m != nil {
		return epsg(m[1])
	}
	if numericOnly.MatchString(s) {
		return epsg(s)
	}
	if code, ok := wktCode(s); ok {
		return epsg(code)
	}
	if !strings.Contains(s, ":") {
		if run := digitRun.FindString(s); run != "" {
			return epsg(run)
		}
	}
	return model.DefaultCRS
}

// wktCode returns the EPSG code of the outermost CRS in a WKT string.
func wktCode(s string) (string, bool) {
	if !wktRoot.MatchString(s) {
		return "", false
	}
	if m := wkt1Authority.FindAllStringSubmatch(s, -1); len(m) > 0 {
		return m[len(m)-1][1], true
	}
	if m := wkt2Authority.FindAllStringSubmatch(s, -1); len(m) > 0 {
		return m[len(m)-1][1], true
	}
	return "", false
}

func epsg(code string) model.CRSIdentifier {
	return model.CRSIdentifier("EPSG:" + code)
}
