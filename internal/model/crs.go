package model

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// CRSIdentifier is a canonical AUTHORITY:CODE reference, e.g. EPSG:4326.
type CRSIdentifier string

// DefaultCRS is used whenever no usable CRS information is present.
const DefaultCRS CRSIdentifier = "EPSG:4326"

func (c CRSIdentifier) String() string { return string(c) }

// Authority returns the part before the colon.
func (c CRSIdentifier) Authority() string {
	auth, _, _ := strings.Cut(string(c), ":")
	return auth
}

// Code returns the part after the colon.
func (c CRSIdentifier) Code() string {
	_, code, _ := strings.Cut(string(c), ":")
	return code
}

// SRID parses the numeric code.
func (c CRSIdentifier) SRID() (int, error) {
	code := c.Code()
	if code == "" {
		return 0, errors.Newf("crs %q has no code", string(c))
	}
	n, err := strconv.Atoi(code)
	if err != nil {
		return 0, errors.Wrapf(err, "crs %q has non-numeric code", string(c))
	}
	return n, nil
}
