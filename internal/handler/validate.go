package handler

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// Validation failure reasons.
const (
	ReasonMissingFile          = "missing_file"
	ReasonAdditionalDots       = "additional_dots"
	ReasonUnsupportedExtension = "unsupported_extension"
	ReasonMissingExecution     = "missing_execution"
)

// ValidationError is a user-input problem reported before any stage runs.
type ValidationError struct {
	Reason string
	File   string
	Msg    string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Extension returns the lower-cased extension of path without the dot,
// taken after the last path separator and the last dot.
func Extension(path string) string {
	base := filepath.Base(path)
	i := strings.LastIndexByte(base, '.')
	if i < 0 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// validateBaseFile runs the ordered checks shared by every format:
// base file present, at most one dot in the file name, supported extension.
func validateBaseFile(req *model.IngestionRequest, extensions []string) error {
	path := req.BaseFile()
	if path == "" {
		return &ValidationError{Reason: ReasonMissingFile, Msg: "base file is not provided"}
	}

	base := filepath.Base(path)
	if strings.Count(base, ".") > 1 {
		return &ValidationError{
			Reason: ReasonAdditionalDots,
			File:   base,
			Msg:    fmt.Sprintf("please remove the additional dots in the filename %q", base),
		}
	}

	ext := Extension(path)
	for _, e := range extensions {
		if ext == e {
			return nil
		}
	}
	return &ValidationError{
		Reason: ReasonUnsupportedExtension,
		File:   base,
		Msg:    fmt.Sprintf("unsupported file extension %q, expected one of %s", ext, strings.Join(extensions, ", ")),
	}
}
