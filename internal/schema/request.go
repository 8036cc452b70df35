// Package schema loads ingestion request files. Files may be written in
// YAML or JSON and are checked against an embedded JSON schema before they
// are decoded.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"os"
	"sync"

	"github.com/cockroachdb/errors"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

//go:embed request.schema.json
var requestSchema []byte

const requestSchemaID = "inmemory://request.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func requestValidator() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(requestSchemaID, bytes.NewReader(requestSchema)); err != nil {
			compileErr = errors.Wrap(err, "add request schema")
			return
		}
		compiled, compileErr = compiler.Compile(requestSchemaID)
		compileErr = errors.Wrap(compileErr, "compile request schema")
	})
	return compiled, compileErr
}

// LoadRequest reads and validates a request file.
func LoadRequest(path string) (*model.IngestionRequest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read request file")
	}
	req, err := ParseRequest(data)
	if err != nil {
		return nil, errors.Wrapf(err, "request file %s", path)
	}
	return req, nil
}

// ParseRequest validates data against the request schema and decodes it.
func ParseRequest(data []byte) (*model.IngestionRequest, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse request")
	}
	if doc == nil {
		return nil, errors.New("request is empty")
	}

	// Round-trip through JSON so the validator sees JSON types only.
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.Wrap(err, "normalize request")
	}
	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, errors.Wrap(err, "normalize request")
	}

	v, err := requestValidator()
	if err != nil {
		return nil, err
	}
	if err := v.Validate(payload); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return nil, errors.WithDetail(errors.New("request does not match schema"), ve.GoString())
		}
		return nil, errors.Wrap(err, "validate request")
	}

	var req model.IngestionRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, errors.Wrap(err, "decode request")
	}
	return &req, nil
}
