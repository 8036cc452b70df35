// Package handler holds the per-format ingestion handlers and the registry
// the dispatch boundary selects them from.
package handler

import (
	"context"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// Handler is the contract a file format exposes to the dispatcher.
type Handler interface {
	// Name identifies the handler in logs and events.
	Name() string
	// CanHandle is a pure predicate; a false result is not an error.
	CanHandle(req *model.IngestionRequest) bool
	// Validate is a cheap gate run before any stage. It never opens the
	// file and returns a *ValidationError on rejection.
	Validate(req *model.IngestionRequest) error
	// Extract builds the resource descriptors for the request's files.
	Extract(ctx context.Context, req *model.IngestionRequest) (*Extraction, error)
	// Stages returns the ordered stage table for action.
	Stages(action model.Action) ([]model.StageID, bool)
	// Actions lists the supported actions.
	Actions() []model.Action
}

// Extraction is the result of Handler.Extract.
type Extraction struct {
	Resources []model.ResourceDescriptor
	// Warnings carry degradations the caller must surface, such as a
	// defaulted CRS or a fallback descriptor.
	Warnings []string
	// Metadata is the metadata the descriptors were built from, nil for
	// copies and degraded extractions.
	Metadata *model.GridMetadata
}
