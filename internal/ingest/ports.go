package ingest

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// ErrRecordNotFound is returned by Catalog.LookupRecord when no record has
// the requested alternate.
var ErrRecordNotFound = errors.New("catalog record not found")

// Publisher makes resources visible on the map server.
type Publisher interface {
	// Publish creates the store at target and one layer per resource.
	Publish(ctx context.Context, resources []model.ResourceDescriptor, target model.PublishTarget) (*model.PublishResult, error)
	// Repoint points the existing store at target to the first resource's
	// file and re-declares the SRS of each resource's existing layer.
	Repoint(ctx context.Context, resources []model.ResourceDescriptor, target model.PublishTarget) error
	// Unpublish removes everything under target. Removing a target that
	// does not exist is not an error.
	Unpublish(ctx context.Context, target model.PublishTarget) error
}

// Catalog registers published resources.
type Catalog interface {
	CreateRecord(ctx context.Context, spec model.RecordSpec) (*model.CatalogRecord, error)
	// CopyRecord registers a new record derived from the record whose
	// alternate is sourceAlternate.
	CopyRecord(ctx context.Context, sourceAlternate string, spec model.RecordSpec) (*model.CatalogRecord, error)
	// LookupRecord returns an error matching ErrRecordNotFound when no
	// record is registered under alternate.
	LookupRecord(ctx context.Context, alternate string) (*model.CatalogRecord, error)
	// DeleteByExecution removes every record created by the execution and
	// reports how many were removed.
	DeleteByExecution(ctx context.Context, executionID uuid.UUID) (int64, error)
}

// ExecutionStore persists executions so that they can be inspected and
// rolled back later.
type ExecutionStore interface {
	CreateExecution(ctx context.Context, exec *model.PipelineExecution) error
	SaveExecution(ctx context.Context, exec *model.PipelineExecution) error
	LoadExecution(ctx context.Context, id uuid.UUID) (*model.PipelineExecution, error)
}

// Notifier is told about every execution state transition.
type Notifier interface {
	Notify(ctx context.Context, exec *model.PipelineExecution)
}

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, *model.PipelineExecution) {}
