package model

import (
	"github.com/google/uuid"
)

// Action is what an ingestion request asks the pipeline to do.
type Action string

const (
	ActionUpload   Action = "upload"
	ActionCopy     Action = "copy"
	ActionReplace  Action = "replace"
	ActionRollback Action = "rollback"
)

// FileKeyBase is the files-map key of the primary grid file.
const FileKeyBase = "base_file"

// StageID names one unit of work in a pipeline execution.
type StageID string

const (
	StageStartImport           StageID = "start-import"
	StageImportResource        StageID = "import-resource"
	StagePublishResource       StageID = "publish-resource"
	StageCreateCatalogResource StageID = "create-catalog-resource"
	StageStartCopy             StageID = "start-copy"
	StageCopyRasterFile        StageID = "copy-raster-file"
	StageCopyCatalogResource   StageID = "copy-catalog-resource"
	StageStartRollback         StageID = "start-rollback"
	StageRollback              StageID = "rollback"
)

// IngestionRequest is one request handed to the pipeline by the dispatch
// boundary.
type IngestionRequest struct {
	Action    Action            `json:"action"`
	Files     map[string]string `json:"files"`
	LayerName string            `json:"layer_name,omitempty"`
	Alternate string            `json:"alternate,omitempty"`
	Principal string            `json:"principal,omitempty"`

	// ExecutionID is the execution to undo when Action is rollback.
	ExecutionID uuid.UUID `json:"execution_id,omitempty"`
	// Force lets a rollback undo an execution still recorded as running,
	// for when the process that ran it died.
	Force bool `json:"force,omitempty"`
	// SourceAlternate is the published resource being duplicated by a copy.
	SourceAlternate string `json:"source_alternate,omitempty"`
}

// BaseFile returns the base file path, or "" when none was provided.
func (r *IngestionRequest) BaseFile() string {
	if r == nil || r.Files == nil {
		return ""
	}
	return r.Files[FileKeyBase]
}
