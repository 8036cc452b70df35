package model

import (
	"time"

	"github.com/google/uuid"
)

// ResourceDescriptor is the unit handed to the publisher. A repair produces
// a new descriptor pointing at the new file rather than editing an old one.
type ResourceDescriptor struct {
	Name       string        `json:"name"`
	SourcePath string        `json:"source_path"`
	CRS        CRSIdentifier `json:"crs,omitempty"`
	SRID       int           `json:"srid,omitempty"`
	Workspace  string        `json:"workspace,omitempty"`
	Store      string        `json:"store,omitempty"`
	// Variable is the grid variable published as the coverage.
	Variable string `json:"variable,omitempty"`

	// Repaired is set when SourcePath is a repaired copy of the upload.
	Repaired bool `json:"repaired,omitempty"`
	// Degraded is set on the fallback descriptor produced after an
	// unexpected extraction error; it carries no CRS.
	Degraded bool `json:"degraded,omitempty"`
}

// PublishTarget locates where resources are published on the map server.
type PublishTarget struct {
	Workspace string `json:"workspace"`
	Store     string `json:"store"`
}

// PublishedLayer is one layer created by a publish call.
type PublishedLayer struct {
	Name string        `json:"name"`
	SRS  CRSIdentifier `json:"srs"`
}

// PublishResult reports what the publisher created.
type PublishResult struct {
	Target PublishTarget    `json:"target"`
	Layers []PublishedLayer `json:"layers"`
}

// RecordSpec is the input of a catalog createRecord call.
type RecordSpec struct {
	LayerName    string
	Alternate    string
	ExecutionID  uuid.UUID
	ResourceType string
	Principal    string
	FileSHA256   string
	Resources    []ResourceDescriptor
	// Replace overwrites an existing record with the same alternate.
	Replace bool
	// Metadata, when set, is stored as the record's attribute inventory.
	Metadata *GridMetadata
}

// CatalogRecord is a registered resource.
type CatalogRecord struct {
	ID           int64
	LayerName    string
	Alternate    string
	ExecutionID  uuid.UUID
	ResourceType string
	CRS          CRSIdentifier
	SRID         int
	SourcePath   string
	FileSHA256   string
	// Resources are the descriptors registered with the record, including
	// the store they were published to.
	Resources []ResourceDescriptor
	CreatedAt time.Time
}
