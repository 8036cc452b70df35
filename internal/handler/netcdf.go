package handler

import (
	"context"
	"slices"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/gridread"
	"github.com/MarlonSantos/geonode-cloud/internal/metrics"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// ResourceTypeRaster is the catalog resource type of every NetCDF layer.
const ResourceTypeRaster = "raster"

// DefaultWorkspace is the publish workspace used when none is configured.
const DefaultWorkspace = "geonode"

// NetCDFExtensions are the accepted base-file extensions.
var NetCDFExtensions = []string{"nc", "netcdf"}

var netcdfStages = map[model.Action][]model.StageID{
	model.ActionUpload: {
		model.StageStartImport,
		model.StageImportResource,
		model.StagePublishResource,
		model.StageCreateCatalogResource,
	},
	model.ActionReplace: {
		model.StageStartImport,
		model.StageImportResource,
		model.StagePublishResource,
		model.StageCreateCatalogResource,
	},
	model.ActionCopy: {
		model.StageStartCopy,
		model.StageCopyRasterFile,
		model.StagePublishResource,
		model.StageCopyCatalogResource,
	},
	model.ActionRollback: {
		model.StageStartRollback,
		model.StageRollback,
	},
}

var netcdfActions = []model.Action{
	model.ActionUpload,
	model.ActionCopy,
	model.ActionReplace,
	model.ActionRollback,
}

// Repairer writes a repaired copy of a grid file and returns its path. On
// failure it returns the input path unchanged.
type Repairer interface {
	Repair(ctx context.Context, path string) (string, error)
}

// NetCDF handles NetCDF raster uploads.
type NetCDF struct {
	source    gridread.MetadataSource
	repairer  Repairer
	workspace string
	metrics   metrics.Recorder
	log       zerolog.Logger
}

// Option configures a NetCDF handler.
type Option func(*NetCDF)

// WithRepairer enables CRS repair of files without any CRS information.
func WithRepairer(r Repairer) Option {
	return func(h *NetCDF) { h.repairer = r }
}

// WithWorkspace sets the publish workspace written into descriptors.
func WithWorkspace(ws string) Option {
	return func(h *NetCDF) {
		if ws != "" {
			h.workspace = ws
		}
	}
}

// WithMetrics records CRS resolution outcomes.
func WithMetrics(m metrics.Recorder) Option {
	return func(h *NetCDF) { h.metrics = m }
}

// NewNetCDF returns the NetCDF handler reading metadata from source.
func NewNetCDF(source gridread.MetadataSource, log zerolog.Logger, opts ...Option) *NetCDF {
	h := &NetCDF{
		source:    source,
		workspace: DefaultWorkspace,
		metrics:   metrics.Noop{},
		log:       log.With().Str("handler", "netcdf").Logger(),
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

func (h *NetCDF) Name() string { return "netcdf" }

// Workspace is the workspace descriptors are published to.
func (h *NetCDF) Workspace() string { return h.workspace }

// CanHandle is true iff a base file with a NetCDF extension is present and
// the action is supported.
func (h *NetCDF) CanHandle(req *model.IngestionRequest) bool {
	if req == nil {
		return false
	}
	path := req.BaseFile()
	if path == "" {
		return false
	}
	if !slices.Contains(NetCDFExtensions, Extension(path)) {
		return false
	}
	_, ok := netcdfStages[req.Action]
	return ok
}

// Validate checks the request without opening the file. A rollback must
// also name the execution it undoes.
func (h *NetCDF) Validate(req *model.IngestionRequest) error {
	if err := validateBaseFile(req, NetCDFExtensions); err != nil {
		return err
	}
	if req.Action == model.ActionRollback && req.ExecutionID == uuid.Nil {
		return &ValidationError{Reason: ReasonMissingExecution, Msg: "rollback requires the execution id to undo"}
	}
	return nil
}

func (h *NetCDF) Stages(action model.Action) ([]model.StageID, bool) {
	stages, ok := netcdfStages[action]
	if !ok {
		return nil, false
	}
	return slices.Clone(stages), true
}

func (h *NetCDF) Actions() []model.Action {
	return slices.Clone(netcdfActions)
}
