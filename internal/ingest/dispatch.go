package ingest

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/handler"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// ErrUploadTooLarge is returned when the base file exceeds the upload limit.
var ErrUploadTooLarge = errors.New("upload exceeds size limit")

// Dispatcher is the request router: it selects the handler for a request,
// validates the request and runs it.
type Dispatcher struct {
	registry *handler.Registry
	orch     *Orchestrator
	limit    int64
	log      zerolog.Logger
}

// NewDispatcher returns a dispatcher. limit is the maximum base file size
// in bytes; zero disables the check.
func NewDispatcher(registry *handler.Registry, orch *Orchestrator, limit int64, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, orch: orch, limit: limit, log: log}
}

// Dispatch validates req and runs it. Capability and validation failures
// are returned before any execution is created.
func (d *Dispatcher) Dispatch(ctx context.Context, req *model.IngestionRequest) (*model.PipelineExecution, error) {
	h, err := d.registry.Select(req)
	if err != nil {
		return nil, err
	}
	if err := h.Validate(req); err != nil {
		d.log.Warn().Err(err).Str("file", req.BaseFile()).Msg("request rejected")
		return nil, err
	}
	if err := d.checkSize(req); err != nil {
		return nil, err
	}
	return d.orch.Run(ctx, h, req)
}

func (d *Dispatcher) checkSize(req *model.IngestionRequest) error {
	if d.limit <= 0 || req.Action == model.ActionRollback || req.Action == model.ActionCopy {
		return nil
	}
	st, err := os.Stat(req.BaseFile())
	if err != nil {
		return errors.Wrap(err, "stat base file")
	}
	if st.Size() > d.limit {
		return errors.WithHintf(
			errors.Wrapf(ErrUploadTooLarge, "%s is %s", req.BaseFile(), humanize.IBytes(uint64(st.Size()))),
			"the limit is %s", humanize.IBytes(uint64(d.limit)))
	}
	return nil
}

// RollbackRequest builds the request that undoes target.
func RollbackRequest(target *model.PipelineExecution, principal string) *model.IngestionRequest {
	files := make(map[string]string, len(target.Request.Files))
	for k, v := range target.Request.Files {
		files[k] = v
	}
	return &model.IngestionRequest{
		Action:      model.ActionRollback,
		Files:       files,
		LayerName:   target.Request.LayerName,
		Alternate:   target.Request.Alternate,
		Principal:   principal,
		ExecutionID: target.ID,
	}
}
