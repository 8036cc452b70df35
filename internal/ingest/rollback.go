package ingest

import (
	"context"
	"os"

	"github.com/cockroachdb/errors"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// undoFunc reverses the external effects one stage recorded in the
// execution's artifacts.
type undoFunc func(ctx context.Context, d *Deps, exec *model.PipelineExecution) error

var undoTable = map[model.StageID]undoFunc{
	model.StageImportResource:        undoRepair,
	model.StagePublishResource:       undoPublish,
	model.StageCreateCatalogResource: undoCatalog,
	model.StageCopyRasterFile:        undoCopy,
	model.StageCopyCatalogResource:   undoCatalog,
}

// Undo reverses every stage of exec that may have left external state, in
// reverse order. It keeps going after a failure and returns all failures
// joined.
func Undo(ctx context.Context, d *Deps, exec *model.PipelineExecution) error {
	touched := exec.Touched()
	var failures []error
	for i := len(touched) - 1; i >= 0; i-- {
		stage := touched[i]
		fn, ok := undoTable[stage]
		if !ok {
			continue
		}
		if err := fn(ctx, d, exec); err != nil {
			d.Log.Error().
				Err(err).
				Str("execution_id", exec.ID.String()).
				Str("stage", string(stage)).
				Msg("undo failed")
			failures = append(failures, errors.Wrapf(err, "undo %s", stage))
			continue
		}
		d.Log.Info().
			Str("execution_id", exec.ID.String()).
			Str("stage", string(stage)).
			Msg("stage undone")
	}
	return errors.Join(failures...)
}

func undoCatalog(ctx context.Context, d *Deps, exec *model.PipelineExecution) error {
	n, err := d.Catalog.DeleteByExecution(ctx, exec.ID)
	if err != nil {
		return err
	}
	d.Log.Debug().Int64("records_deleted", n).Msg("catalog records removed")
	return nil
}

// undoPublish removes the store the execution created, or points a store
// it repointed back at the files it served before.
func undoPublish(ctx context.Context, d *Deps, exec *model.PipelineExecution) error {
	var failures []error
	if s := exec.Artifacts.Superseded; s != nil {
		if err := d.Publisher.Repoint(ctx, s.Resources, s.Target); err != nil {
			failures = append(failures, errors.Wrapf(err, "restore %s/%s", s.Target.Workspace, s.Target.Store))
		}
	}
	if t := exec.Artifacts.PublishTarget; t != nil {
		if err := d.Publisher.Unpublish(ctx, *t); err != nil {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}

func undoRepair(ctx context.Context, d *Deps, exec *model.PipelineExecution) error {
	return removeAll(exec.Artifacts.RepairedPaths)
}

func undoCopy(ctx context.Context, d *Deps, exec *model.PipelineExecution) error {
	return removeAll(exec.Artifacts.CopiedPaths)
}

func removeAll(paths []string) error {
	var failures []error
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			failures = append(failures, err)
		}
	}
	return errors.Join(failures...)
}
