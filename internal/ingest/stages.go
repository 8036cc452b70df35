package ingest

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"slices"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"

	"github.com/MarlonSantos/geonode-cloud/internal/handler"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
	"github.com/MarlonSantos/geonode-cloud/internal/normalize"
)

// StageFunc is the body of one stage. Stage functions record every external
// side effect in run.Exec.Artifacts before or as they make it, so that the
// rollback stage can undo partial work.
type StageFunc func(ctx context.Context, d *Deps, run *Run) error

// DefaultStages returns the stage function table.
func DefaultStages() map[model.StageID]StageFunc {
	return map[model.StageID]StageFunc{
		model.StageStartImport:           startImport,
		model.StageImportResource:        importResource,
		model.StagePublishResource:       publishResource,
		model.StageCreateCatalogResource: createCatalogResource,
		model.StageStartCopy:             startCopy,
		model.StageCopyRasterFile:        copyRasterFile,
		model.StageCopyCatalogResource:   copyCatalogResource,
		model.StageStartRollback:         startRollback,
		model.StageRollback:              rollbackStage,
	}
}

func startImport(ctx context.Context, d *Deps, run *Run) error {
	path := run.Exec.Request.BaseFile()
	sum, size, err := normalize.FileHashSize(path)
	if err != nil {
		return errors.Wrap(err, "start import")
	}
	run.Exec.Artifacts.FileSHA256 = sum
	run.Exec.Artifacts.FileSize = size
	if err := claimAlternate(ctx, d, run); err != nil {
		return err
	}

	d.Log.Info().
		Str("execution_id", run.Exec.ID.String()).
		Str("file", filepath.Base(path)).
		Str("sha256", sum).
		Str("size", humanize.IBytes(uint64(size))).
		Msg("import started")
	return nil
}

func importResource(ctx context.Context, d *Deps, run *Run) error {
	ext, err := run.Handler.Extract(ctx, &run.Exec.Request)
	if err != nil {
		return errors.Wrap(err, "extract resources")
	}
	return acceptExtraction(run, ext)
}

func acceptExtraction(run *Run, ext *handler.Extraction) error {
	for _, r := range ext.Resources {
		if r.Repaired {
			run.Exec.Artifacts.RepairedPaths = append(run.Exec.Artifacts.RepairedPaths, r.SourcePath)
		}
	}
	run.Extraction = ext
	run.Exec.Resources = ext.Resources
	run.Exec.Warnings = append(run.Exec.Warnings, ext.Warnings...)
	if len(ext.Resources) == 0 {
		return errors.New("extraction produced no resources")
	}
	return nil
}

func publishResource(ctx context.Context, d *Deps, run *Run) error {
	resources := run.Exec.Resources
	if len(resources) == 0 {
		return errors.New("publish: no resources")
	}
	if run.Replaced != nil {
		return repointResource(ctx, d, run)
	}
	target := publishTarget(run)

	// Recorded before the call so a half-created store is still removed.
	run.Exec.Artifacts.PublishTarget = &target
	persistArtifacts(ctx, d, run)
	res, err := d.Publisher.Publish(ctx, resources, target)
	if err != nil {
		return errors.Wrapf(err, "publish to %s/%s", target.Workspace, target.Store)
	}
	stampTarget(run, target)
	for _, l := range res.Layers {
		run.Exec.Artifacts.PublishedLayers = append(run.Exec.Artifacts.PublishedLayers, l.Name)
	}
	return nil
}

// repointResource serves a replace of a registered layer: the store that
// layer was published with is pointed at the new file. The store stays
// owned by the execution that created it; the undo points it back.
func repointResource(ctx context.Context, d *Deps, run *Run) error {
	old := recordResources(run.Replaced)
	target := model.PublishTarget{Workspace: old[0].Workspace, Store: old[0].Store}
	run.Exec.Artifacts.Superseded = &model.Superseded{
		Target:      target,
		Resources:   old,
		ExecutionID: run.Replaced.ExecutionID,
	}
	persistArtifacts(ctx, d, run)

	if err := d.Publisher.Repoint(ctx, run.Exec.Resources, target); err != nil {
		return errors.Wrapf(err, "repoint %s/%s", target.Workspace, target.Store)
	}
	stampTarget(run, target)
	for _, r := range run.Exec.Resources {
		run.Exec.Artifacts.PublishedLayers = append(run.Exec.Artifacts.PublishedLayers, r.Name)
	}
	d.Log.Info().
		Str("execution_id", run.Exec.ID.String()).
		Str("store", target.Store).
		Str("replaced_execution_id", run.Replaced.ExecutionID.String()).
		Msg("store repointed")
	return nil
}

// publishTarget names a store that belongs to this execution alone, so
// undoing it never removes what another execution published.
func publishTarget(run *Run) model.PublishTarget {
	r := run.Exec.Resources[0]
	t := model.PublishTarget{Workspace: r.Workspace, Store: r.Store}
	if t.Workspace == "" {
		t.Workspace = handler.DefaultWorkspace
	}
	if t.Store == "" {
		t.Store = r.Name
	}
	t.Store += "_" + shortID(run.Exec)
	return t
}

func stampTarget(run *Run, t model.PublishTarget) {
	for i := range run.Exec.Resources {
		run.Exec.Resources[i].Workspace = t.Workspace
		run.Exec.Resources[i].Store = t.Store
	}
}

// recordResources returns the descriptors rec was published with. Records
// that carry none get one rebuilt from their columns.
func recordResources(rec *model.CatalogRecord) []model.ResourceDescriptor {
	out := slices.Clone(rec.Resources)
	if len(out) == 0 {
		out = []model.ResourceDescriptor{{
			Name:       rec.LayerName,
			SourcePath: rec.SourcePath,
			CRS:        rec.CRS,
			SRID:       rec.SRID,
		}}
	}
	for i := range out {
		if out[i].Workspace == "" {
			out[i].Workspace = handler.DefaultWorkspace
		}
		if out[i].Store == "" {
			out[i].Store = out[i].Name
		}
	}
	return out
}

func shortID(exec *model.PipelineExecution) string {
	return exec.ID.String()[:8]
}

// requestAlternate is the alternate the request registers. It is known
// before any resource has been extracted.
func requestAlternate(run *Run) string {
	req := &run.Exec.Request
	if req.Alternate != "" {
		return req.Alternate
	}
	ws := handler.DefaultWorkspace
	if w, ok := run.Handler.(interface{ Workspace() string }); ok && w.Workspace() != "" {
		ws = w.Workspace()
	}
	return normalize.Alternate(ws, handler.LayerName(req))
}

// claimAlternate refuses an upload or copy whose alternate is already
// registered. A replace keeps the record it is about to overwrite.
func claimAlternate(ctx context.Context, d *Deps, run *Run) error {
	alt := requestAlternate(run)
	rec, err := d.Catalog.LookupRecord(ctx, alt)
	if errors.Is(err, ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "look up %s", alt)
	}
	if run.Exec.Request.Action == model.ActionReplace {
		run.Replaced = rec
		return nil
	}
	return errors.WithHint(
		errors.Newf("%s is already registered by execution %s", alt, rec.ExecutionID),
		"use the replace action to overwrite it")
}

// persistArtifacts saves the execution before a stage makes an external
// change, so a process that dies mid-call still leaves a record of it.
func persistArtifacts(ctx context.Context, d *Deps, run *Run) {
	if err := d.Store.SaveExecution(ctx, run.Exec); err != nil {
		d.Log.Warn().Err(err).Str("execution_id", run.Exec.ID.String()).Msg("failed to persist artifacts")
	}
}

func recordSpec(run *Run) model.RecordSpec {
	req := run.Exec.Request
	r := run.Exec.Resources[0]
	spec := model.RecordSpec{
		LayerName:    r.Name,
		Alternate:    requestAlternate(run),
		ExecutionID:  run.Exec.ID,
		ResourceType: handler.ResourceTypeRaster,
		Principal:    req.Principal,
		FileSHA256:   run.Exec.Artifacts.FileSHA256,
		Resources:    run.Exec.Resources,
		Replace:      req.Action == model.ActionReplace,
	}
	if run.Extraction != nil {
		spec.Metadata = run.Extraction.Metadata
	}
	return spec
}

func createCatalogResource(ctx context.Context, d *Deps, run *Run) error {
	if len(run.Exec.Resources) == 0 {
		return errors.New("create catalog resource: no resources")
	}
	rec, err := d.Catalog.CreateRecord(ctx, recordSpec(run))
	if err != nil {
		return errors.Wrap(err, "create catalog record")
	}
	run.Exec.Artifacts.CatalogRecords = append(run.Exec.Artifacts.CatalogRecords, rec.ID)
	d.Log.Info().
		Str("execution_id", run.Exec.ID.String()).
		Int64("record_id", rec.ID).
		Str("alternate", rec.Alternate).
		Str("crs", rec.CRS.String()).
		Msg("catalog record created")
	return nil
}

func startCopy(ctx context.Context, d *Deps, run *Run) error {
	alt := run.Exec.Request.SourceAlternate
	if alt == "" {
		return errors.New("copy requires a source alternate")
	}
	src, err := d.Catalog.LookupRecord(ctx, alt)
	if err != nil {
		return errors.Wrapf(err, "look up %s", alt)
	}
	run.Source = src
	run.Exec.Artifacts.FileSHA256 = src.FileSHA256
	return claimAlternate(ctx, d, run)
}

func copyRasterFile(ctx context.Context, d *Deps, run *Run) error {
	src := run.Exec.Request.BaseFile()
	if src == "" && run.Source != nil {
		src = run.Source.SourcePath
	}
	layer := handler.LayerName(&run.Exec.Request)
	dir := d.DataDir
	if dir == "" {
		dir = filepath.Dir(src)
	}
	dst := filepath.Join(dir, layer+"_"+shortID(run.Exec)+filepath.Ext(src))

	// Recorded first so a partial copy is removed too.
	run.Exec.Artifacts.CopiedPaths = append(run.Exec.Artifacts.CopiedPaths, dst)
	persistArtifacts(ctx, d, run)
	n, err := copyFile(ctx, src, dst)
	if err != nil {
		return errors.Wrap(err, "copy raster file")
	}
	d.Log.Info().
		Str("execution_id", run.Exec.ID.String()).
		Str("from", src).
		Str("to", dst).
		Str("size", humanize.IBytes(uint64(n))).
		Msg("raster copied")
	run.Exec.Artifacts.FileSize = n

	req := run.Exec.Request
	req.Files = map[string]string{model.FileKeyBase: dst}
	req.LayerName = layer
	ext, err := run.Handler.Extract(ctx, &req)
	if err != nil {
		return errors.Wrap(err, "extract copied resources")
	}
	if run.Source != nil {
		for i := range ext.Resources {
			ext.Resources[i].CRS = run.Source.CRS
			ext.Resources[i].SRID = run.Source.SRID
		}
	}
	return acceptExtraction(run, ext)
}

func copyCatalogResource(ctx context.Context, d *Deps, run *Run) error {
	if run.Source == nil {
		return errors.New("copy catalog resource: source record not loaded")
	}
	if len(run.Exec.Resources) == 0 {
		return errors.New("copy catalog resource: no resources")
	}
	rec, err := d.Catalog.CopyRecord(ctx, run.Source.Alternate, recordSpec(run))
	if err != nil {
		return errors.Wrapf(err, "copy catalog record %s", run.Source.Alternate)
	}
	run.Exec.Artifacts.CatalogRecords = append(run.Exec.Artifacts.CatalogRecords, rec.ID)
	return nil
}

// startRollback resolves the execution to undo: the request's target for an
// explicit rollback, the running execution otherwise.
func startRollback(ctx context.Context, d *Deps, run *Run) error {
	if run.Target == nil {
		target, err := loadRollbackTarget(ctx, d, run)
		if err != nil {
			return err
		}
		run.Target = target
	}
	if run.Target.ID != run.Exec.ID {
		run.Target.State = model.StateRollingBack
		if err := d.Store.SaveExecution(ctx, run.Target); err != nil {
			return errors.Wrap(err, "mark target rolling back")
		}
		d.Notifier.Notify(ctx, run.Target)
	}
	d.Log.Info().
		Str("execution_id", run.Exec.ID.String()).
		Str("target_execution_id", run.Target.ID.String()).
		Strs("stages", stageNames(run.Target.Touched())).
		Msg("rollback started")
	return nil
}

func loadRollbackTarget(ctx context.Context, d *Deps, run *Run) (*model.PipelineExecution, error) {
	req := run.Exec.Request
	target, err := d.Store.LoadExecution(ctx, req.ExecutionID)
	if err != nil {
		return nil, errors.Wrapf(err, "load execution %s", req.ExecutionID)
	}
	switch target.State {
	case model.StateRolledBack:
		return nil, errors.Newf("execution %s is already rolled back", target.ID)
	case model.StateRunning, model.StatePending, model.StateRollingBack:
		if !req.Force {
			return nil, errors.WithHint(
				errors.Newf("execution %s is still %s", target.ID, target.State),
				"if the process that ran it is gone, roll back with --force")
		}
		d.Log.Warn().
			Str("target_execution_id", target.ID.String()).
			Str("state", string(target.State)).
			Time("updated_at", target.UpdatedAt).
			Msg("forcing rollback of an unfinished execution")
	}
	if s := target.Artifacts.Superseded; s != nil && target.State == model.StateSucceeded {
		return nil, errors.WithHint(
			errors.Newf("execution %s replaced the layer published by execution %s and the previous version is not kept",
				target.ID, s.ExecutionID),
			"run replace again with the previous file")
	}
	return target, nil
}

func rollbackStage(ctx context.Context, d *Deps, run *Run) error {
	if run.Target == nil {
		return errors.New("rollback: no target execution")
	}
	return Undo(ctx, d, run.Target)
}

func stageNames(stages []model.StageID) []string {
	out := make([]string, len(stages))
	for i, s := range stages {
		out[i] = string(s)
	}
	return out
}

func copyFile(ctx context.Context, src, dst string) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, &ctxReader{ctx: ctx, r: in})
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// ctxReader stops a long copy once the stage deadline passes.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
