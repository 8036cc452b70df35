// Package ingest runs ingestion requests through a handler's stage table and
// rolls back the external side effects of failed executions.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/handler"
	"github.com/MarlonSantos/geonode-cloud/internal/metrics"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// PipelineError wraps an error with the stage where it occurred. RollbackErr
// is set when the rollback that followed failed as well.
type PipelineError struct {
	Stage       model.StageID
	Err         error
	RollbackErr error
}

func (e *PipelineError) Error() string {
	if e.RollbackErr != nil {
		return fmt.Sprintf("%s: %s (rollback failed: %s)", e.Stage, e.Err, e.RollbackErr)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// Deps are the collaborators stage functions use.
type Deps struct {
	Publisher Publisher
	Catalog   Catalog
	Store     ExecutionStore
	Notifier  Notifier
	Metrics   metrics.Recorder
	// DataDir receives raster copies. Empty means next to the source.
	DataDir string
	Log     zerolog.Logger
}

// Run is the mutable state of one execution shared between its stages.
type Run struct {
	Exec    *model.PipelineExecution
	Handler handler.Handler

	// Extraction is set by import-resource and copy-raster-file.
	Extraction *handler.Extraction
	// Source is the record being copied, set by start-copy.
	Source *model.CatalogRecord
	// Replaced is the record a replace overwrites, set by start-import when
	// the alternate is already registered.
	Replaced *model.CatalogRecord
	// Target is the execution being undone by the rollback stages. For an
	// automatic rollback it is Exec itself.
	Target *model.PipelineExecution
}

// Orchestrator drives executions through their stages.
type Orchestrator struct {
	Deps
	stageTimeout time.Duration
	stages       map[model.StageID]StageFunc
	now          func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithStageTimeout bounds every stage. Zero means no bound.
func WithStageTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stageTimeout = d }
}

// WithStageFunc replaces the function run for stage.
func WithStageFunc(stage model.StageID, fn StageFunc) Option {
	return func(o *Orchestrator) { o.stages[stage] = fn }
}

// NewOrchestrator returns an orchestrator using the default stage table.
func NewOrchestrator(deps Deps, opts ...Option) *Orchestrator {
	if deps.Store == nil {
		deps.Store = NewMemoryStore()
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Noop{}
	}
	o := &Orchestrator{
		Deps:   deps,
		stages: DefaultStages(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run executes req with h. Stages run strictly in order. A failing stage
// moves the execution to FAILED and the rollback sequence runs once against
// the same execution. Cancelling ctx is observed between stages only and
// counts as a failure of the stage about to start.
//
// The returned execution is never nil once it has been created; the error
// is a *PipelineError whenever a stage failed.
func (o *Orchestrator) Run(ctx context.Context, h handler.Handler, req *model.IngestionRequest) (*model.PipelineExecution, error) {
	stages, ok := h.Stages(req.Action)
	if !ok {
		return nil, errors.Newf("handler %s does not support action %q", h.Name(), req.Action)
	}

	now := o.now()
	exec := &model.PipelineExecution{
		ID:        uuid.New(),
		Request:   *req,
		Stages:    stages,
		State:     model.StatePending,
		Durations: make(map[model.StageID]time.Duration, len(stages)+2),
		StartedAt: now,
		UpdatedAt: now,
	}
	log := o.Log.With().
		Str("execution_id", exec.ID.String()).
		Str("action", string(req.Action)).
		Str("handler", h.Name()).
		Logger()

	if err := o.Store.CreateExecution(ctx, exec); err != nil {
		return nil, &PipelineError{Stage: stages[0], Err: errors.Wrap(err, "create execution")}
	}
	o.transition(ctx, log, exec, model.StateRunning)

	run := &Run{Exec: exec, Handler: h}
	if req.Action == model.ActionRollback {
		return o.runExplicitRollback(ctx, log, run)
	}

	failed, err := o.forward(ctx, log, run)
	if err == nil {
		o.finish(ctx, log, exec, model.StateSucceeded)
		return exec, nil
	}

	exec.Error = err.Error()
	o.transition(ctx, log, exec, model.StateFailed)
	log.Error().Err(err).Str("stage", string(failed)).Msg("stage failed, rolling back")

	run.Target = exec
	if rbErr := o.rollback(ctx, log, run); rbErr != nil {
		exec.RollbackError = rbErr.Error()
		o.finish(ctx, log, exec, model.StateRollbackFailed)
		return exec, &PipelineError{Stage: failed, Err: err, RollbackErr: rbErr}
	}
	o.finish(ctx, log, exec, model.StateRolledBack)
	return exec, &PipelineError{Stage: failed, Err: err}
}

// forward runs the stage table from exec.Current and returns the failing
// stage and its error.
func (o *Orchestrator) forward(ctx context.Context, log zerolog.Logger, run *Run) (model.StageID, error) {
	exec := run.Exec
	for exec.Current < len(exec.Stages) {
		stage := exec.Stages[exec.Current]
		if err := ctx.Err(); err != nil {
			return stage, errors.Wrap(err, "execution cancelled")
		}
		if err := o.save(ctx, exec); err != nil {
			return stage, err
		}
		if err := o.runStage(ctx, log, run, stage); err != nil {
			return stage, err
		}
		exec.Current++
	}
	return "", nil
}

// rollback runs start-rollback then rollback for run.Target. It is called
// at most once per execution.
func (o *Orchestrator) rollback(ctx context.Context, log zerolog.Logger, run *Run) error {
	o.transition(ctx, log, run.Exec, model.StateRollingBack)
	for _, stage := range []model.StageID{model.StageStartRollback, model.StageRollback} {
		if err := o.runStage(ctx, log, run, stage); err != nil {
			return err
		}
	}
	return nil
}

// runExplicitRollback handles a request whose action is rollback. Its own
// stages undo another execution; there is no rollback of the rollback. On
// success the rollback execution SUCCEEDED and its target is ROLLED_BACK.
// On failure both end ROLLBACK_FAILED, except that a target refused by
// start-rollback is left as it was.
func (o *Orchestrator) runExplicitRollback(ctx context.Context, log zerolog.Logger, run *Run) (*model.PipelineExecution, error) {
	exec := run.Exec
	failed, err := o.forward(ctx, log, run)

	own, target := model.StateSucceeded, model.StateRolledBack
	if err != nil {
		exec.Error = err.Error()
		exec.RollbackError = err.Error()
		own, target = model.StateRollbackFailed, model.StateRollbackFailed
	}
	if run.Target != nil && run.Target.ID != exec.ID {
		run.Target.RollbackError = exec.RollbackError
		o.finish(ctx, log.With().Str("target_execution_id", run.Target.ID.String()).Logger(), run.Target, target)
	}
	o.finish(ctx, log, exec, own)
	if err != nil {
		return exec, &PipelineError{Stage: failed, Err: err, RollbackErr: err}
	}
	return exec, nil
}

func (o *Orchestrator) runStage(ctx context.Context, log zerolog.Logger, run *Run, stage model.StageID) error {
	fn, ok := o.stages[stage]
	if !ok {
		return errors.Newf("no function registered for stage %q", stage)
	}

	// A stage is never interrupted by the caller; only its own timeout
	// bounds it.
	sctx := context.WithoutCancel(ctx)
	if o.stageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(sctx, o.stageTimeout)
		defer cancel()
	}

	stageLog := log.With().Str("stage", string(stage)).Logger()
	stageLog.Info().Msg("stage starting")
	start := o.now()
	err := fn(sctx, &o.Deps, run)
	dur := o.now().Sub(start)

	run.Exec.Durations[stage] += dur
	o.Metrics.ObserveStage(stage, dur, err)
	if err != nil {
		return err
	}
	stageLog.Info().Dur("duration", dur).Msg("stage complete")
	return nil
}

func (o *Orchestrator) transition(ctx context.Context, log zerolog.Logger, exec *model.PipelineExecution, state model.ExecutionState) {
	exec.State = state
	exec.UpdatedAt = o.now()
	if err := o.save(ctx, exec); err != nil {
		log.Warn().Err(err).Str("state", string(state)).Msg("failed to persist execution state")
	}
	o.Notifier.Notify(context.WithoutCancel(ctx), exec)
}

func (o *Orchestrator) finish(ctx context.Context, log zerolog.Logger, exec *model.PipelineExecution, state model.ExecutionState) {
	exec.FinishedAt = o.now()
	o.transition(ctx, log, exec, state)
	o.Metrics.IncExecution(exec.Request.Action, state)

	ev := log.Info()
	if state == model.StateRollbackFailed {
		ev = log.Error().Str("rollback_error", exec.RollbackError)
	}
	ev.Str("state", string(state)).
		Dur("duration", exec.FinishedAt.Sub(exec.StartedAt)).
		Msg("execution finished")
}

func (o *Orchestrator) save(ctx context.Context, exec *model.PipelineExecution) error {
	exec.UpdatedAt = o.now()
	return errors.Wrap(o.Store.SaveExecution(context.WithoutCancel(ctx), exec), "save execution")
}
