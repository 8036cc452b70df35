package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/MarlonSantos/geonode-cloud/internal/ingest"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
	embedsql "github.com/MarlonSantos/geonode-cloud/internal/sql"
)

// executionRow holds the JSON encoded columns of an execution.
type executionRow struct {
	request, artifacts, resources, durations []byte
	stages                                   []string
	warnings                                 []string
	finishedAt                               *time.Time
}

func encodeExecution(exec *model.PipelineExecution) (*executionRow, error) {
	var (
		r   executionRow
		err error
	)
	if r.request, err = json.Marshal(exec.Request); err != nil {
		return nil, errors.Wrap(err, "encode request")
	}
	if r.artifacts, err = json.Marshal(exec.Artifacts); err != nil {
		return nil, errors.Wrap(err, "encode artifacts")
	}
	resources := exec.Resources
	if resources == nil {
		resources = []model.ResourceDescriptor{}
	}
	if r.resources, err = json.Marshal(resources); err != nil {
		return nil, errors.Wrap(err, "encode resources")
	}
	durations := make(map[string]int64, len(exec.Durations))
	for stage, d := range exec.Durations {
		durations[string(stage)] = d.Milliseconds()
	}
	if r.durations, err = json.Marshal(durations); err != nil {
		return nil, errors.Wrap(err, "encode durations")
	}

	r.stages = make([]string, len(exec.Stages))
	for i, s := range exec.Stages {
		r.stages[i] = string(s)
	}
	r.warnings = append([]string{}, exec.Warnings...)
	if !exec.FinishedAt.IsZero() {
		t := exec.FinishedAt
		r.finishedAt = &t
	}
	return &r, nil
}

func (r *executionRow) decode(exec *model.PipelineExecution) error {
	if err := json.Unmarshal(r.request, &exec.Request); err != nil {
		return errors.Wrap(err, "decode request")
	}
	if err := json.Unmarshal(r.artifacts, &exec.Artifacts); err != nil {
		return errors.Wrap(err, "decode artifacts")
	}
	if err := json.Unmarshal(r.resources, &exec.Resources); err != nil {
		return errors.Wrap(err, "decode resources")
	}
	var durations map[string]int64
	if err := json.Unmarshal(r.durations, &durations); err != nil {
		return errors.Wrap(err, "decode durations")
	}
	if len(durations) > 0 {
		exec.Durations = make(map[model.StageID]time.Duration, len(durations))
		for stage, ms := range durations {
			exec.Durations[model.StageID(stage)] = time.Duration(ms) * time.Millisecond
		}
	}
	exec.Stages = make([]model.StageID, len(r.stages))
	for i, s := range r.stages {
		exec.Stages[i] = model.StageID(s)
	}
	if len(r.warnings) > 0 {
		exec.Warnings = r.warnings
	}
	if r.finishedAt != nil {
		exec.FinishedAt = *r.finishedAt
	}
	return nil
}

// CreateExecution inserts a new execution.
func (p *Postgres) CreateExecution(ctx context.Context, exec *model.PipelineExecution) error {
	r, err := encodeExecution(exec)
	if err != nil {
		return err
	}
	_, err = p.pool.Exec(ctx, embedsql.InsertExecution,
		exec.ID, string(exec.Request.Action), r.request, r.stages, exec.Current, string(exec.State),
		r.artifacts, r.resources, r.warnings, exec.Error, exec.RollbackError, r.durations,
		exec.StartedAt, exec.UpdatedAt, r.finishedAt,
	)
	return errors.Wrapf(err, "insert execution %s", exec.ID)
}

// SaveExecution overwrites the mutable columns of an existing execution.
func (p *Postgres) SaveExecution(ctx context.Context, exec *model.PipelineExecution) error {
	r, err := encodeExecution(exec)
	if err != nil {
		return err
	}
	tag, err := p.pool.Exec(ctx, embedsql.UpdateExecution,
		exec.ID, exec.Current, string(exec.State),
		r.artifacts, r.resources, r.warnings, exec.Error, exec.RollbackError, r.durations,
		exec.UpdatedAt, r.finishedAt,
	)
	if err != nil {
		return errors.Wrapf(err, "update execution %s", exec.ID)
	}
	if tag.RowsAffected() == 0 {
		return errors.Wrapf(ingest.ErrExecutionNotFound, "execution %s", exec.ID)
	}
	return nil
}

// LoadExecution reads one execution back.
func (p *Postgres) LoadExecution(ctx context.Context, id uuid.UUID) (*model.PipelineExecution, error) {
	exec, err := scanExecution(p.pool.QueryRow(ctx, embedsql.LoadExecution, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ingest.ErrExecutionNotFound, "execution %s", id)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "load execution %s", id)
	}
	return exec, nil
}

// ListExecutions returns the most recent executions, newest first.
func (p *Postgres) ListExecutions(ctx context.Context, limit int) ([]*model.PipelineExecution, error) {
	rows, err := p.pool.Query(ctx, embedsql.ListExecutions, limit)
	if err != nil {
		return nil, errors.Wrap(err, "list executions")
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*model.PipelineExecution, error) {
		return scanExecution(row)
	})
	return out, errors.Wrap(err, "scan executions")
}

func scanExecution(row pgx.Row) (*model.PipelineExecution, error) {
	var (
		exec  model.PipelineExecution
		r     executionRow
		state string
	)
	err := row.Scan(
		&exec.ID, &r.request, &r.stages, &exec.Current, &state,
		&r.artifacts, &r.resources, &r.warnings, &exec.Error, &exec.RollbackError, &r.durations,
		&exec.StartedAt, &exec.UpdatedAt, &r.finishedAt,
	)
	if err != nil {
		return nil, err
	}
	exec.State = model.ExecutionState(state)
	if err := r.decode(&exec); err != nil {
		return nil, err
	}
	return &exec, nil
}

var (
	_ ingest.Catalog        = (*Postgres)(nil)
	_ ingest.ExecutionStore = (*Postgres)(nil)
)
