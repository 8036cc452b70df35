package ingest

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	exec := &model.PipelineExecution{
		ID:     uuid.New(),
		Stages: []model.StageID{model.StageStartImport},
		State:  model.StatePending,
	}

	require.NoError(t, s.CreateExecution(ctx, exec))
	assert.Error(t, s.CreateExecution(ctx, exec))

	exec.State = model.StateRunning
	exec.Artifacts.CatalogRecords = []int64{7}
	require.NoError(t, s.SaveExecution(ctx, exec))

	// later mutations of the caller's value are not visible
	exec.State = model.StateFailed

	got, err := s.LoadExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StateRunning, got.State)
	assert.Equal(t, []int64{7}, got.Artifacts.CatalogRecords)

	_, err = s.LoadExecution(ctx, uuid.New())
	assert.True(t, errors.Is(err, ErrExecutionNotFound))
	err = s.SaveExecution(ctx, &model.PipelineExecution{ID: uuid.New()})
	assert.True(t, errors.Is(err, ErrExecutionNotFound))
}
