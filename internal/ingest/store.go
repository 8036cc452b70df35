package ingest

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// ErrExecutionNotFound is returned when an execution id is unknown.
var ErrExecutionNotFound = errors.New("execution not found")

// MemoryStore keeps executions in process memory. It stores deep copies so
// callers can keep mutating the executions they pass in.
type MemoryStore struct {
	mu    sync.Mutex
	execs map[uuid.UUID][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{execs: make(map[uuid.UUID][]byte)}
}

func (s *MemoryStore) CreateExecution(ctx context.Context, exec *model.PipelineExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.execs[exec.ID]; ok {
		return errors.Newf("execution %s already exists", exec.ID)
	}
	return s.put(exec)
}

func (s *MemoryStore) SaveExecution(ctx context.Context, exec *model.PipelineExecution) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.execs[exec.ID]; !ok {
		return errors.Wrapf(ErrExecutionNotFound, "save %s", exec.ID)
	}
	return s.put(exec)
}

func (s *MemoryStore) LoadExecution(ctx context.Context, id uuid.UUID) (*model.PipelineExecution, error) {
	s.mu.Lock()
	b, ok := s.execs[id]
	s.mu.Unlock()
	if !ok {
		return nil, errors.Wrapf(ErrExecutionNotFound, "load %s", id)
	}
	var exec model.PipelineExecution
	if err := json.Unmarshal(b, &exec); err != nil {
		return nil, errors.Wrap(err, "decode execution")
	}
	return &exec, nil
}

func (s *MemoryStore) put(exec *model.PipelineExecution) error {
	b, err := json.Marshal(exec)
	if err != nil {
		return errors.Wrap(err, "encode execution")
	}
	s.execs[exec.ID] = b
	return nil
}
