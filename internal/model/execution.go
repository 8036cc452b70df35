package model

import (
	"time"

	"github.com/google/uuid"
)

// ExecutionState is the state of a pipeline execution.
type ExecutionState string

const (
	StatePending        ExecutionState = "PENDING"
	StateRunning        ExecutionState = "RUNNING"
	StateSucceeded      ExecutionState = "SUCCEEDED"
	StateFailed         ExecutionState = "FAILED"
	StateRollingBack    ExecutionState = "ROLLING_BACK"
	StateRolledBack     ExecutionState = "ROLLED_BACK"
	StateRollbackFailed ExecutionState = "ROLLBACK_FAILED"
)

// Terminal reports whether no further transition can happen.
func (s ExecutionState) Terminal() bool {
	switch s {
	case StateSucceeded, StateRolledBack, StateRollbackFailed:
		return true
	}
	return false
}

// Artifacts records the external side effects of an execution so that a
// rollback, in-process or later, knows what to undo.
type Artifacts struct {
	FileSHA256      string         `json:"file_sha256,omitempty"`
	FileSize        int64          `json:"file_size,omitempty"`
	RepairedPaths   []string       `json:"repaired_paths,omitempty"`
	CopiedPaths     []string       `json:"copied_paths,omitempty"`
	PublishTarget   *PublishTarget `json:"publish_target,omitempty"`
	PublishedLayers []string       `json:"published_layers,omitempty"`
	CatalogRecords  []int64        `json:"catalog_records,omitempty"`
	// Superseded is set by a replace that repointed a store owned by an
	// earlier execution. PublishTarget stays nil in that case.
	Superseded *Superseded `json:"superseded,omitempty"`
}

// Superseded is the published state a replace overwrote: the store it
// repointed and the resources that store served before.
type Superseded struct {
	Target      PublishTarget        `json:"target"`
	Resources   []ResourceDescriptor `json:"resources"`
	ExecutionID uuid.UUID            `json:"execution_id"`
}

// PipelineExecution is one run of the orchestrator against one request.
type PipelineExecution struct {
	ID      uuid.UUID
	Request IngestionRequest
	Stages  []StageID
	// Current is the index of the running (or failed) stage; it equals
	// len(Stages) once every stage has completed.
	Current   int
	State     ExecutionState
	Artifacts Artifacts

	Resources []ResourceDescriptor
	Warnings  []string

	Error         string
	RollbackError string

	// Durations holds the wall time of every stage that ran, including
	// rollback stages.
	Durations map[StageID]time.Duration

	StartedAt  time.Time
	UpdatedAt  time.Time
	FinishedAt time.Time
}

// CurrentStage returns the stage at the current index, or "" when past the end.
func (e *PipelineExecution) CurrentStage() StageID {
	if e.Current < 0 || e.Current >= len(e.Stages) {
		return ""
	}
	return e.Stages[e.Current]
}

// Touched returns the stages that may have left external state behind:
// every completed stage plus the one that failed, if any.
func (e *PipelineExecution) Touched() []StageID {
	n := e.Current + 1
	if n > len(e.Stages) {
		n = len(e.Stages)
	}
	if n < 0 {
		n = 0
	}
	return e.Stages[:n]
}

// Completed returns the stages that returned successfully.
func (e *PipelineExecution) Completed() []StageID {
	n := e.Current
	if n > len(e.Stages) {
		n = len(e.Stages)
	}
	if n < 0 {
		n = 0
	}
	return e.Stages[:n]
}
