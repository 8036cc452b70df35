package model

import "time"

// IngestSummary captures metrics from a single pipeline execution.
type IngestSummary struct {
	ExecutionID    string
	Action         Action
	FilePath       string
	FileSHA256     string
	FileSize       int64
	LayerName      string
	Alternate      string
	CRS            CRSIdentifier
	Repaired       bool
	State          ExecutionState
	StagesRun      int
	StageDurations map[StageID]time.Duration
	DurationTotal  time.Duration
}
