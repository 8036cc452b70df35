package ingest

import (
	"time"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// Summarize builds the run summary printed by the CLI.
func Summarize(exec *model.PipelineExecution) *model.IngestSummary {
	s := &model.IngestSummary{
		ExecutionID:    exec.ID.String(),
		Action:         exec.Request.Action,
		FilePath:       exec.Request.BaseFile(),
		FileSHA256:     exec.Artifacts.FileSHA256,
		FileSize:       exec.Artifacts.FileSize,
		LayerName:      exec.Request.LayerName,
		Alternate:      exec.Request.Alternate,
		State:          exec.State,
		StagesRun:      len(exec.Completed()),
		StageDurations: make(map[model.StageID]time.Duration, len(exec.Durations)),
	}
	for k, v := range exec.Durations {
		s.StageDurations[k] = v
	}
	if len(exec.Resources) > 0 {
		r := exec.Resources[0]
		s.CRS = r.CRS
		s.Repaired = r.Repaired
		if s.LayerName == "" {
			s.LayerName = r.Name
		}
	}
	if !exec.FinishedAt.IsZero() {
		s.DurationTotal = exec.FinishedAt.Sub(exec.StartedAt)
	}
	return s
}
