package exitcode

import "github.com/MarlonSantos/geonode-cloud/internal/model"

const (
	Success         = 0
	UsageError      = 1
	ValidationError = 2
	DBConnError     = 3
	ImportError     = 4
	PublishError    = 5
	CatalogError    = 6
	RollbackFailed  = 7
	Cancelled       = 8
)

// ForStage maps the stage an execution failed in to an exit code.
func ForStage(stage model.StageID) int {
	switch stage {
	case model.StagePublishResource:
		return PublishError
	case model.StageCreateCatalogResource, model.StageCopyCatalogResource, model.StageStartCopy:
		return CatalogError
	case model.StageStartRollback, model.StageRollback:
		return RollbackFailed
	default:
		return ImportError
	}
}
