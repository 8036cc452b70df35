package exitcode

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

func TestForStage(t *testing.T) {
	assert.Equal(t, ImportError, ForStage(model.StageStartImport))
	assert.Equal(t, ImportError, ForStage(model.StageCopyRasterFile))
	assert.Equal(t, PublishError, ForStage(model.StagePublishResource))
	assert.Equal(t, CatalogError, ForStage(model.StageCreateCatalogResource))
	assert.Equal(t, CatalogError, ForStage(model.StageStartCopy))
	assert.Equal(t, RollbackFailed, ForStage(model.StageRollback))
}
