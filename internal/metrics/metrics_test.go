package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

func TestNoop(t *testing.T) {
	var r Recorder = Noop{}
	r.ObserveStage(model.StageStartImport, time.Second, nil)
	r.IncExecution(model.ActionUpload, model.StateSucceeded)
	r.IncCRSResolution("global:epsg", false, false)
	r.IncRepair(true)
}

func TestProm(t *testing.T) {
	reg := prometheus.NewRegistry()
	p := NewProm("ncload", reg)

	p.ObserveStage(model.StagePublishResource, 20*time.Millisecond, nil)
	p.ObserveStage(model.StagePublishResource, time.Second, errors.New("boom"))
	p.IncExecution(model.ActionUpload, model.StateRolledBack)
	p.IncCRSResolution("global:epsg", false, false)
	p.IncCRSResolution("sst_crs:spatial_ref", false, true)
	p.IncCRSResolution("", true, false)
	p.IncRepair(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.executions.WithLabelValues("upload", "ROLLED_BACK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.resolutions.WithLabelValues("global:epsg", "false", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.resolutions.WithLabelValues("var:spatial_ref", "false", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.resolutions.WithLabelValues("none", "true", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.repairs.WithLabelValues("error")))
	assert.Equal(t, 2, testutil.CollectAndCount(p.stageDuration))

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSourceLabel(t *testing.T) {
	assert.Equal(t, "global:crs_wkt", sourceLabel("global:crs_wkt"))
	assert.Equal(t, "var:epsg_code", sourceLabel("lambert:epsg_code"))
	assert.Equal(t, "none", sourceLabel(""))
	assert.True(t, strings.HasPrefix(sourceLabel("a:b:c"), "var:"))
}
