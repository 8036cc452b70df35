package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

type recorder struct {
	mu   sync.Mutex
	reqs []*model.IngestionRequest
	err  error
}

func (r *recorder) dispatch(_ context.Context, req *model.IngestionRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reqs = append(r.reqs, req)
	return r.err
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.reqs)
}

func (r *recorder) get(i int) *model.IngestionRequest {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.reqs[i]
}

func startWatcher(t *testing.T, dir string, rec *recorder) {
	t.Helper()
	w := New(dir, rec.dispatch, Options{Debounce: 20 * time.Millisecond, Workers: 2, Principal: "watcher"}, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("watcher did not stop")
		}
	})
	// give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)
}

func TestAccepts(t *testing.T) {
	assert.True(t, Accepts("/drop/sst.nc"))
	assert.True(t, Accepts("/drop/SST.NETCDF"))
	assert.True(t, Accepts("/drop/req.yaml"))
	assert.True(t, Accepts("/drop/req.json"))
	assert.False(t, Accepts("/drop/sst_crsfixed.nc"))
	assert.False(t, Accepts("/drop/.sst.nc"))
	assert.False(t, Accepts("/drop/req.yaml.done"))
	assert.False(t, Accepts("/drop/sst.tif"))
}

func TestWatcher_DroppedGrid(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	path := filepath.Join(dir, "sst.nc")
	require.NoError(t, os.WriteFile(path, []byte("CDF\x01"), 0o644))
	// a repaired copy appearing later is not picked up
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sst_crsfixed.nc"), []byte("CDF\x01"), 0o644))

	require.Eventually(t, func() bool { return rec.count() == 1 }, 3*time.Second, 10*time.Millisecond)
	req := rec.get(0)
	assert.Equal(t, model.ActionUpload, req.Action)
	assert.Equal(t, path, req.BaseFile())
	assert.Equal(t, "watcher", req.Principal)

	// rewriting the same file does not dispatch it twice
	require.NoError(t, os.WriteFile(path, []byte("CDF\x01more"), 0o644))
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, rec.count())
}

func TestWatcher_RequestFile(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}
	startWatcher(t, dir, rec)

	path := filepath.Join(dir, "copy.yaml")
	require.NoError(t, os.WriteFile(path, []byte("action: upload\nfiles:\n  base_file: grids/sst.txt\n"), 0o644))

	require.Eventually(t, func() bool {
		_, err := os.Stat(path + DoneSuffix)
		return err == nil
	}, 3*time.Second, 10*time.Millisecond)
	require.Equal(t, 1, rec.count())
	assert.Equal(t, filepath.Join(dir, "grids", "sst.txt"), rec.get(0).BaseFile())
}

func TestWatcher_FailedRequest(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{err: errors.New("boom")}
	startWatcher(t, dir, rec)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"action":"explode"}`), 0o644))
	failing := filepath.Join(dir, "fail.json")
	require.NoError(t, os.WriteFile(failing, []byte(`{"action":"copy","source_alternate":"geonode:sst"}`), 0o644))

	for _, p := range []string{bad, failing} {
		p := p
		require.Eventually(t, func() bool {
			_, err := os.Stat(p + FailedSuffix)
			return err == nil
		}, 3*time.Second, 10*time.Millisecond, p)
	}
	// only the schema-valid one reached dispatch
	assert.Equal(t, 1, rec.count())
}

func TestWatcher_ExistingFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.nc"), []byte("CDF\x01"), 0o644))
	rec := &recorder{}
	startWatcher(t, dir, rec)

	require.Eventually(t, func() bool { return rec.count() == 1 }, 3*time.Second, 10*time.Millisecond)
}
