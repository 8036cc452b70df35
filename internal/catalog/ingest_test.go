package catalog

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarlonSantos/geonode-cloud/internal/handler"
	"github.com/MarlonSantos/geonode-cloud/internal/ingest"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

type gridSource map[string]*model.GridMetadata

func (g gridSource) ReadMetadata(path string) (*model.GridMetadata, error) {
	meta, ok := g[path]
	if !ok {
		return nil, errors.Newf("no such file %s", path)
	}
	return meta, nil
}

// storePublisher serves stores keyed "workspace/store" with their file.
type storePublisher struct {
	mu     sync.Mutex
	stores map[string]string
}

func (p *storePublisher) Publish(_ context.Context, rs []model.ResourceDescriptor, t model.PublishTarget) (*model.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stores[t.Workspace+"/"+t.Store] = rs[0].SourcePath
	return &model.PublishResult{Target: t, Layers: []model.PublishedLayer{{Name: rs[0].Name, SRS: rs[0].CRS}}}, nil
}

func (p *storePublisher) Repoint(_ context.Context, rs []model.ResourceDescriptor, t model.PublishTarget) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	key := t.Workspace + "/" + t.Store
	if _, ok := p.stores[key]; !ok {
		return errors.Newf("no store %s", key)
	}
	p.stores[key] = rs[0].SourcePath
	return nil
}

func (p *storePublisher) Unpublish(_ context.Context, t model.PublishTarget) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.stores, t.Workspace+"/"+t.Store)
	return nil
}

func (p *storePublisher) snapshot() map[string]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]string, len(p.stores))
	for k, v := range p.stores {
		out[k] = v
	}
	return out
}

func writeGrid(t *testing.T, src gridSource, dir, name string, epsg int64) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("CDF\x01"+name), 0o644))
	src[path] = &model.GridMetadata{
		Dimensions: []model.Dimension{{Name: "lat", Size: 2}, {Name: "lon", Size: 2}},
		Variables: []model.Variable{
			{Name: "lat", Dimensions: []string{"lat"}},
			{Name: "lon", Dimensions: []string{"lon"}},
			{Name: "sst", Dimensions: []string{"lat", "lon"}},
		},
		Global: model.Attributes{"epsg": model.IntAttr(epsg)},
	}
	return path
}

func upload(path string) *model.IngestionRequest {
	return &model.IngestionRequest{
		Action:    model.ActionUpload,
		Files:     map[string]string{model.FileKeyBase: path},
		LayerName: "sst",
	}
}

func TestIngest_ExecutionsDoNotUndoEachOther(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	src := gridSource{}
	v1 := writeGrid(t, src, dir, "sst.nc", 4326)
	v2 := writeGrid(t, src, dir, "sst_v2.nc", 3857)

	cat := NewMemory(zerolog.Nop())
	pub := &storePublisher{stores: map[string]string{}}
	o := ingest.NewOrchestrator(ingest.Deps{Publisher: pub, Catalog: cat, Log: zerolog.Nop()})
	h := handler.NewNetCDF(src, zerolog.Nop())

	first, err := o.Run(ctx, h, upload(v1))
	require.NoError(t, err)
	store := "geonode/sst_" + first.ID.String()[:8]
	require.Equal(t, map[string]string{store: v1}, pub.snapshot())

	// same layer again
	dup, err := o.Run(ctx, h, upload(v1))
	require.Error(t, err)
	assert.Equal(t, model.StateRolledBack, dup.State)
	assert.Equal(t, map[string]string{store: v1}, pub.snapshot())
	rec, err := cat.LookupRecord(ctx, "geonode:sst")
	require.NoError(t, err)
	assert.Equal(t, first.ID, rec.ExecutionID)

	// a replace that fails after repointing puts the old file back
	failing := ingest.NewOrchestrator(ingest.Deps{Publisher: pub, Catalog: cat, Log: zerolog.Nop()},
		ingest.WithStageFunc(model.StageCreateCatalogResource, func(context.Context, *ingest.Deps, *ingest.Run) error {
			return errors.New("catalog down")
		}))
	req := upload(v2)
	req.Action = model.ActionReplace
	replaced, err := failing.Run(ctx, h, req)
	require.Error(t, err)
	assert.Equal(t, model.StateRolledBack, replaced.State)
	assert.Equal(t, map[string]string{store: v1}, pub.snapshot())
	rec, err = cat.LookupRecord(ctx, "geonode:sst")
	require.NoError(t, err)
	assert.Equal(t, first.ID, rec.ExecutionID)

	// a successful replace keeps the store and updates the record
	replaced, err = o.Run(ctx, h, req)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{store: v2}, pub.snapshot())
	rec, err = cat.LookupRecord(ctx, "geonode:sst")
	require.NoError(t, err)
	assert.Equal(t, replaced.ID, rec.ExecutionID)
	assert.Equal(t, model.CRSIdentifier("EPSG:3857"), rec.CRS)
}
