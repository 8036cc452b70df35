package ingest

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/MarlonSantos/geonode-cloud/internal/handler"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// fakePublisher keeps the stores it serves, keyed "workspace/store", with
// the file each one points at.
type fakePublisher struct {
	mu           sync.Mutex
	stores       map[string]string
	published    [][]model.ResourceDescriptor
	repointed    []model.PublishTarget
	unpublished  []model.PublishTarget
	publishErr   error
	repointErr   error
	unpublishErr error
}

func storeKey(t model.PublishTarget) string {
	return t.Workspace + "/" + t.Store
}

func (p *fakePublisher) Publish(_ context.Context, rs []model.ResourceDescriptor, t model.PublishTarget) (*model.PublishResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.publishErr != nil {
		return nil, p.publishErr
	}
	if p.stores == nil {
		p.stores = make(map[string]string)
	}
	p.stores[storeKey(t)] = rs[0].SourcePath
	p.published = append(p.published, rs)
	res := &model.PublishResult{Target: t}
	for _, r := range rs {
		res.Layers = append(res.Layers, model.PublishedLayer{Name: r.Name, SRS: r.CRS})
	}
	return res, nil
}

func (p *fakePublisher) Repoint(_ context.Context, rs []model.ResourceDescriptor, t model.PublishTarget) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.repointed = append(p.repointed, t)
	if p.repointErr != nil {
		return p.repointErr
	}
	if _, ok := p.stores[storeKey(t)]; !ok {
		return errors.Newf("no store %s", storeKey(t))
	}
	p.stores[storeKey(t)] = rs[0].SourcePath
	return nil
}

func (p *fakePublisher) Unpublish(_ context.Context, t model.PublishTarget) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unpublished = append(p.unpublished, t)
	if p.unpublishErr != nil {
		return p.unpublishErr
	}
	delete(p.stores, storeKey(t))
	return nil
}

// store returns the file served by the store at "workspace/store".
func (p *fakePublisher) store(key string) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	path, ok := p.stores[key]
	return path, ok
}

type fakeCatalog struct {
	mu        sync.Mutex
	nextID    int64
	records   map[int64]*model.CatalogRecord
	specs     []model.RecordSpec
	createErr error
	deleteErr error
}

func newFakeCatalog() *fakeCatalog {
	return &fakeCatalog{records: make(map[int64]*model.CatalogRecord)}
}

func (c *fakeCatalog) add(spec model.RecordSpec, crs model.CRSIdentifier, srid int, path string) *model.CatalogRecord {
	c.nextID++
	rec := &model.CatalogRecord{
		ID:           c.nextID,
		LayerName:    spec.LayerName,
		Alternate:    spec.Alternate,
		ExecutionID:  spec.ExecutionID,
		ResourceType: spec.ResourceType,
		CRS:          crs,
		SRID:         srid,
		SourcePath:   path,
		FileSHA256:   spec.FileSHA256,
		Resources:    append([]model.ResourceDescriptor(nil), spec.Resources...),
	}
	c.records[rec.ID] = rec
	return rec
}

func (c *fakeCatalog) byAlternate(alt string) *model.CatalogRecord {
	for _, rec := range c.records {
		if rec.Alternate == alt {
			return rec
		}
	}
	return nil
}

func (c *fakeCatalog) CreateRecord(_ context.Context, spec model.RecordSpec) (*model.CatalogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	if old := c.byAlternate(spec.Alternate); old != nil {
		if !spec.Replace {
			return nil, errors.Newf("record %s already exists", spec.Alternate)
		}
		delete(c.records, old.ID)
	}
	c.specs = append(c.specs, spec)
	r := spec.Resources[0]
	return c.add(spec, r.CRS, r.SRID, r.SourcePath), nil
}

func (c *fakeCatalog) CopyRecord(_ context.Context, src string, spec model.RecordSpec) (*model.CatalogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return nil, c.createErr
	}
	rec := c.byAlternate(src)
	if rec == nil {
		return nil, errors.Wrapf(ErrRecordNotFound, "alternate %q", src)
	}
	if c.byAlternate(spec.Alternate) != nil {
		return nil, errors.Newf("record %s already exists", spec.Alternate)
	}
	c.specs = append(c.specs, spec)
	return c.add(spec, rec.CRS, rec.SRID, spec.Resources[0].SourcePath), nil
}

func (c *fakeCatalog) LookupRecord(_ context.Context, alternate string) (*model.CatalogRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec := c.byAlternate(alternate)
	if rec == nil {
		return nil, errors.Wrapf(ErrRecordNotFound, "alternate %q", alternate)
	}
	cp := *rec
	cp.Resources = append([]model.ResourceDescriptor(nil), rec.Resources...)
	return &cp, nil
}

func (c *fakeCatalog) DeleteByExecution(_ context.Context, id uuid.UUID) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return 0, c.deleteErr
	}
	var n int64
	for k, rec := range c.records {
		if rec.ExecutionID == id {
			delete(c.records, k)
			n++
		}
	}
	return n, nil
}

func (c *fakeCatalog) lookup(alt string) *model.CatalogRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.byAlternate(alt)
}

func (c *fakeCatalog) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}

type recordingNotifier struct {
	mu     sync.Mutex
	states []model.ExecutionState
}

func (n *recordingNotifier) Notify(_ context.Context, exec *model.PipelineExecution) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.states = append(n.states, exec.State)
}

type mapSource map[string]*model.GridMetadata

func (m mapSource) ReadMetadata(path string) (*model.GridMetadata, error) {
	meta, ok := m[path]
	if !ok {
		return nil, errors.Newf("no such file %s", path)
	}
	return meta, nil
}

type fileRepairer struct{}

// Repair writes a sibling copy and describes it with a WGS-84 grid mapping.
func (fileRepairer) Repair(_ context.Context, path string) (string, error) {
	out := path[:len(path)-len(filepath.Ext(path))] + "_crsfixed.nc"
	b, err := os.ReadFile(path)
	if err != nil {
		return path, err
	}
	return out, os.WriteFile(out, b, 0o644)
}

type env struct {
	dir       string
	file      string
	source    mapSource
	publisher *fakePublisher
	catalog   *fakeCatalog
	store     *MemoryStore
	notifier  *recordingNotifier
	handler   *handler.NetCDF
}

func sstGrid(global model.Attributes) *model.GridMetadata {
	return &model.GridMetadata{
		Dimensions: []model.Dimension{{Name: "lat", Size: 3}, {Name: "lon", Size: 4}},
		Variables: []model.Variable{
			{Name: "lat", Dimensions: []string{"lat"}},
			{Name: "lon", Dimensions: []string{"lon"}},
			{Name: "sst", Dimensions: []string{"lat", "lon"}},
		},
		Global: global,
	}
}

// newEnv writes sst.nc carrying global, wired to fakes.
func newEnv(t *testing.T, global model.Attributes) *env {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "sst.nc")
	require.NoError(t, os.WriteFile(file, []byte("CDF\x01grid"), 0o644))

	repaired := sstGrid(nil)
	repaired.Variables[2].Attributes = model.Attributes{"grid_mapping": model.StringAttr("crs")}
	repaired.Variables = append(repaired.Variables, model.Variable{
		Name:       "crs",
		Attributes: model.Attributes{"epsg_code": model.StringAttr("EPSG:4326")},
	})

	src := mapSource{
		file: sstGrid(global),
		filepath.Join(dir, "sst_crsfixed.nc"): repaired,
	}
	e := &env{
		dir:       dir,
		file:      file,
		source:    src,
		publisher: &fakePublisher{},
		catalog:   newFakeCatalog(),
		store:     NewMemoryStore(),
		notifier:  &recordingNotifier{},
	}
	e.handler = handler.NewNetCDF(src, zerolog.Nop(), handler.WithRepairer(fileRepairer{}))
	return e
}

func (e *env) deps() Deps {
	return Deps{
		Publisher: e.publisher,
		Catalog:   e.catalog,
		Store:     e.store,
		Notifier:  e.notifier,
		DataDir:   filepath.Join(e.dir, "data"),
		Log:       zerolog.Nop(),
	}
}

func (e *env) orchestrator(opts ...Option) *Orchestrator {
	return NewOrchestrator(e.deps(), opts...)
}

func (e *env) upload() *model.IngestionRequest {
	return &model.IngestionRequest{
		Action: model.ActionUpload,
		Files:  map[string]string{model.FileKeyBase: e.file},
	}
}

func failWith(err error) StageFunc {
	return func(context.Context, *Deps, *Run) error { return err }
}
