package catalog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/ingest"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

// Memory is a process-local catalog used by dry runs. Records are lost on
// exit.
type Memory struct {
	mu      sync.Mutex
	nextID  int64
	records map[string]*model.CatalogRecord
	attrs   map[int64][]model.AttributeRow
	log     zerolog.Logger
}

// NewMemory returns an empty catalog.
func NewMemory(log zerolog.Logger) *Memory {
	return &Memory{
		records: make(map[string]*model.CatalogRecord),
		attrs:   make(map[int64][]model.AttributeRow),
		log:     log,
	}
}

func (m *Memory) CreateRecord(_ context.Context, spec model.RecordSpec) (*model.CatalogRecord, error) {
	if len(spec.Resources) == 0 {
		return nil, errors.New("create record: no resources")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if old, ok := m.records[spec.Alternate]; ok {
		if !spec.Replace {
			return nil, errors.Newf("record %s already exists", spec.Alternate)
		}
		delete(m.attrs, old.ID)
	}
	primary := spec.Resources[0]
	m.nextID++
	rec := &model.CatalogRecord{
		ID:           m.nextID,
		LayerName:    spec.LayerName,
		Alternate:    spec.Alternate,
		ExecutionID:  spec.ExecutionID,
		ResourceType: spec.ResourceType,
		CRS:          primary.CRS,
		SRID:         primary.SRID,
		SourcePath:   primary.SourcePath,
		FileSHA256:   spec.FileSHA256,
		Resources:    slices.Clone(spec.Resources),
		CreatedAt:    time.Now().UTC(),
	}
	m.records[rec.Alternate] = rec
	if spec.Metadata != nil {
		m.attrs[rec.ID] = model.InventoryRows(rec.ID, spec.Metadata)
	}
	m.log.Info().Int64("record_id", rec.ID).Str("alternate", rec.Alternate).Msg("dry-run: catalog record")
	cp := *rec
	return &cp, nil
}

func (m *Memory) CopyRecord(_ context.Context, sourceAlternate string, spec model.RecordSpec) (*model.CatalogRecord, error) {
	if len(spec.Resources) == 0 {
		return nil, errors.New("copy record: no resources")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	src, ok := m.records[sourceAlternate]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "alternate %q", sourceAlternate)
	}
	if _, ok := m.records[spec.Alternate]; ok {
		return nil, errors.Newf("record %s already exists", spec.Alternate)
	}
	m.nextID++
	rec := *src
	rec.ID = m.nextID
	rec.LayerName = spec.LayerName
	rec.Alternate = spec.Alternate
	rec.ExecutionID = spec.ExecutionID
	rec.SourcePath = spec.Resources[0].SourcePath
	rec.Resources = slices.Clone(spec.Resources)
	rec.CreatedAt = time.Now().UTC()
	m.records[rec.Alternate] = &rec

	for _, a := range m.attrs[src.ID] {
		a.RecordID = rec.ID
		m.attrs[rec.ID] = append(m.attrs[rec.ID], a)
	}
	cp := rec
	return &cp, nil
}

func (m *Memory) LookupRecord(_ context.Context, alternate string) (*model.CatalogRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[alternate]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "alternate %q", alternate)
	}
	cp := *rec
	cp.Resources = slices.Clone(rec.Resources)
	return &cp, nil
}

func (m *Memory) DeleteByExecution(_ context.Context, executionID uuid.UUID) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for alt, rec := range m.records {
		if rec.ExecutionID == executionID {
			delete(m.records, alt)
			delete(m.attrs, rec.ID)
			n++
		}
	}
	return n, nil
}

// Attributes mirrors Postgres.Attributes.
func (m *Memory) Attributes(_ context.Context, alternate string) ([]model.AttributeRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[alternate]
	if !ok {
		return nil, errors.Wrapf(ErrRecordNotFound, "alternate %q", alternate)
	}
	return append([]model.AttributeRow(nil), m.attrs[rec.ID]...), nil
}

var _ ingest.Catalog = (*Memory)(nil)
