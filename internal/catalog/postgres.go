// Package catalog registers published grids in Postgres and persists
// pipeline executions next to them.
package catalog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/db"
	"github.com/MarlonSantos/geonode-cloud/internal/ingest"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
	embedsql "github.com/MarlonSantos/geonode-cloud/internal/sql"
)

// ErrRecordNotFound is returned when no record has the requested alternate.
var ErrRecordNotFound = ingest.ErrRecordNotFound

const copyBuffer = 256

// Postgres is the catalog backed by the ncload schema.
type Postgres struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewPostgres returns a catalog using pool. Migrations must already be applied.
func NewPostgres(pool *pgxpool.Pool, log zerolog.Logger) *Postgres {
	return &Postgres{pool: pool, log: log}
}

// CreateRecord inserts the record and its attribute inventory in one
// transaction. With spec.Replace an existing record under the same
// alternate is overwritten and its inventory rebuilt.
func (p *Postgres) CreateRecord(ctx context.Context, spec model.RecordSpec) (*model.CatalogRecord, error) {
	if len(spec.Resources) == 0 {
		return nil, errors.New("create record: no resources")
	}
	primary := spec.Resources[0]
	resources, err := json.Marshal(spec.Resources)
	if err != nil {
		return nil, errors.Wrap(err, "encode resources")
	}

	query := embedsql.InsertRecord
	if spec.Replace {
		query = embedsql.UpsertRecord
	}

	rec := &model.CatalogRecord{
		LayerName:    spec.LayerName,
		Alternate:    spec.Alternate,
		ExecutionID:  spec.ExecutionID,
		ResourceType: spec.ResourceType,
		CRS:          primary.CRS,
		SRID:         primary.SRID,
		SourcePath:   primary.SourcePath,
		FileSHA256:   spec.FileSHA256,
		Resources:    spec.Resources,
	}

	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, query,
			rec.LayerName, rec.Alternate, rec.ExecutionID, rec.ResourceType, spec.Principal,
			string(rec.CRS), rec.SRID, rec.SourcePath, rec.FileSHA256, resources,
		).Scan(&rec.ID, &rec.CreatedAt)
		if err != nil {
			return errors.Wrapf(err, "insert record %s", rec.Alternate)
		}

		if spec.Replace {
			if _, err := tx.Exec(ctx, embedsql.DeleteAttributes, rec.ID); err != nil {
				return errors.Wrap(err, "clear replaced inventory")
			}
		}
		if spec.Metadata == nil {
			return nil
		}
		n, err := copyInventory(ctx, tx, model.InventoryRows(rec.ID, spec.Metadata))
		if err != nil {
			return err
		}
		p.log.Debug().Int64("record_id", rec.ID).Int64("attributes", n).Msg("inventory stored")
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// copyInventory streams rows into grid_attributes through COPY.
func copyInventory(ctx context.Context, tx pgx.Tx, rows []model.AttributeRow) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	ch := make(chan *model.AttributeRow, copyBuffer)
	go func() {
		defer close(ch)
		for i := range rows {
			select {
			case ch <- &rows[i]:
			case <-ctx.Done():
				return
			}
		}
	}()

	n, err := tx.CopyFrom(ctx,
		pgx.Identifier{"ncload", "grid_attributes"},
		model.AttributeColumns(),
		db.NewChannelSource[*model.AttributeRow](ch),
	)
	if err != nil {
		return 0, errors.Wrap(err, "copy inventory")
	}
	return n, nil
}

// CopyRecord registers a new record that shares the CRS, checksum and
// inventory of the record at sourceAlternate.
func (p *Postgres) CopyRecord(ctx context.Context, sourceAlternate string, spec model.RecordSpec) (*model.CatalogRecord, error) {
	if len(spec.Resources) == 0 {
		return nil, errors.New("copy record: no resources")
	}
	resources, err := json.Marshal(spec.Resources)
	if err != nil {
		return nil, errors.Wrap(err, "encode resources")
	}

	var rec *model.CatalogRecord
	err = pgx.BeginFunc(ctx, p.pool, func(tx pgx.Tx) error {
		src, err := lookup(ctx, tx, sourceAlternate)
		if err != nil {
			return err
		}
		rec = &model.CatalogRecord{
			LayerName:   spec.LayerName,
			Alternate:   spec.Alternate,
			ExecutionID: spec.ExecutionID,
			SourcePath:  spec.Resources[0].SourcePath,
			Resources:   spec.Resources,
		}
		var crs string
		err = tx.QueryRow(ctx, embedsql.CopyRecord,
			sourceAlternate, rec.LayerName, rec.Alternate, rec.ExecutionID, spec.Principal,
			rec.SourcePath, resources,
		).Scan(&rec.ID, &crs, &rec.SRID, &rec.ResourceType, &rec.FileSHA256, &rec.CreatedAt)
		if err != nil {
			return errors.Wrapf(err, "copy record %s to %s", sourceAlternate, rec.Alternate)
		}
		rec.CRS = model.CRSIdentifier(crs)

		if _, err := tx.Exec(ctx, embedsql.CopyAttributes, src.ID, rec.ID); err != nil {
			return errors.Wrap(err, "copy inventory")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// LookupRecord returns the record registered under alternate.
func (p *Postgres) LookupRecord(ctx context.Context, alternate string) (*model.CatalogRecord, error) {
	return lookup(ctx, p.pool, alternate)
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func lookup(ctx context.Context, q querier, alternate string) (*model.CatalogRecord, error) {
	var (
		rec       model.CatalogRecord
		crs       string
		resources []byte
	)
	err := q.QueryRow(ctx, embedsql.LookupRecord, alternate).Scan(
		&rec.ID, &rec.LayerName, &rec.Alternate, &rec.ExecutionID, &rec.ResourceType,
		&crs, &rec.SRID, &rec.SourcePath, &rec.FileSHA256, &resources, &rec.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, errors.Wrapf(ErrRecordNotFound, "alternate %q", alternate)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "look up record %s", alternate)
	}
	rec.CRS = model.CRSIdentifier(crs)
	if len(resources) > 0 {
		if err := json.Unmarshal(resources, &rec.Resources); err != nil {
			return nil, errors.Wrapf(err, "decode resources of %s", alternate)
		}
	}
	return &rec, nil
}

// DeleteByExecution removes the records created by an execution. Their
// inventories go with them.
func (p *Postgres) DeleteByExecution(ctx context.Context, executionID uuid.UUID) (int64, error) {
	tag, err := p.pool.Exec(ctx, embedsql.DeleteRecordsByExecution, executionID)
	if err != nil {
		return 0, errors.Wrapf(err, "delete records of execution %s", executionID)
	}
	return tag.RowsAffected(), nil
}

// Attributes returns the stored inventory of the record at alternate:
// dimensions first, then global attributes, then per-variable attributes.
func (p *Postgres) Attributes(ctx context.Context, alternate string) ([]model.AttributeRow, error) {
	start := time.Now()
	rows, err := p.pool.Query(ctx, embedsql.ListAttributes, alternate)
	if err != nil {
		return nil, errors.Wrapf(err, "list attributes of %s", alternate)
	}
	out, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.AttributeRow, error) {
		var a model.AttributeRow
		err := row.Scan(&a.RecordID, &a.Entity, &a.Name, &a.Kind, &a.Value)
		return a, err
	})
	if err != nil {
		return nil, errors.Wrapf(err, "scan attributes of %s", alternate)
	}
	p.log.Debug().Str("alternate", alternate).Int("rows", len(out)).Dur("duration", time.Since(start)).Msg("attributes listed")
	return out, nil
}
