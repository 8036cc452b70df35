package catalog

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MarlonSantos/geonode-cloud/internal/db"
	"github.com/MarlonSantos/geonode-cloud/internal/ingest"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
)

const (
	testPort     = 15432
	testDB       = "ncloadtest"
	testUser     = "postgres"
	testPassword = "postgres"
)

// testDSN is empty unless NCLOAD_PG_TESTS=1 started an embedded server.
var testDSN string

func TestMain(m *testing.M) {
	if os.Getenv("NCLOAD_PG_TESTS") != "1" {
		os.Exit(m.Run())
	}

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30 * time.Second),
	)
	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}
	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}
	os.Exit(code)
}

// setupDB drops the ncload schema, reapplies migrations and returns a catalog.
func setupDB(t *testing.T) (*Postgres, *pgxpool.Pool) {
	t.Helper()
	if testDSN == "" {
		t.Skip("set NCLOAD_PG_TESTS=1 to run against embedded postgres")
	}
	ctx := context.Background()

	pool, err := db.NewPool(ctx, testDSN, 10*time.Second)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, "DROP SCHEMA IF EXISTS ncload CASCADE")
	require.NoError(t, err)
	require.NoError(t, db.ApplyMigrations(ctx, pool, zerolog.Nop()))
	// idempotent
	require.NoError(t, db.ApplyMigrations(ctx, pool, zerolog.Nop()))

	return NewPostgres(pool, zerolog.Nop()), pool
}

func countAttrs(t *testing.T, pool *pgxpool.Pool) int {
	t.Helper()
	var n int
	require.NoError(t, pool.QueryRow(context.Background(), "SELECT count(*) FROM ncload.grid_attributes").Scan(&n))
	return n
}

func TestPostgres_RecordLifecycle(t *testing.T) {
	c, pool := setupDB(t)
	ctx := context.Background()
	exec := uuid.New()

	rec, err := c.CreateRecord(ctx, recordSpec("geonode:sst", exec))
	require.NoError(t, err)
	assert.NotZero(t, rec.ID)
	assert.False(t, rec.CreatedAt.IsZero())

	got, err := c.LookupRecord(ctx, "geonode:sst")
	require.NoError(t, err)
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, model.CRSIdentifier("EPSG:4326"), got.CRS)
	assert.Equal(t, 4326, got.SRID)
	assert.Equal(t, exec, got.ExecutionID)
	assert.Equal(t, rec.Resources, got.Resources)

	attrs, err := c.Attributes(ctx, "geonode:sst")
	require.NoError(t, err)
	require.Len(t, attrs, 4)
	assert.Equal(t, "dimension", attrs[0].Kind)
	assert.Equal(t, "dimension", attrs[1].Kind)
	assert.Equal(t, model.EntityGlobal, attrs[2].Entity)
	assert.Equal(t, "title", attrs[2].Name)
	assert.Equal(t, "sst", attrs[3].Entity)

	_, err = c.CreateRecord(ctx, recordSpec("geonode:sst", uuid.New()))
	assert.Error(t, err, "unique alternate")

	n, err := c.DeleteByExecution(ctx, exec)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Zero(t, countAttrs(t, pool))

	_, err = c.LookupRecord(ctx, "geonode:sst")
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func TestPostgres_ReplaceRebuildsInventory(t *testing.T) {
	c, pool := setupDB(t)
	ctx := context.Background()

	first, err := c.CreateRecord(ctx, recordSpec("geonode:sst", uuid.New()))
	require.NoError(t, err)

	spec := recordSpec("geonode:sst", uuid.New())
	spec.Replace = true
	spec.Resources[0].CRS = "EPSG:3857"
	spec.Resources[0].SRID = 3857
	second, err := c.CreateRecord(ctx, spec)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	got, err := c.LookupRecord(ctx, "geonode:sst")
	require.NoError(t, err)
	assert.Equal(t, model.CRSIdentifier("EPSG:3857"), got.CRS)
	assert.Equal(t, spec.ExecutionID, got.ExecutionID)
	assert.Equal(t, 4, countAttrs(t, pool))
}

func TestPostgres_CopyRecord(t *testing.T) {
	c, pool := setupDB(t)
	ctx := context.Background()

	src, err := c.CreateRecord(ctx, recordSpec("geonode:sst", uuid.New()))
	require.NoError(t, err)

	spec := model.RecordSpec{
		LayerName:   "sst_copy",
		Alternate:   "geonode:sst_copy",
		ExecutionID: uuid.New(),
		Resources:   []model.ResourceDescriptor{{Name: "sst_copy", SourcePath: "/data/sst_copy.nc"}},
	}
	rec, err := c.CopyRecord(ctx, "geonode:sst", spec)
	require.NoError(t, err)
	assert.NotEqual(t, src.ID, rec.ID)
	assert.Equal(t, src.CRS, rec.CRS)
	assert.Equal(t, src.FileSHA256, rec.FileSHA256)
	assert.Equal(t, "raster", rec.ResourceType)
	assert.Equal(t, 8, countAttrs(t, pool))

	_, err = c.CopyRecord(ctx, "geonode:missing", spec)
	assert.True(t, errors.Is(err, ErrRecordNotFound))
}

func TestPostgres_Executions(t *testing.T) {
	c, _ := setupDB(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	exec := &model.PipelineExecution{
		ID: uuid.New(),
		Request: model.IngestionRequest{
			Action: model.ActionUpload,
			Files:  map[string]string{model.FileKeyBase: "/data/sst.nc"},
		},
		Stages:    []model.StageID{model.StageStartImport, model.StageImportResource},
		State:     model.StateRunning,
		StartedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, c.CreateExecution(ctx, exec))

	exec.Current = 2
	exec.State = model.StateSucceeded
	exec.Warnings = []string{"defaulted"}
	exec.Artifacts.FileSHA256 = "abc"
	exec.Artifacts.CatalogRecords = []int64{7}
	exec.Durations = map[model.StageID]time.Duration{model.StageStartImport: 1500 * time.Millisecond}
	exec.FinishedAt = now.Add(time.Second)
	require.NoError(t, c.SaveExecution(ctx, exec))

	got, err := c.LoadExecution(ctx, exec.ID)
	require.NoError(t, err)
	assert.Equal(t, exec.Stages, got.Stages)
	assert.Equal(t, model.StateSucceeded, got.State)
	assert.Equal(t, 2, got.Current)
	assert.Equal(t, exec.Warnings, got.Warnings)
	assert.Equal(t, exec.Artifacts, got.Artifacts)
	assert.Equal(t, exec.Durations, got.Durations)
	assert.Equal(t, "/data/sst.nc", got.Request.BaseFile())
	assert.True(t, exec.FinishedAt.Equal(got.FinishedAt))

	list, err := c.ListExecutions(ctx, 10)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, exec.ID, list[0].ID)

	_, err = c.LoadExecution(ctx, uuid.New())
	assert.True(t, errors.Is(err, ingest.ErrExecutionNotFound))

	missing := *exec
	missing.ID = uuid.New()
	assert.True(t, errors.Is(c.SaveExecution(ctx, &missing), ingest.ErrExecutionNotFound))
}
