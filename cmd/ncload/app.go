package main

import (
	"context"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/MarlonSantos/geonode-cloud/internal/catalog"
	"github.com/MarlonSantos/geonode-cloud/internal/config"
	"github.com/MarlonSantos/geonode-cloud/internal/db"
	"github.com/MarlonSantos/geonode-cloud/internal/events"
	"github.com/MarlonSantos/geonode-cloud/internal/exitcode"
	"github.com/MarlonSantos/geonode-cloud/internal/gridread"
	"github.com/MarlonSantos/geonode-cloud/internal/handler"
	"github.com/MarlonSantos/geonode-cloud/internal/ingest"
	"github.com/MarlonSantos/geonode-cloud/internal/metrics"
	"github.com/MarlonSantos/geonode-cloud/internal/publish"
	"github.com/MarlonSantos/geonode-cloud/internal/repair"
)

// app is the wired pipeline shared by the commands that run executions.
type app struct {
	log        zerolog.Logger
	pool       *pgxpool.Pool
	store      ingest.ExecutionStore
	dispatcher *ingest.Dispatcher
	nc         *nats.Conn
	metricsSrv *http.Server
}

// setupError carries the exit code for a failure while wiring the app.
type setupError struct {
	code int
	err  error
}

func (e *setupError) Error() string { return e.err.Error() }
func (e *setupError) Unwrap() error { return e.err }

func newRepairWriter(log zerolog.Logger) (*repair.Writer, error) {
	tools, err := repair.NewNCO(cfg.Toolchain.Ncap2, cfg.Toolchain.Ncatted, cfg.Toolchain.Timeout, log)
	if err != nil {
		return nil, errors.WithHint(err, "check toolchain.ncap2 and toolchain.ncatted")
	}
	return repair.NewWriter(tools, gridread.FileSource{}, cfg.Toolchain.OutDir, log), nil
}

func newApp(ctx context.Context, log zerolog.Logger) (*app, error) {
	a := &app{log: log}

	var rec metrics.Recorder = metrics.Noop{}
	if cfg.Metrics.Listen != "" {
		reg := prometheus.NewRegistry()
		rec = metrics.NewProm(cfg.Metrics.Namespace, reg)
		a.metricsSrv = &http.Server{
			Addr:              cfg.Metrics.Listen,
			Handler:           metrics.Handler(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := a.metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Str("listen", cfg.Metrics.Listen).Msg("metrics server failed")
			}
		}()
		log.Info().Str("listen", cfg.Metrics.Listen).Msg("serving metrics")
	}

	writer, err := newRepairWriter(log)
	if err != nil {
		return nil, &setupError{exitcode.UsageError, err}
	}
	netcdf := handler.NewNetCDF(gridread.FileSource{}, log,
		handler.WithRepairer(writer),
		handler.WithWorkspace(cfg.GeoServer.Workspace),
		handler.WithMetrics(rec),
	)

	deps := ingest.Deps{
		Metrics: rec,
		DataDir: cfg.DataDir,
		Log:     log,
	}

	if cfg.DryRun {
		deps.Publisher = publish.DryRun{Log: log}
		deps.Catalog = catalog.NewMemory(log)
		deps.Store = ingest.NewMemoryStore()
	} else {
		gs, err := publish.NewGeoServer(publish.GeoServerConfig{
			URL:               cfg.GeoServer.URL,
			User:              cfg.GeoServer.User,
			Password:          cfg.GeoServer.Password,
			RequestsPerSecond: cfg.GeoServer.RequestsPerSecond,
			Timeout:           cfg.Timeouts.HTTP,
		}, log)
		if err != nil {
			return nil, &setupError{exitcode.UsageError, err}
		}
		if err := a.connect(ctx); err != nil {
			return nil, err
		}
		pg := catalog.NewPostgres(a.pool, log)
		deps.Publisher = gs
		deps.Catalog = pg
		deps.Store = pg
	}
	a.store = deps.Store

	if cfg.Events.NATSURL != "" {
		notifier, nc, err := events.Dial(cfg.Events.NATSURL, cfg.Events.Prefix, log)
		if err != nil {
			a.close()
			return nil, &setupError{exitcode.UsageError, err}
		}
		a.nc = nc
		deps.Notifier = notifier
	}

	limit, err := cfg.UploadLimit(config.UploadSlugNetCDF)
	if err != nil {
		a.close()
		return nil, &setupError{exitcode.UsageError, err}
	}

	orch := ingest.NewOrchestrator(deps, ingest.WithStageTimeout(cfg.Timeouts.Stage))
	a.dispatcher = ingest.NewDispatcher(handler.NewRegistry(netcdf), orch, limit, log)
	return a, nil
}

// connect opens the pool. It is separate from newApp for the commands that
// only need the database.
func (a *app) connect(ctx context.Context) error {
	if cfg.DSN == "" {
		return &setupError{exitcode.UsageError, errors.New("--db-url or NCLOAD_DB_URL is required")}
	}
	pool, err := db.NewPool(ctx, cfg.DSN, cfg.Timeouts.Statement)
	if err != nil {
		return &setupError{exitcode.DBConnError, err}
	}
	a.pool = pool
	return nil
}

func (a *app) close() {
	if a.nc != nil {
		if err := a.nc.Drain(); err != nil {
			a.log.Warn().Err(err).Msg("nats drain failed")
		}
	}
	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.metricsSrv.Shutdown(ctx)
	}
	if a.pool != nil {
		a.pool.Close()
	}
}
