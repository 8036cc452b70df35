package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/MarlonSantos/geonode-cloud/internal/exitcode"
	"github.com/MarlonSantos/geonode-cloud/internal/logging"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
	"github.com/MarlonSantos/geonode-cloud/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Ingest grids and request files dropped into a directory",
	RunE:  runWatch,
}

func init() {
	f := watchCmd.Flags()
	f.StringVar(&cfg.Watch.Dir, "dir", "", "Drop directory (or watch.dir in the config file)")
	f.IntVar(&cfg.Watch.Workers, "workers", cfg.Watch.Workers, "Concurrent executions")
	f.StringVar(&cfg.Principal, "principal", os.Getenv("USER"), "Principal recorded on dropped grids")
	f.StringVar(&cfg.Metrics.Listen, "metrics-listen", "", "Serve Prometheus metrics on this address, e.g. :9464")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Watch.Dir == "" {
		fail(log, exitcode.UsageError, errors.New("--dir or watch.dir is required"), "config validation failed")
	}
	if err := cfg.RequireDSN(); err != nil {
		fail(log, exitcode.UsageError, err, "config validation failed")
	}

	a, err := newApp(ctx, log)
	if err != nil {
		fail(log, exitCode(nil, err), err, "setup failed")
	}
	defer a.close()

	dispatch := func(ctx context.Context, req *model.IngestionRequest) error {
		_, err := a.dispatcher.Dispatch(ctx, req)
		return err
	}
	w := watch.New(cfg.Watch.Dir, dispatch, watch.Options{
		Debounce:  cfg.Watch.Debounce,
		Workers:   cfg.Watch.Workers,
		Principal: cfg.Principal,
	}, log)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.close()
		fail(log, exitcode.UsageError, err, "watcher failed")
	}
	return nil
}
