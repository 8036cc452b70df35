package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/MarlonSantos/geonode-cloud/internal/exitcode"
	"github.com/MarlonSantos/geonode-cloud/internal/ingest"
	"github.com/MarlonSantos/geonode-cloud/internal/logging"
)

var rollbackCmd = &cobra.Command{
	Use:   "rollback <execution-id>",
	Short: "Undo the side effects of a finished execution",
	Args:  cobra.ExactArgs(1),
	RunE:  runRollback,
}

var rollbackForce bool

func init() {
	rollbackCmd.Flags().StringVar(&cfg.Principal, "principal", os.Getenv("USER"), "Who is running the rollback")
	rollbackCmd.Flags().BoolVar(&rollbackForce, "force", false, "Undo an execution still recorded as running (its process must be gone)")
	rootCmd.AddCommand(rollbackCmd)
}

func runRollback(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := uuid.Parse(args[0])
	if err != nil {
		fail(log, exitcode.UsageError, errors.Wrap(err, "execution id"), "invalid execution id")
	}
	if cfg.DryRun {
		fail(log, exitcode.UsageError, errors.New("dry runs keep no executions"), "rollback needs the execution store")
	}

	a, err := newApp(ctx, log)
	if err != nil {
		fail(log, exitCode(nil, err), err, "setup failed")
	}
	defer a.close()

	target, err := a.store.LoadExecution(ctx, id)
	if err != nil {
		a.close()
		code := exitcode.DBConnError
		if errors.Is(err, ingest.ErrExecutionNotFound) {
			code = exitcode.UsageError
		}
		fail(log, code, err, "load execution")
	}

	req := ingest.RollbackRequest(target, cfg.Principal)
	req.Force = rollbackForce
	exec, err := a.dispatcher.Dispatch(ctx, req)
	if exec != nil {
		printSummary(ingest.Summarize(exec))
	}
	if code := exitCode(exec, err); code != exitcode.Success {
		a.close()
		fail(log, code, err, "rollback failed")
	}
	return nil
}
