package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MarlonSantos/geonode-cloud/internal/catalog"
	"github.com/MarlonSantos/geonode-cloud/internal/exitcode"
	"github.com/MarlonSantos/geonode-cloud/internal/logging"
)

var listLimit int

var executionsCmd = &cobra.Command{
	Use:   "executions",
	Short: "List recent executions",
	RunE:  runExecutions,
}

func init() {
	executionsCmd.Flags().IntVar(&listLimit, "limit", 20, "Maximum executions to list")
	rootCmd.AddCommand(executionsCmd)
}

func runExecutions(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	a := &app{log: log}
	if err := a.connect(ctx); err != nil {
		fail(log, exitCode(nil, err), err, "database connection failed")
	}
	defer a.pool.Close()

	execs, err := catalog.NewPostgres(a.pool, log).ListExecutions(ctx, listLimit)
	if err != nil {
		a.pool.Close()
		fail(log, exitcode.DBConnError, err, "list executions")
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "EXECUTION\tACTION\tFILE\tSTATE\tSTAGE\tSTARTED")
	for _, e := range execs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			e.ID, e.Request.Action, e.Request.BaseFile(), e.State, e.CurrentStage(),
			humanize.RelTime(e.StartedAt, time.Now(), "ago", "from now"))
	}
	return w.Flush()
}
