package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/MarlonSantos/geonode-cloud/internal/exitcode"
	"github.com/MarlonSantos/geonode-cloud/internal/logging"
)

var repairCmd = &cobra.Command{
	Use:   "repair <file>",
	Short: "Write a copy of a grid with a WGS-84 CRS attached",
	Long: "Adds a crs variable describing WGS-84 and points every data variable " +
		"at it. The source file is left untouched.",
	Args: cobra.ExactArgs(1),
	RunE: runRepair,
}

func init() {
	repairCmd.Flags().StringVar(&cfg.Toolchain.OutDir, "out-dir", "", "Directory for the repaired copy (default: next to the source)")
	rootCmd.AddCommand(repairCmd)
}

func runRepair(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	writer, err := newRepairWriter(log)
	if err != nil {
		fail(log, exitcode.UsageError, err, "toolchain setup failed")
	}
	out, err := writer.Repair(ctx, args[0])
	if err != nil {
		fail(log, exitcode.ImportError, err, "repair failed")
	}
	fmt.Println(out)
	return nil
}
