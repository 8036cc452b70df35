package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/MarlonSantos/geonode-cloud/internal/exitcode"
	"github.com/MarlonSantos/geonode-cloud/internal/ingest"
	"github.com/MarlonSantos/geonode-cloud/internal/logging"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
	"github.com/MarlonSantos/geonode-cloud/internal/schema"
)

var (
	ingestAction     string
	sourceAlternate  string
	printSummaryJSON bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Ingest a NetCDF file (upload, replace or copy)",
	Long: "Runs one ingestion request. The request is either built from flags " +
		"(--file, --action, ...) or read from a YAML/JSON request file (--request).",
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&cfg.FilePath, "file", "", "Path to the NetCDF base file")
	f.StringVar(&cfg.RequestPath, "request", "", "Path to a YAML or JSON request file")
	f.StringVar(&ingestAction, "action", string(model.ActionUpload), "upload, replace or copy")
	f.StringVar(&cfg.LayerName, "layer", "", "Layer name (default: derived from the file name)")
	f.StringVar(&cfg.Alternate, "alternate", "", "Catalog alternate workspace:layer (default: <workspace>:<layer>)")
	f.StringVar(&cfg.Principal, "principal", os.Getenv("USER"), "Who is running the import")
	f.StringVar(&sourceAlternate, "source", "", "Alternate of the resource to duplicate (copy only)")
	f.BoolVar(&printSummaryJSON, "json", false, "Print the summary as JSON")
	rootCmd.AddCommand(ingestCmd)
}

func buildRequest() (*model.IngestionRequest, error) {
	if cfg.RequestPath != "" {
		return schema.LoadRequest(cfg.RequestPath)
	}
	return &model.IngestionRequest{
		Action:          model.Action(ingestAction),
		Files:           map[string]string{model.FileKeyBase: cfg.FilePath},
		LayerName:       cfg.LayerName,
		Alternate:       cfg.Alternate,
		Principal:       cfg.Principal,
		SourceAlternate: sourceAlternate,
	}, nil
}

func runIngest(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cfg.ValidateWithDSN(); err != nil {
		fail(log, exitcode.UsageError, err, "config validation failed")
	}
	req, err := buildRequest()
	if err != nil {
		fail(log, exitcode.ValidationError, err, "invalid request")
	}
	if req.Action == model.ActionRollback {
		fail(log, exitcode.UsageError, errors.New("use `ncload rollback <execution-id>`"), "rollback is not an ingest action")
	}

	a, err := newApp(ctx, log)
	if err != nil {
		fail(log, exitCode(nil, err), err, "setup failed")
	}
	defer a.close()

	exec, err := a.dispatcher.Dispatch(ctx, req)
	if exec != nil {
		printSummary(ingest.Summarize(exec))
	}
	if code := exitCode(exec, err); code != exitcode.Success {
		a.close()
		fail(log, code, err, "ingest failed")
	}
	return nil
}

func printSummary(s *model.IngestSummary) {
	if printSummaryJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(s)
		return
	}
	fmt.Printf("Execution %s: %s %s -> %s\n", s.ExecutionID, s.Action, s.LayerName, s.State)
	if s.Alternate != "" {
		fmt.Printf("  alternate: %s\n", s.Alternate)
	}
	if s.CRS != "" {
		repaired := ""
		if s.Repaired {
			repaired = " (repaired)"
		}
		fmt.Printf("  crs:       %s%s\n", s.CRS, repaired)
	}
	if s.FileSize > 0 {
		fmt.Printf("  file:      %s (%s, sha256 %s)\n", s.FilePath, humanize.IBytes(uint64(s.FileSize)), s.FileSHA256)
	}
	fmt.Printf("  stages:    %d in %.1fs\n", s.StagesRun, s.DurationTotal.Seconds())
}
