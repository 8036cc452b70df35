package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/MarlonSantos/geonode-cloud/internal/catalog"
	"github.com/MarlonSantos/geonode-cloud/internal/crs"
	"github.com/MarlonSantos/geonode-cloud/internal/exitcode"
	"github.com/MarlonSantos/geonode-cloud/internal/gridread"
	"github.com/MarlonSantos/geonode-cloud/internal/inventory"
	"github.com/MarlonSantos/geonode-cloud/internal/logging"
	"github.com/MarlonSantos/geonode-cloud/internal/model"
	"github.com/MarlonSantos/geonode-cloud/internal/repair"
)

var (
	parquetOut       string
	inspectAlternate string
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [file]",
	Short: "Show a grid's structure and how its CRS resolves (no writes)",
	Long: "Prints dimensions, variables, global and grid-mapping attributes and the " +
		"resolved CRS of a NetCDF file. With --alternate the stored attribute " +
		"inventory of a catalog record is read instead. --parquet exports the " +
		"inventory.",
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	f := inspectCmd.Flags()
	f.StringVar(&parquetOut, "parquet", "", "Write the attribute inventory to this Parquet file")
	f.StringVar(&inspectAlternate, "alternate", "", "Read the inventory of this catalog record instead of a file")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)

	var rows []model.AttributeRow
	switch {
	case inspectAlternate != "":
		ctx := context.Background()
		a := &app{log: log}
		if err := a.connect(ctx); err != nil {
			fail(log, exitCode(nil, err), err, "database connection failed")
		}
		defer a.pool.Close()
		var err error
		rows, err = catalog.NewPostgres(a.pool, log).Attributes(ctx, inspectAlternate)
		if err != nil {
			a.pool.Close()
			code := exitcode.DBConnError
			if errors.Is(err, catalog.ErrRecordNotFound) {
				code = exitcode.UsageError
			}
			fail(log, code, err, "read inventory")
		}
		printRows(rows)

	case len(args) == 1:
		meta, err := gridread.ReadMetadata(args[0])
		if err != nil {
			fail(log, exitcode.ValidationError, err, "read metadata")
		}
		printMetadata(meta)
		rows = model.InventoryRows(0, meta)

	default:
		return errors.New("inspect needs a file or --alternate")
	}

	if parquetOut != "" {
		if err := inventory.WriteFile(parquetOut, rows); err != nil {
			fail(log, exitcode.ImportError, err, "write inventory")
		}
		log.Info().Str("path", parquetOut).Int("rows", len(rows)).Msg("inventory written")
	}
	return nil
}

func printMetadata(meta *model.GridMetadata) {
	fmt.Printf("File: %s\n\nDimensions:\n", meta.Path)
	for _, d := range meta.Dimensions {
		fmt.Printf("  %s = %d\n", d.Name, d.Size)
	}

	fmt.Println("\nVariables:")
	for _, v := range meta.Variables {
		fmt.Printf("  %s(%s)\n", v.Name, strings.Join(v.Dimensions, ", "))
	}

	fmt.Println("\nGlobal attributes:")
	for _, k := range meta.Global.Keys() {
		fmt.Printf("  %s = %s\n", k, meta.Global[k])
	}

	for _, v := range meta.Variables {
		gm, ok := v.Attributes["grid_mapping"]
		if !ok || gm.Kind != model.KindString {
			continue
		}
		fmt.Printf("\nGrid mapping %q (from %s):\n", gm.Str, v.Name)
		if mv, ok := meta.Variable(gm.Str); ok {
			for _, k := range mv.Attributes.Keys() {
				fmt.Printf("  %s = %s\n", k, mv.Attributes[k])
			}
		} else {
			fmt.Println("  (variable not present)")
		}
		break
	}

	res := crs.Resolve(meta)
	fmt.Printf("\nResolved CRS: %s\n", res.CRS)
	switch {
	case !res.Discovered:
		fmt.Println("  no CRS information present; ingest would repair the file")
		fmt.Printf("  data variables: %s\n", strings.Join(repair.DataVariables(meta), ", "))
	case res.Defaulted:
		fmt.Printf("  %s = %q is not recognizable; defaulted\n", res.Source, res.Raw)
	default:
		fmt.Printf("  from %s = %q\n", res.Source, res.Raw)
	}
}

func printRows(rows []model.AttributeRow) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ENTITY\tNAME\tKIND\tVALUE")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Entity, r.Name, r.Kind, r.Value)
	}
	_ = w.Flush()
}
