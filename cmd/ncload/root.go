package main

import (
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/MarlonSantos/geonode-cloud/internal/config"
)

var (
	cfg        = config.Default()
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "ncload",
	Short: "NetCDF raster ingestion into GeoServer and the catalog",
	Long: "Validates NetCDF grids, resolves or repairs their CRS, publishes them as " +
		"GeoServer coverages and registers them in the Postgres catalog. Every run is " +
		"an execution that rolls back its side effects on failure.",
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfg.DSN, "db-url", os.Getenv("NCLOAD_DB_URL"), "Postgres connection string (or set NCLOAD_DB_URL)")
	pf.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text or json")
	pf.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	pf.StringVar(&configPath, "config", os.Getenv("NCLOAD_CONFIG"), "YAML config file (or set NCLOAD_CONFIG)")
	pf.BoolVar(&cfg.DryRun, "dry-run", false, "Log publish and catalog calls instead of making them")
	pf.StringVar(&cfg.DataDir, "data-dir", "", "Directory receiving raster copies (default: next to the source)")
}

// loadConfig merges the config file under the flags: a flag set on the
// command line wins over the file.
func loadConfig(cmd *cobra.Command, _ []string) error {
	if configPath != "" {
		set := make(map[string]string)
		cmd.Flags().Visit(func(f *pflag.Flag) {
			set[f.Name] = f.Value.String()
		})
		if err := cfg.LoadFromFile(configPath); err != nil {
			return err
		}
		for name, v := range set {
			if err := cmd.Flags().Set(name, v); err != nil {
				return err
			}
		}
	}
	if pw := os.Getenv("NCLOAD_GEOSERVER_PASSWORD"); pw != "" {
		cfg.GeoServer.Password = pw
	}
	return nil
}
