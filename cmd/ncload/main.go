package main

import (
	"os"

	"github.com/MarlonSantos/geonode-cloud/internal/exitcode"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(exitcode.UsageError)
	}
}
