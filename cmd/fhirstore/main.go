package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information, set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "fhirstore",
		Short: "A healthcare resource repository with nested-transaction semantics",
		Long: `fhirstore serves FHIR-style healthcare resources (Patient, Observation,
Encounter, ...) over HTTP, backed by PostgreSQL with arbitrarily nested
logical transactions implemented on top of SAVEPOINT.`,
	}

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(initCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
