package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seam-labs/eventflow/cli"
)

// Set via ldflags at build time.
var version = "dev"

func main() {
	if err := rootCmd.Execute(); err != nil {
		var exitErr *cli.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "eventflow",
	Short: "EventFlow workflow engine CLI",
	Long:  "EventFlow — a CLI for validating, drawing, and inspecting event-driven workflows.",
	// SilenceUsage prevents printing usage on every error
	SilenceUsage: true,
}

func init() {
	rootCmd.Version = version
	rootCmd.SetVersionTemplate(fmt.Sprintf("eventflow version %s\n", version))

	rootCmd.AddCommand(cli.NewValidateCmd())
	rootCmd.AddCommand(cli.NewDrawCmd())
	rootCmd.AddCommand(cli.NewRunsCmd())
	rootCmd.AddCommand(cli.NewRecordsCmd())
}
