package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seam-labs/eventflow/bus"
)

// NewRunsCmd creates the "runs" subcommand.
func NewRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List run IDs in a record store",
		Args:  cobra.NoArgs,
		RunE:  runRuns,
	}

	cmd.Flags().String("db", "", "Path to the SQLite record store (required)")

	return cmd
}

func runRuns(cmd *cobra.Command, _ []string) error {
	store, err := openRecordStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	ids, err := store.RunIDs(cmd.Context())
	if err != nil {
		return exitError(exitRuntime, "listing runs: %v", err)
	}

	for _, id := range ids {
		fmt.Fprintln(cmd.OutOrStdout(), id)
	}
	return nil
}

// openRecordStore opens the SQLite record store named by the --db flag.
// The file must already exist; inspection commands never create stores.
func openRecordStore(cmd *cobra.Command) (*bus.SQLiteRecordStore, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		return nil, exitError(exitInputParse, "--db is required")
	}
	if _, err := os.Stat(dbPath); err != nil {
		return nil, exitError(exitFileNotFound, "record store not found: %s", dbPath)
	}

	store, err := bus.NewSQLiteRecordStore(bus.SQLiteStoreConfig{DSN: dbPath})
	if err != nil {
		return nil, exitError(exitRuntime, "opening record store: %v", err)
	}
	return store, nil
}
