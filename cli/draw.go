package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/seam-labs/eventflow/viz"
	"github.com/seam-labs/eventflow/workflow"
)

// NewDrawCmd creates the "draw" subcommand group.
func NewDrawCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "draw",
		Short: "Render workflows as Mermaid diagrams",
	}

	cmd.AddCommand(newDrawFlowsCmd())
	cmd.AddCommand(newDrawRunCmd())

	return cmd
}

// newDrawFlowsCmd creates "draw flows", which renders every declared event
// flow of a manifest's step table.
func newDrawFlowsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "flows <file>",
		Short: "Draw all possible event flows of a manifest",
		Args:  cobra.ExactArgs(1),
		RunE:  runDrawFlows,
	}

	cmd.Flags().StringP("output", "o", "", "Write diagram to file (default: stdout)")

	return cmd
}

func runDrawFlows(cmd *cobra.Command, args []string) error {
	m, err := LoadManifest(args[0])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exitError(exitFileNotFound, "file not found: %s", args[0])
		}
		return exitError(exitInputParse, "%v", err)
	}

	steps, err := m.StepTable()
	if err != nil {
		return exitError(exitValidation, "%v", err)
	}

	return writeDiagram(cmd, viz.Flows(steps))
}

// newDrawRunCmd creates "draw run", which renders the path a stored run
// actually took, rebuilt from its persisted records.
func newDrawRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <run-id>",
		Short: "Draw the execution path of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  runDrawRun,
	}

	cmd.Flags().String("db", "", "Path to the SQLite record store (required)")
	cmd.Flags().StringP("output", "o", "", "Write diagram to file (default: stdout)")

	return cmd
}

func runDrawRun(cmd *cobra.Command, args []string) error {
	runID := args[0]

	store, err := openRecordStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), runID, 0, 0)
	if err != nil {
		return exitError(exitRuntime, "listing records: %v", err)
	}
	if len(records) == 0 {
		return exitError(exitRuntime, "no records for run %s", runID)
	}

	return writeDiagram(cmd, viz.Execution(traceFromRecords(records)))
}

// traceFromRecords rebuilds the execution trace from step.started records.
// The built-in terminal step is omitted, matching the in-memory trace.
func traceFromRecords(records []workflow.Record) []workflow.TraceEntry {
	var trace []workflow.TraceEntry
	for _, r := range records {
		if r.Kind != workflow.RecordStepStarted || r.Step == workflow.TerminalStepName {
			continue
		}
		trace = append(trace, workflow.TraceEntry{Step: r.Step, EventType: r.EventType})
	}
	return trace
}

func writeDiagram(cmd *cobra.Command, diagram string) error {
	outputPath, _ := cmd.Flags().GetString("output")
	if outputPath != "" {
		if err := os.WriteFile(outputPath, []byte(diagram), 0600); err != nil {
			return exitError(exitRuntime, "writing output file: %v", err)
		}
		return nil
	}
	fmt.Fprint(cmd.OutOrStdout(), diagram)
	return nil
}
