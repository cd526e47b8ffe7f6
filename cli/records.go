package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/seam-labs/eventflow/workflow"
)

// NewRecordsCmd creates the "records" subcommand.
func NewRecordsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "records <run-id>",
		Short: "List the stored records of a run",
		Args:  cobra.ExactArgs(1),
		RunE:  runRecords,
	}

	cmd.Flags().String("db", "", "Path to the SQLite record store (required)")
	cmd.Flags().Uint64("after", 0, "Return records with sequence number greater than this")
	cmd.Flags().Int("limit", 0, "Maximum records to return (0 = no limit)")
	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

func runRecords(cmd *cobra.Command, args []string) error {
	runID := args[0]
	afterSeq, _ := cmd.Flags().GetUint64("after")
	limit, _ := cmd.Flags().GetInt("limit")
	format, _ := cmd.Flags().GetString("format")

	store, err := openRecordStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(cmd.Context(), runID, afterSeq, limit)
	if err != nil {
		return exitError(exitRuntime, "listing records: %v", err)
	}

	switch format {
	case "json":
		return printRecordsJSON(cmd.OutOrStdout(), records)
	case "text":
		printRecordsText(cmd.OutOrStdout(), records)
		return nil
	default:
		return exitError(exitInputParse, "unknown format %q (use text or json)", format)
	}
}

func printRecordsText(w io.Writer, records []workflow.Record) {
	for _, r := range records {
		fmt.Fprintf(w, "%4d  %-16s", r.Seq, r.Kind)
		if r.Step != "" {
			fmt.Fprintf(w, "  step=%s", r.Step)
		}
		if r.EventType != "" {
			fmt.Fprintf(w, "  event=%s", r.EventType)
		}
		fmt.Fprintf(w, "  elapsed=%s\n", r.Elapsed)
	}
}

// recordJSON is the stable JSON shape for a record; workflow.Record itself
// carries no serialization tags.
type recordJSON struct {
	Kind      string         `json:"kind"`
	RunID     string         `json:"run_id"`
	Step      string         `json:"step,omitempty"`
	EventType string         `json:"event_type,omitempty"`
	Time      time.Time      `json:"time"`
	Seq       uint64         `json:"seq"`
	ElapsedMS float64        `json:"elapsed_ms"`
	Payload   map[string]any `json:"payload,omitempty"`
}

func printRecordsJSON(w io.Writer, records []workflow.Record) error {
	out := make([]recordJSON, len(records))
	for i, r := range records {
		out[i] = recordJSON{
			Kind:      string(r.Kind),
			RunID:     r.RunID,
			Step:      r.Step,
			EventType: string(r.EventType),
			Time:      r.Time,
			Seq:       r.Seq,
			ElapsedMS: float64(r.Elapsed) / float64(time.Millisecond),
			Payload:   r.Payload,
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
