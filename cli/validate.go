package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/seam-labs/eventflow/workflow"
)

// NewValidateCmd creates the "validate" subcommand.
func NewValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a workflow manifest without executing",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidate,
	}

	cmd.Flags().String("format", "text", "Output format: text | json")

	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	filePath := args[0]
	format, _ := cmd.Flags().GetString("format")
	out := cmd.OutOrStdout()

	m, err := LoadManifest(filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return exitError(exitFileNotFound, "file not found: %s", filePath)
		}
		return exitError(exitInputParse, "%v", err)
	}

	verr := validateManifest(m)
	if err := printValidateResult(out, verr, format); err != nil {
		return err
	}

	if verr != nil {
		return exitError(exitValidation, "validation failed")
	}
	return nil
}

// validateManifest runs the step registration checks followed by the event
// graph checks, returning the first failure.
func validateManifest(m *Manifest) error {
	steps, err := m.StepTable()
	if err != nil {
		return err
	}
	return workflow.Validate(steps)
}

func printValidateResult(w io.Writer, verr error, format string) error {
	switch format {
	case "json":
		report := struct {
			Valid bool   `json:"valid"`
			Error string `json:"error,omitempty"`
		}{Valid: verr == nil}
		if verr != nil {
			report.Error = verr.Error()
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "text":
		if verr == nil {
			fmt.Fprintln(w, "Valid!")
		} else {
			fmt.Fprintf(w, "ERROR: %v\n", verr)
		}
		return nil
	default:
		return exitError(exitInputParse, "unknown format %q (use text or json)", format)
	}
}
