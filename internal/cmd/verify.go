package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/harrison/stager/internal/display"
	"github.com/harrison/stager/internal/history"
	"github.com/harrison/stager/internal/models"
	"github.com/harrison/stager/internal/stager"
)

// NewVerifyCommand creates the verify command
func NewVerifyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <destination>",
		Short: "Check a destination against the run that staged it",
		Long: `Check that <destination> still holds exactly what its last successful run
staged: files named 1..N with the recorded sizes and SHA-256 digests, and
nothing else.

With --shape-only, or when no run is recorded, only the layout is checked:
every entry must be a regular file and the names must run 1..N without gaps.

Examples:
  stager verify ../procon-input-support/example
  stager verify --run 3f2a out/parser
  stager verify --shape-only out/parser`,
		Args: cobra.ExactArgs(1),
		RunE: verifyCommand,
	}

	cmd.Flags().String("run", "", "Verify against this run id (or unique prefix) instead of the latest success")
	cmd.Flags().Bool("shape-only", false, "Only check names and file types, not contents")

	return cmd
}

func verifyCommand(cmd *cobra.Command, args []string) error {
	destination := args[0]
	out := cmd.OutOrStdout()

	runID, _ := cmd.Flags().GetString("run")
	shapeOnly, _ := cmd.Flags().GetBool("shape-only")

	var manifest []models.StagedFile
	source := "layout only"
	if !shapeOnly {
		run, err := lookupRun(cmd, destination, runID)
		switch {
		case err == nil:
			manifest = run.Files
			source = "run " + run.ID
		case errors.Is(err, history.ErrRunNotFound) && runID == "":
			fmt.Fprintf(out, "No recorded run for %s; checking layout only.\n", destination)
		default:
			return err
		}
	}

	report, err := stager.Verify(destination, manifest)
	if err != nil {
		return err
	}

	if !report.OK() {
		display.WarnVerifyFailed(destination, report.Missing, report.Extra, report.Mismatched).Display(out)
		return fmt.Errorf("%s does not match %s", destination, source)
	}

	fmt.Fprintf(out, "✓ %s matches %s (%d files)\n", destination, source, report.Expected)
	return nil
}

func lookupRun(cmd *cobra.Command, destination, runID string) (*history.Run, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	if runID != "" {
		return store.GetRun(cmd.Context(), runID)
	}
	return store.LastSuccessfulRun(cmd.Context(), destination)
}
