package cmd

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/harrison/stager/internal/history"
	"github.com/harrison/stager/internal/models"
)

// NewHistoryCommand creates the 'stager history' command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect and manage recorded staging runs",
		Long: `Every run is recorded in a SQLite database under $STAGER_HOME/history
(default .stager/history/runs.db), including the files copied before a failure.`,
	}

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())
	cmd.AddCommand(newHistoryExportCommand())
	cmd.AddCommand(newHistoryClearCommand())

	return cmd
}

// withStore loads configuration, opens the history store and runs fn.
func withStore(cmd *cobra.Command, fn func(store *history.Store) error) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func newHistoryListCommand() *cobra.Command {
	var (
		destination string
		limit       int
		failedOnly  bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := history.Filter{Destination: destination, Limit: limit}
			if failedOnly {
				filter.Status = models.StatusFailed
			}
			return withStore(cmd, func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), filter)
				if err != nil {
					return err
				}
				printRunList(cmd.OutOrStdout(), runs)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&destination, "destination", "", "Only runs that targeted this destination")
	cmd.Flags().IntVar(&limit, "limit", 20, "Maximum number of runs to show (0 = all)")
	cmd.Flags().BoolVar(&failedOnly, "failed", false, "Only failed runs")

	return cmd
}

func printRunList(out io.Writer, runs []*history.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs recorded.")
		return
	}

	fmt.Fprintf(out, "%-8s  %-19s  %-9s  %5s  %s\n", "RUN", "STARTED", "STATUS", "FILES", "DESTINATION")
	for _, run := range runs {
		status := fmt.Sprintf("%-9s", run.Status)
		if run.Succeeded() {
			status = color.GreenString(status)
		} else {
			status = color.RedString(status)
		}
		fmt.Fprintf(out, "%-8s  %-19s  %s  %5d  %s\n",
			shortID(run.ID), run.StartedAt.Local().Format("2006-01-02 15:04:05"), status, run.FileCount, run.Destination)
	}
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run and the files it staged",
		Long:  "Show a recorded run. The id may be abbreviated to any unique prefix.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(store *history.Store) error {
				run, err := store.GetRun(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printRun(cmd.OutOrStdout(), run)
				return nil
			})
		},
	}
}

func printRun(out io.Writer, run *history.Run) {
	bold := color.New(color.Bold)
	bold.Fprintf(out, "Run %s\n", run.ID)
	if run.JobName != "" {
		fmt.Fprintf(out, "  Job:         %s\n", run.JobName)
	}
	if run.PlanFile != "" {
		fmt.Fprintf(out, "  Plan:        %s\n", run.PlanFile)
	}
	fmt.Fprintf(out, "  Pattern:     %s\n", run.Pattern)
	fmt.Fprintf(out, "  Destination: %s\n", run.Destination)
	fmt.Fprintf(out, "  Atomic:      %t\n", run.Atomic)
	fmt.Fprintf(out, "  Status:      %s\n", run.Status)
	if run.ErrorMessage != "" {
		fmt.Fprintf(out, "  Error:       [%s] %s\n", run.ErrorKind, run.ErrorMessage)
	}
	fmt.Fprintf(out, "  Started:     %s\n", run.StartedAt.Local().Format(time.RFC3339))
	fmt.Fprintf(out, "  Duration:    %s\n", run.Duration)
	fmt.Fprintf(out, "  Files:       %d\n", run.FileCount)

	for _, f := range run.Files {
		fmt.Fprintf(out, "    %4d  %s  %8d  %s\n", f.Index, shortDigest(f.SHA256), f.Size, f.Source)
	}
}

func newHistoryExportCommand() *cobra.Command {
	var (
		format      string
		output      string
		destination string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export recorded runs as JSON or CSV",
		Long: `Export recorded runs for external analysis or backup. JSON output includes
each run's staged files; CSV has one row per run.

Examples:
  stager history export --format json --output runs.json
  stager history export --format csv --destination out/parser`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "csv" {
				return fmt.Errorf("invalid format '%s': format must be 'json' or 'csv'", format)
			}
			return withStore(cmd, func(store *history.Store) error {
				runs, err := store.ListRuns(cmd.Context(), history.Filter{Destination: destination})
				if err != nil {
					return err
				}

				writer := cmd.OutOrStdout()
				if output != "" {
					file, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("failed to create output file: %w", err)
					}
					defer file.Close()
					writer = file
				}

				if format == "csv" {
					return exportCSV(writer, runs)
				}
				for i, run := range runs {
					full, err := store.GetRun(cmd.Context(), run.ID)
					if err != nil {
						return err
					}
					runs[i] = full
				}
				return exportJSON(writer, runs)
			})
		},
	}

	cmd.Flags().StringVar(&format, "format", "json", "Export format (json|csv)")
	cmd.Flags().StringVar(&output, "output", "", "Output file path (stdout if not specified)")
	cmd.Flags().StringVar(&destination, "destination", "", "Only runs that targeted this destination")

	return cmd
}

type exportedFile struct {
	Index  int    `json:"index"`
	Source string `json:"source"`
	Target string `json:"target"`
	Size   int64  `json:"size"`
	SHA256 string `json:"sha256"`
}

type exportedRun struct {
	ID           string         `json:"id"`
	PlanFile     string         `json:"plan_file,omitempty"`
	JobName      string         `json:"job_name,omitempty"`
	Pattern      string         `json:"pattern"`
	Destination  string         `json:"destination"`
	Atomic       bool           `json:"atomic"`
	Status       string         `json:"status"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	FileCount    int            `json:"file_count"`
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   time.Time      `json:"finished_at"`
	DurationMS   int64          `json:"duration_ms"`
	Files        []exportedFile `json:"files"`
}

func exportJSON(writer io.Writer, runs []*history.Run) error {
	out := make([]exportedRun, 0, len(runs))
	for _, run := range runs {
		er := exportedRun{
			ID:           run.ID,
			PlanFile:     run.PlanFile,
			JobName:      run.JobName,
			Pattern:      run.Pattern,
			Destination:  run.Destination,
			Atomic:       run.Atomic,
			Status:       run.Status,
			ErrorKind:    run.ErrorKind,
			ErrorMessage: run.ErrorMessage,
			FileCount:    run.FileCount,
			StartedAt:    run.StartedAt,
			FinishedAt:   run.FinishedAt,
			DurationMS:   run.Duration.Milliseconds(),
			Files:        make([]exportedFile, 0, len(run.Files)),
		}
		for _, f := range run.Files {
			er.Files = append(er.Files, exportedFile{Index: f.Index, Source: f.Source, Target: f.Target, Size: f.Size, SHA256: f.SHA256})
		}
		out = append(out, er)
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(out); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return nil
}

func exportCSV(writer io.Writer, runs []*history.Run) error {
	csvWriter := csv.NewWriter(writer)

	header := []string{
		"id",
		"plan_file",
		"job_name",
		"pattern",
		"destination",
		"atomic",
		"status",
		"error_kind",
		"error_message",
		"file_count",
		"started_at",
		"duration_ms",
	}
	if err := csvWriter.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}

	for _, run := range runs {
		row := []string{
			run.ID,
			run.PlanFile,
			run.JobName,
			run.Pattern,
			run.Destination,
			strconv.FormatBool(run.Atomic),
			run.Status,
			run.ErrorKind,
			run.ErrorMessage,
			strconv.Itoa(run.FileCount),
			run.StartedAt.UTC().Format(time.RFC3339),
			strconv.FormatInt(run.Duration.Milliseconds(), 10),
		}
		if err := csvWriter.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row: %w", err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

func newHistoryClearCommand() *cobra.Command {
	var (
		destination string
		yes         bool
	)

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete recorded runs",
		Long: `Delete recorded runs for one destination, or every run when --destination
is omitted. Staged files on disk are not touched.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if destination == "" {
				fmt.Fprintf(out, "WARNING: This will delete ALL recorded runs.\n")
			} else {
				fmt.Fprintf(out, "This will delete all recorded runs for: %s\n", destination)
			}
			if !yes && !confirmAction(cmd.InOrStdin(), out) {
				fmt.Fprintf(out, "Operation cancelled.\n")
				return nil
			}

			return withStore(cmd, func(store *history.Store) error {
				n, err := store.ClearRuns(cmd.Context(), destination)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Deleted %d run(s).\n", n)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&destination, "destination", "", "Only delete runs for this destination")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")

	return cmd
}

// confirmAction prompts on out and reads a yes/no answer from in.
func confirmAction(in io.Reader, out io.Writer) bool {
	scanner := bufio.NewScanner(in)
	fmt.Fprintf(out, "Continue? [y/N]: ")

	if !scanner.Scan() {
		return false
	}
	response := strings.TrimSpace(strings.ToLower(scanner.Text()))
	return response == "y" || response == "yes"
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
