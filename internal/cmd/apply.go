package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/stager/internal/display"
	"github.com/harrison/stager/internal/fileutil"
	"github.com/harrison/stager/internal/models"
	"github.com/harrison/stager/internal/plan"
	"github.com/harrison/stager/internal/stager"
)

// NewApplyCommand creates the apply command
func NewApplyCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply <plan-file>",
		Short: "Stage every job in a plan file",
		Long: `Stage every job listed in a YAML or Markdown plan file, in order.

Relative patterns and destinations are resolved against the directory that
holds the plan file. The first failing job stops the plan; later jobs are
reported as skipped.

YAML plan:
  name: samples
  defaults:
    atomic: true
  jobs:
    - name: parser
      pattern: test-data/case/*/parser
      destination: ../procon-input-support/example

Markdown plan:
  ## Job: parser
  - Pattern: ` + "`test-data/case/*/parser`" + `
  - Destination: ` + "`../procon-input-support/example`" + `

Examples:
  stager apply plans/samples.yaml
  stager apply --dry-run plans/samples.md`,
		Args: cobra.ExactArgs(1),
		RunE: applyCommand,
	}

	cmd.Flags().Bool("dry-run", false, "Show what each job would stage without touching any destination")
	cmd.Flags().Bool("atomic", false, "Stage every job atomically, overriding the plan")
	addStagingFlags(cmd)

	return cmd
}

func applyCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	p, err := plan.ParseFile(args[0])
	if err != nil {
		return err
	}
	if err := plan.Validate(p); err != nil {
		return fmt.Errorf("invalid plan %s:\n%w", args[0], err)
	}

	atomicOverride := cmd.Flags().Changed("atomic")
	for i := range p.Jobs {
		if atomicOverride {
			p.Jobs[i].Atomic = cfg.Atomic
		} else if cfg.Atomic {
			p.Jobs[i].Atomic = true
		}
	}

	out := cmd.OutOrStdout()
	dryRun, _ := cmd.Flags().GetBool("dry-run")
	if dryRun {
		fmt.Fprintf(out, "Dry run of %s (%d jobs):\n", p.FilePath, len(p.Jobs))
		for _, job := range p.Jobs {
			matches, err := fileutil.Glob(job.Pattern)
			if err != nil {
				return fmt.Errorf("job %q: %w", job.Label(), err)
			}
			// A real run never stages its own destination or lock files.
			count := 0
			for _, m := range matches {
				if !stager.OwnedPath(job.Destination, m) {
					count++
				}
			}
			display.DisplayDryRunJob(out, job.Label(), job.Pattern, job.Destination, count, job.Atomic)
		}
		return nil
	}

	sess, err := newSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := models.PlanSummary{TotalJobs: len(p.Jobs)}
	start := time.Now()
	progress := display.NewProgressIndicator(out, len(p.Jobs))
	progress.Start(p.Name)

	var firstErr error
	for i, job := range p.Jobs {
		progress.Step(job.Label())
		result, err := sess.stage(ctx, job, p.FilePath)
		if err != nil {
			summary.Failed++
			summary.Skipped = len(p.Jobs) - i - 1
			summary.FailedJobs = append(summary.FailedJobs, models.JobFailure{Job: job, Err: err})
			firstErr = fmt.Errorf("job %q failed: %w", job.Label(), err)
			break
		}
		summary.Completed++
		summary.FilesTotal += result.Count
	}
	summary.Duration = time.Since(start)

	if firstErr == nil {
		progress.Complete()
	}
	sess.log.LogSummary(summary)
	return firstErr
}
