package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/harrison/stager/internal/models"
	"github.com/harrison/stager/internal/stager"
	"github.com/harrison/stager/internal/watch"
)

// NewRunCommand creates the run command
func NewRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run <pattern> <destination>",
		Short: "Stage the files a pattern matches into a destination",
		Long: `Reset <destination> and copy every file <pattern> matches into it as
1, 2, 3, ... in lexicographic order of the matched paths.

Patterns support *, ?, [...], {a,b} and ** for recursive matching. Quote the
pattern so the shell passes it through unexpanded.

Configuration is loaded from .stager/config.yaml if present.
CLI flags override configuration file settings.

Examples:
  # Stage every parser fixture
  stager run 'test-data/case/*/parser' ../procon-input-support/example

  # Build the new contents aside and swap them in
  stager run --atomic 'test-data/**/input' out/inputs

  # Restage whenever a matching file changes
  stager run --watch 'test-data/case/*/parser' out/parser`,
		Args: cobra.ExactArgs(2),
		RunE: runCommand,
	}

	cmd.Flags().Bool("atomic", false, "Stage into a temporary directory and swap it into place")
	cmd.Flags().Bool("watch", false, "Keep running and restage when matching files change")
	addStagingFlags(cmd)

	return cmd
}

// runCommand implements the run command logic
func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	sess, err := newSession(cmd, cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	job := models.Job{
		Pattern:     args[0],
		Destination: args[1],
		Atomic:      cfg.Atomic,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	watchFlag, _ := cmd.Flags().GetBool("watch")
	if !watchFlag {
		_, err := sess.stage(ctx, job, "")
		return err
	}
	return watchAndStage(ctx, sess, job)
}

// watchAndStage stages job once, then again after every settled change to
// the files its pattern can match. Failed runs are logged and the watch
// continues; only watcher setup errors end it.
func watchAndStage(ctx context.Context, sess *session, job models.Job) error {
	w, err := watch.NewWatcher(job.Pattern, watch.WithIgnore(func(path string) bool {
		return stager.OwnedPath(job.Destination, path)
	}))
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", job.Pattern, err)
	}

	// Failures are already logged by the stager.
	sess.stage(ctx, job, "")
	sess.log.LogInfo(fmt.Sprintf("Watching %s for changes (Ctrl+C to stop)", w.RootDir()))

	return w.Run(ctx, func(ctx context.Context, change watch.Change) {
		sess.log.LogDebug(fmt.Sprintf("%d change(s), first: %s", len(change.Paths), change.Paths[0]))
		sess.stage(ctx, job, "")
	}, func(err error) {
		sess.log.LogWarn(fmt.Sprintf("watch error: %v", err))
	})
}
