package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/harrison/stager/internal/config"
	"github.com/harrison/stager/internal/display"
	"github.com/harrison/stager/internal/history"
	"github.com/harrison/stager/internal/logger"
	"github.com/harrison/stager/internal/models"
	"github.com/harrison/stager/internal/stager"
)

// loadConfig reads the --config file (or .stager/config.yaml in the working
// directory), applies any staging flags the command defines and the user set,
// and validates the result.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	configPath, _ := cmd.Flags().GetString("config")

	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadConfig(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", configPath, err)
		}
	} else {
		cfg, err = config.LoadConfigFromDir(".")
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	var (
		logLevelPtr    *string
		logDirPtr      *string
		atomicPtr      *bool
		lockTimeoutPtr *time.Duration
		historyPtr     *bool
	)
	flags := cmd.Flags()
	if flags.Lookup("log-level") != nil && flags.Changed("log-level") {
		v, _ := flags.GetString("log-level")
		logLevelPtr = &v
	}
	if flags.Lookup("log-dir") != nil && flags.Changed("log-dir") {
		v, _ := flags.GetString("log-dir")
		logDirPtr = &v
	}
	if flags.Lookup("atomic") != nil && flags.Changed("atomic") {
		v, _ := flags.GetBool("atomic")
		atomicPtr = &v
	}
	if flags.Lookup("lock-timeout") != nil && flags.Changed("lock-timeout") {
		v, _ := flags.GetDuration("lock-timeout")
		lockTimeoutPtr = &v
	}
	if flags.Lookup("no-history") != nil && flags.Changed("no-history") {
		v, _ := flags.GetBool("no-history")
		enabled := !v
		historyPtr = &enabled
	}
	cfg.MergeWithFlags(logLevelPtr, logDirPtr, atomicPtr, lockTimeoutPtr, historyPtr)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// addStagingFlags registers the flags shared by run and apply.
func addStagingFlags(cmd *cobra.Command) {
	cmd.Flags().String("log-level", "", "Log level: trace, debug, info, warn, error (default from config)")
	cmd.Flags().String("log-dir", "", "Directory for run logs (empty string disables file logs)")
	cmd.Flags().Bool("no-history", false, "Do not record runs in the history database")
	cmd.Flags().Duration("lock-timeout", 0, "How long to wait for a busy destination (0 = fail immediately)")
}

// session holds the loggers and history store for one command invocation.
type session struct {
	cfg     *config.Config
	out     io.Writer
	log     logger.MultiLogger
	fileLog *logger.FileLogger
	store   *history.Store
	stager  *stager.Stager
}

// newSession wires console and file logging and, when enabled, the history
// store. History problems are reported but never stop staging.
func newSession(cmd *cobra.Command, cfg *config.Config) (*session, error) {
	out := cmd.OutOrStdout()
	s := &session{cfg: cfg, out: out}

	loggers := []logger.Logger{logger.NewConsoleLogger(out, cfg.LogLevel)}
	if cfg.LogDir != "" {
		fileLog, err := logger.NewFileLogger(cfg.LogDir, cfg.LogLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create file logger: %w", err)
		}
		s.fileLog = fileLog
		loggers = append(loggers, fileLog)
	}
	s.log = logger.NewMultiLogger(loggers...)

	if cfg.History.Enabled {
		if store, err := openHistory(cfg); err != nil {
			s.log.LogWarn(fmt.Sprintf("run history disabled: %v", err))
		} else {
			s.store = store
		}
	}

	s.stager = stager.New(
		stager.WithLogger(s.log),
		stager.WithLockTimeout(cfg.LockTimeout),
	)
	return s, nil
}

// Close releases the history store and finishes the run log.
func (s *session) Close() error {
	var firstErr error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			firstErr = err
		}
	}
	if s.fileLog != nil {
		if err := s.fileLog.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// stage runs job, records it in history and warns when nothing matched.
func (s *session) stage(ctx context.Context, job models.Job, planFile string) (*models.RunResult, error) {
	result, runErr := s.stager.Run(ctx, job)

	if s.store != nil {
		run := history.NewRun(result, runErr)
		run.PlanFile = planFile
		if err := s.store.RecordRun(context.WithoutCancel(ctx), run); err != nil {
			s.log.LogWarn(fmt.Sprintf("failed to record run %s: %v", result.RunID, err))
		}
	}

	if runErr == nil && result.Count == 0 {
		display.WarnNoMatches(job.Pattern, job.Destination).Display(s.out)
	}
	return result, runErr
}

// openHistory opens the history database configured in cfg.
func openHistory(cfg *config.Config) (*history.Store, error) {
	dbPath, err := cfg.ResolveHistoryDBPath()
	if err != nil {
		return nil, fmt.Errorf("resolve history database: %w", err)
	}
	store, err := history.NewStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history database %s: %w", dbPath, err)
	}
	return store, nil
}
