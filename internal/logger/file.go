package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/harrison/stager/internal/models"
)

// FileLogger writes staging events to a timestamped run log and keeps a
// latest.log symlink pointing at the most recent one.
type FileLogger struct {
	logDir   string
	runLog   *os.File
	runFile  string
	logLevel string
	mu       sync.Mutex
}

// NewFileLogger creates a FileLogger in logDir at the given level. The
// directory is created if needed and the run file is named
// run-YYYYMMDD-HHMMSS.log.
func NewFileLogger(logDir string, logLevel string) (*FileLogger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	runFile := filepath.Join(logDir, fmt.Sprintf("run-%s.log", time.Now().Format("20060102-150405")))
	file, err := os.OpenFile(runFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create run log file: %w", err)
	}

	symlinkPath := filepath.Join(logDir, "latest.log")
	if _, err := os.Lstat(symlinkPath); err == nil {
		if err := os.Remove(symlinkPath); err != nil {
			file.Close()
			return nil, fmt.Errorf("failed to remove old symlink: %w", err)
		}
	}
	if err := os.Symlink(filepath.Base(runFile), symlinkPath); err != nil {
		file.Close()
		return nil, fmt.Errorf("failed to create symlink: %w", err)
	}

	fl := &FileLogger{
		logDir:   logDir,
		runLog:   file,
		runFile:  runFile,
		logLevel: normalizeLogLevel(logLevel),
	}
	fl.writeRunLog("=== Stager Run Log ===\n")
	fl.writeRunLog(fmt.Sprintf("Started at: %s\n\n", time.Now().Format(time.RFC3339)))

	return fl, nil
}

// RunFile returns the path of the log file being written.
func (fl *FileLogger) RunFile() string {
	return fl.runFile
}

// LogTrace logs a trace-level message (most verbose).
func (fl *FileLogger) LogTrace(message string) { fl.logWithLevel("TRACE", message) }

// LogDebug logs a debug-level message.
func (fl *FileLogger) LogDebug(message string) { fl.logWithLevel("DEBUG", message) }

// LogInfo logs an info-level message.
func (fl *FileLogger) LogInfo(message string) { fl.logWithLevel("INFO", message) }

// LogWarn logs a warning-level message.
func (fl *FileLogger) LogWarn(message string) { fl.logWithLevel("WARN", message) }

// LogError logs an error-level message.
func (fl *FileLogger) LogError(message string) { fl.logWithLevel("ERROR", message) }

func (fl *FileLogger) logWithLevel(level string, message string) {
	if !allows(fl.logLevel, level) {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [%s] %s\n", timestamp(), level, message))
}

// LogJobStart records the job parameters at INFO level.
func (fl *FileLogger) LogJobStart(job models.Job) {
	if !allows(fl.logLevel, "info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] Staging %s: pattern=%q destination=%q atomic=%t\n",
		timestamp(), job.Label(), job.Pattern, job.Destination, job.Atomic))
}

// LogFileStaged records every copy at DEBUG level, including its digest.
func (fl *FileLogger) LogFileStaged(file models.StagedFile, total int) {
	if !allows(fl.logLevel, "debug") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] [DEBUG] (%d/%d) %s -> %s size=%d sha256=%s\n",
		timestamp(), file.Index, total, file.Source, file.Target, file.Size, file.SHA256))
}

// LogJobComplete records the run result at INFO level.
func (fl *FileLogger) LogJobComplete(result *models.RunResult) {
	if result == nil || !allows(fl.logLevel, "info") {
		return
	}
	fl.writeRunLog(fmt.Sprintf("[%s] %s complete: run %s, %d %s, duration %.3fs\n",
		timestamp(), result.Job.Label(), result.RunID, result.Count, pluralFiles(result.Count), result.Duration.Seconds()))
}

// LogJobFail records a failed job at ERROR level.
func (fl *FileLogger) LogJobFail(job models.Job, err error) {
	fl.logWithLevel("ERROR", fmt.Sprintf("%s failed: %v", job.Label(), err))
}

// LogSummary records plan totals at INFO level.
func (fl *FileLogger) LogSummary(summary models.PlanSummary) {
	if !allows(fl.logLevel, "info") {
		return
	}

	var b strings.Builder
	b.WriteString("\n=== Staging Summary ===\n")
	fmt.Fprintf(&b, "Total jobs: %d\n", summary.TotalJobs)
	fmt.Fprintf(&b, "Completed: %d\n", summary.Completed)
	fmt.Fprintf(&b, "Failed: %d\n", summary.Failed)
	fmt.Fprintf(&b, "Skipped: %d\n", summary.Skipped)
	fmt.Fprintf(&b, "Files staged: %d\n", summary.FilesTotal)
	fmt.Fprintf(&b, "Duration: %.1fs\n", summary.Duration.Seconds())
	for _, f := range summary.FailedJobs {
		fmt.Fprintf(&b, "  - %s: %v\n", f.Job.Label(), f.Err)
	}
	fl.writeRunLog(b.String())
}

// Close writes a footer and closes the run log.
func (fl *FileLogger) Close() error {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog == nil {
		return nil
	}
	fmt.Fprintf(fl.runLog, "\nFinished at: %s\n", time.Now().Format(time.RFC3339))
	err := fl.runLog.Close()
	fl.runLog = nil
	return err
}

func (fl *FileLogger) writeRunLog(message string) {
	fl.mu.Lock()
	defer fl.mu.Unlock()

	if fl.runLog == nil {
		return
	}
	fl.runLog.WriteString(message)
}
