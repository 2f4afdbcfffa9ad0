// Package logger provides console and file logging for staging runs.
//
// Both implementations prefix every line with an [HH:MM:SS] timestamp, filter
// by level (trace, debug, info, warn, error) and are safe for concurrent use.
package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"

	"github.com/harrison/stager/internal/models"
)

// ConsoleLogger logs staging progress to a writer with timestamps and thread safety.
// Color output is enabled automatically when the writer is a terminal.
type ConsoleLogger struct {
	writer      io.Writer
	logLevel    string
	mutex       sync.Mutex
	colorOutput bool
	progress    *ProgressBar
}

// NewConsoleLogger creates a ConsoleLogger that writes to the provided io.Writer.
// If writer is nil, messages are silently discarded.
// If logLevel is empty or invalid, defaults to "info".
func NewConsoleLogger(writer io.Writer, logLevel string) *ConsoleLogger {
	return &ConsoleLogger{
		writer:      writer,
		logLevel:    normalizeLogLevel(logLevel),
		colorOutput: isTerminal(writer),
	}
}

// isTerminal checks if the writer is a terminal that supports colors.
// Honors NO_COLOR through fatih/color's global switch.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok || f == nil {
		return false
	}
	if color.NoColor {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// LogTrace logs a trace-level message (most verbose).
func (cl *ConsoleLogger) LogTrace(message string) {
	cl.logWithLevel("TRACE", message)
}

// LogDebug logs a debug-level message.
func (cl *ConsoleLogger) LogDebug(message string) {
	cl.logWithLevel("DEBUG", message)
}

// LogInfo logs an info-level message.
func (cl *ConsoleLogger) LogInfo(message string) {
	cl.logWithLevel("INFO", message)
}

// LogWarn logs a warning-level message.
func (cl *ConsoleLogger) LogWarn(message string) {
	cl.logWithLevel("WARN", message)
}

// LogError logs an error-level message.
func (cl *ConsoleLogger) LogError(message string) {
	cl.logWithLevel("ERROR", message)
}

func (cl *ConsoleLogger) logWithLevel(level string, message string) {
	if cl.writer == nil || !allows(cl.logLevel, level) {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	tag := level
	if cl.colorOutput {
		tag = levelColor(level).Sprint(level)
	}
	fmt.Fprintf(cl.writer, "[%s] [%s] %s\n", timestamp(), tag, message)
}

func levelColor(level string) *color.Color {
	switch strings.ToUpper(level) {
	case "TRACE":
		return color.New(color.FgHiBlack)
	case "DEBUG":
		return color.New(color.FgCyan)
	case "WARN":
		return color.New(color.FgYellow)
	case "ERROR":
		return color.New(color.FgRed)
	default:
		return color.New(color.FgBlue)
	}
}

// LogJobStart logs the start of a staging job at INFO level.
// Format: "[HH:MM:SS] Staging <label>: <pattern> -> <destination>"
func (cl *ConsoleLogger) LogJobStart(job models.Job) {
	if cl.writer == nil || !allows(cl.logLevel, "info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	cl.progress = nil
	label := job.Label()
	if cl.colorOutput {
		label = color.New(color.Bold).Sprint(label)
	}
	mode := ""
	if job.Atomic {
		mode = " (atomic)"
	}
	fmt.Fprintf(cl.writer, "[%s] Staging %s: %s -> %s%s\n", timestamp(), label, job.Pattern, job.Destination, mode)
}

// LogFileStaged logs one copied file at DEBUG level. On a color terminal at
// INFO level a progress bar is redrawn in place instead.
func (cl *ConsoleLogger) LogFileStaged(file models.StagedFile, total int) {
	if cl.writer == nil {
		return
	}

	if allows(cl.logLevel, "debug") {
		cl.logWithLevel("DEBUG", fmt.Sprintf("%s -> %d (%d bytes)", file.Source, file.Index, file.Size))
		return
	}
	if !cl.colorOutput || !allows(cl.logLevel, "info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	if cl.progress == nil || cl.progress.Total() != total {
		cl.progress = NewProgressBar(total, 20, true)
	}
	cl.progress.Update(file.Index)
	fmt.Fprintf(cl.writer, "\r%s", cl.progress.Render())
	if file.Index >= total {
		fmt.Fprint(cl.writer, "\n")
	}
}

// LogJobComplete logs a successful job at INFO level.
// Format: "[HH:MM:SS] <label> staged <n> file(s) (<duration>)"
func (cl *ConsoleLogger) LogJobComplete(result *models.RunResult) {
	if cl.writer == nil || result == nil || !allows(cl.logLevel, "info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	label := result.Job.Label()
	staged := "staged"
	if cl.colorOutput {
		label = color.New(color.Bold).Sprint(label)
		staged = color.New(color.FgGreen).Sprint(staged)
	}
	fmt.Fprintf(cl.writer, "[%s] %s %s %d %s (%s)\n",
		timestamp(), label, staged, result.Count, pluralFiles(result.Count), formatDuration(result.Duration))
}

// LogJobFail logs a failed job at ERROR level.
func (cl *ConsoleLogger) LogJobFail(job models.Job, err error) {
	cl.logWithLevel("ERROR", fmt.Sprintf("%s failed: %v", job.Label(), err))
}

// LogSummary logs the plan summary at INFO level.
func (cl *ConsoleLogger) LogSummary(summary models.PlanSummary) {
	if cl.writer == nil || !allows(cl.logLevel, "info") {
		return
	}

	cl.mutex.Lock()
	defer cl.mutex.Unlock()

	ts := timestamp()
	var b strings.Builder

	header := "=== Staging Summary ==="
	completed := fmt.Sprintf("Completed: %d", summary.Completed)
	failed := fmt.Sprintf("Failed: %d", summary.Failed)
	if cl.colorOutput {
		header = color.New(color.Bold).Sprint(header)
		completed = color.New(color.FgGreen).Sprint(completed)
		if summary.Failed > 0 {
			failed = color.New(color.FgRed).Sprint(failed)
		}
	}

	fmt.Fprintf(&b, "[%s] %s\n", ts, header)
	fmt.Fprintf(&b, "[%s] Total jobs: %d\n", ts, summary.TotalJobs)
	fmt.Fprintf(&b, "[%s] %s\n", ts, completed)
	fmt.Fprintf(&b, "[%s] %s\n", ts, failed)
	if summary.Skipped > 0 {
		fmt.Fprintf(&b, "[%s] Skipped: %d\n", ts, summary.Skipped)
	}
	fmt.Fprintf(&b, "[%s] Files staged: %d\n", ts, summary.FilesTotal)
	fmt.Fprintf(&b, "[%s] Duration: %s\n", ts, formatDuration(summary.Duration))
	for _, f := range summary.FailedJobs {
		fmt.Fprintf(&b, "[%s]   - %s: %v\n", ts, f.Job.Label(), f.Err)
	}

	io.WriteString(cl.writer, b.String())
}

// timestamp returns the current time formatted as "15:04:05" (HH:MM:SS).
func timestamp() string {
	return time.Now().Format("15:04:05")
}

func pluralFiles(n int) string {
	if n == 1 {
		return "file"
	}
	return "files"
}

// formatDuration renders d compactly: "850ms", "4.2s", "3m5s", "1h2m".
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Hour:
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	default:
		return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
	}
}
