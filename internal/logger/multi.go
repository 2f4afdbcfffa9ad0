package logger

import "github.com/harrison/stager/internal/models"

// Logger is the set of events the CLI reports while staging.
type Logger interface {
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogJobStart(job models.Job)
	LogFileStaged(file models.StagedFile, total int)
	LogJobComplete(result *models.RunResult)
	LogJobFail(job models.Job, err error)
	LogSummary(summary models.PlanSummary)
}

// MultiLogger fans every event out to each wrapped logger in order.
type MultiLogger []Logger

// NewMultiLogger drops nil entries and returns the fan-out.
func NewMultiLogger(loggers ...Logger) MultiLogger {
	out := make(MultiLogger, 0, len(loggers))
	for _, l := range loggers {
		if l != nil {
			out = append(out, l)
		}
	}
	return out
}

func (m MultiLogger) LogDebug(message string) {
	for _, l := range m {
		l.LogDebug(message)
	}
}

func (m MultiLogger) LogInfo(message string) {
	for _, l := range m {
		l.LogInfo(message)
	}
}

func (m MultiLogger) LogWarn(message string) {
	for _, l := range m {
		l.LogWarn(message)
	}
}

func (m MultiLogger) LogError(message string) {
	for _, l := range m {
		l.LogError(message)
	}
}

func (m MultiLogger) LogJobStart(job models.Job) {
	for _, l := range m {
		l.LogJobStart(job)
	}
}

func (m MultiLogger) LogFileStaged(file models.StagedFile, total int) {
	for _, l := range m {
		l.LogFileStaged(file, total)
	}
}

func (m MultiLogger) LogJobComplete(result *models.RunResult) {
	for _, l := range m {
		l.LogJobComplete(result)
	}
}

func (m MultiLogger) LogJobFail(job models.Job, err error) {
	for _, l := range m {
		l.LogJobFail(job, err)
	}
}

func (m MultiLogger) LogSummary(summary models.PlanSummary) {
	for _, l := range m {
		l.LogSummary(summary)
	}
}
