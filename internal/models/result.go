package models

import "time"

// Run status constants recorded in history
const (
	StatusSucceeded = "SUCCEEDED" // Every matched file was staged
	StatusFailed    = "FAILED"    // The run halted on a fatal error
)

// StagedFile describes one numbered copy written into a destination.
type StagedFile struct {
	Index  int    // 1-based rank of Source in sorted order
	Source string // Matched source path as returned by pattern expansion
	Target string // Absolute path of the numbered copy
	Size   int64  // Bytes copied
	SHA256 string // Hex digest of the copied bytes
}

// RunResult is the outcome of staging one job.
type RunResult struct {
	RunID      string        // Unique identifier for this run
	Job        Job           // The job that was staged
	Count      int           // Number of files copied
	Files      []StagedFile  // Copies in index order (partial when the run failed)
	StartedAt  time.Time     // When the run began
	FinishedAt time.Time     // When the run ended
	Duration   time.Duration // FinishedAt - StartedAt
}

// PlanSummary aggregates the results of applying a plan.
type PlanSummary struct {
	TotalJobs  int           // Jobs in the plan
	Completed  int           // Jobs staged successfully
	Failed     int           // Jobs that failed (at most one, apply stops on failure)
	Skipped    int           // Jobs never started because an earlier job failed
	FilesTotal int           // Files staged across completed jobs
	Duration   time.Duration // Total wall time
	FailedJobs []JobFailure  // Details of failed jobs
}

// JobFailure pairs a job with the error that stopped it.
type JobFailure struct {
	Job Job
	Err error
}
