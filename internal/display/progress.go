package display

import (
	"fmt"
	"io"
)

// ProgressIndicator prints one line per job while a plan is applied
type ProgressIndicator struct {
	writer    io.Writer
	totalJobs int
	current   int
}

// NewProgressIndicator creates a new progress indicator
func NewProgressIndicator(w io.Writer, total int) *ProgressIndicator {
	return &ProgressIndicator{
		writer:    w,
		totalJobs: total,
	}
}

// Start displays the header message
func (p *ProgressIndicator) Start(planName string) {
	if planName == "" {
		fmt.Fprintf(p.writer, "Applying plan:\n")
		return
	}
	fmt.Fprintf(p.writer, "Applying plan %s:\n", planName)
}

// Step displays progress for the next job: [N/Total] label (cyan)
func (p *ProgressIndicator) Step(label string) {
	p.current++
	fmt.Fprintf(p.writer, "\x1b[36m  [%d/%d] %s\x1b[0m\n", p.current, p.totalJobs, label)
}

// Complete displays success message with green checkmark
func (p *ProgressIndicator) Complete() {
	noun := "jobs"
	if p.totalJobs == 1 {
		noun = "job"
	}
	fmt.Fprintf(p.writer, "\x1b[32m✓\x1b[0m Applied %d %s\n", p.totalJobs, noun)
}

// DisplayDryRunJob prints what a job would do without touching the disk.
func DisplayDryRunJob(w io.Writer, label, pattern, destination string, matches int, atomic bool) {
	mode := "in place"
	if atomic {
		mode = "atomic"
	}
	fmt.Fprintf(w, "  %s: %d file(s) from %s -> %s (%s)\n", label, matches, pattern, destination, mode)
}
