package models

import "fmt"

// Job is a single staging request: every file Pattern matches is copied into
// Destination under its 1-based rank in sorted order.
type Job struct {
	Name        string // Optional label (plans require it, ad-hoc runs may leave it empty)
	Pattern     string // Glob expression selecting source files
	Destination string // Directory that is reset and repopulated
	Atomic      bool   // Stage into a temp sibling and swap it into place
}

// Label returns the job name, falling back to the destination path.
func (j Job) Label() string {
	if j.Name != "" {
		return j.Name
	}
	return j.Destination
}

// Validate checks that the job carries the two parameters the stager needs.
func (j Job) Validate() error {
	if j.Pattern == "" {
		return fmt.Errorf("job %q: pattern is required", j.Label())
	}
	if j.Destination == "" {
		return fmt.Errorf("job %q: destination is required", j.Label())
	}
	return nil
}
