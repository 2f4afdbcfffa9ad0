package models

// Plan is an ordered list of staging jobs loaded from a YAML or Markdown file.
type Plan struct {
	Name     string       // Plan name
	FilePath string       // Absolute path of the file the plan came from
	Defaults PlanDefaults // Values applied to jobs that leave them unset
	Jobs     []Job        // Jobs in execution order
}

// PlanDefaults holds plan-wide settings inherited by every job.
type PlanDefaults struct {
	Atomic bool
}
