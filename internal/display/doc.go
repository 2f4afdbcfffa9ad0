// Package display provides terminal output helpers for the stager CLI:
// warning blocks and plan progress lines.
//
// # Warning Messages
//
//	warning := display.WarnNoMatches("test-data/case/*/parser", "out")
//	warning.Display(os.Stderr)
//
// # Plan Progress
//
//	progress := display.NewProgressIndicator(os.Stdout, len(plan.Jobs))
//	progress.Start(plan.Name)
//	for _, job := range plan.Jobs {
//	    progress.Step(job.Label())
//	    // ... stage job ...
//	}
//	progress.Complete()
//
// All functions write to an io.Writer and use fixed ANSI codes:
// cyan for steps, green for success, yellow for warnings.
package display
