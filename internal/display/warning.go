package display

import (
	"fmt"
	"io"
	"strings"
)

// Warning represents a user-facing warning message
type Warning struct {
	Title      string   // Main warning title
	Message    string   // Detailed explanation (optional)
	Files      []string // Related files (optional)
	Suggestion string   // Action to take (optional)
}

// Display shows a formatted warning in yellow
func (w Warning) Display(out io.Writer) {
	var b strings.Builder

	b.WriteString("\x1b[33m")
	b.WriteString("⚠️  Warning: ")
	b.WriteString(w.Title)
	b.WriteString("\n")

	if w.Message != "" {
		b.WriteString("    ")
		b.WriteString(w.Message)
		b.WriteString("\n")
	}

	if len(w.Files) > 0 {
		b.WriteString("    ")
		if len(w.Files) == 1 {
			b.WriteString("Affected file:\n")
		} else {
			b.WriteString("Affected files:\n")
		}

		for i, file := range w.Files {
			b.WriteString("      ")
			b.WriteString(fmt.Sprintf("%d. %s", i+1, file))
			b.WriteString("\n")
		}
	}

	if w.Suggestion != "" {
		b.WriteString("    Suggestion:\n")
		b.WriteString("    ")
		b.WriteString(w.Suggestion)
		b.WriteString("\n")
	}

	b.WriteString("\x1b[0m")
	fmt.Fprint(out, b.String())
}

// WarnNoMatches creates the warning shown when a pattern matched nothing and
// the destination was left empty.
func WarnNoMatches(pattern, destination string) Warning {
	return Warning{
		Title:      "Pattern matched no files",
		Message:    fmt.Sprintf("%q matched nothing; %s is now empty.", pattern, destination),
		Suggestion: "Check the pattern is relative to the current directory (or the plan file), and quote it so the shell does not expand it.",
	}
}

// WarnVerifyFailed creates the warning shown when a destination no longer
// matches the run that staged it.
func WarnVerifyFailed(destination string, missing, extra, mismatched []string) Warning {
	var files []string
	for _, name := range missing {
		files = append(files, name+" (missing)")
	}
	for _, name := range extra {
		files = append(files, name+" (unexpected)")
	}
	for _, name := range mismatched {
		files = append(files, name+" (content differs)")
	}
	return Warning{
		Title:      "Destination does not match its last run",
		Message:    destination,
		Files:      files,
		Suggestion: "Re-run the job to restage the destination.",
	}
}
