// Package plan loads staging plans: ordered lists of jobs written as YAML or
// as Markdown with one "## Job: <name>" section per job.
package plan

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/harrison/stager/internal/fileutil"
	"github.com/harrison/stager/internal/models"
)

// Format represents the format of a plan file
type Format int

const (
	// FormatUnknown represents an unknown or unsupported file format
	FormatUnknown Format = iota
	// FormatMarkdown represents a Markdown (.md, .markdown) plan file
	FormatMarkdown
	// FormatYAML represents a YAML (.yaml, .yml) plan file
	FormatYAML
)

// String returns the string representation of the Format
func (f Format) String() string {
	switch f {
	case FormatMarkdown:
		return "markdown"
	case FormatYAML:
		return "yaml"
	default:
		return "unknown"
	}
}

// Parser is the interface that all plan parsers must implement
type Parser interface {
	// Parse reads from an io.Reader and returns a parsed Plan
	Parse(r io.Reader) (*models.Plan, error)
}

// DetectFormat detects the plan format from the file extension:
//   - .md, .markdown -> FormatMarkdown
//   - .yaml, .yml -> FormatYAML
//   - all others -> FormatUnknown
func DetectFormat(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".md", ".markdown":
		return FormatMarkdown
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// NewParser creates a new parser instance for the specified format
func NewParser(format Format) (Parser, error) {
	switch format {
	case FormatMarkdown:
		return NewMarkdownParser(), nil
	case FormatYAML:
		return NewYAMLParser(), nil
	default:
		return nil, fmt.Errorf("unsupported format: %v", format)
	}
}

// ParseFile detects the format of path, parses it, and resolves relative
// patterns and destinations against the directory holding the plan file.
// The returned plan has FilePath set to the absolute path of the file.
func ParseFile(path string) (*models.Plan, error) {
	format := DetectFormat(path)
	if format == FormatUnknown {
		return nil, fmt.Errorf("unknown file format: %s (supported: .md, .markdown, .yaml, .yml)", path)
	}

	parser, err := NewParser(format)
	if err != nil {
		return nil, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	p, err := parser.Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse plan %s: %w", path, err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		absPath = path
	}
	p.FilePath = absPath

	ResolvePaths(p, filepath.Dir(absPath))
	return p, nil
}

// ResolvePaths makes every relative pattern and destination in p relative to
// baseDir instead of the working directory.
func ResolvePaths(p *models.Plan, baseDir string) {
	for i := range p.Jobs {
		job := &p.Jobs[i]
		if job.Pattern != "" && !filepath.IsAbs(job.Pattern) {
			job.Pattern = filepath.Join(baseDir, job.Pattern)
		}
		if job.Destination != "" && !filepath.IsAbs(job.Destination) {
			job.Destination = filepath.Join(baseDir, job.Destination)
		}
	}
}

// Validate checks a parsed plan and reports every problem found:
//   - the plan has at least one job
//   - every job has a unique name, a valid pattern and a destination
//   - no two jobs share a destination, and no destination lies inside another
func Validate(p *models.Plan) error {
	if p == nil {
		return errors.New("plan is nil")
	}
	if len(p.Jobs) == 0 {
		return errors.New("plan has no jobs")
	}

	var errs []error
	names := make(map[string]int)
	dests := make(map[string]string)

	for i, job := range p.Jobs {
		pos := i + 1
		if job.Name == "" {
			errs = append(errs, fmt.Errorf("job %d: name is required", pos))
		} else if prev, ok := names[job.Name]; ok {
			errs = append(errs, fmt.Errorf("job %d: name %q already used by job %d", pos, job.Name, prev))
		} else {
			names[job.Name] = pos
		}

		if job.Pattern == "" {
			errs = append(errs, fmt.Errorf("job %q: pattern is required", job.Label()))
		} else if err := fileutil.ValidatePattern(job.Pattern); err != nil {
			errs = append(errs, fmt.Errorf("job %q: %w", job.Label(), err))
		}

		if job.Destination == "" {
			errs = append(errs, fmt.Errorf("job %q: destination is required", job.Label()))
			continue
		}

		dest := filepath.Clean(job.Destination)
		if abs, err := filepath.Abs(dest); err == nil {
			dest = abs
		}
		for other, owner := range dests {
			switch {
			case other == dest:
				errs = append(errs, fmt.Errorf("job %q: destination %s already used by job %q", job.Label(), job.Destination, owner))
			case isWithin(dest, other), isWithin(other, dest):
				errs = append(errs, fmt.Errorf("job %q: destination %s overlaps destination of job %q", job.Label(), job.Destination, owner))
			}
		}
		if _, ok := dests[dest]; !ok {
			dests[dest] = job.Label()
		}
	}

	return errors.Join(errs...)
}

// isWithin reports whether path lies strictly inside dir.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil || rel == "." {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// applyDefaults sets job fields the plan file left unset from plan defaults.
func applyDefaults(job *models.Job, atomic *bool, defaults models.PlanDefaults) {
	if atomic != nil {
		job.Atomic = *atomic
	} else {
		job.Atomic = defaults.Atomic
	}
}
