package plan

import (
	"bytes"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/harrison/stager/internal/models"
)

// MarkdownParser parses plans written as Markdown. Optional YAML frontmatter
// carries the plan name and defaults; each "## Job: <name>" heading starts a
// job whose fields are list items:
//
//	## Job: parser
//	- Pattern: `test-data/case/*/parser`
//	- Destination: `../example`
//	- Atomic: true
//
// Values should be wrapped in backticks so glob characters are not read as
// Markdown emphasis.
type MarkdownParser struct {
	markdown goldmark.Markdown
}

// frontmatterConfig is the YAML frontmatter of a Markdown plan
type frontmatterConfig struct {
	Name     string       `yaml:"name"`
	Defaults yamlDefaults `yaml:"defaults"`
}

var jobHeading = regexp.MustCompile(`^Job:\s*(.+)$`)

// NewMarkdownParser creates a MarkdownParser
func NewMarkdownParser() *MarkdownParser {
	return &MarkdownParser{
		markdown: goldmark.New(),
	}
}

// markdownJob tracks a job under construction and whether Atomic was given.
type markdownJob struct {
	job    models.Job
	atomic *bool
}

func (p *MarkdownParser) Parse(r io.Reader) (*models.Plan, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	plan := &models.Plan{}
	content, frontmatter := extractFrontmatter(content)
	if frontmatter != nil {
		var cfg frontmatterConfig
		if err := yaml.Unmarshal(frontmatter, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse frontmatter: %w", err)
		}
		plan.Name = cfg.Name
		plan.Defaults.Atomic = cfg.Defaults.Atomic
	}

	doc := p.markdown.Parser().Parse(text.NewReader(content))
	jobs, title, err := extractJobs(doc, content)
	if err != nil {
		return nil, err
	}
	if plan.Name == "" {
		plan.Name = title
	}

	plan.Jobs = make([]models.Job, 0, len(jobs))
	for _, mj := range jobs {
		job := mj.job
		applyDefaults(&job, mj.atomic, plan.Defaults)
		plan.Jobs = append(plan.Jobs, job)
	}
	return plan, nil
}

// extractJobs walks the document collecting "## Job:" sections. It also
// returns the text of the first level-1 heading as a fallback plan name.
func extractJobs(doc ast.Node, source []byte) ([]*markdownJob, string, error) {
	var (
		jobs    []*markdownJob
		current *markdownJob
		title   string
	)

	err := ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading:
			headingText := strings.TrimSpace(nodeText(node, source))
			if node.Level == 1 && title == "" {
				title = headingText
			}
			if node.Level <= 2 {
				current = nil
				if m := jobHeading.FindStringSubmatch(headingText); node.Level == 2 && m != nil {
					current = &markdownJob{job: models.Job{Name: strings.TrimSpace(m[1])}}
					jobs = append(jobs, current)
				}
			}
			return ast.WalkSkipChildren, nil

		case *ast.ListItem:
			if current == nil {
				return ast.WalkContinue, nil
			}
			if err := applyField(current, node, source); err != nil {
				return ast.WalkStop, err
			}
			return ast.WalkSkipChildren, nil
		}

		return ast.WalkContinue, nil
	})
	if err != nil {
		return nil, "", err
	}
	return jobs, title, nil
}

// applyField reads a "Key: value" list item into the job. Items with other
// keys are treated as prose and ignored.
func applyField(mj *markdownJob, item *ast.ListItem, source []byte) error {
	line := strings.TrimSpace(nodeText(item, source))
	key, rest, ok := strings.Cut(line, ":")
	if !ok {
		return nil
	}

	value := strings.TrimSpace(rest)
	if code := firstCodeSpan(item, source); code != "" {
		value = code
	}

	switch strings.ToLower(strings.TrimSpace(key)) {
	case "pattern":
		mj.job.Pattern = value
	case "destination":
		mj.job.Destination = value
	case "atomic":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("job %q: invalid atomic value %q", mj.job.Name, value)
		}
		mj.atomic = &b
	}
	return nil
}

// nodeText concatenates the text under n, including code spans.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return buf.String()
}

// firstCodeSpan returns the contents of the first inline code span under n.
func firstCodeSpan(n ast.Node, source []byte) string {
	var code string
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if span, ok := c.(*ast.CodeSpan); ok {
			code = strings.TrimSpace(nodeText(span, source))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return code
}

// extractFrontmatter extracts YAML frontmatter from markdown content
// Returns the content without frontmatter and the frontmatter bytes
func extractFrontmatter(content []byte) ([]byte, []byte) {
	lines := bytes.Split(content, []byte("\n"))

	if len(lines) < 3 || !bytes.Equal(bytes.TrimSpace(lines[0]), []byte("---")) {
		return content, nil
	}

	for i := 1; i < len(lines); i++ {
		if bytes.Equal(bytes.TrimSpace(lines[i]), []byte("---")) {
			frontmatter := bytes.Join(lines[1:i], []byte("\n"))
			body := bytes.Join(lines[i+1:], []byte("\n"))
			return body, frontmatter
		}
	}

	// No closing delimiter found
	return content, nil
}
