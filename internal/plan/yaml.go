package plan

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/harrison/stager/internal/models"
)

// YAMLParser parses plans written as YAML:
//
//	name: samples
//	defaults:
//	  atomic: true
//	jobs:
//	  - name: parser
//	    pattern: test-data/case/*/parser
//	    destination: ../example
type YAMLParser struct{}

// NewYAMLParser creates a YAMLParser
func NewYAMLParser() *YAMLParser {
	return &YAMLParser{}
}

type yamlPlan struct {
	Name     string       `yaml:"name"`
	Defaults yamlDefaults `yaml:"defaults"`
	Jobs     []yamlJob    `yaml:"jobs"`
}

type yamlDefaults struct {
	Atomic bool `yaml:"atomic"`
}

type yamlJob struct {
	Name        string `yaml:"name"`
	Pattern     string `yaml:"pattern"`
	Destination string `yaml:"destination"`
	Atomic      *bool  `yaml:"atomic"`
}

// Parse decodes a YAML plan. Unknown keys are rejected so typos such as
// "destinaton" fail loudly instead of producing a job without a destination.
func (p *YAMLParser) Parse(r io.Reader) (*models.Plan, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read content: %w", err)
	}

	var raw yamlPlan
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	plan := &models.Plan{
		Name:     raw.Name,
		Defaults: models.PlanDefaults{Atomic: raw.Defaults.Atomic},
		Jobs:     make([]models.Job, 0, len(raw.Jobs)),
	}
	for _, rj := range raw.Jobs {
		job := models.Job{
			Name:        rj.Name,
			Pattern:     rj.Pattern,
			Destination: rj.Destination,
		}
		applyDefaults(&job, rj.Atomic, plan.Defaults)
		plan.Jobs = append(plan.Jobs, job)
	}
	return plan, nil
}
