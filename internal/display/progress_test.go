package display

import (
	"bytes"
	"strings"
	"testing"
)

func TestProgressIndicator_Start(t *testing.T) {
	tests := []struct {
		name     string
		planName string
		want     string
	}{
		{"named plan", "samples", "Applying plan samples:\n"},
		{"unnamed plan", "", "Applying plan:\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			NewProgressIndicator(&buf, 2).Start(tt.planName)
			if buf.String() != tt.want {
				t.Errorf("Start() = %q, want %q", buf.String(), tt.want)
			}
		})
	}
}

func TestProgressIndicator_FullWorkflow(t *testing.T) {
	var buf bytes.Buffer
	p := NewProgressIndicator(&buf, 2)

	p.Start("samples")
	p.Step("parser")
	p.Step("inputs")
	p.Complete()

	want := "Applying plan samples:\n" +
		"\x1b[36m  [1/2] parser\x1b[0m\n" +
		"\x1b[36m  [2/2] inputs\x1b[0m\n" +
		"\x1b[32m✓\x1b[0m Applied 2 jobs\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}

func TestProgressIndicator_CompleteSingular(t *testing.T) {
	var buf bytes.Buffer
	NewProgressIndicator(&buf, 1).Complete()
	if !strings.Contains(buf.String(), "Applied 1 job\n") {
		t.Errorf("output = %q", buf.String())
	}
}

func TestDisplayDryRunJob(t *testing.T) {
	var buf bytes.Buffer
	DisplayDryRunJob(&buf, "parser", "case/*/parser", "out", 3, false)
	DisplayDryRunJob(&buf, "inputs", "case/*/input", "in", 0, true)

	want := "  parser: 3 file(s) from case/*/parser -> out (in place)\n" +
		"  inputs: 0 file(s) from case/*/input -> in (atomic)\n"
	if buf.String() != want {
		t.Errorf("output = %q, want %q", buf.String(), want)
	}
}
