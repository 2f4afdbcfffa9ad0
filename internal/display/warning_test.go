package display

import (
	"bytes"
	"strings"
	"testing"
)

func TestWarningDisplay(t *testing.T) {
	tests := []struct {
		name    string
		warning Warning
		want    []string
		notWant []string
	}{
		{
			name:    "title only",
			warning: Warning{Title: "Destination busy"},
			want:    []string{"\x1b[33m", "⚠️  Warning: Destination busy\n", "\x1b[0m"},
			notWant: []string{"Affected", "Suggestion:"},
		},
		{
			name:    "message is indented",
			warning: Warning{Title: "t", Message: "lock held by another run"},
			want:    []string{"    lock held by another run\n"},
		},
		{
			name:    "single file",
			warning: Warning{Title: "t", Files: []string{"out/3"}},
			want:    []string{"    Affected file:\n", "      1. out/3\n"},
		},
		{
			name:    "several files",
			warning: Warning{Title: "t", Files: []string{"out/1", "out/2"}},
			want:    []string{"    Affected files:\n", "      1. out/1\n", "      2. out/2\n"},
		},
		{
			name:    "suggestion",
			warning: Warning{Title: "t", Suggestion: "retry later"},
			want:    []string{"    Suggestion:\n    retry later\n"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.warning.Display(&buf)
			output := buf.String()

			for _, want := range tt.want {
				if !strings.Contains(output, want) {
					t.Errorf("expected %q in output, got: %q", want, output)
				}
			}
			for _, notWant := range tt.notWant {
				if strings.Contains(output, notWant) {
					t.Errorf("did not expect %q in output, got: %q", notWant, output)
				}
			}
			if !strings.HasSuffix(output, "\x1b[0m") {
				t.Errorf("output should end with reset code: %q", output)
			}
		})
	}
}

func TestWarnNoMatches(t *testing.T) {
	w := WarnNoMatches("test-data/case/*/parser", "example")

	if w.Title != "Pattern matched no files" {
		t.Errorf("Title = %q", w.Title)
	}
	if !strings.Contains(w.Message, `"test-data/case/*/parser"`) || !strings.Contains(w.Message, "example is now empty") {
		t.Errorf("Message = %q", w.Message)
	}
	if w.Suggestion == "" {
		t.Error("expected a suggestion")
	}
	if len(w.Files) != 0 {
		t.Errorf("Files = %v, want none", w.Files)
	}
}

func TestWarnVerifyFailed(t *testing.T) {
	w := WarnVerifyFailed("out", []string{"2"}, []string{"stale.txt"}, []string{"3"})

	want := []string{"2 (missing)", "stale.txt (unexpected)", "3 (content differs)"}
	if len(w.Files) != len(want) {
		t.Fatalf("Files = %v, want %v", w.Files, want)
	}
	for i := range want {
		if w.Files[i] != want[i] {
			t.Errorf("Files[%d] = %q, want %q", i, w.Files[i], want[i])
		}
	}
	if w.Message != "out" {
		t.Errorf("Message = %q, want destination", w.Message)
	}
}
