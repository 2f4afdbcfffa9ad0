package stager

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/harrison/stager/internal/models"
)

// VerifyReport describes how a destination differs from what a run staged.
type VerifyReport struct {
	Destination string
	Expected    int      // Number of numbered files the destination should hold
	Found       int      // Entries actually present
	Missing     []string // Expected names that are absent
	Extra       []string // Entries outside 1..Expected, or not regular files
	Mismatched  []string // Names whose size or SHA-256 differs from the manifest
}

// OK reports whether the destination matched exactly.
func (r *VerifyReport) OK() bool {
	return len(r.Missing) == 0 && len(r.Extra) == 0 && len(r.Mismatched) == 0
}

// Verify checks destination against the files a run staged. It requires
// exactly the names 1..len(files), each a regular file whose size and digest
// match the manifest. With no manifest (files == nil) only the shape is
// checked: every entry must be a regular file and the names must run 1..n
// without gaps.
func Verify(destination string, files []models.StagedFile) (*VerifyReport, error) {
	entries, err := os.ReadDir(destination)
	if err != nil {
		return nil, fmt.Errorf("read destination %s: %w", destination, err)
	}

	report := &VerifyReport{Destination: destination, Found: len(entries)}

	expected := make(map[string]*models.StagedFile)
	if files == nil {
		report.Expected = len(entries)
		for i := 1; i <= len(entries); i++ {
			expected[strconv.Itoa(i)] = nil
		}
	} else {
		report.Expected = len(files)
		for i := range files {
			expected[strconv.Itoa(files[i].Index)] = &files[i]
		}
	}

	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		want, ok := expected[name]
		if !ok || !entry.Type().IsRegular() {
			report.Extra = append(report.Extra, name)
			continue
		}
		present[name] = true

		if want == nil {
			continue
		}
		size, digest, err := hashFile(filepath.Join(destination, name))
		if err != nil {
			return nil, fmt.Errorf("hash %s: %w", name, err)
		}
		if size != want.Size || digest != want.SHA256 {
			report.Mismatched = append(report.Mismatched, name)
		}
	}

	for name := range expected {
		if !present[name] {
			report.Missing = append(report.Missing, name)
		}
	}

	sortNumeric(report.Missing)
	sortNumeric(report.Extra)
	sortNumeric(report.Mismatched)
	return report, nil
}

// sortNumeric orders staged names by their number, with non-numeric names
// last in lexical order.
func sortNumeric(names []string) {
	sort.Slice(names, func(i, j int) bool {
		a, errA := strconv.Atoi(names[i])
		b, errB := strconv.Atoi(names[j])
		switch {
		case errA == nil && errB == nil:
			return a < b
		case errA == nil:
			return true
		case errB == nil:
			return false
		default:
			return names[i] < names[j]
		}
	})
}
