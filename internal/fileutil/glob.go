package fileutil

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
)

// Glob expands pattern and returns the matching files sorted lexicographically.
// No matches yields an empty, non-nil slice. I/O errors encountered while
// walking (e.g. an unreadable directory on the match path) are returned
// rather than skipped.
func Glob(pattern string) ([]string, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}

	matches, err := doublestar.FilepathGlob(pattern,
		doublestar.WithFilesOnly(),
		doublestar.WithFailOnIOErrors(),
	)
	if err != nil {
		return nil, fmt.Errorf("expand pattern %q: %w", pattern, err)
	}

	return SortPaths(matches), nil
}

// ValidatePattern reports whether pattern is syntactically valid.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return fmt.Errorf("empty pattern: %w", doublestar.ErrBadPattern)
	}
	if !doublestar.ValidatePathPattern(pattern) {
		return fmt.Errorf("invalid pattern %q: %w", pattern, doublestar.ErrBadPattern)
	}
	return nil
}

// Match reports whether path matches pattern using the same rules as Glob.
func Match(pattern, path string) (bool, error) {
	return doublestar.PathMatch(filepath.Clean(pattern), filepath.Clean(path))
}

// BaseDir returns the longest leading directory of pattern that contains no
// wildcards. Every file Glob can return lives under it.
func BaseDir(pattern string) string {
	base, _ := doublestar.SplitPattern(filepath.ToSlash(filepath.Clean(pattern)))
	return filepath.FromSlash(base)
}

// SortPaths returns a sorted copy of paths using byte-wise string comparison.
// The input slice is not modified.
func SortPaths(paths []string) []string {
	out := make([]string, len(paths))
	copy(out, paths)
	sort.Strings(out)
	return out
}
