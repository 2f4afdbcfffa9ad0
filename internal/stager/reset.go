package stager

import (
	"errors"
	"fmt"
	"os"
	"syscall"
)

// resetDirectory removes dir and everything under it, then recreates it empty
// along with any missing parents. It returns only after confirming the
// directory exists and has no entries.
func resetDirectory(dir string) error {
	if err := checkResettable(dir); err != nil {
		return err
	}

	if err := os.RemoveAll(dir); err != nil {
		return &ResetError{Destination: dir, Err: err}
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return &CreateError{Destination: dir, Err: err}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return &CreateError{Destination: dir, Err: err}
	}
	if len(entries) > 0 {
		return &ResetError{Destination: dir, Err: fmt.Errorf("%w: %d entries remain", ErrNotEmpty, len(entries))}
	}
	return nil
}

// checkResettable refuses to reset a path that exists but is not a real
// directory. Symlinks are refused too: removing one would leave the directory
// it points at untouched.
func checkResettable(dir string) error {
	info, err := os.Lstat(dir)
	if os.IsNotExist(err) {
		return nil
	}
	if errors.Is(err, syscall.ENOTDIR) {
		// A parent component is a file: the directory can never be created.
		return &CreateError{Destination: dir, Err: err}
	}
	if err != nil {
		return &ResetError{Destination: dir, Err: err}
	}
	if !info.IsDir() {
		return &ResetError{Destination: dir, Err: ErrNotDirectory}
	}
	return nil
}
