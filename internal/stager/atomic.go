package stager

import (
	"context"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/harrison/stager/internal/models"
)

// runAtomic discovers and copies into a hidden sibling of the destination,
// then swaps it into place. Until the swap the previous destination is left
// untouched; on any failure the staging directory is removed.
func (s *Stager) runAtomic(ctx context.Context, job models.Job, result *models.RunResult, ignore []string) error {
	dest := filepath.Clean(job.Destination)
	if err := checkResettable(dest); err != nil {
		return err
	}

	parent := filepath.Dir(dest)
	if err := os.MkdirAll(parent, 0755); err != nil {
		return &CreateError{Destination: dest, Err: err}
	}

	id := uuid.NewString()
	staging := filepath.Join(parent, "."+filepath.Base(dest)+".staging-"+id)
	// The old destination is still in place until the swap.
	ignore = append(ignore, staging, dest)

	sources, err := s.discover(job.Pattern, ignore)
	if err != nil {
		return err
	}

	if err := os.Mkdir(staging, 0755); err != nil {
		return &CreateError{Destination: dest, Err: err}
	}
	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()
	s.debugf("staging into %s", staging)

	if err := s.copyAll(ctx, sources, staging, dest, result); err != nil {
		// Nothing reached the destination.
		result.Files = result.Files[:0]
		return err
	}

	if err := s.swapDirectory(staging, dest, id); err != nil {
		result.Files = result.Files[:0]
		return err
	}
	committed = true
	return nil
}

// swapDirectory replaces dest with staging. An existing dest is first moved
// aside so a failed rename can put it back. Failing to delete the moved-aside
// copy afterwards does not fail the run: dest is already correct.
func (s *Stager) swapDirectory(staging, dest, id string) error {
	backup := ""
	if _, err := os.Lstat(dest); err == nil {
		backup = filepath.Join(filepath.Dir(dest), "."+filepath.Base(dest)+".old-"+id)
		if err := os.Rename(dest, backup); err != nil {
			return &ResetError{Destination: dest, Err: err}
		}
	} else if !os.IsNotExist(err) {
		return &ResetError{Destination: dest, Err: err}
	}

	if err := os.Rename(staging, dest); err != nil {
		if backup != "" {
			os.Rename(backup, dest)
		}
		return &CreateError{Destination: dest, Err: err}
	}

	if backup != "" {
		if err := os.RemoveAll(backup); err != nil {
			s.debugf("could not remove previous contents %s: %v", backup, err)
		}
	}
	return nil
}
