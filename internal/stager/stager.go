package stager

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/harrison/stager/internal/filelock"
	"github.com/harrison/stager/internal/fileutil"
	"github.com/harrison/stager/internal/models"
)

// Logger receives progress events from a run. All methods must be safe to
// call with zero-value arguments.
type Logger interface {
	LogDebug(message string)
	LogJobStart(job models.Job)
	LogFileStaged(file models.StagedFile, total int)
	LogJobComplete(result *models.RunResult)
	LogJobFail(job models.Job, err error)
}

// Stager runs staging jobs one at a time.
type Stager struct {
	logger      Logger
	lockTimeout time.Duration
	locking     bool
	now         func() time.Time
}

// Option configures a Stager.
type Option func(*Stager)

// WithLogger sets the event logger. A nil logger discards events.
func WithLogger(l Logger) Option {
	return func(s *Stager) {
		s.logger = l
	}
}

// WithLockTimeout sets how long Run waits for another process to release the
// destination lock. Zero fails immediately when the lock is held.
func WithLockTimeout(d time.Duration) Option {
	return func(s *Stager) {
		s.lockTimeout = d
	}
}

// WithoutLock disables the destination lock. Callers take over responsibility
// for exclusive ownership of the destination.
func WithoutLock() Option {
	return func(s *Stager) {
		s.locking = false
	}
}

// New creates a Stager. By default it takes the destination lock and waits up
// to 10 seconds for it.
func New(opts ...Option) *Stager {
	s := &Stager{
		lockTimeout: 10 * time.Second,
		locking:     true,
		now:         time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Stage resets destination and fills it with numbered copies of the files
// pattern matches, returning how many were copied.
func Stage(pattern, destination string) (int, error) {
	result, err := New().Run(context.Background(), models.Job{Pattern: pattern, Destination: destination})
	if err != nil {
		return 0, err
	}
	return result.Count, nil
}

// Run stages job. The returned result is never nil: on failure it carries the
// files copied before the run halted, so callers can record partial output.
func (s *Stager) Run(ctx context.Context, job models.Job) (*models.RunResult, error) {
	result := &models.RunResult{
		RunID:     uuid.NewString(),
		Job:       job,
		Files:     []models.StagedFile{},
		StartedAt: s.now(),
	}

	s.logJobStart(job)
	err := s.run(ctx, job, result)

	result.FinishedAt = s.now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)
	result.Count = len(result.Files)

	if err != nil {
		s.logJobFail(job, err)
		return result, err
	}
	s.logJobComplete(result)
	return result, nil
}

func (s *Stager) run(ctx context.Context, job models.Job, result *models.RunResult) error {
	if err := job.Validate(); err != nil {
		return err
	}
	if err := fileutil.ValidatePattern(job.Pattern); err != nil {
		return &PatternError{Pattern: job.Pattern, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var ignore []string
	if s.locking {
		lock := filelock.ForDirectory(job.Destination)
		ignore = append(ignore, lock.Path())
		if err := lock.LockWithTimeout(ctx, s.lockTimeout); err != nil {
			if errors.Is(err, filelock.ErrLocked) {
				return fmt.Errorf("%w: %w", ErrDestinationBusy, err)
			}
			return &CreateError{Destination: job.Destination, Err: err}
		}
		defer lock.Unlock()
		s.debugf("acquired lock %s", lock.Path())
	}

	if job.Atomic {
		return s.runAtomic(ctx, job, result, ignore)
	}
	return s.runInPlace(ctx, job, result, ignore)
}

// runInPlace follows Reset → Discover → Copy directly in the destination.
func (s *Stager) runInPlace(ctx context.Context, job models.Job, result *models.RunResult, ignore []string) error {
	s.debugf("resetting %s", job.Destination)
	if err := resetDirectory(job.Destination); err != nil {
		return err
	}

	sources, err := s.discover(job.Pattern, ignore)
	if err != nil {
		return err
	}

	return s.copyAll(ctx, sources, job.Destination, job.Destination, result)
}

// discover expands pattern, dropping the run's own bookkeeping files (lock
// file, staging directory) should the pattern reach them.
func (s *Stager) discover(pattern string, ignore []string) ([]string, error) {
	matches, err := fileutil.Glob(pattern)
	if err != nil {
		return nil, &DiscoverError{Pattern: pattern, Err: err}
	}

	sources := matches[:0]
	for _, m := range matches {
		if !isIgnored(m, ignore) {
			sources = append(sources, m)
		}
	}
	s.debugf("pattern %q matched %d file(s)", pattern, len(sources))
	return sources, nil
}

// copyAll writes sources in order into writeDir/<i>. Targets are reported
// under reportDir, which differs from writeDir only in atomic mode.
func (s *Stager) copyAll(ctx context.Context, sources []string, writeDir, reportDir string, result *models.RunResult) error {
	total := len(sources)
	for i, src := range sources {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("staging interrupted after %d of %d files: %w", i, total, err)
		}

		name := strconv.Itoa(i + 1)
		size, digest, err := copyFile(src, filepath.Join(writeDir, name))
		if err != nil {
			return &CopyError{Path: src, Target: filepath.Join(reportDir, name), Err: err}
		}

		staged := models.StagedFile{
			Index:  i + 1,
			Source: src,
			Target: absPath(filepath.Join(reportDir, name)),
			Size:   size,
			SHA256: digest,
		}
		result.Files = append(result.Files, staged)
		if s.logger != nil {
			s.logger.LogFileStaged(staged, total)
		}
	}
	return nil
}

func (s *Stager) debugf(format string, args ...interface{}) {
	if s.logger != nil {
		s.logger.LogDebug(fmt.Sprintf(format, args...))
	}
}

func (s *Stager) logJobStart(job models.Job) {
	if s.logger != nil {
		s.logger.LogJobStart(job)
	}
}

func (s *Stager) logJobComplete(result *models.RunResult) {
	if s.logger != nil {
		s.logger.LogJobComplete(result)
	}
}

func (s *Stager) logJobFail(job models.Job, err error) {
	if s.logger != nil {
		s.logger.LogJobFail(job, err)
	}
}

func isIgnored(path string, ignore []string) bool {
	if len(ignore) == 0 {
		return false
	}
	abs := absPath(path)
	for _, ig := range ignore {
		ig = absPath(ig)
		if abs == ig || strings.HasPrefix(abs, ig+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func absPath(p string) string {
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

// OwnedPath reports whether path belongs to a run targeting destination: the
// destination itself, anything inside it, or the hidden siblings a run
// creates next to it (lock file, staging and backup directories).
func OwnedPath(destination, path string) bool {
	dest := absPath(filepath.Clean(destination))
	p := absPath(filepath.Clean(path))
	if p == dest || strings.HasPrefix(p, dest+string(filepath.Separator)) {
		return true
	}

	rel, err := filepath.Rel(filepath.Dir(dest), p)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return false
	}
	first, _, _ := strings.Cut(rel, string(filepath.Separator))
	return strings.HasPrefix(first, "."+filepath.Base(dest)+".")
}
