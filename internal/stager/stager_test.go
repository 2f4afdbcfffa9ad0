package stager

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harrison/stager/internal/filelock"
	"github.com/harrison/stager/internal/models"
)

// recordingLogger captures events for assertions.
type recordingLogger struct {
	mu       sync.Mutex
	started  []models.Job
	staged   []models.StagedFile
	complete []*models.RunResult
	failed   []error
	debug    []string
}

func (r *recordingLogger) LogDebug(message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.debug = append(r.debug, message)
}

func (r *recordingLogger) LogJobStart(job models.Job) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, job)
}

func (r *recordingLogger) LogFileStaged(file models.StagedFile, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.staged = append(r.staged, file)
}

func (r *recordingLogger) LogJobComplete(result *models.RunResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.complete = append(r.complete, result)
}

func (r *recordingLogger) LogJobFail(job models.Job, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
}

// writeFiles creates each relative path under root with the given contents.
func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		path := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
}

// readDest returns name -> contents for every entry of dir.
func readDest(t *testing.T, dir string) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		require.NoError(t, err)
		out[e.Name()] = string(data)
	}
	return out
}

func entryNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func runJob(t *testing.T, job models.Job, opts ...Option) (*models.RunResult, error) {
	t.Helper()
	return New(opts...).Run(context.Background(), job)
}

func TestStage_LexicographicNotNumeric(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"x/1/f":  "one",
		"x/2/f":  "two",
		"x/10/f": "ten",
	})
	dest := filepath.Join(root, "out")

	count, err := Stage(filepath.Join(root, "x", "*", "f"), dest)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	assert.Equal(t, map[string]string{
		"1": "one",
		"2": "ten",
		"3": "two",
	}, readDest(t, dest))
}

func TestStage_SortOrder(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/b": "B",
		"src/a": "A",
		"src/c": "C",
	})
	dest := filepath.Join(root, "out")

	result, err := runJob(t, models.Job{Pattern: filepath.Join(root, "src", "*"), Destination: dest})
	require.NoError(t, err)

	require.Len(t, result.Files, 3)
	for i, want := range []string{"a", "b", "c"} {
		assert.Equal(t, i+1, result.Files[i].Index)
		assert.Equal(t, want, filepath.Base(result.Files[i].Source))
		assert.Equal(t, filepath.Join(dest, strconv.Itoa(i+1)), result.Files[i].Target)
	}
	assert.Equal(t, map[string]string{"1": "A", "2": "B", "3": "C"}, readDest(t, dest))
}

func TestStage_CountNamesAndBytes(t *testing.T) {
	root := t.TempDir()
	files := map[string]string{}
	for i := 0; i < 12; i++ {
		files[fmt.Sprintf("case/%d/parser", i)] = strings.Repeat(fmt.Sprintf("line %d\n", i), i+1)
	}
	files["case/3/input"] = "not matched"
	writeFiles(t, root, files)
	dest := filepath.Join(root, "deep", "missing", "parents", "out")

	result, err := runJob(t, models.Job{Pattern: filepath.Join(root, "case", "*", "parser"), Destination: dest})
	require.NoError(t, err)

	assert.Equal(t, 12, result.Count)
	assert.Len(t, result.Files, 12)

	var want []string
	for i := 1; i <= 12; i++ {
		want = append(want, strconv.Itoa(i))
	}
	sort.Strings(want)
	assert.Equal(t, want, entryNames(t, dest))

	for _, f := range result.Files {
		src, err := os.ReadFile(f.Source)
		require.NoError(t, err)
		dst, err := os.ReadFile(filepath.Join(dest, strconv.Itoa(f.Index)))
		require.NoError(t, err)
		assert.Equal(t, src, dst, "copy %d must match %s byte for byte", f.Index, f.Source)
		assert.Equal(t, int64(len(src)), f.Size)
		assert.Len(t, f.SHA256, 64)
	}
}

func TestStage_ZeroMatches(t *testing.T) {
	root := t.TempDir()
	dest := filepath.Join(root, "out")

	count, err := Stage(filepath.Join(root, "nothing", "*"), dest)
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	info, err := os.Stat(dest)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Empty(t, entryNames(t, dest))
}

func TestStage_RemovesStaleContent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/a":              "A",
		"out/stale.txt":      "stale",
		"out/7":              "old numbered file",
		"out/nested/deep/x":  "nested",
	})
	dest := filepath.Join(root, "out")

	_, err := Stage(filepath.Join(root, "src", "*"), dest)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"1": "A"}, readDest(t, dest))
	assert.NoFileExists(t, filepath.Join(dest, "stale.txt"))
}

func TestStage_Idempotent(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/1/f":  "one",
		"src/2/f":  "two",
		"src/10/f": "ten",
	})
	dest := filepath.Join(root, "out")
	pattern := filepath.Join(root, "src", "*", "f")

	first, err := runJob(t, models.Job{Pattern: pattern, Destination: dest})
	require.NoError(t, err)
	afterFirst := readDest(t, dest)

	second, err := runJob(t, models.Job{Pattern: pattern, Destination: dest})
	require.NoError(t, err)

	assert.Equal(t, afterFirst, readDest(t, dest))
	assert.Equal(t, first.Count, second.Count)
	assert.NotEqual(t, first.RunID, second.RunID)
	for i := range first.Files {
		assert.Equal(t, first.Files[i].SHA256, second.Files[i].SHA256)
	}
}

func TestStage_RecursivePattern(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"data/a/parser":       "a",
		"data/a/b/c/parser":   "abc",
		"data/z/parser":       "z",
		"data/a/b/c/notparse": "-",
	})
	dest := filepath.Join(root, "out")

	result, err := runJob(t, models.Job{Pattern: filepath.Join(root, "data", "**", "parser"), Destination: dest})
	require.NoError(t, err)

	assert.Equal(t, 3, result.Count)
	assert.Equal(t, map[string]string{"1": "abc", "2": "a", "3": "z"}, readDest(t, dest))
}

func TestStage_IgnoresOwnLockFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"a.txt": "A"})
	dest := filepath.Join(root, "out")

	// The lock file .out.lock lives in root and would match root/*.
	result, err := runJob(t, models.Job{Pattern: filepath.Join(root, "*"), Destination: dest})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Count)
	assert.Equal(t, map[string]string{"1": "A"}, readDest(t, dest))
}

func TestRun_DestinationIsFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a": "A", "out": "i am a file"})
	dest := filepath.Join(root, "out")

	for _, atomic := range []bool{false, true} {
		t.Run(fmt.Sprintf("atomic=%t", atomic), func(t *testing.T) {
			result, err := runJob(t, models.Job{Pattern: filepath.Join(root, "src", "*"), Destination: dest, Atomic: atomic})
			require.Error(t, err)

			var resetErr *ResetError
			require.True(t, errors.As(err, &resetErr), "expected ResetError, got %T: %v", err, err)
			assert.ErrorIs(t, err, ErrNotDirectory)
			assert.Equal(t, KindReset, Kind(err))
			assert.Equal(t, 0, result.Count)

			data, readErr := os.ReadFile(dest)
			require.NoError(t, readErr)
			assert.Equal(t, "i am a file", string(data), "file must not be deleted")
		})
	}
}

func TestRun_ParentIsFile(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a": "A", "blocker": "file"})

	_, err := runJob(t, models.Job{
		Pattern:     filepath.Join(root, "src", "*"),
		Destination: filepath.Join(root, "blocker", "out"),
	}, WithoutLock())

	var createErr *CreateError
	require.True(t, errors.As(err, &createErr), "expected CreateError, got %T: %v", err, err)
	assert.Equal(t, KindCreate, Kind(err))
}

func TestRun_InvalidPatternLeavesDestination(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"out/keep": "keep"})
	dest := filepath.Join(root, "out")

	_, err := runJob(t, models.Job{Pattern: filepath.Join(root, "src", "[oops"), Destination: dest})

	var patternErr *PatternError
	require.True(t, errors.As(err, &patternErr), "expected PatternError, got %T: %v", err, err)
	assert.Equal(t, KindPattern, Kind(err))
	assert.Equal(t, map[string]string{"keep": "keep"}, readDest(t, dest))
}

func TestRun_MissingParameters(t *testing.T) {
	_, err := runJob(t, models.Job{Destination: "out"})
	assert.ErrorContains(t, err, "pattern is required")

	_, err = runJob(t, models.Job{Pattern: "*"})
	assert.ErrorContains(t, err, "destination is required")
}

// failOpen makes openSource fail for paths ending in suffix.
func failOpen(t *testing.T, suffix string) {
	t.Helper()
	orig := openSource
	openSource = func(name string) (*os.File, error) {
		if strings.HasSuffix(filepath.ToSlash(name), suffix) {
			return nil, &os.PathError{Op: "open", Path: name, Err: os.ErrPermission}
		}
		return orig(name)
	}
	t.Cleanup(func() { openSource = orig })
}

func TestRun_CopyErrorHaltsAndKeepsEarlierCopies(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"src/a": "A",
		"src/b": "B",
		"src/c": "C",
	})
	dest := filepath.Join(root, "out")
	failOpen(t, "src/b")

	log := &recordingLogger{}
	result, err := runJob(t, models.Job{Pattern: filepath.Join(root, "src", "*"), Destination: dest}, WithLogger(log))
	require.Error(t, err)

	var copyErr *CopyError
	require.True(t, errors.As(err, &copyErr), "expected CopyError, got %T: %v", err, err)
	assert.Equal(t, filepath.Join(root, "src", "b"), copyErr.Path)
	assert.Equal(t, filepath.Join(dest, "2"), copyErr.Target)
	assert.ErrorIs(t, err, os.ErrPermission)
	assert.Equal(t, KindCopy, Kind(err))

	// No rollback and no skip-and-continue: 1 stays, 3 is never written.
	assert.Equal(t, map[string]string{"1": "A"}, readDest(t, dest))
	assert.Equal(t, 1, result.Count)
	require.Len(t, result.Files, 1)
	assert.Equal(t, "A", mustRead(t, result.Files[0].Target))

	assert.Len(t, log.failed, 1)
	assert.Empty(t, log.complete)
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRun_CanceledContext(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a": "A", "out/keep": "keep"})
	dest := filepath.Join(root, "out")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New().Run(ctx, models.Job{Pattern: filepath.Join(root, "src", "*"), Destination: dest})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, KindCanceled, Kind(err))
	assert.Equal(t, map[string]string{"keep": "keep"}, readDest(t, dest))
}

func TestRun_DestinationBusy(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a": "A", "out/keep": "keep"})
	dest := filepath.Join(root, "out")

	holder := filelock.ForDirectory(dest)
	require.NoError(t, holder.Lock())
	defer holder.Unlock()

	_, err := runJob(t, models.Job{Pattern: filepath.Join(root, "src", "*"), Destination: dest}, WithLockTimeout(0))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDestinationBusy)
	assert.Equal(t, KindBusy, Kind(err))
	assert.Equal(t, map[string]string{"keep": "keep"}, readDest(t, dest))
}

func TestRun_LoggerEvents(t *testing.T) {
	root := t.TempDir()
	writeFiles(t, root, map[string]string{"src/a": "A", "src/b": "B"})
	dest := filepath.Join(root, "out")
	job := models.Job{Name: "letters", Pattern: filepath.Join(root, "src", "*"), Destination: dest}

	log := &recordingLogger{}
	result, err := runJob(t, job, WithLogger(log))
	require.NoError(t, err)

	assert.Equal(t, []models.Job{job}, log.started)
	assert.Len(t, log.staged, 2)
	require.Len(t, log.complete, 1)
	assert.Same(t, result, log.complete[0])
	assert.Empty(t, log.failed)
	assert.NotEmpty(t, log.debug)
	assert.False(t, result.FinishedAt.Before(result.StartedAt))
}

func TestKind(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{&ResetError{Err: errors.New("x")}, KindReset},
		{fmt.Errorf("wrapped: %w", &CreateError{Err: errors.New("x")}), KindCreate},
		{&CopyError{Err: errors.New("x")}, KindCopy},
		{&PatternError{Err: errors.New("x")}, KindPattern},
		{&DiscoverError{Err: errors.New("x")}, KindDiscover},
		{fmt.Errorf("%w: held", ErrDestinationBusy), KindBusy},
		{context.DeadlineExceeded, KindCanceled},
		{errors.New("other"), KindUnknown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Kind(tt.err), "Kind(%v)", tt.err)
	}
}

func TestOwnedPath(t *testing.T) {
	dest := filepath.Join("/data", "out")
	tests := []struct {
		path string
		want bool
	}{
		{"/data/out", true},
		{"/data/out/1", true},
		{"/data/.out.lock", true},
		{"/data/.out.staging-1234/1", true},
		{"/data/.out.old-1234", true},
		{"/data/output", false},
		{"/data/.outside", false},
		{"/data/src/a", false},
		{"/elsewhere/.out.lock", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, OwnedPath(dest, filepath.FromSlash(tt.path)), tt.path)
	}
}
