package gc

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/store"
	"github.com/roach88/tommy/internal/testutil"
)

type fixture struct {
	roots     model.Roots
	store     *store.Store
	collector *Collector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	src, dst := testutil.Roots(t)
	roots, err := model.ResolveRoots(src, dst)
	require.NoError(t, err)

	st, err := store.Open(filepath.Join(t.TempDir(), "gc.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &fixture{roots: roots, store: st, collector: New(roots, st, WithLogger(logger))}
}

// record writes the outputs into dst and stores a record listing them.
func (f *fixture) record(t *testing.T, file string, key model.TaskKey, outputs ...string) model.Record {
	t.Helper()
	for _, o := range outputs {
		testutil.WriteFile(t, f.roots.Dst, o, "out")
	}
	rec := model.Record{
		InputFile:   file,
		TaskKey:     key,
		InputHash:   "h",
		RunAt:       time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		OutputFiles: outputs,
		AlgoVersion: "1",
		TaskConfig:  "{}",
	}
	require.NoError(t, f.store.Upsert(context.Background(), rec))
	return rec
}

func (f *fixture) all(t *testing.T) []model.Record {
	t.Helper()
	recs, err := f.store.GetAll(context.Background())
	require.NoError(t, err)
	return recs
}

func TestCollect_RemovesOrphans(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.record(t, "keep.jpg", model.KeyCopy, "keep.jpg")
	f.record(t, "img/gone.jpg", model.KeyCopy, "img/gone.jpg")
	f.record(t, "img/gone.jpg", model.KeyWEBP, "img/gone.webp")

	report, err := f.collector.Collect(ctx, model.FileSet{"keep.jpg"}, f.all(t))
	require.NoError(t, err)

	assert.Equal(t, Report{Records: 2, Files: 2}, report)
	assert.Equal(t, []string{"keep.jpg"}, testutil.ListTree(t, f.roots.Dst, nil))
	assert.False(t, testutil.Exists(f.roots.Dst, "img"), "emptied directory pruned")

	recs := f.all(t)
	require.Len(t, recs, 1)
	assert.Equal(t, "keep.jpg", recs[0].InputFile)
}

func TestCollect_MissingOutputsTolerated(t *testing.T) {
	f := newFixture(t)
	rec := f.record(t, "gone.jpg", model.KeyWEBP)
	rec.OutputFiles = model.OutputSet{"gone.webp"}
	require.NoError(t, f.store.Upsert(context.Background(), rec))

	report, err := f.collector.Collect(context.Background(), model.FileSet{}, f.all(t))
	require.NoError(t, err)
	assert.Equal(t, Report{Records: 1, Files: 0}, report)
	assert.Empty(t, f.all(t))
}

func TestCollect_SharedOutputDeletedOnce(t *testing.T) {
	f := newFixture(t)
	f.record(t, "a.jpg", model.KeyCopy, "a.jpg")
	f.record(t, "a.jpg", model.KeyImage, "a.jpg")

	report, err := f.collector.Collect(context.Background(), nil, f.all(t))
	require.NoError(t, err)
	assert.Equal(t, Report{Records: 2, Files: 1}, report)
}

func TestCollect_NothingToDo(t *testing.T) {
	f := newFixture(t)
	f.record(t, "a.jpg", model.KeyCopy, "a.jpg")

	report, err := f.collector.Collect(context.Background(), model.FileSet{"a.jpg"}, f.all(t))
	require.NoError(t, err)
	assert.Equal(t, Report{}, report)
	assert.True(t, testutil.Exists(f.roots.Dst, "a.jpg"))
}

func TestCollect_CancelledContext(t *testing.T) {
	f := newFixture(t)
	f.record(t, "a.jpg", model.KeyCopy, "a.jpg")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.collector.Collect(ctx, nil, f.all(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollectPath_File(t *testing.T) {
	f := newFixture(t)
	f.record(t, "a.jpg", model.KeyCopy, "a.jpg")
	f.record(t, "a.jpg.bak", model.KeyCopy, "a.jpg.bak")

	report, err := f.collector.CollectPath(context.Background(), "a.jpg")
	require.NoError(t, err)
	assert.Equal(t, Report{Records: 1, Files: 1}, report)
	assert.Equal(t, []string{"a.jpg.bak"}, testutil.ListTree(t, f.roots.Dst, nil))
}

func TestCollectPath_Directory(t *testing.T) {
	f := newFixture(t)
	f.record(t, "album/x.jpg", model.KeyCopy, "album/x.jpg")
	f.record(t, "album/deep/y.png", model.KeyCopy, "album/deep/y.png")
	f.record(t, "albums.txt", model.KeyCopy, "albums.txt")

	report, err := f.collector.CollectPath(context.Background(), "album")
	require.NoError(t, err)
	assert.Equal(t, 2, report.Records)
	assert.Equal(t, []string{"albums.txt"}, testutil.ListTree(t, f.roots.Dst, nil))
	assert.False(t, testutil.Exists(f.roots.Dst, "album"))
}

func TestRemoveOutputs_KeepAndEscape(t *testing.T) {
	f := newFixture(t)
	testutil.WriteFile(t, f.roots.Dst, "a.jpg", "copy")
	testutil.WriteFile(t, f.roots.Dst, "a.webp", "webp")
	outside := testutil.WriteFile(t, filepath.Dir(f.roots.Dst), "outside.txt", "x")

	n := RemoveOutputs(f.roots, []string{"a.jpg", "a.webp", "../outside.txt"}, "a.jpg", slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Equal(t, 1, n)
	assert.True(t, testutil.Exists(f.roots.Dst, "a.jpg"), "kept path survives")
	assert.FileExists(t, outside, "paths outside the destination are never removed")
}

func TestReport_Add(t *testing.T) {
	assert.Equal(t, Report{Records: 3, Files: 5}, Report{Records: 1, Files: 2}.Add(Report{Records: 2, Files: 3}))
}
