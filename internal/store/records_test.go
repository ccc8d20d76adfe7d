package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tommy/internal/model"
)

func TestRecords_GetMissing(t *testing.T) {
	backends(t, func(t *testing.T, s Records) {
		_, found, err := s.Get(context.Background(), "a.jpg", "core.copy")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestRecords_UpsertRoundTrip(t *testing.T) {
	backends(t, func(t *testing.T, s Records) {
		ctx := context.Background()
		rec := createTestRecord("img/a.jpg", "processor.resize", "img/a-resized-640.jpg", "img/a-resized-320.jpg")
		require.NoError(t, s.Upsert(ctx, rec))

		got, found, err := s.Get(ctx, "img/a.jpg", "processor.resize")
		require.NoError(t, err)
		require.True(t, found)

		assert.Equal(t, rec.InputFile, got.InputFile)
		assert.Equal(t, rec.TaskKey, got.TaskKey)
		assert.Equal(t, rec.InputHash, got.InputHash)
		assert.True(t, rec.RunAt.Equal(got.RunAt), "run_at round-trips with nanoseconds")
		assert.Equal(t, model.OutputSet{"img/a-resized-320.jpg", "img/a-resized-640.jpg"}, got.OutputFiles, "outputs stored normalized")
		assert.Equal(t, rec.AlgoVersion, got.AlgoVersion)
		assert.Equal(t, rec.TaskConfig, got.TaskConfig)
	})
}

func TestRecords_UpsertReplaces(t *testing.T) {
	backends(t, func(t *testing.T, s Records) {
		ctx := context.Background()
		first := createTestRecord("a.jpg", "converter.webp", "a.webp")
		require.NoError(t, s.Upsert(ctx, first))

		second := first
		second.InputHash = "hash-2"
		second.AlgoVersion = "2"
		second.OutputFiles = model.OutputSet{"a.webp"}
		require.NoError(t, s.Upsert(ctx, second))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 1, "upsert must not duplicate the key")
		assert.Equal(t, "hash-2", all[0].InputHash)
		assert.Equal(t, "2", all[0].AlgoVersion)
	})
}

func TestRecords_EmptyOutputsAndConfig(t *testing.T) {
	backends(t, func(t *testing.T, s Records) {
		ctx := context.Background()
		rec := createTestRecord("a.txt", "core.copy")
		rec.TaskConfig = ""
		require.NoError(t, s.Upsert(ctx, rec))

		got, found, err := s.Get(ctx, "a.txt", "core.copy")
		require.NoError(t, err)
		require.True(t, found)
		assert.NotNil(t, got.OutputFiles)
		assert.Empty(t, got.OutputFiles)
		assert.Equal(t, "{}", got.TaskConfig)
	})
}

func TestRecords_UpsertRejectsInvalidKey(t *testing.T) {
	backends(t, func(t *testing.T, s Records) {
		ctx := context.Background()
		assert.Error(t, s.Upsert(ctx, createTestRecord("", "core.copy")))
		assert.Error(t, s.Upsert(ctx, createTestRecord("a.jpg", "copy")))
	})
}

func TestRecords_GetAllByFile(t *testing.T) {
	backends(t, func(t *testing.T, s Records) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, createTestRecord("a.jpg", "processor.image", "a.jpg")))
		require.NoError(t, s.Upsert(ctx, createTestRecord("a.jpg", "core.copy", "a.jpg")))
		require.NoError(t, s.Upsert(ctx, createTestRecord("a.jpg.bak", "core.copy", "a.jpg.bak")))
		require.NoError(t, s.Upsert(ctx, createTestRecord("b.jpg", "core.copy", "b.jpg")))

		recs, err := s.GetAllByFile(ctx, "a.jpg")
		require.NoError(t, err)
		require.Len(t, recs, 2)
		assert.Equal(t, model.TaskKey("core.copy"), recs[0].TaskKey)
		assert.Equal(t, model.TaskKey("processor.image"), recs[1].TaskKey)

		none, err := s.GetAllByFile(ctx, "missing.jpg")
		require.NoError(t, err)
		assert.NotNil(t, none)
		assert.Empty(t, none)
	})
}

func TestRecords_GetAllOrdered(t *testing.T) {
	backends(t, func(t *testing.T, s Records) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, createTestRecord("c.gif", "core.copy", "c.gif")))
		require.NoError(t, s.Upsert(ctx, createTestRecord("a.jpg", "tester.image", "a-test.html")))
		require.NoError(t, s.Upsert(ctx, createTestRecord("a.jpg", "core.copy", "a.jpg")))

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		require.Len(t, all, 3)
		got := make([]string, len(all))
		for i, r := range all {
			got[i] = r.InputFile + "|" + string(r.TaskKey)
		}
		assert.Equal(t, []string{"a.jpg|core.copy", "a.jpg|tester.image", "c.gif|core.copy"}, got)
	})
}

func TestRecords_Delete(t *testing.T) {
	backends(t, func(t *testing.T, s Records) {
		ctx := context.Background()
		require.NoError(t, s.Upsert(ctx, createTestRecord("a.jpg", "core.copy", "a.jpg")))
		require.NoError(t, s.Upsert(ctx, createTestRecord("a.jpg", "converter.webp", "a.webp")))

		require.NoError(t, s.Delete(ctx, "a.jpg", "converter.webp"))

		_, found, err := s.Get(ctx, "a.jpg", "converter.webp")
		require.NoError(t, err)
		assert.False(t, found)

		_, found, err = s.Get(ctx, "a.jpg", "core.copy")
		require.NoError(t, err)
		assert.True(t, found, "other keys of the same file are untouched")

		// Deleting again is not an error
		assert.NoError(t, s.Delete(ctx, "a.jpg", "converter.webp"))
	})
}

func TestRecords_ConcurrentDistinctKeys(t *testing.T) {
	backends(t, func(t *testing.T, s Records) {
		ctx := context.Background()
		var wg sync.WaitGroup
		errs := make(chan error, 40)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				file := fmt.Sprintf("f%02d.jpg", i)
				errs <- s.Upsert(ctx, createTestRecord(file, "core.copy", file))
				errs <- s.Upsert(ctx, createTestRecord(file, "converter.webp", fmt.Sprintf("f%02d.webp", i)))
			}(i)
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		all, err := s.GetAll(ctx)
		require.NoError(t, err)
		assert.Len(t, all, 40)
	})
}

func TestRecords_CorruptRowIsAnError(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.db.Exec(`
		INSERT INTO execution_records_v1
		(input_file, task_key, input_hash, run_at, output_files, algo_version, task_config)
		VALUES ('a.jpg', 'core.copy', 'h', '2024-03-01T12:00:00Z', 'not-json', '1', '{}')
	`)
	require.NoError(t, err)

	_, _, err = s.Get(ctx, "a.jpg", "core.copy")
	assert.Error(t, err, "an undecodable row is reported, callers treat it as not cached")
}

func TestBolt_ReopenPersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "t.bolt")
	ctx := context.Background()

	s, err := OpenBolt(path)
	require.NoError(t, err)
	require.NoError(t, s.Upsert(ctx, createTestRecord("a.jpg", "core.copy", "a.jpg")))
	require.NoError(t, s.Close())

	s, err = OpenBolt(path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	_, found, err := s.Get(ctx, "a.jpg", "core.copy")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestBolt_EmptyPath(t *testing.T) {
	_, err := OpenBolt("")
	assert.Error(t, err)
}

func TestBolt_CancelledContext(t *testing.T) {
	s := createTestBoltStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := s.Get(ctx, "a.jpg", "core.copy")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestOpenBackend(t *testing.T) {
	dir := t.TempDir()

	sq, err := OpenBackend(BackendSQLite, dir, "")
	require.NoError(t, err)
	require.NoError(t, sq.Close())
	assert.FileExists(t, filepath.Join(dir, DefaultFilename))

	bb, err := OpenBackend(BackendBolt, dir, "")
	require.NoError(t, err)
	require.NoError(t, bb.Close())
	assert.FileExists(t, filepath.Join(dir, DefaultBoltFilename))

	_, err = OpenBackend("redis", dir, "")
	assert.Error(t, err)
}

func TestIsStoreFile(t *testing.T) {
	assert.True(t, IsStoreFile(".tommy.db"))
	assert.True(t, IsStoreFile(".tommy.db-wal"))
	assert.True(t, IsStoreFile(".tommy.bolt"))
	assert.False(t, IsStoreFile("photo.jpg"))
}
