package pipeline

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/store"
	"github.com/roach88/tommy/internal/testutil"
)

func ownersStore(t *testing.T, recs ...model.Record) store.Records {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "owners.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	for _, r := range recs {
		r.InputHash = "h"
		r.AlgoVersion = "1"
		r.TaskConfig = "{}"
		r.RunAt = testutil.Epoch
		require.NoError(t, st.Upsert(context.Background(), r))
	}
	return st
}

func TestOutputOwners(t *testing.T) {
	ctx := context.Background()
	st := ownersStore(t,
		model.Record{InputFile: "a.jpg", TaskKey: model.KeyCopy, OutputFiles: model.OutputSet{"a.jpg"}},
		model.Record{InputFile: "a.jpg", TaskKey: model.KeyWEBP, OutputFiles: model.OutputSet{"a.webp"}},
	)
	w := newOutputOwners()
	w.load(ctx, st, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))

	own, ok := w.foreign(ctx, st, "a.png", "a.webp")
	require.True(t, ok)
	assert.Equal(t, owner{file: "a.jpg", key: model.KeyWEBP}, own)

	_, ok = w.foreign(ctx, st, "a.jpg", "a.webp")
	assert.False(t, ok, "a file never collides with itself")

	_, out, ok := w.claim(ctx, st, "a.png", model.KeyWEBP, model.OutputSet{"a.png", "a.webp"})
	assert.False(t, ok)
	assert.Equal(t, "a.webp", out)

	_, _, ok = w.claim(ctx, st, "a.png", model.KeyWEBP, model.OutputSet{"a.png", "b.webp"})
	assert.True(t, ok)
	own, ok = w.foreign(ctx, st, "c.png", "b.webp")
	require.True(t, ok, "claimed outputs are owned")
	assert.Equal(t, "a.png", own.file)

	w.release("a.png", model.KeyWEBP, model.OutputSet{"b.webp"})
	_, ok = w.foreign(ctx, st, "c.png", "b.webp")
	assert.False(t, ok)
}

func TestOutputOwners_ForgetsRemovedRecords(t *testing.T) {
	ctx := context.Background()
	st := ownersStore(t,
		model.Record{InputFile: "a.jpg", TaskKey: model.KeyWEBP, OutputFiles: model.OutputSet{"a.webp"}},
	)
	w := newOutputOwners()
	w.load(ctx, st, slog.Default())

	require.NoError(t, st.Delete(ctx, "a.jpg", model.KeyWEBP))

	_, ok := w.foreign(ctx, st, "a.png", "a.webp")
	assert.False(t, ok, "a record deleted behind the index no longer owns its output")
	_, _, ok = w.claim(ctx, st, "a.png", model.KeyWEBP, model.OutputSet{"a.webp"})
	assert.True(t, ok)
}
