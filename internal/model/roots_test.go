package model

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRoots_Valid(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	r, err := ResolveRoots(src, dst)
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(r.Src))
	assert.True(t, filepath.IsAbs(r.Dst))
	assert.NotEqual(t, r.Src, r.Dst)
}

func TestResolveRoots_Unset(t *testing.T) {
	_, err := ResolveRoots("", t.TempDir())
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))

	_, err = ResolveRoots(t.TempDir(), "")
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestResolveRoots_SameDirectory(t *testing.T) {
	dir := t.TempDir()
	_, err := ResolveRoots(dir, dir)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.Contains(t, err.Error(), "same directory")
}

func TestResolveRoots_SourceInsideDestination(t *testing.T) {
	dst := t.TempDir()
	src := filepath.Join(dst, "src")
	require.NoError(t, os.Mkdir(src, 0o755))

	_, err := ResolveRoots(src, dst)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
	assert.Contains(t, err.Error(), "inside destination")

	r, err := ResolveRoots(dst, src)
	require.NoError(t, err, "a destination nested in the source is allowed")
	assert.True(t, r.DstInsideSrc())
}

func TestResolveRoots_SameThroughSymlink(t *testing.T) {
	dir := t.TempDir()
	realDir := filepath.Join(dir, "realDir")
	link := filepath.Join(dir, "link")
	require.NoError(t, os.Mkdir(realDir, 0o755))
	require.NoError(t, os.Symlink(realDir, link))

	_, err := ResolveRoots(realDir, link)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestResolveRoots_Missing(t *testing.T) {
	_, err := ResolveRoots(filepath.Join(t.TempDir(), "nope"), t.TempDir())
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestResolveRoots_NotADirectory(t *testing.T) {
	dir := t.TempDir()
	f := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(f, []byte("x"), 0o644))

	_, err := ResolveRoots(dir, f)
	require.Error(t, err)
	assert.True(t, IsPrecondition(err))
}

func TestRoots_DestRel(t *testing.T) {
	r := Roots{Src: "/data/src", Dst: "/data/dst"}

	rel, err := r.DestRel("/data/dst/img/a-resized-320.jpg")
	require.NoError(t, err)
	assert.Equal(t, "img/a-resized-320.jpg", rel)

	_, err = r.DestRel("/data/src/img/a.jpg")
	assert.Error(t, err)

	_, err = r.DestRel("/data/dst")
	assert.Error(t, err)
}

func TestRoots_DstInsideSrc(t *testing.T) {
	assert.True(t, Roots{Src: "/site", Dst: "/site/public"}.DstInsideSrc())
	assert.False(t, Roots{Src: "/site/src", Dst: "/site/public"}.DstInsideSrc())
}
