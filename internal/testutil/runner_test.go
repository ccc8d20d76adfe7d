package testutil

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFakeRunner_CreatesLastArgument(t *testing.T) {
	dir := t.TempDir()
	r := &FakeRunner{}

	out := filepath.Join(dir, "a.webp")
	require.NoError(t, r.Run(context.Background(), "cwebp", "in.jpg", "-o", out))

	assert.True(t, Exists(dir, "a.webp"))
	assert.Equal(t, []string{"cwebp"}, r.Programs())
	assert.Equal(t, "cwebp in.jpg -o "+out, r.Calls()[0].String())
}

func TestFakeRunner_KeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := WriteFile(t, dir, "a.jpg", "original")
	r := &FakeRunner{}

	require.NoError(t, r.Run(context.Background(), "jpegoptim", path))
	assert.Equal(t, "original", ReadFile(t, dir, "a.jpg"))
}

func TestFakeRunner_FramePattern(t *testing.T) {
	dir := t.TempDir()
	r := &FakeRunner{}

	require.NoError(t, r.Run(context.Background(), "ffmpeg", "-i", "x", filepath.Join(dir, "clip-thumb-%03d.jpg")))
	assert.Equal(t, []string{"clip-thumb-001.jpg", "clip-thumb-002.jpg", "clip-thumb-003.jpg"}, ListTree(t, dir, nil))
}

func TestFakeRunner_Woff2(t *testing.T) {
	dir := t.TempDir()
	in := WriteFile(t, dir, "font.ttf", "ttf")
	r := &FakeRunner{}

	require.NoError(t, r.Run(context.Background(), "woff2_compress", in))
	assert.True(t, Exists(dir, "font.woff2"))
}

func TestFakeRunner_Fail(t *testing.T) {
	boom := errors.New("boom")
	r := &FakeRunner{Fail: map[string]error{"svgo": boom}}

	assert.ErrorIs(t, r.Run(context.Background(), "svgo", "a"), boom)
	assert.Len(t, r.Calls(), 1, "failed calls are recorded")
}
