package fingerprint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestContentHash_Deterministic(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "a.jpg", "pixels")

	h1, err := ContentHash(p)
	require.NoError(t, err)
	h2, err := ContentHash(p)
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64, "SHA-256 hex is 64 characters")
	assert.Equal(t, bytesHash([]byte("pixels")), h1)
}

func TestContentHash_ChangesWithContent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", "pixels")
	b := writeFile(t, dir, "b.jpg", "pixels!")

	ha, err := ContentHash(a)
	require.NoError(t, err)
	hb, err := ContentHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestContentHash_SameContentDifferentName(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.jpg", "same")
	b := writeFile(t, dir, "b.jpg", "same")

	ha, _ := ContentHash(a)
	hb, _ := ContentHash(b)
	assert.Equal(t, ha, hb, "hash depends on bytes only")
}

func TestContentHash_MissingFile(t *testing.T) {
	_, err := ContentHash(filepath.Join(t.TempDir(), "missing"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
