package model

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Roots is a resolved pair of source and destination directories.
// Both are absolute and symlink-free, and never equal.
type Roots struct {
	Src string
	Dst string
}

// ResolveRoots validates and resolves the run's roots.
// Every failure is a PRECONDITION error; nothing is created or modified.
func ResolveRoots(src, dst string) (Roots, error) {
	if src == "" {
		return Roots{}, NewPreconditionError("source directory is not set", nil)
	}
	if dst == "" {
		return Roots{}, NewPreconditionError("destination directory is not set", nil)
	}

	s, err := resolveDir(src)
	if err != nil {
		return Roots{}, NewPreconditionError(fmt.Sprintf("source directory <%s> is unusable", src), err)
	}
	d, err := resolveDir(dst)
	if err != nil {
		return Roots{}, NewPreconditionError(fmt.Sprintf("destination directory <%s> is unusable", dst), err)
	}
	if s == d {
		return Roots{}, NewPreconditionError(fmt.Sprintf("source and destination are the same directory <%s>", s), nil)
	}
	if _, err := relUnder(d, s); err == nil {
		// Copies would land on the source files themselves.
		return Roots{}, NewPreconditionError(fmt.Sprintf("source <%s> is inside destination <%s>", s, d), nil)
	}
	return Roots{Src: s, Dst: d}, nil
}

func resolveDir(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("not a directory")
	}
	return resolved, nil
}

// SourcePath returns the absolute source path of a relative file.
func (r Roots) SourcePath(rel string) string {
	return filepath.Join(r.Src, filepath.FromSlash(rel))
}

// DestPath returns the absolute destination path of a relative file.
func (r Roots) DestPath(rel string) string {
	return filepath.Join(r.Dst, filepath.FromSlash(rel))
}

// DestRel converts an absolute destination path to a relative one.
// Fails if the path escapes the destination root.
func (r Roots) DestRel(abs string) (string, error) {
	return relUnder(r.Dst, abs)
}

// SourceRel converts an absolute source path to a relative one.
func (r Roots) SourceRel(abs string) (string, error) {
	return relUnder(r.Src, abs)
}

// DstInsideSrc reports whether the destination is nested under the source.
func (r Roots) DstInsideSrc() bool {
	_, err := relUnder(r.Src, r.Dst)
	return err == nil
}

func relUnder(root, abs string) (string, error) {
	rel, err := filepath.Rel(root, filepath.Clean(abs))
	if err != nil {
		return "", err
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) || filepath.IsAbs(rel) {
		return "", fmt.Errorf("path <%s> is outside <%s>", abs, root)
	}
	return filepath.ToSlash(rel), nil
}
