package task

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/roach88/tommy/internal/model"
)

// copyTask places the source file at its destination path. It runs first for
// every file; all later tasks of the file work on this copy.
type copyTask struct{}

// Copy returns the copy task.
func Copy() Task { return copyTask{} }

func (copyTask) Key() model.TaskKey { return model.KeyCopy }
func (copyTask) Version() string    { return "1" }

func (copyTask) Run(ctx context.Context, env *Env, dst string) ([]string, error) {
	rel, err := env.Roots.DestRel(dst)
	if err != nil {
		return nil, err
	}
	if err := copyFile(env.Roots.SourcePath(rel), dst); err != nil {
		return nil, err
	}
	return []string{dst}, nil
}

// copyFile writes src to dst through a temporary sibling and a rename, so a
// reader never observes a partial file.
func copyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dst), ".tommy-copy-*")
	if err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err = os.Chmod(tmp.Name(), info.Mode().Perm()); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	if err = os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("copy: %w", err)
	}
	return nil
}
