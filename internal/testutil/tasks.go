package testutil

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/roach88/tommy/internal/model"
	"github.com/roach88/tommy/internal/task"
)

// RunFunc is the body of a FakeTask.
type RunFunc func(ctx context.Context, env *task.Env, dst string) ([]string, error)

// FakeTask is a configurable task that counts its executions.
type FakeTask struct {
	key model.TaskKey
	Ver string
	Fn  RunFunc

	mu   sync.Mutex
	runs []string
}

// NewFakeTask creates a task that reports the destination copy as output.
func NewFakeTask(key model.TaskKey) *FakeTask {
	return &FakeTask{key: key, Ver: "1", Fn: InPlace()}
}

// Key implements task.Task.
func (f *FakeTask) Key() model.TaskKey { return f.key }

// Version implements task.Task.
func (f *FakeTask) Version() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Ver
}

// SetVersion changes the algorithm version between runs.
func (f *FakeTask) SetVersion(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Ver = v
}

// Run implements task.Task.
func (f *FakeTask) Run(ctx context.Context, env *task.Env, dst string) ([]string, error) {
	f.mu.Lock()
	f.runs = append(f.runs, dst)
	fn := f.Fn
	f.mu.Unlock()
	return fn(ctx, env, dst)
}

// Runs returns the destination files the task ran against.
func (f *FakeTask) Runs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.runs...)
}

// Count returns the number of executions.
func (f *FakeTask) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.runs)
}

// Reset forgets recorded executions.
func (f *FakeTask) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = nil
}

// FakeConverter is a FakeTask that declares a target extension.
type FakeConverter struct {
	*FakeTask
	Target string
}

// NewFakeConverter creates a converter writing the sibling with ext.
func NewFakeConverter(key model.TaskKey, ext string) *FakeConverter {
	f := NewFakeTask(key)
	f.Fn = WriteSibling("." + ext)
	return &FakeConverter{FakeTask: f, Target: ext}
}

// TargetExt implements task.Converter.
func (c *FakeConverter) TargetExt() string { return c.Target }

// InPlace reports the destination copy without touching it.
func InPlace() RunFunc {
	return func(_ context.Context, _ *task.Env, dst string) ([]string, error) {
		return []string{dst}, nil
	}
}

// WriteSibling writes dst without extension plus suffix and reports it.
func WriteSibling(suffix string) RunFunc {
	return func(_ context.Context, _ *task.Env, dst string) ([]string, error) {
		out := strings.TrimSuffix(dst, filepath.Ext(dst)) + suffix
		if err := os.WriteFile(out, []byte("derived from "+filepath.Base(dst)+"\n"), 0o644); err != nil {
			return nil, err
		}
		return []string{out}, nil
	}
}

// Reports returns a task body that reports the given paths without writing.
func Reports(paths ...string) RunFunc {
	return func(context.Context, *task.Env, string) ([]string, error) {
		return paths, nil
	}
}

// NotApplicable reports no output.
func NotApplicable() RunFunc {
	return func(context.Context, *task.Env, string) ([]string, error) {
		return nil, nil
	}
}

// ErrFake is returned by Fails.
var ErrFake = errors.New("fake task failure")

// Fails returns ErrFake.
func Fails() RunFunc {
	return func(context.Context, *task.Env, string) ([]string, error) {
		return nil, ErrFake
	}
}

// Panics panics with msg.
func Panics(msg string) RunFunc {
	return func(context.Context, *task.Env, string) ([]string, error) {
		panic(msg)
	}
}
