// Package task defines the task contract, the registry that maps task keys to
// implementations, the per-extension plan, and the built-in tasks.
//
// Every task operates on the destination copy of a source file and reports
// the absolute paths it produced. Reporting nothing means the task does not
// apply to the file, and no record is kept for it.
package task

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/roach88/tommy/internal/config"
	"github.com/roach88/tommy/internal/model"
)

// Task is one transformation step.
//
// Implementations are stateless and registered once. Run must be idempotent
// and must not modify the source tree.
type Task interface {
	Key() model.TaskKey
	// Version is the algorithm version tag. Bumping it invalidates every
	// record of the task.
	Version() string
	Run(ctx context.Context, env *Env, dstFile string) ([]string, error)
}

// Converter is implemented by tasks that produce a sibling file with a new
// extension. A converter is not scheduled for inputs that already carry its
// target extension.
type Converter interface {
	Task
	TargetExt() string
}

// Env is the shared, read-only state of one pipeline run.
type Env struct {
	Roots  model.Roots
	Config *config.Config
	Force  bool
	Logger *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// Ext returns the lower-case extension of name without the dot.
func Ext(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

// stem returns path without its extension.
func stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// replaceExt swaps the extension of path for ext (given without the dot).
func replaceExt(path, ext string) string {
	return stem(path) + "." + ext
}
