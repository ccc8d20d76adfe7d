package task

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/roach88/tommy/internal/model"
)

// convertTask writes a sibling of the destination copy with a new extension.
type convertTask struct {
	key     model.TaskKey
	ext     string
	runner  Runner
	command func(in, out string) command
}

func convert(key model.TaskKey, ext string, runner Runner, c func(in, out string) command) *convertTask {
	return &convertTask{key: key, ext: ext, runner: runner, command: c}
}

func fontforge(key model.TaskKey, ext string, runner Runner) *convertTask {
	return convert(key, ext, runner, func(in, out string) command {
		return cmd("fontforge", "-quiet", "-lang=ff", "-c", "Open($1); Generate($2)", in, out)
	})
}

func (t *convertTask) Key() model.TaskKey { return t.key }
func (t *convertTask) Version() string    { return "1" }
func (t *convertTask) TargetExt() string  { return t.ext }

func (t *convertTask) Run(ctx context.Context, env *Env, dst string) ([]string, error) {
	out := replaceExt(dst, t.ext)
	if err := protectOriginal(env, dst, out); err != nil {
		return nil, err
	}
	if err := t.command(dst, out).run(ctx, t.runner); err != nil {
		return nil, err
	}
	if _, err := os.Stat(out); err != nil {
		return nil, fmt.Errorf("%s produced no %s output: %w", t.key, t.ext, err)
	}
	return []string{out}, nil
}

// protectOriginal fails if out would land on the destination path of an
// existing source file other than the one being processed.
func protectOriginal(env *Env, dst, out string) error {
	rel, err := env.Roots.DestRel(out)
	if err != nil {
		return err
	}
	if out == dst {
		return nil
	}
	_, err = os.Stat(env.Roots.SourcePath(rel))
	if err == nil {
		input, _ := env.Roots.DestRel(dst)
		return model.NewOverwriteError(input, rel)
	}
	if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("overwrite check: %w", err)
	}
	return nil
}
