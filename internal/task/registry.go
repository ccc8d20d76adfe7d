package task

import (
	"fmt"

	"github.com/roach88/tommy/internal/model"
)

// Registry maps task keys to implementations.
type Registry struct {
	tasks map[model.TaskKey]Task
	order []model.TaskKey
}

// NewRegistry returns a registry holding tasks.
// Fails on an invalid or duplicate key.
func NewRegistry(tasks ...Task) (*Registry, error) {
	r := &Registry{tasks: make(map[model.TaskKey]Task, len(tasks))}
	for _, t := range tasks {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t to the registry.
func (r *Registry) Register(t Task) error {
	key := t.Key()
	if !key.Valid() {
		return fmt.Errorf("task key %q must be category.operation", key)
	}
	if _, dup := r.tasks[key]; dup {
		return fmt.Errorf("task %s registered twice", key)
	}
	r.tasks[key] = t
	r.order = append(r.order, key)
	return nil
}

// Lookup returns the task registered under key.
func (r *Registry) Lookup(key model.TaskKey) (Task, bool) {
	t, ok := r.tasks[key]
	return t, ok
}

// Version returns the algorithm version of key, or "" if unknown.
func (r *Registry) Version(key model.TaskKey) string {
	if t, ok := r.tasks[key]; ok {
		return t.Version()
	}
	return ""
}

// Keys returns the registered keys in registration order.
func (r *Registry) Keys() []model.TaskKey {
	out := make([]model.TaskKey, len(r.order))
	copy(out, r.order)
	return out
}

// Default returns a registry with every built-in task. External programs are
// started through runner.
func Default(runner Runner) *Registry {
	r, err := NewRegistry(builtins(runner)...)
	if err != nil {
		panic(fmt.Sprintf("built-in tasks: %v", err))
	}
	return r
}

func builtins(runner Runner) []Task {
	return []Task{
		copyTask{},

		&resizeTask{runner: runner},
		inPlace(model.KeyImage, runner, func(env *Env, dst string) command {
			return cmd("convert", dst, "-strip", "-quality", itoa(env.Config.Tasks.Image.Quality), dst)
		}),
		inPlace(model.KeyJPG, runner, func(_ *Env, dst string) command {
			return cmd("jpegoptim", dst)
		}).only("jpg", "jpeg"),
		inPlace(model.KeyPNG, runner, func(_ *Env, dst string) command {
			return cmd("pngquant", "--ext", ".png", "--force", dst)
		}).only("png"),
		inPlace(model.KeyGIF, runner, func(_ *Env, dst string) command {
			return cmd("gifsicle", "-O2", dst, "-o", dst)
		}),
		inPlace(model.KeySVG, runner, func(_ *Env, dst string) command {
			return cmd("svgo", dst, "-o", dst)
		}),
		&blurTask{runner: runner},
		&posterTask{runner: runner},
		&thumbsTask{runner: runner},

		convert(model.KeyWEBP, "webp", runner, func(in, out string) command {
			return cmd("cwebp", "-mt", in, "-o", out)
		}),
		convert(model.KeyMP4, "mp4", runner, func(in, out string) command {
			return cmd("ffmpeg", "-y", "-hide_banner", "-loglevel", "error", "-i", in, "-preset", "fast", out)
		}),
		convert(model.KeyWEBM, "webm", runner, func(in, out string) command {
			return cmd("ffmpeg", "-y", "-hide_banner", "-loglevel", "error", "-i", in, out)
		}),
		convert(model.KeyMP3, "mp3", runner, func(in, out string) command {
			return cmd("ffmpeg", "-y", "-hide_banner", "-loglevel", "error", "-i", in, out)
		}),
		fontforge(model.KeyOTF, "otf", runner),
		fontforge(model.KeyTTF, "ttf", runner),
		fontforge(model.KeyFontSVG, "svg", runner),
		fontforge(model.KeyEOT, "eot", runner),
		fontforge(model.KeyWOFF, "woff", runner),
		convert(model.KeyWOFF2, "woff2", runner, func(in, _ string) command {
			// woff2_compress writes the sibling .woff2 itself
			return cmd("woff2_compress", in)
		}),

		convert(model.KeySass, "css", runner, func(in, out string) command {
			return cmd("sass", "--no-source-map", in, out)
		}),
		convert(model.KeyLess, "css", runner, func(in, out string) command {
			return cmd("lessc", in, out)
		}),

		imagePage{},
		videoPage{},
		audioPage{},
		fontPage{},
	}
}
