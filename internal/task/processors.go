package task

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"

	"github.com/roach88/tommy/internal/model"
)

// inPlaceTask rewrites the destination copy with an external program and
// reports the copy itself as its output.
type inPlaceTask struct {
	key     model.TaskKey
	runner  Runner
	command func(env *Env, dst string) command
	// exts restricts the task to these extensions when set.
	exts []string
}

func inPlace(key model.TaskKey, runner Runner, c func(env *Env, dst string) command) *inPlaceTask {
	return &inPlaceTask{key: key, runner: runner, command: c}
}

// only restricts t to files with one of exts.
func (t *inPlaceTask) only(exts ...string) *inPlaceTask {
	t.exts = exts
	return t
}

func (t *inPlaceTask) Key() model.TaskKey { return t.key }
func (t *inPlaceTask) Version() string    { return "1" }

func (t *inPlaceTask) Run(ctx context.Context, env *Env, dst string) ([]string, error) {
	if len(t.exts) > 0 && !slices.Contains(t.exts, Ext(dst)) {
		return nil, nil
	}
	if err := t.command(env, dst).run(ctx, t.runner); err != nil {
		return nil, err
	}
	return []string{dst}, nil
}

// resizeTask writes one downscaled variant per configured dimension that is
// smaller than the image's largest side.
type resizeTask struct {
	runner Runner
}

func (t *resizeTask) Key() model.TaskKey { return model.KeyResize }
func (t *resizeTask) Version() string    { return "1" }

func (t *resizeTask) Run(ctx context.Context, env *Env, dst string) ([]string, error) {
	largest, err := largestSide(dst)
	if err != nil {
		return nil, err
	}

	settings := env.Config.Tasks.Resize
	log := env.logger().With("task", t.Key(), "file", dst)
	var outputs []string
	for _, px := range settings.Dimensions {
		if px >= largest {
			log.Debug("skipping resize, image is not larger", "px", px, "largest_side", largest)
			continue
		}
		out := ResizedName(dst, settings.Suffix, px)
		err := cmd("convert", dst,
			"-strip",
			"-quality", itoa(settings.Quality),
			"-resize", fmt.Sprintf("%dx%d>", px, px),
			out,
		).run(ctx, t.runner)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Error("resize failed", "px", px, "error", err)
			continue
		}
		outputs = append(outputs, out)
	}
	return outputs, nil
}

// ResizedName expands a resize suffix for path at px pixels.
func ResizedName(path, suffix string, px int) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	s := strings.ReplaceAll(suffix, "${i}", itoa(px))
	s = strings.ReplaceAll(s, "${ext}", ext)
	return stem(path) + s
}

func largestSide(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("read image size: %w", err)
	}
	defer f.Close()

	cfg, _, err := image.DecodeConfig(f)
	if err != nil {
		return 0, fmt.Errorf("read image size: %w", err)
	}
	return max(cfg.Width, cfg.Height), nil
}

// blurTask writes a tiny placeholder used for lazy loading.
type blurTask struct {
	runner Runner
}

func (t *blurTask) Key() model.TaskKey { return model.KeyLazyLoadBlurried }
func (t *blurTask) Version() string    { return "1" }

func (t *blurTask) Run(ctx context.Context, env *Env, dst string) ([]string, error) {
	s := env.Config.Tasks.LazyLoadBlurried
	out := stem(dst) + s.Suffix
	if err := protectOriginal(env, dst, out); err != nil {
		return nil, err
	}
	err := cmd("convert", dst,
		"-strip",
		"-resize", fmt.Sprintf("%dx%d^", s.Size, s.Size),
		out,
	).run(ctx, t.runner)
	if err != nil {
		return nil, err
	}
	return []string{out}, nil
}

// posterTask extracts the first frame of a video and optimizes it as JPEG.
type posterTask struct {
	runner Runner
}

func (t *posterTask) Key() model.TaskKey { return model.KeyPoster }
func (t *posterTask) Version() string    { return "1" }

func (t *posterTask) Run(ctx context.Context, env *Env, dst string) ([]string, error) {
	s := env.Config.Tasks.Poster
	out := stem(dst) + s.Suffix
	if err := protectOriginal(env, dst, out); err != nil {
		return nil, err
	}
	steps := []command{
		cmd("ffmpeg", "-y", "-hide_banner", "-loglevel", "error", "-i", dst, "-vframes", "1", "-f", "image2", out),
		cmd("convert", out, "-strip", "-quality", itoa(s.Quality), out),
		cmd("jpegoptim", out),
	}
	for _, c := range steps {
		if err := c.run(ctx, t.runner); err != nil {
			return nil, err
		}
	}
	return []string{out}, nil
}

// thumbsTask samples video frames into numbered JPEG files.
type thumbsTask struct {
	runner Runner
}

func (t *thumbsTask) Key() model.TaskKey { return model.KeyVideoThumbs }
func (t *thumbsTask) Version() string    { return "1" }

var printfVerb = regexp.MustCompile(`%0?\d*d`)

func (t *thumbsTask) Run(ctx context.Context, env *Env, dst string) ([]string, error) {
	s := env.Config.Tasks.VideoThumbs
	pattern := stem(dst) + s.Suffix
	err := cmd("ffmpeg", "-y", "-hide_banner", "-loglevel", "error",
		"-i", dst,
		"-vf", "fps="+s.FPS,
		pattern,
	).run(ctx, t.runner)
	if err != nil {
		return nil, err
	}

	outputs, err := filepath.Glob(printfVerb.ReplaceAllString(pattern, "[0-9]*"))
	if err != nil {
		return nil, fmt.Errorf("list thumbnails: %w", err)
	}
	return outputs, nil
}
