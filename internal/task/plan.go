package task

import (
	"fmt"
	"slices"

	"github.com/roach88/tommy/internal/model"
)

// Group binds a set of extensions to an ordered task list.
type Group struct {
	// Extensions are lower-case and given without the dot.
	Extensions []string
	Tasks      []model.TaskKey
}

// Plan selects the ordered task list of a file by its extension. The first
// group whose extensions match wins; files matching no group get Fallback.
type Plan struct {
	Groups   []Group
	Fallback []model.TaskKey
}

// DefaultPlan returns the built-in selection.
func DefaultPlan() Plan {
	return Plan{
		Groups: []Group{
			{
				Extensions: []string{"jpg", "jpeg", "png"},
				Tasks: []model.TaskKey{
					model.KeyCopy, model.KeyResize, model.KeyImage, model.KeyJPG, model.KeyPNG,
					model.KeyWEBP, model.KeyLazyLoadBlurried, model.KeyTestImage,
				},
			},
			{
				Extensions: []string{"gif"},
				Tasks:      []model.TaskKey{model.KeyCopy, model.KeyGIF},
			},
			{
				Extensions: []string{"svg"},
				Tasks:      []model.TaskKey{model.KeyCopy, model.KeySVG},
			},
			{
				Extensions: []string{"mov", "avi", "m4v", "3gp", "m2v", "ogg", "mp4"},
				Tasks: []model.TaskKey{
					model.KeyCopy, model.KeyMP4, model.KeyWEBM, model.KeyPoster,
					model.KeyVideoThumbs, model.KeyTestVideo,
				},
			},
			{
				// ogg is listed for completeness; the video group claims it first.
				Extensions: []string{"ogg", "wav", "aif", "ac3", "aac"},
				Tasks:      []model.TaskKey{model.KeyCopy, model.KeyMP3, model.KeyTestAudio},
			},
			{
				Extensions: []string{"ttf", "otf"},
				Tasks: []model.TaskKey{
					model.KeyCopy, model.KeyOTF, model.KeyTTF, model.KeyFontSVG, model.KeyEOT,
					model.KeyWOFF, model.KeyWOFF2, model.KeyTestFont,
				},
			},
			{
				Extensions: []string{"sass", "scss"},
				Tasks:      []model.TaskKey{model.KeyCopy, model.KeySass},
			},
			{
				Extensions: []string{"less"},
				Tasks:      []model.TaskKey{model.KeyCopy, model.KeyLess},
			},
		},
		Fallback: []model.TaskKey{model.KeyCopy},
	}
}

// Tasks returns the unfiltered task list for a file name.
func (p Plan) Tasks(name string) []model.TaskKey {
	ext := Ext(name)
	for _, g := range p.Groups {
		if slices.Contains(g.Extensions, ext) {
			return g.Tasks
		}
	}
	return p.Fallback
}

// Select returns the task list for a file name, without converters whose
// target extension is the file's own.
func (p Plan) Select(reg *Registry, name string) []model.TaskKey {
	ext := Ext(name)
	list := p.Tasks(name)
	out := make([]model.TaskKey, 0, len(list))
	for _, key := range list {
		if t, ok := reg.Lookup(key); ok {
			if c, isConv := t.(Converter); isConv && c.TargetExt() == ext {
				continue
			}
		}
		out = append(out, key)
	}
	return out
}

// Keys returns every key the plan refers to, in first-use order.
func (p Plan) Keys() []model.TaskKey {
	var out []model.TaskKey
	add := func(keys []model.TaskKey) {
		for _, k := range keys {
			if !slices.Contains(out, k) {
				out = append(out, k)
			}
		}
	}
	for _, g := range p.Groups {
		add(g.Tasks)
	}
	add(p.Fallback)
	return out
}

// Validate checks that every referenced key is registered and that every
// list starts with the copy task.
func (p Plan) Validate(reg *Registry) error {
	for _, key := range p.Keys() {
		if _, ok := reg.Lookup(key); !ok {
			return fmt.Errorf("plan refers to unregistered task %s", key)
		}
	}
	lists := make([][]model.TaskKey, 0, len(p.Groups)+1)
	for _, g := range p.Groups {
		lists = append(lists, g.Tasks)
	}
	lists = append(lists, p.Fallback)
	for i, list := range lists {
		if len(list) == 0 || list[0] != model.KeyCopy {
			return fmt.Errorf("plan list %d must start with %s", i, model.KeyCopy)
		}
	}
	return nil
}
