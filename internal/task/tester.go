package task

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/roach88/tommy/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var pages = template.Must(template.ParseFS(templateFS, "templates/*.tmpl"))

const pangram = "The quick brown fox jumps over the lazy dog"

// TestPageName returns the test page path written next to dst.
func TestPageName(dst string) string {
	return stem(dst) + "-test.html"
}

func renderPage(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := pages.ExecuteTemplate(&buf, name, data); err != nil {
		return nil, fmt.Errorf("render %s: %w", name, err)
	}
	return buf.Bytes(), nil
}

func writePage(env *Env, dst, out, tmpl string, data any) error {
	if err := protectOriginal(env, dst, out); err != nil {
		return err
	}
	body, err := renderPage(tmpl, data)
	if err != nil {
		return err
	}
	if err := os.WriteFile(out, body, 0o644); err != nil {
		return fmt.Errorf("write test page: %w", err)
	}
	return nil
}

type imagePageData struct {
	File    string
	WEBP    string
	Resizes []string
	Blur    string
}

// imagePage writes an HTML page showing an image with its conversions,
// resized variants and blurred placeholder.
type imagePage struct{}

func (imagePage) Key() model.TaskKey { return model.KeyTestImage }
func (imagePage) Version() string    { return "1" }

func (imagePage) Run(_ context.Context, env *Env, dst string) ([]string, error) {
	settings := env.Config.ImagePage()
	base := filepath.Base(dst)
	data := imagePageData{
		File: base,
		WEBP: replaceExt(base, "webp"),
		Blur: stem(base) + settings.BlurSuffix,
	}
	for _, px := range settings.Dimensions {
		data.Resizes = append(data.Resizes, ResizedName(base, settings.ResizeSuffix, px))
	}

	out := TestPageName(dst)
	if err := writePage(env, dst, out, "image.html.tmpl", data); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

type videoPageData struct {
	File   string
	MP4    string
	WEBM   string
	Thumbs []string
	Poster string
}

// videoPage writes an HTML page showing a video's conversions, thumbnails
// and poster.
type videoPage struct{}

func (videoPage) Key() model.TaskKey { return model.KeyTestVideo }
func (videoPage) Version() string    { return "1" }

func (videoPage) Run(_ context.Context, env *Env, dst string) ([]string, error) {
	settings := env.Config.VideoPage()
	base := filepath.Base(dst)
	data := videoPageData{
		File:   base,
		MP4:    replaceExt(base, "mp4"),
		WEBM:   replaceExt(base, "webm"),
		Poster: stem(base) + settings.PosterSuffix,
	}
	for i := 1; i <= settings.ThumbCount; i++ {
		data.Thumbs = append(data.Thumbs, stem(base)+fmt.Sprintf(settings.ThumbSuffix, i))
	}

	out := TestPageName(dst)
	if err := writePage(env, dst, out, "video.html.tmpl", data); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

type audioPageData struct {
	File string
	MP3  string
}

// audioPage writes an HTML player page for an audio file and its MP3.
type audioPage struct{}

func (audioPage) Key() model.TaskKey { return model.KeyTestAudio }
func (audioPage) Version() string    { return "1" }

func (audioPage) Run(_ context.Context, env *Env, dst string) ([]string, error) {
	base := filepath.Base(dst)
	data := audioPageData{File: base, MP3: replaceExt(base, "mp3")}

	out := TestPageName(dst)
	if err := writePage(env, dst, out, "audio.html.tmpl", data); err != nil {
		return nil, err
	}
	return []string{out}, nil
}

type fontFace struct {
	Name string
	URL  string
}

type fontPageData struct {
	Name     string
	Local    fontFace
	Sentence string
}

// fontPage writes an @font-face stylesheet addressing the converted formats
// from the destination root, plus an HTML specimen page.
type fontPage struct{}

func (fontPage) Key() model.TaskKey { return model.KeyTestFont }
func (fontPage) Version() string    { return "1" }

func (fontPage) Run(_ context.Context, env *Env, dst string) ([]string, error) {
	rel, err := env.Roots.DestRel(dst)
	if err != nil {
		return nil, err
	}
	name := stem(path.Base(rel))
	face := fontFace{Name: name, URL: "/" + strings.TrimSuffix(rel, path.Ext(rel))}

	css := stem(dst) + ".css"
	if err := writePage(env, dst, css, "font.css.tmpl", face); err != nil {
		return nil, err
	}

	html := TestPageName(dst)
	data := fontPageData{
		Name:     name,
		Local:    fontFace{Name: name, URL: "./" + name},
		Sentence: pangram,
	}
	if err := writePage(env, dst, html, "font.html.tmpl", data); err != nil {
		return nil, err
	}
	return []string{css, html}, nil
}
