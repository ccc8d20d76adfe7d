package config

import "github.com/roach88/tommy/internal/model"

// Toggle is the settings block of a task with no parameters.
type Toggle struct {
	Disabled bool `yaml:"disabled" json:"disabled" mapstructure:"disabled"`
}

// ResizeSettings configures processor.resize. Suffix may contain the
// placeholders ${i} (target pixels) and ${ext} (input extension).
type ResizeSettings struct {
	Disabled   bool   `yaml:"disabled" json:"disabled" mapstructure:"disabled"`
	Dimensions []int  `yaml:"dimensions" json:"dimensions" mapstructure:"dimensions" validate:"dive,gt=0"`
	Quality    int    `yaml:"quality" json:"quality" mapstructure:"quality" validate:"gte=1,lte=100"`
	Suffix     string `yaml:"suffix" json:"suffix" mapstructure:"suffix" validate:"required"`
}

// QualitySettings configures processor.image.
type QualitySettings struct {
	Disabled bool `yaml:"disabled" json:"disabled" mapstructure:"disabled"`
	Quality  int  `yaml:"quality" json:"quality" mapstructure:"quality" validate:"gte=1,lte=100"`
}

// BlurSettings configures processor.lazyLoadBlurried.
type BlurSettings struct {
	Disabled bool   `yaml:"disabled" json:"disabled" mapstructure:"disabled"`
	Size     int    `yaml:"size" json:"size" mapstructure:"size" validate:"gt=0"`
	Suffix   string `yaml:"suffix" json:"suffix" mapstructure:"suffix" validate:"required"`
}

// PosterSettings configures processor.poster. Quality inherits the image
// quality when unset.
type PosterSettings struct {
	Disabled bool   `yaml:"disabled" json:"disabled" mapstructure:"disabled"`
	Quality  int    `yaml:"quality" json:"quality" mapstructure:"quality" validate:"gte=1,lte=100"`
	Suffix   string `yaml:"suffix" json:"suffix" mapstructure:"suffix" validate:"required"`
}

// ThumbSettings configures processor.videoThumbs. FPS is an ffmpeg rate
// expression such as "1/10". Suffix is a printf pattern taking the frame
// number.
type ThumbSettings struct {
	Disabled bool   `yaml:"disabled" json:"disabled" mapstructure:"disabled"`
	FPS      string `yaml:"fps" json:"fps" mapstructure:"fps" validate:"required"`
	Count    int    `yaml:"count" json:"count" mapstructure:"count" validate:"gt=0"`
	Suffix   string `yaml:"suffix" json:"suffix" mapstructure:"suffix" validate:"required"`
}

// Tasks holds one settings block per task.
type Tasks struct {
	Copy             Toggle          `yaml:"copy" json:"copy" mapstructure:"copy"`
	Resize           ResizeSettings  `yaml:"resize" json:"resize" mapstructure:"resize"`
	Image            QualitySettings `yaml:"image" json:"image" mapstructure:"image"`
	JPG              Toggle          `yaml:"jpg" json:"jpg" mapstructure:"jpg"`
	PNG              Toggle          `yaml:"png" json:"png" mapstructure:"png"`
	GIF              Toggle          `yaml:"gif" json:"gif" mapstructure:"gif"`
	SVG              Toggle          `yaml:"svg" json:"svg" mapstructure:"svg"`
	LazyLoadBlurried BlurSettings    `yaml:"lazyLoadBlurried" json:"lazyLoadBlurried" mapstructure:"lazyLoadBlurried"`
	Poster           PosterSettings  `yaml:"poster" json:"poster" mapstructure:"poster"`
	VideoThumbs      ThumbSettings   `yaml:"videoThumbs" json:"videoThumbs" mapstructure:"videoThumbs"`
	WEBP             Toggle          `yaml:"webp" json:"webp" mapstructure:"webp"`
	MP4              Toggle          `yaml:"mp4" json:"mp4" mapstructure:"mp4"`
	WEBM             Toggle          `yaml:"webm" json:"webm" mapstructure:"webm"`
	MP3              Toggle          `yaml:"mp3" json:"mp3" mapstructure:"mp3"`
	OTF              Toggle          `yaml:"otf" json:"otf" mapstructure:"otf"`
	TTF              Toggle          `yaml:"ttf" json:"ttf" mapstructure:"ttf"`
	FontSVG          Toggle          `yaml:"fontSvg" json:"fontSvg" mapstructure:"fontSvg"`
	EOT              Toggle          `yaml:"eot" json:"eot" mapstructure:"eot"`
	WOFF             Toggle          `yaml:"woff" json:"woff" mapstructure:"woff"`
	WOFF2            Toggle          `yaml:"woff2" json:"woff2" mapstructure:"woff2"`
	Sass             Toggle          `yaml:"sass" json:"sass" mapstructure:"sass"`
	Less             Toggle          `yaml:"less" json:"less" mapstructure:"less"`
	TestImage        Toggle          `yaml:"testImage" json:"testImage" mapstructure:"testImage"`
	TestVideo        Toggle          `yaml:"testVideo" json:"testVideo" mapstructure:"testVideo"`
	TestAudio        Toggle          `yaml:"testAudio" json:"testAudio" mapstructure:"testAudio"`
	TestFont         Toggle          `yaml:"testFont" json:"testFont" mapstructure:"testFont"`
}

func defaultTasks() Tasks {
	return Tasks{
		Resize: ResizeSettings{
			Dimensions: []int{1920, 1280, 640, 320},
			Suffix:     "-resized-${i}.${ext}",
		},
		Image:            QualitySettings{Quality: 80},
		LazyLoadBlurried: BlurSettings{Size: 32, Suffix: "-blurried.jpg"},
		Poster:           PosterSettings{Suffix: "-poster.jpg"},
		VideoThumbs:      ThumbSettings{FPS: "1/10", Count: 5, Suffix: "-thumb-%03d.jpg"},
	}
}

// ImagePage is the settings snapshot of tester.image. The page links the
// resized variants and the blurred placeholder, so their naming is part of
// its fingerprint.
type ImagePage struct {
	Dimensions   []int  `json:"dimensions"`
	ResizeSuffix string `json:"resize_suffix"`
	BlurSuffix   string `json:"blur_suffix"`
}

// VideoPage is the settings snapshot of tester.video.
type VideoPage struct {
	ThumbCount   int    `json:"thumb_count"`
	ThumbSuffix  string `json:"thumb_suffix"`
	PosterSuffix string `json:"poster_suffix"`
}

// ImagePage returns the tester.image snapshot.
func (c *Config) ImagePage() ImagePage {
	return ImagePage{
		Dimensions:   orEmpty(c.Tasks.Resize.Dimensions),
		ResizeSuffix: c.Tasks.Resize.Suffix,
		BlurSuffix:   c.Tasks.LazyLoadBlurried.Suffix,
	}
}

// VideoPage returns the tester.video snapshot.
func (c *Config) VideoPage() VideoPage {
	return VideoPage{
		ThumbCount:   c.Tasks.VideoThumbs.Count,
		ThumbSuffix:  c.Tasks.VideoThumbs.Suffix,
		PosterSuffix: c.Tasks.Poster.Suffix,
	}
}

// Task returns the settings snapshot of key and whether the task is enabled.
// The snapshot is what gets serialized into the configuration fingerprint.
// Unknown keys report an empty snapshot and enabled=true.
func (c *Config) Task(key model.TaskKey) (any, bool) {
	t := &c.Tasks
	switch key {
	case model.KeyCopy:
		return t.Copy, !t.Copy.Disabled
	case model.KeyResize:
		r := t.Resize
		r.Dimensions = orEmpty(r.Dimensions)
		return r, !r.Disabled
	case model.KeyImage:
		return t.Image, !t.Image.Disabled
	case model.KeyJPG:
		return t.JPG, !t.JPG.Disabled
	case model.KeyPNG:
		return t.PNG, !t.PNG.Disabled
	case model.KeyGIF:
		return t.GIF, !t.GIF.Disabled
	case model.KeySVG:
		return t.SVG, !t.SVG.Disabled
	case model.KeyLazyLoadBlurried:
		return t.LazyLoadBlurried, !t.LazyLoadBlurried.Disabled
	case model.KeyPoster:
		return t.Poster, !t.Poster.Disabled
	case model.KeyVideoThumbs:
		return t.VideoThumbs, !t.VideoThumbs.Disabled
	case model.KeyWEBP:
		return t.WEBP, !t.WEBP.Disabled
	case model.KeyMP4:
		return t.MP4, !t.MP4.Disabled
	case model.KeyWEBM:
		return t.WEBM, !t.WEBM.Disabled
	case model.KeyMP3:
		return t.MP3, !t.MP3.Disabled
	case model.KeyOTF:
		return t.OTF, !t.OTF.Disabled
	case model.KeyTTF:
		return t.TTF, !t.TTF.Disabled
	case model.KeyFontSVG:
		return t.FontSVG, !t.FontSVG.Disabled
	case model.KeyEOT:
		return t.EOT, !t.EOT.Disabled
	case model.KeyWOFF:
		return t.WOFF, !t.WOFF.Disabled
	case model.KeyWOFF2:
		return t.WOFF2, !t.WOFF2.Disabled
	case model.KeySass:
		return t.Sass, !t.Sass.Disabled
	case model.KeyLess:
		return t.Less, !t.Less.Disabled
	case model.KeyTestImage:
		return c.ImagePage(), !t.TestImage.Disabled
	case model.KeyTestVideo:
		return c.VideoPage(), !t.TestVideo.Disabled
	case model.KeyTestAudio:
		return t.TestAudio, !t.TestAudio.Disabled
	case model.KeyTestFont:
		return t.TestFont, !t.TestFont.Disabled
	}
	return struct{}{}, true
}

// orEmpty keeps snapshots free of null, which the fingerprint rejects.
func orEmpty(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
