package model

// Registered task keys.
const (
	KeyCopy = TaskKey("core.copy")

	KeyResize           = TaskKey("processor.resize")
	KeyImage            = TaskKey("processor.image")
	KeyJPG              = TaskKey("processor.jpg")
	KeyPNG              = TaskKey("processor.png")
	KeyGIF              = TaskKey("processor.gif")
	KeySVG              = TaskKey("processor.svg")
	KeyLazyLoadBlurried = TaskKey("processor.lazyLoadBlurried")
	KeyPoster           = TaskKey("processor.poster")
	KeyVideoThumbs      = TaskKey("processor.videoThumbs")

	KeyWEBP    = TaskKey("converter.webp")
	KeyMP4     = TaskKey("converter.mp4")
	KeyWEBM    = TaskKey("converter.webm")
	KeyMP3     = TaskKey("converter.mp3")
	KeyOTF     = TaskKey("converter.otf")
	KeyTTF     = TaskKey("converter.ttf")
	KeyFontSVG = TaskKey("converter.svg")
	KeyEOT     = TaskKey("converter.eot")
	KeyWOFF    = TaskKey("converter.woff")
	KeyWOFF2   = TaskKey("converter.woff2")

	KeySass = TaskKey("compiler.sass")
	KeyLess = TaskKey("compiler.less")

	KeyTestImage = TaskKey("tester.image")
	KeyTestVideo = TaskKey("tester.video")
	KeyTestAudio = TaskKey("tester.audio")
	KeyTestFont  = TaskKey("tester.font")
)
