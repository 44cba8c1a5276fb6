package cv

import (
	"image"
	"time"
)

// Capturer produces raw screen images
type Capturer interface {
	CaptureFrame() (*image.RGBA, error)
}

// Frame is one captured screen image and the moment it was taken.
// Frames are never cached or mutated; every read of the screen produces a new one.
type Frame struct {
	Image      *image.RGBA
	CapturedAt time.Time
}

// Width returns the frame width in capture pixels
func (f Frame) Width() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dx()
}

// Height returns the frame height in capture pixels
func (f Frame) Height() int {
	if f.Image == nil {
		return 0
	}
	return f.Image.Bounds().Dy()
}

// Empty reports whether the frame holds no pixels
func (f Frame) Empty() bool {
	return f.Width() == 0 || f.Height() == 0
}
