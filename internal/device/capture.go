package device

import (
	"fmt"
	"image"

	"github.com/kbinani/screenshot"
)

// ScreenCapturer reads one display at its native (capture) resolution
type ScreenCapturer struct {
	display int
}

// NewScreenCapturer creates a capturer for the given display index; 0 is the main display
func NewScreenCapturer(display int) *ScreenCapturer {
	return &ScreenCapturer{display: display}
}

// Bounds returns the display rectangle
func (c *ScreenCapturer) Bounds() (image.Rectangle, error) {
	if n := screenshot.NumActiveDisplays(); c.display >= n {
		return image.Rectangle{}, fmt.Errorf("%w: display %d not active (%d displays)", ErrCaptureFailed, c.display, n)
	}
	return screenshot.GetDisplayBounds(c.display), nil
}

// CaptureFrame captures the whole display
func (c *ScreenCapturer) CaptureFrame() (*image.RGBA, error) {
	bounds, err := c.Bounds()
	if err != nil {
		return nil, err
	}
	return c.CaptureRegion(bounds)
}

// CaptureRegion captures a rectangle in capture coordinates
func (c *ScreenCapturer) CaptureRegion(rect image.Rectangle) (*image.RGBA, error) {
	if rect.Empty() {
		return nil, fmt.Errorf("%w: empty region %v", ErrCaptureFailed, rect)
	}

	img, err := screenshot.CaptureRect(rect)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCaptureFailed, err)
	}
	return img, nil
}
