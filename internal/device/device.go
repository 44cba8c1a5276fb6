package device

import (
	"context"
	"errors"
	"image"
)

var (
	// ErrFailSafe is returned by every input call once the pointer sits in the
	// reserved top-left screen corner
	ErrFailSafe = errors.New("fail-safe triggered: pointer moved to screen corner")

	// ErrCaptureFailed is returned when the screen cannot be read, e.g. missing
	// screen recording permission or no active display
	ErrCaptureFailed = errors.New("screen capture failed")
)

// Input is the host's pointer and keyboard in logical (input) coordinates
type Input interface {
	MoveTo(ctx context.Context, p image.Point) error
	Click(ctx context.Context) error
	PressKey(ctx context.Context, key string) error
	// ScrollBy scrolls the content under the pointer; positive units move the feed down
	ScrollBy(ctx context.Context, units int) error
	CursorPosition() (image.Point, error)
	LogicalSize() (width, height int)
}

// Key names understood by PressKey
const (
	KeyEscape = "esc"
	KeyEnter  = "enter"
)
