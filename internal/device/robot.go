package device

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/go-vgo/robotgo"
)

// Robot drives the real pointer and keyboard through robotgo.
// Every call first checks the context and the fail-safe corner.
type Robot struct {
	mu             sync.Mutex
	failSafeMargin int
	failSafeOff    bool

	// location and screenSize are swapped in tests
	location   func() (int, int)
	screenSize func() (int, int)
}

// NewRobot creates a robot with the fail-safe armed at exactly (0,0)
func NewRobot() *Robot {
	return &Robot{
		location:   robotgo.Location,
		screenSize: robotgo.GetScreenSize,
	}
}

// WithFailSafeMargin widens the fail-safe corner to margin pixels on each axis
func (r *Robot) WithFailSafeMargin(margin int) *Robot {
	r.failSafeMargin = margin
	return r
}

// DisableFailSafe turns the corner check off
func (r *Robot) DisableFailSafe() *Robot {
	r.failSafeOff = true
	return r
}

// guard runs before every input call
func (r *Robot) guard(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.failSafeOff {
		return nil
	}

	x, y := r.location()
	if inCorner(image.Point{X: x, Y: y}, r.failSafeMargin) {
		return fmt.Errorf("%w at (%d,%d)", ErrFailSafe, x, y)
	}
	return nil
}

func inCorner(p image.Point, margin int) bool {
	return p.X <= margin && p.Y <= margin
}

// MoveTo places the pointer at p instantly; smooth motion is planned by the caller
func (r *Robot) MoveTo(ctx context.Context, p image.Point) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.guard(ctx); err != nil {
		return err
	}
	robotgo.Move(p.X, p.Y)
	return nil
}

// Click presses and releases the left button at the current position
func (r *Robot) Click(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.guard(ctx); err != nil {
		return err
	}
	robotgo.Click("left", false)
	return nil
}

// PressKey taps a named key such as "esc"
func (r *Robot) PressKey(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.guard(ctx); err != nil {
		return err
	}
	if err := robotgo.KeyTap(key); err != nil {
		return fmt.Errorf("failed to press %s: %w", key, err)
	}
	return nil
}

// ScrollBy scrolls the wheel; positive units scroll the content down
func (r *Robot) ScrollBy(ctx context.Context, units int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.guard(ctx); err != nil {
		return err
	}

	switch {
	case units > 0:
		robotgo.ScrollDir(units, "down")
	case units < 0:
		robotgo.ScrollDir(-units, "up")
	}
	return nil
}

// CursorPosition returns the pointer location in logical coordinates
func (r *Robot) CursorPosition() (image.Point, error) {
	x, y := r.location()
	return image.Point{X: x, Y: y}, nil
}

// LogicalSize returns the main display size in input coordinates
func (r *Robot) LogicalSize() (int, int) {
	return r.screenSize()
}
