// Package devicetest provides in-memory input devices and screens for tests.
package devicetest

import (
	"context"
	"errors"
	"image"
	"image/draw"
)

// Input records every call instead of touching the host
type Input struct {
	Width, Height int
	Cursor        image.Point

	Moves   []image.Point
	Clicks  []image.Point
	Keys    []string
	Scrolls []int

	// Err is returned by every action call when set
	Err error
	// OnClick and OnScroll let a fake screen react to input
	OnClick  func(p image.Point)
	OnScroll func(units int)
}

// NewInput creates a fake input device with the given logical display size
func NewInput(width, height int) *Input {
	return &Input{Width: width, Height: height, Cursor: image.Point{X: width / 2, Y: height / 2}}
}

func (in *Input) MoveTo(ctx context.Context, p image.Point) error {
	if err := in.check(ctx); err != nil {
		return err
	}
	in.Cursor = p
	in.Moves = append(in.Moves, p)
	return nil
}

func (in *Input) Click(ctx context.Context) error {
	if err := in.check(ctx); err != nil {
		return err
	}
	in.Clicks = append(in.Clicks, in.Cursor)
	if in.OnClick != nil {
		in.OnClick(in.Cursor)
	}
	return nil
}

func (in *Input) PressKey(ctx context.Context, key string) error {
	if err := in.check(ctx); err != nil {
		return err
	}
	in.Keys = append(in.Keys, key)
	return nil
}

func (in *Input) ScrollBy(ctx context.Context, units int) error {
	if err := in.check(ctx); err != nil {
		return err
	}
	in.Scrolls = append(in.Scrolls, units)
	if in.OnScroll != nil {
		in.OnScroll(units)
	}
	return nil
}

func (in *Input) CursorPosition() (image.Point, error) {
	return in.Cursor, nil
}

func (in *Input) LogicalSize() (int, int) {
	return in.Width, in.Height
}

func (in *Input) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return in.Err
}

// Screens returns each frame in turn and repeats the last one
type Screens struct {
	Frames []*image.RGBA
	Err    error
	calls  int
}

// CaptureFrame returns the next scripted frame
func (s *Screens) CaptureFrame() (*image.RGBA, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if len(s.Frames) == 0 {
		return nil, errors.New("no frames scripted")
	}

	i := s.calls
	if i >= len(s.Frames) {
		i = len(s.Frames) - 1
	}
	s.calls++
	return s.Frames[i], nil
}

// Calls returns how many captures were taken
func (s *Screens) Calls() int {
	return s.calls
}

// Feed is a tall canvas viewed through a window that moves when scrolled
type Feed struct {
	Canvas        *image.RGBA
	ViewHeight    int
	PixelsPerUnit int
	Offset        int
}

// Scroll moves the window down by units, stopping at the end of the canvas
func (f *Feed) Scroll(units int) {
	f.Offset += units * f.PixelsPerUnit
	maxOffset := f.Canvas.Bounds().Dy() - f.ViewHeight
	if f.Offset > maxOffset {
		f.Offset = maxOffset
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
}

// CaptureFrame copies the visible window into a new image anchored at (0,0)
func (f *Feed) CaptureFrame() (*image.RGBA, error) {
	width := f.Canvas.Bounds().Dx()
	frame := image.NewRGBA(image.Rect(0, 0, width, f.ViewHeight))
	draw.Draw(frame, frame.Bounds(), f.Canvas, image.Point{X: 0, Y: f.Offset}, draw.Src)
	return frame, nil
}
