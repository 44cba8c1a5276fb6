package cv

import (
	"errors"
	"fmt"
	"image"
	"time"
)

// ErrEmptyFrame is returned when the capturer yields an image with no pixels
var ErrEmptyFrame = errors.New("captured frame is empty")

// Service turns raw captures into frames and runs template lookups on them
type Service struct {
	capturer      Capturer
	mergeDistance int
	now           func() time.Time
}

// NewService creates a new CV service
func NewService(capturer Capturer) *Service {
	return &Service{
		capturer:      capturer,
		mergeDistance: DefaultVariantMergeDistance,
		now:           time.Now,
	}
}

// WithMergeDistance sets the variant merge distance used by Locate
func (s *Service) WithMergeDistance(distance int) *Service {
	s.mergeDistance = distance
	return s
}

// CaptureFrame always reads the screen again; frames are never reused
func (s *Service) CaptureFrame() (Frame, error) {
	img, err := s.capturer.CaptureFrame()
	if err != nil {
		return Frame{}, fmt.Errorf("failed to capture frame: %w", err)
	}

	frame := Frame{Image: img, CapturedAt: s.now()}
	if frame.Empty() {
		return Frame{}, ErrEmptyFrame
	}
	return frame, nil
}

// Locate finds a template in a frame
func (s *Service) Locate(frame Frame, tpl Template) ([]image.Point, error) {
	return tpl.Locate(frame.Image, s.mergeDistance)
}

// ScaleFactor captures one frame and returns capture pixels per logical
// input pixel, e.g. 2.0 on a Retina display
func (s *Service) ScaleFactor(logicalWidth int) (float64, error) {
	if logicalWidth <= 0 {
		return 0, fmt.Errorf("invalid logical width: %d", logicalWidth)
	}

	frame, err := s.CaptureFrame()
	if err != nil {
		return 0, err
	}

	return float64(frame.Width()) / float64(logicalWidth), nil
}
