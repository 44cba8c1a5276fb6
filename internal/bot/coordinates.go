package bot

import (
	"fmt"
	"image"
)

// CoordinateTranslator converts between capture pixels (what screenshots and
// matches use) and logical input coordinates (what the pointer uses).
// On a 2x display every logical pixel covers two capture pixels per axis.
type CoordinateTranslator struct {
	scale         float64
	logicalWidth  int
	logicalHeight int
}

// NewCoordinateTranslator creates a translator for a capture/logical scale factor
func NewCoordinateTranslator(scale float64, logicalWidth, logicalHeight int) *CoordinateTranslator {
	return &CoordinateTranslator{
		scale:         scale,
		logicalWidth:  logicalWidth,
		logicalHeight: logicalHeight,
	}
}

// ToInput translates a capture-space point to logical coordinates, truncating
func (ct *CoordinateTranslator) ToInput(p image.Point) image.Point {
	return image.Point{
		X: int(float64(p.X) / ct.scale),
		Y: int(float64(p.Y) / ct.scale),
	}
}

// ToCapture translates a logical point to capture space
func (ct *CoordinateTranslator) ToCapture(p image.Point) image.Point {
	return image.Point{
		X: int(float64(p.X) * ct.scale),
		Y: int(float64(p.Y) * ct.scale),
	}
}

// InBounds reports whether a logical point lies on the display
func (ct *CoordinateTranslator) InBounds(p image.Point) bool {
	return p.In(image.Rect(0, 0, ct.logicalWidth, ct.logicalHeight))
}

// Scale returns capture pixels per logical pixel
func (ct *CoordinateTranslator) Scale() float64 {
	return ct.scale
}

// Validate ensures the translator can be used
func (ct *CoordinateTranslator) Validate() error {
	if ct.scale <= 0 {
		return fmt.Errorf("invalid scale factor: %f (must be > 0)", ct.scale)
	}
	if ct.logicalWidth <= 0 || ct.logicalHeight <= 0 {
		return fmt.Errorf("invalid logical display size: %dx%d", ct.logicalWidth, ct.logicalHeight)
	}
	return nil
}

// String returns a string representation of the translator configuration
func (ct *CoordinateTranslator) String() string {
	return fmt.Sprintf("CoordinateTranslator{Logical: %dx%d, Scale: %.3f}",
		ct.logicalWidth, ct.logicalHeight, ct.scale)
}
