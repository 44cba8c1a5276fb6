package cv

import (
	"fmt"
	"image"
)

// Kind names a logical UI element that templates are captured for
type Kind string

const (
	// KindMenuTrigger opens an element's contextual action menu
	KindMenuTrigger Kind = "menu_trigger"
	// KindActedMarker is visible in the feed once an element has been acted on
	KindActedMarker Kind = "acted_marker"
	// KindUndoAction appears inside the menu of an element already acted on
	KindUndoAction Kind = "undo_action"
)

// Kinds lists every logical element in load order
var Kinds = []Kind{KindMenuTrigger, KindActedMarker, KindUndoAction}

// MaxVariants bounds the reference images kept per logical element
const MaxVariants = 2

// Default thresholds per logical element
const (
	DefaultTriggerThreshold = 0.75
	DefaultMarkerThreshold  = 0.75
	DefaultUndoThreshold    = 0.65
)

// Template is the set of reference images for one logical element
type Template struct {
	Kind      Kind
	Variants  []*image.RGBA
	Threshold float64
}

// Empty reports whether no reference image was loaded
func (t Template) Empty() bool {
	return len(t.Variants) == 0
}

// Size returns the dimensions of the first variant
func (t Template) Size() image.Point {
	if t.Empty() {
		return image.Point{}
	}
	return t.Variants[0].Bounds().Size()
}

// WithThreshold sets the matching threshold
func (t Template) WithThreshold(threshold float64) Template {
	t.Threshold = threshold
	return t
}

// Locate finds the element in frame across all variants using the template's threshold
func (t Template) Locate(frame *image.RGBA, mergeDistance int) ([]image.Point, error) {
	if t.Empty() {
		return nil, nil
	}
	points, err := FindAllVariants(frame, t.Variants, t.Threshold, mergeDistance)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", t.Kind, err)
	}
	return points, nil
}
