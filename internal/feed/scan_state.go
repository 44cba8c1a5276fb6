package feed

import "sort"

// DefaultTolerance is the scroll-invariant distance under which two
// observations are treated as the same feed element
const DefaultTolerance = 100

// DefaultPixelsPerScrollUnit estimates how far one wheel unit moves the feed in
// logical pixels. There is no calibration; multiply by the display scale factor.
const DefaultPixelsPerScrollUnit = 40

// ScanState remembers which feed elements were already handled in a run.
//
// Screen Y values only mean something within a single frame, so every value is
// converted to scroll-invariant space by adding the cumulative scroll estimate.
// Entries are never removed.
type ScanState struct {
	tolerance  int
	cumulative int
	handled    []int
}

// NewScanState creates an empty ledger; tolerance <= 0 selects DefaultTolerance
func NewScanState(tolerance int) *ScanState {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &ScanState{tolerance: tolerance}
}

// Invariant converts a screen Y into scroll-invariant space
func (s *ScanState) Invariant(screenY int) int {
	return screenY + s.cumulative
}

// IsHandled reports whether an element at screenY was already recorded
func (s *ScanState) IsHandled(screenY int) bool {
	return s.indexNear(s.Invariant(screenY)) >= 0
}

// MarkHandled records an element at screenY. Marking a position that is already
// handled is a no-op, so near-identical detections collapse to one entry.
func (s *ScanState) MarkHandled(screenY int) {
	inv := s.Invariant(screenY)
	if s.indexNear(inv) >= 0 {
		return
	}
	s.handled = append(s.handled, inv)
}

// AdvanceScroll adds an estimated scroll displacement in screen pixels
func (s *ScanState) AdvanceScroll(pixels int) {
	s.cumulative += pixels
}

// CumulativeScroll returns the total estimated displacement so far
func (s *ScanState) CumulativeScroll() int {
	return s.cumulative
}

// Tolerance returns the membership window
func (s *ScanState) Tolerance() int {
	return s.tolerance
}

// Len returns the number of handled elements
func (s *ScanState) Len() int {
	return len(s.handled)
}

// Entries returns the handled scroll-invariant positions in ascending order
func (s *ScanState) Entries() []int {
	out := make([]int, len(s.handled))
	copy(out, s.handled)
	sort.Ints(out)
	return out
}

// indexNear linear-scans for an entry strictly within tolerance of inv
func (s *ScanState) indexNear(inv int) int {
	for i, v := range s.handled {
		d := inv - v
		if d < 0 {
			d = -d
		}
		if d < s.tolerance {
			return i
		}
	}
	return -1
}
