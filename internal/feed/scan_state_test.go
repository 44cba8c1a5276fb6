package feed

import (
	"math/rand"
	"testing"
)

func TestScanStateMembershipAcrossScroll(t *testing.T) {
	for _, scroll := range []int{0, 37, 400, 1250, 9999} {
		s := NewScanState(50)
		s.AdvanceScroll(scroll)
		s.MarkHandled(300)

		for _, dy := range []int{-49, -10, 0, 10, 49} {
			if !s.IsHandled(300 + dy) {
				t.Errorf("scroll %d: expected %d to be handled", scroll, 300+dy)
			}
		}
		for _, dy := range []int{-50, 50, 200} {
			if s.IsHandled(300 + dy) {
				t.Errorf("scroll %d: expected %d to be outside tolerance", scroll, 300+dy)
			}
		}
	}
}

func TestScanStateRemembersAfterScrolling(t *testing.T) {
	s := NewScanState(40)
	s.MarkHandled(600)

	// After scrolling 400px the same element is drawn 400px higher
	s.AdvanceScroll(400)
	if !s.IsHandled(200) {
		t.Error("expected element to be recognised at its new screen position")
	}
	if s.IsHandled(600) {
		t.Error("old screen position now holds a different element")
	}

	s.AdvanceScroll(1000)
	if !s.IsHandled(600 - 1400) {
		t.Error("expected membership to survive further scrolling")
	}
}

func TestScanStateMonotonicMemory(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	s := NewScanState(30)

	var marks []int
	for i := 0; i < 200; i++ {
		if rng.Intn(3) == 0 {
			s.AdvanceScroll(rng.Intn(600))
		}
		y := rng.Intn(900)
		s.MarkHandled(y)
		marks = append(marks, s.Invariant(y))

		for _, inv := range marks {
			if !s.IsHandled(inv - s.CumulativeScroll()) {
				t.Fatalf("step %d: lost invariant position %d", i, inv)
			}
		}
	}
}

func TestScanStateCollapsesNearDetections(t *testing.T) {
	s := NewScanState(100)
	s.MarkHandled(200)
	s.MarkHandled(230)
	s.MarkHandled(170)

	if s.Len() != 1 {
		t.Errorf("expected 1 entry, got %d (%v)", s.Len(), s.Entries())
	}

	s.MarkHandled(350)
	if s.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", s.Len())
	}
}

func TestScanStateEntriesSorted(t *testing.T) {
	s := NewScanState(10)
	s.MarkHandled(500)
	s.AdvanceScroll(100)
	s.MarkHandled(50)
	s.MarkHandled(900)

	got := s.Entries()
	want := []int{150, 500, 1000}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("expected %v, got %v", want, got)
			break
		}
	}
}

func TestNewScanStateDefaultTolerance(t *testing.T) {
	if got := NewScanState(0).Tolerance(); got != DefaultTolerance {
		t.Errorf("expected default tolerance %d, got %d", DefaultTolerance, got)
	}
}
