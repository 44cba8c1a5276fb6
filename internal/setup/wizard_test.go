package setup

import (
	"bytes"
	"context"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jordanella.com/feed-liker/pkg/templates"
)

// scriptedPointer returns each position in turn
type scriptedPointer struct {
	positions []image.Point
	calls     int
}

func (p *scriptedPointer) CursorPosition() (image.Point, error) {
	if p.calls >= len(p.positions) {
		return image.Point{}, errors.New("no more positions")
	}
	pos := p.positions[p.calls]
	p.calls++
	return pos, nil
}

// regionRecorder returns a blank image the size of each requested rectangle
type regionRecorder struct {
	rects []image.Rectangle
}

func (r *regionRecorder) CaptureRegion(rect image.Rectangle) (*image.RGBA, error) {
	r.rects = append(r.rects, rect)
	return image.NewRGBA(image.Rect(0, 0, rect.Dx(), rect.Dy())), nil
}

func newTestWizard(dir, input string, scale float64, positions ...image.Point) (*Wizard, *regionRecorder, *bytes.Buffer) {
	screen := &regionRecorder{}
	out := &bytes.Buffer{}
	w := NewWizard(Deps{
		Pointer: &scriptedPointer{positions: positions},
		Screen:  screen,
		Scale:   scale,
		Dir:     dir,
		In:      strings.NewReader(input),
		Out:     out,
	})
	return w, screen, out
}

func TestWizardCapturesRequiredItems(t *testing.T) {
	dir := t.TempDir()
	items := DefaultItems()

	// Three required items need two Enters each; the optional one is declined
	input := "\n\n\n\n\n\nn\n"
	w, screen, out := newTestWizard(dir, input, 2,
		image.Point{X: 100, Y: 50}, image.Point{X: 110, Y: 58},
		image.Point{X: 30, Y: 40}, image.Point{X: 20, Y: 30}, // Corners given in reverse
		image.Point{X: 200, Y: 200}, image.Point{X: 240, Y: 215},
	)

	report, err := w.Run(context.Background(), items)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(report.Saved) != 3 || len(report.Skipped) != 1 {
		t.Errorf("expected 3 saved and 1 skipped, got %+v", report)
	}
	if !report.Complete() {
		t.Errorf("expected complete report, missing %v", report.Missing)
	}

	want := []image.Rectangle{
		image.Rect(200, 100, 220, 116),
		image.Rect(40, 60, 60, 80),
		image.Rect(400, 400, 480, 430),
	}
	if len(screen.rects) != len(want) {
		t.Fatalf("expected %d captures, got %v", len(want), screen.rects)
	}
	for i := range want {
		if screen.rects[i] != want[i] {
			t.Errorf("capture %d: expected %v, got %v", i, want[i], screen.rects[i])
		}
	}

	img, err := templates.LoadPNG(filepath.Join(dir, "menu_trigger.png"))
	if err != nil {
		t.Fatalf("saved template unreadable: %v", err)
	}
	if img.Bounds().Dx() != 20 || img.Bounds().Dy() != 16 {
		t.Errorf("unexpected saved size %v", img.Bounds())
	}

	if !strings.Contains(out.String(), "acted_marker_2.png: not captured (optional)") {
		t.Errorf("expected optional note in output:\n%s", out.String())
	}
}

func TestWizardKeepsExistingUnlessConfirmed(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "menu_trigger.png")
	if err := templates.SavePNG(existing, image.NewRGBA(image.Rect(0, 0, 7, 7))); err != nil {
		t.Fatal(err)
	}

	items := DefaultItems()[:1]

	w, screen, _ := newTestWizard(dir, "n\n", 1)
	report, err := w.Run(context.Background(), items)
	if err != nil {
		t.Fatal(err)
	}
	if len(screen.rects) != 0 || len(report.Skipped) != 1 {
		t.Errorf("existing template should be kept: %+v", report)
	}

	w, screen, _ = newTestWizard(dir, "y\n\n\n", 1, image.Point{X: 0, Y: 0}, image.Point{X: 12, Y: 9})
	report, err = w.Run(context.Background(), items)
	if err != nil {
		t.Fatal(err)
	}
	if len(screen.rects) != 1 || len(report.Saved) != 1 {
		t.Fatalf("expected recapture after confirmation: %+v", report)
	}
	img, err := templates.LoadPNG(existing)
	if err != nil {
		t.Fatal(err)
	}
	if img.Bounds().Dx() != 12 {
		t.Errorf("template was not replaced, width %d", img.Bounds().Dx())
	}
}

func TestWizardEmptyRegionIsSkipped(t *testing.T) {
	dir := t.TempDir()
	w, screen, _ := newTestWizard(dir, "\n\n", 1, image.Point{X: 50, Y: 50}, image.Point{X: 50, Y: 80})

	report, err := w.Run(context.Background(), DefaultItems()[:1])
	if err != nil {
		t.Fatal(err)
	}
	if len(screen.rects) != 0 {
		t.Errorf("empty region must not be captured")
	}
	if report.Complete() || report.Missing[0] != "menu_trigger.png" {
		t.Errorf("expected menu_trigger.png missing, got %+v", report)
	}
}

func TestWizardStopsWhenInputEnds(t *testing.T) {
	dir := t.TempDir()
	w, _, _ := newTestWizard(dir, "", 1)

	if _, err := w.Run(context.Background(), DefaultItems()); err == nil {
		t.Error("expected error when input is exhausted")
	}
	if _, err := os.Stat(filepath.Join(dir, "menu_trigger.png")); err == nil {
		t.Error("nothing should have been saved")
	}
}

func TestWizardCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w, _, _ := newTestWizard(t.TempDir(), "", 1)
	if _, err := w.Run(ctx, DefaultItems()); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
