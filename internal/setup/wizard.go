// Package setup walks the operator through capturing the template images.
package setup

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"jordanella.com/feed-liker/internal/cv"
	"jordanella.com/feed-liker/internal/logging"
	"jordanella.com/feed-liker/pkg/templates"
)

// ErrEmptyRegion is returned when both corners describe a zero-size region
var ErrEmptyRegion = errors.New("selected region is empty")

// Pointer reports the cursor in logical coordinates
type Pointer interface {
	CursorPosition() (image.Point, error)
}

// RegionCapturer grabs a rectangle of the screen in capture coordinates
type RegionCapturer interface {
	CaptureRegion(rect image.Rectangle) (*image.RGBA, error)
}

// Item is one image the wizard asks for
type Item struct {
	Kind        cv.Kind
	Variant     int // 1-based
	Description string
	Optional    bool
}

// File returns the item's file name inside the templates directory
func (it Item) File() string {
	return templates.VariantFile(it.Kind, it.Variant)
}

// DefaultItems lists the images in capture order
func DefaultItems() []Item {
	return []Item{
		{Kind: cv.KindMenuTrigger, Variant: 1, Description: "the menu trigger button on a feed element"},
		{Kind: cv.KindActedMarker, Variant: 1, Description: "the marker shown on elements already acted on"},
		{Kind: cv.KindUndoAction, Variant: 1, Description: "the undo action inside an opened menu"},
		{Kind: cv.KindActedMarker, Variant: 2, Description: "a second style of acted marker", Optional: true},
	}
}

// Deps are the wizard's collaborators
type Deps struct {
	Pointer Pointer
	Screen  RegionCapturer
	Scale   float64 // Capture pixels per logical pixel
	Dir     string
	In      io.Reader
	Out     io.Writer
	Logger  *logging.Logger
}

// Report is the final template check
type Report struct {
	Saved   []string
	Skipped []string
	Present []string
	Missing []string // Required files still absent
}

// Complete reports whether every required file exists
func (r Report) Complete() bool {
	return len(r.Missing) == 0
}

// Wizard captures template images from operator-marked screen regions
type Wizard struct {
	deps   Deps
	in     *bufio.Reader
	out    io.Writer
	logger *logging.Logger
}

// NewWizard creates a wizard; a zero scale is treated as 1
func NewWizard(deps Deps) *Wizard {
	if deps.Scale <= 0 {
		deps.Scale = 1
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Wizard{
		deps:   deps,
		in:     bufio.NewReader(deps.In),
		out:    deps.Out,
		logger: deps.Logger,
	}
}

// Run captures every item in order and finishes with a check of the directory
func (w *Wizard) Run(ctx context.Context, items []Item) (Report, error) {
	var report Report

	if err := os.MkdirAll(w.deps.Dir, 0755); err != nil {
		return report, fmt.Errorf("failed to create templates directory: %w", err)
	}

	fmt.Fprintln(w.out, "\n=== Template capture ===")
	fmt.Fprintln(w.out, "Open the feed in the foreground before continuing.")
	fmt.Fprintf(w.out, "%d images will be captured. For each one, hover over the element's corners when asked.\n", len(items))

	for _, item := range items {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		saved, err := w.captureItem(item)
		switch {
		case errors.Is(err, ErrEmptyRegion):
			fmt.Fprintf(w.out, "  x %s: region was empty, run setup again to retry\n", item.File())
			w.logger.WarnWithContext("Empty capture region", logging.Fields{"file": item.File()})
			report.Skipped = append(report.Skipped, item.File())
		case err != nil:
			return report, err
		case saved:
			report.Saved = append(report.Saved, item.File())
		default:
			report.Skipped = append(report.Skipped, item.File())
		}
	}

	w.check(items, &report)
	return report, nil
}

// captureItem returns false when the operator chose not to capture the item
func (w *Wizard) captureItem(item Item) (bool, error) {
	path := filepath.Join(w.deps.Dir, item.File())

	if _, err := os.Stat(path); err == nil {
		ok, err := w.confirm(fmt.Sprintf("\nTemplate %s already exists. Capture it again? (y/N): ", item.File()))
		if err != nil || !ok {
			fmt.Fprintf(w.out, "  skipping %s\n", item.File())
			return false, err
		}
	} else if item.Optional {
		ok, err := w.confirm(fmt.Sprintf("\nCapture %s? It is optional and improves detection. (y/N): ", item.Description))
		if err != nil || !ok {
			fmt.Fprintf(w.out, "  skipping %s\n", item.File())
			return false, err
		}
	}

	fmt.Fprintf(w.out, "\n>>> Capture: %s\n", item.Description)

	topLeft, err := w.corner("top-left")
	if err != nil {
		return false, err
	}
	bottomRight, err := w.corner("bottom-right")
	if err != nil {
		return false, err
	}

	rect := w.captureRect(topLeft, bottomRight)
	if rect.Empty() {
		return false, ErrEmptyRegion
	}

	img, err := w.deps.Screen.CaptureRegion(rect)
	if err != nil {
		return false, fmt.Errorf("failed to capture %s: %w", item.File(), err)
	}
	if err := templates.SavePNG(path, img); err != nil {
		return false, err
	}

	size := img.Bounds().Size()
	fmt.Fprintf(w.out, "  saved %s (%dx%d)\n", path, size.X, size.Y)
	w.logger.InfoWithContext("Template captured", logging.Fields{
		"file":   item.File(),
		"width":  size.X,
		"height": size.Y,
	})
	return true, nil
}

// corner waits for Enter and reads the pointer position
func (w *Wizard) corner(name string) (image.Point, error) {
	fmt.Fprintf(w.out, "    Hover over the %s corner and press Enter...", name)
	if _, err := w.readLine(); err != nil {
		return image.Point{}, err
	}
	p, err := w.deps.Pointer.CursorPosition()
	if err != nil {
		return image.Point{}, fmt.Errorf("failed to read cursor: %w", err)
	}
	return p, nil
}

// captureRect converts two logical corners in any order to a capture-space rectangle
func (w *Wizard) captureRect(a, b image.Point) image.Rectangle {
	r := image.Rectangle{Min: a, Max: b}.Canon()
	s := w.deps.Scale
	return image.Rect(
		int(float64(r.Min.X)*s),
		int(float64(r.Min.Y)*s),
		int(float64(r.Max.X)*s),
		int(float64(r.Max.Y)*s),
	)
}

func (w *Wizard) confirm(prompt string) (bool, error) {
	fmt.Fprint(w.out, prompt)
	line, err := w.readLine()
	if err != nil {
		return false, err
	}
	return strings.EqualFold(strings.TrimSpace(line), "y"), nil
}

// readLine accepts a final line without a newline
func (w *Wizard) readLine() (string, error) {
	line, err := w.in.ReadString('\n')
	if err == io.EOF && line != "" {
		return line, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return line, nil
}

// check lists which files exist after the session
func (w *Wizard) check(items []Item, report *Report) {
	fmt.Fprintln(w.out, "\n=== Template check ===")
	for _, item := range items {
		path := filepath.Join(w.deps.Dir, item.File())
		_, err := os.Stat(path)
		switch {
		case err == nil:
			report.Present = append(report.Present, item.File())
			fmt.Fprintf(w.out, "  ok  %s\n", item.File())
		case item.Optional:
			fmt.Fprintf(w.out, "  -   %s: not captured (optional)\n", item.File())
		default:
			report.Missing = append(report.Missing, item.File())
			fmt.Fprintf(w.out, "  x   %s: missing\n", item.File())
		}
	}

	if report.Complete() {
		fmt.Fprintln(w.out, "\nTemplates ready. Try a run with --dry-run to check detection.")
	} else {
		fmt.Fprintln(w.out, "\nSome templates are missing. Run setup again to add them.")
	}
}
