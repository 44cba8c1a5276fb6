package cv

import (
	"errors"
	"image"
	"image/color"
	"image/draw"
	"math"
	"math/rand"
	"testing"
)

// noiseImage builds an image of independent random grey levels
func noiseImage(seed int64, width, height int) *image.RGBA {
	rng := rand.New(rand.NewSource(seed))
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(rng.Intn(256))
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

// stripeImage builds vertical stripes alternating white and black, starting white
func stripeImage(width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			v := uint8(0)
			if x%2 == 0 {
				v = 255
			}
			img.SetRGBA(x, y, color.RGBA{v, v, v, 255})
		}
	}
	return img
}

func flatImage(width, height int, level uint8) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(img, img.Bounds(), &image.Uniform{color.RGBA{level, level, level, 255}}, image.Point{}, draw.Src)
	return img
}

func paste(dst, src *image.RGBA, at image.Point) {
	r := src.Bounds().Sub(src.Bounds().Min).Add(at)
	draw.Draw(dst, r, src, src.Bounds().Min, draw.Src)
}

func TestFindAllExactMatch(t *testing.T) {
	tpl := noiseImage(7, 12, 10)
	frame := flatImage(160, 120, 40)
	at := image.Point{X: 50, Y: 30}
	paste(frame, tpl, at)

	want := image.Point{X: at.X + 6, Y: at.Y + 5}

	for _, threshold := range []float64{0.5, 0.75, 0.9, 0.99, 1.0} {
		points, err := FindAll(frame, tpl, threshold)
		if err != nil {
			t.Fatalf("threshold %v: unexpected error: %v", threshold, err)
		}
		if len(points) != 1 {
			t.Fatalf("threshold %v: expected 1 match, got %d (%v)", threshold, len(points), points)
		}
		got := points[0]
		if 2*abs(got.X-want.X) > 12 || 2*abs(got.Y-want.Y) > 10 {
			t.Errorf("threshold %v: match %v too far from %v", threshold, got, want)
		}
	}
}

func TestFindAllSuppression(t *testing.T) {
	tpl := stripeImage(12, 8)

	t.Run("closer than half size collapses", func(t *testing.T) {
		frame := flatImage(100, 60, 128)
		// A 14 px stripe band holds exact matches at x=20 and x=22
		paste(frame, stripeImage(14, 8), image.Point{X: 20, Y: 20})

		scores := CorrelationMap(frame, tpl)
		if scores.At(20, 20) < 1-scoreEpsilon || scores.At(22, 20) < 1-scoreEpsilon {
			t.Fatalf("expected two exact raw hits, got %v and %v", scores.At(20, 20), scores.At(22, 20))
		}

		// Above 0.95 so rows shifted by one (score ~0.935) are not raw hits
		points, err := FindAll(frame, tpl, 0.95)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(points) != 1 {
			t.Fatalf("expected 1 detection, got %d (%v)", len(points), points)
		}
		if points[0] != (image.Point{X: 26, Y: 24}) {
			t.Errorf("expected first hit in scan order at (26,24), got %v", points[0])
		}
	})

	t.Run("farther than half size stays separate", func(t *testing.T) {
		frame := flatImage(100, 60, 128)
		paste(frame, tpl, image.Point{X: 10, Y: 10})
		paste(frame, tpl, image.Point{X: 40, Y: 30})

		points, err := FindAll(frame, tpl, 0.9)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(points) != 2 {
			t.Fatalf("expected 2 detections, got %d (%v)", len(points), points)
		}
	})
}

func TestFindAllEdgeCases(t *testing.T) {
	frame := flatImage(40, 40, 10)
	tpl := noiseImage(1, 8, 8)

	tests := []struct {
		name  string
		frame *image.RGBA
		tpl   *image.RGBA
	}{
		{name: "nil frame", frame: nil, tpl: tpl},
		{name: "nil template", frame: frame, tpl: nil},
		{name: "empty template", frame: frame, tpl: image.NewRGBA(image.Rect(0, 0, 0, 0))},
		{name: "template larger than frame", frame: frame, tpl: noiseImage(2, 50, 10)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			points, err := FindAll(tt.frame, tt.tpl, 0.8)
			if err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if len(points) != 0 {
				t.Errorf("expected no matches, got %v", points)
			}
		})
	}
}

func TestFindAllRejectsInvalidThreshold(t *testing.T) {
	frame := flatImage(40, 40, 10)
	tpl := noiseImage(1, 8, 8)

	for _, threshold := range []float64{0, -0.2, 1.01, 3, math.NaN()} {
		if _, err := FindAll(frame, tpl, threshold); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %v: expected ErrInvalidThreshold, got %v", threshold, err)
		}
		if _, err := FindAllVariants(frame, []*image.RGBA{tpl}, threshold, 30); !errors.Is(err, ErrInvalidThreshold) {
			t.Errorf("threshold %v: variants expected ErrInvalidThreshold, got %v", threshold, err)
		}
	}
}

func TestFindAllReportsFrameCoordinates(t *testing.T) {
	tpl := noiseImage(3, 10, 10)
	screen := flatImage(200, 200, 60)
	paste(screen, tpl, image.Point{X: 120, Y: 140})

	sub := screen.SubImage(image.Rect(100, 100, 200, 200)).(*image.RGBA)
	points, err := FindAll(sub, tpl, 0.9)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 1 || points[0] != (image.Point{X: 125, Y: 145}) {
		t.Errorf("expected [(125,145)], got %v", points)
	}
}

func TestFindAllVariants(t *testing.T) {
	first := noiseImage(11, 12, 12)
	second := noiseImage(12, 16, 10)

	t.Run("nearby variants merge to first seen", func(t *testing.T) {
		frame := flatImage(200, 120, 30)
		paste(frame, first, image.Point{X: 40, Y: 40})
		paste(frame, second, image.Point{X: 60, Y: 50})

		points, err := FindAllVariants(frame, []*image.RGBA{first, second}, 0.9, DefaultVariantMergeDistance)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(points) != 1 {
			t.Fatalf("expected 1 merged point, got %d (%v)", len(points), points)
		}
		if points[0] != (image.Point{X: 46, Y: 46}) {
			t.Errorf("expected first variant's point (46,46), got %v", points[0])
		}
	})

	t.Run("distant variants stay separate", func(t *testing.T) {
		frame := flatImage(200, 120, 30)
		paste(frame, first, image.Point{X: 20, Y: 20})
		paste(frame, second, image.Point{X: 150, Y: 90})

		points, err := FindAllVariants(frame, []*image.RGBA{first, second}, 0.9, DefaultVariantMergeDistance)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(points) != 2 {
			t.Fatalf("expected 2 points, got %d (%v)", len(points), points)
		}
	})

	t.Run("no variants", func(t *testing.T) {
		points, err := FindAllVariants(flatImage(20, 20, 0), nil, 0.8, 30)
		if err != nil || len(points) != 0 {
			t.Errorf("expected empty result, got %v, %v", points, err)
		}
	})
}

func TestCorrelationMapInvertedPatternScoresNegative(t *testing.T) {
	tpl := stripeImage(6, 4)
	frame := flatImage(20, 10, 0)
	paste(frame, stripeImage(7, 4), image.Point{X: 3, Y: 3})

	scores := CorrelationMap(frame, tpl)
	if got := scores.At(4, 3); got > -0.99 {
		t.Errorf("expected inverted stripes to score near -1, got %v", got)
	}
}
