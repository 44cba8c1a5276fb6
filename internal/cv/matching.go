package cv

import (
	"errors"
	"fmt"
	"image"
	"math"

	"gonum.org/v1/gonum/floats"
)

// DefaultVariantMergeDistance is the pixel distance under which detections
// from different variants of one template are treated as the same element.
const DefaultVariantMergeDistance = 30

// scoreEpsilon absorbs floating point error so an exact pixel match
// still satisfies a threshold of 1.0
const scoreEpsilon = 1e-9

// flatVariance is the per-pixel variance below which a window counts as flat
const flatVariance = 1e-3

// ErrInvalidThreshold is returned when a match threshold lies outside (0, 1]
var ErrInvalidThreshold = errors.New("match threshold must be in (0, 1]")

// ScoreMap holds one normalized cross-correlation score per template position.
// Scores range from -1 (inverted) to 1 (identical up to brightness and contrast).
type ScoreMap struct {
	Width  int
	Height int
	Scores []float64
}

// At returns the score for the template placed with its top-left corner at (x, y)
func (m *ScoreMap) At(x, y int) float64 {
	return m.Scores[y*m.Width+x]
}

// FindAll finds every occurrence of tpl in frame scoring at or above threshold
// and returns the centre of each detection in frame coordinates.
//
// Raw hits are visited in row-major order. A hit becomes a detection only if its
// centre is not within half the template width and half the template height of
// a detection accepted earlier.
func FindAll(frame, tpl *image.RGBA, threshold float64) ([]image.Point, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}
	if isEmpty(frame) || isEmpty(tpl) {
		return nil, nil
	}

	scores := CorrelationMap(frame, tpl)
	if scores == nil {
		return nil, nil
	}

	frameMin := frame.Bounds().Min
	tplWidth := tpl.Bounds().Dx()
	tplHeight := tpl.Bounds().Dy()

	var points []image.Point
	for y := 0; y < scores.Height; y++ {
		for x := 0; x < scores.Width; x++ {
			if scores.At(x, y) < threshold-scoreEpsilon {
				continue
			}

			center := image.Point{
				X: frameMin.X + x + tplWidth/2,
				Y: frameMin.Y + y + tplHeight/2,
			}
			if withinHalfSize(points, center, tplWidth, tplHeight) {
				continue
			}
			points = append(points, center)
		}
	}

	return points, nil
}

// FindAllVariants matches every variant of one logical element and merges the
// results. The first detection seen for any cluster wins; later detections
// closer than mergeDistance on both axes are dropped.
func FindAllVariants(frame *image.RGBA, variants []*image.RGBA, threshold float64, mergeDistance int) ([]image.Point, error) {
	if err := validateThreshold(threshold); err != nil {
		return nil, err
	}

	var merged []image.Point
	for i, variant := range variants {
		points, err := FindAll(frame, variant, threshold)
		if err != nil {
			return nil, fmt.Errorf("variant %d: %w", i+1, err)
		}

		for _, p := range points {
			if withinDistance(merged, p, mergeDistance) {
				continue
			}
			merged = append(merged, p)
		}
	}

	return merged, nil
}

// CorrelationMap computes the zero-mean normalized cross-correlation of tpl
// against every position of frame on luminance. It returns nil if the template
// does not fit inside the frame.
func CorrelationMap(frame, tpl *image.RGBA) *ScoreMap {
	haystack := toLuma(frame)
	needle := toLuma(tpl)

	if needle.width > haystack.width || needle.height > haystack.height {
		return nil
	}

	n := float64(needle.width * needle.height)

	// Zero-mean template so the numerator needs no window mean
	needleMean := floats.Sum(needle.pix) / n
	centered := make([]float64, len(needle.pix))
	copy(centered, needle.pix)
	floats.AddConst(-needleMean, centered)
	needleEnergy := floats.Dot(centered, centered)
	needleFlat := needleEnergy < flatVariance*n
	needleNorm := math.Sqrt(needleEnergy)

	sum, sumSq := haystack.integrals()
	stride := haystack.width + 1
	windowSums := func(x, y int) (float64, float64) {
		x2, y2 := x+needle.width, y+needle.height
		s := sum[y2*stride+x2] - sum[y*stride+x2] - sum[y2*stride+x] + sum[y*stride+x]
		ss := sumSq[y2*stride+x2] - sumSq[y*stride+x2] - sumSq[y2*stride+x] + sumSq[y*stride+x]
		return s, ss
	}

	out := &ScoreMap{
		Width:  haystack.width - needle.width + 1,
		Height: haystack.height - needle.height + 1,
	}
	out.Scores = make([]float64, out.Width*out.Height)

	for y := 0; y < out.Height; y++ {
		for x := 0; x < out.Width; x++ {
			s, ss := windowSums(x, y)
			variance := ss - s*s/n

			// Flat template: only an equally flat window of the same level matches
			if needleFlat {
				if variance < flatVariance*n && math.Abs(s/n-needleMean) < 0.5 {
					out.Scores[y*out.Width+x] = 1
				}
				continue
			}
			if variance < flatVariance*n {
				continue
			}

			var numerator float64
			for row := 0; row < needle.height; row++ {
				start := (y+row)*haystack.width + x
				numerator += floats.Dot(
					centered[row*needle.width:(row+1)*needle.width],
					haystack.pix[start:start+needle.width],
				)
			}

			score := numerator / (needleNorm * math.Sqrt(variance))
			out.Scores[y*out.Width+x] = math.Max(-1, math.Min(1, score))
		}
	}

	return out
}

// luma is a single-channel float view of an RGBA image
type luma struct {
	width  int
	height int
	pix    []float64
}

// toLuma converts RGBA to luminance with Rec. 601 weights
func toLuma(img *image.RGBA) luma {
	bounds := img.Bounds()
	l := luma{
		width:  bounds.Dx(),
		height: bounds.Dy(),
		pix:    make([]float64, bounds.Dx()*bounds.Dy()),
	}

	for y := 0; y < l.height; y++ {
		for x := 0; x < l.width; x++ {
			idx := img.PixOffset(bounds.Min.X+x, bounds.Min.Y+y)
			r := int(img.Pix[idx])
			g := int(img.Pix[idx+1])
			b := int(img.Pix[idx+2])
			l.pix[y*l.width+x] = float64(r*299+g*587+b*114) / 1000
		}
	}

	return l
}

// integrals returns summed-area tables of values and squared values,
// each (width+1)*(height+1) with a zero first row and column
func (l luma) integrals() ([]float64, []float64) {
	stride := l.width + 1
	sum := make([]float64, stride*(l.height+1))
	sumSq := make([]float64, stride*(l.height+1))

	for y := 1; y <= l.height; y++ {
		var rowSum, rowSumSq float64
		for x := 1; x <= l.width; x++ {
			v := l.pix[(y-1)*l.width+(x-1)]
			rowSum += v
			rowSumSq += v * v
			sum[y*stride+x] = sum[(y-1)*stride+x] + rowSum
			sumSq[y*stride+x] = sumSq[(y-1)*stride+x] + rowSumSq
		}
	}

	return sum, sumSq
}

func validateThreshold(threshold float64) error {
	if math.IsNaN(threshold) || threshold <= 0 || threshold > 1 {
		return fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	return nil
}

func isEmpty(img *image.RGBA) bool {
	return img == nil || img.Bounds().Empty()
}

// withinHalfSize reports whether p lies closer than half the template size to any point
func withinHalfSize(points []image.Point, p image.Point, width, height int) bool {
	for _, q := range points {
		if 2*abs(p.X-q.X) < width && 2*abs(p.Y-q.Y) < height {
			return true
		}
	}
	return false
}

func withinDistance(points []image.Point, p image.Point, distance int) bool {
	for _, q := range points {
		if abs(p.X-q.X) < distance && abs(p.Y-q.Y) < distance {
			return true
		}
	}
	return false
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
