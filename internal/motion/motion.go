package motion

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math"
	"time"

	"jordanella.com/feed-liker/internal/pace"
)

// Pointer is the part of the input device the synthesizer drives
type Pointer interface {
	MoveTo(ctx context.Context, p image.Point) error
	Click(ctx context.Context) error
	CursorPosition() (image.Point, error)
}

// Options holds the tunables of path planning and clicking
type Options struct {
	PixelsPerSecond float64       // Speed used to derive a duration from distance
	MinDuration     time.Duration // Lower clamp for derived durations
	MaxDuration     time.Duration // Upper clamp for derived durations
	StepsPerSecond  int           // Sampling rate along the curve
	MinSteps        int           // Floor on samples for any non-trivial path
	ClickJitter     int           // Max pixel offset applied to click targets on each axis
	PreClick        pace.Range    // Pause between arriving and pressing
}

// DefaultOptions returns the standard human-like motion settings
func DefaultOptions() Options {
	return Options{
		PixelsPerSecond: 800,
		MinDuration:     300 * time.Millisecond,
		MaxDuration:     1200 * time.Millisecond,
		StepsPerSecond:  60,
		MinSteps:        20,
		ClickJitter:     3,
		PreClick:        pace.Between(50*time.Millisecond, 150*time.Millisecond),
	}
}

// Validate rejects options that cannot produce a path or a click
func (o Options) Validate() error {
	var errs []error
	if !(o.PixelsPerSecond > 0) {
		errs = append(errs, fmt.Errorf("pixels per second %v must be positive", o.PixelsPerSecond))
	}
	if o.MinDuration < 0 || o.MaxDuration < o.MinDuration {
		errs = append(errs, fmt.Errorf("duration clamp [%v, %v] invalid", o.MinDuration, o.MaxDuration))
	}
	if o.StepsPerSecond <= 0 || o.MinSteps <= 0 {
		errs = append(errs, fmt.Errorf("steps per second %d and min steps %d must be positive", o.StepsPerSecond, o.MinSteps))
	}
	if o.ClickJitter < 0 {
		errs = append(errs, fmt.Errorf("click jitter %d must not be negative", o.ClickJitter))
	}
	if err := o.PreClick.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("pre-click: %w", err))
	}
	return errors.Join(errs...)
}

// Path is a planned pointer trajectory. Points ends exactly at the target.
type Path struct {
	Points    []image.Point
	StepDelay time.Duration
}

// Duration returns the replay time. The first point is reached without a delay.
func (p Path) Duration() time.Duration {
	if len(p.Points) < 2 {
		return 0
	}
	return time.Duration(len(p.Points)-1) * p.StepDelay
}

// Synthesizer moves and clicks a Pointer along randomized cubic curves
type Synthesizer struct {
	pointer Pointer
	pacer   *pace.Pacer
	opts    Options
}

// NewSynthesizer creates a synthesizer; randomness and sleeping come from pacer
func NewSynthesizer(pointer Pointer, pacer *pace.Pacer, opts Options) *Synthesizer {
	return &Synthesizer{pointer: pointer, pacer: pacer, opts: opts}
}

// PlanPath builds a cubic curve from start to end through two jittered control
// points and samples it with ease-in-ease-out timing. A zero duration is derived
// from the distance. A zero-distance path is the single point end.
func (s *Synthesizer) PlanPath(start, end image.Point, duration time.Duration) Path {
	dx := float64(end.X - start.X)
	dy := float64(end.Y - start.Y)
	dist := math.Hypot(dx, dy)

	if dist == 0 {
		return Path{Points: []image.Point{end}}
	}

	if duration <= 0 {
		duration = time.Duration(dist / s.opts.PixelsPerSecond * float64(time.Second))
		if duration < s.opts.MinDuration {
			duration = s.opts.MinDuration
		}
		if duration > s.opts.MaxDuration {
			duration = s.opts.MaxDuration
		}
	}

	rng := s.pacer.Rand()
	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }
	jitter := func(n int) float64 { return float64(rng.Intn(2*n+1) - n) }

	// First control point stays early and vertically near the start,
	// the second sits late and vertically near the end
	x0, y0 := float64(start.X), float64(start.Y)
	x1 := x0 + dx*uniform(0.2, 0.4) + jitter(30)
	y1 := y0 + dy*uniform(0.0, 0.3) + jitter(30)
	x2 := x0 + dx*uniform(0.6, 0.8) + jitter(20)
	y2 := y0 + dy*uniform(0.7, 1.0) + jitter(20)
	x3, y3 := float64(end.X), float64(end.Y)

	steps := int(duration.Seconds() * float64(s.opts.StepsPerSecond))
	if steps < s.opts.MinSteps {
		steps = s.opts.MinSteps
	}

	points := make([]image.Point, 0, steps+1)
	for i := 0; i <= steps; i++ {
		t := ease(float64(i) / float64(steps))
		points = append(points, image.Point{
			X: int(math.Round(cubic(t, x0, x1, x2, x3))),
			Y: int(math.Round(cubic(t, y0, y1, y2, y3))),
		})
	}
	points[len(points)-1] = end

	return Path{
		Points:    points,
		StepDelay: duration / time.Duration(steps),
	}
}

// MoveTo replays a planned path from the current cursor position to end
func (s *Synthesizer) MoveTo(ctx context.Context, end image.Point, duration time.Duration) error {
	start, err := s.pointer.CursorPosition()
	if err != nil {
		return err
	}

	path := s.PlanPath(start, end, duration)
	for i, p := range path.Points {
		if i > 0 {
			if err := s.pacer.Sleep(ctx, path.StepDelay); err != nil {
				return err
			}
		}
		if err := s.pointer.MoveTo(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// ClickAt moves to p plus a small random offset, pauses briefly and clicks
func (s *Synthesizer) ClickAt(ctx context.Context, p image.Point) error {
	rng := s.pacer.Rand()
	n := s.opts.ClickJitter
	target := image.Point{
		X: p.X + rng.Intn(2*n+1) - n,
		Y: p.Y + rng.Intn(2*n+1) - n,
	}

	if err := s.MoveTo(ctx, target, 0); err != nil {
		return err
	}
	if err := s.pacer.Pause(ctx, s.opts.PreClick); err != nil {
		return err
	}
	return s.pointer.Click(ctx)
}

// ease is the smoothstep reparameterization t^2(3-2t)
func ease(t float64) float64 {
	return t * t * (3 - 2*t)
}

func cubic(t, p0, p1, p2, p3 float64) float64 {
	u := 1 - t
	return u*u*u*p0 + 3*u*u*t*p1 + 3*u*t*t*p2 + t*t*t*p3
}
