package pace

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Clock suspends the run. Sleep returns early with the context error on cancellation.
type Clock interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock sleeps on wall-clock time
type SystemClock struct{}

// Sleep waits for d or until ctx is done
func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecordingClock returns immediately and remembers every requested duration
type RecordingClock struct {
	Slept []time.Duration
}

// Sleep records d and only fails if ctx is already done
func (c *RecordingClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.Slept = append(c.Slept, d)
	return nil
}

// Total returns the sum of all recorded sleeps
func (c *RecordingClock) Total() time.Duration {
	var total time.Duration
	for _, d := range c.Slept {
		total += d
	}
	return total
}

// Range is an inclusive duration interval
type Range struct {
	Min time.Duration
	Max time.Duration
}

// Between builds a Range from two durations
func Between(min, max time.Duration) Range {
	return Range{Min: min, Max: max}
}

// Validate checks that the range is non-negative and ordered
func (r Range) Validate() error {
	if r.Min < 0 || r.Max < r.Min {
		return fmt.Errorf("invalid duration range [%v, %v]", r.Min, r.Max)
	}
	return nil
}

// Uniform draws a duration uniformly from the range
func (r Range) Uniform(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	return r.Min + time.Duration(rng.Int63n(int64(r.Max-r.Min)+1))
}

// Gaussian draws from a normal distribution centred on the midpoint with
// sigma of a sixth of the width, clamped into the range
func (r Range) Gaussian(rng *rand.Rand) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	mean := float64(r.Min+r.Max) / 2
	sigma := float64(r.Max-r.Min) / 6

	d := time.Duration(mean + rng.NormFloat64()*sigma)
	if d < r.Min {
		return r.Min
	}
	if d > r.Max {
		return r.Max
	}
	return d
}

// Pacer draws randomized pauses and sleeps through a Clock
type Pacer struct {
	clock Clock
	rng   *rand.Rand
}

// NewPacer creates a pacer over clock and rng
func NewPacer(clock Clock, rng *rand.Rand) *Pacer {
	return &Pacer{clock: clock, rng: rng}
}

// Sleep waits exactly d
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.clock.Sleep(ctx, d)
}

// Pause waits a uniformly drawn duration from r
func (p *Pacer) Pause(ctx context.Context, r Range) error {
	return p.clock.Sleep(ctx, r.Uniform(p.rng))
}

// PauseGaussian waits a normally distributed duration clamped to r
func (p *Pacer) PauseGaussian(ctx context.Context, r Range) error {
	return p.clock.Sleep(ctx, r.Gaussian(p.rng))
}

// Rand exposes the pacer's random source so callers share one seed
func (p *Pacer) Rand() *rand.Rand {
	return p.rng
}
