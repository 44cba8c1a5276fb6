package bot

import (
	"errors"
	"fmt"
	"math"
	"time"

	"jordanella.com/feed-liker/internal/feed"
	"jordanella.com/feed-liker/internal/interaction"
	"jordanella.com/feed-liker/internal/motion"
	"jordanella.com/feed-liker/internal/pace"
)

// MaxTargetCount is the safety cap on elements processed in one run
const MaxTargetCount = 20

// ScrollCeilingFactor bounds scroll steps to this multiple of the target count
const ScrollCeilingFactor = 3

// ErrInvalidConfig is returned by Validate and New for unusable configurations
var ErrInvalidConfig = errors.New("invalid run configuration")

// Config is immutable for the duration of a run
type Config struct {
	TargetCount       int     // Elements to process, 1..MaxTargetCount
	ActionProbability float64 // Chance a fresh element is acted on, 0..1
	DryRun            bool    // Detect and decide only; clicks and keys are suppressed

	Tuning Tuning
	Timing Timing
	Motion motion.Options
}

// Tuning holds geometry and matching constants
type Tuning struct {
	// Threshold overrides; zero keeps the template's own threshold
	TriggerThreshold float64
	MarkerThreshold  float64
	UndoThreshold    float64

	VariantMergeDistance int // Capture pixels under which variant detections merge
	DedupTolerance       int // Scroll-invariant pixels under which detections are the same element
	ActedRowTolerance    int // Vertical capture pixels within which an acted marker shares a trigger's row
	ActionOffsetX        int // Action point relative to the trigger, logical pixels
	PixelsPerScrollUnit  int // Logical pixels moved per wheel unit, before display scaling
	ScrollUnitsMin       int
	ScrollUnitsMax       int
}

// Timing holds every pause of the run
type Timing struct {
	MenuSettle     pace.Range
	RevertSettle   time.Duration
	CommitSettle   pace.Range
	BetweenActions pace.Range // Drawn from a clamped normal distribution
	ReadingPause   pace.Range
	ScrollSettle   pace.Range
}

// DefaultConfig returns the standard run settings
func DefaultConfig() Config {
	protocol := interaction.DefaultOptions()
	return Config{
		TargetCount:       15,
		ActionProbability: 0.4,
		Tuning: Tuning{
			VariantMergeDistance: 30,
			DedupTolerance:       feed.DefaultTolerance,
			ActedRowTolerance:    60,
			ActionOffsetX:        protocol.ActionOffsetX,
			PixelsPerScrollUnit:  feed.DefaultPixelsPerScrollUnit,
			ScrollUnitsMin:       8,
			ScrollUnitsMax:       15,
		},
		Timing: Timing{
			MenuSettle:     protocol.MenuSettle,
			RevertSettle:   protocol.RevertSettle,
			CommitSettle:   protocol.CommitSettle,
			BetweenActions: pace.Between(3*time.Second, 8*time.Second),
			ReadingPause:   pace.Between(2*time.Second, 5*time.Second),
			ScrollSettle:   pace.Between(300*time.Millisecond, 600*time.Millisecond),
		},
		Motion: motion.DefaultOptions(),
	}
}

// ScrollCeiling returns the maximum number of scroll steps for the run
func (c Config) ScrollCeiling() int {
	return ScrollCeilingFactor * c.TargetCount
}

// Validate reports configuration errors; it never clamps
func (c Config) Validate() error {
	var errs []error

	if c.TargetCount < 1 || c.TargetCount > MaxTargetCount {
		errs = append(errs, fmt.Errorf("target count %d outside 1..%d", c.TargetCount, MaxTargetCount))
	}
	if math.IsNaN(c.ActionProbability) || c.ActionProbability < 0 || c.ActionProbability > 1 {
		errs = append(errs, fmt.Errorf("action probability %v outside [0,1]", c.ActionProbability))
	}

	for name, th := range map[string]float64{
		"trigger": c.Tuning.TriggerThreshold,
		"marker":  c.Tuning.MarkerThreshold,
		"undo":    c.Tuning.UndoThreshold,
	} {
		if th < 0 || th > 1 {
			errs = append(errs, fmt.Errorf("%s threshold %v outside (0,1]", name, th))
		}
	}

	t := c.Tuning
	if t.VariantMergeDistance <= 0 || t.DedupTolerance <= 0 || t.ActedRowTolerance <= 0 {
		errs = append(errs, errors.New("merge distance and tolerances must be positive"))
	}
	if t.PixelsPerScrollUnit <= 0 {
		errs = append(errs, fmt.Errorf("pixels per scroll unit %d must be positive", t.PixelsPerScrollUnit))
	}
	if t.ScrollUnitsMin <= 0 || t.ScrollUnitsMax < t.ScrollUnitsMin {
		errs = append(errs, fmt.Errorf("scroll units [%d,%d] invalid", t.ScrollUnitsMin, t.ScrollUnitsMax))
	}

	for name, r := range map[string]pace.Range{
		"menu settle":     c.Timing.MenuSettle,
		"commit settle":   c.Timing.CommitSettle,
		"between actions": c.Timing.BetweenActions,
		"reading pause":   c.Timing.ReadingPause,
		"scroll settle":   c.Timing.ScrollSettle,
	} {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if c.Timing.RevertSettle < 0 {
		errs = append(errs, fmt.Errorf("revert settle %v must not be negative", c.Timing.RevertSettle))
	}
	if err := c.Motion.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("motion: %w", err))
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// protocolOptions derives the interaction settings
func (c Config) protocolOptions() interaction.Options {
	return interaction.Options{
		MenuSettle:    c.Timing.MenuSettle,
		RevertSettle:  c.Timing.RevertSettle,
		CommitSettle:  c.Timing.CommitSettle,
		ActionOffsetX: c.Tuning.ActionOffsetX,
	}
}
