package bot

import (
	"context"
	"errors"
	"fmt"
	"image"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"jordanella.com/feed-liker/internal/cv"
	"jordanella.com/feed-liker/internal/events"
	"jordanella.com/feed-liker/internal/feed"
	"jordanella.com/feed-liker/internal/interaction"
	"jordanella.com/feed-liker/internal/logging"
	"jordanella.com/feed-liker/internal/motion"
	"jordanella.com/feed-liker/internal/pace"
)

// Input is the host pointer, keyboard and wheel in logical coordinates
type Input interface {
	MoveTo(ctx context.Context, p image.Point) error
	Click(ctx context.Context) error
	PressKey(ctx context.Context, key string) error
	ScrollBy(ctx context.Context, units int) error
	CursorPosition() (image.Point, error)
	LogicalSize() (width, height int)
}

// TemplateSource provides the loaded templates
type TemplateSource interface {
	Require(kind cv.Kind) (cv.Template, error)
	Get(kind cv.Kind) (cv.Template, bool)
}

// Deps are the collaborators of a run. Clock, Rand, Logger and Bus are optional.
type Deps struct {
	Capturer  cv.Capturer
	Input     Input
	Templates TemplateSource
	Clock     pace.Clock
	Rand      *rand.Rand
	Logger    *logging.Logger
	Bus       events.EventBus
}

// Bot runs one pass over the feed
type Bot struct {
	config Config
	deps   Deps
	runID  string

	cv     *cv.Service
	pacer  *pace.Pacer
	logger *logging.Logger
	bus    events.EventBus

	// Set up by start
	trigger    cv.Template
	marker     cv.Template
	translator *CoordinateTranslator
	protocol   *interaction.Protocol
	state      *State
}

// New validates the configuration and wires a bot
func New(config Config, deps Deps) (*Bot, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if deps.Capturer == nil || deps.Input == nil || deps.Templates == nil {
		return nil, fmt.Errorf("%w: capturer, input and templates are required", ErrInvalidConfig)
	}

	if deps.Clock == nil {
		deps.Clock = pace.SystemClock{}
	}
	if deps.Rand == nil {
		deps.Rand = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	if deps.Bus == nil {
		deps.Bus = events.NewEventBus()
	}

	return &Bot{
		config: config,
		deps:   deps,
		runID:  uuid.NewString(),
		cv:     cv.NewService(deps.Capturer).WithMergeDistance(config.Tuning.VariantMergeDistance),
		pacer:  pace.NewPacer(deps.Clock, deps.Rand),
		logger: deps.Logger,
		bus:    deps.Bus,
		state:  &State{ScanState: feed.NewScanState(config.Tuning.DedupTolerance)},
	}, nil
}

// RunID identifies this run in logs, events and the journal
func (b *Bot) RunID() string {
	return b.runID
}

// State returns the live run state
func (b *Bot) State() *State {
	return b.state
}

// Run processes the feed until the target is reached, the scroll ceiling is hit,
// or a fatal error occurs. The summary always reflects the progress made.
func (b *Bot) Run(ctx context.Context) (Summary, error) {
	summary := Summary{
		RunID:     b.runID,
		StartedAt: time.Now(),
		DryRun:    b.config.DryRun,
	}

	err := b.start(ctx)
	if err == nil {
		err = b.loop(ctx)
	}

	summary.FinishedAt = time.Now()
	summary.Processed = b.state.Processed
	summary.Committed = b.state.Committed
	summary.AlreadyActed = b.state.AlreadyActed
	summary.Failed = b.state.Failed
	summary.Scrolls = b.state.Scrolls
	summary.Handled = b.state.ScanState.Len()
	if b.translator != nil {
		summary.Scale = b.translator.Scale()
	}

	switch {
	case err == nil && b.state.Processed >= b.config.TargetCount:
		summary.StopReason = StopTargetReached
	case err == nil:
		summary.StopReason = StopScrollCeiling
	case errors.Is(err, context.Canceled):
		summary.StopReason = StopCancelled
	default:
		summary.StopReason = StopError
	}

	fields := logging.Fields{
		"processed": summary.Processed,
		"committed": summary.Committed,
		"scrolls":   summary.Scrolls,
		"reason":    summary.StopReason,
	}
	if err != nil {
		b.logger.ErrorWithContext("Run aborted", err, fields)
		if summary.StopReason == StopError {
			b.bus.Publish(events.NewErrorEvent("bot", b.runID, err, nil))
		}
	} else {
		b.logger.InfoWithContext("Run finished", fields)
	}
	b.bus.Publish(events.NewRunFinishedEvent(b.runID, summary.Processed, summary.Committed,
		summary.Scrolls, summary.StopReason, err))

	return summary, err
}

// start loads templates, measures the display and wires the interaction protocol
func (b *Bot) start(ctx context.Context) error {
	trigger, err := b.deps.Templates.Require(cv.KindMenuTrigger)
	if err != nil {
		return err
	}
	b.trigger = b.withThreshold(trigger, b.config.Tuning.TriggerThreshold)

	if marker, ok := b.deps.Templates.Get(cv.KindActedMarker); ok {
		b.marker = b.withThreshold(marker, b.config.Tuning.MarkerThreshold)
	} else {
		b.logger.Warn("Acted marker template not loaded, feed pre-filter disabled")
	}

	var undo cv.Template
	if t, ok := b.deps.Templates.Get(cv.KindUndoAction); ok {
		undo = b.withThreshold(t, b.config.Tuning.UndoThreshold)
	} else {
		b.logger.Warn("Undo action template not loaded, menus will not be verified")
	}

	width, height := b.deps.Input.LogicalSize()
	scale, err := b.cv.ScaleFactor(width)
	if err != nil {
		return err
	}
	b.translator = NewCoordinateTranslator(scale, width, height)
	if err := b.translator.Validate(); err != nil {
		return err
	}

	synth := motion.NewSynthesizer(b.deps.Input, b.pacer, b.config.Motion)
	b.protocol = interaction.New(interaction.Deps{
		Screen:     b.cv,
		Pointer:    synth,
		Keyboard:   b.deps.Input,
		Translator: b.translator,
		Pacer:      b.pacer,
		Undo:       undo,
		Logger:     b.logger.Named("Interaction"),
		Bus:        b.bus,
		RunID:      b.runID,
	}, b.config.protocolOptions())

	b.logger.InfoWithContext("Run started", logging.Fields{
		"run_id":      b.runID,
		"target":      b.config.TargetCount,
		"probability": b.config.ActionProbability,
		"dry_run":     b.config.DryRun,
		"scale":       scale,
		"tolerance":   b.state.ScanState.Tolerance(),
	})
	b.bus.Publish(events.NewRunStartedEvent(b.runID, b.config.TargetCount,
		b.config.ActionProbability, b.config.DryRun, scale))

	return ctx.Err()
}

func (b *Bot) withThreshold(t cv.Template, override float64) cv.Template {
	if override > 0 {
		return t.WithThreshold(override)
	}
	return t
}

// loop is one capture, decide and scroll cycle per iteration
func (b *Bot) loop(ctx context.Context) error {
	for b.state.Processed < b.config.TargetCount && b.state.Scrolls < b.config.ScrollCeiling() {
		if err := ctx.Err(); err != nil {
			return err
		}

		frame, err := b.cv.CaptureFrame()
		if err != nil {
			return err
		}

		triggers, err := b.cv.Locate(frame, b.trigger)
		if err != nil {
			return err
		}
		b.logger.InfoWithContext("Located menu triggers", logging.Fields{"count": len(triggers)})

		if len(triggers) > 0 {
			var markers []image.Point
			if !b.marker.Empty() {
				markers, err = b.cv.Locate(frame, b.marker)
				if err != nil {
					return err
				}
				b.logger.DebugWithContext("Located acted markers", logging.Fields{"count": len(markers)})
			}

			for _, p := range triggers {
				if b.state.Processed >= b.config.TargetCount {
					break
				}
				if err := b.handle(ctx, p, markers); err != nil {
					return err
				}
			}

			if b.state.Processed >= b.config.TargetCount {
				return nil
			}
		} else {
			b.logger.Info("No menu triggers on screen, scrolling")
		}

		if err := b.scroll(ctx); err != nil {
			return err
		}
		if err := b.pacer.Pause(ctx, b.config.Timing.ReadingPause); err != nil {
			return err
		}
	}

	return nil
}

// handle decides one detected trigger. Every path either finds the element
// already recorded or records it before returning.
func (b *Bot) handle(ctx context.Context, p image.Point, markers []image.Point) error {
	scan := b.state.ScanState

	if scan.IsHandled(p.Y) {
		b.dispose(DispositionSkippedDuplicate, p, "")
		return nil
	}

	if sameRow(p, markers, b.config.Tuning.ActedRowTolerance) {
		scan.MarkHandled(p.Y)
		b.dispose(DispositionSkippedActedMarker, p, "")
		return nil
	}

	scan.MarkHandled(p.Y)
	b.state.Processed++

	if b.pacer.Rand().Float64() >= b.config.ActionProbability {
		b.dispose(DispositionSkippedProbabilistic, p, "")
		return nil
	}

	if b.config.DryRun {
		b.state.Committed++
		b.dispose(DispositionSimulated, p, "")
		return nil
	}

	result, err := b.protocol.Engage(ctx, p)
	if err != nil {
		return err
	}

	switch result.Outcome {
	case interaction.OutcomeCommitted:
		b.state.Committed++
		b.dispose(DispositionCommitted, p, "")
	case interaction.OutcomeAlreadyActed:
		b.state.AlreadyActed++
		b.dispose(DispositionAlreadyActed, p, result.Reason)
	default:
		b.state.Failed++
		b.dispose(DispositionFailed, p, result.Reason)
	}

	return b.pacer.PauseGaussian(ctx, b.config.Timing.BetweenActions)
}

// scroll advances the feed by a random number of wheel units and records the estimate
func (b *Bot) scroll(ctx context.Context) error {
	t := b.config.Tuning
	units := t.ScrollUnitsMin + b.pacer.Rand().Intn(t.ScrollUnitsMax-t.ScrollUnitsMin+1)

	if err := b.deps.Input.ScrollBy(ctx, units); err != nil {
		return fmt.Errorf("failed to scroll: %w", err)
	}
	if err := b.pacer.Pause(ctx, b.config.Timing.ScrollSettle); err != nil {
		return err
	}

	pixels := int(float64(units*t.PixelsPerScrollUnit) * b.translator.Scale())
	b.state.ScanState.AdvanceScroll(pixels)
	b.state.Scrolls++

	b.logger.InfoWithContext("Scrolled feed", logging.Fields{
		"units":      units,
		"pixels":     pixels,
		"cumulative": b.state.ScanState.CumulativeScroll(),
	})
	b.bus.Publish(events.NewFeedScrolledEvent(b.runID, units, pixels, b.state.ScanState.CumulativeScroll()))
	return nil
}

func (b *Bot) dispose(d Disposition, p image.Point, detail string) {
	inv := b.state.ScanState.Invariant(p.Y)
	fields := logging.Fields{
		"disposition": string(d),
		"x":           p.X,
		"y":           p.Y,
		"processed":   b.state.Processed,
	}
	if detail != "" {
		fields["detail"] = detail
	}

	if d == DispositionFailed {
		b.logger.WarnWithContext("Element handled", fields)
	} else {
		b.logger.InfoWithContext("Element handled", fields)
	}
	b.bus.Publish(events.NewElementDisposedEvent(b.runID, string(d), p.Y, inv, detail))
}

// sameRow reports whether any marker lies within tolerance of p vertically
func sameRow(p image.Point, markers []image.Point, tolerance int) bool {
	for _, m := range markers {
		dy := p.Y - m.Y
		if dy < 0 {
			dy = -dy
		}
		if dy < tolerance {
			return true
		}
	}
	return false
}
