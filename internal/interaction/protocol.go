package interaction

import (
	"context"
	"fmt"
	"image"
	"time"

	"jordanella.com/feed-liker/internal/cv"
	"jordanella.com/feed-liker/internal/events"
	"jordanella.com/feed-liker/internal/logging"
	"jordanella.com/feed-liker/internal/pace"
)

// State is a step of the per-element protocol
type State string

const (
	StateIdle        State = "idle"
	StateMenuOpening State = "menu-opening"
	StateMenuOpen    State = "menu-open"
	StateReverting   State = "reverting"
	StateCommitting  State = "committing"
)

// CancelKey dismisses an open menu
const CancelKey = "esc"

// Outcome is the terminal result of engaging one element
type Outcome string

const (
	// OutcomeCommitted means the action was clicked
	OutcomeCommitted Outcome = "committed"
	// OutcomeAlreadyActed means the menu showed the undo action and was dismissed
	OutcomeAlreadyActed Outcome = "already-acted"
	// OutcomeFailed means the action could not be attempted; the menu was dismissed
	OutcomeFailed Outcome = "failed"
)

// Result describes how an engagement ended
type Result struct {
	Outcome Outcome
	Trigger image.Point // Trigger in input coordinates
	Action  image.Point // Action point in input coordinates, set when one was computed
	Reason  string
}

// Screen captures verification frames and locates templates in them
type Screen interface {
	CaptureFrame() (cv.Frame, error)
	Locate(frame cv.Frame, tpl cv.Template) ([]image.Point, error)
}

// Pointer performs a human-like click in input coordinates
type Pointer interface {
	ClickAt(ctx context.Context, p image.Point) error
}

// Keyboard presses named keys
type Keyboard interface {
	PressKey(ctx context.Context, key string) error
}

// Translator maps capture coordinates to input coordinates
type Translator interface {
	ToInput(p image.Point) image.Point
	InBounds(p image.Point) bool
}

// Options holds the protocol's timing and geometry
type Options struct {
	MenuSettle    pace.Range    // Wait for the menu to render before verifying
	RevertSettle  time.Duration // Wait after dismissing the menu
	CommitSettle  pace.Range    // Wait after the action click
	ActionOffsetX int           // Action point relative to the trigger, in input pixels
}

// DefaultOptions returns the standard timing and an action 135px left of the trigger
func DefaultOptions() Options {
	return Options{
		MenuSettle:    pace.Between(1000*time.Millisecond, 1500*time.Millisecond),
		RevertSettle:  300 * time.Millisecond,
		CommitSettle:  pace.Between(500*time.Millisecond, 1000*time.Millisecond),
		ActionOffsetX: -135,
	}
}

// Deps are the collaborators of a Protocol
type Deps struct {
	Screen     Screen
	Pointer    Pointer
	Keyboard   Keyboard
	Translator Translator
	Pacer      *pace.Pacer
	// Undo is the undo-action template; when empty the revert check is skipped
	Undo   cv.Template
	Logger *logging.Logger
	Bus    events.EventBus
	RunID  string
}

// Protocol opens an element's menu, verifies it with a second capture and then
// either dismisses it or commits the action. It keeps no state between elements.
type Protocol struct {
	deps  Deps
	opts  Options
	state State
}

// New creates a protocol
func New(deps Deps, opts Options) *Protocol {
	if deps.Logger == nil {
		deps.Logger = logging.Discard()
	}
	return &Protocol{deps: deps, opts: opts, state: StateIdle}
}

// State returns the current protocol state; Idle between engagements
func (p *Protocol) State() State {
	return p.state
}

// Engage runs the protocol for a trigger found at capture coordinates.
// A returned error is fatal to the run; a Failed outcome is not.
func (p *Protocol) Engage(ctx context.Context, trigger image.Point) (Result, error) {
	if p.state != StateIdle {
		return Result{}, fmt.Errorf("engage called in state %s", p.state)
	}

	result := Result{Trigger: p.deps.Translator.ToInput(trigger)}

	p.transition(StateMenuOpening)
	p.deps.Logger.InfoWithContext("Opening element menu", logging.Fields{
		"x": result.Trigger.X,
		"y": result.Trigger.Y,
	})
	if err := p.deps.Pointer.ClickAt(ctx, result.Trigger); err != nil {
		return p.abort(result, fmt.Errorf("failed to click menu trigger: %w", err))
	}
	if err := p.deps.Pacer.Pause(ctx, p.opts.MenuSettle); err != nil {
		return p.abort(result, err)
	}

	frame, err := p.deps.Screen.CaptureFrame()
	if err != nil {
		return p.abort(result, fmt.Errorf("failed to capture verification frame: %w", err))
	}
	p.transition(StateMenuOpen)

	if !p.deps.Undo.Empty() {
		undo, err := p.deps.Screen.Locate(frame, p.deps.Undo)
		if err != nil {
			return p.abort(result, err)
		}
		if len(undo) > 0 {
			p.deps.Logger.Info("Undo action visible, element already acted on; closing menu")
			return p.dismiss(ctx, result, OutcomeAlreadyActed, "undo action visible in menu")
		}
	}

	result.Action = result.Trigger.Add(image.Point{X: p.opts.ActionOffsetX})
	if !p.deps.Translator.InBounds(result.Action) {
		p.deps.Logger.WarnWithContext("Action point outside display, closing menu", logging.Fields{
			"x": result.Action.X,
			"y": result.Action.Y,
		})
		return p.dismiss(ctx, result, OutcomeFailed, fmt.Sprintf("action point %v outside display", result.Action))
	}

	p.transition(StateCommitting)
	p.deps.Logger.InfoWithContext("Clicking action", logging.Fields{
		"x": result.Action.X,
		"y": result.Action.Y,
	})
	if err := p.deps.Pointer.ClickAt(ctx, result.Action); err != nil {
		return p.abort(result, fmt.Errorf("failed to click action: %w", err))
	}
	if err := p.deps.Pacer.Pause(ctx, p.opts.CommitSettle); err != nil {
		return p.abort(result, err)
	}

	p.transition(StateIdle)
	result.Outcome = OutcomeCommitted
	return result, nil
}

// dismiss closes the open menu and ends in Idle with a non-committing outcome
func (p *Protocol) dismiss(ctx context.Context, result Result, outcome Outcome, reason string) (Result, error) {
	p.transition(StateReverting)
	if err := p.deps.Keyboard.PressKey(ctx, CancelKey); err != nil {
		return p.abort(result, fmt.Errorf("failed to dismiss menu: %w", err))
	}
	if err := p.deps.Pacer.Sleep(ctx, p.opts.RevertSettle); err != nil {
		return p.abort(result, err)
	}

	p.transition(StateIdle)
	result.Outcome = outcome
	result.Reason = reason
	return result, nil
}

// abort returns to Idle after a fatal error. An open menu is left as is.
func (p *Protocol) abort(result Result, err error) (Result, error) {
	p.transition(StateIdle)
	return result, err
}

func (p *Protocol) transition(to State) {
	from := p.state
	if from == to {
		return
	}
	p.state = to

	p.deps.Logger.DebugWithContext("Protocol state", logging.Fields{
		"from": string(from),
		"to":   string(to),
	})
	if p.deps.Bus != nil {
		p.deps.Bus.Publish(events.NewInteractionStateEvent(p.deps.RunID, string(from), string(to)))
	}
}
