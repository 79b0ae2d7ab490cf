// Package engine holds the state of one monitoring session and reconciles
// it with either live controller telemetry or the local thermal model.
//
// An Engine is driven by exactly one goroutine. Readers on other goroutines
// must go through View snapshots.
package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/sweeney/oven-monitor/internal/history"
	"github.com/sweeney/oven-monitor/internal/logic"
	"github.com/sweeney/oven-monitor/internal/sim"
	"github.com/sweeney/oven-monitor/internal/telemetry"
)

// Driver selects where the session's ticks come from.
type Driver string

const (
	// Live follows telemetry from the controller; the controller decides.
	Live Driver = "live"
	// Simulated runs the thermal model and decides locally.
	Simulated Driver = "simulated"
)

// Sender delivers text commands to the controller. Sends are fire-and-forget.
type Sender interface {
	Send(cmd string)
}

// Observer is notified of every relay transition, in order.
type Observer interface {
	RelayChanged(tr logic.Transition)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(tr logic.Transition)

// RelayChanged calls f(tr).
func (f ObserverFunc) RelayChanged(tr logic.Transition) { f(tr) }

var (
	// ErrModeUnsupported is returned when the profile has no mode switch.
	ErrModeUnsupported = errors.New("profile does not support mode switching")
	// ErrUnknownMode is returned for mode names other than off and auto_switch.
	ErrUnknownMode = errors.New("unknown mode")
)

// Options configures a new Engine.
type Options struct {
	Profile Profile
	Driver  Driver
	// Capacity bounds each sample history.
	Capacity int
	// InitialTemp seeds the simulated oven.
	InitialTemp float64
	// Simulator is required for the Simulated driver.
	Simulator *sim.Simulator
	// Sender is required for the Live driver.
	Sender Sender
}

// Engine is a single monitoring session.
type Engine struct {
	id      string
	profile Profile
	driver  Driver
	start   time.Time

	cfg        logic.TargetConfig
	ctrl       *logic.Controller
	thresholds logic.Thresholds
	// deviceBounds is set once the controller reports its own bounds;
	// from then on they are not derived locally.
	deviceBounds bool
	relaySynced  bool
	mode         logic.Mode
	modeLabel    string

	temp     float64
	haveTemp bool
	extras   map[string]float64

	temps  *history.Buffer
	relays *history.Buffer

	sim       *sim.Simulator
	sender    Sender
	observers []Observer
}

// New creates a session starting at now.
func New(opts Options, now time.Time) (*Engine, error) {
	if opts.Profile.Strategy == nil {
		return nil, errors.New("profile has no threshold strategy")
	}
	switch opts.Driver {
	case Simulated:
		if opts.Simulator == nil {
			return nil, errors.New("simulated driver requires a simulator")
		}
	case Live:
		if opts.Sender == nil {
			return nil, errors.New("live driver requires a sender")
		}
	default:
		return nil, fmt.Errorf("unknown driver %q", opts.Driver)
	}

	cfg := opts.Profile.Target
	e := &Engine{
		id:         uuid.NewString(),
		profile:    opts.Profile,
		driver:     opts.Driver,
		start:      now,
		cfg:        cfg,
		ctrl:       logic.NewController(logic.StateOff, cfg.MinDwell, now),
		thresholds: logic.Collapsed(cfg.Target),
		mode:       logic.ModeAuto,
		extras:     make(map[string]float64),
		temps:      history.NewBuffer(opts.Capacity),
		relays:     history.NewBuffer(opts.Capacity),
		sim:        opts.Simulator,
		sender:     opts.Sender,
	}
	if opts.Profile.Switchable {
		e.mode = logic.ModeOff
	}
	e.modeLabel = string(e.mode)

	if opts.Driver == Simulated {
		e.temp = opts.InitialTemp
		e.haveTemp = true
		e.temps.Append(history.Sample{Time: now, Value: e.temp})
		e.relays.Append(history.Sample{Time: now, Value: logic.StateOff.Value()})
	}
	return e, nil
}

// Subscribe registers an observer for relay transitions.
func (e *Engine) Subscribe(o Observer) {
	e.observers = append(e.observers, o)
}

func (e *Engine) notify(tr *logic.Transition) {
	if tr == nil {
		return
	}
	for _, o := range e.observers {
		o.RelayChanged(*tr)
	}
}

// ID returns the session identifier.
func (e *Engine) ID() string { return e.id }

// Driver returns the session's driver.
func (e *Engine) Driver() Driver { return e.driver }

// Apply reconciles one decoded telemetry message, in key order.
// Only valid for the Live driver; simulated sessions ignore telemetry.
func (e *Engine) Apply(updates []telemetry.Update, now time.Time) {
	if e.driver != Live {
		return
	}
	for _, u := range updates {
		e.apply(u, now)
	}
}

func (e *Engine) apply(u telemetry.Update, now time.Time) {
	switch u := u.(type) {
	case telemetry.Temperature:
		e.temp = u.Value
		e.haveTemp = true
		e.temps.Append(history.Sample{Time: now, Value: u.Value})
		e.deriveLocally(now)
	case telemetry.Relay:
		state := logic.StateOff
		if u.On {
			state = logic.StateOn
		}
		e.relays.Append(history.Sample{Time: now, Value: state.Value()})
		e.syncRelay(state, now)
	case telemetry.TargetTemp:
		e.cfg.Target = u.Value
		e.deriveLocally(now)
	case telemetry.DerivedOvershoot:
		e.thresholds.Upper = u.Value
		e.deviceBounds = true
	case telemetry.DerivedUndershoot:
		e.thresholds.Lower = u.Value
		e.deviceBounds = true
	case telemetry.Mode:
		e.modeLabel = u.Name
		if m, ok := logic.ParseMode(u.Name); ok {
			e.mode = m
		}
	case telemetry.Unknown:
		if u.Numeric {
			e.extras[u.Name] = u.Value
		}
	}
}

// syncRelay mirrors the controller's reported relay state. The first report
// seeds the local state without counting as a transition.
func (e *Engine) syncRelay(state logic.State, now time.Time) {
	if !e.relaySynced {
		e.relaySynced = true
		if state != e.ctrl.State().Relay {
			e.ctrl = logic.NewController(state, e.cfg.MinDwell, e.start)
		}
		return
	}
	tr := e.ctrl.Force(state, now)
	if tr != nil {
		// lastSwitch is now, so local bounds collapse to the target.
		e.deriveLocally(now)
	}
	e.notify(tr)
}

func (e *Engine) deriveLocally(now time.Time) {
	if e.deviceBounds {
		return
	}
	e.thresholds = e.profile.Strategy.Derive(e.cfg, e.ctrl.State().LastSwitch, now)
}

// Tick advances the simulated oven by one step: model, record, derive,
// decide. Only valid for the Simulated driver.
func (e *Engine) Tick(now time.Time) *logic.Transition {
	if e.driver != Simulated {
		return nil
	}

	e.temp = e.sim.Step(sim.Input{
		Temp:    e.temp,
		Target:  e.cfg.Target,
		Control: e.ctrl.State(),
		Now:     now,
	})
	e.temps.Append(history.Sample{Time: now, Value: e.temp})

	e.thresholds = e.profile.Strategy.Derive(e.cfg, e.ctrl.State().LastSwitch, now)

	var tr *logic.Transition
	if e.automatic() {
		tr = e.ctrl.Evaluate(e.temp, e.thresholds, now)
		if tr != nil {
			e.thresholds = e.profile.Strategy.Derive(e.cfg, now, now)
		}
	}
	e.relays.Append(history.Sample{Time: now, Value: e.ctrl.State().Relay.Value()})
	e.notify(tr)
	return tr
}

func (e *Engine) automatic() bool {
	return !e.profile.Switchable || e.mode == logic.ModeAuto
}

// ToggleRelay asks for the relay to flip. Live sessions send the command and
// wait for telemetry; simulated sessions flip immediately.
func (e *Engine) ToggleRelay(now time.Time) {
	if e.driver == Live {
		e.sender.Send(telemetry.CmdSwitchRelais)
		return
	}
	tr := e.ctrl.Toggle(now)
	e.thresholds = e.profile.Strategy.Derive(e.cfg, now, now)
	e.notify(tr)
}

// SetTarget changes the setpoint. Non-finite or out-of-range values are
// rejected before they reach the controller or the model.
func (e *Engine) SetTarget(v float64) error {
	cmd, err := telemetry.SetTargetTemp(v)
	if err != nil {
		return err
	}
	if e.driver == Live {
		e.sender.Send(cmd)
		return nil
	}
	e.cfg.Target = v
	e.thresholds = logic.Collapsed(v)
	return nil
}

// SetMode switches between manual and automatic control.
func (e *Engine) SetMode(name string) error {
	if !e.profile.Switchable {
		return ErrModeUnsupported
	}
	m, ok := logic.ParseMode(name)
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownMode, name)
	}
	if e.driver == Live {
		e.sender.Send(telemetry.SetMode(string(m)))
		return nil
	}
	e.mode = m
	e.modeLabel = string(m)
	return nil
}

// CheckHeartbeat reports uptime and transition counts every interval.
func (e *Engine) CheckHeartbeat(now time.Time, interval time.Duration) *logic.HeartbeatData {
	return e.ctrl.CheckHeartbeat(now, interval)
}

// Thresholds returns the bounds currently in effect.
func (e *Engine) Thresholds() logic.Thresholds { return e.thresholds }

// Control returns the relay state and switching history.
func (e *Engine) Control() logic.ControlState { return e.ctrl.State() }

// Target returns the current regulation parameters.
func (e *Engine) Target() logic.TargetConfig { return e.cfg }

// Temperature returns the latest temperature, false before the first reading.
func (e *Engine) Temperature() (float64, bool) { return e.temp, e.haveTemp }

// Bands derives the relay-on intervals from the relay history.
func (e *Engine) Bands() []history.Band { return history.RelayBands(e.relays) }
