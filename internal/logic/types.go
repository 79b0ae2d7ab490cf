// Package logic contains pure control logic for a single heating relay.
// This package has NO external dependencies (no network, GPIO, OS, or time.Sleep).
// Time is always injectable via time.Time parameters.
package logic

import "time"

// State represents the logical state of the heating relay.
type State string

const (
	StateOn  State = "ON"
	StateOff State = "OFF"
)

// Mode is the operating mode of a mode-switchable profile.
type Mode string

const (
	// ModeOff leaves the relay to the operator.
	ModeOff Mode = "off"
	// ModeAuto lets the controller switch the relay.
	ModeAuto Mode = "auto_switch"
)

// ParseMode validates a mode name.
func ParseMode(s string) (Mode, bool) {
	switch Mode(s) {
	case ModeOff, ModeAuto:
		return Mode(s), true
	}
	return "", false
}

// Value returns the sample value recorded for a state: 1 for ON, 0 for OFF.
func (s State) Value() float64 {
	if s == StateOn {
		return 1
	}
	return 0
}

// TargetConfig holds the regulation parameters of a session.
// Only Target is operator-mutable; the rest come from the deployment profile.
type TargetConfig struct {
	Target     float64
	Overshoot  float64       // widest tolerated excursion of the switch-off bound
	Undershoot float64       // widest tolerated excursion of the switch-on bound
	RampWindow time.Duration // time for the bounds to widen fully after a switch
	MinDwell   time.Duration // minimum time in a state before switching again
}

// ControlState is the relay state and its switching history.
type ControlState struct {
	Relay              State
	LastSwitch         time.Time
	LastSwitchDuration time.Duration // how long the previous state lasted
}

// Thresholds are the bounds the controller compares the temperature to.
type Thresholds struct {
	Upper float64 // switch off when the temperature rises above this
	Lower float64 // switch on when the temperature falls below this
}

// Collapsed returns thresholds with both bounds at the target.
func Collapsed(target float64) Thresholds {
	return Thresholds{Upper: target, Lower: target}
}

// Transition describes a relay switch.
type Transition struct {
	Timestamp time.Time
	From      State
	To        State
	// PreviousDuration is how long the relay stayed in From.
	PreviousDuration time.Duration
	// Forced is true when the switch came from telemetry or the operator
	// rather than from a threshold crossing.
	Forced bool
}
