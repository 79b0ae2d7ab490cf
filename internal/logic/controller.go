package logic

import "time"

// Controller is a two-state bang-bang controller with a minimum dwell time.
type Controller struct {
	minDwell      time.Duration
	state         ControlState
	startTime     time.Time
	counts        TransitionCounts
	lastHeartbeat time.Time
}

// NewController creates a controller in the given initial state.
// The startTime counts as the last switch, so the first transition is
// only possible once minDwell has elapsed since start.
func NewController(initial State, minDwell time.Duration, startTime time.Time) *Controller {
	if initial != StateOn {
		initial = StateOff
	}
	if minDwell < 0 {
		minDwell = 0
	}
	return &Controller{
		minDwell:      minDwell,
		startTime:     startTime,
		lastHeartbeat: startTime,
		state: ControlState{
			Relay:      initial,
			LastSwitch: startTime,
		},
	}
}

// Evaluate compares the temperature to the thresholds and switches the
// relay if a bound is crossed and the dwell time has passed.
// ON->OFF is checked first, then OFF->ON against the updated state; the
// second check cannot fire after the first because the dwell restarts.
func (c *Controller) Evaluate(temp float64, th Thresholds, now time.Time) *Transition {
	var tr *Transition
	if c.dwellElapsed(now) && c.state.Relay == StateOn && temp > th.Upper {
		tr = c.switchTo(StateOff, now, false)
	}
	if c.dwellElapsed(now) && c.state.Relay == StateOff && temp < th.Lower {
		tr = c.switchTo(StateOn, now, false)
	}
	return tr
}

// Force records a switch that happened outside the controller, such as
// relay telemetry from the device or a manual toggle. Returns nil if the
// relay is already in the requested state.
func (c *Controller) Force(to State, now time.Time) *Transition {
	if to == c.state.Relay {
		return nil
	}
	return c.switchTo(to, now, true)
}

// Toggle flips the relay regardless of dwell time.
func (c *Controller) Toggle(now time.Time) *Transition {
	if c.state.Relay == StateOn {
		return c.switchTo(StateOff, now, true)
	}
	return c.switchTo(StateOn, now, true)
}

func (c *Controller) dwellElapsed(now time.Time) bool {
	return now.Sub(c.state.LastSwitch) > c.minDwell
}

func (c *Controller) switchTo(to State, now time.Time, forced bool) *Transition {
	tr := &Transition{
		Timestamp:        now,
		From:             c.state.Relay,
		To:               to,
		PreviousDuration: now.Sub(c.state.LastSwitch),
		Forced:           forced,
	}
	c.state.Relay = to
	c.state.LastSwitchDuration = tr.PreviousDuration
	c.state.LastSwitch = now

	if to == StateOn {
		c.counts.On++
	} else {
		c.counts.Off++
	}
	return tr
}

// State returns the current control state.
func (c *Controller) State() ControlState {
	return c.state
}

// MinDwell returns the configured dwell time.
func (c *Controller) MinDwell() time.Duration {
	return c.minDwell
}

// Counts returns the number of transitions since startup.
func (c *Controller) Counts() TransitionCounts {
	return c.counts
}

// CheckHeartbeat returns heartbeat data if the interval has elapsed since
// the last heartbeat (or startup). Returns nil if the interval has not
// elapsed, or if interval is <= 0 (disabled).
func (c *Controller) CheckHeartbeat(now time.Time, interval time.Duration) *HeartbeatData {
	if interval <= 0 {
		return nil
	}
	if now.Sub(c.lastHeartbeat) < interval {
		return nil
	}
	c.lastHeartbeat = now
	return &HeartbeatData{
		Timestamp: now,
		Uptime:    now.Sub(c.startTime),
		Counts:    c.counts,
	}
}

// TransitionCounts tracks the number of switches since startup.
type TransitionCounts struct {
	On  int
	Off int
}

// HeartbeatData contains information for a heartbeat event.
type HeartbeatData struct {
	Timestamp time.Time
	Uptime    time.Duration
	Counts    TransitionCounts
}
