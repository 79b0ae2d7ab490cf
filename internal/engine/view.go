package engine

import (
	"maps"
	"time"

	"github.com/sweeney/oven-monitor/internal/history"
	"github.com/sweeney/oven-monitor/internal/logic"
)

// View is a point-in-time copy of a session for rendering.
// It is safe to hand to other goroutines.
type View struct {
	SessionID   string
	Profile     string
	Driver      Driver
	Switchable  bool
	StartTime   time.Time
	Temperature float64
	HasTemp     bool
	Target      logic.TargetConfig
	Thresholds  logic.Thresholds
	// DeviceBounds is true when Thresholds were reported by the controller.
	DeviceBounds bool
	Control      logic.ControlState
	Mode         string
	Counts       logic.TransitionCounts
	Extras       map[string]float64

	Temperatures []history.Sample
	Relays       []history.Sample
	Bands        []history.Band
}

// View copies the session state, including full histories and derived bands.
func (e *Engine) View() View {
	return View{
		SessionID:    e.id,
		Profile:      e.profile.Name,
		Driver:       e.driver,
		Switchable:   e.profile.Switchable,
		StartTime:    e.start,
		Temperature:  e.temp,
		HasTemp:      e.haveTemp,
		Target:       e.cfg,
		Thresholds:   e.thresholds,
		DeviceBounds: e.deviceBounds,
		Control:      e.ctrl.State(),
		Mode:         e.modeLabel,
		Counts:       e.ctrl.Counts(),
		Extras:       maps.Clone(e.extras),
		Temperatures: e.temps.Samples(),
		Relays:       e.relays.Samples(),
		Bands:        e.Bands(),
	}
}
