package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/sweeney/oven-monitor/internal/logic"
)

// Profile is a deployment variant: how bounds are derived and whether the
// operator can switch between manual and automatic control.
type Profile struct {
	Name       string
	Strategy   logic.ThresholdStrategy
	Switchable bool
	Target     logic.TargetConfig
}

var profiles = map[string]Profile{
	// Firmware-style controller: one setpoint, long dwell.
	"single": {
		Name:     "single",
		Strategy: logic.FixedThresholds{},
		Target: logic.TargetConfig{
			Target:   300,
			MinDwell: 60 * time.Second,
		},
	},
	// Bounds widen from the setpoint after each switch.
	"dual": {
		Name:     "dual",
		Strategy: logic.RampedThresholds{},
		Target: logic.TargetConfig{
			Target:     300,
			Overshoot:  20,
			Undershoot: 20,
			RampWindow: 3 * time.Minute,
			MinDwell:   100 * time.Second,
		},
	},
	// As dual, but the controller only acts in auto_switch mode.
	"mode": {
		Name:       "mode",
		Strategy:   logic.RampedThresholds{},
		Switchable: true,
		Target: logic.TargetConfig{
			Target:     300,
			Overshoot:  20,
			Undershoot: 20,
			RampWindow: 3 * time.Minute,
			MinDwell:   100 * time.Second,
		},
	},
}

// LookupProfile returns the named built-in profile.
func LookupProfile(name string) (Profile, error) {
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (have %v)", name, ProfileNames())
	}
	return p, nil
}

// ProfileNames lists the built-in profiles in sorted order.
func ProfileNames() []string {
	names := make([]string, 0, len(profiles))
	for n := range profiles {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
