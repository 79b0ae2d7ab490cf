package logic

import "time"

// ThresholdStrategy derives switching bounds for a profile.
type ThresholdStrategy interface {
	Derive(cfg TargetConfig, lastSwitch, now time.Time) Thresholds
}

// RampFactor returns progress through the ramp window since lastSwitch,
// clamped to [0, 1]. A non-positive window is complete immediately.
func RampFactor(lastSwitch, now time.Time, window time.Duration) float64 {
	if window <= 0 {
		return 1
	}
	f := float64(now.Sub(lastSwitch)) / float64(window)
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}

// BoundsAt returns the bounds for a given ramp factor.
func BoundsAt(cfg TargetConfig, f float64) Thresholds {
	return Thresholds{
		Upper: cfg.Target - cfg.Overshoot*f,
		Lower: cfg.Target + cfg.Undershoot*f,
	}
}

// RampedThresholds starts at the target right after a switch and widens
// linearly to the full overshoot/undershoot over the ramp window.
type RampedThresholds struct{}

// Derive implements ThresholdStrategy.
func (RampedThresholds) Derive(cfg TargetConfig, lastSwitch, now time.Time) Thresholds {
	return BoundsAt(cfg, RampFactor(lastSwitch, now, cfg.RampWindow))
}

// FixedThresholds keeps the bounds fully widened at all times. With zero
// overshoot and undershoot this is a single-setpoint controller.
type FixedThresholds struct{}

// Derive implements ThresholdStrategy.
func (FixedThresholds) Derive(cfg TargetConfig, _, _ time.Time) Thresholds {
	return BoundsAt(cfg, 1)
}
