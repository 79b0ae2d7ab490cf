// Package sim provides a synthetic oven model used when no controller is
// connected. It only produces temperatures; switching stays with the caller.
package sim

import (
	"math"
	"math/rand/v2"
	"time"

	"github.com/sweeney/oven-monitor/internal/logic"
)

// Config tunes the thermal model.
type Config struct {
	// Resolution is the sensor quantisation step.
	Resolution float64
	// DriftRate is the largest per-step change caused by the relay.
	DriftRate float64
	// DriftWindow is how long it takes for the drift to saturate after a switch.
	DriftWindow time.Duration
	// JitterSpan is the width of the uniform per-step noise.
	JitterSpan float64
}

// DefaultConfig matches a MAX6675 thermocouple sampled every 250ms.
func DefaultConfig() Config {
	return Config{
		Resolution:  0.25,
		DriftRate:   0.3,
		DriftWindow: 5 * time.Minute,
		JitterSpan:  0.5,
	}
}

// Input is the state the model needs for one step.
type Input struct {
	Temp    float64
	Target  float64
	Control logic.ControlState
	Now     time.Time
}

// Noise returns uniformly distributed values in [0, 1).
type Noise func() float64

// Simulator evolves the oven temperature one step at a time.
type Simulator struct {
	cfg     Config
	uniform Noise
}

// New creates a simulator. A nil noise source uses a time-seeded PCG.
func New(cfg Config, noise Noise) *Simulator {
	if noise == nil {
		seed := uint64(time.Now().UnixNano())
		noise = rand.New(rand.NewPCG(seed, seed>>1)).Float64
	}
	return &Simulator{cfg: cfg, uniform: noise}
}

// Fixed returns a noise source that always yields v.
func Fixed(v float64) Noise {
	return func() float64 { return v }
}

// Step returns the next quantised temperature.
func (s *Simulator) Step(in Input) float64 {
	temp := in.Temp + s.uniform()*s.cfg.JitterSpan - s.bias(in.Temp, in.Target)

	drift := s.cfg.DriftRate * s.ShootFactor(in.Control, in.Now)
	if in.Control.Relay == logic.StateOn {
		temp += drift
	} else {
		temp -= drift
	}
	return Quantize(temp, s.cfg.Resolution)
}

// bias pulls the random walk down harder the closer the oven is to target.
func (s *Simulator) bias(temp, target float64) float64 {
	switch {
	case temp < target/2:
		return s.cfg.JitterSpan / 4
	case temp < target/1.5:
		return s.cfg.JitterSpan * 0.3
	default:
		return s.cfg.JitterSpan / 2
	}
}

// ShootFactor grows from the last switch towards 1 over the drift window.
// Half of the previous state's duration is subtracted first, so right after
// a long heating phase the factor is negative and the oven keeps moving in
// the old direction for a while.
func (s *Simulator) ShootFactor(cs logic.ControlState, now time.Time) float64 {
	if s.cfg.DriftWindow <= 0 {
		return 1
	}
	elapsed := now.Sub(cs.LastSwitch) - cs.LastSwitchDuration/2
	return math.Min(float64(elapsed)/float64(s.cfg.DriftWindow), 1)
}

// Quantize rounds v to the nearest multiple of step.
func Quantize(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}
