// Package status provides a thread-safe status tracker for the oven monitor.
// The run loop writes it; HTTP handlers and system events read it.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/oven-monitor/internal/engine"
)

// Config contains daemon configuration for display.
type Config struct {
	Profile      string
	Driver       string
	DeviceURL    string
	IntervalMs   int64
	RetentionMin int64
	HeartbeatMs  int64
	Broker       string
	HTTPAddr     string
	IndicatorPin int
}

// Snapshot is a point-in-time view of daemon state. The slices in View are
// shared between snapshots and must not be modified.
type Snapshot struct {
	View            engine.View
	StartTime       time.Time
	Now             time.Time
	DeviceConnected bool
	MQTTConnected   bool
	Config          Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// Update replaces the session view. Called from the run loop after every
// tick or message.
func (t *Tracker) Update(v engine.View) {
	t.mu.Lock()
	t.snap.View = v
	t.mu.Unlock()
}

// SetDeviceConnected sets the controller link status.
func (t *Tracker) SetDeviceConnected(connected bool) {
	t.mu.Lock()
	t.snap.DeviceConnected = connected
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	s.Now = time.Now()
	return s
}
