package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details. Histories are not included.
type StatusInner struct {
	Event         string             `json:"event,omitempty"`
	Reason        string             `json:"reason,omitempty"`
	Session       string             `json:"session"`
	Profile       string             `json:"profile"`
	Driver        string             `json:"driver"`
	Relay         string             `json:"relay"`
	Mode          string             `json:"mode,omitempty"`
	Temperature   *float64           `json:"temperature"`
	Target        float64            `json:"target"`
	Upper         float64            `json:"upper_bound"`
	Lower         float64            `json:"lower_bound"`
	DeviceBounds  bool               `json:"device_bounds"`
	LastSwitch    string             `json:"last_switch"`
	LastSwitchMs  int64              `json:"last_switch_duration_ms"`
	Samples       int                `json:"samples"`
	UptimeSeconds int64              `json:"uptime_seconds"`
	StartTime     string             `json:"start_time"`
	Timestamp     string             `json:"timestamp"`
	Device        DeviceStatus       `json:"device"`
	MQTT          MQTTStatus         `json:"mqtt"`
	Counts        CountsJSON         `json:"relay_counts"`
	Extras        map[string]float64 `json:"extras,omitempty"`
	Config        ConfigJSON         `json:"config"`
}

// DeviceStatus reports the controller link.
type DeviceStatus struct {
	Connected bool   `json:"connected"`
	URL       string `json:"url,omitempty"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of relay transition counts.
type CountsJSON struct {
	On  int `json:"on"`
	Off int `json:"off"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	IntervalMs   int64  `json:"interval_ms"`
	RetentionMin int64  `json:"retention_min"`
	HeartbeatMs  int64  `json:"heartbeat_ms"`
	Broker       string `json:"broker"`
	HTTPAddr     string `json:"http_addr"`
	IndicatorPin int    `json:"indicator_pin,omitempty"`
}

func buildInner(snap Snapshot) StatusInner {
	v := snap.View
	relay := string(v.Control.Relay)
	if relay == "" {
		relay = "UNKNOWN"
	}
	profile := v.Profile
	if profile == "" {
		profile = snap.Config.Profile
	}
	driver := string(v.Driver)
	if driver == "" {
		driver = snap.Config.Driver
	}

	inner := StatusInner{
		Session:       v.SessionID,
		Profile:       profile,
		Driver:        driver,
		Relay:         relay,
		Mode:          v.Mode,
		Target:        v.Target.Target,
		Upper:         v.Thresholds.Upper,
		Lower:         v.Thresholds.Lower,
		DeviceBounds:  v.DeviceBounds,
		LastSwitchMs:  v.Control.LastSwitchDuration.Milliseconds(),
		Samples:       len(v.Temperatures),
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		Device:        DeviceStatus{Connected: snap.DeviceConnected, URL: snap.Config.DeviceURL},
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts:        CountsJSON{On: v.Counts.On, Off: v.Counts.Off},
		Extras:        v.Extras,
		Config: ConfigJSON{
			IntervalMs:   snap.Config.IntervalMs,
			RetentionMin: snap.Config.RetentionMin,
			HeartbeatMs:  snap.Config.HeartbeatMs,
			Broker:       snap.Config.Broker,
			HTTPAddr:     snap.Config.HTTPAddr,
			IndicatorPin: snap.Config.IndicatorPin,
		},
	}
	if v.HasTemp {
		temp := v.Temperature
		inner.Temperature = &temp
	}
	if !v.Control.LastSwitch.IsZero() {
		inner.LastSwitch = v.Control.LastSwitch.UTC().Format(time.RFC3339)
	}
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
