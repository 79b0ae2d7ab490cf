// Package telemetry decodes readings pushed by the oven controller and
// encodes the text commands sent back to it.
package telemetry

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Keys recognised in a readings object.
const (
	KeyTemperature       = "temperature"
	KeyRelais            = "relais"
	KeyRelay             = "relay"
	KeyTargetTemp        = "target_temp"
	KeyDerivedOvershoot  = "derived_overshoot"
	KeyDerivedUndershoot = "derived_undershoot"
	KeyMode              = "mode"
)

// Update is one decoded reading. The concrete types below are the only
// implementations.
type Update interface {
	Key() string
}

// Temperature is a thermocouple reading.
type Temperature struct{ Value float64 }

// Relay is the relay output state.
type Relay struct{ On bool }

// TargetTemp is the controller's current setpoint.
type TargetTemp struct{ Value float64 }

// DerivedOvershoot is the controller's switch-off bound.
type DerivedOvershoot struct{ Value float64 }

// DerivedUndershoot is the controller's switch-on bound.
type DerivedUndershoot struct{ Value float64 }

// Mode is the controller's operating mode label.
type Mode struct{ Name string }

// Unknown is any other key. Numeric is set when the value is a finite number.
type Unknown struct {
	Name    string
	Raw     json.RawMessage
	Value   float64
	Numeric bool
}

func (Temperature) Key() string       { return KeyTemperature }
func (Relay) Key() string             { return KeyRelais }
func (TargetTemp) Key() string        { return KeyTargetTemp }
func (DerivedOvershoot) Key() string  { return KeyDerivedOvershoot }
func (DerivedUndershoot) Key() string { return KeyDerivedUndershoot }
func (Mode) Key() string              { return KeyMode }
func (u Unknown) Key() string         { return u.Name }

// ErrNotObject is returned when a message is not a JSON object.
var ErrNotObject = errors.New("telemetry: message is not a JSON object")

// Decode parses one readings message. Updates are returned in the order the
// keys appear in the message. Any malformed value fails the whole message.
func Decode(data []byte) ([]Update, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("telemetry: decode: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, ErrNotObject
	}

	var updates []Update
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("telemetry: decode key: %w", err)
		}
		key, _ := tok.(string)

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("telemetry: decode %q: %w", key, err)
		}

		u, err := decodeValue(key, raw)
		if err != nil {
			return nil, err
		}
		updates = append(updates, u)
	}

	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("telemetry: decode: %w", err)
	}
	if dec.More() {
		return nil, errors.New("telemetry: trailing data after object")
	}
	return updates, nil
}

func decodeValue(key string, raw json.RawMessage) (Update, error) {
	switch key {
	case KeyTemperature:
		v, err := number(key, raw)
		return Temperature{Value: v}, err
	case KeyRelais, KeyRelay:
		on, err := relayValue(raw)
		if err != nil {
			return nil, fmt.Errorf("telemetry: %s: %w", key, err)
		}
		return Relay{On: on}, nil
	case KeyTargetTemp:
		v, err := number(key, raw)
		return TargetTemp{Value: v}, err
	case KeyDerivedOvershoot:
		v, err := number(key, raw)
		return DerivedOvershoot{Value: v}, err
	case KeyDerivedUndershoot:
		v, err := number(key, raw)
		return DerivedUndershoot{Value: v}, err
	case KeyMode:
		var s string
		if isNull(raw) {
			return nil, errors.New("telemetry: mode: null")
		}
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, fmt.Errorf("telemetry: mode: %w", err)
		}
		return Mode{Name: s}, nil
	}

	u := Unknown{Name: key, Raw: raw}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if v, err := n.Float64(); err == nil && isFinite(v) {
			u.Value = v
			u.Numeric = true
		}
	}
	return u, nil
}

func number(key string, raw json.RawMessage) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return 0, fmt.Errorf("telemetry: %s: expected number: %w", key, err)
	}
	v, err := n.Float64()
	if err != nil || !isFinite(v) {
		return 0, fmt.Errorf("telemetry: %s: invalid number %s", key, n)
	}
	return v, nil
}

// relayValue accepts 0/1 as sent by the firmware, and booleans.
func relayValue(raw json.RawMessage) (bool, error) {
	if isNull(raw) {
		return false, errors.New("expected 0, 1 or boolean, got null")
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return false, fmt.Errorf("expected 0, 1 or boolean, got %s", raw)
	}
	v, err := n.Float64()
	if err != nil || !isFinite(v) {
		return false, fmt.Errorf("invalid number %s", n)
	}
	return v != 0, nil
}

// isNull reports a JSON null, which Unmarshal accepts silently for scalars.
func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
