package telemetry

import (
	"errors"
	"fmt"
	"math"
)

// Commands understood by the controller firmware. They are plain text, not JSON.
const (
	CmdGetReadings   = "getReadings"
	CmdSwitchRelais  = "switchRelais"
	prefixTargetTemp = "setTargetTemp: "
	prefixMode       = "setMode: "
)

// MaxTargetTemp is the largest setpoint the firmware can parse: it reads
// exactly three digits after the prefix.
const MaxTargetTemp = 999

// ErrInvalidTarget is returned for setpoints the firmware cannot represent.
var ErrInvalidTarget = errors.New("target temperature must be a finite number between 0 and 999")

// ValidTarget reports whether v is acceptable as a setpoint.
func ValidTarget(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	r := math.Round(v)
	return r >= 0 && r <= MaxTargetTemp
}

// SetTargetTemp encodes a setpoint command. The value is rounded to whole
// degrees and zero-padded to three digits.
func SetTargetTemp(v float64) (string, error) {
	if !ValidTarget(v) {
		return "", ErrInvalidTarget
	}
	return fmt.Sprintf("%s%03d", prefixTargetTemp, int(math.Round(v))), nil
}

// SetMode encodes a mode change command.
func SetMode(mode string) string {
	return prefixMode + mode
}
