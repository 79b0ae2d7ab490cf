// Package gpio drives a GPIO output that mirrors the oven relay, for an
// indicator LED or a slave relay. The real implementation uses the Linux
// GPIO character device.
package gpio

// Indicator is a single digital output.
type Indicator interface {
	// Set drives the line high for on, low for off.
	Set(on bool) error

	// Close releases the line, leaving it low.
	Close() error
}

// DefaultPin is the default indicator line (BCM numbering).
const DefaultPin = 17

// Mirror wraps an Indicator and only writes when the state changes.
type Mirror struct {
	out   Indicator
	known bool
	on    bool
}

// NewMirror returns a Mirror writing to out.
func NewMirror(out Indicator) *Mirror {
	return &Mirror{out: out}
}

// Apply drives the output to on if it differs from the last written state.
func (m *Mirror) Apply(on bool) error {
	if m.known && m.on == on {
		return nil
	}
	if err := m.out.Set(on); err != nil {
		return err
	}
	m.known = true
	m.on = on
	return nil
}
