//go:build !linux

package gpio

import "errors"

// RealIndicator is not available on non-Linux platforms.
type RealIndicator struct{}

// NewRealIndicator returns an error on non-Linux platforms.
func NewRealIndicator(pin int) (*RealIndicator, error) {
	return nil, errors.New("gpio: not supported on this platform (requires Linux)")
}

// Set is not implemented on non-Linux platforms.
func (r *RealIndicator) Set(on bool) error {
	return errors.New("gpio: not supported")
}

// Close is a no-op on non-Linux platforms.
func (r *RealIndicator) Close() error {
	return nil
}
