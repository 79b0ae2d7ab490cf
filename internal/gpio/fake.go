package gpio

// FakeIndicator records writes for test assertions.
type FakeIndicator struct {
	// Writes holds every value passed to Set, in order.
	Writes []bool

	// SetError, if set, is returned by Set and nothing is recorded.
	SetError error

	Closed bool
}

// NewFakeIndicator creates a FakeIndicator.
func NewFakeIndicator() *FakeIndicator {
	return &FakeIndicator{}
}

// Set records the value.
func (f *FakeIndicator) Set(on bool) error {
	if f.SetError != nil {
		return f.SetError
	}
	f.Writes = append(f.Writes, on)
	return nil
}

// On reports the last written value, false if nothing was written.
func (f *FakeIndicator) On() bool {
	return len(f.Writes) > 0 && f.Writes[len(f.Writes)-1]
}

// Close marks the indicator as closed.
func (f *FakeIndicator) Close() error {
	f.Closed = true
	return nil
}
