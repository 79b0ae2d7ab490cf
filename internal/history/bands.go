package history

import "time"

// OpenBandPadding extends a band whose relay is still on past the last
// sample, so an in-progress band renders with non-zero width.
const OpenBandPadding = time.Second

// Band is a contiguous interval during which the relay was on.
type Band struct {
	From time.Time
	To   time.Time
}

// RelayBands scans a relay buffer once, oldest first, and returns one band
// per on-period. Any non-zero value counts as on.
func RelayBands(relay *Buffer) []Band {
	var bands []Band
	active := false
	var last time.Time

	for t, v := range relay.All() {
		last = t
		on := v != 0
		switch {
		case on && !active:
			bands = append(bands, Band{From: t})
			active = true
		case !on && active:
			bands[len(bands)-1].To = t
			active = false
		}
	}

	if active {
		bands[len(bands)-1].To = last.Add(OpenBandPadding)
	}
	return bands
}
