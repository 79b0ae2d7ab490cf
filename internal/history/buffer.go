// Package history holds the memory-resident sample history of a session:
// bounded sample rings, relay band extraction and CSV export.
package history

import (
	"iter"
	"time"
)

// Sample is a single recorded reading. Immutable once appended.
type Sample struct {
	Time  time.Time
	Value float64
}

// Buffer is a fixed-capacity FIFO of samples for one signal.
// When full, appending overwrites the oldest sample.
// Not safe for concurrent use; callers must synchronize.
type Buffer struct {
	buf      []Sample
	capacity int
	head     int // next write position
	count    int
}

// NewBuffer creates a buffer holding at most capacity samples.
// A capacity below 1 is treated as 1.
func NewBuffer(capacity int) *Buffer {
	if capacity < 1 {
		capacity = 1
	}
	return &Buffer{
		buf:      make([]Sample, capacity),
		capacity: capacity,
	}
}

// CapacityFor returns the number of samples needed to retain the given
// window at the given sampling interval.
func CapacityFor(retention, interval time.Duration) int {
	if interval <= 0 || retention <= 0 {
		return 1
	}
	n := int(retention / interval)
	if n < 1 {
		return 1
	}
	return n
}

// Append records a sample, evicting the oldest one if the buffer is full.
// The timestamp is truncated to the millisecond, the resolution of exported
// history. Out-of-order samples are kept in arrival order.
func (b *Buffer) Append(s Sample) {
	s.Time = s.Time.Truncate(time.Millisecond)
	b.buf[b.head] = s
	b.head = (b.head + 1) % b.capacity
	if b.count < b.capacity {
		b.count++
	}
}

// Latest returns the most recently appended sample.
// The second return value is false when the buffer is empty.
func (b *Buffer) Latest() (Sample, bool) {
	if b.count == 0 {
		return Sample{}, false
	}
	return b.buf[(b.head-1+b.capacity)%b.capacity], true
}

// Len returns the number of retained samples.
func (b *Buffer) Len() int {
	return b.count
}

// All yields (time, value) pairs oldest first. The sequence can be ranged
// over any number of times; each pass reflects the buffer at that moment.
func (b *Buffer) All() iter.Seq2[time.Time, float64] {
	return func(yield func(time.Time, float64) bool) {
		start := b.start()
		for i := 0; i < b.count; i++ {
			s := b.buf[(start+i)%b.capacity]
			if !yield(s.Time, s.Value) {
				return
			}
		}
	}
}

// Samples returns a copy of the retained samples, oldest first.
func (b *Buffer) Samples() []Sample {
	out := make([]Sample, 0, b.count)
	for t, v := range b.All() {
		out = append(out, Sample{Time: t, Value: v})
	}
	return out
}

// oldest item is at (head - count) mod capacity
func (b *Buffer) start() int {
	return (b.head - b.count + b.capacity) % b.capacity
}
