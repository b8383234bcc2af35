package telemetry

import (
	"time"
)

// Window is an ordered, read-only copy of buffered samples.
type Window []Sample

func (w Window) Latest() (Sample, bool) {
	if len(w) == 0 {
		return Sample{}, false
	}
	return w[len(w)-1], true
}

func (w Window) Values(c Channel) []float64 {
	out := make([]float64, len(w))
	for i, s := range w {
		out[i] = c.Value(s)
	}
	return out
}

// Buffer keeps the samples of the last retention period in timestamp
// order. It has a single owner and no locking.
type Buffer struct {
	retention time.Duration
	samples   []Sample
	head      int
}

func NewBuffer(retention time.Duration) *Buffer {
	return &Buffer{retention: retention}
}

func (b *Buffer) Len() int { return len(b.samples) - b.head }

// Append adds s at the tail. A timestamp older than the tail is raised to
// the tail's so the order invariant survives a misbehaving clock.
func (b *Buffer) Append(s Sample) {
	if n := len(b.samples); n > b.head && s.At.Before(b.samples[n-1].At) {
		s.At = b.samples[n-1].At
	}
	b.samples = append(b.samples, s)
}

// Evict drops every head sample older than now - retention and returns
// how many were dropped.
func (b *Buffer) Evict(now time.Time) int {
	cutoff := now.Add(-b.retention)
	start := b.head
	for b.head < len(b.samples) && b.samples[b.head].At.Before(cutoff) {
		b.samples[b.head] = Sample{}
		b.head++
	}
	dropped := b.head - start

	if b.head == len(b.samples) {
		b.samples = b.samples[:0]
		b.head = 0
	} else if b.head > 1024 && b.head > len(b.samples)/2 {
		n := copy(b.samples, b.samples[b.head:])
		b.samples = b.samples[:n]
		b.head = 0
	}
	return dropped
}

func (b *Buffer) Snapshot() Window {
	w := make(Window, b.Len())
	copy(w, b.samples[b.head:])
	return w
}

func (b *Buffer) Latest() (Sample, bool) {
	if b.Len() == 0 {
		return Sample{}, false
	}
	return b.samples[len(b.samples)-1], true
}
