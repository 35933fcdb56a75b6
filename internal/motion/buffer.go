package motion

import "time"

// MinSampleSpacing is the minimum spacing between accepted samples
// (a ~40Hz ingestion ceiling).
const MinSampleSpacing = 25 * time.Millisecond

// SampleBuffer is a fixed-capacity FIFO of recent samples with cadence
// limiting. It is not safe for concurrent use; the engine owns it.
type SampleBuffer struct {
	data         []Sample
	pos          int
	full         bool
	cap          int
	lastAccepted time.Time
	hasAccepted  bool
	dropped      uint64
}

// NewSampleBuffer creates a buffer bounded by min(maxSize, 2*sampleSize).
func NewSampleBuffer(maxSize, sampleSize int) *SampleBuffer {
	c := maxSize
	if limit := 2 * sampleSize; limit > 0 && limit < c {
		c = limit
	}
	if c < 1 {
		c = 1
	}
	return &SampleBuffer{
		data: make([]Sample, c),
		cap:  c,
	}
}

// Push appends s unless it arrives within MinSampleSpacing of the last
// accepted sample. The oldest sample is evicted once the buffer is full.
// Returns whether the sample was accepted.
func (b *SampleBuffer) Push(s Sample) bool {
	if b.hasAccepted && s.Timestamp.Sub(b.lastAccepted) < MinSampleSpacing {
		b.dropped++
		return false
	}
	b.lastAccepted = s.Timestamp
	b.hasAccepted = true

	b.data[b.pos] = s
	b.pos++
	if b.pos >= b.cap {
		b.pos = 0
		b.full = true
	}
	return true
}

// Len returns the number of buffered samples.
func (b *SampleBuffer) Len() int {
	if b.full {
		return b.cap
	}
	return b.pos
}

// Cap returns the buffer capacity.
func (b *SampleBuffer) Cap() int { return b.cap }

// Dropped returns the number of samples rejected by the cadence limit.
func (b *SampleBuffer) Dropped() uint64 { return b.dropped }

// Samples returns the buffer contents in insertion order.
func (b *SampleBuffer) Samples() []Sample {
	n := b.Len()
	out := make([]Sample, n)
	if b.full {
		copy(out, b.data[b.pos:])
		copy(out[b.cap-b.pos:], b.data[:b.pos])
	} else {
		copy(out, b.data[:b.pos])
	}
	return out
}

// Reset empties the buffer and clears the cadence state.
func (b *SampleBuffer) Reset() {
	b.pos = 0
	b.full = false
	b.hasAccepted = false
	b.lastAccepted = time.Time{}
	b.dropped = 0
}
