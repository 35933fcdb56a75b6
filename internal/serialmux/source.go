package serialmux

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/banshee-data/motion.report/internal/motion"
)

// SourceStats counts what an AccelSource did with the lines it received.
type SourceStats struct {
	Parsed  uint64 `json:"parsed"`
	Ignored uint64 `json:"ignored"`
	Dropped uint64 `json:"dropped"`
}

// AccelSource adapts a serial mux into a motion.Source. It subscribes on
// construction so no lines are missed before Run starts.
type AccelSource struct {
	mux       SerialMuxInterface
	subID     string
	lines     chan string
	events    *motion.ChannelSource
	closeOnce sync.Once

	parsed  atomic.Uint64
	ignored atomic.Uint64
	dropped atomic.Uint64
}

// NewAccelSource subscribes to mux. capacity bounds the queue of parsed
// events waiting for the engine. A DisabledSerialMux yields an unsupported
// source.
func NewAccelSource(mux SerialMuxInterface, capacity int) *AccelSource {
	_, disabled := mux.(*DisabledSerialMux)
	id, lines := mux.Subscribe()
	return &AccelSource{
		mux:    mux,
		subID:  id,
		lines:  lines,
		events: motion.NewChannelSource(capacity, !disabled),
	}
}

func (s *AccelSource) Supported() bool { return s.events.Supported() }

func (s *AccelSource) Events() <-chan motion.RawEvent { return s.events.Events() }

// Run parses lines into events until ctx is done or the subscription ends.
// When the queue is full the event is dropped rather than blocking the mux.
func (s *AccelSource) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-s.lines:
			if !ok {
				s.events.Close()
				return nil
			}
			ev, ok := ParseAccelLine(line)
			if !ok {
				s.ignored.Add(1)
				continue
			}
			if !s.events.Push(ev) {
				s.dropped.Add(1)
				continue
			}
			s.parsed.Add(1)
		}
	}
}

// Close unsubscribes from the mux and ends the event stream. The mux itself
// stays open.
func (s *AccelSource) Close() error {
	s.closeOnce.Do(func() {
		s.mux.Unsubscribe(s.subID)
		s.events.Close()
	})
	return nil
}

// Stats returns the source counters.
func (s *AccelSource) Stats() SourceStats {
	return SourceStats{
		Parsed:  s.parsed.Load(),
		Ignored: s.ignored.Load(),
		Dropped: s.dropped.Load(),
	}
}
