package motion

import "sync"

// DefaultSourceCapacity is the default bound on queued raw events.
const DefaultSourceCapacity = 256

// Source is the host's motion-event stream.
type Source interface {
	// Supported reports whether motion sensing is available. It is
	// queried once when the engine starts.
	Supported() bool
	// Events returns the stream of raw events. The channel is closed
	// when the source ends.
	Events() <-chan RawEvent
	// Close unregisters the source. It is safe to call more than once.
	Close() error
}

// ChannelSource is a bounded in-process Source. The producer calls Push;
// the engine drains Events.
type ChannelSource struct {
	supported bool
	ch        chan RawEvent

	mu      sync.Mutex
	closed  bool
	dropped uint64
}

// NewChannelSource creates a source whose queue holds capacity events.
func NewChannelSource(capacity int, supported bool) *ChannelSource {
	if capacity <= 0 {
		capacity = DefaultSourceCapacity
	}
	return &ChannelSource{supported: supported, ch: make(chan RawEvent, capacity)}
}

func (s *ChannelSource) Supported() bool { return s.supported }

func (s *ChannelSource) Events() <-chan RawEvent { return s.ch }

// Push enqueues ev without blocking. It returns false when the queue is
// full or the source is closed.
func (s *ChannelSource) Push(ev RawEvent) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- ev:
		return true
	default:
		s.dropped++
		return false
	}
}

// Dropped returns the number of events rejected because the queue was full.
func (s *ChannelSource) Dropped() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Closed reports whether Close has been called.
func (s *ChannelSource) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *ChannelSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.ch)
	return nil
}
