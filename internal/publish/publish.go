// Package publish forwards published movement states to external consumers.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/banshee-data/motion.report/internal/monitoring"
	"github.com/banshee-data/motion.report/internal/motion"
)

// DefaultTimeout bounds a single Publish call on one sink.
const DefaultTimeout = 2 * time.Second

// Sink receives every state published by the engine.
type Sink interface {
	Name() string
	Publish(ctx context.Context, st motion.MovementState) error
}

// Message is the wire form shared by the Redis and MQTT sinks.
type Message struct {
	DeviceID string `json:"device_id"`
	motion.MovementState
}

// Encode renders st as a Message payload.
func Encode(deviceID string, st motion.MovementState) ([]byte, error) {
	return json.Marshal(Message{DeviceID: deviceID, MovementState: st})
}

// SinkStats counts deliveries to one sink.
type SinkStats struct {
	Published uint64 `json:"published"`
	Failed    uint64 `json:"failed"`
	LastError string `json:"last_error,omitempty"`
}

// Fanout delivers each state to every sink in turn. A failing sink is
// logged and counted; it does not stop delivery to the others.
type Fanout struct {
	sinks   []Sink
	timeout time.Duration

	mu    sync.Mutex
	stats map[string]*SinkStats
}

func NewFanout(sinks ...Sink) *Fanout {
	stats := make(map[string]*SinkStats, len(sinks))
	for _, s := range sinks {
		stats[s.Name()] = &SinkStats{}
	}
	return &Fanout{sinks: sinks, timeout: DefaultTimeout, stats: stats}
}

// Consume forwards states from an engine subscription until ctx is done or
// states is closed. Subscribe before starting the engine so its initial
// state is not missed.
func (f *Fanout) Consume(ctx context.Context, states <-chan motion.MovementState) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st, ok := <-states:
			if !ok {
				return nil
			}
			f.Deliver(ctx, st)
		}
	}
}

// Deliver sends st to every sink and returns the joined sink errors.
func (f *Fanout) Deliver(ctx context.Context, st motion.MovementState) error {
	var errs []error
	for _, s := range f.sinks {
		sctx, cancel := context.WithTimeout(ctx, f.timeout)
		err := s.Publish(sctx, st)
		cancel()
		f.record(s.Name(), err)
		if err != nil {
			monitoring.Logf("publish: %s sink failed: %v", s.Name(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) record(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.stats[name]
	if err != nil {
		s.Failed++
		s.LastError = err.Error()
		return
	}
	s.Published++
}

// Stats returns a copy of the per-sink counters keyed by sink name.
func (f *Fanout) Stats() map[string]SinkStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]SinkStats, len(f.stats))
	for name, s := range f.stats {
		out[name] = *s
	}
	return out
}
