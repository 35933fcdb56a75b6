package motion

import (
	"errors"
	"time"

	"github.com/banshee-data/motion.report/internal/synth"
)

func samplesFrom(trace []synth.Accel) []Sample {
	out := make([]Sample, len(trace))
	for i, a := range trace {
		out[i] = NewSample(a.X, a.Y, a.Z, a.T)
	}
	return out
}

func eventsFrom(trace []synth.Accel) []RawEvent {
	out := make([]RawEvent, len(trace))
	for i, a := range trace {
		out[i] = NewRawEvent(a.X, a.Y, a.Z, a.Millis())
	}
	return out
}

func stationarySamples(n int) []Sample {
	return samplesFrom(synth.StationaryTrace(synth.TraceStart, n, 50*time.Millisecond, 1))
}

func walkingSamples() []Sample {
	return samplesFrom(synth.WalkingTrace(synth.TraceStart, 40, 50*time.Millisecond))
}

func vehicleSamples() []Sample {
	return samplesFrom(synth.VehicleTrace(synth.TraceStart, 60, 100*time.Millisecond))
}

func constantSamples(n int, x, y, z float64) []Sample {
	out := make([]Sample, n)
	for i := range out {
		out[i] = NewSample(x, y, z, synth.TraceStart.Add(time.Duration(i)*50*time.Millisecond))
	}
	return out
}

var errScripted = errors.New("scripted failure")

// scriptedClassifier replays results in order, repeating the last one.
type scriptedClassifier struct {
	tier    Tier
	results []Classification
	err     error
	panics  bool
	calls   int
}

func (s *scriptedClassifier) Tier() Tier { return s.tier }

func (s *scriptedClassifier) Classify([]Sample) (Classification, error) {
	s.calls++
	if s.panics {
		panic("scripted panic")
	}
	if s.err != nil {
		return Classification{}, s.err
	}
	r := s.results[0]
	if len(s.results) > 1 {
		s.results = s.results[1:]
	}
	return r, nil
}
