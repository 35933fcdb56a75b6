package motion

import (
	"errors"
	"fmt"
	"math"
)

// HistorySize is the number of classifications kept for smoothing.
const HistorySize = 7

// smoothingDecay is the per-tick weight decay applied to older entries.
const smoothingDecay = 0.6

// History is a capped FIFO of recent classifications, oldest first.
type History struct {
	entries []Classification
	cap     int
}

// NewHistory creates a History holding at most capacity entries.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{entries: make([]Classification, 0, capacity), cap: capacity}
}

// Push appends a copy of c, evicting the oldest entry when full.
func (h *History) Push(c Classification) {
	if len(h.entries) == h.cap {
		copy(h.entries, h.entries[1:])
		h.entries = h.entries[:h.cap-1]
	}
	h.entries = append(h.entries, c.clone())
}

// Len returns the number of entries.
func (h *History) Len() int { return len(h.entries) }

// Entries returns copies of the entries, oldest first.
func (h *History) Entries() []Classification {
	out := make([]Classification, len(h.entries))
	for i, c := range h.entries {
		out[i] = c.clone()
	}
	return out
}

// SmoothFunc combines previous classifications (oldest first) with the
// latest one.
type SmoothFunc func(previous []Classification, latest Classification) (Classification, error)

// TemporalSmoother stabilises classifications across ticks.
type TemporalSmoother struct {
	history *History
	smooth  SmoothFunc
}

// NewTemporalSmoother creates a smoother with a 7-entry history. A nil fn
// selects RecencyWeightedVote.
func NewTemporalSmoother(fn SmoothFunc) *TemporalSmoother {
	if fn == nil {
		fn = RecencyWeightedVote
	}
	return &TemporalSmoother{history: NewHistory(HistorySize), smooth: fn}
}

// History exposes the smoother's history.
func (s *TemporalSmoother) History() *History { return s.history }

// Apply records latest and returns the smoothed classification. The first
// call returns latest unchanged. If smoothing fails, latest is returned
// together with the failure.
func (s *TemporalSmoother) Apply(latest Classification) (Classification, error) {
	s.history.Push(latest)
	if s.history.Len() <= 1 {
		return latest, nil
	}
	previous := s.history.Entries()
	previous = previous[:len(previous)-1]

	result, err := s.safeSmooth(previous, latest.clone())
	if err != nil {
		return latest, err
	}
	if !result.valid() {
		return latest, fmt.Errorf("smoothing produced invalid classification %q/%f", result.Type, result.Confidence)
	}
	return result, nil
}

func (s *TemporalSmoother) safeSmooth(previous []Classification, latest Classification) (result Classification, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("smoothing panic: %v", r)
		}
	}()
	return s.smooth(previous, latest)
}

var errEmptyVote = errors.New("no weighted votes")

// RecencyWeightedVote weights each entry by confidence times
// smoothingDecay^age (the latest entry has age 0). The type with the most
// weight wins; its confidence is its weight share times the weighted mean
// confidence of its entries. Details are averaged over the winning entries.
func RecencyWeightedVote(previous []Classification, latest Classification) (Classification, error) {
	all := make([]Classification, 0, len(previous)+1)
	all = append(all, previous...)
	all = append(all, latest)

	weights := make(map[MovementType]float64, 4)
	ageWeight := make([]float64, len(all))
	var total float64
	for i, c := range all {
		age := len(all) - 1 - i
		ageWeight[i] = math.Pow(smoothingDecay, float64(age))
		w := ageWeight[i] * c.Confidence
		weights[c.Type] += w
		total += w
	}
	if total <= 0 {
		return Classification{}, errEmptyVote
	}

	winner := latest.Type
	for _, t := range []MovementType{TypeStationary, TypeWalking, TypeVehicle, TypeUnknown} {
		if weights[t] > weights[winner] {
			winner = t
		}
	}

	var ageSum float64
	var d Details
	var freqs []float64
	for i, c := range all {
		if c.Type != winner {
			continue
		}
		a := ageWeight[i]
		ageSum += a
		d.VehicleConfidence += a * c.Details.VehicleConfidence
		d.WalkingConfidence += a * c.Details.WalkingConfidence
		d.StationaryConfidence += a * c.Details.StationaryConfidence
		if len(c.Details.DominantFrequencies) > 0 {
			freqs = c.Details.DominantFrequencies
		}
	}
	d.VehicleConfidence /= ageSum
	d.WalkingConfidence /= ageSum
	d.StationaryConfidence /= ageSum
	if freqs != nil {
		d.DominantFrequencies = append([]float64(nil), freqs...)
	}

	meanConf := weights[winner] / ageSum
	share := weights[winner] / total
	return Classification{
		Type:       winner,
		Confidence: clamp(share*meanConf, 0, 1),
		Details:    d,
	}, nil
}
