package motion

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHistory_CapsAtSeven(t *testing.T) {
	h := NewHistory(HistorySize)
	for i := 0; i < 10; i++ {
		h.Push(Classification{Type: TypeWalking, Confidence: float64(i) / 10})
	}
	entries := h.Entries()
	require.Len(t, entries, HistorySize)
	assert.InDelta(t, 0.3, entries[0].Confidence, 1e-9)
	assert.InDelta(t, 0.9, entries[HistorySize-1].Confidence, 1e-9)
}

func TestHistory_StoresCopies(t *testing.T) {
	h := NewHistory(3)
	c := Classification{Type: TypeWalking, Confidence: 0.7, Details: Details{DominantFrequencies: []float64{2}}}
	h.Push(c)
	c.Details.DominantFrequencies[0] = 99

	if diff := cmp.Diff([]float64{2}, h.Entries()[0].Details.DominantFrequencies); diff != "" {
		t.Errorf("history entry aliased caller data (-want +got):\n%s", diff)
	}
}

func TestTemporalSmoother_FirstPassesThrough(t *testing.T) {
	s := NewTemporalSmoother(nil)
	in := classificationFor(TypeVehicle, 0.62)
	got, err := s.Apply(in)
	require.NoError(t, err)
	if diff := cmp.Diff(in, got); diff != "" {
		t.Errorf("first Apply changed the result (-want +got):\n%s", diff)
	}
}

func TestTemporalSmoother_SteadyInputKeepsConfidence(t *testing.T) {
	s := NewTemporalSmoother(nil)
	var got Classification
	for i := 0; i < 5; i++ {
		var err error
		got, err = s.Apply(classificationFor(TypeWalking, 0.7))
		require.NoError(t, err)
	}
	assert.Equal(t, TypeWalking, got.Type)
	assert.InDelta(t, 0.7, got.Confidence, 1e-9)
	assert.InDelta(t, 0.7, got.Details.WalkingConfidence, 1e-9)
}

func TestRecencyWeightedVote_Hysteresis(t *testing.T) {
	s := NewTemporalSmoother(nil)
	for i := 0; i < 6; i++ {
		_, err := s.Apply(classificationFor(TypeWalking, 0.7))
		require.NoError(t, err)
	}

	want := []struct {
		typ  MovementType
		conf float64
	}{
		{TypeWalking, 0.412},
		{TypeVehicle, 0.461},
		{TypeVehicle, 0.565},
	}
	for i, w := range want {
		got, err := s.Apply(classificationFor(TypeVehicle, 0.7))
		require.NoError(t, err)
		assert.Equal(t, w.typ, got.Type, "vehicle tick %d", i+1)
		assert.InDelta(t, w.conf, got.Confidence, 0.001, "vehicle tick %d", i+1)
	}
}

func TestTemporalSmoother_FailureReturnsLatest(t *testing.T) {
	tests := []struct {
		name string
		fn   SmoothFunc
	}{
		{"error", func([]Classification, Classification) (Classification, error) {
			return Classification{}, errScripted
		}},
		{"panic", func([]Classification, Classification) (Classification, error) {
			panic("boom")
		}},
		{"invalid", func([]Classification, Classification) (Classification, error) {
			return Classification{Type: "sideways", Confidence: 0.9}, nil
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewTemporalSmoother(tt.fn)
			_, err := s.Apply(classificationFor(TypeStationary, 0.8))
			require.NoError(t, err)

			latest := classificationFor(TypeWalking, 0.6)
			got, err := s.Apply(latest)
			assert.Error(t, err)
			assert.Equal(t, latest, got)
			assert.Equal(t, 2, s.History().Len())
		})
	}
}

func TestRecencyWeightedVote_ZeroConfidence(t *testing.T) {
	_, err := RecencyWeightedVote(
		[]Classification{{Type: TypeWalking}},
		Classification{Type: TypeVehicle},
	)
	assert.ErrorIs(t, err, errEmptyVote)
}
