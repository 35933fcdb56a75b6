package motion

import (
	"testing"
)

func TestMedianFilter_RemovesSpike(t *testing.T) {
	in := constantSamples(10, 0, 0, 0.2)
	in[5] = NewSample(0, 0, 9.0, in[5].Timestamp)

	out, stats := MedianFilter{}.Filter(in)
	if len(out) != len(in) {
		t.Fatalf("len(out) = %d, want %d", len(out), len(in))
	}
	if stats.Degraded != 0 {
		t.Errorf("Degraded = %d, want 0", stats.Degraded)
	}
	if out[5].Z != 0.2 {
		t.Errorf("spike survived: Z = %v, want 0.2", out[5].Z)
	}
	if out[5].Magnitude != in[0].Magnitude {
		t.Errorf("magnitude not recomputed: %v", out[5].Magnitude)
	}
	if !out[5].Timestamp.Equal(in[5].Timestamp) {
		t.Error("timestamp changed")
	}
	if in[5].Z != 9.0 {
		t.Error("input slice was modified")
	}
}

func TestMedianFilter_ShortInputUnchanged(t *testing.T) {
	in := constantSamples(4, 1, 2, 3)
	in[2] = NewSample(10, 10, 10, in[2].Timestamp)
	out, _ := MedianFilter{}.Filter(in)
	for i := range in {
		if out[i] != in[i] {
			t.Errorf("sample %d changed for a short input", i)
		}
	}
}

func TestMedianFilter_EmptyInput(t *testing.T) {
	out, stats := MedianFilter{}.Filter(nil)
	if len(out) != 0 || stats.Degraded != 0 {
		t.Errorf("Filter(nil) = %d samples, %d degraded", len(out), stats.Degraded)
	}
}

func TestMedian(t *testing.T) {
	tests := []struct {
		in   []float64
		want float64
	}{
		{[]float64{3}, 3},
		{[]float64{5, 1, 3}, 3},
		{[]float64{4, 1, 3, 2}, 2.5},
	}
	for _, tt := range tests {
		if got := median(tt.in); got != tt.want {
			t.Errorf("median(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
