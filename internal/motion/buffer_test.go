package motion

import (
	"testing"
	"time"
)

func TestNewSampleBuffer_Capacity(t *testing.T) {
	tests := []struct {
		name       string
		maxSize    int
		sampleSize int
		want       int
	}{
		{"defaults", 60, 30, 60},
		{"sample size bound", 60, 10, 20},
		{"max size bound", 40, 30, 40},
		{"degenerate", 0, 0, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewSampleBuffer(tt.maxSize, tt.sampleSize).Cap(); got != tt.want {
				t.Errorf("Cap() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSampleBuffer_RateLimit(t *testing.T) {
	b := NewSampleBuffer(60, 30)
	t0 := time.Unix(1000, 0)

	if !b.Push(NewSample(0, 0, 1, t0)) {
		t.Fatal("first sample rejected")
	}
	if b.Push(NewSample(0, 0, 1, t0.Add(10*time.Millisecond))) {
		t.Error("sample 10ms after the last accepted one was accepted")
	}
	if b.Push(NewSample(0, 0, 1, t0.Add(24*time.Millisecond))) {
		t.Error("sample 24ms after the last accepted one was accepted")
	}
	if !b.Push(NewSample(0, 0, 1, t0.Add(25*time.Millisecond))) {
		t.Error("sample exactly at the minimum spacing was rejected")
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2", b.Len())
	}
	if b.Dropped() != 2 {
		t.Errorf("Dropped() = %d, want 2", b.Dropped())
	}
}

func TestSampleBuffer_EvictsOldest(t *testing.T) {
	b := NewSampleBuffer(4, 30)
	t0 := time.Unix(1000, 0)
	for i := 0; i < 7; i++ {
		b.Push(NewSample(float64(i), 0, 0, t0.Add(time.Duration(i)*50*time.Millisecond)))
	}
	if b.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", b.Len())
	}
	got := b.Samples()
	for i, want := range []float64{3, 4, 5, 6} {
		if got[i].X != want {
			t.Errorf("Samples()[%d].X = %v, want %v", i, got[i].X, want)
		}
	}
}

func TestSampleBuffer_NeverExceedsBound(t *testing.T) {
	b := NewSampleBuffer(60, 30)
	t0 := time.Unix(1000, 0)
	for i := 0; i < 500; i++ {
		b.Push(NewSample(1, 1, 1, t0.Add(time.Duration(i)*30*time.Millisecond)))
		if b.Len() > 60 {
			t.Fatalf("buffer grew to %d after %d pushes", b.Len(), i+1)
		}
	}
}

func TestSampleBuffer_Reset(t *testing.T) {
	b := NewSampleBuffer(60, 30)
	t0 := time.Unix(1000, 0)
	b.Push(NewSample(1, 0, 0, t0))
	b.Push(NewSample(1, 0, 0, t0))
	b.Reset()

	if b.Len() != 0 || b.Dropped() != 0 {
		t.Errorf("after Reset Len=%d Dropped=%d, want 0/0", b.Len(), b.Dropped())
	}
	if !b.Push(NewSample(1, 0, 0, t0)) {
		t.Error("Reset did not clear the cadence state")
	}
}
