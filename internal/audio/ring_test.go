package audio

import (
	"testing"
)

func TestRingBuilderValidation(t *testing.T) {
	tests := []struct {
		name      string
		capacity  uint32
		rate      uint32
		expectErr bool
	}{
		{"valid", 1000, 16000, false},
		{"zero capacity", 0, 16000, true},
		{"zero rate", 1000, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRingBuilder().WithCapacitySamples(tt.capacity).WithSampleRate(tt.rate).Build()
			if tt.expectErr && err == nil {
				t.Fatal("expected error, got nil")
			}
			if !tt.expectErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestRingIntegrityUnderCapacity(t *testing.T) {
	r, err := NewRing(100, 16000)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	samples := make([]float32, 40)
	for i := range samples {
		samples[i] = float32(i)
	}
	r.PushSlice(samples)

	if got := r.Len(); got != 40 {
		t.Fatalf("Len() = %d, want 40", got)
	}
	if got := r.WriteCursor(); got != 40 {
		t.Fatalf("WriteCursor() = %d, want 40", got)
	}

	got := r.SnapshotTail(40)
	if len(got) != 40 {
		t.Fatalf("SnapshotTail length = %d, want 40", len(got))
	}
	for i, v := range got {
		if v != samples[i] {
			t.Fatalf("sample %d = %v, want %v", i, v, samples[i])
		}
	}
}

func TestRingBound(t *testing.T) {
	r, err := NewRing(50, 16000)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	for i := 0; i < 5; i++ {
		samples := make([]float32, 37)
		r.PushSlice(samples)
		if got := r.Len(); got > 50 {
			t.Fatalf("Len() = %d exceeds capacity 50", got)
		}
	}
}

func TestRingOverflowKeepsLatest(t *testing.T) {
	capacity := 10
	r, err := NewRing(uint32(capacity), 16000)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}

	total := capacity + 4
	samples := make([]float32, total)
	for i := range samples {
		samples[i] = float32(i)
	}
	r.PushSlice(samples)

	if got := r.Len(); got != capacity {
		t.Fatalf("Len() = %d, want %d", got, capacity)
	}

	got := r.SnapshotTail(capacity)
	want := samples[total-capacity:]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRingSnapshotTailTruncatesToOccupied(t *testing.T) {
	r, err := NewRing(100, 16000)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	r.PushSlice([]float32{1, 2, 3})

	got := r.SnapshotTail(50)
	if len(got) != 3 {
		t.Fatalf("SnapshotTail length = %d, want 3", len(got))
	}
}

func TestRingClear(t *testing.T) {
	r, err := NewRing(20, 16000)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	r.PushSlice(make([]float32, 15))
	r.Clear()

	if got := r.Len(); got != 0 {
		t.Fatalf("Len() after Clear() = %d, want 0", got)
	}
	if got := r.SnapshotTail(10); len(got) != 0 {
		t.Fatalf("SnapshotTail after Clear() length = %d, want 0", len(got))
	}
}

func TestRingClearRetainingTailMs(t *testing.T) {
	r, err := NewRing(1000, 1000) // 1 sample == 1ms for easy arithmetic
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	samples := make([]float32, 500)
	for i := range samples {
		samples[i] = float32(i)
	}
	r.PushSlice(samples)

	r.ClearRetainingTailMs(100)
	if got := r.Len(); got != 100 {
		t.Fatalf("Len() after retain = %d, want 100", got)
	}

	got := r.SnapshotTail(100)
	want := samples[400:]
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestRingCrossingWrapBoundary(t *testing.T) {
	r, err := NewRing(10, 16000)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	r.PushSlice([]float32{0, 1, 2, 3, 4, 5, 6}) // head at 7
	r.PushSlice([]float32{7, 8, 9, 10, 11})      // wraps: overwrites 0,1; head at 2

	got := r.SnapshotTail(10)
	want := []float32{2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	if len(got) != len(want) {
		t.Fatalf("SnapshotTail length = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sample %d = %v, want %v", i, got[i], want[i])
		}
	}
}
