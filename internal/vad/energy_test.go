package vad

import "testing"

func TestEnergyIsSpeech(t *testing.T) {
	tests := []struct {
		name      string
		frame     []float32
		threshold float32
		want      bool
	}{
		{"silence below threshold", make([]float32, 480), 0.02, false},
		{"empty frame", nil, 0.02, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEnergy(30, tt.threshold)
			got, err := e.IsSpeech(tt.frame, 16000)
			if err != nil {
				t.Fatalf("IsSpeech returned error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsSpeech() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEnergyDetectsLoudFrame(t *testing.T) {
	frame := make([]float32, 480)
	for i := range frame {
		if i%2 == 0 {
			frame[i] = 0.8
		} else {
			frame[i] = -0.8
		}
	}

	e := NewEnergy(30, 0.3)
	got, err := e.IsSpeech(frame, 16000)
	if err != nil {
		t.Fatalf("IsSpeech returned error: %v", err)
	}
	if !got {
		t.Error("IsSpeech() = false, want true for loud frame")
	}
}

func TestEnergyFrameLengthMillis(t *testing.T) {
	e := NewEnergy(30, 0.1)
	if got := e.FrameLengthMillis(); got != 30 {
		t.Errorf("FrameLengthMillis() = %d, want 30", got)
	}

	defaulted := NewEnergy(0, 0.1)
	if got := defaulted.FrameLengthMillis(); got != 30 {
		t.Errorf("FrameLengthMillis() with zero input = %d, want default 30", got)
	}
}

func TestNewRejectsUnknownBackend(t *testing.T) {
	_, err := New(Backend("bogus"), 30, 0.5, "")
	if err == nil {
		t.Fatal("expected error for unknown backend")
	}
}
