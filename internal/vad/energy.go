package vad

import "math"

// Energy is an RMS-threshold voice-activity detector. It accepts any
// frame length and has no external dependency, making it both the
// cheapest backend and the fallback target the transcriber worker
// switches to when the Classic or Neural backend errors continuously
// past its configured fallback window.
type Energy struct {
	frameMs   int
	threshold float32
}

// NewEnergy returns an Energy detector with the given frame length
// (informational only - Energy does not enforce a specific length)
// and RMS threshold.
func NewEnergy(frameMs int, threshold float32) *Energy {
	if frameMs <= 0 {
		frameMs = 30
	}
	return &Energy{frameMs: frameMs, threshold: threshold}
}

// IsSpeech reports whether frame's RMS amplitude exceeds the
// configured threshold.
func (e *Energy) IsSpeech(frame []float32, sampleRate uint32) (bool, error) {
	if len(frame) == 0 {
		return false, nil
	}
	var sumSq float64
	for _, s := range frame {
		sumSq += float64(s) * float64(s)
	}
	rms := math.Sqrt(sumSq / float64(len(frame)))
	return float32(rms) > e.threshold, nil
}

// FrameLengthMillis returns the frame length Energy was constructed
// with. Unlike Classic and Neural, this is advisory: Energy will
// happily classify frames of any length.
func (e *Energy) FrameLengthMillis() int {
	return e.frameMs
}

// Close is a no-op; Energy holds no resources.
func (e *Energy) Close() error {
	return nil
}
