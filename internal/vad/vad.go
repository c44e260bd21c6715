package vad

import "fmt"

// Backend names the concrete VAD implementation a Detector wraps.
type Backend string

const (
	BackendEnergy  Backend = "energy"
	BackendClassic Backend = "classic"
	BackendNeural  Backend = "neural"
)

// Detector classifies whether a short audio frame contains speech.
// Implementations must be deterministic for a given input frame and
// are not required to be safe for concurrent use - the transcriber
// worker owns exclusive access to whichever Detector it is given.
type Detector interface {
	// IsSpeech classifies a single frame of mono float32 samples at
	// sampleRate.
	IsSpeech(frame []float32, sampleRate uint32) (bool, error)

	// FrameLengthMillis returns the frame length in milliseconds this
	// detector requires. The transcriber worker reads this to size the
	// frames it classifies and passes it on to the segmenter, rather
	// than trusting a separately configured value to stay in sync with
	// the backend.
	FrameLengthMillis() int

	// Close releases any resources (model handles, cgo instances) held
	// by the detector.
	Close() error
}

// New constructs a Detector for the named backend. frameMs and
// threshold are interpreted per-backend: Energy uses threshold as an
// RMS cutoff and accepts any frameMs; Classic requires frameMs in
// {10, 20, 30}; Neural ignores frameMs, always uses 32ms frames (512
// samples at 16kHz) and uses threshold as its probability cutoff.
func New(backend Backend, frameMs int, threshold float32, modelPath string) (Detector, error) {
	switch backend {
	case BackendEnergy:
		return NewEnergy(frameMs, threshold), nil
	case BackendClassic:
		return NewClassic(frameMs)
	case BackendNeural:
		return NewNeural(modelPath, threshold)
	default:
		return nil, fmt.Errorf("vad: unknown backend %q", backend)
	}
}
