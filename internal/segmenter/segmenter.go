package segmenter

import (
	"sync"

	"github.com/jordan-clayton/ribble-whisper/internal/metrics"
)

// State is the segmenter's position in the phrase-boundary state
// machine.
type State int

const (
	Idle State = iota
	Speaking
	TrailingSilence
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Speaking:
		return "speaking"
	case TrailingSilence:
		return "trailing_silence"
	default:
		return "unknown"
	}
}

// AudioSegment is an owned, contiguous window of samples emitted at a
// phrase boundary or a forced window split.
type AudioSegment struct {
	Samples    []float32
	SampleRate uint32
	// ForcedSplit is true when the segment was emitted because
	// MaxWindow was reached rather than because trailing silence
	// confirmed a phrase end.
	ForcedSplit bool
}

// Config holds the tunable thresholds of the state machine. All
// *Ms fields are milliseconds.
type Config struct {
	SampleRate   uint32
	EndMs        uint32 // phrase_end_silence_ms, default 700
	MaxWindowMs  uint32 // default 30000
	KeepTailMs   uint32 // default 500
	MinSpeechMs  uint32 // default 200
}

// DefaultConfig returns the defaults named in the configuration table.
func DefaultConfig(sampleRate uint32) Config {
	return Config{
		SampleRate:  sampleRate,
		EndMs:       700,
		MaxWindowMs: 30000,
		KeepTailMs:  500,
		MinSpeechMs: 200,
	}
}

// Segmenter accumulates frames and emits AudioSegments according to
// the table in the phrase-boundary state machine: trailing silence of
// at least EndMs confirms a phrase end, and a buffer reaching
// MaxWindowMs forces a split regardless of state, carrying KeepTailMs
// of context into the next buffer.
type Segmenter struct {
	mu     sync.Mutex
	cfg    Config
	state  State
	buffer []float32

	speechRunMs   uint32
	silenceRunMs  uint32

	maxWindowSamples uint32
	keepTailSamples  uint32
	minSpeechSamples uint32

	metrics *metrics.Metrics
}

// New constructs a Segmenter from cfg.
func New(cfg Config) *Segmenter {
	return &Segmenter{
		cfg:              cfg,
		state:            Idle,
		maxWindowSamples: msToSamples(cfg.MaxWindowMs, cfg.SampleRate),
		keepTailSamples:  msToSamples(cfg.KeepTailMs, cfg.SampleRate),
		minSpeechSamples: msToSamples(cfg.MinSpeechMs, cfg.SampleRate),
	}
}

// SetMetrics attaches a Prometheus Metrics instance the segmenter
// reports discarded-short-segment counts to. Nil leaves it unmetered.
func (s *Segmenter) SetMetrics(m *metrics.Metrics) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.metrics = m
}

func msToSamples(ms, sampleRate uint32) uint32 {
	return uint32(uint64(ms) * uint64(sampleRate) / 1000)
}

// State returns the segmenter's current state.
func (s *Segmenter) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// ProcessFrame advances the state machine by one VAD-classified
// frame. frameMs is the duration of frame in milliseconds (used to
// advance speech_run_ms / silence_run_ms). It returns the emitted
// segment, if any.
func (s *Segmenter) ProcessFrame(frame []float32, isSpeech bool, frameMs uint32) *AudioSegment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var emitted *AudioSegment

	switch s.state {
	case Idle:
		if isSpeech {
			s.buffer = append(s.buffer[:0:0], frame...)
			s.speechRunMs = frameMs
			s.silenceRunMs = 0
			s.state = Speaking
		}
		// Idle + silence: discard frame, stay Idle.

	case Speaking:
		s.buffer = append(s.buffer, frame...)
		if isSpeech {
			s.speechRunMs += frameMs
		} else {
			s.silenceRunMs = frameMs
			s.state = TrailingSilence
		}

	case TrailingSilence:
		s.buffer = append(s.buffer, frame...)
		if isSpeech {
			s.silenceRunMs = 0
			s.state = Speaking
		} else {
			s.silenceRunMs += frameMs
			if s.silenceRunMs >= s.cfg.EndMs {
				emitted = s.finalizeAndReset()
			}
		}
	}

	// Forced split check applies in any state once the buffer is
	// populated, regardless of how we got here this call.
	if emitted == nil && uint32(len(s.buffer)) >= s.maxWindowSamples && s.maxWindowSamples > 0 {
		emitted = s.forceSplit()
	}

	return emitted
}

// finalizeAndReset emits the buffered segment (if it meets
// MinSpeechMs) and returns to Idle with an empty buffer.
func (s *Segmenter) finalizeAndReset() *AudioSegment {
	var seg *AudioSegment
	if s.speechRunMs >= s.cfg.MinSpeechMs && len(s.buffer) > 0 {
		seg = &AudioSegment{
			Samples:    append([]float32(nil), s.buffer...),
			SampleRate: s.cfg.SampleRate,
		}
	} else if len(s.buffer) > 0 && s.metrics != nil {
		s.metrics.SegmentDiscardedShort.Inc()
	}
	s.buffer = nil
	s.speechRunMs = 0
	s.silenceRunMs = 0
	s.state = Idle
	return seg
}

// forceSplit emits the buffered segment and retains the last
// KeepTailMs of it as the new buffer prefix, keeping the current
// state unchanged (the caller may still be mid-phrase).
func (s *Segmenter) forceSplit() *AudioSegment {
	seg := &AudioSegment{
		Samples:     append([]float32(nil), s.buffer...),
		SampleRate:  s.cfg.SampleRate,
		ForcedSplit: true,
	}

	keep := s.keepTailSamples
	if keep > uint32(len(s.buffer)) {
		keep = uint32(len(s.buffer))
	}
	tail := s.buffer[uint32(len(s.buffer))-keep:]
	s.buffer = append([]float32(nil), tail...)
	// speech_run_ms is not reset across a forced split: the caller is
	// still inside the same utterance for the purpose of MinSpeechMs.
	s.silenceRunMs = 0
	return seg
}

// Flush forces whatever is currently buffered to be emitted,
// regardless of MinSpeechMs or EndMs, and returns the segmenter to
// Idle. Used on pipeline shutdown so no partially-spoken phrase is
// silently dropped.
func (s *Segmenter) Flush() *AudioSegment {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.buffer) == 0 {
		return nil
	}
	seg := &AudioSegment{
		Samples:    append([]float32(nil), s.buffer...),
		SampleRate: s.cfg.SampleRate,
	}
	s.buffer = nil
	s.speechRunMs = 0
	s.silenceRunMs = 0
	s.state = Idle
	return seg
}
