package model

import (
	"context"
	"fmt"
	"log/slog"
)

// TokenID identifies a conditioning token fed back into the model as
// a prompt. The token vocabulary is model-specific; the core treats
// TokenID as an opaque value it only ever appends, trims, and
// forwards.
type TokenID uint32

// DecodedSegment is the output of a single SpeechModel.Transcribe
// call. TStartSamples and TEndSamples are relative to the input
// audio window, not absolute stream position.
type DecodedSegment struct {
	Text          string
	TStartSamples uint64
	TEndSamples   uint64
	Confidence    float32
}

// SpeechModel is the black-box ASR boundary. Implementations are
// blocking and are not assumed thread-safe: the transcriber worker
// owns exclusive access to a given instance.
type SpeechModel interface {
	Transcribe(ctx context.Context, samples []float32, promptTokens []TokenID) (DecodedSegment, error)
}

// Stub is a deterministic SpeechModel that never invokes a real
// model. It is useful for exercising the rest of the pipeline
// (segmenter, reconciler, output channels) without a model file.
type Stub struct {
	log   *slog.Logger
	calls uint64
}

// NewStub returns a Stub SpeechModel. A nil logger defaults to
// slog.Default().
func NewStub(logger *slog.Logger) *Stub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Stub{log: logger.With("component", "model.stub")}
}

// Transcribe returns a deterministic placeholder segment naming its
// call number and how many samples it received.
func (s *Stub) Transcribe(ctx context.Context, samples []float32, promptTokens []TokenID) (DecodedSegment, error) {
	if len(samples) == 0 {
		return DecodedSegment{}, fmt.Errorf("model: stub received an empty sample window")
	}
	s.calls++
	s.log.Debug("stub transcribe", "call", s.calls, "samples", len(samples), "prompt_tokens", len(promptTokens))

	text := fmt.Sprintf("[stub segment %d: %d samples]", s.calls, len(samples))
	return DecodedSegment{
		Text:          text,
		TStartSamples: 0,
		TEndSamples:   uint64(len(samples)),
		Confidence:    1.0,
	}, nil
}
