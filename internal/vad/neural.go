package vad

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// neuralFrameMs is fixed by the Silero-style model architecture: 512
// samples at 16kHz.
const (
	neuralFrameMs     = 32
	neuralFrameSamples = 512
	neuralSampleRate   = 16000
)

var ortEnvOnce sync.Once
var ortEnvErr error

func ensureEnvironment() error {
	ortEnvOnce.Do(func() {
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// Neural runs a Silero-style speech-probability model through ONNX
// Runtime. It requires frames of exactly 512 samples (32ms) at 16kHz
// and classifies speech by comparing the model's output probability
// against threshold.
type Neural struct {
	mu        sync.Mutex
	session   *ort.AdvancedSession
	input     *ort.Tensor[float32]
	output    *ort.Tensor[float32]
	threshold float32
}

// NewNeural loads the ONNX model at modelPath and returns a Neural
// detector comparing speech probability against threshold.
func NewNeural(modelPath string, threshold float32) (*Neural, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("vad: neural backend requires a model path")
	}
	if err := ensureEnvironment(); err != nil {
		return nil, fmt.Errorf("vad: failed to initialize onnx runtime: %w", err)
	}

	inputShape := ort.NewShape(1, neuralFrameSamples)
	input, err := ort.NewEmptyTensor[float32](inputShape)
	if err != nil {
		return nil, fmt.Errorf("vad: failed to allocate input tensor: %w", err)
	}

	outputShape := ort.NewShape(1, 1)
	output, err := ort.NewEmptyTensor[float32](outputShape)
	if err != nil {
		input.Destroy()
		return nil, fmt.Errorf("vad: failed to allocate output tensor: %w", err)
	}

	session, err := ort.NewAdvancedSession(
		modelPath,
		[]string{"input"},
		[]string{"output"},
		[]ort.ArbitraryTensor{input},
		[]ort.ArbitraryTensor{output},
		nil,
	)
	if err != nil {
		input.Destroy()
		output.Destroy()
		return nil, fmt.Errorf("vad: failed to create onnx session: %w", err)
	}

	return &Neural{
		session:   session,
		input:     input,
		output:    output,
		threshold: threshold,
	}, nil
}

// IsSpeech runs inference over frame, which must contain exactly
// FrameLengthMillis() worth of samples at 16kHz, and reports whether
// the model's speech probability exceeds the configured threshold.
func (n *Neural) IsSpeech(frame []float32, sampleRate uint32) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.session == nil {
		return false, fmt.Errorf("vad: neural detector is closed")
	}
	if sampleRate != neuralSampleRate {
		return false, fmt.Errorf("vad: neural backend requires %dHz input, got %dHz", neuralSampleRate, sampleRate)
	}
	if len(frame) != neuralFrameSamples {
		return false, fmt.Errorf("vad: neural backend requires exactly %d samples, got %d", neuralFrameSamples, len(frame))
	}

	copy(n.input.GetData(), frame)
	if err := n.session.Run(); err != nil {
		return false, fmt.Errorf("vad: onnx inference failed: %w", err)
	}

	prob := n.output.GetData()[0]
	return prob > n.threshold, nil
}

// FrameLengthMillis returns the model's fixed frame length, 32ms.
func (n *Neural) FrameLengthMillis() int {
	return neuralFrameMs
}

// SetThreshold updates the speech-probability cutoff without
// reloading the model.
func (n *Neural) SetThreshold(threshold float32) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.threshold = threshold
}

// Close releases the ONNX session and its tensors.
func (n *Neural) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.session != nil {
		n.session.Destroy()
		n.session = nil
	}
	if n.input != nil {
		n.input.Destroy()
		n.input = nil
	}
	if n.output != nil {
		n.output.Destroy()
		n.output = nil
	}
	return nil
}
