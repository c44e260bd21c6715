package vad

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/baabaaox/go-webrtcvad"
)

// classicMode is the WebRTC VAD aggressiveness mode. 0 is least
// aggressive about classifying audio as speech, 3 is most aggressive.
// Mode 2 matches the balance the rest of the retrieval pack settles on.
const classicMode = 2

// Classic wraps the WebRTC-style GMM voice detector. It requires a
// fixed frame length of 10, 20 or 30ms and a sample rate the
// underlying library supports (8000, 16000, 32000 or 48000 Hz).
type Classic struct {
	mu      sync.Mutex
	inst    webrtcvad.VadInst
	frameMs int
}

// NewClassic creates a Classic detector for the given frame length.
func NewClassic(frameMs int) (*Classic, error) {
	switch frameMs {
	case 10, 20, 30:
	default:
		return nil, fmt.Errorf("vad: classic backend requires frame length of 10, 20 or 30ms, got %d", frameMs)
	}

	inst := webrtcvad.Create()
	if inst == nil {
		return nil, fmt.Errorf("vad: failed to create webrtc vad instance")
	}
	if err := webrtcvad.Init(inst); err != nil {
		webrtcvad.Free(inst)
		return nil, fmt.Errorf("vad: failed to init webrtc vad: %w", err)
	}
	if err := webrtcvad.SetMode(inst, classicMode); err != nil {
		webrtcvad.Free(inst)
		return nil, fmt.Errorf("vad: failed to set webrtc vad mode: %w", err)
	}

	return &Classic{inst: inst, frameMs: frameMs}, nil
}

// IsSpeech classifies one frame. sampleRate must be one of the rates
// the WebRTC VAD library supports; frame must be exactly
// FrameLengthMillis() long at sampleRate.
func (c *Classic) IsSpeech(frame []float32, sampleRate uint32) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.inst == nil {
		return false, fmt.Errorf("vad: classic detector is closed")
	}
	if len(frame) == 0 {
		return false, nil
	}

	pcm := floatToPCM16(frame)
	isSpeech, err := webrtcvad.Process(c.inst, int(sampleRate), pcm, len(frame))
	if err != nil {
		return false, fmt.Errorf("vad: webrtc vad process: %w", err)
	}
	return isSpeech, nil
}

// FrameLengthMillis returns the frame length this detector was
// constructed with.
func (c *Classic) FrameLengthMillis() int {
	return c.frameMs
}

// Close frees the underlying cgo VAD instance.
func (c *Classic) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.inst != nil {
		webrtcvad.Free(c.inst)
		c.inst = nil
	}
	return nil
}

func floatToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1.0 {
			s = 1.0
		} else if s < -1.0 {
			s = -1.0
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s*32767)))
	}
	return out
}
