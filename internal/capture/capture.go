package capture

import (
	"fmt"
	"io"
	"sync"
)

// Source is the boundary between a capture device or file and the
// pipeline's producer loop. Read fills buf with up to len(buf)
// samples and returns how many were written; io.EOF signals a
// source that has run out of audio (a WAV file, for example) rather
// than a live device that simply has nothing new yet.
type Source interface {
	SampleRate() uint32
	Channels() uint16
	Read(buf []float32) (int, error)
}

// WAVFile is a Source backed by a decoded mono 16-bit WAV file. It
// is used by tests and the demo command in place of a live
// microphone.
type WAVFile struct {
	mu         sync.Mutex
	samples    []float32
	sampleRate uint32
	pos        int
	info       *WAVInfo
}

// NewWAVFile decodes raw WAV bytes into a Source. The header is
// validated and inspected up front so a malformed fixture fails fast
// with a clear error instead of surfacing as a confusing decode
// failure, and so Duration/Info are available without a second pass
// over data.
func NewWAVFile(data []byte) (*WAVFile, error) {
	info, err := readWAVFixtureInfo(data)
	if err != nil {
		return nil, fmt.Errorf("capture: invalid wav fixture: %w", err)
	}
	pcm, sampleRate, err := decodeWAVSamples(data)
	if err != nil {
		return nil, fmt.Errorf("capture: decode wav fixture: %w", err)
	}
	samples := make([]float32, len(pcm))
	for i, s := range pcm {
		samples[i] = float32(s) / 32768.0
	}
	return &WAVFile{samples: samples, sampleRate: uint32(sampleRate), info: info}, nil
}

func (w *WAVFile) SampleRate() uint32 { return w.sampleRate }

func (w *WAVFile) Channels() uint16 { return 1 }

// Duration returns the source's total length as read from the WAV
// header at load time.
func (w *WAVFile) Duration() float64 {
	return w.info.Duration
}

// Info returns the WAV header metadata captured at load time.
func (w *WAVFile) Info() *WAVInfo {
	return w.info
}

// Read copies the next chunk of decoded samples into buf. Once the
// file is exhausted it returns io.EOF with n equal to however many
// samples remained.
func (w *WAVFile) Read(buf []float32) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.pos >= len(w.samples) {
		return 0, io.EOF
	}
	n := copy(buf, w.samples[w.pos:])
	w.pos += n
	if w.pos >= len(w.samples) {
		return n, io.EOF
	}
	return n, nil
}

// Reset rewinds the file to the beginning, used by tests that need
// to replay the same fixture.
func (w *WAVFile) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pos = 0
}

// CaptureError wraps a Source.Read failure with a flag distinguishing
// a transient condition worth retrying (a live device hiccup, a
// network blip on a future streaming Source) from a fatal one that
// should stop the pipeline outright. WAVFile never returns one of
// these: a decoded file has nothing left to retry.
type CaptureError struct {
	Err       error
	Transient bool
}

func (e *CaptureError) Error() string {
	return "capture: " + e.Err.Error()
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}
