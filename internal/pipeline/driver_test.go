package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/jordan-clayton/ribble-whisper/internal/audio"
	"github.com/jordan-clayton/ribble-whisper/internal/capture"
	"github.com/jordan-clayton/ribble-whisper/internal/config"
	"github.com/jordan-clayton/ribble-whisper/internal/control"
	"github.com/jordan-clayton/ribble-whisper/internal/model"
)

// flakySource fails with a transient CaptureError failUntil times
// before it starts reading successfully, standing in for a live
// device that occasionally hiccups.
type flakySource struct {
	failUntil int
	reads     int
}

func (s *flakySource) SampleRate() uint32 { return 16000 }
func (s *flakySource) Channels() uint16   { return 1 }
func (s *flakySource) Read(buf []float32) (int, error) {
	s.reads++
	if s.reads <= s.failUntil {
		return 0, &capture.CaptureError{Err: errors.New("device busy"), Transient: true}
	}
	for i := range buf {
		buf[i] = 0.1
	}
	return len(buf), nil
}

// brokenSource always fails with a fatal, non-transient error.
type brokenSource struct{}

func (brokenSource) SampleRate() uint32 { return 16000 }
func (brokenSource) Channels() uint16   { return 1 }
func (brokenSource) Read(buf []float32) (int, error) {
	return 0, errors.New("device unplugged")
}

func wavFixture(t *testing.T, seconds float64, sampleRate int) *capture.WAVFile {
	t.Helper()
	n := int(seconds * float64(sampleRate))
	pcm := make([]int16, n)
	for i := range pcm {
		if i%2 == 0 {
			pcm[i] = 3000
		} else {
			pcm[i] = -3000
		}
	}
	data, err := capture.EncodeWAVFixture(pcm, sampleRate)
	if err != nil {
		t.Fatalf("EncodeWAVFixture: %v", err)
	}
	src, err := capture.NewWAVFile(data)
	if err != nil {
		t.Fatalf("NewWAVFile: %v", err)
	}
	return src
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Capture.Backend = "wav"
	cfg.Capture.Path = "fixture.wav"
	cfg.VAD.Backend = "energy"
	cfg.VAD.FrameMs = 30
	cfg.VAD.Threshold = 0.01
	cfg.Segmenter.MinSpeechMs = 0
	cfg.Pipeline.TranscribePollMs = 5
	cfg.Pipeline.StopJoinTimeoutMs = 500
	return cfg
}

func TestDriverStartProducesConfirmedOutput(t *testing.T) {
	src := wavFixture(t, 2.0, 16000)
	cfg := testConfig()

	handle, err := NewBuilder().
		WithConfig(cfg).
		WithSource(src).
		WithSpeechModel(model.NewStub(nil)).
		Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	confirmedCh, unsubscribe := handle.Confirmed()
	defer unsubscribe()

	stopErrCh := make(chan error, 1)
	go func() {
		time.Sleep(100 * time.Millisecond)
		stopErrCh <- handle.Stop()
	}()

	var got string
	for delta := range confirmedCh {
		got += delta
	}

	if err := <-stopErrCh; err != nil {
		t.Fatalf("Stop: %v", err)
	}

	if got == "" {
		t.Fatal("expected some confirmed output from a sustained loud fixture flushed at shutdown")
	}
}

func TestDriverStartRejectsMissingCollaborators(t *testing.T) {
	cfg := testConfig()

	_, err := NewBuilder().WithConfig(cfg).WithSpeechModel(model.NewStub(nil)).Start(context.Background())
	if err == nil {
		t.Fatal("expected error for missing source")
	}

	_, err = NewBuilder().WithConfig(cfg).WithSource(wavFixture(t, 0.1, 16000)).Start(context.Background())
	if err == nil {
		t.Fatal("expected error for missing speech model")
	}
}

func TestDriverStartTwiceOnSameBuilderFails(t *testing.T) {
	cfg := testConfig()
	b := NewBuilder().
		WithConfig(cfg).
		WithSource(wavFixture(t, 0.5, 16000)).
		WithSpeechModel(model.NewStub(nil))

	handle, err := b.Start(context.Background())
	if err != nil {
		t.Fatalf("first Start: %v", err)
	}
	defer handle.Stop()

	if _, err := b.Start(context.Background()); err != ErrAlreadyStarted {
		t.Fatalf("second Start: got %v, want ErrAlreadyStarted", err)
	}
}

func TestRunProducerRetriesTransientErrorsThenSucceeds(t *testing.T) {
	src := &flakySource{failUntil: 2}
	ring, err := audio.NewRing(16000*5, 16000)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	flags := control.New()
	flags.SetRunning(true)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	runErr := runProducer(ctx, src, ring, flags, slog.Default(), nil)
	if runErr != nil {
		t.Fatalf("runProducer: %v", runErr)
	}
	if ring.Len() == 0 {
		t.Fatal("expected the producer to have pushed samples after recovering from transient errors")
	}
	if !flags.Running() {
		t.Fatal("a transient error that eventually recovers must not stop the pipeline")
	}
}

func TestRunProducerStopsFatallyOnNonTransientError(t *testing.T) {
	ring, err := audio.NewRing(16000*5, 16000)
	if err != nil {
		t.Fatalf("NewRing: %v", err)
	}
	flags := control.New()
	flags.SetRunning(true)

	runErr := runProducer(context.Background(), brokenSource{}, ring, flags, slog.Default(), nil)
	if runErr != ErrCaptureFatal {
		t.Fatalf("runProducer: got %v, want ErrCaptureFatal", runErr)
	}
	if flags.Running() {
		t.Fatal("expected Running to be false after a fatal capture error")
	}
}

func TestDriverStopSurfacesConfirmedBackpressure(t *testing.T) {
	src := wavFixture(t, 3.0, 16000)
	cfg := testConfig()
	// Force many small segments in quick succession and give the
	// confirmed_text subscriber almost no time to accept one, so an
	// unread subscriber overflows the backpressure timeout.
	cfg.Segmenter.EndMs = 20
	cfg.Segmenter.MaxWindowMs = 100
	cfg.Segmenter.KeepTailMs = 10
	cfg.Pipeline.ConfirmedSendTimeoutMs = 5

	handle, err := NewBuilder().
		WithConfig(cfg).
		WithSource(src).
		WithSpeechModel(model.NewStub(nil)).
		Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	// Subscribe but never drain: this is the unread subscriber that
	// eventually trips ErrOutputBackpressure.
	_, unsubscribe := handle.Confirmed()
	defer unsubscribe()

	// Give the worker time to hit the backpressure timeout on its own,
	// which sets Running(false) and ends both goroutines before Stop
	// is ever called.
	time.Sleep(300 * time.Millisecond)
	if handle.flags.Running() {
		t.Fatal("expected Running to be false after confirmed_text backpressure")
	}

	if stopErr := handle.Stop(); stopErr != ErrOutputBackpressure {
		t.Fatalf("Stop() = %v, want ErrOutputBackpressure", stopErr)
	}
}

func TestDriverPauseResumeThenStopsCleanly(t *testing.T) {
	src := wavFixture(t, 1.0, 16000)
	cfg := testConfig()

	handle, err := NewBuilder().
		WithConfig(cfg).
		WithSource(src).
		WithSpeechModel(model.NewStub(nil)).
		Start(context.Background())
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	handle.Pause()
	time.Sleep(50 * time.Millisecond)
	handle.Resume()

	if err := handle.Stop(); err != nil {
		t.Fatalf("Stop: %v", err)
	}
}
