package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jordan-clayton/ribble-whisper/internal/audio"
	"github.com/jordan-clayton/ribble-whisper/internal/capture"
	"github.com/jordan-clayton/ribble-whisper/internal/config"
	"github.com/jordan-clayton/ribble-whisper/internal/control"
	"github.com/jordan-clayton/ribble-whisper/internal/metrics"
	"github.com/jordan-clayton/ribble-whisper/internal/model"
	"github.com/jordan-clayton/ribble-whisper/internal/reconciler"
	"github.com/jordan-clayton/ribble-whisper/internal/segmenter"
	"github.com/jordan-clayton/ribble-whisper/internal/transcriber"
	"github.com/jordan-clayton/ribble-whisper/internal/vad"
)

const (
	producerReadChunkSamples = 1600
	// maxProducerRetries bounds how many consecutive transient capture
	// errors runProducer will retry before giving up and treating the
	// source as fatally broken.
	maxProducerRetries = 5
	// producerBackoffBase and producerBackoffCap mirror the transcription
	// client's retry/backoff shape: exponential, capped.
	producerBackoffBase = 100 * time.Millisecond
	producerBackoffCap  = 5 * time.Second
)

// Handle represents one running transcription session. It is
// returned by Start and is the caller's only way to observe and
// control the session after that point.
type Handle struct {
	outputs *Outputs
	flags   *control.Flags

	cancel          context.CancelFunc
	group           *errgroup.Group
	stopJoinTimeout time.Duration

	doneCh chan error
}

// Working returns the lossy, drop-oldest broadcast of the tentative
// transcript.
func (h *Handle) Working() (<-chan string, func()) {
	return h.outputs.SubscribeWorking()
}

// Confirmed returns the lossless, backpressure-surfacing broadcast of
// committed transcript deltas.
func (h *Handle) Confirmed() (<-chan string, func()) {
	return h.outputs.SubscribeConfirmed()
}

// Status returns the supplemental lifecycle-event broadcast.
func (h *Handle) Status() (<-chan StatusEvent, func()) {
	return h.outputs.SubscribeStatus()
}

// Pause gates the transcriber's model invocation without stopping
// the producer: audio keeps flowing into the ring while paused.
func (h *Handle) Pause() {
	h.flags.SetPaused(true)
}

// Resume clears a prior Pause.
func (h *Handle) Resume() {
	h.flags.SetPaused(false)
}

// Stop signals cancellation and waits up to the configured
// stop_join_timeout_ms for both workers to exit cleanly. If they do
// not, it returns a ShutdownTimeoutError rather than blocking
// forever. If either worker had already stopped itself on a fatal
// condition (ErrOutputBackpressure, ErrCaptureFatal), flags.Running
// was already set false and that error is returned here instead.
func (h *Handle) Stop() error {
	h.flags.SetRunning(false)
	h.cancel()

	select {
	case err := <-h.doneCh:
		h.outputs.CloseAll()
		return err
	case <-time.After(h.stopJoinTimeout):
		h.outputs.CloseAll()
		return &ShutdownTimeoutError{Detached: []string{"producer", "transcriber"}}
	}
}

// Builder assembles a Handle from its required collaborators,
// validating everything only once Start is called.
type Builder struct {
	cfg     config.Config
	source  capture.Source
	spModel model.SpeechModel
	logger  *slog.Logger
	metrics *metrics.Metrics
	started bool
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// WithConfig sets the full pipeline configuration.
func (b *Builder) WithConfig(cfg config.Config) *Builder {
	b.cfg = cfg
	return b
}

// WithSource sets the capture source the producer reads from.
func (b *Builder) WithSource(source capture.Source) *Builder {
	b.source = source
	return b
}

// WithSpeechModel sets the ASR collaborator the transcriber calls.
func (b *Builder) WithSpeechModel(m model.SpeechModel) *Builder {
	b.spModel = m
	return b
}

// WithLogger sets the base logger; a nil logger defaults to
// slog.Default().
func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetrics attaches a Prometheus Metrics instance. Nil is allowed:
// the driver runs unmetered if none is supplied.
func (b *Builder) WithMetrics(m *metrics.Metrics) *Builder {
	b.metrics = m
	return b
}

// Start validates the accumulated configuration and collaborators,
// constructs the ring/VAD/segmenter/reconciler/outputs, and launches
// the producer and transcriber goroutines. The returned Handle is
// already running.
func (b *Builder) Start(ctx context.Context) (*Handle, error) {
	if b.started {
		return nil, ErrAlreadyStarted
	}
	if b.source == nil {
		return nil, &ConfigError{Field: "source", Err: errors.New("a capture source is required")}
	}
	if b.spModel == nil {
		return nil, &ConfigError{Field: "speech_model", Err: errors.New("a speech model is required")}
	}
	if err := b.cfg.Validate(); err != nil {
		return nil, &ConfigError{Field: "config", Err: err}
	}
	b.started = true
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	ring, err := audio.NewRing(b.cfg.Ring.CapacitySamples, b.source.SampleRate())
	if err != nil {
		return nil, &ConfigError{Field: "ring", Err: err}
	}

	detector, err := vad.New(vad.Backend(b.cfg.VAD.Backend), b.cfg.VAD.FrameMs, b.cfg.VAD.Threshold, b.cfg.VAD.ModelPath)
	if err != nil {
		return nil, &ConfigError{Field: "vad", Err: err}
	}

	segCfg := segmenter.Config{
		SampleRate:  b.cfg.Ring.TargetSampleRate,
		EndMs:       b.cfg.Segmenter.EndMs,
		MaxWindowMs: b.cfg.Segmenter.MaxWindowMs,
		KeepTailMs:  b.cfg.Segmenter.KeepTailMs,
		MinSpeechMs: b.cfg.Segmenter.MinSpeechMs,
	}
	seg := segmenter.New(segCfg)
	seg.SetMetrics(b.metrics)

	reconCfg := reconciler.Config{
		OverlapChars:       b.cfg.Reconciler.OverlapChars,
		MinOverlap:         b.cfg.Reconciler.MinOverlap,
		WorkingTailWords:   b.cfg.Reconciler.WorkingTailWords,
		PromptTokenCap:     b.cfg.Reconciler.PromptTokenCap,
		WorkingSetCapWords: b.cfg.Reconciler.WorkingSetCapWords,
	}
	recon := reconciler.New(reconCfg)

	outputs := NewOutputs(b.cfg.Pipeline.ConfirmedSendTimeout())
	flags := control.New()
	flags.SetRunning(true)

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)

	group.Go(func() error {
		return runProducer(groupCtx, b.source, ring, flags, logger, b.metrics)
	})

	workerCfg := transcriber.Config{
		TargetSampleRate:  b.cfg.Ring.TargetSampleRate,
		PollInterval:      b.cfg.Pipeline.PollInterval(),
		TranscribePollMs:  b.cfg.Pipeline.TranscribePollMs,
		FallbackAfter:     b.cfg.VAD.FallbackDuration(),
		FallbackThreshold: b.cfg.VAD.FallbackRMSThreshold,
	}
	worker := transcriber.New(workerCfg, ring, flags, detector, seg, b.spModel, recon, outputs, b.metrics, logger)
	group.Go(func() error {
		defer detector.Close()
		return worker.Run(groupCtx)
	})

	flags.SetReady(true)
	outputs.PublishStatus(StatusGettingReady)

	handle := &Handle{
		outputs:         outputs,
		flags:           flags,
		cancel:          cancel,
		group:           group,
		stopJoinTimeout: b.cfg.Pipeline.StopJoinTimeout(),
		doneCh:          make(chan error, 1),
	}

	go func() {
		handle.doneCh <- group.Wait()
	}()

	return handle, nil
}

// runProducer reads fixed-size chunks from source into ring until
// ctx is cancelled, flags.Running goes false, or the source reports a
// non-EOF error. A *capture.CaptureError marked Transient is retried
// with exponential backoff, up to maxProducerRetries in a row; any
// other error, or a transient error that never recovers, is fatal and
// calls flags.SetRunning(false) before returning ErrCaptureFatal.
func runProducer(ctx context.Context, source capture.Source, ring *audio.Ring, flags *control.Flags, logger *slog.Logger, m *metrics.Metrics) error {
	buf := make([]float32, producerReadChunkSamples)
	log := logger.With("component", "pipeline.producer")
	retries := 0

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}
		if !flags.Running() {
			return nil
		}

		n, err := source.Read(buf)
		if n > 0 {
			ring.PushSlice(buf[:n])
			if m != nil {
				m.RecordRingPush(n, ring.Len())
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}

			var capErr *capture.CaptureError
			if errors.As(err, &capErr) && capErr.Transient && retries < maxProducerRetries {
				retries++
				backoff := time.Duration(math.Pow(2, float64(retries-1))) * producerBackoffBase
				if backoff > producerBackoffCap {
					backoff = producerBackoffCap
				}
				log.Warn("transient capture read error, retrying with backoff",
					"err", err, "attempt", retries, "backoff", backoff)
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(backoff):
				}
				continue
			}

			log.Error("capture read failed", "err", err, "retries", retries)
			flags.SetRunning(false)
			return ErrCaptureFatal
		}
		retries = 0
	}
}
