package transcriber

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/jordan-clayton/ribble-whisper/internal/audio"
	"github.com/jordan-clayton/ribble-whisper/internal/control"
	"github.com/jordan-clayton/ribble-whisper/internal/metrics"
	"github.com/jordan-clayton/ribble-whisper/internal/model"
	"github.com/jordan-clayton/ribble-whisper/internal/reconciler"
	"github.com/jordan-clayton/ribble-whisper/internal/segmenter"
	"github.com/jordan-clayton/ribble-whisper/internal/vad"
)

// Sink is the set of publish operations the worker needs from the
// pipeline's output fan-out, kept as a narrow interface here so this
// package never has to import the pipeline package back.
type Sink interface {
	PublishWorking(text string)
	PublishConfirmed(delta string) error
	PublishStatus(status string)
}

// Config holds the worker's own tunables. The resampler, VAD and
// segmenter are constructed and owned by the caller and passed in,
// since their own configuration (backend choice, thresholds, window
// sizes) belongs to those packages.
type Config struct {
	// TargetSampleRate is the rate audio is resampled to before
	// reaching the VAD and the speech model.
	TargetSampleRate uint32
	// PollInterval governs how often the ring is drained when it is
	// not being kept busy by a continuous stream of new samples.
	PollInterval time.Duration
	// TranscribePollMs is unused directly (PollInterval supersedes
	// it) but kept as a named field mirroring the configuration
	// table's transcribe_poll_ms for callers translating from config.
	TranscribePollMs uint32
	// FallbackAfter is how long the detector must error continuously
	// before the worker falls back to an energy-threshold VAD. Zero
	// disables the fallback.
	FallbackAfter time.Duration
	// FallbackThreshold is the RMS cutoff used by the fallback energy
	// detector once FallbackAfter triggers it.
	FallbackThreshold float32
}

// DefaultConfig returns the poll interval named in the configuration
// table (transcribe_poll_ms = 100).
func DefaultConfig(targetSampleRate uint32) Config {
	return Config{
		TargetSampleRate:  targetSampleRate,
		PollInterval:      100 * time.Millisecond,
		TranscribePollMs:  100,
		FallbackAfter:     1500 * time.Millisecond,
		FallbackThreshold: 0.02,
	}
}

// Worker drains an audio.Ring through resampling, VAD, segmentation,
// the speech model and the reconciler, publishing results to a Sink.
// One Worker owns exclusive access to its Detector and SpeechModel;
// it is not safe to share either across two Workers.
type Worker struct {
	cfg Config

	ring     *audio.Ring
	flags    *control.Flags
	detector vad.Detector
	seg      *segmenter.Segmenter
	spModel  model.SpeechModel
	recon    *reconciler.Reconciler
	sink     Sink
	metrics  *metrics.Metrics
	log      *slog.Logger

	lastWriteCursor uint64
	pendingResamp   []float32
	lastConfirmed   string

	errStreakStart time.Time
	fellBack       bool
}

// New constructs a Worker. All collaborators except metrics and
// logger must be non-nil; a nil metrics leaves the worker unmetered
// and a nil logger defaults to slog.Default().
func New(cfg Config, ring *audio.Ring, flags *control.Flags, detector vad.Detector, seg *segmenter.Segmenter, spModel model.SpeechModel, recon *reconciler.Reconciler, sink Sink, m *metrics.Metrics, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		cfg:      cfg,
		ring:     ring,
		flags:    flags,
		detector: detector,
		seg:      seg,
		spModel:  spModel,
		recon:    recon,
		sink:     sink,
		metrics:  m,
		log:      logger.With("component", "transcriber.worker"),
	}
}

// Run drives the worker loop until ctx is cancelled or flags.Running
// becomes false. On exit it flushes the segmenter and reconciler so
// a trailing in-progress phrase is not silently dropped.
func (w *Worker) Run(ctx context.Context) error {
	w.sink.PublishStatus("getting_ready")
	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	// lastWriteCursor starts at zero, so audio already in the ring when
	// Run starts is processed by the first poll.
	for {
		select {
		case <-ctx.Done():
			w.flush()
			return nil
		case <-ticker.C:
			if !w.flags.Running() {
				w.flush()
				return nil
			}
			if w.flags.Paused() {
				// Track the write cursor so that a resume doesn't
				// replay the entire paused window as one giant delta.
				w.lastWriteCursor = w.ring.WriteCursor()
				continue
			}
			if err := w.poll(ctx); err != nil {
				if errors.Is(err, context.Canceled) {
					w.flush()
					return nil
				}
				w.log.Error("poll failed", "err", err)
				if !w.flags.Running() {
					w.flush()
					return err
				}
			}
		}
	}
}

// poll drains whatever has been written to the ring since the last
// poll, resamples it, and walks it frame by frame through the VAD and
// segmenter, transcribing and reconciling any segment the segmenter
// emits along the way.
func (w *Worker) poll(ctx context.Context) error {
	cur := w.ring.WriteCursor()
	delta := cur - w.lastWriteCursor
	w.lastWriteCursor = cur
	if delta == 0 {
		return nil
	}

	captured := w.ring.SnapshotTail(int(delta))
	if len(captured) == 0 {
		return nil
	}

	resampled := audio.Resample(captured, w.ring.SampleRate(), w.cfg.TargetSampleRate)
	w.pendingResamp = append(w.pendingResamp, resampled...)

	frameSamples := int(uint32(w.detector.FrameLengthMillis()) * w.cfg.TargetSampleRate / 1000)
	if frameSamples <= 0 {
		return nil
	}

	for len(w.pendingResamp) >= frameSamples {
		frame := w.pendingResamp[:frameSamples]
		w.pendingResamp = append([]float32(nil), w.pendingResamp[frameSamples:]...)

		vadStart := time.Now()
		isSpeech, err := w.detector.IsSpeech(frame, w.cfg.TargetSampleRate)
		if err != nil {
			w.log.Warn("vad error, treating frame as silence", "err", err)
			isSpeech = false
			w.noteVADError()
		} else {
			w.errStreakStart = time.Time{}
		}
		if w.metrics != nil {
			w.metrics.RecordVADFrame(isSpeech, time.Since(vadStart).Seconds())
		}

		emitted := w.seg.ProcessFrame(frame, isSpeech, uint32(w.detector.FrameLengthMillis()))
		if emitted == nil {
			continue
		}
		if w.metrics != nil {
			w.metrics.RecordSegmentEmitted(emitted.ForcedSplit, float64(len(emitted.Samples))/float64(w.cfg.TargetSampleRate))
		}
		if err := w.transcribeAndPublish(ctx, emitted); err != nil {
			return err
		}
	}
	return nil
}

// noteVADError tracks how long the detector has been erroring
// continuously and, once it has been failing past cfg.FallbackAfter,
// swaps it for an energy-threshold detector and logs once.
func (w *Worker) noteVADError() {
	if w.fellBack || w.cfg.FallbackAfter <= 0 {
		return
	}
	if w.errStreakStart.IsZero() {
		w.errStreakStart = time.Now()
		return
	}
	if time.Since(w.errStreakStart) < w.cfg.FallbackAfter {
		return
	}

	frameMs := w.detector.FrameLengthMillis()
	w.log.Error("vad detector erroring past fallback window, switching to energy backend",
		"fallback_after", w.cfg.FallbackAfter)
	if err := w.detector.Close(); err != nil {
		w.log.Warn("failed to close prior vad detector during fallback", "err", err)
	}
	w.detector = vad.NewEnergy(frameMs, w.cfg.FallbackThreshold)
	w.fellBack = true
	if w.metrics != nil {
		w.metrics.VADFallbackActive.Set(1)
	}
}

func (w *Worker) transcribeAndPublish(ctx context.Context, seg *segmenter.AudioSegment) error {
	w.sink.PublishStatus("start_speaking")

	modelStart := time.Now()
	decoded, err := w.spModel.Transcribe(ctx, seg.Samples, w.recon.PromptTokens())
	if w.metrics != nil {
		w.metrics.RecordModelCall(err, time.Since(modelStart).Seconds())
	}
	if err != nil {
		w.log.Error("model transcribe failed", "err", err, "samples", len(seg.Samples))
		return nil
	}

	confirmed, working := w.recon.Reconcile(decoded)
	delta, pubErr := w.publishConfirmedDelta(confirmed)
	if w.metrics != nil {
		w.metrics.RecordReconcile(w.recon.LastOverlapHit(), len(strings.Fields(delta)))
	}
	w.sink.PublishWorking(working)
	if pubErr != nil {
		return pubErr
	}

	if seg.ForcedSplit {
		w.sink.PublishStatus("transcription_timeout")
	} else {
		w.sink.PublishStatus("end_transcription")
	}
	return nil
}

// publishConfirmedDelta sends the newly-committed suffix of confirmed
// to the sink and returns it. A backpressure timeout past the sink's
// bounded send window is fatal: it stops the pipeline (running=false)
// and the error is returned so it reaches the caller through Handle.
func (w *Worker) publishConfirmedDelta(confirmed string) (string, error) {
	if confirmed == w.lastConfirmed {
		return "", nil
	}
	delta := confirmed
	if len(confirmed) >= len(w.lastConfirmed) && confirmed[:len(w.lastConfirmed)] == w.lastConfirmed {
		delta = confirmed[len(w.lastConfirmed):]
	}
	w.lastConfirmed = confirmed
	if delta == "" {
		return "", nil
	}
	if err := w.sink.PublishConfirmed(delta); err != nil {
		w.log.Error("confirmed_text backpressure, stopping pipeline", "err", err)
		w.flags.SetRunning(false)
		return delta, err
	}
	return delta, nil
}

// flush drains any buffered-but-unfinalized segment and working
// hypothesis on shutdown so nothing spoken is silently dropped.
func (w *Worker) flush() {
	if seg := w.seg.Flush(); seg != nil {
		decoded, err := w.spModel.Transcribe(context.Background(), seg.Samples, w.recon.PromptTokens())
		if err == nil {
			confirmed, working := w.recon.Reconcile(decoded)
			_, _ = w.publishConfirmedDelta(confirmed)
			w.sink.PublishWorking(working)
		}
	}
	final := w.recon.Flush()
	_, _ = w.publishConfirmedDelta(final)
	w.sink.PublishStatus("end_transcription")
}
