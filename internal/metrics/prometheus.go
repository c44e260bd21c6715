package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the transcription
// pipeline.
type Metrics struct {
	// AudioRing metrics
	RingOccupancySamples prometheus.Gauge
	RingWriteSamples     prometheus.Counter

	// VAD metrics
	VADFramesProcessed prometheus.Counter
	VADSpeechFrames    prometheus.Counter
	VADProcessingTime  prometheus.Histogram
	VADFallbackActive  prometheus.Gauge

	// Segmenter metrics
	SegmentsEmitted       prometheus.Counter
	SegmentsForcedSplit   prometheus.Counter
	SegmentDuration       prometheus.Histogram
	SegmentDiscardedShort prometheus.Counter

	// Model metrics
	ModelRequests prometheus.Counter
	ModelFailures prometheus.Counter
	ModelLatency  prometheus.Histogram

	// Reconciler metrics
	ReconcileCommittedWords prometheus.Counter
	ReconcileOverlapHits    prometheus.Counter
	ReconcileOverlapMisses  prometheus.Counter

	// Output metrics
	OutputWorkingDropped   prometheus.Counter
	OutputConfirmedBlocked prometheus.Counter
	OutputBackpressure     prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		RingOccupancySamples: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ribble_ring_occupancy_samples",
			Help: "Current number of samples held in the audio ring",
		}),
		RingWriteSamples: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_ring_write_samples_total",
			Help: "Total number of samples ever pushed into the audio ring",
		}),

		VADFramesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_vad_frames_processed_total",
			Help: "Total number of VAD frames classified",
		}),
		VADSpeechFrames: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_vad_speech_frames_total",
			Help: "Total number of VAD frames classified as speech",
		}),
		VADProcessingTime: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ribble_vad_processing_duration_seconds",
			Help:    "Time spent classifying a single VAD frame",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 10),
		}),
		VADFallbackActive: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "ribble_vad_fallback_active",
			Help: "1 if the configured VAD backend has fallen back to energy detection, 0 otherwise",
		}),

		SegmentsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_segments_emitted_total",
			Help: "Total number of audio segments emitted by the segmenter",
		}),
		SegmentsForcedSplit: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_segments_forced_split_total",
			Help: "Total number of segments emitted due to max_window_ms rather than a phrase end",
		}),
		SegmentDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ribble_segment_duration_seconds",
			Help:    "Duration of emitted audio segments",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		}),
		SegmentDiscardedShort: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_segments_discarded_short_total",
			Help: "Total number of buffered segments discarded for not meeting min_speech_ms",
		}),

		ModelRequests: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_model_requests_total",
			Help: "Total number of SpeechModel.Transcribe calls",
		}),
		ModelFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_model_failures_total",
			Help: "Total number of failed SpeechModel.Transcribe calls",
		}),
		ModelLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "ribble_model_latency_seconds",
			Help:    "Latency of SpeechModel.Transcribe calls",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
		}),

		ReconcileCommittedWords: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_reconcile_committed_words_total",
			Help: "Total number of words committed into the confirmed transcript",
		}),
		ReconcileOverlapHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_reconcile_overlap_hits_total",
			Help: "Total number of segments merged via a successful overlap match",
		}),
		ReconcileOverlapMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_reconcile_overlap_misses_total",
			Help: "Total number of segments with no overlap match against the confirmed tail",
		}),

		OutputWorkingDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_output_working_dropped_total",
			Help: "Total number of working_text messages dropped because a subscriber's buffer was full",
		}),
		OutputConfirmedBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_output_confirmed_blocked_total",
			Help: "Total number of confirmed_text sends that had to wait for buffer space",
		}),
		OutputBackpressure: promauto.NewCounter(prometheus.CounterOpts{
			Name: "ribble_output_backpressure_total",
			Help: "Total number of confirmed_text sends that timed out",
		}),
	}
}

// RecordRingPush updates ring occupancy and total-write metrics.
func (m *Metrics) RecordRingPush(pushed, occupancy int) {
	m.RingWriteSamples.Add(float64(pushed))
	m.RingOccupancySamples.Set(float64(occupancy))
}

// RecordVADFrame records one VAD classification.
func (m *Metrics) RecordVADFrame(isSpeech bool, durationSeconds float64) {
	m.VADFramesProcessed.Inc()
	if isSpeech {
		m.VADSpeechFrames.Inc()
	}
	m.VADProcessingTime.Observe(durationSeconds)
}

// RecordSegmentEmitted records a segment emission.
func (m *Metrics) RecordSegmentEmitted(forcedSplit bool, durationSeconds float64) {
	m.SegmentsEmitted.Inc()
	if forcedSplit {
		m.SegmentsForcedSplit.Inc()
	}
	m.SegmentDuration.Observe(durationSeconds)
}

// RecordModelCall records a SpeechModel.Transcribe call.
func (m *Metrics) RecordModelCall(err error, durationSeconds float64) {
	m.ModelRequests.Inc()
	if err != nil {
		m.ModelFailures.Inc()
	}
	m.ModelLatency.Observe(durationSeconds)
}

// RecordReconcile records the outcome of one Reconciler.Reconcile
// call.
func (m *Metrics) RecordReconcile(overlapHit bool, committedWords int) {
	if overlapHit {
		m.ReconcileOverlapHits.Inc()
	} else {
		m.ReconcileOverlapMisses.Inc()
	}
	m.ReconcileCommittedWords.Add(float64(committedWords))
}
