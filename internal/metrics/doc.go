// Package metrics exposes Prometheus instrumentation for every stage
// of the transcription pipeline: ring occupancy, VAD decisions,
// segment emission, model latency, reconciler commits and output
// backpressure.
package metrics
