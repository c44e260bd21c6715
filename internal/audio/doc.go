// Package audio provides the ring buffer and resampler that sit
// between capture and the rest of the transcription pipeline.
package audio
