// Package segmenter implements the VAD-driven state machine that
// accumulates raw samples into bounded AudioSegments at phrase
// boundaries.
package segmenter
