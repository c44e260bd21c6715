// Package transcriber implements the worker loop that drains an
// audio ring through resampling, voice-activity detection and
// segmentation, hands completed segments to a speech model, and
// feeds the results through a reconciler before publishing them.
package transcriber
