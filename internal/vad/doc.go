// Package vad provides pluggable voice-activity detection backends
// behind a single Detector interface: energy thresholding, a
// WebRTC-style classic GMM detector, and an ONNX neural detector.
package vad
