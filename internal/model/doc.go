// Package model defines the boundary between the pipeline and the
// ASR engine itself, which is treated as an external black-box
// collaborator. A deterministic Stub implementation is provided for
// tests and the demo command.
package model
