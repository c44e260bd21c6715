// Package control holds the shared run-state flags used to coordinate
// the producer and transcriber goroutines of a pipeline without
// tearing down their underlying context.
package control

import "sync/atomic"

// Flags coordinates start/pause/shutdown across the goroutines of a
// running pipeline. Pausing must not cancel the driver's context -
// it only gates whether the transcriber calls the speech model -
// so a pair of atomic booleans is used instead of layering another
// context on top of the one errgroup already manages.
type Flags struct {
	running atomic.Bool
	ready   atomic.Bool
	paused  atomic.Bool
}

// New returns a Flags with running and ready both false.
func New() *Flags {
	return &Flags{}
}

// SetRunning marks the pipeline as actively consuming audio.
func (f *Flags) SetRunning(v bool) {
	f.running.Store(v)
}

// Running reports whether the pipeline is actively consuming audio.
func (f *Flags) Running() bool {
	return f.running.Load()
}

// SetReady marks the transcriber as warmed up and able to accept work.
func (f *Flags) SetReady(v bool) {
	f.ready.Store(v)
}

// Ready reports whether the transcriber has completed startup.
func (f *Flags) Ready() bool {
	return f.ready.Load()
}

// SetPaused marks the transcriber as paused: the producer keeps
// filling the ring, but the transcriber skips model invocation until
// resumed.
func (f *Flags) SetPaused(v bool) {
	f.paused.Store(v)
}

// Paused reports whether the transcriber is currently paused.
func (f *Flags) Paused() bool {
	return f.paused.Load()
}
