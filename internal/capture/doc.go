// Package capture defines the audio source boundary consumed by the
// pipeline producer loop, plus a WAV file source used by tests and
// the demo command.
package capture
