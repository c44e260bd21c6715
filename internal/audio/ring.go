package audio

import (
	"fmt"
	"sync"
)

// Ring is a bounded, single-producer/multi-consumer circular buffer of
// float32 samples. Pushes never block and never fail: once the buffer
// is full, the oldest samples are silently overwritten. Reads return a
// point-in-time copy of the most recent samples.
//
// A single sync.Mutex guards the backing slice and the two cursors.
// Go's scheduler makes a short, uncontended mutex cheaper than the
// split-atomics-plus-mutex scheme of the reference implementation, and
// the push path only ever contends against concurrent snapshots, never
// against another writer, since the ring has exactly one producer.
type Ring struct {
	mu         sync.Mutex
	buf        []float32
	sampleRate uint32
	head       uint64 // next write position, modulo capacity
	written    uint64 // total samples ever written (write cursor)
	occupied   uint64 // samples currently held, capped at capacity
}

// RingBuilder constructs a Ring, mirroring the construction style used
// throughout this module for objects with more than one required
// parameter: collect options, validate once, build.
type RingBuilder struct {
	capacitySamples uint32
	sampleRate      uint32
}

// NewRingBuilder returns an empty RingBuilder.
func NewRingBuilder() *RingBuilder {
	return &RingBuilder{}
}

// WithCapacitySamples sets the ring's fixed sample capacity.
func (b *RingBuilder) WithCapacitySamples(n uint32) *RingBuilder {
	b.capacitySamples = n
	return b
}

// WithSampleRate sets the sample rate the ring's contents are assumed
// to be at. The ring itself is rate-agnostic; this is carried only so
// callers can query Ring.SampleRate() rather than threading it
// separately.
func (b *RingBuilder) WithSampleRate(rate uint32) *RingBuilder {
	b.sampleRate = rate
	return b
}

// Build validates the accumulated options and returns a Ring, or an
// error if capacity or sample rate are missing or zero.
func (b *RingBuilder) Build() (*Ring, error) {
	if b.capacitySamples == 0 {
		return nil, fmt.Errorf("audio: ring capacity must be > 0")
	}
	if b.sampleRate == 0 {
		return nil, fmt.Errorf("audio: ring sample rate must be > 0")
	}
	return &Ring{
		buf:        make([]float32, b.capacitySamples),
		sampleRate: b.sampleRate,
	}, nil
}

// NewRing is a convenience constructor equivalent to
// NewRingBuilder().WithCapacitySamples(capacity).WithSampleRate(rate).Build()
// for the common case where both parameters are already known to be
// valid.
func NewRing(capacitySamples, sampleRate uint32) (*Ring, error) {
	return NewRingBuilder().WithCapacitySamples(capacitySamples).WithSampleRate(sampleRate).Build()
}

// SampleRate returns the sample rate the ring was constructed with.
func (r *Ring) SampleRate() uint32 {
	return r.sampleRate
}

// Capacity returns the fixed sample capacity of the ring.
func (r *Ring) Capacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.buf)
}

// PushSlice appends samples to the ring. If the write would exceed
// capacity, the oldest samples are overwritten. Never blocks, never
// fails.
func (r *Ring) PushSlice(samples []float32) {
	if len(samples) == 0 {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(samples)
	capacity := len(r.buf)

	// A push larger than the whole buffer only leaves its tail behind.
	if n > capacity {
		samples = samples[n-capacity:]
		n = capacity
	}

	headPos := int(r.head % uint64(capacity))
	if headPos+n > capacity {
		firstLen := capacity - headPos
		copy(r.buf[headPos:capacity], samples[:firstLen])
		copy(r.buf[0:n-firstLen], samples[firstLen:])
	} else {
		copy(r.buf[headPos:headPos+n], samples)
	}

	r.head = (r.head + uint64(n)) % uint64(capacity)
	r.written += uint64(n)
	if r.occupied+uint64(n) > uint64(capacity) {
		r.occupied = uint64(capacity)
	} else {
		r.occupied += uint64(n)
	}
}

// SnapshotTail returns a copy of the most recent min(n, Len()) samples
// in logical (oldest-to-newest) order.
func (r *Ring) SnapshotTail(n int) []float32 {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n <= 0 {
		return nil
	}
	capacity := len(r.buf)
	if uint64(n) > r.occupied {
		n = int(r.occupied)
	}
	if n == 0 {
		return nil
	}

	out := make([]float32, n)
	headPos := int(r.head % uint64(capacity))
	start := headPos - n
	if start < 0 {
		start += capacity
	}

	if start+n > capacity {
		toEnd := capacity - start
		copy(out[:toEnd], r.buf[start:capacity])
		copy(out[toEnd:], r.buf[0:n-toEnd])
	} else {
		copy(out, r.buf[start:start+n])
	}
	return out
}

// Len returns the number of samples currently occupied, capped at
// capacity. It is monotone non-decreasing until the ring fills, then
// constant.
func (r *Ring) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return int(r.occupied)
}

// WriteCursor returns the total number of samples ever written.
func (r *Ring) WriteCursor() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.written
}

// Clear resets the ring to empty without reallocating the backing
// array. The write cursor is not reset: it continues to reflect total
// samples ever written; only occupancy goes to zero.
func (r *Ring) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.head = 0
	r.occupied = 0
}

// ClearRetainingTailMs discards everything except the most recent
// durMs milliseconds of audio (at the ring's sample rate). The write
// cursor is not reset.
func (r *Ring) ClearRetainingTailMs(durMs uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if durMs == 0 {
		r.head = 0
		r.occupied = 0
		return
	}
	keep := uint64(float64(durMs) * float64(r.sampleRate) / 1000.0)
	if keep > r.occupied {
		keep = r.occupied
	}
	r.occupied = keep
}
