// Package reconciler merges a stream of decoded segments into a
// monotonic confirmed transcript and a replaceable working
// hypothesis, using longest-common-substring overlap matching aligned
// to word boundaries.
package reconciler
