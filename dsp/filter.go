// Package dsp provides the two canonical-domain audio filters applied ahead
// of MFCC extraction: a band-pass biquad and an adaptive gain normalizer.
//
// Both filters operate in place on fixed-length float32 frames and carry
// their state serially across calls; per the concurrency model, a Filter is
// driven by exactly one producer and needs no locking in the hot path.
package dsp

// Filter is the shared capability of the canonical-domain audio filters.
type Filter interface {
	// Apply filters frame in place.
	Apply(frame []float32)
}
