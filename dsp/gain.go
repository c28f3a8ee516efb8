package dsp

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

const (
	// smoothing is the exponential smoothing factor applied to the gain
	// trend, per spec: g_t = alpha*g_desired + (1-alpha)*g_{t-1}.
	smoothing = 0.25

	// epsilon floors the measured RMS to avoid division blow-up on silence.
	epsilon = 1e-9
)

// GainNormalizer adapts per-frame amplitude toward a target RMS level,
// smoothing the applied gain across frames and exposing the last measured
// values for observability (spec §9 "explicit getters").
type GainNormalizer struct {
	Ref     float64 // target RMS level.
	MinGain float64
	MaxGain float64

	gain float64 // last applied (smoothed) gain; starts at 1.
	rms  float64 // last measured input RMS.
}

// NewGainNormalizer constructs a GainNormalizer with the given target RMS
// and gain bounds. Defaults of 0.1/1.0 should be supplied by the caller
// when not otherwise configured.
func NewGainNormalizer(ref, minGain, maxGain float64) *GainNormalizer {
	return &GainNormalizer{Ref: ref, MinGain: minGain, MaxGain: maxGain, gain: 1}
}

// Apply implements Filter: it measures the frame's RMS, computes a desired
// gain toward Ref clamped to [MinGain, MaxGain], smooths it against the
// previous gain, and multiplies the frame in place.
func (g *GainNormalizer) Apply(frame []float32) {
	n := len(frame)
	if n == 0 {
		return
	}
	frame64 := make([]float64, n)
	for i, x := range frame {
		frame64[i] = float64(x)
	}
	rms := math.Sqrt(floats.Dot(frame64, frame64) / float64(n))
	g.rms = rms

	desired := g.Ref / math.Max(rms, epsilon)
	desired = clamp(desired, g.MinGain, g.MaxGain)

	g.gain = smoothing*desired + (1-smoothing)*g.gain

	for i, x := range frame {
		frame[i] = float32(float64(x) * g.gain)
	}
}

// Gain returns the last applied (smoothed) gain.
func (g *GainNormalizer) Gain() float64 { return g.gain }

// RMS returns the last measured input RMS, before gain was applied.
func (g *GainNormalizer) RMS() float64 { return g.rms }

// ResetTrend resets the smoothed gain back to unity, used by the detector
// when a VAD gates out a run of silence.
func (g *GainNormalizer) ResetTrend() { g.gain = 1 }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
