package dsp

import "math"

// BandPass is a 2nd-order Butterworth band-pass biquad. Coefficients are
// derived once from (sampleRate, lowCutoffHz, highCutoffHz); two past input
// and two past output samples are carried across frames.
type BandPass struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64
	y1, y2 float64
}

// NewBandPass designs a band-pass biquad for the given internal sample rate
// and cutoff frequencies, using the RBJ audio-EQ-cookbook constant
// 0 dB peak-gain band-pass form with Q derived from the requested bandwidth.
func NewBandPass(sampleRate uint, lowCutoffHz, highCutoffHz float64) *BandPass {
	centre := math.Sqrt(lowCutoffHz * highCutoffHz)
	bandwidth := highCutoffHz - lowCutoffHz
	if bandwidth <= 0 {
		bandwidth = 1
	}
	q := centre / bandwidth

	w0 := 2 * math.Pi * centre / float64(sampleRate)
	sinW0, cosW0 := math.Sin(w0), math.Cos(w0)
	alpha := sinW0 / (2 * q)

	b0 := alpha
	b1 := 0.0
	b2 := -alpha
	a0 := 1 + alpha
	a1 := -2 * cosW0
	a2 := 1 - alpha

	return &BandPass{
		b0: b0 / a0,
		b1: b1 / a0,
		b2: b2 / a0,
		a1: a1 / a0,
		a2: a2 / a0,
	}
}

// Apply implements Filter, applying the biquad transfer function in place:
//
//	y[n] = b0*x[n] + b1*x[n-1] + b2*x[n-2] - a1*y[n-1] - a2*y[n-2]
func (f *BandPass) Apply(frame []float32) {
	for i, x := range frame {
		xn := float64(x)
		yn := f.b0*xn + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
		f.x2, f.x1 = f.x1, xn
		f.y2, f.y1 = f.y1, yn
		frame[i] = float32(yn)
	}
}
