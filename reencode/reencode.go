// Package reencode converts arbitrary input PCM (any supported sample
// format, sample rate and channel count) into the canonical detection
// domain: mono, 32-bit float, at the detector's internal sample rate, in
// fixed-size frames.
package reencode

import (
	"fmt"
	"math"

	"github.com/wakespot/wakespot/audiofmt"
)

// Encoder re-encodes successive blocks of input-format samples into
// canonical-domain frames of a fixed length.
//
// An Encoder is not safe for concurrent use; it is driven by exactly one
// producer, matching the detector's single-threaded processing model.
type Encoder struct {
	in     audiofmt.Fmt
	flOut  int // output frame length, in samples, at the internal rate.
	flIn   int // required input block length, in samples (all channels).
	srOut  uint

	// pending holds downmixed, not-yet-consumed mono samples at the input
	// rate, plus the fractional position of the next output sample within
	// it. Both persist across Reencode calls to carry resampler phase.
	pending []float32
	cursor  float64
}

// New constructs an Encoder that accepts blocks shaped by in and emits
// flMs-millisecond frames resampled to srOut Hz.
//
// New returns an error wrapping ErrUnsupportedFormat if in is not
// representable in the canonical domain.
func New(in audiofmt.Fmt, flMs int, srOut uint) (*Encoder, error) {
	if err := in.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, err)
	}
	if flMs <= 0 {
		return nil, fmt.Errorf("%w: non-positive frame length %dms", ErrUnsupportedFormat, flMs)
	}

	flIn := int(math.Ceil(float64(flMs)*float64(in.SampleRate)/1000)) * int(in.Channels)
	flOut := flMs * int(srOut) / 1000

	return &Encoder{
		in:    in,
		flOut: flOut,
		flIn:  flIn,
		srOut: srOut,
	}, nil
}

// InputFrameLength returns the number of input samples (across all
// channels) the caller must deliver per Reencode call.
func (e *Encoder) InputFrameLength() int {
	return e.flIn
}

// ratio is the input-to-output sample rate ratio used by the linear
// interpolation resampler.
func (e *Encoder) ratio() float64 {
	return float64(e.in.SampleRate) / float64(e.srOut)
}

// ReencodeF32 converts one block of already-normalized float samples
// (interleaved by channel) into exactly one canonical-domain frame, once
// the resampler has enough history. ok is false during the initial
// warm-up, per the front-end's Contract.
func (e *Encoder) ReencodeF32(in []float32) (frame []float32, ok bool, err error) {
	if len(in) != e.flIn {
		return nil, false, fmt.Errorf("%w: got %d input samples, want %d", ErrUnsupportedFormat, len(in), e.flIn)
	}
	mono := downmixF32(in, int(e.in.Channels))
	return e.resample(mono)
}

// ReencodeI8 converts signed 8-bit samples.
func (e *Encoder) ReencodeI8(in []int8) ([]float32, bool, error) {
	f := make([]float32, len(in))
	for i, s := range in {
		f[i] = float32(s) / 128
	}
	return e.ReencodeF32(f)
}

// ReencodeI16 converts signed 16-bit samples.
func (e *Encoder) ReencodeI16(in []int16) ([]float32, bool, error) {
	f := make([]float32, len(in))
	for i, s := range in {
		f[i] = float32(s) / 32768
	}
	return e.ReencodeF32(f)
}

// ReencodeI32 converts signed 32-bit samples.
func (e *Encoder) ReencodeI32(in []int32) ([]float32, bool, error) {
	f := make([]float32, len(in))
	for i, s := range in {
		f[i] = float32(s) / 2147483648
	}
	return e.ReencodeF32(f)
}

// downmixF32 arithmetically averages interleaved channels to mono.
func downmixF32(in []float32, channels int) []float32 {
	if channels == 1 {
		out := make([]float32, len(in))
		copy(out, in)
		return out
	}
	n := len(in) / channels
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		var sum float32
		for c := 0; c < channels; c++ {
			sum += in[i*channels+c]
		}
		out[i] = sum / float32(channels)
	}
	return out
}

// resample appends mono to the carried-over pending buffer and emits
// exactly one flOut-sample frame by linear interpolation, once enough
// history has accumulated. Any unused tail of pending (plus fractional
// cursor) is retained for the next call.
func (e *Encoder) resample(mono []float32) ([]float32, bool, error) {
	e.pending = append(e.pending, mono...)
	ratio := e.ratio()

	needed := e.cursor + float64(e.flOut-1)*ratio
	if int(needed)+1 >= len(e.pending) {
		// Not enough history yet: warm up and report no frame.
		return nil, false, nil
	}

	out := make([]float32, e.flOut)
	for k := 0; k < e.flOut; k++ {
		pos := e.cursor + float64(k)*ratio
		i0 := int(pos)
		frac := pos - float64(i0)
		i1 := i0 + 1
		if i1 >= len(e.pending) {
			i1 = len(e.pending) - 1
		}
		out[k] = e.pending[i0] + float32(frac)*(e.pending[i1]-e.pending[i0])
	}

	// Advance the cursor by one frame's worth of input and drop consumed
	// whole samples, keeping only the fractional remainder.
	advanced := e.cursor + float64(e.flOut)*ratio
	consumed := int(advanced)
	e.cursor = advanced - float64(consumed)
	if consumed > 0 {
		if consumed > len(e.pending) {
			consumed = len(e.pending)
		}
		e.pending = append([]float32{}, e.pending[consumed:]...)
	}

	return out, true, nil
}
