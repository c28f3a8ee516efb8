// Package audiofmt describes the shape of incoming PCM audio before it is
// re-encoded into the canonical detection domain.
package audiofmt

import "github.com/pkg/errors"

// SampleFormat is the element encoding of a PCM sample.
type SampleFormat int

const (
	// Int indicates signed integer samples (8, 16 or 32 bit).
	Int SampleFormat = iota
	// Float indicates 32-bit IEEE-754 float samples.
	Float
)

// String implements fmt.Stringer.
func (f SampleFormat) String() string {
	switch f {
	case Int:
		return "Int"
	case Float:
		return "Float"
	default:
		return "Unknown"
	}
}

// Endianness is the byte order of multi-byte samples.
type Endianness int

const (
	// Little indicates little-endian byte order.
	Little Endianness = iota
	// Big indicates big-endian byte order.
	Big
)

// String implements fmt.Stringer.
func (e Endianness) String() string {
	switch e {
	case Little:
		return "Little"
	case Big:
		return "Big"
	default:
		return "Unknown"
	}
}

// MinSampleRate and MaxSampleRate bound the supported input sample rate range.
const (
	MinSampleRate = 8000
	MaxSampleRate = 48000
)

// Fmt describes the layout of an input PCM stream.
type Fmt struct {
	SampleRate    uint
	Channels      uint
	BitsPerSample uint
	SampleFormat  SampleFormat
	Endianness    Endianness
}

// Validate checks the invariants named in the data model: float samples are
// always 32 bit, and bit depth is one of the supported widths.
func (f Fmt) Validate() error {
	if f.SampleRate < MinSampleRate || f.SampleRate > MaxSampleRate {
		return errors.Errorf("sample rate %d Hz outside supported range [%d, %d]", f.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if f.Channels == 0 {
		return errors.Errorf("channel count must be > 0")
	}
	switch f.BitsPerSample {
	case 8, 16, 32:
	default:
		return errors.Errorf("unsupported bit depth %d", f.BitsPerSample)
	}
	if f.SampleFormat == Float && f.BitsPerSample != 32 {
		return errors.Errorf("float sample format requires 32 bit depth, got %d", f.BitsPerSample)
	}
	return nil
}

// BytesPerSample returns the size in bytes of a single sample element.
func (f Fmt) BytesPerSample() int {
	return int(f.BitsPerSample) / 8
}
