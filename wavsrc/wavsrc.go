// Package wavsrc adapts github.com/go-audio/wav's WAV decoder into the
// audiofmt.Fmt + normalized-sample shape the rest of this module expects.
//
// WAV container I/O is an external collaborator per the core specification
// (it is not part of the detection engine); this package is the thin
// boundary through which the builder and trainer reach it.
package wavsrc

import (
	"fmt"
	"io"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/wakespot/wakespot/audiofmt"
)

// Sample is a fully decoded WAV file: its input format descriptor and its
// samples, normalized to [-1, 1] float32, interleaved by channel.
type Sample struct {
	Fmt     audiofmt.Fmt
	Samples []float32
}

// Decode reads a complete WAV file from r and normalizes its samples.
func Decode(r io.Reader) (Sample, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Sample{}, fmt.Errorf("wavsrc: not a valid WAV file")
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return Sample{}, fmt.Errorf("wavsrc: decode PCM: %w", err)
	}

	var format *audio.Format = buf.PCMFormat()
	bitDepth := int(dec.BitDepth)
	maxVal := float64(int64(1) << uint(bitDepth-1))

	ints := buf.AsIntBuffer().Data
	samples := make([]float32, len(ints))
	for i, v := range ints {
		samples[i] = float32(float64(v) / maxVal)
	}

	f := audiofmt.Fmt{
		SampleRate:    uint(format.SampleRate),
		Channels:      uint(format.NumChannels),
		BitsPerSample: 32,
		SampleFormat:  audiofmt.Float,
		Endianness:    audiofmt.Little,
	}

	return Sample{Fmt: f, Samples: samples}, nil
}
