package wakeword

import (
	"fmt"
	"math"

	"github.com/wakespot/wakespot/mfcc"
	"github.com/wakespot/wakespot/reencode"
	"github.com/wakespot/wakespot/wavsrc"
)

// hopMs is the re-encoder's output chunk size used when building an MFCC
// window offline: one mfcc.Config.HopLen-sized hop per call.
const hopMs = 10

// computeWindow runs a decoded WAV sample through the re-encode -> MFCC
// pipeline (filters disabled, per spec §4.7), returning the full MFCC
// window and the RMS of the canonical-domain signal.
func computeWindow(sample wavsrc.Sample, mfccCfg mfcc.Config) (mfcc.Window, float64, error) {
	enc, err := reencode.New(sample.Fmt, hopMs, mfccCfg.SampleRate)
	if err != nil {
		return nil, 0, fmt.Errorf("re-encoder setup: %w", err)
	}
	extractor, err := mfcc.New(mfccCfg)
	if err != nil {
		return nil, 0, fmt.Errorf("mfcc setup: %w", err)
	}

	blockLen := enc.InputFrameLength()
	padded := padToMultiple(sample.Samples, blockLen)

	var window mfcc.Window
	var sumSq float64
	var n int
	for i := 0; i+blockLen <= len(padded); i += blockLen {
		hop, ok, err := enc.ReencodeF32(padded[i : i+blockLen])
		if err != nil {
			return nil, 0, fmt.Errorf("re-encode: %w", err)
		}
		if !ok {
			continue
		}
		for _, s := range hop {
			sumSq += float64(s) * float64(s)
			n++
		}
		frame, ok, err := extractor.Push(hop)
		if err != nil {
			return nil, 0, fmt.Errorf("mfcc extract: %w", err)
		}
		if ok {
			window = append(window, frame)
		}
	}

	rms := 0.0
	if n > 0 {
		rms = math.Sqrt(sumSq / float64(n))
	}
	return window, rms, nil
}

func padToMultiple(samples []float32, multiple int) []float32 {
	rem := len(samples) % multiple
	if rem == 0 {
		return samples
	}
	return append(append([]float32{}, samples...), make([]float32, multiple-rem)...)
}

// zeroPadWindow extends w to exactly n frames with zero vectors of the
// same coefficient count, used to align reference templates and training
// samples of differing lengths in MFCC space.
func zeroPadWindow(w mfcc.Window, n int) mfcc.Window {
	if len(w) >= n {
		return w
	}
	m := w.M()
	out := append(mfcc.Window{}, w...)
	for len(out) < n {
		out = append(out, make([]float64, m))
	}
	return out
}
