// Package mfcc computes mel-frequency cepstral coefficient frames from
// canonical-domain audio (16kHz mono float32), one vector per 10ms hop over
// a 30ms analysis window.
package mfcc

import (
	"fmt"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Config controls feature extraction parameters. Defaults match spec §4.4.
type Config struct {
	SampleRate  uint
	FrameLen    int     // analysis window length in samples (480 @ 16kHz / 30ms).
	HopLen      int     // hop length in samples (160 @ 16kHz / 10ms).
	NFFT        int     // FFT length, next power of 2 >= FrameLen (512 by default).
	NFilters    int     // number of mel filterbank bands (40).
	NCoeffs     int     // number of retained DCT coefficients (M, default 16).
	LowFreq     float64 // lower bound of the mel filterbank (20Hz).
	HighFreq    float64 // upper bound of the mel filterbank (SampleRate/2 if zero).
	PreEmphasis float64 // pre-emphasis coefficient (0.97).
}

// DefaultConfig returns the spec §4.4 defaults for a 16kHz internal stream.
func DefaultConfig() Config {
	return Config{
		SampleRate:  16000,
		FrameLen:    480,
		HopLen:      160,
		NFFT:        512,
		NFilters:    40,
		NCoeffs:     16,
		LowFreq:     20,
		PreEmphasis: 0.97,
	}
}

// Window is an ordered sequence of MFCC frames. Comparing two windows
// requires that both share the same coefficient count M.
type Window [][]float64

// M returns the coefficient count of the window, or 0 if empty.
func (w Window) M() int {
	if len(w) == 0 {
		return 0
	}
	return len(w[0])
}

// Extractor maintains the sliding analysis window and mel/DCT machinery
// needed to turn successive hops into MFCC frames.
//
// An Extractor is driven by exactly one producer; it is not safe for
// concurrent use.
type Extractor struct {
	cfg     Config
	window  []float64
	melBank [][]float64 // [NFilters][NFFT/2+1]
	dct     *fourier.DCT

	ring       []float32 // sliding FrameLen-sample analysis window.
	filled     int
	lastSample float32 // last sample of the previous hop, for pre-emphasis continuity.
}

// New constructs an Extractor from cfg. A zero HighFreq is replaced by
// SampleRate/2; other fields are used as given, and invalid lengths or
// coefficient counts are rejected with an error.
func New(cfg Config) (*Extractor, error) {
	if cfg.FrameLen <= 0 || cfg.HopLen <= 0 || cfg.NFFT <= 0 {
		return nil, fmt.Errorf("mfcc: invalid config %+v", cfg)
	}
	if cfg.NFFT < cfg.FrameLen {
		return nil, fmt.Errorf("mfcc: NFFT (%d) must be >= FrameLen (%d)", cfg.NFFT, cfg.FrameLen)
	}
	if cfg.HighFreq == 0 {
		cfg.HighFreq = float64(cfg.SampleRate) / 2
	}
	if cfg.NCoeffs <= 0 || cfg.NCoeffs > cfg.NFilters {
		return nil, fmt.Errorf("mfcc: NCoeffs (%d) must be in (0, NFilters=%d]", cfg.NCoeffs, cfg.NFilters)
	}

	e := &Extractor{
		cfg:     cfg,
		window:  window.Hann(cfg.FrameLen),
		melBank: melFilterBank(cfg.NFilters, cfg.NFFT, cfg.SampleRate, cfg.LowFreq, cfg.HighFreq),
		dct:     fourier.NewDCT(cfg.NFilters),
		ring:    make([]float32, cfg.FrameLen),
	}
	return e, nil
}

// CoeffCount returns M, the number of coefficients per emitted frame.
func (e *Extractor) CoeffCount() int { return e.cfg.NCoeffs }

// Push slides hop (HopLen samples) into the analysis window and, once the
// window is full, returns the MFCC frame computed over it. ok is false
// while the extractor is still accumulating its first full window.
func (e *Extractor) Push(hop []float32) (frame []float64, ok bool, err error) {
	if len(hop) != e.cfg.HopLen {
		return nil, false, fmt.Errorf("mfcc: hop length %d, want %d", len(hop), e.cfg.HopLen)
	}

	copy(e.ring, e.ring[len(hop):])
	copy(e.ring[len(e.ring)-len(hop):], hop)
	if e.filled < len(e.ring) {
		e.filled += len(hop)
	}
	if e.filled < len(e.ring) {
		return nil, false, nil
	}

	return e.extract(), true, nil
}

// extract computes one MFCC vector from the current analysis window:
// pre-emphasis, Hann window, zero-padded real FFT, magnitude spectrum, mel
// filterbank, log, DCT-II keeping the first NCoeffs coefficients.
func (e *Extractor) extract() []float64 {
	cfg := e.cfg

	emphasized := make([]float64, cfg.FrameLen)
	prev := float64(e.lastSample)
	for i, s := range e.ring {
		emphasized[i] = float64(s) - cfg.PreEmphasis*prev
		prev = float64(s)
	}
	e.lastSample = e.ring[len(e.ring)-1]

	windowed := make([]float64, cfg.NFFT)
	for i, s := range emphasized {
		windowed[i] = s * e.window[i]
	}

	spectrum := fft.FFTReal(windowed)
	halfFFT := cfg.NFFT/2 + 1
	mag := make([]float64, halfFFT)
	for i := 0; i < halfFFT; i++ {
		mag[i] = complexAbs(spectrum[i])
	}

	melEnergies := make([]float64, cfg.NFilters)
	for m := 0; m < cfg.NFilters; m++ {
		var sum float64
		for k, w := range e.melBank[m] {
			sum += w * mag[k]
		}
		melEnergies[m] = math.Log(math.Max(sum, 1e-10))
	}

	dctOut := make([]float64, cfg.NFilters)
	e.dct.Transform(dctOut, melEnergies)

	return append([]float64{}, dctOut[:cfg.NCoeffs]...)
}

func complexAbs(c complex128) float64 {
	return math.Hypot(real(c), imag(c))
}

// hzToMel and melToHz implement the Slaney-style mel scale: linear below
// 1kHz, logarithmic above it.
const (
	melFSp       = 200.0 / 3.0 // linear Hz-per-mel below the break frequency.
	melMinLogHz  = 1000.0
	melMinLogMel = melMinLogHz / melFSp
	melLogStep   = 0.06875177742094912 // ln(6.4) / 27.0
)

func hzToMel(hz float64) float64 {
	if hz < melMinLogHz {
		return hz / melFSp
	}
	return melMinLogMel + math.Log(hz/melMinLogHz)/melLogStep
}

func melToHz(mel float64) float64 {
	if mel < melMinLogMel {
		return mel * melFSp
	}
	return melMinLogHz * math.Exp(melLogStep*(mel-melMinLogMel))
}

// melFilterBank builds nFilters Slaney-style triangular filters spanning
// [lowFreq, highFreq], each a weight vector over the nfft/2+1 magnitude
// spectrum bins at the given sample rate.
func melFilterBank(nFilters, nfft int, sampleRate uint, lowFreq, highFreq float64) [][]float64 {
	halfFFT := nfft/2 + 1
	lowMel := hzToMel(lowFreq)
	highMel := hzToMel(highFreq)

	points := make([]float64, nFilters+2)
	for i := range points {
		points[i] = lowMel + (highMel-lowMel)*float64(i)/float64(nFilters+1)
	}

	bins := make([]int, len(points))
	for i, m := range points {
		hz := melToHz(m)
		bins[i] = int(math.Floor((float64(nfft) + 1) * hz / float64(sampleRate)))
		if bins[i] >= halfFFT {
			bins[i] = halfFFT - 1
		}
		if bins[i] < 0 {
			bins[i] = 0
		}
	}

	bank := make([][]float64, nFilters)
	for m := 0; m < nFilters; m++ {
		row := make([]float64, halfFFT)
		left, centre, right := bins[m], bins[m+1], bins[m+2]
		for k := left; k < centre; k++ {
			if centre > left {
				row[k] = float64(k-left) / float64(centre-left)
			}
		}
		for k := centre; k < right; k++ {
			if right > centre {
				row[k] = float64(right-k) / float64(right-centre)
			}
		}
		bank[m] = row
	}
	return bank
}
