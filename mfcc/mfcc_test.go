package mfcc

import (
	"math"
	"testing"
)

func sine(freqHz, rateHz, amplitude float64, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amplitude * math.Sin(2*math.Pi*freqHz*float64(i)/rateHz))
	}
	return out
}

func pushAll(t *testing.T, e *Extractor, signal []float32, hopLen int) []Window {
	t.Helper()
	var frames Window
	for i := 0; i+hopLen <= len(signal); i += hopLen {
		f, ok, err := e.Push(signal[i : i+hopLen])
		if err != nil {
			t.Fatal(err)
		}
		if ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// TestStability verifies Testable Property 5: identical inputs produce
// byte-identical MFCC frames.
func TestStability(t *testing.T) {
	cfg := DefaultConfig()
	signal := sine(440, float64(cfg.SampleRate), 0.4, cfg.SampleRate*2)

	e1, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	e2, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	f1 := pushAll(t, e1, signal, cfg.HopLen)
	f2 := pushAll(t, e2, signal, cfg.HopLen)

	if len(f1) != len(f2) {
		t.Fatalf("frame count mismatch: %d vs %d", len(f1), len(f2))
	}
	for i := range f1 {
		for j := range f1[i] {
			if f1[i][j] != f2[i][j] {
				t.Fatalf("frame %d coeff %d differs: %v vs %v", i, j, f1[i][j], f2[i][j])
			}
		}
	}
}

// TestFrameCount checks frame production matches the accumulate-then-emit
// contract described in spec §4.6: the first frame emits once the analysis
// window (FrameLen) has filled, then one frame per subsequent hop.
func TestFrameCount(t *testing.T) {
	cfg := DefaultConfig()
	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}

	signal := sine(200, float64(cfg.SampleRate), 0.3, cfg.SampleRate)
	frames := pushAll(t, e, signal, cfg.HopLen)

	hops := len(signal) / cfg.HopLen
	warmupHops := cfg.FrameLen / cfg.HopLen
	want := hops - warmupHops + 1
	if len(frames) != want {
		t.Fatalf("got %d frames, want %d", len(frames), want)
	}
	for _, f := range frames {
		if len(f) != cfg.NCoeffs {
			t.Fatalf("frame has %d coeffs, want %d", len(f), cfg.NCoeffs)
		}
	}
}

func TestRejectsWrongHopLength(t *testing.T) {
	cfg := DefaultConfig()
	e, err := New(cfg)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := e.Push(make([]float32, cfg.HopLen+1)); err == nil {
		t.Fatal("expected error for mismatched hop length")
	}
}

func TestInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NCoeffs = cfg.NFilters + 1
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for NCoeffs > NFilters")
	}
}
