package detector

import (
	"errors"
	"testing"

	"github.com/wakespot/wakespot/audiofmt"
	"github.com/wakespot/wakespot/mfcc"
	"github.com/wakespot/wakespot/wakeword"
)

// fakeScorer implements wakeword.Scorer with a caller-controlled score
// sequence, decoupling detector FSM tests from the real template/classifier
// scoring math (covered separately in the wakeword package's own tests).
type fakeScorer struct {
	name         string
	mfccSize     uint16
	windowSize   int
	threshold    float64
	avgThreshold float64
	rmsLevel     float64

	scores []float64 // one entry consumed per Score call; last value repeats once exhausted.
	calls  int
}

func (f *fakeScorer) Name() string { return f.name }

func (f *fakeScorer) Score(window mfcc.Window) (float64, error) {
	if len(f.scores) == 0 {
		return 0, nil
	}
	i := f.calls
	if i >= len(f.scores) {
		i = len(f.scores) - 1
	}
	f.calls++
	return f.scores[i], nil
}

func (f *fakeScorer) MFCCSize() uint16 { return f.mfccSize }
func (f *fakeScorer) Thresholds() (float64, float64) {
	return f.threshold, f.avgThreshold
}
func (f *fakeScorer) RMSLevel() float64 { return f.rmsLevel }
func (f *fakeScorer) WindowSize() int   { return f.windowSize }

var _ wakeword.Scorer = (*fakeScorer)(nil)

// errScorer always fails to score, exercising the scoring-error skip path.
type errScorer struct{ name string }

func (e *errScorer) Name() string                      { return e.name }
func (e *errScorer) Score(mfcc.Window) (float64, error) { return 0, errors.New("boom") }
func (e *errScorer) MFCCSize() uint16                   { return 16 }
func (e *errScorer) Thresholds() (float64, float64)     { return 0, 0 }
func (e *errScorer) RMSLevel() float64                  { return 0 }
func (e *errScorer) WindowSize() int                    { return 3 }

var _ wakeword.Scorer = (*errScorer)(nil)

func testFmt() audiofmt.Fmt {
	return audiofmt.Fmt{
		SampleRate:    16000,
		Channels:      1,
		BitsPerSample: 32,
		SampleFormat:  audiofmt.Float,
		Endianness:    audiofmt.Little,
	}
}

func newTestDetector(t *testing.T, cfg Config) *Detector {
	t.Helper()
	cfg.Fmt = testFmt()
	cfg.MFCC = mfcc.DefaultConfig()
	d, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return d
}

// hop returns one 10ms (160-sample) canonical-domain hop. The exact content
// is irrelevant to tests built on fakeScorer, which ignores its window
// argument, but must be well-formed input for the real MFCC extractor ahead
// of it in the pipeline.
func hop(n int, amplitude float32) []float32 {
	h := make([]float32, n)
	for i := range h {
		if i%2 == 0 {
			h[i] = amplitude
		} else {
			h[i] = -amplitude
		}
	}
	return h
}

// feedHops drives n hops through the detector, returning the first non-nil
// Detection encountered, or nil if none occurred, along with how many hops
// were consumed to produce it (0 if none).
func feedHops(t *testing.T, d *Detector, n int) (*wakeword.Detection, int) {
	t.Helper()
	for i := 1; i <= n; i++ {
		det, err := d.ProcessF32(hop(160, 0.1))
		if err != nil {
			t.Fatalf("ProcessF32 error: %v", err)
		}
		if det != nil {
			return det, i
		}
	}
	return nil, 0
}

// S1: zero wakewords and a long run of silence never produces a detection,
// and GetPartialDetection is always nil.
func TestNoWakewordsNoDetection(t *testing.T) {
	d := newTestDetector(t, Config{Threshold: 0.5, MinScores: 10})

	for i := 0; i < 1000; i++ {
		det, err := d.ProcessF32(hop(160, 0))
		if err != nil {
			t.Fatalf("ProcessF32 error: %v", err)
		}
		if det != nil {
			t.Fatalf("unexpected detection at hop %d with no wakewords loaded", i)
		}
		if d.GetPartialDetection() != nil {
			t.Fatalf("GetPartialDetection non-nil at hop %d with no wakewords loaded", i)
		}
	}
}

// S2: eager mode promotes as soon as MinScores consecutive above-threshold
// frames have been seen, then stays silent for a full window before it can
// fire again.
func TestEagerPromotionAndLockout(t *testing.T) {
	scorer := &fakeScorer{name: "ok_casa", mfccSize: 16, windowSize: 3, threshold: 0.5, scores: []float64{0.9}}

	d := newTestDetector(t, Config{Threshold: 0.5, MinScores: 3, Eager: true})
	if err := d.AddWakeword(scorer); err != nil {
		t.Fatalf("AddWakeword error: %v", err)
	}

	det, hops := feedHops(t, d, 20)
	if det == nil {
		t.Fatal("expected a detection, got none")
	}
	if det.Name != "ok_casa" {
		t.Errorf("detection name = %q, want ok_casa", det.Name)
	}
	if det.Counter != 3 {
		t.Errorf("detection counter = %d, want 3 (MinScores)", det.Counter)
	}
	// The resampler lags one call before its first output, and the MFCC
	// extractor needs FrameLen/HopLen = 3 hops to fill its analysis window
	// before the first frame; the 3rd scored frame (the promotion point)
	// lands on the 6th ProcessF32 call.
	if wantHops := 6; hops != wantHops {
		t.Errorf("detection fired after %d hops, want %d", hops, wantHops)
	}

	// Lockout: no second detection until WindowSize (3) more frames have
	// elapsed, even though the score stays constantly above threshold.
	for i := 0; i < scorer.windowSize; i++ {
		d2, err := d.ProcessF32(hop(160, 0.1))
		if err != nil {
			t.Fatalf("ProcessF32 error: %v", err)
		}
		if d2 != nil {
			t.Fatalf("unexpected second detection during lockout at hop %d", i)
		}
	}
}

// S3: non-eager mode waits for a strict decrease after MinScores frames
// have been reached.
func TestNonEagerPromotionOnDecrease(t *testing.T) {
	scorer := &fakeScorer{
		name: "ok_casa", mfccSize: 16, windowSize: 3, threshold: 0.5,
		scores: []float64{0.6, 0.7, 0.8, 0.75, 0.9},
	}
	d := newTestDetector(t, Config{Threshold: 0.5, MinScores: 3, Eager: false})
	if err := d.AddWakeword(scorer); err != nil {
		t.Fatalf("AddWakeword error: %v", err)
	}

	det, _ := feedHops(t, d, 20)
	if det == nil {
		t.Fatal("expected a detection once the score decreased after reaching MinScores")
	}
	// Best frame seen before the decrease was the 0.8 frame (Counter 3).
	if det.Score != 0.8 {
		t.Errorf("detection score = %v, want 0.8 (the local max before the decrease)", det.Score)
	}
}

// S4 (decoupled from the real classifier): a wakeword whose score never
// crosses threshold never produces a detection or surviving partial.
func TestScoreBelowThresholdNeverDetects(t *testing.T) {
	scorer := &fakeScorer{name: "ok_casa", mfccSize: 16, windowSize: 3, threshold: 0.5, scores: []float64{0.1}}
	d := newTestDetector(t, Config{Threshold: 0.5, MinScores: 3, Eager: true})
	if err := d.AddWakeword(scorer); err != nil {
		t.Fatalf("AddWakeword error: %v", err)
	}

	det, _ := feedHops(t, d, 50)
	if det != nil {
		t.Fatalf("unexpected detection with a score that never crosses threshold: %+v", det)
	}
	if d.GetPartialDetection() != nil {
		t.Fatal("expected no surviving partial when score never crosses threshold")
	}
}

// Property 7: at most one detection per utterance; detections are spaced
// at least WindowSize scored frames apart.
func TestDetectionsAreSpacedByWindowSize(t *testing.T) {
	scorer := &fakeScorer{name: "ok_casa", mfccSize: 16, windowSize: 4, threshold: 0.5, scores: []float64{0.9}}
	d := newTestDetector(t, Config{Threshold: 0.5, MinScores: 2, Eager: true})
	if err := d.AddWakeword(scorer); err != nil {
		t.Fatalf("AddWakeword error: %v", err)
	}

	var detectionHops []int
	for i := 1; i <= 60; i++ {
		det, err := d.ProcessF32(hop(160, 0.1))
		if err != nil {
			t.Fatalf("ProcessF32 error: %v", err)
		}
		if det != nil {
			detectionHops = append(detectionHops, i)
		}
	}

	if len(detectionHops) < 2 {
		t.Fatalf("expected multiple detections over 60 hops, got %d", len(detectionHops))
	}
	for i := 1; i < len(detectionHops); i++ {
		gap := detectionHops[i] - detectionHops[i-1]
		if gap < scorer.windowSize {
			t.Errorf("detections at hops %d and %d are only %d apart, want >= %d (WindowSize)",
				detectionHops[i-1], detectionHops[i], gap, scorer.windowSize)
		}
	}
}

// Property 9: raising the detector's threshold never increases the set of
// frames that cross candidacy, so it never produces more detections than a
// lower threshold over the same score sequence.
func TestThresholdMonotonicity(t *testing.T) {
	sequence := []float64{0.3, 0.6, 0.3, 0.65, 0.3, 0.7, 0.3, 0.55, 0.3, 0.9}

	countDetections := func(threshold float64) int {
		scorer := &fakeScorer{name: "ok_casa", mfccSize: 16, windowSize: 2, threshold: 0, scores: sequence}
		d := newTestDetector(t, Config{Threshold: threshold, MinScores: 1, Eager: true})
		if err := d.AddWakeword(scorer); err != nil {
			t.Fatalf("AddWakeword error: %v", err)
		}
		n := 0
		for i := 0; i < len(sequence)+5; i++ {
			det, err := d.ProcessF32(hop(160, 0.1))
			if err != nil {
				t.Fatalf("ProcessF32 error: %v", err)
			}
			if det != nil {
				n++
			}
		}
		return n
	}

	low := countDetections(0.5)
	high := countDetections(0.8)
	if high > low {
		t.Errorf("raising threshold increased detections: low=%d high=%d", low, high)
	}
}

// Scoring errors from one wakeword are logged and skipped rather than
// aborting the frame.
func TestScoringErrorIsSkipped(t *testing.T) {
	bad := &errScorer{name: "broken"}
	good := &fakeScorer{name: "ok_casa", mfccSize: 16, windowSize: 2, threshold: 0.5, scores: []float64{0.9}}

	d := newTestDetector(t, Config{Threshold: 0.5, MinScores: 2, Eager: true})
	if err := d.AddWakeword(bad); err != nil {
		t.Fatalf("AddWakeword(bad) error: %v", err)
	}
	if err := d.AddWakeword(good); err != nil {
		t.Fatalf("AddWakeword(good) error: %v", err)
	}

	det, _ := feedHops(t, d, 20)
	if det == nil {
		t.Fatal("expected a detection from the healthy wakeword despite the broken one erroring")
	}
	if det.Name != "ok_casa" {
		t.Errorf("detection name = %q, want ok_casa", det.Name)
	}
}

// Duplicate names and MFCC size mismatches are rejected without mutating
// detector state.
func TestAddWakewordRejectsDuplicateAndMismatch(t *testing.T) {
	d := newTestDetector(t, Config{Threshold: 0.5, MinScores: 3})
	first := &fakeScorer{name: "ok_casa", mfccSize: 16, windowSize: 3, threshold: 0.5}
	if err := d.AddWakeword(first); err != nil {
		t.Fatalf("AddWakeword error: %v", err)
	}

	dup := &fakeScorer{name: "ok_casa", mfccSize: 16, windowSize: 3, threshold: 0.5}
	if err := d.AddWakeword(dup); !errors.Is(err, wakeword.ErrIncompatibleArtifact) {
		t.Errorf("AddWakeword(dup) error = %v, want ErrIncompatibleArtifact", err)
	}

	mismatched := &fakeScorer{name: "other", mfccSize: 8, windowSize: 3, threshold: 0.5}
	if err := d.AddWakeword(mismatched); !errors.Is(err, wakeword.ErrIncompatibleArtifact) {
		t.Errorf("AddWakeword(mismatched) error = %v, want ErrIncompatibleArtifact", err)
	}
}
