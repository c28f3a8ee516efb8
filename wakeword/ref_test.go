package wakeword

import (
	"math/rand"
	"testing"

	"github.com/wakespot/wakespot/mfcc"
)

func randomWindow(rng *rand.Rand, frames, m int) mfcc.Window {
	w := make(mfcc.Window, frames)
	for i := range w {
		v := make([]float64, m)
		for j := range v {
			v[j] = rng.Float64()*2 - 1
		}
		w[i] = v
	}
	return w
}

// TestRefScoreIdentical verifies that scoring a reference against its own
// (sole) template yields the maximal similarity, i.e. sigma(1, ref) == 1.
func TestRefScoreIdentical(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	tmpl := randomWindow(rng, 30, 16)

	r := &Ref{WName: "hey_test", MFCCSizeField: 16, Templates: []mfcc.Window{tmpl}, Mode: Max}

	score, err := r.Score(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	if score < 0.99 {
		t.Fatalf("score against identical template = %v, want ~1.0", score)
	}
}

// TestRefScoreDissimilar checks that an unrelated window scores lower than
// an identical one.
func TestRefScoreDissimilar(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	tmpl := randomWindow(rng, 30, 16)
	other := randomWindow(rng, 30, 16)

	r := &Ref{WName: "hey_test", MFCCSizeField: 16, Templates: []mfcc.Window{tmpl}, Mode: Max}

	same, err := r.Score(tmpl)
	if err != nil {
		t.Fatal(err)
	}
	diff, err := r.Score(other)
	if err != nil {
		t.Fatal(err)
	}
	if diff >= same {
		t.Fatalf("dissimilar score %v should be lower than identical score %v", diff, same)
	}
}

func TestAggregateModes(t *testing.T) {
	sims := []float64{0.2, 0.5, 0.9}
	if got := aggregate(sims, Max); got != 0.9 {
		t.Fatalf("Max = %v, want 0.9", got)
	}
	if got := aggregate(sims, Avg); got < 0.53 || got > 0.54 {
		t.Fatalf("Avg = %v, want ~0.5333", got)
	}
	if got := aggregate(sims, Median); got != 0.5 {
		t.Fatalf("Median = %v, want 0.5", got)
	}
}

func TestSigma(t *testing.T) {
	if Sigma(0.22, 0.22) != 0 {
		t.Fatal("score at reference point should be 0")
	}
	if Sigma(1, 0.22) != 1 {
		t.Fatal("score at 1 should be 1")
	}
	if Sigma(0, 0.22) != 0 {
		t.Fatal("score below reference should clamp to 0")
	}
}
