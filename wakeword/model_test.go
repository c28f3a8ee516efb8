package wakeword

import (
	"math/rand"
	"testing"

	"github.com/wakespot/wakespot/mfcc"
)

func TestModelScoreNoneSuppressed(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	labels := []string{noneLabel, "ok_casa"}
	weights := NewModelWeights(Small, 10, 4, labels, rng)

	// Force the network to strongly prefer "none" by setting the second
	// output's last-layer weights and bias to -10.
	last := &weights[len(weights)-1]
	for i := range last.W[last.In : 2*last.In] {
		last.W[last.In+i] = -10
	}
	last.B[1] = -10

	m := &Model{
		MName:           "wake",
		MFCCSizeField:   4,
		Labels:          labels,
		Type:            Small,
		Weights:         weights,
		TrainWindowSize: 10,
	}

	window := make(mfcc.Window, 10)
	for i := range window {
		window[i] = []float64{0.1, 0.1, 0.1, 0.1}
	}

	score, err := m.Score(window)
	if err != nil {
		t.Fatal(err)
	}
	if score != 0 {
		t.Fatalf("score for predicted none = %v, want 0", score)
	}
}

func TestFlattenWindowPadding(t *testing.T) {
	w := mfcc.Window{{1, 2}, {3, 4}}
	flat := flattenWindow(w, 3, 2)
	want := []float64{1, 2, 3, 4, 0, 0}
	if len(flat) != len(want) {
		t.Fatalf("got len %d, want %d", len(flat), len(want))
	}
	for i := range want {
		if flat[i] != want[i] {
			t.Fatalf("index %d: got %v want %v", i, flat[i], want[i])
		}
	}
}

func TestForwardProducesValidSoftmax(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	labels := []string{noneLabel, "a", "b"}
	layers := NewModelWeights(Medium, 5, 4, labels, rng)

	x := make([]float64, 20)
	for i := range x {
		x[i] = rng.Float64()
	}
	probs, err := forward(layers, x)
	if err != nil {
		t.Fatal(err)
	}
	var sum float64
	for _, p := range probs {
		if p < 0 || p > 1 {
			t.Fatalf("probability %v out of range", p)
		}
		sum += p
	}
	if sum < 0.999 || sum > 1.001 {
		t.Fatalf("softmax sums to %v, want ~1", sum)
	}
}
