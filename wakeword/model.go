package wakeword

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/wakespot/wakespot/mfcc"
)

// noneLabel is the sentinel label meaning "not a wakeword".
const noneLabel = "none"

// Name implements Scorer.
func (m *Model) Name() string { return m.MName }

// MFCCSize implements Scorer.
func (m *Model) MFCCSize() uint16 { return m.MFCCSizeField }

// Thresholds implements Scorer.
func (m *Model) Thresholds() (float64, float64) { return m.Threshold, m.AvgThreshold }

// RMSLevel implements Scorer.
func (m *Model) RMSLevel() float64 { return m.RMSLevelField }

// WindowSize implements Scorer.
func (m *Model) WindowSize() int { return m.TrainWindowSize }

// Score runs the feed-forward classifier over window (flattened, zero
// padded/truncated to TrainWindowSize frames) and maps the winning label's
// softmax probability through Sigma, per spec §4.5.2. A predicted "none"
// label always scores 0.
func (m *Model) Score(window mfcc.Window) (float64, error) {
	return m.ScoreWithRef(window, 0.22)
}

// ScoreWithRef is Score parameterized by an explicit detector-wide score
// reference, used when the artifact does not override it.
func (m *Model) ScoreWithRef(window mfcc.Window, scoreRef float64) (float64, error) {
	ref := scoreRef
	if m.ScoreRef != 0 {
		ref = m.ScoreRef
	}

	input := flattenWindow(window, m.TrainWindowSize, int(m.MFCCSizeField))
	probs, err := forward(m.Weights, input)
	if err != nil {
		return 0, fmt.Errorf("wakeword %q: %w", m.MName, err)
	}

	best := 0
	for i, p := range probs {
		if p > probs[best] {
			best = i
		}
	}
	if best >= len(m.Labels) {
		return 0, fmt.Errorf("wakeword %q: label index %d out of range", m.MName, best)
	}
	if m.Labels[best] == noneLabel {
		return 0, nil
	}
	return Sigma(probs[best], ref), nil
}

// flattenWindow zero-pads or truncates window to exactly wantFrames frames
// of mfccSize coefficients each, then flattens row-major into one vector.
func flattenWindow(window mfcc.Window, wantFrames, mfccSize int) []float64 {
	out := make([]float64, wantFrames*mfccSize)
	for i := 0; i < wantFrames && i < len(window); i++ {
		copy(out[i*mfccSize:(i+1)*mfccSize], window[i])
	}
	return out
}

// forward runs x through the dense+ReLU layers followed by a softmax
// output layer.
func forward(layers []LayerWeights, x []float64) ([]float64, error) {
	if len(layers) == 0 {
		return nil, fmt.Errorf("model has no layers")
	}
	cur := x
	for i, l := range layers {
		if len(cur) != l.In {
			return nil, fmt.Errorf("layer %d: input size %d, want %d", i, len(cur), l.In)
		}
		w := mat.NewDense(l.Out, l.In, l.W)
		xv := mat.NewVecDense(l.In, cur)
		var yv mat.VecDense
		yv.MulVec(w, xv)

		out := make([]float64, l.Out)
		for j := 0; j < l.Out; j++ {
			out[j] = yv.AtVec(j) + l.B[j]
		}
		if i < len(layers)-1 {
			relu(out)
		} else {
			softmax(out)
		}
		cur = out
	}
	return cur, nil
}

func relu(x []float64) {
	for i, v := range x {
		if v < 0 {
			x[i] = 0
		}
	}
}

func softmax(x []float64) {
	max := x[0]
	for _, v := range x[1:] {
		if v > max {
			max = v
		}
	}
	var sum float64
	for i, v := range x {
		e := math.Exp(v - max)
		x[i] = e
		sum += e
	}
	for i := range x {
		x[i] /= sum
	}
}

// NewModelWeights initializes Xavier-uniform weights for an architecture
// sized for trainWindowSize*mfccSize inputs and len(labels) outputs.
func NewModelWeights(arch ArchType, trainWindowSize, mfccSize int, labels []string, rng *rand.Rand) []LayerWeights {
	sizes := append([]int{trainWindowSize * mfccSize}, arch.HiddenSizes()...)
	sizes = append(sizes, len(labels))

	layers := make([]LayerWeights, len(sizes)-1)
	for i := 0; i < len(sizes)-1; i++ {
		in, out := sizes[i], sizes[i+1]
		bound := math.Sqrt(6.0 / float64(in+out))
		w := make([]float64, out*in)
		for j := range w {
			w[j] = (rng.Float64()*2 - 1) * bound
		}
		layers[i] = LayerWeights{W: w, B: make([]float64, out), In: in, Out: out}
	}
	return layers
}
