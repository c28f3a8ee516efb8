package wakeword

import (
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/ausocean/utils/logging"
	"gonum.org/v1/gonum/mat"

	"github.com/wakespot/wakespot/mfcc"
	"github.com/wakespot/wakespot/wavsrc"
)

// Progress reports per-epoch training status, per spec §5's "cooperative
// progress callbacks". testAcc is only meaningful on epochs where the test
// set was evaluated (every TestEpochs iterations); it is -1 otherwise.
type Progress func(epoch int, loss, testAcc float64)

// TrainConfig controls model training.
type TrainConfig struct {
	Name         string
	Threshold    float64
	AvgThreshold float64
	Arch         ArchType
	MFCC         mfcc.Config
	Epochs       int
	LR           float64
	TestEpochs   int
	ScoreRef     float64
	Seed         int64
}

// Trainer trains Model artifacts from labeled WAV sample directories.
type Trainer struct {
	cfg TrainConfig
	log logging.Logger
}

// NewTrainer constructs a Trainer.
func NewTrainer(cfg TrainConfig, log logging.Logger) *Trainer {
	return &Trainer{cfg: cfg, log: log}
}

type labeledSample struct {
	label  string
	window mfcc.Window
	rms    float64
}

// parseLabel extracts the bracketed tag from a sample filename, e.g.
// "[ok_casa]001.wav" -> "ok_casa". Untagged files and files tagged "[none]"
// are negatives, returned as the sentinel noneLabel.
func parseLabel(filename string) string {
	base := filepath.Base(filename)
	if !strings.HasPrefix(base, "[") {
		return noneLabel
	}
	end := strings.Index(base, "]")
	if end <= 1 {
		return noneLabel
	}
	tag := base[1:end]
	if tag == "" || tag == noneLabel {
		return noneLabel
	}
	return tag
}

// Train reads labeled WAV samples from trainDir and testDir, trains a
// feed-forward classifier by plain SGD over cross-entropy loss, and
// returns the resulting Model artifact.
func (t *Trainer) Train(trainDir, testDir string, progress Progress) (*Model, error) {
	trainFiles, err := listWAVFiles(trainDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIoFailure, err)
	}
	if len(trainFiles) == 0 {
		return nil, fmt.Errorf("%w: no training samples in %s", ErrTrainingFailed, trainDir)
	}
	testFiles, err := listWAVFiles(testDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIoFailure, err)
	}

	trainSamples, trainW, err := t.loadSamples(trainFiles)
	if err != nil {
		return nil, err
	}
	testSamples, _, err := t.loadSamples(testFiles)
	if err != nil {
		return nil, err
	}

	labels := collectLabels(trainSamples)
	labelIdx := make(map[string]int, len(labels))
	for i, l := range labels {
		labelIdx[l] = i
	}

	mfccSize := t.cfg.MFCC.NCoeffs
	trainVecs := toTrainingVectors(trainSamples, trainW, mfccSize, labelIdx)
	testVecs := toTrainingVectors(testSamples, trainW, mfccSize, labelIdx)

	rng := rand.New(rand.NewSource(t.cfg.Seed))
	layers := NewModelWeights(t.cfg.Arch, trainW, mfccSize, labels, rng)

	epochs := t.cfg.Epochs
	if epochs <= 0 {
		epochs = 100
	}
	lr := t.cfg.LR
	if lr <= 0 {
		lr = 0.01
	}
	testEvery := t.cfg.TestEpochs
	if testEvery <= 0 {
		testEvery = 10
	}

	order := make([]int, len(trainVecs))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

		var epochLoss float64
		for _, idx := range order {
			s := trainVecs[idx]
			loss, err := trainStep(layers, s.x, s.label, lr)
			if err != nil {
				return nil, err
			}
			if math.IsNaN(loss) {
				return nil, fmt.Errorf("%w: loss diverged at epoch %d", ErrTrainingFailed, epoch)
			}
			epochLoss += loss
		}
		epochLoss /= float64(len(order))

		testAcc := -1.0
		if len(testVecs) > 0 && (epoch%testEvery == 0 || epoch == epochs-1) {
			testAcc = evaluate(layers, testVecs)
		}
		if progress != nil {
			progress(epoch, epochLoss, testAcc)
		}
		if t.log != nil {
			t.log.Debug("training epoch complete", "epoch", epoch, "loss", epochLoss)
		}
	}

	return &Model{
		MName:           t.cfg.Name,
		Threshold:       t.cfg.Threshold,
		AvgThreshold:    t.cfg.AvgThreshold,
		MFCCSizeField:   uint16(mfccSize),
		RMSLevelField:   maxRMSOf(trainSamples),
		Labels:          labels,
		Type:            t.cfg.Arch,
		Weights:         layers,
		TrainWindowSize: trainW,
		ScoreRef:        t.cfg.ScoreRef,
	}, nil
}

func listWAVFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !strings.EqualFold(filepath.Ext(e.Name()), ".wav") {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// loadSamples decodes every WAV file and computes its MFCC window,
// returning the samples and the maximum window length observed.
func (t *Trainer) loadSamples(paths []string) ([]labeledSample, int, error) {
	var samples []labeledSample
	maxLen := 0
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %s: %v", ErrIoFailure, p, err)
		}
		dec, err := wavsrc.Decode(f)
		f.Close()
		if err != nil {
			return nil, 0, fmt.Errorf("%w: %s: %v", ErrIoFailure, p, err)
		}
		window, rms, err := computeWindow(dec, t.cfg.MFCC)
		if err != nil {
			return nil, 0, fmt.Errorf("computing features for %s: %w", p, err)
		}
		samples = append(samples, labeledSample{label: parseLabel(p), window: window, rms: rms})
		if len(window) > maxLen {
			maxLen = len(window)
		}
	}
	return samples, maxLen, nil
}

// maxRMSOf returns the maximum per-sample RMS observed across samples, per
// the "maximum RMS observed across training samples" definition in spec §3.
func maxRMSOf(samples []labeledSample) float64 {
	var max float64
	for _, s := range samples {
		if s.rms > max {
			max = s.rms
		}
	}
	return max
}

func collectLabels(samples []labeledSample) []string {
	set := map[string]bool{noneLabel: true}
	for _, s := range samples {
		set[s.label] = true
	}
	labels := make([]string, 0, len(set))
	for l := range set {
		labels = append(labels, l)
	}
	sort.Strings(labels)
	return labels
}

type trainingVector struct {
	x     []float64
	label int
}

func toTrainingVectors(samples []labeledSample, trainW, mfccSize int, labelIdx map[string]int) []trainingVector {
	out := make([]trainingVector, 0, len(samples))
	for _, s := range samples {
		idx, ok := labelIdx[s.label]
		if !ok {
			idx = labelIdx[noneLabel]
		}
		out = append(out, trainingVector{
			x:     flattenWindow(zeroPadWindow(s.window, trainW), trainW, mfccSize),
			label: idx,
		})
	}
	return out
}

// layerCache retains the values needed to backpropagate through one layer.
type layerCache struct {
	input  []float64
	preAct []float64
}

func forwardCache(layers []LayerWeights, x []float64) ([]float64, []layerCache) {
	caches := make([]layerCache, len(layers))
	cur := x
	for i, l := range layers {
		z := denseForward(l, cur)
		caches[i] = layerCache{input: cur, preAct: z}
		if i < len(layers)-1 {
			act := append([]float64{}, z...)
			relu(act)
			cur = act
		} else {
			cur = append([]float64{}, z...)
			softmax(cur)
		}
	}
	return cur, caches
}

func denseForward(l LayerWeights, x []float64) []float64 {
	w := mat.NewDense(l.Out, l.In, l.W)
	xv := mat.NewVecDense(l.In, x)
	var yv mat.VecDense
	yv.MulVec(w, xv)
	out := make([]float64, l.Out)
	for j := 0; j < l.Out; j++ {
		out[j] = yv.AtVec(j) + l.B[j]
	}
	return out
}

// trainStep runs one forward/backward/update pass for a single example and
// returns its cross-entropy loss.
func trainStep(layers []LayerWeights, x []float64, label int, lr float64) (float64, error) {
	probs, caches := forwardCache(layers, x)
	if label < 0 || label >= len(probs) {
		return 0, fmt.Errorf("wakeword: label index %d out of range", label)
	}
	loss := -math.Log(math.Max(probs[label], 1e-12))

	dz := append([]float64{}, probs...)
	dz[label] -= 1

	for i := len(layers) - 1; i >= 0; i-- {
		l := layers[i]
		cache := caches[i]

		dx := make([]float64, l.In)
		for o := 0; o < l.Out; o++ {
			g := dz[o]
			base := o * l.In
			for in := 0; in < l.In; in++ {
				dx[in] += l.W[base+in] * g
				l.W[base+in] -= lr * g * cache.input[in]
			}
			l.B[o] -= lr * g
		}

		if i > 0 {
			prevPreAct := caches[i-1].preAct
			for k := range dx {
				if prevPreAct[k] <= 0 {
					dx[k] = 0
				}
			}
		}
		dz = dx
	}

	return loss, nil
}

func evaluate(layers []LayerWeights, samples []trainingVector) float64 {
	if len(samples) == 0 {
		return -1
	}
	correct := 0
	for _, s := range samples {
		probs, _ := forwardCache(layers, s.x)
		best := 0
		for i, p := range probs {
			if p > probs[best] {
				best = i
			}
		}
		if best == s.label {
			correct++
		}
	}
	return float64(correct) / float64(len(samples))
}
