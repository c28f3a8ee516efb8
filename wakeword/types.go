// Package wakeword implements the two wakeword artifact kinds — a
// template-based Ref and a classifier-based Model — their builders, and the
// scoring they expose to the detector.
package wakeword

import "github.com/wakespot/wakespot/mfcc"

// ScoreMode controls how per-template similarities are aggregated into a
// single reference score.
type ScoreMode int

const (
	// Max takes the highest similarity across templates.
	Max ScoreMode = iota
	// Avg takes the mean similarity across templates.
	Avg
	// Median takes the median similarity across templates.
	Median
)

// Scorer is the capability shared by both wakeword artifact kinds, per the
// tagged-variant design in spec §9.
type Scorer interface {
	// Name returns the wakeword's declared name.
	Name() string
	// Score computes a raw similarity/probability-like score in [0, 1] for
	// the given MFCC window.
	Score(window mfcc.Window) (float64, error)
	// MFCCSize returns the coefficient count M this artifact was built with.
	MFCCSize() uint16
	// Thresholds returns the per-wakeword threshold and avg_threshold
	// overrides (0 means "use detector default").
	Thresholds() (threshold, avgThreshold float64)
	// RMSLevel returns the maximum RMS observed across training samples.
	RMSLevel() float64
	// WindowSize returns the number of consecutive MFCC frames this
	// artifact compares against.
	WindowSize() int
}

// Ref is a template-based wakeword artifact: one MFCCWindow per training
// sample, optionally with a prepended element-wise average template.
type Ref struct {
	WName         string
	Threshold     float64 // 0 means "use detector default".
	AvgThreshold  float64 // 0 means "use detector default".
	MFCCSizeField uint16
	RMSLevelField float64
	Templates     []mfcc.Window
	Mode          ScoreMode
	ScoreRef      float64 // sigma() reference point, 0 means "use detector default".
}

// Model is a classifier-based wakeword artifact: a small feed-forward net
// trained over labeled MFCC windows.
type Model struct {
	MName           string
	Threshold       float64
	AvgThreshold    float64
	MFCCSizeField   uint16
	RMSLevelField   float64
	Labels          []string
	Type            ArchType
	Weights         []LayerWeights
	TrainWindowSize int
	ScoreRef        float64
}

// ArchType names the feed-forward architecture a Model was trained with.
type ArchType int

const (
	// Small is a single dense hidden layer (32 units).
	Small ArchType = iota
	// Medium is two dense hidden layers (64, 32 units).
	Medium
	// Large is three dense hidden layers (128, 64, 32 units).
	Large
)

// HiddenSizes returns the hidden layer widths for the architecture.
func (a ArchType) HiddenSizes() []int {
	switch a {
	case Small:
		return []int{32}
	case Medium:
		return []int{64, 32}
	case Large:
		return []int{128, 64, 32}
	default:
		return nil
	}
}

// LayerWeights holds one dense layer's weight matrix (OutxIn, row-major)
// and bias vector.
type LayerWeights struct {
	W       []float64 // len == Out*In
	B       []float64 // len == Out
	In, Out int
}

// Partial is a candidate wakeword match that has crossed threshold but has
// not yet been promoted to a Detection (non-eager) or reached MinScores
// (eager).
type Partial struct {
	Name     string
	Score    float64
	AvgScore float64
	Counter  int
	Gain     float64
	Features mfcc.Window
}

// Detection is an emitted, confirmed wakeword match.
type Detection struct {
	Name     string
	Score    float64
	AvgScore float64
	Gain     float64
	Counter  int
}

// Sigma maps a raw similarity/probability s to a probability-like score
// via the configured score reference point, per spec §4.5.1/§4.5.2:
//
//	sigma(s, ref) = clamp((s - ref) / (1 - ref), 0, 1)
func Sigma(s, ref float64) float64 {
	if ref >= 1 {
		return 0
	}
	v := (s - ref) / (1 - ref)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
