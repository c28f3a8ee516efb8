package wakeword

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"

	"github.com/wakespot/wakespot/mfcc"
)

// sakoeChibaBand bounds how far a DTW-style alignment may deviate from the
// diagonal, per spec §4.5.1.
const sakoeChibaBand = 5

// Name implements Scorer.
func (r *Ref) Name() string { return r.WName }

// MFCCSize implements Scorer.
func (r *Ref) MFCCSize() uint16 { return r.MFCCSizeField }

// Thresholds implements Scorer.
func (r *Ref) Thresholds() (float64, float64) { return r.Threshold, r.AvgThreshold }

// RMSLevel implements Scorer.
func (r *Ref) RMSLevel() float64 { return r.RMSLevelField }

// WindowSize implements Scorer.
func (r *Ref) WindowSize() int {
	max := 0
	for _, t := range r.Templates {
		if len(t) > max {
			max = len(t)
		}
	}
	return max
}

// Score computes the DTW-style similarity of window against every stored
// template and aggregates per r.Mode, mapping the aggregate through Sigma
// with r.ScoreRef (or 0.22 if r.ScoreRef is unset, 0 means unset here
// since 0 is not a meaningful score reference).
func (r *Ref) Score(window mfcc.Window) (float64, error) {
	return r.score(window, defaultScoreRef(r.ScoreRef))
}

// ScoreWithRef is Score parameterized by an explicit detector-wide score
// reference, used when the artifact does not override it.
func (r *Ref) ScoreWithRef(window mfcc.Window, scoreRef float64) (float64, error) {
	ref := scoreRef
	if r.ScoreRef != 0 {
		ref = r.ScoreRef
	}
	return r.score(window, ref)
}

func defaultScoreRef(v float64) float64 {
	if v != 0 {
		return v
	}
	return 0.22
}

func (r *Ref) score(window mfcc.Window, scoreRef float64) (float64, error) {
	if len(r.Templates) == 0 {
		return 0, fmt.Errorf("wakeword %q: reference has no templates", r.WName)
	}

	sims := make([]float64, 0, len(r.Templates))
	for _, t := range r.Templates {
		s, err := similarity(window, t)
		if err != nil {
			return 0, fmt.Errorf("wakeword %q: %w", r.WName, err)
		}
		sims = append(sims, s)
	}

	agg := aggregate(sims, r.Mode)
	return Sigma(agg, scoreRef), nil
}

func aggregate(sims []float64, mode ScoreMode) float64 {
	switch mode {
	case Avg:
		var sum float64
		for _, s := range sims {
			sum += s
		}
		return sum / float64(len(sims))
	case Median:
		sorted := append([]float64{}, sims...)
		sort.Float64s(sorted)
		n := len(sorted)
		if n%2 == 1 {
			return sorted[n/2]
		}
		return (sorted[n/2-1] + sorted[n/2]) / 2
	default: // Max
		best := sims[0]
		for _, s := range sims[1:] {
			if s > best {
				best = s
			}
		}
		return best
	}
}

// similarity aligns query against template (truncating or zero-extending
// query to template's length), then computes a Sakoe-Chiba banded
// comparison of normalized-Euclidean-derived similarity per frame, finally
// averaging the per-frame similarity along the best band-constrained path.
func similarity(query, template mfcc.Window) (float64, error) {
	if len(template) == 0 {
		return 0, fmt.Errorf("empty template")
	}
	m := template.M()
	if m == 0 {
		return 0, fmt.Errorf("empty template frame")
	}
	if query.M() != 0 && query.M() != m {
		return 0, fmt.Errorf("coefficient count mismatch: query M=%d template M=%d", query.M(), m)
	}

	q := alignLength(query, len(template))

	n := len(template)
	// cost[i][j] = 1 - similarity(q[i], template[j]) within the band.
	const inf = math.MaxFloat64 / 2
	dtw := make([][]float64, n+1)
	for i := range dtw {
		dtw[i] = make([]float64, n+1)
		for j := range dtw[i] {
			dtw[i][j] = inf
		}
	}
	dtw[0][0] = 0

	for i := 1; i <= n; i++ {
		lo := i - sakoeChibaBand
		if lo < 1 {
			lo = 1
		}
		hi := i + sakoeChibaBand
		if hi > n {
			hi = n
		}
		for j := lo; j <= hi; j++ {
			cost := 1 - frameSimilarity(q[i-1], template[j-1])
			best := math.Min(dtw[i-1][j], math.Min(dtw[i][j-1], dtw[i-1][j-1]))
			dtw[i][j] = cost + best
		}
	}

	avgCost := dtw[n][n] / float64(n)
	sim := 1 - avgCost
	if sim < 0 {
		sim = 0
	}
	if sim > 1 {
		sim = 1
	}
	return sim, nil
}

// alignLength truncates or zero-extends query to exactly n frames.
func alignLength(query mfcc.Window, n int) mfcc.Window {
	if len(query) == n {
		return query
	}
	out := make(mfcc.Window, n)
	m := query.M()
	for i := 0; i < n; i++ {
		if i < len(query) {
			out[i] = query[i]
		} else {
			out[i] = make([]float64, m)
		}
	}
	return out
}

// frameSimilarity returns 1 - normalized Euclidean distance between two
// MFCC frames, clamped to [0, 1].
func frameSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	dist := floats.Distance(a, b, 2)
	norm := floats.Norm(a, 2) + floats.Norm(b, 2)
	if norm < 1e-12 {
		return 1
	}
	normalized := dist / norm
	sim := 1 - normalized
	if sim < 0 {
		return 0
	}
	if sim > 1 {
		return 1
	}
	return sim
}
