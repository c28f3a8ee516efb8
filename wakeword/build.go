package wakeword

import (
	"fmt"
	"os"

	"github.com/ausocean/utils/logging"
	"gonum.org/v1/gonum/stat"

	"github.com/wakespot/wakespot/mfcc"
	"github.com/wakespot/wakespot/wavsrc"
)

// BuildConfig controls reference construction.
type BuildConfig struct {
	Name           string
	Threshold      float64
	AvgThreshold   float64
	Mode           ScoreMode
	ScoreRef       float64
	MFCC           mfcc.Config
	PrependAverage bool // per spec §4.7: prepend an averaged template.
}

// Builder constructs Ref artifacts from WAV training samples.
type Builder struct {
	cfg BuildConfig
	log logging.Logger
}

// NewBuilder constructs a Builder. log may be nil only in tests; production
// callers should always supply a logger, matching the teacher's convention
// of threading logging.Logger through constructors.
func NewBuilder(cfg BuildConfig, log logging.Logger) *Builder {
	return &Builder{cfg: cfg, log: log}
}

// BuildFromFiles reads each WAV path, runs it through the re-encode ->
// MFCC pipeline (filters disabled), and returns a Ref whose templates are
// ordered the same as paths, optionally prepending an averaged template.
func (b *Builder) BuildFromFiles(paths []string) (*Ref, error) {
	if len(paths) < 3 || len(paths) > 8 {
		return nil, fmt.Errorf("%w: reference requires 3-8 samples, got %d", ErrTrainingFailed, len(paths))
	}

	var templates []mfcc.Window
	var maxRMS float64
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIoFailure, p, err)
		}
		sample, err := wavsrc.Decode(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrIoFailure, p, err)
		}

		window, rms, err := computeWindow(sample, b.cfg.MFCC)
		if err != nil {
			return nil, fmt.Errorf("building template from %s: %w", p, err)
		}
		if len(window) == 0 {
			return nil, fmt.Errorf("%w: %s produced no MFCC frames", ErrTrainingFailed, p)
		}
		templates = append(templates, window)
		if rms > maxRMS {
			maxRMS = rms
		}
		if b.log != nil {
			b.log.Debug("built template", "file", p, "frames", len(window), "rms", rms)
		}
	}

	if b.cfg.PrependAverage {
		avg := averageTemplates(templates)
		templates = append([]mfcc.Window{avg}, templates...)
	}

	return &Ref{
		WName:         b.cfg.Name,
		Threshold:     b.cfg.Threshold,
		AvgThreshold:  b.cfg.AvgThreshold,
		MFCCSizeField: uint16(b.cfg.MFCC.NCoeffs),
		RMSLevelField: maxRMS,
		Templates:     templates,
		Mode:          b.cfg.Mode,
		ScoreRef:      b.cfg.ScoreRef,
	}, nil
}

// averageTemplates zero-pads every template to the max length, then
// averages element-wise, per spec §4.7.
func averageTemplates(templates []mfcc.Window) mfcc.Window {
	maxLen := 0
	for _, t := range templates {
		if len(t) > maxLen {
			maxLen = len(t)
		}
	}
	m := templates[0].M()

	padded := make([]mfcc.Window, len(templates))
	for i, t := range templates {
		padded[i] = zeroPadWindow(t, maxLen)
	}

	avg := make(mfcc.Window, maxLen)
	column := make([]float64, len(templates))
	for i := 0; i < maxLen; i++ {
		avg[i] = make([]float64, m)
		for j := 0; j < m; j++ {
			for k, t := range padded {
				column[k] = t[i][j]
			}
			avg[i][j] = stat.Mean(column, nil)
		}
	}
	return avg
}
