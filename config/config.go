/*
NAME
  config.go

DESCRIPTION
  config.go holds the flat, externally-configurable settings object for a
  detector instance.

LICENSE
  Copyright (C) 2026 Wakespot. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of Wakespot.
*/

// Package config provides the flat, externally-configurable settings
// object for a detector instance, following the same layout and
// programmatic (string-keyed) override mechanism as revid's config
// package: exported fields with documented defaults, plus a Variables
// table for setting them from string key/value pairs at runtime.
package config

import (
	"github.com/ausocean/utils/logging"

	"github.com/wakespot/wakespot/audiofmt"
	"github.com/wakespot/wakespot/detector"
	"github.com/wakespot/wakespot/mfcc"
	"github.com/wakespot/wakespot/wakeword"
)

// VADMode selects the optional voice-activity gate ahead of scoring.
type VADMode int

const (
	// VADNone disables VAD gating; every frame is scored.
	VADNone VADMode = iota
	// VADEnergy gates scoring using a simple frame-energy threshold.
	VADEnergy
)

// Config holds every recognized option named in spec §6, with the
// documented defaults applied by New.
type Config struct {
	// Logger receives diagnostic output; required.
	Logger logging.Logger

	// Input format.
	SampleRate    uint                  // fmt.sample_rate, default 16000.
	Channels      uint                  // fmt.channels, default 1.
	BitsPerSample uint                  // fmt.bits_per_sample, default 16.
	SampleFormat  audiofmt.SampleFormat // fmt.sample_format, default Int.
	Endianness    audiofmt.Endianness   // fmt.endianness, default Little.

	// Detector behaviour.
	Threshold    float64            // detector.threshold, default 0.5.
	AvgThreshold float64            // detector.avg_threshold, default 0.0 (disabled).
	MinScores    int                // detector.min_scores, default 10.
	ScoreMode    wakeword.ScoreMode // detector.score_mode, default Max.
	ScoreRef     float64            // detector.score_ref, default 0.22.
	Eager        bool               // detector.eager, default false.
	VADMode      VADMode            // detector.vad_mode, default VADNone.
	VADThreshold float64            // RMS floor used when VADMode is VADEnergy.
	RecordPath   string             // detector.record_path, default "" (disabled).

	// Band-pass filter.
	BandPassEnabled    bool    // filters.band_pass.enabled, default false.
	BandPassLowCutoff  float64 // filters.band_pass.low_cutoff, default 80.0.
	BandPassHighCutoff float64 // filters.band_pass.high_cutoff, default 400.0.

	// Gain normalizer.
	GainEnabled bool     // filters.gain_normalizer.enabled, default false.
	GainMin     float64  // filters.gain_normalizer.min_gain, default 0.1.
	GainMax     float64  // filters.gain_normalizer.max_gain, default 1.0.
	GainRef     *float64 // filters.gain_normalizer.gain_ref, default nil (auto).

	// Parallel scoring fan-out (spec §5), not itself a named spec §6 option
	// but exposed the same way for programmatic control.
	Parallel bool
}

// New returns a Config with every documented default applied.
func New(log logging.Logger) *Config {
	return &Config{
		Logger:             log,
		SampleRate:         16000,
		Channels:           1,
		BitsPerSample:      16,
		SampleFormat:       audiofmt.Int,
		Endianness:         audiofmt.Little,
		Threshold:          0.5,
		AvgThreshold:       0.0,
		MinScores:          10,
		ScoreMode:          wakeword.Max,
		ScoreRef:           0.22,
		Eager:              false,
		VADMode:            VADNone,
		BandPassLowCutoff:  80.0,
		BandPassHighCutoff: 400.0,
		GainMin:            0.1,
		GainMax:            1.0,
	}
}

// Fmt builds the audiofmt.Fmt described by the format fields.
func (c *Config) Fmt() audiofmt.Fmt {
	return audiofmt.Fmt{
		SampleRate:    c.SampleRate,
		Channels:      c.Channels,
		BitsPerSample: c.BitsPerSample,
		SampleFormat:  c.SampleFormat,
		Endianness:    c.Endianness,
	}
}

// BuildDetectorConfig translates c into a detector.Config, applying mfccCfg
// as the detector's MFCC analysis parameters. mfccCfg.SampleRate should
// match c's internal detection sample rate (typically mfcc.DefaultConfig()
// at 16kHz, independent of the raw input SampleRate in c.Fmt()).
func (c *Config) BuildDetectorConfig(mfccCfg mfcc.Config) detector.Config {
	var vad detector.VAD
	if c.VADMode == VADEnergy {
		vad = detector.EnergyVAD{Threshold: c.VADThreshold}
	}

	return detector.Config{
		Fmt:          c.Fmt(),
		MFCC:         mfccCfg,
		Threshold:    c.Threshold,
		AvgThreshold: c.AvgThreshold,
		MinScores:    c.MinScores,
		ScoreMode:    c.ScoreMode,
		ScoreRef:     c.ScoreRef,
		Eager:        c.Eager,
		VAD:          vad,
		RecordPath:   c.RecordPath,
		BandPass: detector.BandPassConfig{
			Enabled:    c.BandPassEnabled,
			LowCutoff:  c.BandPassLowCutoff,
			HighCutoff: c.BandPassHighCutoff,
		},
		GainNormalizer: detector.GainConfig{
			Enabled: c.GainEnabled,
			MinGain: c.GainMin,
			MaxGain: c.GainMax,
			Ref:     c.GainRef,
		},
		Parallel: c.Parallel,
		Log:      c.Logger,
	}
}

// LogInvalidField logs that a field failed validation and was reset to def,
// matching revid/config's pattern for reporting bad overrides.
func (c *Config) LogInvalidField(name string, def interface{}) {
	if c.Logger == nil {
		return
	}
	c.Logger.Warning("invalid config field, using default", "field", name, "default", def)
}
