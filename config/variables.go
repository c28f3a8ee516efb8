/*
NAME
  variables.go

DESCRIPTION
  variables.go provides the string-keyed setter table used to apply
  programmatic configuration overrides to a Config.

LICENSE
  Copyright (C) 2026 Wakespot. All Rights Reserved.

  The Software and all intellectual property rights associated
  therewith, including but not limited to copyrights, trademarks,
  patents, and trade secrets, are and will remain the exclusive
  property of Wakespot.
*/

package config

import (
	"strconv"
	"strings"

	"github.com/wakespot/wakespot/audiofmt"
	"github.com/wakespot/wakespot/wakeword"
)

// Config map Keys, named after the spec §6 option strings.
const (
	KeySampleRate         = "fmt.sample_rate"
	KeyChannels           = "fmt.channels"
	KeyBitsPerSample      = "fmt.bits_per_sample"
	KeySampleFormat       = "fmt.sample_format"
	KeyEndianness         = "fmt.endianness"
	KeyThreshold          = "detector.threshold"
	KeyAvgThreshold       = "detector.avg_threshold"
	KeyMinScores          = "detector.min_scores"
	KeyScoreMode          = "detector.score_mode"
	KeyScoreRef           = "detector.score_ref"
	KeyEager              = "detector.eager"
	KeyVADMode            = "detector.vad_mode"
	KeyRecordPath         = "detector.record_path"
	KeyBandPassEnabled    = "filters.band_pass.enabled"
	KeyBandPassLowCutoff  = "filters.band_pass.low_cutoff"
	KeyBandPassHighCutoff = "filters.band_pass.high_cutoff"
	KeyGainEnabled        = "filters.gain_normalizer.enabled"
	KeyGainMin            = "filters.gain_normalizer.min_gain"
	KeyGainMax            = "filters.gain_normalizer.max_gain"
	KeyGainRef            = "filters.gain_normalizer.gain_ref"
)

const (
	typeString = "string"
	typeUint   = "uint"
	typeFloat  = "float"
	typeBool   = "bool"
)

// Variables describes every option in spec §6: its name and type, a
// function for updating the corresponding Config field from a string, and
// an optional validation function that resets the field to a sane default
// when it is out of range, matching revid/config's Variables table.
var Variables = []struct {
	Name     string
	Type     string
	Update   func(*Config, string)
	Validate func(*Config)
}{
	{
		Name:   KeySampleRate,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.SampleRate = parseUint(KeySampleRate, v, c) },
		Validate: func(c *Config) {
			if c.SampleRate < audiofmt.MinSampleRate || c.SampleRate > audiofmt.MaxSampleRate {
				c.LogInvalidField(KeySampleRate, 16000)
				c.SampleRate = 16000
			}
		},
	},
	{
		Name:   KeyChannels,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.Channels = parseUint(KeyChannels, v, c) },
		Validate: func(c *Config) {
			if c.Channels == 0 {
				c.LogInvalidField(KeyChannels, 1)
				c.Channels = 1
			}
		},
	},
	{
		Name:   KeyBitsPerSample,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.BitsPerSample = parseUint(KeyBitsPerSample, v, c) },
	},
	{
		Name: KeySampleFormat,
		Type: "enum:int,float",
		Update: func(c *Config, v string) {
			switch strings.ToLower(v) {
			case "int":
				c.SampleFormat = audiofmt.Int
			case "float":
				c.SampleFormat = audiofmt.Float
			default:
				c.LogInvalidField(KeySampleFormat, "int")
			}
		},
	},
	{
		Name: KeyEndianness,
		Type: "enum:little,big",
		Update: func(c *Config, v string) {
			switch strings.ToLower(v) {
			case "little":
				c.Endianness = audiofmt.Little
			case "big":
				c.Endianness = audiofmt.Big
			default:
				c.LogInvalidField(KeyEndianness, "little")
			}
		},
	},
	{
		Name:   KeyThreshold,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.Threshold = parseFloat(KeyThreshold, v, c) },
	},
	{
		Name:   KeyAvgThreshold,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.AvgThreshold = parseFloat(KeyAvgThreshold, v, c) },
	},
	{
		Name:   KeyMinScores,
		Type:   typeUint,
		Update: func(c *Config, v string) { c.MinScores = int(parseUint(KeyMinScores, v, c)) },
		Validate: func(c *Config) {
			if c.MinScores <= 0 {
				c.LogInvalidField(KeyMinScores, 10)
				c.MinScores = 10
			}
		},
	},
	{
		Name: KeyScoreMode,
		Type: "enum:max,avg,median",
		Update: func(c *Config, v string) {
			switch strings.ToLower(v) {
			case "max":
				c.ScoreMode = wakeword.Max
			case "avg":
				c.ScoreMode = wakeword.Avg
			case "median":
				c.ScoreMode = wakeword.Median
			default:
				c.LogInvalidField(KeyScoreMode, "max")
			}
		},
	},
	{
		Name:   KeyScoreRef,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.ScoreRef = parseFloat(KeyScoreRef, v, c) },
	},
	{
		Name:   KeyEager,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.Eager = parseBool(KeyEager, v, c) },
	},
	{
		Name: KeyVADMode,
		Type: "enum:none,energy",
		Update: func(c *Config, v string) {
			switch strings.ToLower(v) {
			case "none", "":
				c.VADMode = VADNone
			case "energy":
				c.VADMode = VADEnergy
			default:
				c.LogInvalidField(KeyVADMode, "none")
			}
		},
	},
	{
		Name:   KeyRecordPath,
		Type:   typeString,
		Update: func(c *Config, v string) { c.RecordPath = v },
	},
	{
		Name:   KeyBandPassEnabled,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.BandPassEnabled = parseBool(KeyBandPassEnabled, v, c) },
	},
	{
		Name:   KeyBandPassLowCutoff,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.BandPassLowCutoff = parseFloat(KeyBandPassLowCutoff, v, c) },
	},
	{
		Name:   KeyBandPassHighCutoff,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.BandPassHighCutoff = parseFloat(KeyBandPassHighCutoff, v, c) },
	},
	{
		Name:   KeyGainEnabled,
		Type:   typeBool,
		Update: func(c *Config, v string) { c.GainEnabled = parseBool(KeyGainEnabled, v, c) },
	},
	{
		Name:   KeyGainMin,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.GainMin = parseFloat(KeyGainMin, v, c) },
	},
	{
		Name:   KeyGainMax,
		Type:   typeFloat,
		Update: func(c *Config, v string) { c.GainMax = parseFloat(KeyGainMax, v, c) },
	},
	{
		Name: KeyGainRef,
		Type: typeFloat,
		Update: func(c *Config, v string) {
			if v == "" {
				c.GainRef = nil
				return
			}
			ref := parseFloat(KeyGainRef, v, c)
			c.GainRef = &ref
		},
	},
}

// Set looks up name in Variables and applies value to c, running the
// variable's validator afterward if one is defined. It reports whether the
// name was recognized.
func Set(c *Config, name, value string) bool {
	for _, v := range Variables {
		if v.Name != name {
			continue
		}
		v.Update(c, value)
		if v.Validate != nil {
			v.Validate(c)
		}
		return true
	}
	return false
}

func parseUint(name, v string, c *Config) uint {
	n, err := strconv.ParseUint(v, 10, 64)
	if err != nil {
		c.LogInvalidField(name, 0)
		return 0
	}
	return uint(n)
}

func parseFloat(name, v string, c *Config) float64 {
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		c.LogInvalidField(name, 0.0)
		return 0
	}
	return f
}

func parseBool(name, v string, c *Config) bool {
	switch strings.ToLower(v) {
	case "true":
		return true
	case "false":
		return false
	default:
		c.LogInvalidField(name, false)
		return false
	}
}
