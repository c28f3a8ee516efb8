// Package detector implements the state machine that scores incoming
// canonical-domain audio against every loaded wakeword, aggregates partial
// scores, and emits at most one Detection per utterance.
//
// A Detector is single-threaded and synchronous, per spec: process is
// driven by exactly one producer and must not be called concurrently with
// itself.
package detector

import (
	"fmt"
	"math"
	"runtime"

	"github.com/ausocean/utils/logging"

	"github.com/wakespot/wakespot/audiofmt"
	"github.com/wakespot/wakespot/dsp"
	"github.com/wakespot/wakespot/mfcc"
	"github.com/wakespot/wakespot/reencode"
	"github.com/wakespot/wakespot/wakeword"
)

// hopMs is the hop size fed to the MFCC extractor per spec §3 (HS_ms = 10).
const hopMs = 10

// BandPassConfig configures the optional band-pass filter (spec §6
// filters.band_pass.*).
type BandPassConfig struct {
	Enabled    bool
	LowCutoff  float64 // Hz, default 80.0.
	HighCutoff float64 // Hz, default 400.0.
}

// GainConfig configures the optional gain normalizer (spec §6
// filters.gain_normalizer.*).
type GainConfig struct {
	Enabled bool
	MinGain float64 // default 0.1.
	MaxGain float64 // default 1.0.
	Ref     *float64 // nil means derive from the loudest loaded wakeword.
}

// Config controls detector construction (spec §6 detector.* and fmt.*).
type Config struct {
	Fmt  audiofmt.Fmt
	MFCC mfcc.Config

	Threshold    float64 // default 0.5.
	AvgThreshold float64 // default 0.0 (disabled).
	MinScores    int     // default 10.
	ScoreMode    wakeword.ScoreMode
	ScoreRef     float64 // default 0.22.
	Eager        bool    // default false.

	VAD VAD // nil means no VAD gating (vad_mode = None).

	RecordPath string // empty means no recording side-output.

	BandPass       BandPassConfig
	GainNormalizer GainConfig

	// Parallel enables the optional per-wakeword scoring fan-out of spec §5.
	Parallel bool

	Log logging.Logger
}

// VAD gates scoring during silence, trading detection latency for CPU.
type VAD interface {
	// IsSilent reports whether frame (one canonical-domain hop) is silence.
	IsSilent(frame []float32) bool
}

// scoredWakeword pairs a loaded Scorer with its declared name for ordered,
// deterministic iteration (spec §9 "deterministic reduction in declaration
// order").
type scoredWakeword struct {
	name   string
	scorer wakeword.Scorer
}

// Detector owns the re-encoder, optional filters, MFCC extractor, frame
// ring, loaded wakewords, and FSM state described in spec §4.6.
type Detector struct {
	cfg Config
	log logging.Logger

	enc      *reencode.Encoder
	bandPass *dsp.BandPass
	gain     *dsp.GainNormalizer
	extract  *mfcc.Extractor

	bufI8  []int8
	bufI16 []int16
	bufI32 []int32
	bufF32 []float32

	ring *frameRing

	wakewords []scoredWakeword

	partial        *wakeword.Partial
	prevFrameScore float64
	runs           map[string]*scoreRun
	lockout        int

	recorder *recorder

	lastRMS float64
}

// New constructs a Detector from cfg. MFCC.NCoeffs becomes the detector's
// fixed coefficient count; every added wakeword's MFCCSize must match it.
func New(cfg Config) (*Detector, error) {
	if cfg.Threshold == 0 {
		cfg.Threshold = 0.5
	}
	if cfg.MinScores <= 0 {
		cfg.MinScores = 10
	}
	if cfg.ScoreRef == 0 {
		cfg.ScoreRef = 0.22
	}
	if cfg.BandPass.Enabled && cfg.BandPass.LowCutoff == 0 && cfg.BandPass.HighCutoff == 0 {
		cfg.BandPass.LowCutoff, cfg.BandPass.HighCutoff = 80.0, 400.0
	}
	if cfg.GainNormalizer.Enabled && cfg.GainNormalizer.MinGain == 0 && cfg.GainNormalizer.MaxGain == 0 {
		cfg.GainNormalizer.MinGain, cfg.GainNormalizer.MaxGain = 0.1, 1.0
	}

	enc, err := reencode.New(cfg.Fmt, hopMs, cfg.MFCC.SampleRate)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	extract, err := mfcc.New(cfg.MFCC)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}

	d := &Detector{
		cfg:     cfg,
		log:     cfg.Log,
		enc:     enc,
		extract: extract,
		ring:    newFrameRing(1),
		runs:    make(map[string]*scoreRun),
	}

	if cfg.BandPass.Enabled {
		d.bandPass = dsp.NewBandPass(cfg.MFCC.SampleRate, cfg.BandPass.LowCutoff, cfg.BandPass.HighCutoff)
	}
	if cfg.GainNormalizer.Enabled {
		ref := 0.0
		if cfg.GainNormalizer.Ref != nil {
			ref = *cfg.GainNormalizer.Ref
		}
		d.gain = dsp.NewGainNormalizer(ref, cfg.GainNormalizer.MinGain, cfg.GainNormalizer.MaxGain)
	}
	if cfg.RecordPath != "" {
		d.recorder = newRecorder(cfg.RecordPath, cfg.MFCC.SampleRate, cfg.MFCC.HopLen, cfg.MFCC.FrameLen)
	}

	return d, nil
}

// AddWakewordFromFile loads an artifact file and, if compatible, adds it to
// the detector's loaded set. Per spec §4.6, a rejected artifact leaves
// detector state unchanged (transactional insert).
func (d *Detector) AddWakewordFromFile(path string) error {
	w, err := wakeword.LoadFile(path)
	if err != nil {
		return err
	}
	return d.AddWakeword(w)
}

// AddWakeword validates and adds an already-loaded Scorer.
func (d *Detector) AddWakeword(w wakeword.Scorer) error {
	if int(w.MFCCSize()) != d.cfg.MFCC.NCoeffs {
		return fmt.Errorf("%w: wakeword %q has mfcc_size %d, detector expects %d",
			wakeword.ErrIncompatibleArtifact, w.Name(), w.MFCCSize(), d.cfg.MFCC.NCoeffs)
	}
	for _, existing := range d.wakewords {
		if existing.name == w.Name() {
			return fmt.Errorf("%w: wakeword %q already loaded", wakeword.ErrIncompatibleArtifact, w.Name())
		}
	}

	d.wakewords = append(d.wakewords, scoredWakeword{name: w.Name(), scorer: w})
	if w.WindowSize() > d.ring.cap {
		d.ring.grow(w.WindowSize())
	}
	if d.recorder != nil {
		d.recorder.growTo(w.WindowSize())
	}
	if d.gain != nil && d.cfg.GainNormalizer.Ref == nil {
		d.gain.Ref = d.maxRMSLevel()
	}
	if d.log != nil {
		d.log.Debug("wakeword loaded", "name", w.Name(), "window", w.WindowSize(), "mfcc_size", w.MFCCSize())
	}
	return nil
}

// RemoveWakeword drops a loaded wakeword by name. It is a no-op if name is
// not loaded.
func (d *Detector) RemoveWakeword(name string) {
	for i, w := range d.wakewords {
		if w.name == name {
			d.wakewords = append(d.wakewords[:i], d.wakewords[i+1:]...)
			if d.partial != nil && d.partial.Name == name {
				d.partial = nil
			}
			if d.gain != nil && d.cfg.GainNormalizer.Ref == nil {
				d.gain.Ref = d.maxRMSLevel()
			}
			return
		}
	}
}

func (d *Detector) maxRMSLevel() float64 {
	var max float64
	for _, w := range d.wakewords {
		if lvl := w.scorer.RMSLevel(); lvl > max {
			max = lvl
		}
	}
	return max
}

// GetPartialDetection returns the current candidate partial, or nil.
func (d *Detector) GetPartialDetection() *wakeword.Partial {
	if d.partial == nil {
		return nil
	}
	cp := *d.partial
	return &cp
}

// GetRMSLevel returns the RMS of the most recently processed canonical
// frame, measured ahead of the optional filters.
func (d *Detector) GetRMSLevel() float64 { return d.lastRMS }

// GetGain returns the gain normalizer's last applied gain, or 1.0 if the
// filter is disabled.
func (d *Detector) GetGain() float64 {
	if d.gain == nil {
		return 1
	}
	return d.gain.Gain()
}

// GetRMSLevelRef returns the gain normalizer's current target RMS, or 0 if
// the filter is disabled.
func (d *Detector) GetRMSLevelRef() float64 {
	if d.gain == nil {
		return 0
	}
	return d.gain.Ref
}

// ProcessF32 feeds a contiguous slice of canonical-format float32 samples
// through the pipeline, returning at most one Detection.
func (d *Detector) ProcessF32(samples []float32) (*wakeword.Detection, error) {
	d.bufF32 = append(d.bufF32, samples...)
	blockLen := d.enc.InputFrameLength()
	for len(d.bufF32) >= blockLen {
		block := d.bufF32[:blockLen]
		det, err := d.processBlock(func() ([]float32, bool, error) { return d.enc.ReencodeF32(block) })
		d.bufF32 = append([]float32{}, d.bufF32[blockLen:]...)
		if err != nil {
			return nil, err
		}
		if det != nil {
			return det, nil
		}
	}
	return nil, nil
}

// ProcessI8 feeds signed 8-bit samples.
func (d *Detector) ProcessI8(samples []int8) (*wakeword.Detection, error) {
	d.bufI8 = append(d.bufI8, samples...)
	blockLen := d.enc.InputFrameLength()
	for len(d.bufI8) >= blockLen {
		block := d.bufI8[:blockLen]
		det, err := d.processBlock(func() ([]float32, bool, error) { return d.enc.ReencodeI8(block) })
		d.bufI8 = append([]int8{}, d.bufI8[blockLen:]...)
		if err != nil {
			return nil, err
		}
		if det != nil {
			return det, nil
		}
	}
	return nil, nil
}

// ProcessI16 feeds signed 16-bit samples.
func (d *Detector) ProcessI16(samples []int16) (*wakeword.Detection, error) {
	d.bufI16 = append(d.bufI16, samples...)
	blockLen := d.enc.InputFrameLength()
	for len(d.bufI16) >= blockLen {
		block := d.bufI16[:blockLen]
		det, err := d.processBlock(func() ([]float32, bool, error) { return d.enc.ReencodeI16(block) })
		d.bufI16 = append([]int16{}, d.bufI16[blockLen:]...)
		if err != nil {
			return nil, err
		}
		if det != nil {
			return det, nil
		}
	}
	return nil, nil
}

// ProcessI32 feeds signed 32-bit samples.
func (d *Detector) ProcessI32(samples []int32) (*wakeword.Detection, error) {
	d.bufI32 = append(d.bufI32, samples...)
	blockLen := d.enc.InputFrameLength()
	for len(d.bufI32) >= blockLen {
		block := d.bufI32[:blockLen]
		det, err := d.processBlock(func() ([]float32, bool, error) { return d.enc.ReencodeI32(block) })
		d.bufI32 = append([]int32{}, d.bufI32[blockLen:]...)
		if err != nil {
			return nil, err
		}
		if det != nil {
			return det, nil
		}
	}
	return nil, nil
}

// processBlock runs one already-chunked input block through re-encode,
// filters, and MFCC extraction, then drives the FSM if a new MFCC frame
// resulted.
func (d *Detector) processBlock(reencodeFn func() ([]float32, bool, error)) (*wakeword.Detection, error) {
	hop, ok, err := reencodeFn()
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	d.lastRMS = rms(hop)

	if d.bandPass != nil {
		d.bandPass.Apply(hop)
	}
	if d.gain != nil {
		d.gain.Apply(hop)
	}

	frame, ok, err := d.extract.Push(hop)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}

	d.ring.push(frame)

	if d.recorder != nil {
		d.recorder.append(hop)
	}

	return d.step(hop), nil
}

// step runs one iteration of the FSM described in spec §4.6 now that a new
// MFCC frame has been appended to the ring.
func (d *Detector) step(hop []float32) *wakeword.Detection {
	if d.lockout > 0 {
		d.lockout--
		return nil
	}

	if d.cfg.VAD != nil && d.cfg.VAD.IsSilent(hop) {
		if d.gain != nil {
			d.gain.ResetTrend()
		}
		d.partial = nil
		d.prevFrameScore = 0
		return nil
	}

	if len(d.wakewords) == 0 {
		return nil
	}

	bestName, bestScore, bestAvg, ok := d.scoreWakewords()
	if !ok {
		d.partial = nil
		d.prevFrameScore = 0
		return nil
	}

	isNewMax := d.partial == nil || bestScore > d.partial.Score
	if d.partial == nil {
		d.partial = &wakeword.Partial{
			Name:     bestName,
			Score:    bestScore,
			AvgScore: bestAvg,
			Counter:  1,
			Gain:     d.GetGain(),
			Features: d.ring.last(d.windowSizeOf(bestName)),
		}
	} else {
		d.partial.Counter++
		if isNewMax {
			d.partial.Name = bestName
			d.partial.Score = bestScore
			d.partial.AvgScore = bestAvg
			d.partial.Gain = d.GetGain()
			d.partial.Features = d.ring.last(d.windowSizeOf(bestName))
		}
	}
	if isNewMax && d.recorder != nil {
		if err := d.recorder.flush(d.partial.Name, d.partial.Score, false, d.windowSizeOf(d.partial.Name)); err != nil && d.log != nil {
			d.log.Warning("recording side-output failed", "error", err)
		}
	}

	decreased := d.partial.Counter > 1 && bestScore < d.prevFrameScore
	d.prevFrameScore = bestScore

	promote := d.partial.Counter >= d.cfg.MinScores && (d.cfg.Eager || decreased)
	if !promote {
		return nil
	}

	det := wakeword.Detection{
		Name:     d.partial.Name,
		Score:    d.partial.Score,
		AvgScore: d.partial.AvgScore,
		Gain:     d.partial.Gain,
		Counter:  d.partial.Counter,
	}
	d.lockout = d.windowSizeOf(det.Name)
	d.partial = nil
	d.prevFrameScore = 0

	if d.recorder != nil {
		if err := d.recorder.flush(det.Name, det.Score, true, d.windowSizeOf(det.Name)); err != nil && d.log != nil {
			d.log.Warning("recording side-output failed", "error", err)
		}
	}
	if d.log != nil {
		d.log.Info("wakeword detected", "name", det.Name, "score", det.Score, "counter", det.Counter)
	}

	return &det
}

func (d *Detector) windowSizeOf(name string) int {
	for _, w := range d.wakewords {
		if w.name == name {
			return w.scorer.WindowSize()
		}
	}
	return 1
}

// scoreResult is one wakeword's outcome for the current frame.
type scoreResult struct {
	name  string
	score float64
	err   error
}

// scoreRun tracks the running mean of a wakeword's per-frame scores across
// its current above-threshold run, per spec §4.6 step 3.
type scoreRun struct {
	sum   float64
	count int
}

// scoreWakewords scores every loaded wakeword against its own trailing
// window of ring frames, rejects wakewords below their avg_threshold, and
// returns the winner, tie-broken by declaration order (spec §4.6).
func (d *Detector) scoreWakewords() (name string, score, avgScore float64, ok bool) {
	results := make([]scoreResult, len(d.wakewords))
	if d.cfg.Parallel && len(d.wakewords) > 1 {
		d.scoreParallel(results)
	} else {
		for i, w := range d.wakewords {
			results[i] = d.scoreOne(w)
		}
	}

	bestIdx := -1
	for i, r := range results {
		if r.err != nil {
			if d.log != nil {
				d.log.Warning("scoring failed", "wakeword", r.name, "error", r.err)
			}
			continue
		}

		threshold, avgThreshold := d.wakewords[i].scorer.Thresholds()
		if threshold == 0 {
			threshold = d.cfg.Threshold
		}
		if avgThreshold == 0 {
			avgThreshold = d.cfg.AvgThreshold
		}

		avg := d.updateRun(r.name, r.score, threshold)
		if r.score < threshold {
			continue
		}
		if avgThreshold > 0 && avg < avgThreshold {
			continue
		}
		if bestIdx == -1 || r.score > results[bestIdx].score {
			bestIdx = i
			avgScore = avg
		}
	}
	if bestIdx == -1 {
		return "", 0, 0, false
	}
	return results[bestIdx].name, results[bestIdx].score, avgScore, true
}

func (d *Detector) scoreOne(w scoredWakeword) scoreResult {
	window := d.ring.last(w.scorer.WindowSize())
	var s float64
	var err error
	if rs, ok := w.scorer.(interface {
		ScoreWithRef(mfcc.Window, float64) (float64, error)
	}); ok {
		s, err = rs.ScoreWithRef(window, d.cfg.ScoreRef)
	} else {
		s, err = w.scorer.Score(window)
	}
	return scoreResult{name: w.name, score: s, err: err}
}

// scoreParallel fans scoring out to a worker pool sized min(num_wakewords,
// hardware_threads), per spec §5, merging results back into declaration
// order so downstream aggregation stays deterministic.
func (d *Detector) scoreParallel(results []scoreResult) {
	jobs := make(chan int, len(d.wakewords))
	for i := range d.wakewords {
		jobs <- i
	}
	close(jobs)

	workers := len(d.wakewords)
	if hw := numHardwareThreads(); hw < workers {
		workers = hw
	}
	done := make(chan struct{}, workers)
	for w := 0; w < workers; w++ {
		go func() {
			for i := range jobs {
				results[i] = d.scoreOne(d.wakewords[i])
			}
			done <- struct{}{}
		}()
	}
	for w := 0; w < workers; w++ {
		<-done
	}
}

// updateRun folds score into the running mean for name's current
// above-threshold run and returns the updated average.
func (d *Detector) updateRun(name string, score, threshold float64) float64 {
	run, found := d.runs[name]
	if !found {
		run = &scoreRun{}
		d.runs[name] = run
	}
	if score < threshold {
		run.sum, run.count = 0, 0
		return 0
	}
	run.sum += score
	run.count++
	return run.sum / float64(run.count)
}

// numHardwareThreads reports the worker-pool ceiling for parallel scoring
// fan-out, per spec §5.
func numHardwareThreads() int {
	return runtime.NumCPU()
}

func rms(frame []float32) float64 {
	var sumSq float64
	for _, x := range frame {
		sumSq += float64(x) * float64(x)
	}
	if len(frame) == 0 {
		return 0
	}
	return math.Sqrt(sumSq / float64(len(frame)))
}
