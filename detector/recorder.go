package detector

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/wakespot/wakespot/wavout"
)

// recorder implements the recording side-output of spec §6: one WAV file
// per improved partial detection and one per final detection, containing
// the raw canonical-domain frames spanning the emitting wakeword's window
// (spec.md:204), not an arbitrary wall-clock slice.
type recorder struct {
	dir        string
	sampleRate uint
	hopLen     int // MFCC hop length in canonical samples.
	frameLen   int // MFCC analysis window length in canonical samples.
	buf        []float32
	maxSamples int
}

func newRecorder(dir string, sampleRate uint, hopLen, frameLen int) *recorder {
	return &recorder{dir: dir, sampleRate: sampleRate, hopLen: hopLen, frameLen: frameLen}
}

// samplesForWindow converts a window size in MFCC frames to the canonical
// sample span it covers: windowFrames hops plus the extra lead-in samples
// the first frame's analysis window needs beyond one hop.
func (r *recorder) samplesForWindow(windowFrames int) int {
	if windowFrames <= 0 {
		return 0
	}
	return windowFrames*r.hopLen + (r.frameLen - r.hopLen)
}

// growTo ensures the rolling buffer retains enough history for the largest
// window among currently loaded wakewords, called whenever the detector
// loads a wakeword with a larger WindowSize.
func (r *recorder) growTo(windowFrames int) {
	if samples := r.samplesForWindow(windowFrames); samples > r.maxSamples {
		r.maxSamples = samples
	}
}

// append accumulates one canonical-domain hop into the rolling buffer.
func (r *recorder) append(hop []float32) {
	r.buf = append(r.buf, hop...)
	if r.maxSamples > 0 && len(r.buf) > r.maxSamples {
		r.buf = r.buf[len(r.buf)-r.maxSamples:]
	}
}

// flush writes the trailing windowFrames worth of the rolling buffer to a
// named WAV file. final does not affect the filename: improved partials and
// final detections both use the same <timestamp>-<name>-<score>.wav
// convention from spec §6.
func (r *recorder) flush(name string, score float64, final bool, windowFrames int) error {
	samples := r.samplesForWindow(windowFrames)
	if samples > len(r.buf) {
		samples = len(r.buf)
	}
	slice := r.buf[len(r.buf)-samples:]

	w := wavout.Writer{SampleRate: r.sampleRate}
	data := w.Encode(slice)

	filename := fmt.Sprintf("%d-%s-%.4f.wav", nowUnixNano(), name, score)
	path := filepath.Join(r.dir, filename)

	tmp, err := os.CreateTemp(r.dir, ".wakeword-rec-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	return os.Rename(tmpName, path)
}
