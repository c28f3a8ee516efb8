package detector

import "github.com/wakespot/wakespot/mfcc"

// frameRing is a bounded, append-only view of the most recently produced
// MFCC frames, capacity W_max across all loaded wakewords (spec §9 "ring
// buffer of MFCC frames").
type frameRing struct {
	frames mfcc.Window
	cap    int
}

func newFrameRing(capacity int) *frameRing {
	if capacity < 1 {
		capacity = 1
	}
	return &frameRing{cap: capacity}
}

// push appends frame, dropping the oldest frame once capacity is exceeded.
func (r *frameRing) push(frame []float64) {
	r.frames = append(r.frames, frame)
	if len(r.frames) > r.cap {
		r.frames = r.frames[len(r.frames)-r.cap:]
	}
}

// grow raises the ring's capacity, keeping all currently buffered frames.
func (r *frameRing) grow(capacity int) {
	if capacity <= r.cap {
		return
	}
	r.cap = capacity
}

// last returns the most recent n frames, oldest first. If fewer than n
// frames have been accumulated, the returned window is shorter than n;
// callers that require a full window should check len() against the
// wakeword's WindowSize before scoring.
func (r *frameRing) last(n int) mfcc.Window {
	if n > len(r.frames) {
		n = len(r.frames)
	}
	out := make(mfcc.Window, n)
	copy(out, r.frames[len(r.frames)-n:])
	return out
}
