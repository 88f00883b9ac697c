// Package fps estimates the capture rate of a stream from its leading timestamps.
package fps

// DefaultFPS is used until an estimate is available, and for streams too short to
// estimate.
const DefaultFPS = 20.0

// window is the number of leading timestamps averaged.
const window = 5

// Estimator becomes final when it observes the frame after the window. Timestamps are
// in nanoseconds.
type Estimator struct {
	defaultFPS float64
	stamps     []int64
	fps        float64
	final      bool
}

// New returns an estimator falling back to defaultFPS, or DefaultFPS when
// defaultFPS is not positive.
func New(defaultFPS float64) *Estimator {
	if defaultFPS <= 0 {
		defaultFPS = DefaultFPS
	}
	return &Estimator{
		defaultFPS: defaultFPS,
		stamps:     make([]int64, 0, window),
		fps:        defaultFPS,
	}
}

// Observe records the timestamp of the next frame and reports whether the estimate
// changed.
func (e *Estimator) Observe(ts int64) bool {
	if e.final {
		return false
	}

	if len(e.stamps) < window {
		e.stamps = append(e.stamps, ts)
		return false
	}

	e.final = true
	fps := e.defaultFPS
	if avg := float64(e.stamps[window-1]-e.stamps[0]) / float64(window-1) / 1e9; avg > 0 {
		fps = 1 / avg
	}

	changed := fps != e.fps
	e.fps = fps
	return changed
}

func (e *Estimator) FPS() float64 {
	return e.fps
}

// Final reports whether FPS will not change anymore.
func (e *Estimator) Final() bool {
	return e.final
}
