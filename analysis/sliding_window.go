package analysis

// SlidingWindowRatio tracks a boolean signal over the most recent
// window_size observations and computes the ratio of positive signals to
// total observations in O(1) per push, ported from the Rust
// SlidingWindowRatio this module's ratio analyzer is based on.
type SlidingWindowRatio struct {
	window        []bool
	head          int // index of the oldest element, only meaningful once full
	count         int // number of valid elements currently in window
	windowSize    int
	positiveCount int
}

// NewSlidingWindowRatio creates a counter with the given capacity.
// windowSize must be > 0.
func NewSlidingWindowRatio(windowSize int) *SlidingWindowRatio {
	if windowSize <= 0 {
		panic("analysis: window_size must be positive")
	}
	return &SlidingWindowRatio{
		window:     make([]bool, windowSize),
		windowSize: windowSize,
	}
}

// Push records an observation, evicting the oldest one if the window is
// full. Invariant maintained: 0 <= positiveCount <= count <= windowSize.
func (w *SlidingWindowRatio) Push(isPositive bool) {
	if w.count == w.windowSize {
		evicted := w.window[w.head]
		if evicted {
			w.positiveCount--
		}
		w.window[w.head] = isPositive
		w.head = (w.head + 1) % w.windowSize
	} else {
		idx := (w.head + w.count) % w.windowSize
		w.window[idx] = isPositive
		w.count++
	}
	if isPositive {
		w.positiveCount++
	}
}

// Ratio returns the current ratio of positive to total observations, and
// false if nothing has been recorded yet.
func (w *SlidingWindowRatio) Ratio() (float64, bool) {
	if w.count == 0 {
		return 0, false
	}
	return float64(w.positiveCount) / float64(w.count), true
}

// Count returns the number of observations currently in the window.
func (w *SlidingWindowRatio) Count() int { return w.count }

// PositiveCount returns the number of positive observations in the window.
func (w *SlidingWindowRatio) PositiveCount() int { return w.positiveCount }

// WindowSize returns the configured capacity.
func (w *SlidingWindowRatio) WindowSize() int { return w.windowSize }
