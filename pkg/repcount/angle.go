package repcount

import "github.com/chewxy/math32"

const (
	// DefaultSmoothingWindow is the sliding median window size, SMOOTHING_WINDOW.
	DefaultSmoothingWindow = 7
	// DefaultEMAAlpha is the EMA smoothing factor applied after the median.
	DefaultEMAAlpha = 0.5
)

// point2D is a minimal 2D point: only subtraction and atan2 are needed
// here, so a full vector type would be overkill.
type point2D struct {
	X, Y float32
}

func sub(a, b point2D) point2D {
	return point2D{X: a.X - b.X, Y: a.Y - b.Y}
}

// interiorAngle computes the 2D interior angle at vertex b, folded into
// [0, 180] degrees.
func interiorAngle(a, b, c point2D) float32 {
	ba := sub(a, b)
	bc := sub(c, b)
	theta := math32.Abs(math32.Atan2(bc.Y, bc.X) - math32.Atan2(ba.Y, ba.X))
	deg := theta * (180.0 / math32.Pi)
	if deg > 180 {
		deg = 360 - deg
	}
	return deg
}

// medianWindow is a fixed-capacity ring buffer that returns the median
// of its current contents, used for single-frame spike rejection.
type medianWindow struct {
	buf   []float32
	count int
	next  int
}

func newMedianWindow(size int) *medianWindow {
	if size <= 0 {
		size = DefaultSmoothingWindow
	}
	return &medianWindow{buf: make([]float32, size)}
}

func (w *medianWindow) reset() {
	w.count = 0
	w.next = 0
}

// push adds a sample and returns the median of the window filled so far.
func (w *medianWindow) push(sample float32) float32 {
	w.buf[w.next] = sample
	w.next = (w.next + 1) % len(w.buf)
	if w.count < len(w.buf) {
		w.count++
	}

	scratch := make([]float32, w.count)
	copy(scratch, w.buf[:w.count])
	insertionSortFloat32(scratch)
	return scratch[w.count/2]
}

func insertionSortFloat32(s []float32) {
	for i := 1; i < len(s); i++ {
		v := s[i]
		j := i - 1
		for j >= 0 && s[j] > v {
			s[j+1] = s[j]
			j--
		}
		s[j+1] = v
	}
}

// ema is an exponential moving average that seeds itself from the
// first sample rather than starting from zero.
type ema struct {
	alpha       float32
	value       float32
	initialized bool
}

func newEMA(alpha float32) *ema {
	return &ema{alpha: alpha}
}

func (e *ema) reset() {
	e.value = 0
	e.initialized = false
}

func (e *ema) push(sample float32) float32 {
	if !e.initialized {
		e.value = sample
		e.initialized = true
		return e.value
	}
	e.value = e.alpha*sample + (1-e.alpha)*e.value
	return e.value
}

// AngleCalculator derives a per-side joint angle from three landmarks
// and smooths it with a sliding median followed by an EMA.
type AngleCalculator struct {
	window bilateral[*medianWindow]
	smooth bilateral[*ema]
}

// NewAngleCalculator builds a calculator with the given median window
// size and EMA alpha. Pass 0/0 to use the package defaults.
func NewAngleCalculator(windowSize int, alpha float32) *AngleCalculator {
	if windowSize <= 0 {
		windowSize = DefaultSmoothingWindow
	}
	if alpha <= 0 {
		alpha = DefaultEMAAlpha
	}
	ac := &AngleCalculator{}
	for _, s := range Sides {
		*ac.window.Get(s) = newMedianWindow(windowSize)
		*ac.smooth.Get(s) = newEMA(alpha)
	}
	return ac
}

// Reset clears both per-side window buffers and EMA state.
func (ac *AngleCalculator) Reset() {
	for _, s := range Sides {
		ac.window.Get(s).reset()
		ac.smooth.Get(s).reset()
	}
}

// ResetSide clears state for a single side only.
func (ac *AngleCalculator) ResetSide(s Side) {
	ac.window.Get(s).reset()
	ac.smooth.Get(s).reset()
}

// Update computes the raw interior angle at b for side s, pushes it
// through the median then EMA smoother, and returns the rounded
// integer degree.
func (ac *AngleCalculator) Update(s Side, a, b, c Landmark) int {
	raw := interiorAngle(
		point2D{X: a.X, Y: a.Y},
		point2D{X: b.X, Y: b.Y},
		point2D{X: c.X, Y: c.Y},
	)
	median := ac.window.Get(s).push(raw)
	smoothed := ac.smooth.Get(s).push(median)
	return int(math32.Round(smoothed))
}
