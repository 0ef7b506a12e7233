package repcount

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInteriorAngleRightAngle(t *testing.T) {
	// A vertical-then-horizontal elbow: 90 degrees exactly.
	a := point2D{X: 0, Y: 1}
	b := point2D{X: 0, Y: 0}
	c := point2D{X: 1, Y: 0}
	got := interiorAngle(a, b, c)
	assert.InDelta(t, 90.0, float64(got), 1e-3)
}

func TestInteriorAngleStraightLine(t *testing.T) {
	// Fully extended: 180 degrees.
	a := point2D{X: -1, Y: 0}
	b := point2D{X: 0, Y: 0}
	c := point2D{X: 1, Y: 0}
	got := interiorAngle(a, b, c)
	assert.InDelta(t, 180.0, float64(got), 1e-3)
}

func TestInteriorAngleFoldsAboveHalfCircle(t *testing.T) {
	for i := 0; i < 64; i++ {
		theta := float32(i) / 64 * 2 * math32.Pi
		a := point2D{X: math32.Cos(theta), Y: math32.Sin(theta)}
		b := point2D{X: 0, Y: 0}
		c := point2D{X: 1, Y: 0}
		got := interiorAngle(a, b, c)
		require.GreaterOrEqual(t, got, float32(0))
		require.LessOrEqual(t, got, float32(180.0001))
	}
}

func TestMedianWindowRejectsSingleFrameSpike(t *testing.T) {
	w := newMedianWindow(7)
	var last float32
	for _, v := range []float32{100, 100, 100, 100} {
		last = w.push(v)
	}
	require.Equal(t, float32(100), last)

	// A single spike should not move the median much.
	spiked := w.push(10)
	assert.Equal(t, float32(100), spiked)
}

func TestEMASeedsOnFirstSample(t *testing.T) {
	e := newEMA(0.5)
	first := e.push(42)
	assert.Equal(t, float32(42), first)
}

func TestEMAAlphaOneIsIdentity(t *testing.T) {
	// Setting alpha = 1 makes the EMA a pass-through: the median value
	// is the output, per spec.md §8's idempotence law.
	e := newEMA(1.0)
	for _, v := range []float32{10, 50, 5, 90} {
		got := e.push(v)
		assert.Equal(t, v, got)
	}
}

func TestAngleCalculatorUpdateReturnsInRange(t *testing.T) {
	ac := NewAngleCalculator(DefaultSmoothingWindow, DefaultEMAAlpha)
	a := Landmark{X: 0, Y: 1, Visibility: 1}
	b := Landmark{X: 0, Y: 0, Visibility: 1}
	c := Landmark{X: 1, Y: 0, Visibility: 1}

	for i := 0; i < 10; i++ {
		got := ac.Update(Right, a, b, c)
		require.True(t, got >= 0 && got <= 180, "angle %d out of [0,180]", got)
	}
}

func TestAngleCalculatorResetClearsState(t *testing.T) {
	ac := NewAngleCalculator(3, 0.5)
	a := Landmark{X: 0, Y: 1}
	b := Landmark{X: 0, Y: 0}
	c := Landmark{X: 1, Y: 0}
	ac.Update(Right, a, b, c)
	ac.Update(Right, a, b, c)

	ac.Reset()
	require.False(t, ac.smooth.Right.initialized)
	require.Equal(t, 0, ac.window.Right.count)
}

func TestInsertionSortFloat32(t *testing.T) {
	s := []float32{5, 3, 8, 1, 9, 2}
	insertionSortFloat32(s)
	for i := 1; i < len(s); i++ {
		require.LessOrEqual(t, s[i-1], s[i])
	}
}
