package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/itohio/physio-repcount/pkg/repcount"
)

// stubDetector always reports the same flat frame, enough to drive an
// Engine through Start/Tick/Snapshot/Stop without a real pose source.
type stubDetector struct {
	cfg   repcount.ExerciseConfig
	angle float32
}

func (d *stubDetector) Detect(now float64) (*repcount.LandmarkFrame, bool) {
	size := 1
	for _, idx := range []int{d.cfg.Right.A, d.cfg.Right.B, d.cfg.Right.C, d.cfg.Left.A, d.cfg.Left.B, d.cfg.Left.C} {
		if idx+1 > size {
			size = idx + 1
		}
	}
	lms := make([]repcount.Landmark, size)
	for i := range lms {
		lms[i] = repcount.Landmark{Visibility: 1}
	}
	return &repcount.LandmarkFrame{Landmarks: lms, Timestamp: now}, true
}

func testPreset(t *testing.T) repcount.ExerciseConfig {
	t.Helper()
	presets := repcount.DefaultPresets()
	cfg, ok := presets["Bicep Curl"]
	require.True(t, ok)
	return cfg
}

func TestEngineStartTickSnapshotStop(t *testing.T) {
	cfg := testPreset(t)
	det := &stubDetector{cfg: cfg}
	eng := New(det, repcount.NewSeededChooser(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	require.NoError(t, eng.Start(ctx, cfg, 0))

	cont, err := eng.Tick(ctx, 0.1)
	require.NoError(t, err)
	require.True(t, cont)

	snap, err := eng.Snapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, repcount.PhaseCalibration, snap.Phase)
	require.Equal(t, uint64(1), snap.FrameCount)

	report, err := eng.Stop(ctx, 5.0)
	require.NoError(t, err)
	require.Equal(t, 5.0, report.Duration)

	_, err = eng.Snapshot(ctx)
	require.NoError(t, err)
}

func TestEngineStartWithoutRunLoopTimesOutOnContext(t *testing.T) {
	cfg := testPreset(t)
	det := &stubDetector{cfg: cfg}
	eng := New(det, repcount.NewSeededChooser(1))

	// No Run(ctx) goroutine is started: every call must respect context
	// cancellation instead of blocking forever.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := eng.Start(ctx, cfg, 0)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestEngineStartTwiceReturnsErrAlreadyActive(t *testing.T) {
	cfg := testPreset(t)
	det := &stubDetector{cfg: cfg}
	eng := New(det, repcount.NewSeededChooser(1))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	require.NoError(t, eng.Start(ctx, cfg, 0))
	err := eng.Start(ctx, cfg, 1)
	require.ErrorIs(t, err, repcount.ErrAlreadyActive)
}
