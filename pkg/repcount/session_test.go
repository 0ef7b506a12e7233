package repcount

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// angleDetector reports the same bilateral angle on every frame until
// the test changes it, letting a test drive a WorkoutSession through
// calibration and rep cycles deterministically.
type angleDetector struct {
	cfg   ExerciseConfig
	angle float32
}

func (d *angleDetector) Detect(now float64) (*LandmarkFrame, bool) {
	return bothSidesFrame(d.cfg, d.angle), true
}

// driveCalibrationPhase feeds frames at the given angle until the
// manager's phase advances or maxFrames is exhausted.
func driveCalibrationPhase(t *testing.T, w *WorkoutSession, det *angleDetector, angle float32, startNow float64, dt float64, maxFrames int) float64 {
	t.Helper()
	det.angle = angle
	now := startNow
	startPhase := w.calibration.Phase
	for i := 0; i < maxFrames; i++ {
		now += dt
		w.ProcessFrame(now)
		if w.Phase() != PhaseCalibration || w.calibration.Phase != startPhase {
			return now
		}
	}
	t.Fatalf("calibration phase %s did not advance within %d frames", startPhase, maxFrames)
	return now
}

func TestSessionPhaseSequencingEndToEnd(t *testing.T) {
	cfg := bicepCurlConfig(t)
	det := &angleDetector{cfg: cfg}
	w := NewWorkoutSession(det)

	require.Equal(t, PhaseInactive, w.Phase())
	require.NoError(t, w.Start(cfg, FixedChooser{Value: "Great form!"}, 0))
	require.Equal(t, PhaseCalibration, w.Phase())

	dt := 0.05
	now := driveCalibrationPhase(t, w, det, 160, 0, dt, 200)
	require.Equal(t, PhaseCalibration, w.Phase())
	require.Equal(t, PhaseContract, w.calibration.Phase)

	now = driveCalibrationPhase(t, w, det, 50, now, dt, 200)
	require.Equal(t, PhaseCountdown, w.Phase())
	require.Equal(t, PhaseComplete, w.calibration.Phase)
	require.False(t, w.calibration.Active)

	contracted := w.calibration.ContractedThreshold
	extended := w.calibration.ExtendedThreshold
	require.Less(t, contracted, extended)

	// Countdown: keep ticking (angle irrelevant) until ACTIVE.
	advanced := false
	for i := 0; i < 300; i++ {
		now += dt
		w.ProcessFrame(now)
		if w.Phase() == PhaseActive {
			advanced = true
			break
		}
	}
	require.True(t, advanced, "countdown never completed")

	// Drive one full rep: rest extended, curl past contracted, extend
	// back out past extended+hysteresis.
	runHold := func(angle float32, frames int) {
		det.angle = angle
		for i := 0; i < frames; i++ {
			now += dt
			w.ProcessFrame(now)
		}
	}
	runHold(float32(extended+2), 60)
	runHold(float32(contracted-12), 60)
	runHold(float32(extended+7), 60)

	snap := w.Snapshot()
	require.Equal(t, PhaseActive, snap.Phase)
	require.Equal(t, 1, snap.Right.RepCount)
	require.Equal(t, 1, snap.Left.RepCount)

	report, err := w.Stop(42.0)
	require.NoError(t, err)
	require.Equal(t, PhaseInactive, w.Phase())
	require.Equal(t, 42.0, report.Duration)
	require.Equal(t, 1, report.Summary.Right.TotalReps)
	require.Equal(t, 1, report.Summary.Left.TotalReps)
}

func TestSessionStartRejectsInvalidPreset(t *testing.T) {
	det := &angleDetector{}
	w := NewWorkoutSession(det)
	bad := ExerciseConfig{Name: "Bad", Right: landmarkTriple{A: 1, B: 1, C: 2}, Left: landmarkTriple{A: 1, B: 2, C: 3}}
	err := w.Start(bad, nil, 0)
	require.ErrorIs(t, err, ErrInvalidPreset)
	require.Equal(t, PhaseInactive, w.Phase())
}

func TestSessionStartTwiceReturnsErrAlreadyActive(t *testing.T) {
	cfg := bicepCurlConfig(t)
	det := &angleDetector{cfg: cfg}
	w := NewWorkoutSession(det)
	require.NoError(t, w.Start(cfg, nil, 0))
	err := w.Start(cfg, nil, 1)
	require.ErrorIs(t, err, ErrAlreadyActive)
}

func TestSessionStopWhenInactiveReturnsErrNotActive(t *testing.T) {
	det := &angleDetector{}
	w := NewWorkoutSession(det)
	_, err := w.Stop(10)
	require.ErrorIs(t, err, ErrNotActive)
}

func TestSessionProcessFrameIsNoOpWhenInactive(t *testing.T) {
	det := &angleDetector{}
	w := NewWorkoutSession(det)
	require.False(t, w.ProcessFrame(0))
}

// fakeClassifier lets a test force form-OK to false deterministically.
type fakeClassifier struct{ ok bool }

func (f fakeClassifier) Predict([16]float32) bool { return f.ok }

func TestSessionFormClassifierDrivesFormOK(t *testing.T) {
	cfg := bicepCurlConfig(t)
	det := &angleDetector{cfg: cfg, angle: 160}
	w := NewWorkoutSession(det)
	w.SetFormClassifier(fakeClassifier{ok: false})
	require.NoError(t, w.Start(cfg, nil, 0))

	// Skip calibration and countdown by forcing the phase directly is not
	// possible from outside; instead drive through them quickly using
	// healthy thresholds, then confirm FormOK reflects the classifier.
	dt := 0.05
	now := driveCalibrationPhase(t, w, det, 160, 0, dt, 200)
	now = driveCalibrationPhase(t, w, det, 50, now, dt, 200)
	for i := 0; i < 300; i++ {
		now += dt
		w.ProcessFrame(now)
		if w.Phase() == PhaseActive {
			break
		}
	}
	require.Equal(t, PhaseActive, w.Phase())

	now += dt
	w.ProcessFrame(now)
	require.False(t, w.Snapshot().FormOK)
}
