package repcount

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/itohio/physio-repcount/internal/obslog"
)

// WorkoutPhase is the top-level session state machine.
type WorkoutPhase string

const (
	PhaseInactive  WorkoutPhase = "INACTIVE"
	// These string values differ from every CalibrationPhase value, so a
	// snapshot's Phase and Calibration.Phase never share a value.
	PhaseCalibration WorkoutPhase = "CALIBRATION"
	PhaseCountdown   WorkoutPhase = "COUNTDOWN"
	PhaseActive      WorkoutPhase = "ACTIVE"
)

// DefaultCountdownTime is WORKOUT_COUNTDOWN_TIME, spec.md §6.
const DefaultCountdownTime = 5.0

// SessionHistory is the append-only per-frame trace recorded during
// ACTIVE play.
type SessionHistory struct {
	Time       []float64
	RightAngle []int
	LeftAngle  []int
}

func (h *SessionHistory) reset() {
	h.Time = nil
	h.RightAngle = nil
	h.LeftAngle = nil
}

func (h *SessionHistory) append(now float64, right, left *int) {
	h.Time = append(h.Time, now)
	if right != nil {
		h.RightAngle = append(h.RightAngle, *right)
	}
	if left != nil {
		h.LeftAngle = append(h.LeftAngle, *left)
	}
}

// Detector is the pose-landmark producer collaborator, out of scope
// per spec.md §1: a black box the core only calls through this
// interface.
type Detector interface {
	Detect(now float64) (*LandmarkFrame, bool)
}

// Snapshot is the serializable, by-value copy of session state handed
// to external consumers each frame (spec.md §4.5's get_state_dict).
type Snapshot struct {
	Phase       WorkoutPhase
	FrameCount  uint64
	Right       ArmMetrics
	Left        ArmMetrics
	Calibration CalibrationSnapshot
	FormOK      bool
}

// CalibrationSnapshot is the read-only slice of CalibrationData exposed
// to a host; sample buffers stay internal.
type CalibrationSnapshot struct {
	Active   bool
	Phase    CalibrationPhase
	Message  string
	Progress int
}

// ErrAlreadyActive is returned by Start when a session is not INACTIVE.
var ErrAlreadyActive = fmt.Errorf("repcount: session already started")

// ErrNotActive is returned by Stop when a session is already INACTIVE.
var ErrNotActive = fmt.Errorf("repcount: session is not active")

// WorkoutSession orchestrates the pipeline: PoseProcessor feeding a
// CalibrationManager then two independent RepCounters, tracking the
// overall WorkoutPhase one frame at a time.
type WorkoutSession struct {
	detector   Detector
	classifier FormClassifier

	phase        WorkoutPhase
	frameCount   uint64
	pose         *PoseProcessor
	calibration  *CalibrationData
	calibManager *CalibrationManager
	repCounter   *RepCounter
	history      SessionHistory

	metrics  bilateral[ArmMetrics]
	formOK   bool

	startTime float64

	countdownTime      float64
	countdownRemaining float64
	lastCountdownTick  float64

	log zerolog.Logger
}

// NewWorkoutSession builds an INACTIVE session around a detector
// collaborator. Call Start to select a preset and begin calibration.
func NewWorkoutSession(detector Detector) *WorkoutSession {
	return &WorkoutSession{
		detector:      detector,
		phase:         PhaseInactive,
		countdownTime: DefaultCountdownTime,
		formOK:        true,
		log:           obslog.New("session"),
	}
}

// Phase returns the current top-level state.
func (w *WorkoutSession) Phase() WorkoutPhase {
	return w.phase
}

// SetFormClassifier wires an optional form-classifier collaborator.
// It is queried at most once per ACTIVE frame; a nil classifier (the
// default) makes every frame report form OK, per spec.md §6.
func (w *WorkoutSession) SetFormClassifier(c FormClassifier) {
	w.classifier = c
}

// Start validates the preset, resets all per-session state, and enters
// CALIBRATION. Per spec.md §7, an invalid preset is fatal here and
// never reaches CALIBRATION.
func (w *WorkoutSession) Start(cfg ExerciseConfig, chooser Chooser, now float64) error {
	if w.phase != PhaseInactive {
		return ErrAlreadyActive
	}
	if err := validatePreset(cfg); err != nil {
		return err
	}

	w.pose = NewPoseProcessor(cfg)
	w.calibration = &CalibrationData{}
	w.calibManager = NewCalibrationManager(w.pose, w.calibration, DefaultHoldTime, DefaultMinSamples)
	w.repCounter = NewRepCounter(w.calibration, chooser, DefaultMinRepDuration, DefaultHysteresisMargin, DefaultStateHoldTime)
	w.history.reset()
	w.frameCount = 0
	w.countdownRemaining = 0
	w.lastCountdownTick = 0
	w.startTime = now

	for _, s := range Sides {
		*w.metrics.Get(s) = NewArmMetrics(now)
		w.repCounter.ResetSide(s, now)
	}

	w.phase = PhaseCalibration
	w.calibManager.Start(now)
	w.log.Info().Str("exercise", cfg.Name).Msg("session started, entering calibration")
	return nil
}

// Stop transitions to INACTIVE and returns the final report, whose
// Duration is now minus the time passed to Start. Any rep
// already credited before Stop is observed stays credited, per
// spec.md §5's cancellation contract.
func (w *WorkoutSession) Stop(now float64) (Report, error) {
	if w.phase == PhaseInactive {
		return Report{}, ErrNotActive
	}
	report := w.buildReport(now - w.startTime)
	w.phase = PhaseInactive
	w.log.Info().Msg("session stopped")
	return report, nil
}

// ProcessFrame advances the pipeline by one tick. It returns whether
// the host's frame loop should continue (phase != INACTIVE), matching
// spec.md §4.5.
func (w *WorkoutSession) ProcessFrame(now float64) bool {
	if w.phase == PhaseInactive {
		return false
	}

	frame, ok := w.detector.Detect(now)
	w.frameCount++

	switch w.phase {
	case PhaseCalibration:
		if ok && w.calibManager.ProcessFrame(frame, now) {
			w.phase = PhaseCountdown
			w.countdownRemaining = w.countdownTime
			w.log.Info().Msg("calibration complete, entering countdown")
		}
	case PhaseCountdown:
		w.countdownRemaining -= frameDelta(now, w.lastCountdownTick)
		w.lastCountdownTick = now
		if w.countdownRemaining <= 0 {
			w.phase = PhaseActive
			w.log.Info().Msg("countdown complete, session active")
		}
	case PhaseActive:
		w.tickActive(frame, ok, now)
	}

	return w.phase != PhaseInactive
}

// tickActive implements spec.md §4.5 step 4: per-side angle lookup,
// RepCounter dispatch for tracked sides, history append, and the
// optional LOST enhancement for sides that went untracked this frame.
func (w *WorkoutSession) tickActive(frame *LandmarkFrame, ok bool, now float64) {
	var angles bilateral[*int]
	if ok {
		angles = w.pose.BothAngles(frame)
		w.formOK = classifyForm(w.classifier, w.pose.Config(), frame)
	}

	for _, s := range Sides {
		metrics := w.metrics.Get(s)
		if v := angles.Get(s); *v != nil {
			w.repCounter.ProcessRep(s, **v, metrics, now)
		} else {
			w.repCounter.MarkLostIfStale(s, metrics, now)
		}
	}

	w.history.append(now, angles.Right, angles.Left)
}

func frameDelta(now, last float64) float64 {
	if last == 0 {
		return 0
	}
	d := now - last
	if d < 0 {
		return 0
	}
	return d
}

// Snapshot returns a by-value copy of the current session state, safe
// to read from another goroutine through the Engine command channel
// (see pkg/engine).
func (w *WorkoutSession) Snapshot() Snapshot {
	snap := Snapshot{
		Phase:      w.phase,
		FrameCount: w.frameCount,
		Right:      w.metrics.Right,
		Left:       w.metrics.Left,
		FormOK:     w.formOK,
	}
	if w.calibration != nil {
		snap.Calibration = CalibrationSnapshot{
			Active:   w.calibration.Active,
			Phase:    w.calibration.Phase,
			Message:  w.calibration.Message,
			Progress: w.calibration.Progress,
		}
	}
	return snap
}

// Report is the final summary produced on Stop, handed to a host's
// Persister collaborator (spec.md §6).
type Report struct {
	Duration float64
	Summary  bilateral[SideSummary]
}

// SideSummary is one side's contribution to the final Report.
type SideSummary struct {
	TotalReps  int
	ErrorCount int
	Accuracy   int
}

func (w *WorkoutSession) buildReport(duration float64) Report {
	var r Report
	r.Duration = duration
	for _, s := range Sides {
		m := w.metrics.Get(s)
		*r.Summary.Get(s) = SideSummary{
			TotalReps:  m.RepCount,
			ErrorCount: m.errorCount,
			Accuracy:   m.Accuracy,
		}
	}
	return r
}
