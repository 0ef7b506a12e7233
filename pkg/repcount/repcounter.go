package repcount

import (
	"github.com/rs/zerolog"

	"github.com/itohio/physio-repcount/internal/obslog"
)

// ArmStage is a per-side state of the rep state machine.
type ArmStage string

const (
	StageUp         ArmStage = "UP"
	StageDown       ArmStage = "DOWN"
	StageMovingUp   ArmStage = "MOVING_UP"
	StageMovingDown ArmStage = "MOVING_DOWN"
	StageLost       ArmStage = "LOST"
)

// FeedbackColor is the severity tag attached to a feedback string.
type FeedbackColor string

const (
	ColorGray   FeedbackColor = "GRAY"
	ColorGreen  FeedbackColor = "GREEN"
	ColorYellow FeedbackColor = "YELLOW"
	ColorRed    FeedbackColor = "RED"
)

// Rep-counting tunables, from spec.md §6.
const (
	DefaultHysteresisMargin = 5.0 // degrees
	DefaultStateHoldTime    = 0.15 // seconds
	DefaultMinRepDuration   = 0.6 // seconds
	velocitySettledMax      = 15.0 // degrees/frame
	velocityFeedbackGateMax = 20.0 // degrees/frame
	lostAfterSeconds        = 1.0
	postRepComplimentWindow = 2.0 // seconds
	redCooldownWindow       = 3.0 // seconds
	romGuidanceBand         = 10  // degrees
)

// ArmMetrics holds all per-side rep-tracking state exposed to a host.
type ArmMetrics struct {
	RepCount      int
	Stage         ArmStage
	Angle         int
	Accuracy      int
	RepTime       float64
	MinRepTime    float64
	CurrRepTime   float64
	Feedback      string
	FeedbackColor FeedbackColor
	LastDownTime  float64

	errorCount int
}

// NewArmMetrics returns metrics in their session-start state: stage
// DOWN, angle 0, per spec.md §3.
func NewArmMetrics(now float64) ArmMetrics {
	return ArmMetrics{
		Stage:         StageDown,
		FeedbackColor: ColorGray,
		LastDownTime:  now,
	}
}

// recomputeAccuracy applies the monotone-in-error-ratio formula chosen
// in SPEC_FULL.md §4.4: floor(100*(reps-errors)/reps), 100 with no reps.
func (m *ArmMetrics) recomputeAccuracy() {
	if m.RepCount == 0 {
		m.Accuracy = 100
		return
	}
	acc := 100 * (m.RepCount - m.errorCount) / m.RepCount
	if acc < 0 {
		acc = 0
	}
	if acc > 100 {
		acc = 100
	}
	m.Accuracy = acc
}

// Chooser picks one string out of a pool. It is injected so tests can
// supply a deterministic sequence while production uses a real PRNG,
// per spec.md §9's "pluggable string chooser" re-architecture note.
type Chooser interface {
	Choose(pool []string) string
}

// sideState is the per-side bookkeeping RepCounter needs beyond what
// is visible on ArmMetrics (angle history for velocity, pending-state
// confirmation timers, compliment/cooldown windows).
type sideState struct {
	history        [8]int
	historyLen     int
	historyNext    int
	pendingState   ArmStage
	hasPending     bool
	pendingStart   float64
	repStartTime   float64
	lastAngleTime  float64
	lastCreditTime float64
	lastRedTime    float64
	hasLastRed     bool
}

func (s *sideState) pushHistory(angle int) {
	s.history[s.historyNext] = angle
	s.historyNext = (s.historyNext + 1) % len(s.history)
	if s.historyLen < len(s.history) {
		s.historyLen++
	}
}

// at returns the value n slots back from the most recent push (0 = most
// recent), and whether that many samples exist.
func (s *sideState) at(n int) (int, bool) {
	if n >= s.historyLen {
		return 0, false
	}
	idx := (s.historyNext - 1 - n + len(s.history)) % len(s.history)
	return s.history[idx], true
}

// RepCounter is the per-side, bilaterally-independent rep state
// machine: hysteresis-gated, temporally confirmed, with live form
// feedback synthesis.
type RepCounter struct {
	calibration *CalibrationData
	chooser     Chooser

	state    bilateral[sideState]
	minRepDuration float64
	hysteresis     float64
	stateHoldTime  float64

	log zerolog.Logger
}

// NewRepCounter builds a counter bound to the calibration thresholds it
// will read (never write). Zero values for the tunables select spec.md
// §6 defaults.
func NewRepCounter(calibration *CalibrationData, chooser Chooser, minRepDuration, hysteresis, stateHoldTime float64) *RepCounter {
	if minRepDuration <= 0 {
		minRepDuration = DefaultMinRepDuration
	}
	if hysteresis <= 0 {
		hysteresis = DefaultHysteresisMargin
	}
	if stateHoldTime <= 0 {
		stateHoldTime = DefaultStateHoldTime
	}
	if chooser == nil {
		chooser = NewSeededChooser(1)
	}
	return &RepCounter{
		calibration:    calibration,
		chooser:        chooser,
		minRepDuration: minRepDuration,
		hysteresis:     hysteresis,
		stateHoldTime:  stateHoldTime,
		log:            obslog.New("repcounter"),
	}
}

// ResetSide clears all tracking state for one side, e.g. on session
// reset or when (re)entering ACTIVE.
func (r *RepCounter) ResetSide(s Side, now float64) {
	*r.state.Get(s) = sideState{}
}

// ProcessRep consumes one (timestamp, angle) sample for side s and
// mutates metrics in place. Per spec.md §4.4's lost-tracking contract,
// the caller must not call this for a side with no angle this frame.
func (r *RepCounter) ProcessRep(s Side, angle int, metrics *ArmMetrics, now float64) {
	st := r.state.Get(s)
	metrics.Angle = angle
	st.pushHistory(angle)
	st.lastAngleTime = now
	metrics.Feedback = ""

	if st.historyLen < 4 {
		return
	}

	velocity := r.velocity(st)
	prevStage := metrics.Stage

	contracted := float64(r.calibration.ContractedThreshold)
	extended := float64(r.calibration.ExtendedThreshold)

	target := r.targetState(float64(angle), contracted, extended, prevStage)

	if target != prevStage {
		if st.hasPending && st.pendingState == target {
			holdDuration := now - st.pendingStart
			if holdDuration >= r.stateHoldTime && velocity < velocitySettledMax {
				r.transition(s, st, prevStage, target, metrics, now)
			}
		} else {
			st.pendingState = target
			st.pendingStart = now
			st.hasPending = true
		}
	} else {
		st.hasPending = false
	}

	if metrics.Stage == StageUp {
		metrics.CurrRepTime = now - st.repStartTime
	}

	if velocity < velocityFeedbackGateMax {
		r.formFeedback(s, st, angle, metrics, contracted, extended, now)
	}
}

// MarkLostIfStale flags a side LOST once tracking has been absent for
// at least a second, the optional enhancement spec.md §4.4 names. It is
// a no-op while the side is being actively updated by ProcessRep.
func (r *RepCounter) MarkLostIfStale(s Side, metrics *ArmMetrics, now float64) {
	st := r.state.Get(s)
	if metrics.Stage == StageLost {
		return
	}
	if st.lastAngleTime == 0 {
		return
	}
	if now-st.lastAngleTime >= lostAfterSeconds {
		metrics.Stage = StageLost
	}
}

// velocity is |last - 4-frames-prior| / 3, per spec.md §4.4.
func (r *RepCounter) velocity(st *sideState) float64 {
	last, ok1 := st.at(0)
	prior, ok2 := st.at(3)
	if !ok1 || !ok2 {
		return 0
	}
	d := last - prior
	if d < 0 {
		d = -d
	}
	return float64(d) / 3.0
}

// targetState implements the hysteresis table from spec.md §4.4.
func (r *RepCounter) targetState(angle, contracted, extended float64, current ArmStage) ArmStage {
	h := r.hysteresis
	if angle <= contracted-h {
		return StageUp
	}
	if angle >= extended+h {
		return StageDown
	}

	switch current {
	case StageUp:
		if angle < contracted+h {
			return StageUp
		}
		return StageMovingDown
	case StageDown, StageLost:
		// A side recovering from LOST is treated like a side at rest
		// in DOWN: it must clearly move past the extended threshold
		// before the machine starts crediting motion again.
		if angle > extended-h {
			return StageDown
		}
		return StageMovingUp
	case StageMovingUp:
		return StageMovingUp
	case StageMovingDown:
		return StageMovingDown
	default:
		return current
	}
}

// transition applies a confirmed state change and credits a rep when
// the UP -> (MOVING_DOWN | DOWN) cycle validates.
func (r *RepCounter) transition(s Side, st *sideState, prev, next ArmStage, metrics *ArmMetrics, now float64) {
	metrics.Stage = next
	st.hasPending = false

	switch {
	case prev == StageUp && (next == StageMovingDown || next == StageDown):
		repTime := now - metrics.LastDownTime
		if repTime >= r.minRepDuration {
			metrics.RepCount++
			metrics.RepTime = repTime
			if metrics.MinRepTime == 0 {
				metrics.MinRepTime = repTime
			} else if repTime < metrics.MinRepTime {
				metrics.MinRepTime = repTime
			}
			metrics.LastDownTime = now
			metrics.CurrRepTime = 0
			st.lastCreditTime = now
			metrics.recomputeAccuracy()
			r.log.Debug().Str("side", s.String()).Int("rep_count", metrics.RepCount).Float64("rep_time", repTime).Msg("rep credited")
		}
	case next == StageDown:
		st.repStartTime = now
	case next == StageUp:
		if st.repStartTime == 0 {
			st.repStartTime = now
		}
	}
}

// formFeedback implements the priority-ordered feedback rules of
// spec.md §4.4. metrics.Feedback always holds the current frame's text;
// a host forwarding it to a TTS collaborator is expected to dedupe
// against the previous frame's value before speaking, so silent frames
// never repeat a sentence.
func (r *RepCounter) formFeedback(s Side, st *sideState, angle int, metrics *ArmMetrics, contracted, extended float64, now float64) {
	metrics.Feedback, metrics.FeedbackColor = r.computeFeedback(s, st, angle, metrics, contracted, extended, now)
}

func (r *RepCounter) computeFeedback(s Side, st *sideState, angle int, metrics *ArmMetrics, contracted, extended float64, now float64) (string, FeedbackColor) {
	// 1. post-rep compliment window
	if st.lastCreditTime > 0 && now-st.lastCreditTime <= postRepComplimentWindow {
		return r.chooser.Choose(complimentPool), ColorGreen
	}

	// 2. RED cooldown window
	if st.hasLastRed && now-st.lastRedTime <= redCooldownWindow {
		return "Maintain Form", ColorGreen
	}

	safeMin := float64(r.calibration.SafeAngleMin)
	safeMax := float64(r.calibration.SafeAngleMax)

	// 3. hard form errors
	if float64(angle) < safeMin {
		st.lastRedTime = now
		st.hasLastRed = true
		metrics.errorCount++
		metrics.recomputeAccuracy()
		return "Over Curling", ColorRed
	}
	if float64(angle) > safeMax {
		st.lastRedTime = now
		st.hasLastRed = true
		metrics.errorCount++
		metrics.recomputeAccuracy()
		return "Over Extending", ColorRed
	}

	// 4. interior ROM guidance
	if metrics.Stage == StageUp || metrics.Stage == StageMovingUp {
		if float64(angle) > contracted+romGuidanceBand {
			return "Curl Higher", ColorYellow
		}
	}
	if metrics.Stage == StageDown || metrics.Stage == StageMovingDown {
		if float64(angle) < extended-romGuidanceBand {
			return "Extend Fully", ColorYellow
		}
	}

	// 5. default
	switch metrics.Stage {
	case StageUp, StageDown:
		return "Maintain Form", ColorGreen
	default:
		return "Maintain Form", ColorYellow
	}
}

var complimentPool = []string{
	"Great form!",
	"Nice rep!",
	"Keep it up!",
	"Solid control!",
}
