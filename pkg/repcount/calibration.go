package repcount

import (
	"fmt"
	"sort"

	"github.com/rs/zerolog"

	"github.com/itohio/physio-repcount/internal/obslog"
)

// CalibrationPhase is the current stage of the two-phase hold protocol.
type CalibrationPhase string

const (
	PhaseExtend   CalibrationPhase = "EXTEND"
	PhaseContract CalibrationPhase = "CONTRACT"
	PhaseComplete CalibrationPhase = "COMPLETE"
)

// Default calibration tunables, from spec.md §6.
const (
	DefaultHoldTime       = 5.0 // seconds
	DefaultMinSamples     = 20
	MinAcceptableROM      = 40 // degrees; stricter Open Question resolution, see DESIGN.md
	extendedMargin        = 8
	contractedMargin      = 8
	safeRangeMargin       = 15
	safeAngleMinFloor     = 15
	safeAngleMaxCeiling   = 175
	defaultContracted     = 50
	defaultExtended       = 160
	defaultSafeAngleMin   = 30
	defaultSafeAngleMax   = 175
)

// CalibrationData is the mutable, shared calibration record. Only
// CalibrationManager writes ContractedThreshold/ExtendedThreshold/
// SafeAngleMin/SafeAngleMax; RepCounter only reads them.
type CalibrationData struct {
	Active  bool
	Phase   CalibrationPhase
	Message string
	Progress int // 0..100

	extendedAngles   bilateral[[]float32]
	contractedAngles bilateral[[]float32]

	ContractedThreshold int
	ExtendedThreshold   int
	SafeAngleMin        int
	SafeAngleMax        int
}

// Reset clears sample buffers and progress for a new calibration run.
// Thresholds are left untouched until finalization overwrites them.
func (d *CalibrationData) Reset() {
	d.extendedAngles = bilateral[[]float32]{}
	d.contractedAngles = bilateral[[]float32]{}
	d.Progress = 0
}

// CalibrationManager runs the EXTEND -> CONTRACT hold protocol and
// derives patient-specific ROM thresholds.
type CalibrationManager struct {
	pose *PoseProcessor
	data *CalibrationData

	holdTime   float64
	minSamples int

	phaseStart float64
	log        zerolog.Logger
}

// NewCalibrationManager builds a manager bound to a PoseProcessor and
// the CalibrationData it will mutate. holdTime/minSamples of 0 use
// spec.md §6 defaults.
func NewCalibrationManager(pose *PoseProcessor, data *CalibrationData, holdTime float64, minSamples int) *CalibrationManager {
	if holdTime <= 0 {
		holdTime = DefaultHoldTime
	}
	if minSamples <= 0 {
		minSamples = DefaultMinSamples
	}
	return &CalibrationManager{
		pose:       pose,
		data:       data,
		holdTime:   holdTime,
		minSamples: minSamples,
		log:        obslog.New("calibration"),
	}
}

// Start begins the EXTEND phase.
func (m *CalibrationManager) Start(now float64) {
	joint := m.pose.Config().Joint
	m.data.Active = true
	m.data.Phase = PhaseExtend
	m.data.Reset()
	m.setMessage(fmt.Sprintf("Please fully EXTEND your %s joint.", titleCase(string(joint))))
	m.phaseStart = now
	m.log.Info().Str("exercise", m.pose.Config().Name).Msg("calibration started")
}

// ProcessFrame feeds one frame's landmarks into the active phase.
// Returns true exactly on the frame that finalizes calibration.
func (m *CalibrationManager) ProcessFrame(frame *LandmarkFrame, now float64) bool {
	if !m.data.Active {
		return false
	}

	angles := m.pose.BothAngles(frame)
	tracked := false
	for _, s := range Sides {
		if v := angles.Get(s); *v != nil {
			tracked = true
			m.collect(s, float32(**v))
		}
	}

	if !tracked {
		m.setMessage(fmt.Sprintf("Searching for your %s joint...", titleCase(string(m.pose.Config().Joint))))
		return false
	}

	elapsed := now - m.phaseStart
	m.data.Progress = progressPercent(elapsed, m.holdTime)

	if elapsed < m.holdTime {
		return false
	}

	if !m.haveEnoughSamples() {
		m.phaseStart = now
		m.data.Progress = 0
		m.setMessage(fmt.Sprintf("Hold longer and keep your %s joint visible.", titleCase(string(m.pose.Config().Joint))))
		return false
	}

	switch m.data.Phase {
	case PhaseExtend:
		m.data.Phase = PhaseContract
		m.phaseStart = now
		m.data.Progress = 0
		m.setMessage("Great. Now fully CONTRACT that joint.")
		return false
	case PhaseContract:
		m.finalize()
		return true
	}
	return false
}

func (m *CalibrationManager) collect(s Side, angle float32) {
	switch m.data.Phase {
	case PhaseExtend:
		bucket := m.data.extendedAngles.Get(s)
		*bucket = append(*bucket, angle)
	case PhaseContract:
		bucket := m.data.contractedAngles.Get(s)
		*bucket = append(*bucket, angle)
	}
}

func (m *CalibrationManager) haveEnoughSamples() bool {
	switch m.data.Phase {
	case PhaseExtend:
		return len(m.data.extendedAngles.Right) >= m.minSamples && len(m.data.extendedAngles.Left) >= m.minSamples
	case PhaseContract:
		return len(m.data.contractedAngles.Right) >= m.minSamples && len(m.data.contractedAngles.Left) >= m.minSamples
	}
	return false
}

func (m *CalibrationManager) finalize() {
	rightExt := robustAverage(m.data.extendedAngles.Right)
	leftExt := robustAverage(m.data.extendedAngles.Left)
	rightCon := robustAverage(m.data.contractedAngles.Right)
	leftCon := robustAverage(m.data.contractedAngles.Left)

	extended := int(min32(rightExt, leftExt) - extendedMargin)
	contracted := int(max32(rightCon, leftCon) + contractedMargin)

	if extended-contracted < MinAcceptableROM {
		m.log.Warn().
			Int("extended", extended).
			Int("contracted", contracted).
			Msg("degenerate calibration range, falling back to defaults")
		contracted = defaultContracted
		extended = defaultExtended
		m.data.SafeAngleMin = defaultSafeAngleMin
		m.data.SafeAngleMax = defaultSafeAngleMax
		m.data.ContractedThreshold = contracted
		m.data.ExtendedThreshold = extended
		m.data.Phase = PhaseComplete
		m.data.Active = false
		m.data.Progress = 100
		m.setMessage(fmt.Sprintf("WARNING: range of motion too small (%d-%d), using default thresholds.", contracted, extended))
		return
	}

	m.data.ContractedThreshold = contracted
	m.data.ExtendedThreshold = extended
	m.data.SafeAngleMin = clampInt(contracted-safeRangeMargin, safeAngleMinFloor, 1<<30)
	m.data.SafeAngleMax = clampInt(extended+safeRangeMargin, -(1 << 30), safeAngleMaxCeiling)
	m.data.Phase = PhaseComplete
	m.data.Active = false
	m.data.Progress = 100
	m.setMessage("Calibration successful. Ready to start!")
	m.log.Info().
		Int("contracted", contracted).
		Int("extended", extended).
		Msg("calibration finalized")
}

// setMessage updates the phase prompt only when it changes, per
// spec.md §4.3's "at most once per phase unless condition changes".
func (m *CalibrationManager) setMessage(msg string) {
	if m.data.Message == msg {
		return
	}
	m.data.Message = msg
}

func progressPercent(elapsed, hold float64) int {
	if hold <= 0 {
		return 100
	}
	p := int(100 * elapsed / hold)
	if p > 100 {
		p = 100
	}
	if p < 0 {
		p = 0
	}
	return p
}

// robustAverage applies the IQR-outlier rule: discard samples outside
// [Q1-1.5*IQR, Q3+1.5*IQR], then average the survivors. With fewer than
// 3 samples the arithmetic mean of all of them is returned.
func robustAverage(samples []float32) float32 {
	if len(samples) == 0 {
		return 0
	}
	if len(samples) < 3 {
		return mean32(samples)
	}

	sorted := append([]float32(nil), samples...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	q1 := percentile(sorted, 0.25)
	q3 := percentile(sorted, 0.75)
	iqr := q3 - q1
	lower := q1 - 1.5*iqr
	upper := q3 + 1.5*iqr

	var survivors []float32
	for _, v := range sorted {
		if v >= lower && v <= upper {
			survivors = append(survivors, v)
		}
	}
	if len(survivors) == 0 {
		return mean32(sorted)
	}
	return mean32(survivors)
}

// percentile uses linear interpolation between closest ranks (the
// convention that makes the IQR rule exclude exactly the 40 outlier in
// spec.md §8 scenario 5).
func percentile(sorted []float32, p float64) float32 {
	n := len(sorted)
	if n == 1 {
		return sorted[0]
	}
	idx := p * float64(n-1)
	lo := int(idx)
	hi := lo + 1
	if hi >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lo)
	return sorted[lo] + float32(frac)*(sorted[hi]-sorted[lo])
}

func mean32(vs []float32) float32 {
	if len(vs) == 0 {
		return 0
	}
	var sum float32
	for _, v := range vs {
		sum += v
	}
	return sum / float32(len(vs))
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	for i := range b {
		if i == 0 {
			if b[i] >= 'a' && b[i] <= 'z' {
				b[i] -= 'a' - 'A'
			}
		} else if b[i] >= 'A' && b[i] <= 'Z' {
			b[i] += 'a' - 'A'
		}
	}
	return string(b)
}
