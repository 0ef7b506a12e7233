package repcount

// MinVisibility is the confidence floor below which a landmark is
// treated as "not tracked" for the purpose of deriving an angle.
const MinVisibility = 0.6

// PoseProcessor turns a LandmarkFrame into per-side smoothed joint
// angles for the active ExerciseConfig.
type PoseProcessor struct {
	config ExerciseConfig
	angles *AngleCalculator
}

// NewPoseProcessor builds a processor for the given preset. The angle
// calculator is owned by the processor so Reset() clears smoothing
// state together with everything else tied to a session.
func NewPoseProcessor(cfg ExerciseConfig) *PoseProcessor {
	return &PoseProcessor{
		config: cfg,
		angles: NewAngleCalculator(DefaultSmoothingWindow, DefaultEMAAlpha),
	}
}

// Config returns the active exercise preset.
func (p *PoseProcessor) Config() ExerciseConfig {
	return p.config
}

// Reset clears smoothing state for both sides, e.g. on session reset.
func (p *PoseProcessor) Reset() {
	p.angles.Reset()
}

// BothAngles returns the smoothed angle for each side, or nil for a
// side whose triple could not be read from the frame or had a
// below-floor visibility landmark. Absence is not an error: the caller
// treats it as "tracking lost for this frame on this side".
func (p *PoseProcessor) BothAngles(frame *LandmarkFrame) bilateral[*int] {
	var out bilateral[*int]
	if frame == nil || len(frame.Landmarks) == 0 {
		return out
	}
	for _, s := range Sides {
		if angle, ok := p.sideAngle(s, frame); ok {
			v := angle
			*out.Get(s) = &v
		}
	}
	return out
}

func (p *PoseProcessor) sideAngle(s Side, frame *LandmarkFrame) (int, bool) {
	t := p.config.Right
	if s == Left {
		t = p.config.Left
	}

	a, ok := frame.At(t.A)
	if !ok || a.Visibility < MinVisibility {
		return 0, false
	}
	b, ok := frame.At(t.B)
	if !ok || b.Visibility < MinVisibility {
		return 0, false
	}
	c, ok := frame.At(t.C)
	if !ok || c.Visibility < MinVisibility {
		return 0, false
	}

	return p.angles.Update(s, a, b, c), true
}
