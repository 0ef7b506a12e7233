package repcount

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

// Joint is the body joint an ExerciseConfig tracks.
type Joint string

const (
	JointElbow    Joint = "ELBOW"
	JointKnee     Joint = "KNEE"
	JointShoulder Joint = "SHOULDER"
	JointHip      Joint = "HIP"
	JointAnkle    Joint = "ANKLE"
)

// landmarkTriple is the (A, B, C) vertex triple for one side, B is the
// vertex the angle is measured at.
type landmarkTriple struct {
	A, B, C int
}

// ExerciseConfig is the immutable preset describing which landmarks
// define the tracked joint on each side.
type ExerciseConfig struct {
	Name               string
	Joint              Joint
	Right              landmarkTriple
	Left               landmarkTriple
	AIFeatureLandmarks [8]int
}

// presetFile mirrors the YAML document shape; it is decoded once and
// converted into ExerciseConfig values so the rest of the package never
// deals with YAML tags.
type presetFile struct {
	Presets []struct {
		Name          string `yaml:"name"`
		Joint         string `yaml:"joint"`
		RightLandmark [3]int `yaml:"right_landmarks"`
		LeftLandmark  [3]int `yaml:"left_landmarks"`
		AIFeatures    [8]int `yaml:"ai_features_landmarks"`
	} `yaml:"presets"`
}

//go:embed presets.yaml
var defaultPresetsYAML []byte

// ErrInvalidPreset is returned when a preset fails validation: a
// vertex index colliding with an endpoint, or a malformed document.
// Per spec.md §7 this is fatal at session start.
var ErrInvalidPreset = fmt.Errorf("repcount: invalid exercise preset")

// LoadPresets decodes a YAML document of exercise presets into a name
// -> ExerciseConfig map, validating each entry. A preset with B == A or
// B == C (the vertex colliding with an endpoint) is rejected.
func LoadPresets(doc []byte) (map[string]ExerciseConfig, error) {
	var pf presetFile
	if err := yaml.Unmarshal(doc, &pf); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPreset, err)
	}

	out := make(map[string]ExerciseConfig, len(pf.Presets))
	for _, p := range pf.Presets {
		cfg := ExerciseConfig{
			Name:               p.Name,
			Joint:              Joint(p.Joint),
			Right:              landmarkTriple{A: p.RightLandmark[0], B: p.RightLandmark[1], C: p.RightLandmark[2]},
			Left:               landmarkTriple{A: p.LeftLandmark[0], B: p.LeftLandmark[1], C: p.LeftLandmark[2]},
			AIFeatureLandmarks: p.AIFeatures,
		}
		if err := validatePreset(cfg); err != nil {
			return nil, err
		}
		out[cfg.Name] = cfg
	}
	return out, nil
}

func validatePreset(cfg ExerciseConfig) error {
	if cfg.Name == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidPreset)
	}
	for _, t := range []landmarkTriple{cfg.Right, cfg.Left} {
		if t.B == t.A || t.B == t.C {
			return fmt.Errorf("%w: %s vertex landmark collides with an endpoint", ErrInvalidPreset, cfg.Name)
		}
		for _, idx := range []int{t.A, t.B, t.C} {
			if idx < 0 {
				return fmt.Errorf("%w: %s has a negative landmark index", ErrInvalidPreset, cfg.Name)
			}
		}
	}
	return nil
}

// DefaultPresets decodes the presets shipped with the module (recovered
// from original_source/constants.py's EXERCISE_PRESETS: Bicep Curl,
// Knee Lift, Shoulder Press, Squat, Standing Row).
func DefaultPresets() map[string]ExerciseConfig {
	presets, err := LoadPresets(defaultPresetsYAML)
	if err != nil {
		// The embedded document is part of the module; a decode
		// failure here means the module itself is broken.
		panic(fmt.Sprintf("repcount: embedded presets.yaml is invalid: %v", err))
	}
	return presets
}
