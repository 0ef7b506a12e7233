package repcount

import "context"

// FormClassifier is the external ML yes/no form predictor collaborator
// (spec.md §6). The core queries it at most once per frame; a nil
// classifier defaults to "form OK".
type FormClassifier interface {
	Predict(features [16]float32) bool
}

// AIFeatures flattens the (x, y) of the preset's 8 ai_features_landmarks
// into the 16 floats a FormClassifier expects. ok is false if any of
// the 8 landmarks could not be read from the frame.
func AIFeatures(cfg ExerciseConfig, frame *LandmarkFrame) (features [16]float32, ok bool) {
	for i, idx := range cfg.AIFeatureLandmarks {
		lm, found := frame.At(idx)
		if !found {
			return features, false
		}
		features[2*i] = lm.X
		features[2*i+1] = lm.Y
	}
	return features, true
}

// classifyForm evaluates the classifier for the current frame,
// defaulting to true (form OK) whenever the classifier is absent or
// the features could not be read, per spec.md §6/§7.
func classifyForm(classifier FormClassifier, cfg ExerciseConfig, frame *LandmarkFrame) bool {
	if classifier == nil || frame == nil {
		return true
	}
	features, ok := AIFeatures(cfg, frame)
	if !ok {
		return true
	}
	return classifier.Predict(features)
}

// Commentator is the conversational-AI commentary collaborator
// (spec.md §6). Purely consultative: the core never calls it, a host
// may use it alongside a Snapshot/Report to narrate a session.
type Commentator interface {
	Generate(ctx context.Context, c CommentaryContext, query string, history []string) (string, error)
}

// CommentaryContext is the read-only view handed to a Commentator.
type CommentaryContext struct {
	Reps      int
	RightReps int
	LeftReps  int
	Errors    int
	Feedback  string
	Exercise  string
}

// Persister is the session-storage collaborator (spec.md §6). The core
// produces a Report; it never talks to storage itself.
type Persister interface {
	Persist(ctx context.Context, r PersistedSession) error
}

// PersistedSession is the shape a host may choose to store, built from
// a Report plus host-owned identity/exercise fields.
type PersistedSession struct {
	Email      string
	Date       string // YYYY-MM-DD
	Timestamp  float64
	Exercise   string
	Duration   float64
	TotalReps  int
	RightReps  int
	LeftReps   int
	TotalErrors int
}
