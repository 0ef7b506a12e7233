package repcount

import "math/rand/v2"

// seededChooser picks deterministically via a seeded PRNG, for tests
// and for any host that wants reproducible compliment sequences.
type seededChooser struct {
	rng *rand.Rand
}

// NewSeededChooser returns a Chooser whose sequence is fully determined
// by seed.
func NewSeededChooser(seed uint64) Chooser {
	return &seededChooser{rng: rand.New(rand.NewPCG(seed, seed))}
}

func (c *seededChooser) Choose(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[c.rng.IntN(len(pool))]
}

// randChooser picks using the package-level, unseeded PRNG.
type randChooser struct{}

// NewRandChooser returns the production Chooser: real, non-reproducible
// randomness.
func NewRandChooser() Chooser {
	return randChooser{}
}

func (randChooser) Choose(pool []string) string {
	if len(pool) == 0 {
		return ""
	}
	return pool[rand.IntN(len(pool))]
}

// FixedChooser always returns the same string, useful in tests that
// want to assert on the remaining priority rules without compliment
// text in the way.
type FixedChooser struct {
	Value string
}

func (f FixedChooser) Choose([]string) string {
	return f.Value
}
