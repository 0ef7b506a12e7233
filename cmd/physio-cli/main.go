// Command physio-cli drives the rep-counting engine against a recorded
// JSON landmark trace, the way a real host would drive it frame by
// frame from a camera + pose detector. It exists to exercise the
// package from outside its own tests, as a thin binary over a stable
// library.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/itohio/physio-repcount/pkg/engine"
	"github.com/itohio/physio-repcount/pkg/repcount"
)

type frameFixture struct {
	Timestamp float64 `json:"timestamp"`
	Landmarks []struct {
		X          float32 `json:"x"`
		Y          float32 `json:"y"`
		Visibility float32 `json:"visibility"`
	} `json:"landmarks"`
}

// fixtureDetector replays a recorded trace in timestamp order, one
// frame per Detect call, the minimal shape spec.md §6 asks of a
// Detector collaborator.
type fixtureDetector struct {
	frames []frameFixture
	next   int
}

func newFixtureDetector(path string) (*fixtureDetector, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading fixture: %w", err)
	}
	var frames []frameFixture
	if err := json.Unmarshal(data, &frames); err != nil {
		return nil, fmt.Errorf("decoding fixture: %w", err)
	}
	sort.Slice(frames, func(i, j int) bool { return frames[i].Timestamp < frames[j].Timestamp })
	return &fixtureDetector{frames: frames}, nil
}

func (d *fixtureDetector) Detect(now float64) (*repcount.LandmarkFrame, bool) {
	if d.next >= len(d.frames) {
		return nil, false
	}
	f := d.frames[d.next]
	d.next++

	out := &repcount.LandmarkFrame{Timestamp: f.Timestamp}
	out.Landmarks = make([]repcount.Landmark, len(f.Landmarks))
	for i, lm := range f.Landmarks {
		out.Landmarks[i] = repcount.Landmark{X: lm.X, Y: lm.Y, Visibility: lm.Visibility}
	}
	return out, true
}

func (d *fixtureDetector) exhausted() bool {
	return d.next >= len(d.frames)
}

func main() {
	exercise := flag.String("exercise", "Bicep Curl", "exercise preset name")
	fixture := flag.String("fixture", "", "path to a JSON landmark-frame trace")
	verbose := flag.Bool("v", false, "debug logging")
	flag.Parse()

	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	} else {
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}

	if *fixture == "" {
		fmt.Fprintln(os.Stderr, "usage: physio-cli -fixture trace.json [-exercise 'Bicep Curl'] [-v]")
		os.Exit(2)
	}

	presets := repcount.DefaultPresets()
	cfg, ok := presets[*exercise]
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown exercise %q\n", *exercise)
		os.Exit(2)
	}

	detector, err := newFixtureDetector(*fixture)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	eng := engine.New(detector, repcount.NewRandChooser())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go eng.Run(ctx)

	now := time.Now()
	t := now.Unix()
	if err := eng.Start(ctx, cfg, float64(t)); err != nil {
		fmt.Fprintln(os.Stderr, "start:", err)
		os.Exit(1)
	}

	for !detector.exhausted() {
		t++
		cont, err := eng.Tick(ctx, float64(t))
		if err != nil {
			fmt.Fprintln(os.Stderr, "tick:", err)
			os.Exit(1)
		}
		snap, err := eng.Snapshot(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "snapshot:", err)
			os.Exit(1)
		}
		fmt.Printf("phase=%-11s frame=%-5d right(stage=%-12s reps=%-2d angle=%-4d) left(stage=%-12s reps=%-2d angle=%-4d)\n",
			snap.Phase, snap.FrameCount,
			snap.Right.Stage, snap.Right.RepCount, snap.Right.Angle,
			snap.Left.Stage, snap.Left.RepCount, snap.Left.Angle,
		)
		if !cont {
			break
		}
	}

	report, err := eng.Stop(ctx, float64(t))
	if err != nil {
		fmt.Fprintln(os.Stderr, "stop:", err)
		os.Exit(1)
	}
	fmt.Printf("final: right=%d left=%d duration=%.1fs\n",
		report.Summary.Right.TotalReps, report.Summary.Left.TotalReps, report.Duration)
}
