// Package engine wraps repcount.WorkoutSession in a single-goroutine
// command actor: a single command channel carrying start/stop/
// snapshot/frame requests, so a transport layer can drive the session
// concurrently without the core needing any locks of its own.
package engine

import (
	"context"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	"github.com/itohio/physio-repcount/internal/obslog"
	"github.com/itohio/physio-repcount/pkg/repcount"
)

type commandKind int

const (
	cmdStart commandKind = iota
	cmdStop
	cmdSnapshot
	cmdFrame
)

type command struct {
	kind   commandKind
	cfg    repcount.ExerciseConfig
	now    float64
	result chan<- any
}

// Engine serializes every mutation of a WorkoutSession through one
// goroutine, so a transport layer can call Start/Stop/Snapshot/Tick
// concurrently without the core needing any locks itself (spec.md §5).
type Engine struct {
	session *repcount.WorkoutSession
	chooser repcount.Chooser
	cmds    chan command
	log     zerolog.Logger

	sessionID string
}

// New builds an Engine around a fresh WorkoutSession bound to detector.
// A base58 session ID, derived from the detector's address, is assigned
// for log correlation.
func New(detector repcount.Detector, chooser repcount.Chooser) *Engine {
	if chooser == nil {
		chooser = repcount.NewRandChooser()
	}
	return &Engine{
		session:   repcount.NewWorkoutSession(detector),
		chooser:   chooser,
		cmds:      make(chan command, 16),
		log:       obslog.New("engine"),
		sessionID: base58.Encode([]byte(fmt.Sprintf("%p", detector))),
	}
}

// Run drains commands until ctx is cancelled. It is the Engine's only
// goroutine; every session mutation happens inside this loop.
func (e *Engine) Run(ctx context.Context) {
	e.log.Info().Str("session_id", e.sessionID).Msg("engine run loop started")
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-e.cmds:
			e.dispatch(cmd)
		}
	}
}

func (e *Engine) dispatch(cmd command) {
	switch cmd.kind {
	case cmdStart:
		err := e.session.Start(cmd.cfg, e.chooser, cmd.now)
		cmd.result <- err
	case cmdStop:
		report, err := e.session.Stop(cmd.now)
		if err != nil {
			cmd.result <- err
			return
		}
		cmd.result <- report
	case cmdSnapshot:
		cmd.result <- e.session.Snapshot()
	case cmdFrame:
		cmd.result <- e.session.ProcessFrame(cmd.now)
	}
}

// Start selects a preset and begins calibration.
func (e *Engine) Start(ctx context.Context, cfg repcount.ExerciseConfig, now float64) error {
	result := make(chan any, 1)
	select {
	case e.cmds <- command{kind: cmdStart, cfg: cfg, now: now, result: result}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case r := <-result:
		if r == nil {
			return nil
		}
		return r.(error)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop ends the session and returns the final report.
func (e *Engine) Stop(ctx context.Context, now float64) (repcount.Report, error) {
	result := make(chan any, 1)
	select {
	case e.cmds <- command{kind: cmdStop, now: now, result: result}:
	case <-ctx.Done():
		return repcount.Report{}, ctx.Err()
	}
	select {
	case r := <-result:
		switch v := r.(type) {
		case error:
			return repcount.Report{}, v
		case repcount.Report:
			return v, nil
		}
		return repcount.Report{}, nil
	case <-ctx.Done():
		return repcount.Report{}, ctx.Err()
	}
}

// Snapshot returns the current session state.
func (e *Engine) Snapshot(ctx context.Context) (repcount.Snapshot, error) {
	result := make(chan any, 1)
	select {
	case e.cmds <- command{kind: cmdSnapshot, result: result}:
	case <-ctx.Done():
		return repcount.Snapshot{}, ctx.Err()
	}
	select {
	case r := <-result:
		return r.(repcount.Snapshot), nil
	case <-ctx.Done():
		return repcount.Snapshot{}, ctx.Err()
	}
}

// Tick advances the pipeline by one frame and reports whether the
// frame loop should continue.
func (e *Engine) Tick(ctx context.Context, now float64) (bool, error) {
	result := make(chan any, 1)
	select {
	case e.cmds <- command{kind: cmdFrame, now: now, result: result}:
	case <-ctx.Done():
		return false, ctx.Err()
	}
	select {
	case r := <-result:
		return r.(bool), nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}
