// Package deployment models a single mission attempt and its pure state
// transitions. Storage and orchestration live in the app layer; everything
// here is deterministic given its inputs, including the clock.
package deployment

import (
	"fmt"
	"time"
)

// Status is the externally visible deployment status.
type Status string

const (
	StatusDeploying  Status = "deploying"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// NonTerminalStatuses lists the statuses a deployment may leave.
var NonTerminalStatuses = []Status{StatusDeploying, StatusInProgress}

// Terminal reports whether the status is final.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusDeploying, StatusInProgress, StatusCompleted, StatusFailed:
		return true
	default:
		return false
	}
}

// TerminalStatus derives the terminal status from the precomputed outcome.
func TerminalStatus(success bool) Status {
	if success {
		return StatusCompleted
	}
	return StatusFailed
}

// State is the closed set of deployment states: Pending or Resolved.
type State interface {
	Status() Status
	PhaseIndex() int
	isState()
}

// Pending is a deployment still revealing its phases.
type Pending struct {
	Deploying    bool
	CurrentPhase int
}

func (Pending) isState() {}

// Status returns deploying during the pre-roll window, in-progress after.
func (p Pending) Status() Status {
	if p.Deploying {
		return StatusDeploying
	}
	return StatusInProgress
}

// PhaseIndex returns the current phase.
func (p Pending) PhaseIndex() int { return p.CurrentPhase }

// Resolved is a finalized deployment. Only this variant carries a Result.
type Resolved struct {
	CurrentPhase int
	Result       Result
}

func (Resolved) isState() {}

// Status returns completed or failed from the result.
func (r Resolved) Status() Status { return TerminalStatus(r.Result.Success) }

// PhaseIndex returns the final phase.
func (r Resolved) PhaseIndex() int { return r.CurrentPhase }

// Result is the write-once record of what a finalized deployment granted.
type Result struct {
	Success           bool      `json:"success"`
	TimelinePoints    int64     `json:"timelinePoints"`
	Experience        int64     `json:"experience"`
	LoreFragments     []string  `json:"loreFragments"`
	AffinityIncrement int       `json:"affinityIncrement"`
	TimelineShift     int64     `json:"timelineShift"`
	FinalizedAt       time.Time `json:"finalizedAt"`
}

// StateFor rebuilds a State from its persisted parts. result is required
// for terminal statuses and rejected otherwise.
func StateFor(status Status, phaseIndex int, result *Result) (State, error) {
	switch status {
	case StatusDeploying, StatusInProgress:
		if result != nil {
			return nil, fmt.Errorf("status %s cannot carry a result", status)
		}
		return Pending{Deploying: status == StatusDeploying, CurrentPhase: phaseIndex}, nil
	case StatusCompleted, StatusFailed:
		if result == nil {
			return nil, fmt.Errorf("status %s requires a result", status)
		}
		if TerminalStatus(result.Success) != status {
			return nil, fmt.Errorf("status %s contradicts result success=%v", status, result.Success)
		}
		return Resolved{CurrentPhase: phaseIndex, Result: *result}, nil
	default:
		return nil, fmt.Errorf("unknown deployment status %q", status)
	}
}
