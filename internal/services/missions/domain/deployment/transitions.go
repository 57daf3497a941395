package deployment

import (
	"time"

	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
)

// PhaseIndexAt returns the phase active after elapsed: the number of phases
// whose cumulative end offset has been reached, clamped to the last phase.
func PhaseIndexAt(phases []catalog.Phase, duration, elapsed time.Duration) int {
	if len(phases) == 0 || elapsed <= 0 {
		return 0
	}
	index := 0
	cumulative := 0
	for _, phase := range phases {
		cumulative += phase.DurationPercent
		end := time.Duration(int64(duration) * int64(cumulative) / 100)
		if end > elapsed {
			break
		}
		index++
	}
	if index > len(phases)-1 {
		index = len(phases) - 1
	}
	return index
}

// Advance returns d with its phase and status brought up to now. Terminal
// deployments are returned unchanged. The phase index never decreases and a
// deployment never returns to deploying once in progress.
func Advance(d Deployment, phases []catalog.Phase, now time.Time, deployingWindow time.Duration) Deployment {
	pending, ok := d.State.(Pending)
	if !ok && d.State != nil {
		return d
	}
	elapsed := now.Sub(d.DeployedAt)
	index := PhaseIndexAt(phases, d.Duration(), elapsed)
	if index < pending.CurrentPhase {
		index = pending.CurrentPhase
	}
	deploying := pending.Deploying && elapsed < deployingWindow
	if d.State == nil {
		deploying = elapsed < deployingWindow
	}
	d.State = Pending{Deploying: deploying, CurrentPhase: index}
	return d
}

// Resolve moves a pending deployment to its terminal state.
func Resolve(d Deployment, phases []catalog.Phase, result Result) (Deployment, error) {
	if d.Terminal() {
		return d, ErrAlreadyResolved
	}
	last := 0
	if len(phases) > 0 {
		last = len(phases) - 1
	}
	result.LoreFragments = append([]string(nil), result.LoreFragments...)
	d.State = Resolved{CurrentPhase: last, Result: result}
	return d, nil
}

// Progress returns completion in percent, clamped to [0,100].
func Progress(d Deployment, now time.Time) float64 {
	if d.Terminal() {
		return 100
	}
	total := d.Duration()
	if total <= 0 {
		return 100
	}
	elapsed := now.Sub(d.DeployedAt)
	switch {
	case elapsed <= 0:
		return 0
	case elapsed >= total:
		return 100
	default:
		return float64(elapsed) / float64(total) * 100
	}
}

// NarrativeOutcome is the outcome component of a narrative key.
type NarrativeOutcome string

const (
	NarrativePending NarrativeOutcome = "pending"
	NarrativeSuccess NarrativeOutcome = "success"
	NarrativeFailure NarrativeOutcome = "failure"
)

// NarrativeKey identifies the narrative template for a deployment's phase.
// The outcome stays pending until the deployment is finalized.
type NarrativeKey struct {
	MissionID string           `json:"missionId"`
	PhaseID   int              `json:"phaseId"`
	Outcome   NarrativeOutcome `json:"outcome"`
	Template  string           `json:"template,omitempty"`
}

// NarrativeKeyFor selects the narrative key for d's current phase.
func NarrativeKeyFor(d Deployment, phases []catalog.Phase) NarrativeKey {
	key := NarrativeKey{MissionID: d.MissionID, Outcome: NarrativePending}
	index := d.PhaseIndex()
	if index < 0 || index >= len(phases) {
		return key
	}
	phase := phases[index]
	key.PhaseID = phase.ID
	result, ok := d.Result()
	if !ok {
		return key
	}
	if result.Success {
		key.Outcome = NarrativeSuccess
		key.Template = phase.Narrative.Success
	} else {
		key.Outcome = NarrativeFailure
		key.Template = phase.Narrative.Failure
	}
	return key
}
