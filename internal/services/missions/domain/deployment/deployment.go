package deployment

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/domain/resolution"
)

// ErrAlreadyResolved is returned when resolving a terminal deployment.
var ErrAlreadyResolved = errors.New("deployment already resolved")

// LoreSyncStatus tracks delivery of unlocked lore to the external lore store.
type LoreSyncStatus string

const (
	LoreSyncNone    LoreSyncStatus = "none"
	LoreSyncPending LoreSyncStatus = "pending"
	LoreSyncSynced  LoreSyncStatus = "synced"
)

// LoreSync is the external lore delivery state of a finalized deployment.
type LoreSync struct {
	Status    LoreSyncStatus `json:"status"`
	Attempts  int            `json:"attempts,omitempty"`
	LastError string         `json:"lastError,omitempty"`
	UpdatedAt time.Time      `json:"updatedAt,omitempty"`
}

// Deployment is one agent's attempt at a mission.
type Deployment struct {
	ID             string
	MissionID      string
	MissionVersion int
	AgentID        string
	Proxim8ID      string
	Proxim8Type    string
	Approach       catalog.Risk
	CoordinatorID  string
	DeployedAt     time.Time
	CompletesAt    time.Time
	Outcome        resolution.Outcome
	State          State
	LoreSync       LoreSync
}

// Params describes a new deployment.
type Params struct {
	ID              string
	AgentID         string
	Proxim8ID       string
	Proxim8Type     string
	CoordinatorID   string
	Mission         catalog.MissionTemplate
	Approach        catalog.Risk
	Outcome         resolution.Outcome
	Now             time.Time
	DeployingWindow time.Duration
}

// New creates a pending deployment. CompletesAt is fixed here. Times are
// kept at millisecond precision, the resolution stored by persistence.
func New(p Params) (Deployment, error) {
	if strings.TrimSpace(p.ID) == "" {
		return Deployment{}, errors.New("deployment id is required")
	}
	if strings.TrimSpace(p.AgentID) == "" {
		return Deployment{}, errors.New("agent id is required")
	}
	if strings.TrimSpace(p.Proxim8ID) == "" {
		return Deployment{}, errors.New("proxim8 id is required")
	}
	if p.Mission.Duration <= 0 {
		return Deployment{}, fmt.Errorf("mission %s has no duration", p.Mission.ID)
	}
	if p.Now.IsZero() {
		return Deployment{}, errors.New("deployment time is required")
	}
	deployedAt := p.Now.UTC().Truncate(time.Millisecond)
	return Deployment{
		ID:             p.ID,
		MissionID:      p.Mission.ID,
		MissionVersion: p.Mission.Version,
		AgentID:        p.AgentID,
		Proxim8ID:      p.Proxim8ID,
		Proxim8Type:    p.Proxim8Type,
		Approach:       p.Approach,
		CoordinatorID:  p.CoordinatorID,
		DeployedAt:     deployedAt,
		CompletesAt:    deployedAt.Add(p.Mission.Duration).Truncate(time.Millisecond),
		Outcome:        p.Outcome,
		State:          Pending{Deploying: p.DeployingWindow > 0},
		LoreSync:       LoreSync{Status: LoreSyncNone},
	}, nil
}

// Status returns the current status.
func (d Deployment) Status() Status {
	if d.State == nil {
		return StatusDeploying
	}
	return d.State.Status()
}

// PhaseIndex returns the current phase index.
func (d Deployment) PhaseIndex() int {
	if d.State == nil {
		return 0
	}
	return d.State.PhaseIndex()
}

// Result returns the terminal result, if any.
func (d Deployment) Result() (Result, bool) {
	resolved, ok := d.State.(Resolved)
	if !ok {
		return Result{}, false
	}
	return resolved.Result, true
}

// Terminal reports whether the deployment is finalized.
func (d Deployment) Terminal() bool {
	return d.Status().Terminal()
}

// Due reports whether a pending deployment has reached CompletesAt.
func (d Deployment) Due(now time.Time) bool {
	return !d.Terminal() && !now.Before(d.CompletesAt)
}

// Duration returns the fixed mission duration of the deployment.
func (d Deployment) Duration() time.Duration {
	return d.CompletesAt.Sub(d.DeployedAt)
}

type deploymentJSON struct {
	ID             string             `json:"id"`
	MissionID      string             `json:"missionId"`
	MissionVersion int                `json:"missionVersion"`
	AgentID        string             `json:"agentId"`
	Proxim8ID      string             `json:"proxim8Id"`
	Proxim8Type    string             `json:"proxim8Type,omitempty"`
	Approach       catalog.Risk       `json:"approach"`
	CoordinatorID  string             `json:"coordinatorId,omitempty"`
	Status         Status             `json:"status"`
	PhaseIndex     int                `json:"currentPhaseIndex"`
	DeployedAt     time.Time          `json:"deployedAt"`
	CompletesAt    time.Time          `json:"completesAt"`
	Outcome        resolution.Outcome `json:"resolution"`
	Result         *Result            `json:"result,omitempty"`
	LoreSync       LoreSync           `json:"loreSync"`
}

// MarshalJSON flattens the state into status, phase index and result.
func (d Deployment) MarshalJSON() ([]byte, error) {
	wire := deploymentJSON{
		ID:             d.ID,
		MissionID:      d.MissionID,
		MissionVersion: d.MissionVersion,
		AgentID:        d.AgentID,
		Proxim8ID:      d.Proxim8ID,
		Proxim8Type:    d.Proxim8Type,
		Approach:       d.Approach,
		CoordinatorID:  d.CoordinatorID,
		Status:         d.Status(),
		PhaseIndex:     d.PhaseIndex(),
		DeployedAt:     d.DeployedAt,
		CompletesAt:    d.CompletesAt,
		Outcome:        d.Outcome,
		LoreSync:       d.LoreSync,
	}
	if result, ok := d.Result(); ok {
		wire.Result = &result
	}
	return json.Marshal(wire)
}

// UnmarshalJSON restores a deployment and validates its state.
func (d *Deployment) UnmarshalJSON(data []byte) error {
	var wire deploymentJSON
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	state, err := StateFor(wire.Status, wire.PhaseIndex, wire.Result)
	if err != nil {
		return err
	}
	*d = Deployment{
		ID:             wire.ID,
		MissionID:      wire.MissionID,
		MissionVersion: wire.MissionVersion,
		AgentID:        wire.AgentID,
		Proxim8ID:      wire.Proxim8ID,
		Proxim8Type:    wire.Proxim8Type,
		Approach:       wire.Approach,
		CoordinatorID:  wire.CoordinatorID,
		DeployedAt:     wire.DeployedAt,
		CompletesAt:    wire.CompletesAt,
		Outcome:        wire.Outcome,
		State:          state,
		LoreSync:       wire.LoreSync,
	}
	return nil
}
