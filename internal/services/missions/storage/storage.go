// Package storage defines the persistence contracts of the missions service.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/project-89/89-sub004/internal/services/missions/domain/affinity"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
	"github.com/project-89/89-sub004/internal/services/missions/domain/reward"
)

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrActiveDeploymentExists indicates a non-terminal deployment already
	// exists for the same agent and mission.
	ErrActiveDeploymentExists = errors.New("active deployment exists")
	// ErrAlreadyFinalized indicates the finalize compare-and-swap was lost.
	ErrAlreadyFinalized = errors.New("deployment already finalized")
)

// FinalizeRecord is everything applied by one finalization transaction.
type FinalizeRecord struct {
	Deployment deployment.Deployment
	Grant      reward.Grant
	At         time.Time
}

// DeploymentStore persists deployments and their finalization.
type DeploymentStore interface {
	// CreateDeployment inserts a pending deployment together with the zero
	// affinity record for its coordinator. It returns
	// ErrActiveDeploymentExists when the agent already has a non-terminal
	// deployment for the mission.
	CreateDeployment(ctx context.Context, d deployment.Deployment) error
	GetDeployment(ctx context.Context, id string) (deployment.Deployment, error)
	FindActiveDeployment(ctx context.Context, agentID, missionID string) (deployment.Deployment, error)
	HasCompletedMission(ctx context.Context, agentID, missionID string) (bool, error)
	ListAgentDeployments(ctx context.Context, agentID string, limit int) ([]deployment.Deployment, error)
	// ListDueDeployments returns non-terminal deployments whose CompletesAt
	// is at or before now, oldest first.
	ListDueDeployments(ctx context.Context, now time.Time, limit int) ([]deployment.Deployment, error)
	// AdvanceDeployment persists a pending phase/status. The stored phase
	// index is only ever raised; terminal rows are left untouched.
	AdvanceDeployment(ctx context.Context, id string, state deployment.Pending) error
	// FinalizeDeployment atomically moves the deployment to its terminal
	// state and applies the grant. It returns ErrAlreadyFinalized when
	// another caller won the race.
	FinalizeDeployment(ctx context.Context, record FinalizeRecord) error
	// RecordLoreSyncAttempt increments the stored attempt count, records
	// the attempt's status and error, and returns the new count.
	RecordLoreSyncAttempt(ctx context.Context, id string, sync deployment.LoreSync) (int, error)
	ListPendingLoreSync(ctx context.Context, limit int) ([]deployment.Deployment, error)
	// ClearDeployment removes a deployment row and appends entry to the
	// audit log atomically. Applied rewards remain.
	ClearDeployment(ctx context.Context, id string, entry AuditEntry) error
}

// AffinityStore exposes the increment-only affinity ledger.
type AffinityStore interface {
	GetAffinity(ctx context.Context, agentID, coordinatorID string) (affinity.Record, error)
	ListAgentAffinity(ctx context.Context, agentID string) ([]affinity.Record, error)
}

// AgentProgress is the accumulated reward read model of one agent.
type AgentProgress struct {
	AgentID           string
	TimelinePoints    int64
	Experience        int64
	MissionsCompleted int
	MissionsFailed    int
	UpdatedAt         time.Time
}

// LoreUnlock is one fragment unlocked by an agent.
type LoreUnlock struct {
	AgentID      string
	FragmentID   string
	DeploymentID string
	UnlockedAt   time.Time
}

// Timeline is the global timeline aggregate.
type Timeline struct {
	TotalShift         int64
	SuccessfulMissions int64
	FailedMissions     int64
	UpdatedAt          time.Time
}

// RewardApplication records that a deployment's grant has been applied.
type RewardApplication struct {
	DeploymentID   string
	AgentID        string
	TimelinePoints int64
	Experience     int64
	TimelineShift  int64
	AppliedAt      time.Time
}

// ProgressStore reads the reward ledgers written by FinalizeDeployment.
type ProgressStore interface {
	GetAgentProgress(ctx context.Context, agentID string) (AgentProgress, error)
	ListLoreUnlocks(ctx context.Context, agentID string) ([]LoreUnlock, error)
	GetTimeline(ctx context.Context) (Timeline, error)
	GetRewardApplication(ctx context.Context, deploymentID string) (RewardApplication, error)
}

// Proxim8Record is a registered Proxim8 and its verified owner.
type Proxim8Record struct {
	ID           string
	OwnerAgentID string
	Name         string
	Personality  string
	UpdatedAt    time.Time
}

// Proxim8Store persists the Proxim8 ownership directory.
type Proxim8Store interface {
	PutProxim8(ctx context.Context, record Proxim8Record) error
	GetProxim8(ctx context.Context, id string) (Proxim8Record, error)
	ListAgentProxim8s(ctx context.Context, agentID string) ([]Proxim8Record, error)
}

// AuditEntry is one privileged administrative action.
type AuditEntry struct {
	ID        int64     `json:"id,omitempty"`
	Actor     string    `json:"actor"`
	Action    string    `json:"action"`
	TargetID  string    `json:"targetId,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Details   string    `json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// AuditStore persists administrative audit entries.
type AuditStore interface {
	AppendAudit(ctx context.Context, entry AuditEntry) error
	ListAudit(ctx context.Context, limit int) ([]AuditEntry, error)
}

// Store is the full missions persistence surface.
type Store interface {
	DeploymentStore
	AffinityStore
	ProgressStore
	Proxim8Store
	AuditStore
	Close() error
}
