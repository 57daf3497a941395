package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
	"github.com/project-89/89-sub004/internal/services/missions/domain/affinity"
	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// AgentProfile aggregates an agent's rewards.
type AgentProfile struct {
	Progress storage.AgentProgress
	Lore     []storage.LoreUnlock
	Affinity []affinity.Record
}

// ListMissions returns the catalog in sequence order.
func (e *Engine) ListMissions() []catalog.MissionTemplate {
	return e.catalog.Missions()
}

// GetMission returns one mission template.
func (e *Engine) GetMission(missionID string) (catalog.MissionTemplate, error) {
	return e.catalog.Mission(strings.TrimSpace(missionID))
}

// ListCoordinators returns every coordinator.
func (e *Engine) ListCoordinators() []catalog.Coordinator {
	return e.catalog.Coordinators()
}

// ListAgentDeployments lists an agent's deployments newest first.
func (e *Engine) ListAgentDeployments(ctx context.Context, agentID string, limit int) ([]deployment.Deployment, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return nil, apperrors.WithMetadata(apperrors.CodeDeployRequestInvalid, "agentId is required", map[string]string{"field": "agentId"})
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	deployments, err := e.store.ListAgentDeployments(ctx, agentID, limit)
	if err != nil {
		return nil, fmt.Errorf("list agent deployments: %w", err)
	}
	return deployments, nil
}

// AgentProfile returns an agent's progress, lore and affinity. Agents with no
// finalized deployments get a zero profile.
func (e *Engine) AgentProfile(ctx context.Context, agentID string) (AgentProfile, error) {
	agentID = strings.TrimSpace(agentID)
	if agentID == "" {
		return AgentProfile{}, apperrors.WithMetadata(apperrors.CodeDeployRequestInvalid, "agentId is required", map[string]string{"field": "agentId"})
	}
	progress, err := e.store.GetAgentProgress(ctx, agentID)
	if errors.Is(err, storage.ErrNotFound) {
		progress, err = storage.AgentProgress{AgentID: agentID}, nil
	}
	if err != nil {
		return AgentProfile{}, fmt.Errorf("load agent progress: %w", err)
	}
	lore, err := e.store.ListLoreUnlocks(ctx, agentID)
	if err != nil {
		return AgentProfile{}, fmt.Errorf("list lore unlocks: %w", err)
	}
	records, err := e.store.ListAgentAffinity(ctx, agentID)
	if err != nil {
		return AgentProfile{}, fmt.Errorf("list affinity: %w", err)
	}
	return AgentProfile{Progress: progress, Lore: lore, Affinity: records}, nil
}

// Affinity returns the agent's affinity with a coordinator; pairs never
// deployed together have a zero record.
func (e *Engine) Affinity(ctx context.Context, agentID, coordinatorID string) (affinity.Record, error) {
	if _, err := e.catalog.Coordinator(coordinatorID); err != nil {
		return affinity.Record{}, err
	}
	record, err := e.store.GetAffinity(ctx, agentID, coordinatorID)
	if errors.Is(err, storage.ErrNotFound) {
		return affinity.Record{AgentID: agentID, CoordinatorID: coordinatorID}, nil
	}
	if err != nil {
		return affinity.Record{}, fmt.Errorf("load affinity: %w", err)
	}
	return record, nil
}

// Timeline returns the global timeline aggregate.
func (e *Engine) Timeline(ctx context.Context) (storage.Timeline, error) {
	timeline, err := e.store.GetTimeline(ctx)
	if err != nil {
		return storage.Timeline{}, fmt.Errorf("load timeline: %w", err)
	}
	return timeline, nil
}
