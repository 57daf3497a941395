package sqlite

import (
	"context"
	"fmt"

	"github.com/project-89/89-sub004/internal/services/missions/domain/affinity"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

// GetAffinity loads one affinity record.
func (s *Store) GetAffinity(ctx context.Context, agentID, coordinatorID string) (affinity.Record, error) {
	if err := s.ready(ctx); err != nil {
		return affinity.Record{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT agent_id, coordinator_id, successful_missions, created_at, updated_at
FROM affinity
WHERE agent_id = ? AND coordinator_id = ?
`, agentID, coordinatorID)
	record, err := scanAffinity(row)
	if err != nil {
		return affinity.Record{}, notFound(err)
	}
	return record, nil
}

// ListAgentAffinity lists an agent's affinity records by coordinator.
func (s *Store) ListAgentAffinity(ctx context.Context, agentID string) ([]affinity.Record, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT agent_id, coordinator_id, successful_missions, created_at, updated_at
FROM affinity
WHERE agent_id = ?
ORDER BY coordinator_id
`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list affinity: %w", err)
	}
	defer rows.Close()

	var records []affinity.Record
	for rows.Next() {
		record, err := scanAffinity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan affinity: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate affinity: %w", err)
	}
	return records, nil
}

func scanAffinity(row scanner) (affinity.Record, error) {
	var (
		record    affinity.Record
		createdAt int64
		updatedAt int64
	)
	if err := row.Scan(&record.AgentID, &record.CoordinatorID, &record.SuccessfulMissions, &createdAt, &updatedAt); err != nil {
		return affinity.Record{}, err
	}
	record.CreatedAt = fromMillis(createdAt)
	record.UpdatedAt = fromMillis(updatedAt)
	return record, nil
}

// GetAgentProgress loads an agent's accumulated rewards.
func (s *Store) GetAgentProgress(ctx context.Context, agentID string) (storage.AgentProgress, error) {
	if err := s.ready(ctx); err != nil {
		return storage.AgentProgress{}, err
	}
	var (
		progress  storage.AgentProgress
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT agent_id, timeline_points, experience, missions_completed, missions_failed, updated_at
FROM agent_progress
WHERE agent_id = ?
`, agentID).Scan(
		&progress.AgentID,
		&progress.TimelinePoints,
		&progress.Experience,
		&progress.MissionsCompleted,
		&progress.MissionsFailed,
		&updatedAt,
	)
	if err != nil {
		return storage.AgentProgress{}, notFound(err)
	}
	progress.UpdatedAt = fromMillis(updatedAt)
	return progress, nil
}

// ListLoreUnlocks lists fragments unlocked by an agent in unlock order.
func (s *Store) ListLoreUnlocks(ctx context.Context, agentID string) ([]storage.LoreUnlock, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT agent_id, fragment_id, deployment_id, unlocked_at
FROM lore_unlocks
WHERE agent_id = ?
ORDER BY unlocked_at ASC, fragment_id ASC
`, agentID)
	if err != nil {
		return nil, fmt.Errorf("list lore unlocks: %w", err)
	}
	defer rows.Close()

	var unlocks []storage.LoreUnlock
	for rows.Next() {
		var (
			unlock     storage.LoreUnlock
			unlockedAt int64
		)
		if err := rows.Scan(&unlock.AgentID, &unlock.FragmentID, &unlock.DeploymentID, &unlockedAt); err != nil {
			return nil, fmt.Errorf("scan lore unlock: %w", err)
		}
		unlock.UnlockedAt = fromMillis(unlockedAt)
		unlocks = append(unlocks, unlock)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate lore unlocks: %w", err)
	}
	return unlocks, nil
}

// GetTimeline loads the global timeline aggregate.
func (s *Store) GetTimeline(ctx context.Context) (storage.Timeline, error) {
	if err := s.ready(ctx); err != nil {
		return storage.Timeline{}, err
	}
	var (
		timeline  storage.Timeline
		updatedAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT total_shift, successful_missions, failed_missions, updated_at
FROM timeline_aggregate
WHERE id = 1
`).Scan(&timeline.TotalShift, &timeline.SuccessfulMissions, &timeline.FailedMissions, &updatedAt)
	if err != nil {
		return storage.Timeline{}, fmt.Errorf("get timeline: %w", notFound(err))
	}
	if updatedAt > 0 {
		timeline.UpdatedAt = fromMillis(updatedAt)
	}
	return timeline, nil
}

// GetRewardApplication loads the reward application of a deployment.
func (s *Store) GetRewardApplication(ctx context.Context, deploymentID string) (storage.RewardApplication, error) {
	if err := s.ready(ctx); err != nil {
		return storage.RewardApplication{}, err
	}
	var (
		application storage.RewardApplication
		appliedAt   int64
	)
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT deployment_id, agent_id, timeline_points, experience, timeline_shift, applied_at
FROM reward_applications
WHERE deployment_id = ?
`, deploymentID).Scan(
		&application.DeploymentID,
		&application.AgentID,
		&application.TimelinePoints,
		&application.Experience,
		&application.TimelineShift,
		&appliedAt,
	)
	if err != nil {
		return storage.RewardApplication{}, notFound(err)
	}
	application.AppliedAt = fromMillis(appliedAt)
	return application, nil
}
