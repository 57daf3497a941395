package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

const deploymentColumns = `
	id,
	mission_id,
	mission_version,
	agent_id,
	proxim8_id,
	proxim8_type,
	approach,
	coordinator_id,
	status,
	phase_index,
	deployed_at,
	completes_at,
	resolution_json,
	result_json,
	lore_sync_status,
	lore_sync_attempts,
	lore_sync_error,
	lore_sync_updated_at`

const nonTerminal = `('deploying', 'in-progress')`

// CreateDeployment inserts a pending deployment and, when a coordinator is
// set, the zero affinity row for the pair in the same transaction.
func (s *Store) CreateDeployment(ctx context.Context, d deployment.Deployment) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(d.ID) == "" {
		return fmt.Errorf("deployment id is required")
	}
	if d.Terminal() {
		return fmt.Errorf("deployment %s is already terminal", d.ID)
	}
	resolutionJSON, err := json.Marshal(d.Outcome)
	if err != nil {
		return fmt.Errorf("marshal resolution: %w", err)
	}
	loreStatus := d.LoreSync.Status
	if loreStatus == "" {
		loreStatus = deployment.LoreSyncNone
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	_, err = tx.ExecContext(ctx, `
INSERT INTO deployments (
	id,
	mission_id,
	mission_version,
	agent_id,
	proxim8_id,
	proxim8_type,
	approach,
	coordinator_id,
	status,
	phase_index,
	deployed_at,
	completes_at,
	resolution_json,
	lore_sync_status,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		d.ID,
		d.MissionID,
		d.MissionVersion,
		d.AgentID,
		d.Proxim8ID,
		d.Proxim8Type,
		string(d.Approach),
		d.CoordinatorID,
		string(d.Status()),
		d.PhaseIndex(),
		toMillis(d.DeployedAt),
		toMillis(d.CompletesAt),
		string(resolutionJSON),
		string(loreStatus),
		toMillis(d.DeployedAt),
	)
	if err != nil {
		if isConstraintError(err) && strings.Contains(err.Error(), "deployments.agent_id") {
			return storage.ErrActiveDeploymentExists
		}
		return fmt.Errorf("create deployment: %w", err)
	}
	if coordinatorID := strings.TrimSpace(d.CoordinatorID); coordinatorID != "" {
		if _, err = tx.ExecContext(ctx, `
INSERT OR IGNORE INTO affinity (agent_id, coordinator_id, successful_missions, created_at, updated_at)
VALUES (?, ?, 0, ?, ?)
`, d.AgentID, coordinatorID, toMillis(d.DeployedAt), toMillis(d.DeployedAt)); err != nil {
			return fmt.Errorf("ensure affinity: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit create transaction: %w", err)
	}
	return nil
}

// GetDeployment loads a deployment by id.
func (s *Store) GetDeployment(ctx context.Context, id string) (deployment.Deployment, error) {
	if err := s.ready(ctx); err != nil {
		return deployment.Deployment{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+deploymentColumns+` FROM deployments WHERE id = ?`, id)
	d, err := scanDeployment(row)
	if err != nil {
		return deployment.Deployment{}, notFound(err)
	}
	return d, nil
}

// FindActiveDeployment returns the agent's non-terminal deployment for a mission.
func (s *Store) FindActiveDeployment(ctx context.Context, agentID, missionID string) (deployment.Deployment, error) {
	if err := s.ready(ctx); err != nil {
		return deployment.Deployment{}, err
	}
	row := s.sqlDB.QueryRowContext(ctx, `SELECT `+deploymentColumns+`
FROM deployments
WHERE agent_id = ? AND mission_id = ? AND status IN `+nonTerminal, agentID, missionID)
	d, err := scanDeployment(row)
	if err != nil {
		return deployment.Deployment{}, notFound(err)
	}
	return d, nil
}

// HasCompletedMission reports whether the agent has a successful deployment for the mission.
func (s *Store) HasCompletedMission(ctx context.Context, agentID, missionID string) (bool, error) {
	if err := s.ready(ctx); err != nil {
		return false, err
	}
	var found int
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT 1 FROM deployments
WHERE agent_id = ? AND mission_id = ? AND status = 'completed'
LIMIT 1
`, agentID, missionID).Scan(&found)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check completed mission: %w", err)
	}
	return true, nil
}

// ListAgentDeployments lists an agent's deployments newest first.
func (s *Store) ListAgentDeployments(ctx context.Context, agentID string, limit int) ([]deployment.Deployment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	return s.queryDeployments(ctx, `SELECT `+deploymentColumns+`
FROM deployments
WHERE agent_id = ?
ORDER BY deployed_at DESC, id DESC
LIMIT ?`, agentID, limit)
}

// ListDueDeployments lists non-terminal deployments due at now, oldest first.
func (s *Store) ListDueDeployments(ctx context.Context, now time.Time, limit int) ([]deployment.Deployment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	return s.queryDeployments(ctx, `SELECT `+deploymentColumns+`
FROM deployments
WHERE status IN `+nonTerminal+` AND completes_at <= ?
ORDER BY completes_at ASC, id ASC
LIMIT ?`, toMillis(now), limit)
}

// ListPendingLoreSync lists finalized deployments whose lore has not reached
// the external lore store.
func (s *Store) ListPendingLoreSync(ctx context.Context, limit int) ([]deployment.Deployment, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}
	return s.queryDeployments(ctx, `SELECT `+deploymentColumns+`
FROM deployments
WHERE lore_sync_status = 'pending' AND status = 'completed'
ORDER BY lore_sync_updated_at ASC, id ASC
LIMIT ?`, limit)
}

// AdvanceDeployment raises the stored phase index and moves deploying to
// in-progress. Terminal deployments are left untouched.
func (s *Store) AdvanceDeployment(ctx context.Context, id string, state deployment.Pending) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	result, err := s.sqlDB.ExecContext(ctx, `
UPDATE deployments
SET
	phase_index = MAX(phase_index, ?),
	status = CASE WHEN status = 'in-progress' THEN status ELSE ? END,
	updated_at = ?
WHERE id = ? AND status IN `+nonTerminal+`
`,
		state.CurrentPhase,
		string(state.Status()),
		toMillis(time.Now()),
		id,
	)
	if err != nil {
		return fmt.Errorf("advance deployment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("advance deployment rows affected: %w", err)
	}
	if affected == 0 {
		if _, err := s.GetDeployment(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// FinalizeDeployment applies the terminal transition and its grant atomically.
func (s *Store) FinalizeDeployment(ctx context.Context, record storage.FinalizeRecord) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	d := record.Deployment
	result, ok := d.Result()
	if !ok {
		return fmt.Errorf("deployment %s has no result to finalize", d.ID)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	at := record.At
	if at.IsZero() {
		at = result.FinalizedAt
	}
	loreStatus := d.LoreSync.Status
	if loreStatus == "" {
		loreStatus = deployment.LoreSyncNone
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finalize transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	swapped, err := tx.ExecContext(ctx, `
UPDATE deployments
SET
	status = ?,
	phase_index = ?,
	result_json = ?,
	finalized_at = ?,
	lore_sync_status = ?,
	lore_sync_updated_at = ?,
	updated_at = ?
WHERE id = ? AND status IN `+nonTerminal+`
`,
		string(d.Status()),
		d.PhaseIndex(),
		string(resultJSON),
		toMillis(at),
		string(loreStatus),
		toMillis(at),
		toMillis(at),
		d.ID,
	)
	if err != nil {
		return fmt.Errorf("finalize deployment: %w", err)
	}
	affected, err := swapped.RowsAffected()
	if err != nil {
		return fmt.Errorf("finalize deployment rows affected: %w", err)
	}
	if affected == 0 {
		var found int
		lookupErr := tx.QueryRowContext(ctx, `SELECT 1 FROM deployments WHERE id = ?`, d.ID).Scan(&found)
		if errors.Is(lookupErr, sql.ErrNoRows) {
			return storage.ErrNotFound
		}
		if lookupErr != nil {
			return fmt.Errorf("finalize deployment lookup: %w", lookupErr)
		}
		return storage.ErrAlreadyFinalized
	}

	grant := record.Grant
	if _, err = tx.ExecContext(ctx, `
INSERT INTO reward_applications (
	deployment_id,
	agent_id,
	timeline_points,
	experience,
	timeline_shift,
	applied_at
) VALUES (?, ?, ?, ?, ?, ?)
`, d.ID, d.AgentID, grant.TimelinePoints, grant.Experience, grant.TimelineShift, toMillis(at)); err != nil {
		if isConstraintError(err) {
			return storage.ErrAlreadyFinalized
		}
		return fmt.Errorf("record reward application: %w", err)
	}

	completed, failed := 0, 0
	if grant.Success {
		completed = 1
	} else {
		failed = 1
	}
	if _, err = tx.ExecContext(ctx, `
INSERT INTO agent_progress (
	agent_id,
	timeline_points,
	experience,
	missions_completed,
	missions_failed,
	updated_at
) VALUES (?, ?, ?, ?, ?, ?)
ON CONFLICT(agent_id) DO UPDATE SET
	timeline_points = agent_progress.timeline_points + excluded.timeline_points,
	experience = agent_progress.experience + excluded.experience,
	missions_completed = agent_progress.missions_completed + excluded.missions_completed,
	missions_failed = agent_progress.missions_failed + excluded.missions_failed,
	updated_at = excluded.updated_at
`, d.AgentID, grant.TimelinePoints, grant.Experience, completed, failed, toMillis(at)); err != nil {
		return fmt.Errorf("apply agent progress: %w", err)
	}

	for _, fragment := range grant.LoreFragments {
		if _, err = tx.ExecContext(ctx, `
INSERT OR IGNORE INTO lore_unlocks (agent_id, fragment_id, deployment_id, unlocked_at)
VALUES (?, ?, ?, ?)
`, d.AgentID, fragment, d.ID, toMillis(at)); err != nil {
			return fmt.Errorf("unlock lore %s: %w", fragment, err)
		}
	}

	if grant.AffinityIncrement > 0 && d.CoordinatorID != "" {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO affinity (agent_id, coordinator_id, successful_missions, created_at, updated_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(agent_id, coordinator_id) DO UPDATE SET
	successful_missions = affinity.successful_missions + excluded.successful_missions,
	updated_at = excluded.updated_at
`, d.AgentID, d.CoordinatorID, grant.AffinityIncrement, toMillis(at), toMillis(at)); err != nil {
			return fmt.Errorf("increment affinity: %w", err)
		}
	}

	if _, err = tx.ExecContext(ctx, `
UPDATE timeline_aggregate
SET
	total_shift = total_shift + ?,
	successful_missions = successful_missions + ?,
	failed_missions = failed_missions + ?,
	updated_at = ?
WHERE id = 1
`, grant.TimelineShift, completed, failed, toMillis(at)); err != nil {
		return fmt.Errorf("apply timeline shift: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit finalize transaction: %w", err)
	}
	return nil
}

// RecordLoreSyncAttempt counts one lore delivery attempt and stores its
// outcome. sync.Attempts is ignored; the stored count is incremented in place
// and returned. A synced deployment stays synced.
func (s *Store) RecordLoreSyncAttempt(ctx context.Context, id string, sync deployment.LoreSync) (int, error) {
	if err := s.ready(ctx); err != nil {
		return 0, err
	}
	if sync.UpdatedAt.IsZero() {
		sync.UpdatedAt = time.Now().UTC()
	}
	var attempts int
	err := s.sqlDB.QueryRowContext(ctx, `
UPDATE deployments
SET
	lore_sync_status = CASE WHEN lore_sync_status = ? THEN lore_sync_status ELSE ? END,
	lore_sync_attempts = lore_sync_attempts + 1,
	lore_sync_error = CASE WHEN lore_sync_status = ? THEN '' ELSE ? END,
	lore_sync_updated_at = ?
WHERE id = ?
RETURNING lore_sync_attempts
`,
		string(deployment.LoreSyncSynced),
		string(sync.Status),
		string(deployment.LoreSyncSynced),
		sync.LastError,
		toMillis(sync.UpdatedAt),
		id,
	).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, storage.ErrNotFound
		}
		return 0, fmt.Errorf("record lore sync attempt: %w", err)
	}
	return attempts, nil
}

// ClearDeployment deletes a deployment row and appends its audit entry in
// one transaction. Applied rewards remain.
func (s *Store) ClearDeployment(ctx context.Context, id string, entry storage.AuditEntry) (err error) {
	if err := s.ready(ctx); err != nil {
		return err
	}
	entry, err = normalizeAudit(entry)
	if err != nil {
		return err
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin clear transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	result, err := tx.ExecContext(ctx, `DELETE FROM deployments WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete deployment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete deployment rows affected: %w", err)
	}
	if affected == 0 {
		err = storage.ErrNotFound
		return err
	}
	if err = insertAudit(ctx, tx, entry); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit clear transaction: %w", err)
	}
	return nil
}

func (s *Store) queryDeployments(ctx context.Context, query string, args ...any) ([]deployment.Deployment, error) {
	rows, err := s.sqlDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query deployments: %w", err)
	}
	defer rows.Close()

	var deployments []deployment.Deployment
	for rows.Next() {
		d, err := scanDeployment(rows)
		if err != nil {
			return nil, err
		}
		deployments = append(deployments, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deployments: %w", err)
	}
	return deployments, nil
}

func scanDeployment(row scanner) (deployment.Deployment, error) {
	var (
		d              deployment.Deployment
		approach       string
		status         string
		phaseIndex     int
		deployedAt     int64
		completesAt    int64
		resolutionJSON string
		resultJSON     sql.NullString
		loreStatus     string
		loreUpdatedAt  sql.NullInt64
	)
	if err := row.Scan(
		&d.ID,
		&d.MissionID,
		&d.MissionVersion,
		&d.AgentID,
		&d.Proxim8ID,
		&d.Proxim8Type,
		&approach,
		&d.CoordinatorID,
		&status,
		&phaseIndex,
		&deployedAt,
		&completesAt,
		&resolutionJSON,
		&resultJSON,
		&loreStatus,
		&d.LoreSync.Attempts,
		&d.LoreSync.LastError,
		&loreUpdatedAt,
	); err != nil {
		return deployment.Deployment{}, err
	}
	d.Approach = catalog.Risk(approach)
	d.DeployedAt = fromMillis(deployedAt)
	d.CompletesAt = fromMillis(completesAt)
	d.LoreSync.Status = deployment.LoreSyncStatus(loreStatus)
	d.LoreSync.UpdatedAt = fromNullMillis(loreUpdatedAt)
	if err := json.Unmarshal([]byte(resolutionJSON), &d.Outcome); err != nil {
		return deployment.Deployment{}, fmt.Errorf("decode deployment %s resolution: %w", d.ID, err)
	}

	var result *deployment.Result
	if resultJSON.Valid && resultJSON.String != "" {
		result = &deployment.Result{}
		if err := json.Unmarshal([]byte(resultJSON.String), result); err != nil {
			return deployment.Deployment{}, fmt.Errorf("decode deployment %s result: %w", d.ID, err)
		}
	}
	state, err := deployment.StateFor(deployment.Status(status), phaseIndex, result)
	if err != nil {
		return deployment.Deployment{}, fmt.Errorf("decode deployment %s state: %w", d.ID, err)
	}
	d.State = state
	return d, nil
}
