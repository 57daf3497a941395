package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
	"github.com/project-89/89-sub004/internal/services/missions/domain/reward"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

// Distributor applies a finalized deployment's rewards exactly once and
// delivers unlocked lore to the external lore store.
type Distributor struct {
	store storage.DeploymentStore
	lore  LoreStore
	clock func() time.Time
	logf  func(format string, args ...any)
}

// Distribute resolves d against its mission and commits the grant. The
// returned error carries CodeConcurrentFinalization when another caller
// finalized d first.
func (dist *Distributor) Distribute(ctx context.Context, d deployment.Deployment, mission catalog.MissionTemplate, now time.Time) (deployment.Deployment, error) {
	approach, err := mission.Approach(d.Approach)
	if err != nil {
		return deployment.Deployment{}, err
	}
	grant := reward.Compute(mission, approach, d.Outcome, d.CoordinatorID)
	finalizedAt := now.UTC().Truncate(time.Millisecond)

	resolved, err := deployment.Resolve(d, mission.Phases, deployment.Result{
		Success:           grant.Success,
		TimelinePoints:    grant.TimelinePoints,
		Experience:        grant.Experience,
		LoreFragments:     grant.LoreFragments,
		AffinityIncrement: grant.AffinityIncrement,
		TimelineShift:     grant.TimelineShift,
		FinalizedAt:       finalizedAt,
	})
	if err != nil {
		return deployment.Deployment{}, err
	}
	resolved.LoreSync = deployment.LoreSync{Status: deployment.LoreSyncNone, UpdatedAt: finalizedAt}
	if len(grant.LoreFragments) > 0 {
		resolved.LoreSync.Status = deployment.LoreSyncPending
	}

	err = dist.store.FinalizeDeployment(ctx, storage.FinalizeRecord{Deployment: resolved, Grant: grant, At: finalizedAt})
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrAlreadyFinalized):
		return deployment.Deployment{}, apperrors.Wrap(
			apperrors.CodeConcurrentFinalization,
			fmt.Sprintf("deployment %s finalized concurrently", d.ID),
			err,
		)
	case errors.Is(err, storage.ErrNotFound):
		return deployment.Deployment{}, notFoundError("deployment", d.ID)
	default:
		return deployment.Deployment{}, fmt.Errorf("finalize deployment %s: %w", d.ID, err)
	}

	dist.logf("deployment finalized id=%s agent=%s mission=%s success=%t points=%d experience=%d shift=%d",
		d.ID, d.AgentID, d.MissionID, grant.Success, grant.TimelinePoints, grant.Experience, grant.TimelineShift)

	if resolved.LoreSync.Status == deployment.LoreSyncPending {
		resolved.LoreSync = dist.SyncLore(ctx, resolved)
	}
	return resolved, nil
}

// SyncLore delivers d's lore fragments and records the outcome. Failures are
// recorded on the deployment for the sweep to retry; rewards already
// committed are never rolled back.
func (dist *Distributor) SyncLore(ctx context.Context, d deployment.Deployment) deployment.LoreSync {
	result, ok := d.Result()
	sync := d.LoreSync
	if !ok || len(result.LoreFragments) == 0 {
		return sync
	}
	sync.UpdatedAt = dist.clock().UTC()

	if err := dist.lore.UnlockFragments(ctx, d.AgentID, result.LoreFragments); err != nil {
		partial := apperrors.Wrap(
			apperrors.CodeDistributorPartialFailure,
			fmt.Sprintf("deliver lore for deployment %s: %v", d.ID, err),
			err,
		)
		dist.logf("lore sync failed id=%s code=%s: %v", d.ID, partial.Code, partial)
		sync.Status = deployment.LoreSyncPending
		sync.LastError = partial.Error()
	} else {
		sync.Status = deployment.LoreSyncSynced
		sync.LastError = ""
	}

	attempts, err := dist.store.RecordLoreSyncAttempt(ctx, d.ID, sync)
	if err != nil {
		dist.logf("record lore sync id=%s: %v", d.ID, err)
		sync.Attempts++
		return sync
	}
	sync.Attempts = attempts
	return sync
}
