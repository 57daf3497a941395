package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

// Finalize moves a due deployment to its terminal state and distributes its
// rewards. It is a no-op before CompletesAt and idempotent afterwards: a
// terminal deployment is returned as stored.
func (e *Engine) Finalize(ctx context.Context, deploymentID string, now time.Time) (_ deployment.Deployment, err error) {
	ctx, span := e.startSpan(ctx, "missions.Finalize", attribute.String("proxim8.deployment_id", deploymentID))
	defer func() { endSpan(span, err) }()

	d, err := e.loadDeployment(ctx, deploymentID)
	if err != nil {
		return deployment.Deployment{}, err
	}
	if d.Terminal() || !d.Due(now) {
		return d, nil
	}
	mission, err := e.missionFor(d)
	if err != nil {
		return deployment.Deployment{}, err
	}

	resolved, err := e.distributor.Distribute(ctx, d, mission, now)
	if apperrors.HasCode(err, apperrors.CodeConcurrentFinalization) {
		e.logf("deployment finalize lost race id=%s", d.ID)
		return e.loadDeployment(ctx, deploymentID)
	}
	if err != nil {
		return deployment.Deployment{}, err
	}
	span.SetAttributes(attribute.String("proxim8.status", string(resolved.Status())))
	return resolved, nil
}

// AdvancePhase brings a pending deployment's phase and status up to now and
// persists any change. Terminal deployments are returned unchanged.
func (e *Engine) AdvancePhase(ctx context.Context, deploymentID string, now time.Time) (deployment.Deployment, error) {
	d, err := e.loadDeployment(ctx, deploymentID)
	if err != nil {
		return deployment.Deployment{}, err
	}
	mission, err := e.missionFor(d)
	if err != nil {
		return deployment.Deployment{}, err
	}
	return e.advance(ctx, d, mission, now)
}

func (e *Engine) advance(ctx context.Context, d deployment.Deployment, mission catalog.MissionTemplate, now time.Time) (deployment.Deployment, error) {
	advanced := deployment.Advance(d, mission.Phases, now, e.deployingWindow)
	pending, ok := advanced.State.(deployment.Pending)
	if !ok {
		return advanced, nil
	}
	if advanced.PhaseIndex() == d.PhaseIndex() && advanced.Status() == d.Status() {
		return advanced, nil
	}
	if err := e.store.AdvanceDeployment(ctx, d.ID, pending); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return deployment.Deployment{}, notFoundError("deployment", d.ID)
		}
		return deployment.Deployment{}, fmt.Errorf("advance deployment %s: %w", d.ID, err)
	}
	return advanced, nil
}

func (e *Engine) loadDeployment(ctx context.Context, deploymentID string) (deployment.Deployment, error) {
	d, err := e.store.GetDeployment(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return deployment.Deployment{}, notFoundError("deployment", deploymentID)
		}
		return deployment.Deployment{}, fmt.Errorf("load deployment %s: %w", deploymentID, err)
	}
	return d, nil
}

func (e *Engine) missionFor(d deployment.Deployment) (catalog.MissionTemplate, error) {
	mission, err := e.catalog.Mission(d.MissionID)
	if err != nil {
		return catalog.MissionTemplate{}, fmt.Errorf("deployment %s references mission %s: %w", d.ID, d.MissionID, err)
	}
	if mission.Version != d.MissionVersion {
		e.logf("deployment %s was created against mission %s v%d, catalog has v%d", d.ID, d.MissionID, d.MissionVersion, mission.Version)
	}
	return mission, nil
}
