package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
	"github.com/project-89/89-sub004/internal/services/missions/domain/resolution"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

// DeployRequest asks to send a Proxim8 on a mission.
type DeployRequest struct {
	AgentID       string
	MissionID     string
	Proxim8ID     string
	Approach      string
	CoordinatorID string
}

// Deploy validates the request, resolves the outcome once and persists a new
// pending deployment.
func (e *Engine) Deploy(ctx context.Context, req DeployRequest) (_ deployment.Deployment, err error) {
	ctx, span := e.startSpan(ctx, "missions.Deploy",
		attribute.String("proxim8.agent_id", req.AgentID),
		attribute.String("proxim8.mission_id", req.MissionID),
		attribute.String("proxim8.approach", req.Approach),
	)
	defer func() { endSpan(span, err) }()

	req.AgentID = strings.TrimSpace(req.AgentID)
	req.MissionID = strings.TrimSpace(req.MissionID)
	req.Proxim8ID = strings.TrimSpace(req.Proxim8ID)
	req.CoordinatorID = strings.TrimSpace(req.CoordinatorID)
	required := []struct{ field, value string }{
		{field: "agentId", value: req.AgentID},
		{field: "missionId", value: req.MissionID},
		{field: "proxim8Id", value: req.Proxim8ID},
	}
	for _, r := range required {
		if r.value == "" {
			return deployment.Deployment{}, apperrors.WithMetadata(
				apperrors.CodeDeployRequestInvalid,
				r.field+" is required",
				map[string]string{"field": r.field},
			)
		}
	}

	risk, ok := catalog.ParseRisk(req.Approach)
	if !ok {
		return deployment.Deployment{}, apperrors.WithMetadata(
			apperrors.CodeMissionInvalidApproach,
			fmt.Sprintf("unknown approach %q", req.Approach),
			map[string]string{"approach": req.Approach},
		)
	}
	mission, err := e.catalog.Mission(req.MissionID)
	if err != nil {
		return deployment.Deployment{}, err
	}
	approach, err := mission.Approach(risk)
	if err != nil {
		return deployment.Deployment{}, err
	}
	proxim8, err := e.proxim8s.Proxim8(ctx, req.AgentID, req.Proxim8ID)
	if err != nil {
		return deployment.Deployment{}, err
	}

	var coordinator catalog.Coordinator
	if req.CoordinatorID != "" {
		coordinator, err = e.catalog.Coordinator(req.CoordinatorID)
		if err != nil {
			return deployment.Deployment{}, err
		}
	}

	if err := e.checkEligibility(ctx, req.AgentID, mission); err != nil {
		return deployment.Deployment{}, err
	}

	affinityBonus := 0.0
	if coordinator.ID != "" {
		record, err := e.store.GetAffinity(ctx, req.AgentID, coordinator.ID)
		switch {
		case err == nil:
			affinityBonus = record.Bonus()
		case !errors.Is(err, storage.ErrNotFound):
			return deployment.Deployment{}, fmt.Errorf("load affinity: %w", err)
		}
	}

	seed, err := e.seed()
	if err != nil {
		return deployment.Deployment{}, fmt.Errorf("draw seed: %w", err)
	}
	outcome, err := resolution.Resolve(resolution.Input{
		Approach:           approach,
		Compatibility:      mission.Compatibility,
		Proxim8Type:        proxim8.Personality,
		AffinityBonus:      affinityBonus,
		TemporalAdjustment: coordinator.TemporalAdjustment(mission.Era),
		Seed:               seed,
	})
	if err != nil {
		return deployment.Deployment{}, fmt.Errorf("resolve mission %s: %w", mission.ID, err)
	}

	deploymentID, err := e.newID()
	if err != nil {
		return deployment.Deployment{}, fmt.Errorf("generate deployment id: %w", err)
	}
	now := e.Now()
	d, err := deployment.New(deployment.Params{
		ID:              deploymentID,
		AgentID:         req.AgentID,
		Proxim8ID:       proxim8.ID,
		Proxim8Type:     proxim8.Personality,
		CoordinatorID:   coordinator.ID,
		Mission:         mission,
		Approach:        risk,
		Outcome:         outcome,
		Now:             now,
		DeployingWindow: e.deployingWindow,
	})
	if err != nil {
		return deployment.Deployment{}, fmt.Errorf("build deployment: %w", err)
	}

	if err := e.store.CreateDeployment(ctx, d); err != nil {
		if errors.Is(err, storage.ErrActiveDeploymentExists) {
			return deployment.Deployment{}, alreadyDeployed(mission.ID)
		}
		return deployment.Deployment{}, fmt.Errorf("create deployment: %w", err)
	}

	span.SetAttributes(
		attribute.String("proxim8.deployment_id", d.ID),
		attribute.Float64("proxim8.adjusted_rate", outcome.AdjustedRate),
	)
	e.logf("deployment created id=%s agent=%s mission=%s approach=%s adjusted_rate=%.3f completes_at=%s",
		d.ID, d.AgentID, d.MissionID, d.Approach, outcome.AdjustedRate, d.CompletesAt.Format(time.RFC3339))
	return d, nil
}

func (e *Engine) checkEligibility(ctx context.Context, agentID string, mission catalog.MissionTemplate) error {
	for _, prerequisite := range mission.Prerequisites {
		done, err := e.store.HasCompletedMission(ctx, agentID, prerequisite)
		if err != nil {
			return fmt.Errorf("check prerequisite %s: %w", prerequisite, err)
		}
		if !done {
			return apperrors.WithMetadata(
				apperrors.CodeMissionPrerequisiteUnmet,
				fmt.Sprintf("mission %s requires %s", mission.ID, prerequisite),
				map[string]string{"mission": mission.ID, "prerequisite": prerequisite},
			)
		}
	}

	completed, err := e.store.HasCompletedMission(ctx, agentID, mission.ID)
	if err != nil {
		return fmt.Errorf("check completed mission: %w", err)
	}
	if completed {
		return apperrors.WithMetadata(
			apperrors.CodeMissionAlreadyDeployed,
			fmt.Sprintf("mission %s already completed", mission.ID),
			map[string]string{"mission": mission.ID, "reason": alreadyDeployedCompleted},
		)
	}

	_, err = e.store.FindActiveDeployment(ctx, agentID, mission.ID)
	switch {
	case err == nil:
		return alreadyDeployed(mission.ID)
	case errors.Is(err, storage.ErrNotFound):
		return nil
	default:
		return fmt.Errorf("find active deployment: %w", err)
	}
}

// Reasons carried in the "reason" metadata of MISSION_ALREADY_DEPLOYED.
const (
	alreadyDeployedActive    = "active"
	alreadyDeployedCompleted = "completed"
)

func alreadyDeployed(missionID string) error {
	return apperrors.WithMetadata(
		apperrors.CodeMissionAlreadyDeployed,
		fmt.Sprintf("mission %s already has an active deployment", missionID),
		map[string]string{"mission": missionID, "reason": alreadyDeployedActive},
	)
}
