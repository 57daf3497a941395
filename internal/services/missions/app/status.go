package app

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
)

// StatusView is the client-facing snapshot of a deployment at a moment.
type StatusView struct {
	Deployment      deployment.Deployment
	MissionTitle    string
	Status          deployment.Status
	PhaseIndex      int
	Phase           catalog.Phase
	PhaseCount      int
	ProgressPercent float64
	Narrative       deployment.NarrativeKey
	NarrativeText   string
	Result          *deployment.Result
}

// GetStatus returns the deployment's state at now, finalizing it first when
// it is due. Repeated calls with the same now return the same view.
func (e *Engine) GetStatus(ctx context.Context, deploymentID string, now time.Time) (_ StatusView, err error) {
	ctx, span := e.startSpan(ctx, "missions.GetStatus", attribute.String("proxim8.deployment_id", deploymentID))
	defer func() { endSpan(span, err) }()

	d, err := e.loadDeployment(ctx, deploymentID)
	if err != nil {
		return StatusView{}, err
	}
	return e.status(ctx, d, now)
}

// GetAgentStatus is GetStatus for a deployment that agentID must own.
// Deployments owned by other agents report NOT_FOUND and are left untouched.
func (e *Engine) GetAgentStatus(ctx context.Context, agentID, deploymentID string, now time.Time) (_ StatusView, err error) {
	ctx, span := e.startSpan(ctx, "missions.GetAgentStatus", attribute.String("proxim8.deployment_id", deploymentID))
	defer func() { endSpan(span, err) }()

	d, err := e.loadDeployment(ctx, deploymentID)
	if err != nil {
		return StatusView{}, err
	}
	if !strings.EqualFold(d.AgentID, strings.TrimSpace(agentID)) {
		return StatusView{}, notFoundError("deployment", deploymentID)
	}
	return e.status(ctx, d, now)
}

func (e *Engine) status(ctx context.Context, d deployment.Deployment, now time.Time) (StatusView, error) {
	mission, err := e.missionFor(d)
	if err != nil {
		return StatusView{}, err
	}
	if d.Due(now) {
		d, err = e.Finalize(ctx, d.ID, now)
	} else {
		d, err = e.advance(ctx, d, mission, now)
	}
	if err != nil {
		return StatusView{}, err
	}
	return e.view(ctx, d, mission, now), nil
}

func (e *Engine) view(ctx context.Context, d deployment.Deployment, mission catalog.MissionTemplate, now time.Time) StatusView {
	view := StatusView{
		Deployment:      d,
		MissionTitle:    mission.Title,
		Status:          d.Status(),
		PhaseIndex:      d.PhaseIndex(),
		PhaseCount:      len(mission.Phases),
		ProgressPercent: deployment.Progress(d, now),
		Narrative:       deployment.NarrativeKeyFor(d, mission.Phases),
	}
	if index := d.PhaseIndex(); index >= 0 && index < len(mission.Phases) {
		view.Phase = mission.Phases[index]
	}
	if result, ok := d.Result(); ok {
		view.Result = &result
	}
	if e.narratives != nil && view.Narrative.Template != "" {
		if text, ok := e.narratives.Narrative(ctx, view.Narrative); ok {
			view.NarrativeText = text
		}
	}
	return view
}
