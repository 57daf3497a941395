// Package mcptools exposes the mission engine as MCP tools so operators and
// agents can browse missions, deploy and poll from an MCP client.
package mcptools

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/project-89/89-sub004/internal/services/missions/app"
	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
)

// MissionSummary is one catalog entry.
type MissionSummary struct {
	ID            string   `json:"id" jsonschema:"mission id"`
	Title         string   `json:"title" jsonschema:"mission title"`
	Sequence      int      `json:"sequence" jsonschema:"position in the campaign"`
	DurationMs    int64    `json:"duration_ms" jsonschema:"mission duration in milliseconds"`
	Approaches    []string `json:"approaches" jsonschema:"available approach risks"`
	Prerequisites []string `json:"prerequisites" jsonschema:"missions that must be completed first"`
}

// MissionListInput is the empty input of mission_list.
type MissionListInput struct{}

// MissionListResult lists the catalog.
type MissionListResult struct {
	Missions []MissionSummary `json:"missions" jsonschema:"missions in sequence order"`
}

// MissionGetInput selects one mission.
type MissionGetInput struct {
	MissionID string `json:"mission_id" jsonschema:"mission id"`
}

// ApproachDetail describes one approach of a mission.
type ApproachDetail struct {
	Risk           string  `json:"risk" jsonschema:"low, medium or high"`
	Name           string  `json:"name" jsonschema:"approach name"`
	MinSuccessRate float64 `json:"min_success_rate" jsonschema:"lower bound of the base success rate"`
	MaxSuccessRate float64 `json:"max_success_rate" jsonschema:"upper bound of the base success rate"`
	TimelinePoints int64   `json:"timeline_points" jsonschema:"points granted on success"`
	Experience     int64   `json:"experience" jsonschema:"experience granted on success"`
}

// MissionGetResult is the detail view of a mission.
type MissionGetResult struct {
	Mission        MissionSummary   `json:"mission" jsonschema:"mission summary"`
	Briefing       string           `json:"briefing" jsonschema:"mission briefing"`
	Approaches     []ApproachDetail `json:"approach_details" jsonschema:"approach details"`
	PreferredTypes []string         `json:"preferred_types" jsonschema:"Proxim8 personalities favored by this mission"`
	Phases         []string         `json:"phases" jsonschema:"phase names in order"`
}

// DeployInput requests a deployment.
type DeployInput struct {
	AgentID       string `json:"agent_id" jsonschema:"deploying agent"`
	MissionID     string `json:"mission_id" jsonschema:"mission to deploy on"`
	Proxim8ID     string `json:"proxim8_id" jsonschema:"Proxim8 owned by the agent"`
	Approach      string `json:"approach" jsonschema:"low, medium or high"`
	CoordinatorID string `json:"coordinator_id,omitempty" jsonschema:"optional coordinator"`
}

// DeploymentResult is a deployment snapshot. Outcome fields are set only
// once the deployment is terminal.
type DeploymentResult struct {
	DeploymentID    string   `json:"deployment_id" jsonschema:"deployment id"`
	MissionID       string   `json:"mission_id" jsonschema:"mission id"`
	AgentID         string   `json:"agent_id" jsonschema:"agent id"`
	Status          string   `json:"status" jsonschema:"deploying, in-progress, completed or failed"`
	PhaseIndex      int      `json:"phase_index" jsonschema:"current phase index"`
	PhaseName       string   `json:"phase_name,omitempty" jsonschema:"current phase name"`
	ProgressPercent float64  `json:"progress_percent" jsonschema:"elapsed share of the mission duration"`
	DeployedAt      string   `json:"deployed_at" jsonschema:"RFC 3339 deploy time"`
	CompletesAt     string   `json:"completes_at" jsonschema:"RFC 3339 completion time"`
	Success         *bool    `json:"success,omitempty" jsonschema:"mission outcome"`
	TimelinePoints  int64    `json:"timeline_points" jsonschema:"points granted"`
	Experience      int64    `json:"experience" jsonschema:"experience granted"`
	TimelineShift   int64    `json:"timeline_shift" jsonschema:"timeline shift contributed"`
	LoreFragments   []string `json:"lore_fragments" jsonschema:"lore fragments unlocked"`
	Narrative       string   `json:"narrative,omitempty" jsonschema:"narrative text for the current phase"`
}

// DeploymentStatusInput selects a deployment.
type DeploymentStatusInput struct {
	DeploymentID string `json:"deployment_id" jsonschema:"deployment id"`
}

// AgentProfileInput selects an agent.
type AgentProfileInput struct {
	AgentID string `json:"agent_id" jsonschema:"agent id"`
}

// AffinityEntry is an agent's standing with one coordinator.
type AffinityEntry struct {
	CoordinatorID      string  `json:"coordinator_id" jsonschema:"coordinator id"`
	SuccessfulMissions int     `json:"successful_missions" jsonschema:"successful missions together"`
	Bonus              float64 `json:"bonus" jsonschema:"success rate bonus"`
}

// AgentProfileResult aggregates an agent's rewards.
type AgentProfileResult struct {
	AgentID           string          `json:"agent_id" jsonschema:"agent id"`
	TimelinePoints    int64           `json:"timeline_points" jsonschema:"total timeline points"`
	Experience        int64           `json:"experience" jsonschema:"total experience"`
	MissionsCompleted int             `json:"missions_completed" jsonschema:"successful missions"`
	MissionsFailed    int             `json:"missions_failed" jsonschema:"failed missions"`
	LoreFragments     []string        `json:"lore_fragments" jsonschema:"unlocked lore fragments"`
	Affinity          []AffinityEntry `json:"affinity" jsonschema:"coordinator affinity"`
}

// TimelineInput is the empty input of timeline_get.
type TimelineInput struct{}

// TimelineResult is the global timeline aggregate.
type TimelineResult struct {
	TotalShift         int64 `json:"total_shift" jsonschema:"accumulated timeline shift"`
	SuccessfulMissions int64 `json:"successful_missions" jsonschema:"successful missions across all agents"`
	FailedMissions     int64 `json:"failed_missions" jsonschema:"failed missions across all agents"`
}

// MissionListTool defines mission_list.
func MissionListTool() *mcp.Tool {
	return &mcp.Tool{Name: "mission_list", Description: "Lists the missions in the catalog"}
}

// MissionGetTool defines mission_get.
func MissionGetTool() *mcp.Tool {
	return &mcp.Tool{Name: "mission_get", Description: "Returns the briefing, approaches and phases of a mission"}
}

// MissionDeployTool defines mission_deploy.
func MissionDeployTool() *mcp.Tool {
	return &mcp.Tool{Name: "mission_deploy", Description: "Deploys a Proxim8 on a mission with the chosen approach"}
}

// DeploymentStatusTool defines deployment_status.
func DeploymentStatusTool() *mcp.Tool {
	return &mcp.Tool{Name: "deployment_status", Description: "Returns the current phase or the result of a deployment"}
}

// AgentProfileTool defines agent_profile.
func AgentProfileTool() *mcp.Tool {
	return &mcp.Tool{Name: "agent_profile", Description: "Returns an agent's rewards, lore and coordinator affinity"}
}

// TimelineTool defines timeline_get.
func TimelineTool() *mcp.Tool {
	return &mcp.Tool{Name: "timeline_get", Description: "Returns the global timeline aggregate"}
}

// MissionListHandler lists missions.
func MissionListHandler(engine *app.Engine) mcp.ToolHandlerFor[MissionListInput, MissionListResult] {
	return func(context.Context, *mcp.CallToolRequest, MissionListInput) (*mcp.CallToolResult, MissionListResult, error) {
		missions := engine.ListMissions()
		result := MissionListResult{Missions: make([]MissionSummary, 0, len(missions))}
		for _, m := range missions {
			result.Missions = append(result.Missions, summarize(m))
		}
		return nil, result, nil
	}
}

// MissionGetHandler returns one mission.
func MissionGetHandler(engine *app.Engine) mcp.ToolHandlerFor[MissionGetInput, MissionGetResult] {
	return func(_ context.Context, _ *mcp.CallToolRequest, input MissionGetInput) (*mcp.CallToolResult, MissionGetResult, error) {
		m, err := engine.GetMission(input.MissionID)
		if err != nil {
			return nil, MissionGetResult{}, err
		}
		result := MissionGetResult{
			Mission:        summarize(m),
			Briefing:       m.Briefing,
			Approaches:     make([]ApproachDetail, 0, len(m.Approaches)),
			PreferredTypes: append([]string{}, m.Compatibility.PreferredTypes...),
			Phases:         make([]string, 0, len(m.Phases)),
		}
		for _, a := range m.Approaches {
			result.Approaches = append(result.Approaches, ApproachDetail{
				Risk:           string(a.Risk),
				Name:           a.Name,
				MinSuccessRate: a.SuccessRate.Min,
				MaxSuccessRate: a.SuccessRate.Max,
				TimelinePoints: a.Rewards.TimelinePoints,
				Experience:     a.Rewards.Experience,
			})
		}
		for _, p := range m.Phases {
			result.Phases = append(result.Phases, p.Name)
		}
		return nil, result, nil
	}
}

// MissionDeployHandler deploys a Proxim8.
func MissionDeployHandler(engine *app.Engine) mcp.ToolHandlerFor[DeployInput, DeploymentResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeployInput) (*mcp.CallToolResult, DeploymentResult, error) {
		d, err := engine.Deploy(ctx, app.DeployRequest{
			AgentID:       input.AgentID,
			MissionID:     input.MissionID,
			Proxim8ID:     input.Proxim8ID,
			Approach:      input.Approach,
			CoordinatorID: input.CoordinatorID,
		})
		if err != nil {
			return nil, DeploymentResult{}, err
		}
		view, err := engine.GetStatus(ctx, d.ID, engine.Now())
		if err != nil {
			return nil, DeploymentResult{}, err
		}
		return nil, deploymentResult(view), nil
	}
}

// DeploymentStatusHandler polls a deployment.
func DeploymentStatusHandler(engine *app.Engine) mcp.ToolHandlerFor[DeploymentStatusInput, DeploymentResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input DeploymentStatusInput) (*mcp.CallToolResult, DeploymentResult, error) {
		view, err := engine.GetStatus(ctx, input.DeploymentID, engine.Now())
		if err != nil {
			return nil, DeploymentResult{}, err
		}
		return nil, deploymentResult(view), nil
	}
}

// AgentProfileHandler returns an agent's profile.
func AgentProfileHandler(engine *app.Engine) mcp.ToolHandlerFor[AgentProfileInput, AgentProfileResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, input AgentProfileInput) (*mcp.CallToolResult, AgentProfileResult, error) {
		profile, err := engine.AgentProfile(ctx, input.AgentID)
		if err != nil {
			return nil, AgentProfileResult{}, err
		}
		result := AgentProfileResult{
			AgentID:           profile.Progress.AgentID,
			TimelinePoints:    profile.Progress.TimelinePoints,
			Experience:        profile.Progress.Experience,
			MissionsCompleted: profile.Progress.MissionsCompleted,
			MissionsFailed:    profile.Progress.MissionsFailed,
			LoreFragments:     make([]string, 0, len(profile.Lore)),
			Affinity:          make([]AffinityEntry, 0, len(profile.Affinity)),
		}
		for _, unlock := range profile.Lore {
			result.LoreFragments = append(result.LoreFragments, unlock.FragmentID)
		}
		for _, record := range profile.Affinity {
			result.Affinity = append(result.Affinity, AffinityEntry{
				CoordinatorID:      record.CoordinatorID,
				SuccessfulMissions: record.SuccessfulMissions,
				Bonus:              record.Bonus(),
			})
		}
		return nil, result, nil
	}
}

// TimelineHandler returns the global timeline.
func TimelineHandler(engine *app.Engine) mcp.ToolHandlerFor[TimelineInput, TimelineResult] {
	return func(ctx context.Context, _ *mcp.CallToolRequest, _ TimelineInput) (*mcp.CallToolResult, TimelineResult, error) {
		timeline, err := engine.Timeline(ctx)
		if err != nil {
			return nil, TimelineResult{}, err
		}
		return nil, TimelineResult{
			TotalShift:         timeline.TotalShift,
			SuccessfulMissions: timeline.SuccessfulMissions,
			FailedMissions:     timeline.FailedMissions,
		}, nil
	}
}

func summarize(m catalog.MissionTemplate) MissionSummary {
	summary := MissionSummary{
		ID:            m.ID,
		Title:         m.Title,
		Sequence:      m.Sequence,
		DurationMs:    m.Duration.Milliseconds(),
		Approaches:    make([]string, 0, len(m.Approaches)),
		Prerequisites: append([]string{}, m.Prerequisites...),
	}
	for _, a := range m.Approaches {
		summary.Approaches = append(summary.Approaches, string(a.Risk))
	}
	return summary
}

func deploymentResult(view app.StatusView) DeploymentResult {
	d := view.Deployment
	result := DeploymentResult{
		DeploymentID:    d.ID,
		MissionID:       d.MissionID,
		AgentID:         d.AgentID,
		Status:          string(view.Status),
		PhaseIndex:      view.PhaseIndex,
		PhaseName:       view.Phase.Name,
		ProgressPercent: view.ProgressPercent,
		DeployedAt:      d.DeployedAt.Format(time.RFC3339),
		CompletesAt:     d.CompletesAt.Format(time.RFC3339),
		LoreFragments:   []string{},
		Narrative:       view.NarrativeText,
	}
	if view.Result != nil {
		success := view.Result.Success
		result.Success = &success
		result.TimelinePoints = view.Result.TimelinePoints
		result.Experience = view.Result.Experience
		result.TimelineShift = view.Result.TimelineShift
		result.LoreFragments = append(result.LoreFragments, view.Result.LoreFragments...)
	}
	return result
}
