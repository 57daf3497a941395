package httpapi

import (
	"time"

	"github.com/project-89/89-sub004/internal/services/missions/app"
	"github.com/project-89/89-sub004/internal/services/missions/domain/affinity"
	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/domain/deployment"
	"github.com/project-89/89-sub004/internal/services/missions/storage"
)

type missionView struct {
	ID            string                `json:"id"`
	Version       int                   `json:"version"`
	Sequence      int                   `json:"sequence"`
	Title         string                `json:"title"`
	Location      string                `json:"location,omitempty"`
	Date          string                `json:"date,omitempty"`
	Briefing      string                `json:"briefing,omitempty"`
	ThreatLevel   string                `json:"threatLevel,omitempty"`
	Difficulty    string                `json:"difficulty,omitempty"`
	Tags          []string              `json:"tags,omitempty"`
	DurationMs    int64                 `json:"durationMs"`
	Approaches    []catalog.Approach    `json:"approaches"`
	Compatibility catalog.Compatibility `json:"compatibility"`
	Phases        []phaseView           `json:"phases"`
	Prerequisites []string              `json:"prerequisites,omitempty"`
}

type phaseView struct {
	ID              int    `json:"id"`
	Name            string `json:"name"`
	DurationPercent int    `json:"durationPercent"`
}

func newMissionView(m catalog.MissionTemplate) missionView {
	phases := make([]phaseView, 0, len(m.Phases))
	for _, p := range m.Phases {
		phases = append(phases, phaseView{ID: p.ID, Name: p.Name, DurationPercent: p.DurationPercent})
	}
	return missionView{
		ID:            m.ID,
		Version:       m.Version,
		Sequence:      m.Sequence,
		Title:         m.Title,
		Location:      m.Location,
		Date:          m.Date,
		Briefing:      m.Briefing,
		ThreatLevel:   m.ThreatLevel,
		Difficulty:    m.Difficulty,
		Tags:          m.Tags,
		DurationMs:    m.Duration.Milliseconds(),
		Approaches:    m.Approaches,
		Compatibility: m.Compatibility,
		Phases:        phases,
		Prerequisites: m.Prerequisites,
	}
}

// deploymentView never carries the resolution of a pending deployment.
type deploymentView struct {
	ID                string             `json:"id"`
	MissionID         string             `json:"missionId"`
	AgentID           string             `json:"agentId"`
	Proxim8ID         string             `json:"proxim8Id"`
	Approach          catalog.Risk       `json:"approach"`
	CoordinatorID     string             `json:"coordinatorId,omitempty"`
	Status            deployment.Status  `json:"status"`
	CurrentPhaseIndex int                `json:"currentPhaseIndex"`
	DeployedAt        time.Time          `json:"deployedAt"`
	CompletesAt       time.Time          `json:"completesAt"`
	Result            *deployment.Result `json:"result,omitempty"`
}

func newDeploymentView(d deployment.Deployment) deploymentView {
	view := deploymentView{
		ID:                d.ID,
		MissionID:         d.MissionID,
		AgentID:           d.AgentID,
		Proxim8ID:         d.Proxim8ID,
		Approach:          d.Approach,
		CoordinatorID:     d.CoordinatorID,
		Status:            d.Status(),
		CurrentPhaseIndex: d.PhaseIndex(),
		DeployedAt:        d.DeployedAt,
		CompletesAt:       d.CompletesAt,
	}
	if result, ok := d.Result(); ok {
		view.Result = &result
	}
	return view
}

type statusView struct {
	Deployment      deploymentView `json:"deployment"`
	MissionTitle    string         `json:"missionTitle"`
	Phase           phaseView      `json:"phase"`
	PhaseCount      int            `json:"phaseCount"`
	ProgressPercent float64        `json:"progressPercent"`
	Narrative       string         `json:"narrative,omitempty"`
	NarrativeKey    string         `json:"narrativeKey,omitempty"`
}

func newStatusView(v app.StatusView) statusView {
	return statusView{
		Deployment:      newDeploymentView(v.Deployment),
		MissionTitle:    v.MissionTitle,
		Phase:           phaseView{ID: v.Phase.ID, Name: v.Phase.Name, DurationPercent: v.Phase.DurationPercent},
		PhaseCount:      v.PhaseCount,
		ProgressPercent: v.ProgressPercent,
		Narrative:       v.NarrativeText,
		NarrativeKey:    v.Narrative.Template,
	}
}

type progressView struct {
	AgentID           string         `json:"agentId"`
	TimelinePoints    int64          `json:"timelinePoints"`
	Experience        int64          `json:"experience"`
	MissionsCompleted int            `json:"missionsCompleted"`
	MissionsFailed    int            `json:"missionsFailed"`
	LoreFragments     []string       `json:"loreFragments"`
	Affinity          []affinityView `json:"affinity"`
}

type affinityView struct {
	CoordinatorID      string  `json:"coordinatorId"`
	SuccessfulMissions int     `json:"successfulMissions"`
	Bonus              float64 `json:"bonus"`
}

func newAffinityView(r affinity.Record) affinityView {
	return affinityView{CoordinatorID: r.CoordinatorID, SuccessfulMissions: r.SuccessfulMissions, Bonus: r.Bonus()}
}

func newProgressView(p app.AgentProfile) progressView {
	view := progressView{
		AgentID:           p.Progress.AgentID,
		TimelinePoints:    p.Progress.TimelinePoints,
		Experience:        p.Progress.Experience,
		MissionsCompleted: p.Progress.MissionsCompleted,
		MissionsFailed:    p.Progress.MissionsFailed,
		LoreFragments:     make([]string, 0, len(p.Lore)),
		Affinity:          make([]affinityView, 0, len(p.Affinity)),
	}
	for _, unlock := range p.Lore {
		view.LoreFragments = append(view.LoreFragments, unlock.FragmentID)
	}
	for _, record := range p.Affinity {
		view.Affinity = append(view.Affinity, newAffinityView(record))
	}
	return view
}

type timelineView struct {
	TotalShift         int64 `json:"totalShift"`
	SuccessfulMissions int64 `json:"successfulMissions"`
	FailedMissions     int64 `json:"failedMissions"`
}

func newTimelineView(t storage.Timeline) timelineView {
	return timelineView{TotalShift: t.TotalShift, SuccessfulMissions: t.SuccessfulMissions, FailedMissions: t.FailedMissions}
}
