package catalog

import (
	"fmt"
	"math"
	"strings"
	"time"

	apperrors "github.com/project-89/89-sub004/internal/platform/errors"
)

// Risk is one of the three approach tiers every mission offers.
type Risk string

const (
	RiskLow    Risk = "low"
	RiskMedium Risk = "medium"
	RiskHigh   Risk = "high"
)

// Risks lists the tiers in ascending order.
var Risks = []Risk{RiskLow, RiskMedium, RiskHigh}

// ParseRisk normalizes a risk name.
func ParseRisk(value string) (Risk, bool) {
	switch Risk(strings.ToLower(strings.TrimSpace(value))) {
	case RiskLow:
		return RiskLow, true
	case RiskMedium:
		return RiskMedium, true
	case RiskHigh:
		return RiskHigh, true
	default:
		return "", false
	}
}

// RateRange is an inclusive probability range in [0,1].
type RateRange struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

// MaxTimelineShift bounds the timeline units a single approach can award.
const MaxTimelineShift = 1_000_000

// ShiftRange is an inclusive range of timeline units.
type ShiftRange struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

// Rewards is the base reward table of an approach.
type Rewards struct {
	TimelinePoints      int64   `json:"timelinePoints"`
	Experience          int64   `json:"experience"`
	InfluenceMultiplier float64 `json:"influenceMultiplier,omitempty"`
}

// Multiplier returns the success reward multiplier, defaulting to 1.
func (r Rewards) Multiplier() float64 {
	if r.InfluenceMultiplier <= 0 {
		return 1
	}
	return r.InfluenceMultiplier
}

// Approach is one selectable risk tier of a mission.
type Approach struct {
	Risk          Risk       `json:"risk"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	SuccessRate   RateRange  `json:"successRate"`
	TimelineShift ShiftRange `json:"timelineShift"`
	Rewards       Rewards    `json:"rewards"`
}

// Compatibility scores how well a Proxim8 personality fits a mission.
type Compatibility struct {
	PreferredTypes []string `json:"preferredTypes"`
	Bonus          float64  `json:"bonus"`
	Penalty        float64  `json:"penalty"`
}

// Prefers reports whether proxim8Type is one of the preferred types.
func (c Compatibility) Prefers(proxim8Type string) bool {
	proxim8Type = strings.TrimSpace(proxim8Type)
	for _, preferred := range c.PreferredTypes {
		if strings.EqualFold(preferred, proxim8Type) {
			return true
		}
	}
	return false
}

// Adjustment returns +Bonus for a preferred type and -Penalty otherwise.
func (c Compatibility) Adjustment(proxim8Type string) float64 {
	if c.Prefers(proxim8Type) {
		return c.Bonus
	}
	return -c.Penalty
}

// NarrativeTemplates names the narrative template keys for a phase outcome.
type NarrativeTemplates struct {
	Success string `json:"success"`
	Failure string `json:"failure"`
}

// Phase is one timed stage of a mission's reveal.
type Phase struct {
	ID              int                `json:"id"`
	Name            string             `json:"name"`
	DurationPercent int                `json:"durationPercent"`
	Narrative       NarrativeTemplates `json:"narrative"`
}

// MissionTemplate is the immutable definition of a mission.
type MissionTemplate struct {
	ID            string        `json:"id"`
	Version       int           `json:"version"`
	Sequence      int           `json:"sequence"`
	Title         string        `json:"title"`
	Location      string        `json:"location,omitempty"`
	Date          string        `json:"date,omitempty"`
	Era           int           `json:"era,omitempty"`
	Duration      time.Duration `json:"duration"`
	Briefing      string        `json:"briefing,omitempty"`
	ThreatLevel   string        `json:"threatLevel,omitempty"`
	Difficulty    string        `json:"difficulty,omitempty"`
	Tags          []string      `json:"tags,omitempty"`
	Approaches    []Approach    `json:"approaches"`
	Compatibility Compatibility `json:"compatibility"`
	Phases        []Phase       `json:"phases"`
	Prerequisites []string      `json:"prerequisites,omitempty"`
	LoreFragments []string      `json:"loreFragments,omitempty"`
}

// Approach returns the approach for risk or an InvalidApproach error.
func (m MissionTemplate) Approach(risk Risk) (Approach, error) {
	for _, approach := range m.Approaches {
		if approach.Risk == risk {
			return approach, nil
		}
	}
	return Approach{}, apperrors.WithMetadata(
		apperrors.CodeMissionInvalidApproach,
		fmt.Sprintf("mission %s has no %q approach", m.ID, risk),
		map[string]string{"mission": m.ID, "approach": string(risk)},
	)
}

// Validate checks the template invariants: exactly one approach per risk
// tier, rates inside [0,1], phase shares summing to 100.
func (m MissionTemplate) Validate() error {
	if strings.TrimSpace(m.ID) == "" {
		return invalid("mission id is required")
	}
	if strings.TrimSpace(m.Title) == "" {
		return invalid("mission %s: title is required", m.ID)
	}
	if m.Duration <= 0 {
		return invalid("mission %s: duration must be positive", m.ID)
	}
	if len(m.Approaches) != len(Risks) {
		return invalid("mission %s: expected %d approaches, got %d", m.ID, len(Risks), len(m.Approaches))
	}
	seen := make(map[Risk]bool, len(Risks))
	for _, approach := range m.Approaches {
		if _, ok := ParseRisk(string(approach.Risk)); !ok {
			return invalid("mission %s: unknown approach risk %q", m.ID, approach.Risk)
		}
		if seen[approach.Risk] {
			return invalid("mission %s: duplicate %s approach", m.ID, approach.Risk)
		}
		seen[approach.Risk] = true
		if err := validateApproach(m.ID, approach); err != nil {
			return err
		}
	}
	if err := validateCompatibility(m.ID, m.Compatibility); err != nil {
		return err
	}
	if len(m.Phases) == 0 {
		return invalid("mission %s: at least one phase is required", m.ID)
	}
	total := 0
	for i, phase := range m.Phases {
		if phase.DurationPercent <= 0 {
			return invalid("mission %s: phase %d duration share must be positive", m.ID, i)
		}
		total += phase.DurationPercent
	}
	if total != 100 {
		return invalid("mission %s: phase duration shares sum to %d, want 100", m.ID, total)
	}
	for _, prerequisite := range m.Prerequisites {
		if prerequisite == m.ID {
			return invalid("mission %s: cannot require itself", m.ID)
		}
	}
	return nil
}

func validateApproach(missionID string, approach Approach) error {
	rate := approach.SuccessRate
	if !inUnit(rate.Min) || !inUnit(rate.Max) || rate.Min > rate.Max {
		return invalid("mission %s: %s success rate [%v,%v] must be an ordered range inside [0,1]", missionID, approach.Risk, rate.Min, rate.Max)
	}
	shift := approach.TimelineShift
	if shift.Min < 0 || shift.Min > shift.Max || shift.Max > MaxTimelineShift {
		return invalid("mission %s: %s timeline shift [%d,%d] must be an ordered range inside [0,%d]", missionID, approach.Risk, shift.Min, shift.Max, MaxTimelineShift)
	}
	if approach.Rewards.TimelinePoints < 0 || approach.Rewards.Experience < 0 {
		return invalid("mission %s: %s rewards must be non-negative", missionID, approach.Risk)
	}
	if approach.Rewards.InfluenceMultiplier < 0 {
		return invalid("mission %s: %s influence multiplier must be non-negative", missionID, approach.Risk)
	}
	return nil
}

func validateCompatibility(missionID string, compatibility Compatibility) error {
	if !inUnit(compatibility.Bonus) || !inUnit(compatibility.Penalty) {
		return invalid("mission %s: compatibility bonus and penalty must be inside [0,1]", missionID)
	}
	return nil
}

func inUnit(value float64) bool {
	return !math.IsNaN(value) && value >= 0 && value <= 1
}

func invalid(format string, args ...any) error {
	return apperrors.New(apperrors.CodeCatalogInvalid, fmt.Sprintf(format, args...))
}

func (m MissionTemplate) clone() MissionTemplate {
	out := m
	out.Tags = append([]string(nil), m.Tags...)
	out.Approaches = append([]Approach(nil), m.Approaches...)
	out.Compatibility.PreferredTypes = append([]string(nil), m.Compatibility.PreferredTypes...)
	out.Phases = append([]Phase(nil), m.Phases...)
	out.Prerequisites = append([]string(nil), m.Prerequisites...)
	out.LoreFragments = append([]string(nil), m.LoreFragments...)
	return out
}
