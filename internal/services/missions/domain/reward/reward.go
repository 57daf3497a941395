// Package reward computes what a finalized deployment grants.
package reward

import (
	"math"

	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
	"github.com/project-89/89-sub004/internal/services/missions/domain/resolution"
)

// FailurePercent is the share of base rewards paid on a failed mission.
const FailurePercent = 25

// Grant is the full set of effects of one finalization.
type Grant struct {
	Success           bool
	TimelinePoints    int64
	Experience        int64
	LoreFragments     []string
	AffinityIncrement int
	TimelineShift     int64
}

// Compute derives the grant for an outcome.
//
// Success pays base × multiplier rounded half away from zero, unlocks the
// mission's lore, adds one affinity when a coordinator was assigned and
// applies the drawn timeline shift. Failure pays FailurePercent of base
// (floored) and nothing else.
func Compute(mission catalog.MissionTemplate, approach catalog.Approach, outcome resolution.Outcome, coordinatorID string) Grant {
	base := approach.Rewards
	if !outcome.Success {
		return Grant{
			TimelinePoints: base.TimelinePoints * FailurePercent / 100,
			Experience:     base.Experience * FailurePercent / 100,
		}
	}
	multiplier := outcome.RewardMultiplier
	if multiplier <= 0 {
		multiplier = base.Multiplier()
	}
	grant := Grant{
		Success:        true,
		TimelinePoints: int64(math.Round(float64(base.TimelinePoints) * multiplier)),
		Experience:     int64(math.Round(float64(base.Experience) * multiplier)),
		LoreFragments:  append([]string(nil), mission.LoreFragments...),
		TimelineShift:  outcome.TimelineShift,
	}
	if coordinatorID != "" {
		grant.AffinityIncrement = 1
	}
	return grant
}
