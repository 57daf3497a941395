// Package affinity computes the coordinator affinity bonus earned by agents
// through successful missions.
package affinity

import "time"

const (
	// BonusPerSuccess is the success-rate bonus granted per successful mission.
	BonusPerSuccess = 0.02
	// MaxBonus caps the affinity bonus.
	MaxBonus = 0.10

	bonusStepBasisPoints = 200
	maxBonusBasisPoints  = 1000
)

// Record is the per-(agent, coordinator) affinity counter.
type Record struct {
	AgentID            string
	CoordinatorID      string
	SuccessfulMissions int
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Bonus returns the bonus earned by the record.
func (r Record) Bonus() float64 {
	return Bonus(r.SuccessfulMissions)
}

// Bonus returns min(successes × 0.02, 0.10). Computed in basis points so that
// equal counts always yield bit-identical rates.
func Bonus(successes int) float64 {
	if successes <= 0 {
		return 0
	}
	if successes >= maxBonusBasisPoints/bonusStepBasisPoints {
		return MaxBonus
	}
	return float64(successes*bonusStepBasisPoints) / 10000
}
