// Package resolution decides mission outcomes.
//
// An outcome is resolved exactly once, at deploy time, from a single seeded
// random stream. Values are drawn in a fixed order (base rate, roll, timeline
// shift) so the same Input always produces the same Outcome and a stored
// Outcome can be replayed and verified later.
package resolution

import (
	"errors"
	"fmt"
	"math"
	"math/rand"

	"github.com/project-89/89-sub004/internal/services/missions/domain/catalog"
)

const (
	// MaxSuccessRate caps the adjusted success rate so no deployment is certain.
	MaxSuccessRate = 0.99
	// MaxAffinityBonus caps the coordinator affinity contribution.
	MaxAffinityBonus = 0.10
)

var (
	// ErrInvalidRate indicates an approach success range outside [0,1].
	ErrInvalidRate = errors.New("success rate range must be ordered inside [0,1]")
	// ErrInvalidShift indicates a reversed, negative, or oversized timeline shift range.
	ErrInvalidShift = errors.New("timeline shift range must be ordered inside [0,MaxTimelineShift]")
	// ErrReplayMismatch indicates a stored outcome that does not replay.
	ErrReplayMismatch = errors.New("outcome does not replay from its seed")
)

// Input holds everything the resolution depends on.
type Input struct {
	Approach           catalog.Approach
	Compatibility      catalog.Compatibility
	Proxim8Type        string
	AffinityBonus      float64
	TemporalAdjustment float64
	Seed               int64
}

// Outcome is the recorded result of a resolution, including every draw.
type Outcome struct {
	Seed                    int64   `json:"seed"`
	BaseRate                float64 `json:"baseRate"`
	CompatibilityAdjustment float64 `json:"compatibilityAdjustment"`
	AffinityBonus           float64 `json:"affinityBonus"`
	TemporalAdjustment      float64 `json:"temporalAdjustment"`
	AdjustedRate            float64 `json:"adjustedRate"`
	Roll                    float64 `json:"roll"`
	Success                 bool    `json:"success"`
	RewardMultiplier        float64 `json:"rewardMultiplier"`
	TimelineShift           int64   `json:"timelineShift"`
}

// Resolve draws the outcome for in.
func Resolve(in Input) (Outcome, error) {
	rate := in.Approach.SuccessRate
	if math.IsNaN(rate.Min) || math.IsNaN(rate.Max) || rate.Min < 0 || rate.Max > 1 || rate.Min > rate.Max {
		return Outcome{}, fmt.Errorf("%w: [%v,%v]", ErrInvalidRate, rate.Min, rate.Max)
	}
	shift := in.Approach.TimelineShift
	if shift.Min < 0 || shift.Min > shift.Max || shift.Max > catalog.MaxTimelineShift {
		return Outcome{}, fmt.Errorf("%w: [%d,%d]", ErrInvalidShift, shift.Min, shift.Max)
	}

	rng := rand.New(rand.NewSource(in.Seed))
	baseRate := rate.Min + rng.Float64()*(rate.Max-rate.Min)
	roll := rng.Float64()
	drawnShift := shift.Min + rng.Int63n(shift.Max-shift.Min+1)

	compatibility := in.Compatibility.Adjustment(in.Proxim8Type)
	affinityBonus := clamp(in.AffinityBonus, 0, MaxAffinityBonus)
	temporal := clamp(in.TemporalAdjustment, -catalog.MaxTemporalAdjustment, catalog.MaxTemporalAdjustment)
	adjusted := AdjustRate(baseRate, compatibility, affinityBonus, temporal)
	success := Succeeds(roll, adjusted)

	outcome := Outcome{
		Seed:                    in.Seed,
		BaseRate:                baseRate,
		CompatibilityAdjustment: compatibility,
		AffinityBonus:           affinityBonus,
		TemporalAdjustment:      temporal,
		AdjustedRate:            adjusted,
		Roll:                    roll,
		Success:                 success,
		RewardMultiplier:        in.Approach.Rewards.Multiplier(),
	}
	if success {
		outcome.TimelineShift = drawnShift
	}
	return outcome, nil
}

// AdjustRate applies the modifiers to baseRate and clamps the sum to
// [0, MaxSuccessRate].
func AdjustRate(baseRate, compatibility, affinityBonus, temporal float64) float64 {
	return clamp(baseRate+compatibility+affinityBonus+temporal, 0, MaxSuccessRate)
}

// Succeeds reports whether roll beats the adjusted rate.
func Succeeds(roll, adjustedRate float64) bool {
	return roll < adjustedRate
}

// Verify checks the outcome's internal consistency: the adjusted rate is in
// range and the recorded success matches roll < adjustedRate.
func (o Outcome) Verify() error {
	if o.AdjustedRate < 0 || o.AdjustedRate > MaxSuccessRate {
		return fmt.Errorf("%w: adjusted rate %v out of range", ErrReplayMismatch, o.AdjustedRate)
	}
	if Succeeds(o.Roll, o.AdjustedRate) != o.Success {
		return fmt.Errorf("%w: roll %v against %v recorded success=%v", ErrReplayMismatch, o.Roll, o.AdjustedRate, o.Success)
	}
	if !o.Success && o.TimelineShift != 0 {
		return fmt.Errorf("%w: failed outcome carries timeline shift %d", ErrReplayMismatch, o.TimelineShift)
	}
	return nil
}

// Replay re-resolves in and reports whether it reproduces o exactly.
func Replay(in Input, o Outcome) error {
	replayed, err := Resolve(in)
	if err != nil {
		return err
	}
	if replayed != o {
		return fmt.Errorf("%w: seed %d", ErrReplayMismatch, in.Seed)
	}
	return nil
}

func clamp(value, lower, upper float64) float64 {
	if math.IsNaN(value) {
		return lower
	}
	return math.Max(lower, math.Min(upper, value))
}
