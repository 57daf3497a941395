package catalog

import (
	"fmt"
	"strings"
)

// MaxTemporalAdjustment bounds the absolute coordinator era adjustment.
const MaxTemporalAdjustment = 0.10

// EraModifier adjusts success odds for missions set inside a year range.
type EraModifier struct {
	FromYear   int     `json:"fromYear"`
	ToYear     int     `json:"toYear"`
	Adjustment float64 `json:"adjustment"`
}

// Contains reports whether year falls inside the modifier range.
func (m EraModifier) Contains(year int) bool {
	return year >= m.FromYear && year <= m.ToYear
}

// Coordinator is an AI handler an agent can assign to a deployment.
type Coordinator struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Specialty    string        `json:"specialty,omitempty"`
	EraModifiers []EraModifier `json:"eraModifiers,omitempty"`
}

// TemporalAdjustment sums the modifiers matching era and clamps the total to
// ±MaxTemporalAdjustment. A zero era carries no temporal context.
func (c Coordinator) TemporalAdjustment(era int) float64 {
	if era == 0 {
		return 0
	}
	total := 0.0
	for _, modifier := range c.EraModifiers {
		if modifier.Contains(era) {
			total += modifier.Adjustment
		}
	}
	switch {
	case total > MaxTemporalAdjustment:
		return MaxTemporalAdjustment
	case total < -MaxTemporalAdjustment:
		return -MaxTemporalAdjustment
	default:
		return total
	}
}

// Validate checks coordinator fields.
func (c Coordinator) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return invalid("coordinator id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return invalid("coordinator %s: name is required", c.ID)
	}
	for i, modifier := range c.EraModifiers {
		if modifier.FromYear > modifier.ToYear {
			return invalid("coordinator %s: era modifier %d range %d-%d is reversed", c.ID, i, modifier.FromYear, modifier.ToYear)
		}
		if modifier.Adjustment < -1 || modifier.Adjustment > 1 {
			return invalid("coordinator %s: era modifier %d adjustment %v out of range", c.ID, i, modifier.Adjustment)
		}
	}
	return nil
}

func (c Coordinator) String() string {
	return fmt.Sprintf("%s (%s)", c.Name, c.ID)
}

func (c Coordinator) clone() Coordinator {
	out := c
	out.EraModifiers = append([]EraModifier(nil), c.EraModifiers...)
	return out
}
