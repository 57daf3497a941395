package affinity

import "testing"

func TestBonus(t *testing.T) {
	tests := []struct {
		successes int
		want      float64
	}{
		{successes: -1, want: 0},
		{successes: 0, want: 0},
		{successes: 1, want: 0.02},
		{successes: 3, want: 0.06},
		{successes: 5, want: 0.10},
		{successes: 6, want: 0.10},
		{successes: 1000, want: 0.10},
	}
	for _, tt := range tests {
		if got := Bonus(tt.successes); got != tt.want {
			t.Fatalf("Bonus(%d) = %v, want %v", tt.successes, got, tt.want)
		}
	}
}

func TestBonusMonotoneAndCapped(t *testing.T) {
	previous := 0.0
	for successes := 0; successes <= 100; successes++ {
		bonus := Bonus(successes)
		if bonus < previous {
			t.Fatalf("Bonus(%d) = %v decreased from %v", successes, bonus, previous)
		}
		if bonus > MaxBonus {
			t.Fatalf("Bonus(%d) = %v exceeds cap", successes, bonus)
		}
		previous = bonus
	}
}

func TestRecordBonus(t *testing.T) {
	record := Record{AgentID: "agent", CoordinatorID: "oracle", SuccessfulMissions: 2}
	if got := record.Bonus(); got != 0.04 {
		t.Fatalf("Record.Bonus() = %v, want 0.04", got)
	}
}
