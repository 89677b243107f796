package tokenest

import (
	"strings"
	"testing"
)

func TestEstimateRoundsUp(t *testing.T) {
	cases := []struct {
		chars int
		want  int
	}{
		{0, 0},
		{1, 1},
		{4, 1},
		{5, 2},
		{8, 2},
		{45000, 11250},
	}
	for _, c := range cases {
		if got := EstimateChars(c.chars); got != c.want {
			t.Fatalf("EstimateChars(%d) = %d, want %d", c.chars, got, c.want)
		}
	}
}

func TestEstimateMatchesEstimateChars(t *testing.T) {
	s := strings.Repeat("a", 123)
	if Estimate(s) != EstimateChars(123) {
		t.Fatalf("Estimate and EstimateChars disagree for len=123")
	}
}

func TestCharBudget(t *testing.T) {
	if got := CharBudget(5000); got != 20000 {
		t.Fatalf("CharBudget(5000) = %d, want 20000", got)
	}
	if got := CharBudget(-1); got != 0 {
		t.Fatalf("CharBudget(-1) = %d, want 0", got)
	}
}
