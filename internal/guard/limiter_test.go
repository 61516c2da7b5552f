package guard

import (
	"errors"
	"testing"
)

func TestNewRunLimiter_Defaults(t *testing.T) {
	l := NewRunLimiter(0, -1, 0)
	if l.MaxSimulations != DefaultMaxSimulations ||
		l.MaxHorizonDays != DefaultMaxHorizonDays ||
		l.MaxWorkUnits != DefaultMaxWorkUnits {
		t.Errorf("non-positive caps should fall back to defaults, got %+v", l)
	}
}

func TestCheck(t *testing.T) {
	l := NewRunLimiter(1000, 365, 100_000)

	tests := []struct {
		name    string
		sims    int
		horizon int
		roster  int
		want    error
	}{
		{"within caps", 100, 30, 1, nil},
		{"at caps", 1000, 100, 1, nil},
		{"too many simulations", 1001, 30, 1, ErrTooManySimulations},
		{"horizon too long", 100, 366, 1, ErrHorizonTooLong},
		{"work budget single run", 1000, 365, 1, ErrWorkBudgetExceeded},
		{"work budget scaled by roster", 500, 60, 4, ErrWorkBudgetExceeded},
		{"roster within budget", 500, 60, 3, nil},
		{"zero roster treated as one", 100, 30, 0, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Check(tt.sims, tt.horizon, tt.roster)
			if !errors.Is(err, tt.want) {
				t.Errorf("Check(%d, %d, %d) = %v, want %v", tt.sims, tt.horizon, tt.roster, err, tt.want)
			}
		})
	}
}
