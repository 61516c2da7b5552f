// Package guard enforces operational caps on simulation requests before any
// work is admitted. The core itself accepts arbitrarily large runs; the API
// layer bounds the numSimulations × horizonDays product so a single request
// cannot monopolize the process.
package guard

import (
	"errors"
)

var (
	// ErrTooManySimulations is returned when a request exceeds the
	// per-run simulation count cap.
	ErrTooManySimulations = errors.New("guard: num_simulations exceeds the per-run cap")

	// ErrHorizonTooLong is returned when a request exceeds the horizon cap.
	ErrHorizonTooLong = errors.New("guard: horizon_days exceeds the per-run cap")

	// ErrWorkBudgetExceeded is returned when the simulations × horizon
	// product exceeds the work-unit budget even though each factor alone
	// is within bounds.
	ErrWorkBudgetExceeded = errors.New("guard: simulation work budget exceeded")
)

// Default caps. One work unit is one simulated day on one path.
const (
	DefaultMaxSimulations = 10000
	DefaultMaxHorizonDays = 3650
	DefaultMaxWorkUnits   = 10_000_000
)

// RunLimiter caps the size of a single simulation request.
type RunLimiter struct {
	// MaxSimulations is the largest allowed numSimulations per run.
	MaxSimulations int

	// MaxHorizonDays is the largest allowed horizon per run.
	MaxHorizonDays int

	// MaxWorkUnits bounds numSimulations * horizonDays.
	MaxWorkUnits int
}

// NewRunLimiter creates a limiter; non-positive arguments fall back to the
// defaults.
func NewRunLimiter(maxSimulations, maxHorizonDays, maxWorkUnits int) *RunLimiter {
	if maxSimulations <= 0 {
		maxSimulations = DefaultMaxSimulations
	}
	if maxHorizonDays <= 0 {
		maxHorizonDays = DefaultMaxHorizonDays
	}
	if maxWorkUnits <= 0 {
		maxWorkUnits = DefaultMaxWorkUnits
	}
	return &RunLimiter{
		MaxSimulations: maxSimulations,
		MaxHorizonDays: maxHorizonDays,
		MaxWorkUnits:   maxWorkUnits,
	}
}

// Check validates a run request against the caps. rosterSize scales the
// work budget for comparative runs (one batch per participating agent);
// pass 1 for single-agent runs.
func (l *RunLimiter) Check(numSimulations, horizonDays, rosterSize int) error {
	if numSimulations > l.MaxSimulations {
		return ErrTooManySimulations
	}
	if horizonDays > l.MaxHorizonDays {
		return ErrHorizonTooLong
	}
	if rosterSize < 1 {
		rosterSize = 1
	}
	if numSimulations*horizonDays*rosterSize > l.MaxWorkUnits {
		return ErrWorkBudgetExceeded
	}
	return nil
}
