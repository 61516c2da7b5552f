package montecarlo

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSimulations is returned when a config requests zero paths.
	ErrNoSimulations = errors.New("montecarlo: num_simulations must be at least 1")

	// ErrInvalidCapital is returned for a non-positive initial capital.
	ErrInvalidCapital = errors.New("montecarlo: initial_capital must be positive")

	// ErrInvalidConfidence is returned when the confidence level falls
	// outside the open interval (0, 1).
	ErrInvalidConfidence = errors.New("montecarlo: confidence_level must be in (0, 1)")

	// ErrNegativeHorizon is returned for a negative horizon. Zero is legal
	// and yields a degenerate (but well-defined) report.
	ErrNegativeHorizon = errors.New("montecarlo: horizon_days must not be negative")

	// ErrNoHistory is returned when a single-agent run is requested for an
	// agent with no recorded trades. Retrying cannot manufacture history,
	// so callers must surface this rather than retry.
	ErrNoHistory = errors.New("montecarlo: agent has no recorded trade history")
)

// Default simulation parameters, applied field-wise when a caller leaves a
// config value unset.
const (
	DefaultNumSimulations  = 1000
	DefaultHorizonDays     = 30
	DefaultInitialCapital  = 10000.0
	DefaultConfidenceLevel = 0.95
)

// Constants for annualizing the per-path Sharpe ratio.
const (
	AnnualRiskFreeRate = 0.05
	TradingDaysPerYear = 252
)

// Config holds the immutable parameters for one simulation run. A Config is
// passed by value into every run; the engine never mutates it.
type Config struct {
	NumSimulations  int     `json:"num_simulations" yaml:"num_simulations"`
	HorizonDays     int     `json:"horizon_days" yaml:"horizon_days"`
	InitialCapital  float64 `json:"initial_capital" yaml:"initial_capital"`
	ConfidenceLevel float64 `json:"confidence_level" yaml:"confidence_level"`
}

// DefaultConfig returns the standard run parameters:
// 1000 paths, 30 days, 10,000 starting capital, 95% confidence.
func DefaultConfig() Config {
	return Config{
		NumSimulations:  DefaultNumSimulations,
		HorizonDays:     DefaultHorizonDays,
		InitialCapital:  DefaultInitialCapital,
		ConfidenceLevel: DefaultConfidenceLevel,
	}
}

// Validate rejects configurations that cannot produce a meaningful run.
// Validation happens before any simulation work begins.
func (c Config) Validate() error {
	if c.NumSimulations < 1 {
		return fmt.Errorf("%w (got %d)", ErrNoSimulations, c.NumSimulations)
	}
	if c.InitialCapital <= 0 {
		return fmt.Errorf("%w (got %g)", ErrInvalidCapital, c.InitialCapital)
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("%w (got %g)", ErrInvalidConfidence, c.ConfidenceLevel)
	}
	if c.HorizonDays < 0 {
		return fmt.Errorf("%w (got %d)", ErrNegativeHorizon, c.HorizonDays)
	}
	return nil
}
