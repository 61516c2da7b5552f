// Package montecarlo implements the Monte Carlo backtester at the heart of
// the agent benchmark: bootstrap resampling of an agent's empirical return
// history, geometric compounding over a configurable horizon, and the risk
// statistics derived from the simulated outcome distribution (percentiles,
// VaR, CVaR, drawdown, Sharpe) plus a multi-agent comparative ranking.
//
// All simulation internals are float64. Monetary summary fields on reports
// use shopspring/decimal — never float64 for money presented to callers.
//
// Randomness is injected: every path receives a *rand.Rand owned by its
// worker, so seeded runs are reproducible and nothing here touches global
// PRNG state.
package montecarlo

import (
	"math"
	"math/rand"
)

// SimulationResult captures one simulated equity path. Produced once per
// path and never mutated afterwards.
type SimulationResult struct {
	FinalValue     float64 `json:"final_value"`
	TotalReturnPct float64 `json:"total_return_pct"`
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	SharpeRatio    float64 `json:"sharpe_ratio"`
	WinRate        float64 `json:"win_rate"`
	BestDayPct     float64 `json:"best_day_pct"`
	WorstDayPct    float64 `json:"worst_day_pct"`
}

// simulatePath executes a single simulation path: for each day of the
// horizon it draws one return from the empirical distribution (with
// replacement — the same observation may be reused any number of times, and
// the horizon is independent of the history length), compounds equity
// geometrically, and tracks drawdown against the running peak.
//
// returns must be non-empty; a single-element slice is legal and yields a
// degenerate distribution where every day replays that one observation.
// A zero-day horizon yields the initial capital with all metrics zero.
func simulatePath(returns []float64, cfg Config, rng *rand.Rand) SimulationResult {
	equity := cfg.InitialCapital
	peak := equity
	maxDrawdown := 0.0
	bestDay := 0.0
	worstDay := 0.0
	winningDays := 0

	daily := make([]float64, 0, cfg.HorizonDays)

	for day := 0; day < cfg.HorizonDays; day++ {
		r := returns[rng.Intn(len(returns))]
		daily = append(daily, r)

		equity *= 1 + r/100
		if equity < 0 {
			equity = 0 // no negative equity
		}

		if day == 0 {
			bestDay, worstDay = r, r
		} else {
			if r > bestDay {
				bestDay = r
			}
			if r < worstDay {
				worstDay = r
			}
		}
		if r > 0 {
			winningDays++
		}

		if equity > peak {
			peak = equity
		} else if peak > 0 {
			dd := (peak - equity) / peak * 100
			if dd > maxDrawdown {
				maxDrawdown = dd
			}
		}
	}

	res := SimulationResult{
		FinalValue:     equity,
		TotalReturnPct: (equity - cfg.InitialCapital) / cfg.InitialCapital * 100,
		MaxDrawdownPct: maxDrawdown,
		SharpeRatio:    sharpeRatio(daily),
		BestDayPct:     bestDay,
		WorstDayPct:    worstDay,
	}
	if cfg.HorizonDays > 0 {
		res.WinRate = float64(winningDays) / float64(cfg.HorizonDays) * 100
	}
	return res
}

// sharpeRatio computes the annualized Sharpe ratio of one path from its own
// daily return series (percentage points). Fewer than two observations, or
// a zero-variance series, yield 0 rather than NaN.
func sharpeRatio(dailyReturns []float64) float64 {
	n := len(dailyReturns)
	if n < 2 {
		return 0
	}

	mean := meanOf(dailyReturns)
	stddev := sampleStddev(dailyReturns, mean)
	if stddev == 0 {
		return 0
	}

	// Daily risk-free rate in percentage points, same units as the series.
	dailyRfr := AnnualRiskFreeRate / TradingDaysPerYear * 100
	return (mean - dailyRfr) / stddev * math.Sqrt(TradingDaysPerYear)
}

func meanOf(xs []float64) float64 {
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStddev uses the n−1 denominator. Callers guarantee len(xs) >= 2.
func sampleStddev(xs []float64, mean float64) float64 {
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1))
}
