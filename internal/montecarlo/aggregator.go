package montecarlo

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// histogramBuckets is the number of equal-width bins spanning the final
// value range of a batch.
const histogramBuckets = 20

// DistributionBucket is one bin of the final-value histogram.
type DistributionBucket struct {
	RangeMin   float64 `json:"range_min"`
	RangeMax   float64 `json:"range_max"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// PercentileLadder holds the final-value percentile summary of a batch.
// Monetary values, so decimal.
type PercentileLadder struct {
	P5  decimal.Decimal `json:"p5"`
	P25 decimal.Decimal `json:"p25"`
	P50 decimal.Decimal `json:"p50"`
	P75 decimal.Decimal `json:"p75"`
	P95 decimal.Decimal `json:"p95"`
}

// Report aggregates one agent's simulation batch. Produced fresh per call
// and never cached.
type Report struct {
	ReportID         string `json:"report_id"`
	AgentID          string `json:"agent_id"`
	Config           Config `json:"config"`
	HistoricalTrades int    `json:"historical_trades"`

	MeanFinalValue   decimal.Decimal  `json:"mean_final_value"`
	MedianFinalValue decimal.Decimal  `json:"median_final_value"`
	StdDevFinalValue decimal.Decimal  `json:"stddev_final_value"`
	Percentiles      PercentileLadder `json:"percentiles"`

	ProbabilityOfProfit      float64 `json:"probability_of_profit"`
	ProbabilityOfLosing10Pct float64 `json:"probability_of_losing_10pct"`
	ProbabilityOfDoubling    float64 `json:"probability_of_doubling"`

	ValueAtRisk    decimal.Decimal `json:"value_at_risk"`
	ConditionalVaR decimal.Decimal `json:"conditional_var"`

	BestPath     SimulationResult     `json:"best_path"`
	WorstPath    SimulationResult     `json:"worst_path"`
	Distribution []DistributionBucket `json:"distribution"`

	ExecutionMs int64     `json:"execution_ms"`
	GeneratedAt time.Time `json:"generated_at"`
}

// aggregate computes a Report from a completed batch. Callers guarantee
// results is non-empty (a run requires at least one simulation).
//
// Final values are sorted ascending exactly once; every rank-based
// statistic (percentiles, VaR, CVaR, histogram) reuses that sorted slice.
func aggregate(agentID string, results []SimulationResult, cfg Config, historicalTrades int) *Report {
	n := len(results)

	sorted := make([]float64, n)
	for i, r := range results {
		sorted[i] = r.FinalValue
	}
	sort.Float64s(sorted)

	mean := meanOf(sorted)
	stddev := 0.0
	if n >= 2 {
		stddev = sampleStddev(sorted, mean)
	}

	profitable, losing10, doubling := 0, 0, 0
	lossFloor := cfg.InitialCapital * 0.90
	doubleBar := cfg.InitialCapital * 2
	for _, v := range sorted {
		if v > cfg.InitialCapital {
			profitable++
		}
		if v < lossFloor {
			losing10++
		}
		if v >= doubleBar {
			doubling++
		}
	}

	valueAtRisk, conditionalVaR := tailRisk(sorted, cfg)

	best, worst := 0, 0
	for i, r := range results {
		if r.TotalReturnPct > results[best].TotalReturnPct {
			best = i
		}
		if r.TotalReturnPct < results[worst].TotalReturnPct {
			worst = i
		}
	}

	return &Report{
		AgentID:          agentID,
		Config:           cfg,
		HistoricalTrades: historicalTrades,
		MeanFinalValue:   money(mean),
		MedianFinalValue: money(percentile(sorted, 0.50)),
		StdDevFinalValue: money(stddev),
		Percentiles: PercentileLadder{
			P5:  money(percentile(sorted, 0.05)),
			P25: money(percentile(sorted, 0.25)),
			P50: money(percentile(sorted, 0.50)),
			P75: money(percentile(sorted, 0.75)),
			P95: money(percentile(sorted, 0.95)),
		},
		ProbabilityOfProfit:      float64(profitable) / float64(n) * 100,
		ProbabilityOfLosing10Pct: float64(losing10) / float64(n) * 100,
		ProbabilityOfDoubling:    float64(doubling) / float64(n) * 100,
		ValueAtRisk:              money(valueAtRisk),
		ConditionalVaR:           money(conditionalVaR),
		BestPath:                 results[best],
		WorstPath:                results[worst],
		Distribution:             histogram(sorted),
		GeneratedAt:              time.Now().UTC(),
	}
}

// percentile computes the p-th percentile (p in [0,1]) of an ascending
// slice using the exclusive (R-6) method: rank = p*(n+1) − 1 with linear
// interpolation, clamped to the slice bounds. A single-element slice
// returns that element for every p.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	rank := p*float64(n+1) - 1
	if rank <= 0 {
		return sorted[0]
	}
	if rank >= float64(n-1) {
		return sorted[n-1]
	}
	lower := int(math.Floor(rank))
	frac := rank - float64(lower)
	return sorted[lower] + frac*(sorted[lower+1]-sorted[lower])
}

// tailRisk computes VaR and CVaR at the configured confidence level.
//
// The VaR index is floor(n * (1−confidence)); losses are measured against
// the initial capital and floored at zero (a profitable tail is not a
// negative loss). CVaR averages the losses over sorted[0:max(1, varIndex)]
// — the minimum tail size of one keeps CVaR defined when varIndex is 0.
func tailRisk(sorted []float64, cfg Config) (valueAtRisk, conditionalVaR float64) {
	n := len(sorted)
	varIndex := int(float64(n) * (1 - cfg.ConfidenceLevel))
	if varIndex > n-1 {
		varIndex = n - 1
	}

	valueAtRisk = cfg.InitialCapital - sorted[varIndex]
	if valueAtRisk < 0 {
		valueAtRisk = 0
	}

	tail := varIndex
	if tail < 1 {
		tail = 1
	}
	var sum float64
	for _, v := range sorted[:tail] {
		loss := cfg.InitialCapital - v
		if loss < 0 {
			loss = 0
		}
		sum += loss
	}
	conditionalVaR = sum / float64(tail)
	return valueAtRisk, conditionalVaR
}

// histogram bins the sorted final values into equal-width buckets. A
// zero-variance batch collapses to a single bucket holding 100% of mass.
func histogram(sorted []float64) []DistributionBucket {
	n := len(sorted)
	min, max := sorted[0], sorted[n-1]

	if min == max {
		return []DistributionBucket{{
			RangeMin:   min,
			RangeMax:   max,
			Count:      n,
			Percentage: 100,
		}}
	}

	width := (max - min) / histogramBuckets
	buckets := make([]DistributionBucket, histogramBuckets)
	for i := range buckets {
		buckets[i].RangeMin = min + float64(i)*width
		buckets[i].RangeMax = min + float64(i+1)*width
	}

	for _, v := range sorted {
		idx := int((v - min) / width)
		if idx >= histogramBuckets {
			idx = histogramBuckets - 1 // clamp the max value into the last bucket
		}
		buckets[idx].Count++
	}
	for i := range buckets {
		buckets[i].Percentage = float64(buckets[i].Count) / float64(n) * 100
	}
	return buckets
}

// money converts a float at the result boundary into a decimal rounded to
// cents. Internal math stays float64; reports present decimal.
func money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(2)
}
