package montecarlo

import (
	"context"
	crand "crypto/rand"
	"encoding/binary"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/agentbench/sim-engine/internal/telemetry"
)

// sharpeSamplePaths bounds the number of paths averaged for the comparative
// mean Sharpe. A reduced-sample approximation, not the population Sharpe of
// the full batch.
const sharpeSamplePaths = 100

// HistoryProvider is the read side of the trade history store consumed by
// the engine. Implementations must return snapshot copies so a batch sees a
// consistent view of the distribution for its whole duration.
type HistoryProvider interface {
	// Returns gives the agent's return series (percentage points), or an
	// empty slice for an unknown agent.
	Returns(agentID string) []float64

	// Count reports the number of stored trades, 0 if the agent is unknown.
	Count(agentID string) int
}

// AgentStanding is one agent's row in a comparative ranking.
type AgentStanding struct {
	AgentID              string          `json:"agent_id"`
	Rank                 int             `json:"rank"`
	Report               *Report         `json:"report"`
	MeanFinalValue       decimal.Decimal `json:"mean_final_value"`
	MeanSharpe           float64         `json:"mean_sharpe"`
	WinCount             int             `json:"win_count"`
	ProbabilityOfWinning float64         `json:"probability_of_winning"`
}

// ComparativeReport is the result of a multi-agent run: one report per
// participating agent plus a win-probability ranking. Agents with zero
// history are skipped, never errored.
type ComparativeReport struct {
	ReportID    string          `json:"report_id"`
	Config      Config          `json:"config"`
	Agents      []AgentStanding `json:"agents"`
	Summary     string          `json:"summary"`
	ExecutionMs int64           `json:"execution_ms"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// Engine owns the mutable collaborators of a simulation run: the history
// store it samples from, the telemetry tracker it reports into, and the
// seed source for its PRNGs. Construct one per process (or per test) —
// there is no package-level state.
type Engine struct {
	history HistoryProvider
	tracker *telemetry.Tracker
	workers int
	seedFn  func() int64
}

// Option configures an Engine.
type Option func(*Engine)

// WithSeed pins the base seed so runs are reproducible. Each batch derives
// per-worker sub-seeds from it deterministically.
func WithSeed(seed int64) Option {
	return func(e *Engine) {
		e.seedFn = func() int64 { return seed }
	}
}

// WithWorkers overrides the worker pool size (default GOMAXPROCS).
func WithWorkers(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.workers = n
		}
	}
}

// NewEngine creates an engine over the given history provider. The tracker
// may be nil if telemetry is not wanted. The default seed source reads
// crypto/rand, falling back to the wall clock if the read fails.
func NewEngine(history HistoryProvider, tracker *telemetry.Tracker, opts ...Option) *Engine {
	e := &Engine{
		history: history,
		tracker: tracker,
		workers: runtime.GOMAXPROCS(0),
		seedFn:  secureSeed,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// RunSimulation executes a full Monte Carlo run for one agent and
// aggregates the batch into a report. Fails with ErrNoHistory before any
// sampling if the agent has no recorded trades.
func (e *Engine) RunSimulation(ctx context.Context, agentID string, cfg Config) (*Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	returns := e.history.Returns(agentID)
	if len(returns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoHistory, agentID)
	}

	start := time.Now()
	results, err := e.runBatch(ctx, returns, cfg, e.seedFn())
	if err != nil {
		return nil, err
	}
	simDur := time.Since(start)

	report := aggregate(agentID, results, cfg, e.history.Count(agentID))
	report.ReportID = uuid.New().String()
	report.ExecutionMs = time.Since(start).Milliseconds()

	if e.tracker != nil {
		e.tracker.ObserveRun(cfg.NumSimulations, time.Since(start), simDur)
	}
	return report, nil
}

// RunComparative runs the per-agent simulation for every agent on the
// roster that has at least one recorded trade, then derives win
// probabilities from the index-aligned final values of those same batches.
// Each agent's batch runs exactly once; the raw final-value array is
// retained alongside the aggregated report rather than re-simulated.
//
// Win probability: for each simulation index, the participating agent with
// the maximum final value takes the win; ties break to the first agent
// encountered, a defined deterministic tie-break. An empty roster (or one
// where no agent has history) yields an empty report with an explanatory
// summary, not an error.
func (e *Engine) RunComparative(ctx context.Context, agentIDs []string, cfg Config) (*ComparativeReport, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	baseSeed := e.seedFn()

	type agentBatch struct {
		standing AgentStanding
		finals   []float64
	}

	var batches []*agentBatch
	var simTime time.Duration

	for i, agentID := range agentIDs {
		// Long comparative runs honor cancellation between agent batches.
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		returns := e.history.Returns(agentID)
		if len(returns) == 0 {
			continue // zero-history agents are silently skipped
		}

		batchStart := time.Now()
		results, err := e.runBatch(ctx, returns, cfg, baseSeed+int64(i))
		if err != nil {
			return nil, err
		}
		simTime += time.Since(batchStart)

		report := aggregate(agentID, results, cfg, e.history.Count(agentID))
		report.ReportID = uuid.New().String()

		finals := make([]float64, len(results))
		for j, r := range results {
			finals[j] = r.FinalValue
		}

		batches = append(batches, &agentBatch{
			standing: AgentStanding{
				AgentID:        agentID,
				Report:         report,
				MeanFinalValue: money(meanOf(finals)),
				MeanSharpe:     meanSharpe(results),
			},
			finals: finals,
		})
	}

	comparative := &ComparativeReport{
		ReportID:    uuid.New().String(),
		Config:      cfg,
		GeneratedAt: time.Now().UTC(),
	}

	if len(batches) == 0 {
		comparative.Summary = "no participating agents: every agent on the roster has an empty trade history"
		comparative.Agents = []AgentStanding{}
		comparative.ExecutionMs = time.Since(start).Milliseconds()
		return comparative, nil
	}

	// Index-aligned win counts across participating agents only.
	for i := 0; i < cfg.NumSimulations; i++ {
		winner := 0
		for j := 1; j < len(batches); j++ {
			if batches[j].finals[i] > batches[winner].finals[i] {
				winner = j
			}
		}
		batches[winner].standing.WinCount++
	}
	for _, b := range batches {
		b.standing.ProbabilityOfWinning = float64(b.standing.WinCount) / float64(cfg.NumSimulations) * 100
	}

	// Rank descending by mean final value, 1-based. Stable so equal means
	// keep roster order.
	sort.SliceStable(batches, func(i, j int) bool {
		return batches[i].standing.MeanFinalValue.GreaterThan(batches[j].standing.MeanFinalValue)
	})

	comparative.Agents = make([]AgentStanding, len(batches))
	for i, b := range batches {
		b.standing.Rank = i + 1
		comparative.Agents[i] = b.standing
	}

	lead := comparative.Agents[0]
	comparative.Summary = fmt.Sprintf(
		"%s leads %d participating agents with mean final value %s and a %.1f%% win probability over %d simulations",
		lead.AgentID, len(batches), lead.MeanFinalValue.StringFixed(2),
		lead.ProbabilityOfWinning, cfg.NumSimulations,
	)
	comparative.ExecutionMs = time.Since(start).Milliseconds()

	if e.tracker != nil {
		totalPaths := cfg.NumSimulations * len(batches)
		e.tracker.ObserveRun(totalPaths, time.Since(start), simTime)
	}
	return comparative, nil
}

// runBatch fans the requested paths out over the worker pool. Each worker
// owns a contiguous index range and a PRNG seeded deterministically from the
// batch seed, so a seeded batch is reproducible regardless of scheduling.
// The returned slice is complete — the join is the synchronization barrier
// required before any rank-based statistic is computed.
func (e *Engine) runBatch(ctx context.Context, returns []float64, cfg Config, seed int64) ([]SimulationResult, error) {
	n := cfg.NumSimulations
	results := make([]SimulationResult, n)

	workers := e.workers
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (n + workers - 1) / workers

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		startIdx := w * chunk
		endIdx := startIdx + chunk
		if endIdx > n {
			endIdx = n
		}
		if startIdx >= endIdx {
			break
		}

		wg.Add(1)
		go func(w, startIdx, endIdx int) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed + int64(w)))
			for i := startIdx; i < endIdx; i++ {
				select {
				case <-ctx.Done():
					return
				default:
				}
				results[i] = simulatePath(returns, cfg, rng)
			}
		}(w, startIdx, endIdx)
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// meanSharpe averages the per-path Sharpe over a reduced sample of the
// batch (first min(100, n) paths), trading exactness for speed in
// comparative rankings.
func meanSharpe(results []SimulationResult) float64 {
	n := len(results)
	if n > sharpeSamplePaths {
		n = sharpeSamplePaths
	}
	if n == 0 {
		return 0
	}
	sum := 0.0
	for _, r := range results[:n] {
		sum += r.SharpeRatio
	}
	return sum / float64(n)
}

// secureSeed draws a seed from crypto/rand; production runs should not be
// predictable. The wall clock is the fallback if the read fails.
func secureSeed() int64 {
	var b [8]byte
	if _, err := crand.Read(b[:]); err != nil {
		return time.Now().UnixNano()
	}
	return int64(binary.LittleEndian.Uint64(b[:]))
}
