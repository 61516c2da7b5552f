package benchmark_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/agentbench/sim-engine/internal/benchmark"
	"github.com/agentbench/sim-engine/internal/guard"
	"github.com/agentbench/sim-engine/internal/history"
	"github.com/agentbench/sim-engine/internal/montecarlo"
	"github.com/agentbench/sim-engine/internal/telemetry"
)

// newTestRouter builds a router over an in-memory store with a seeded
// engine so simulation responses are reproducible.
func newTestRouter(t *testing.T) (*chi.Mux, *history.MemoryStore) {
	t.Helper()

	store := history.NewMemoryStore(history.DefaultCapacity)
	tracker := telemetry.NewTracker()
	engine := montecarlo.NewEngine(store, tracker,
		montecarlo.WithSeed(1),
		montecarlo.WithWorkers(2),
	)
	limiter := guard.NewRunLimiter(0, 0, 0) // built-in caps
	svc := benchmark.NewService(store, nil, engine, tracker, limiter, nil, montecarlo.DefaultConfig())

	r := chi.NewRouter()
	r.Route("/api/v1", svc.Routes)
	return r, store
}

func doJSON(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()

	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode response: %v\nbody: %s", err, rec.Body.String())
	}
	return v
}

func seedReturns(t *testing.T, r http.Handler, agentID string, returns []float64) {
	t.Helper()

	trades := make([]map[string]any, len(returns))
	for i, ret := range returns {
		trades[i] = map[string]any{"symbol": "BTC-USD", "action": "buy", "return_pct": ret}
	}
	rec := doJSON(t, r, http.MethodPost, "/api/v1/agents/"+agentID+"/trades/batch",
		map[string]any{"trades": trades})
	if rec.Code != http.StatusCreated {
		t.Fatalf("seed trades: status %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRecordTrade(t *testing.T) {
	router, store := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/claude-trader/trades",
		map[string]any{"symbol": "ETH-USD", "action": "sell", "return_pct": 1.5})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	resp := decodeBody[map[string]any](t, rec)
	if resp["count"].(float64) != 1 {
		t.Errorf("expected count 1, got %v", resp["count"])
	}
	if store.Count("claude-trader") != 1 {
		t.Errorf("store count = %d, want 1", store.Count("claude-trader"))
	}
}

func TestRecordTrade_InvalidAction(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/a1/trades",
		map[string]any{"symbol": "ETH-USD", "action": "yolo", "return_pct": 1.5})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad action, got %d", rec.Code)
	}
}

func TestRecordTrade_InvalidAgentID(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/-bad-/trades",
		map[string]any{"symbol": "ETH-USD", "action": "buy", "return_pct": 1.5})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for bad agent id, got %d", rec.Code)
	}
}

func TestRecordTradeBatch(t *testing.T) {
	router, store := newTestRouter(t)
	seedReturns(t, router, "batch-agent", []float64{1, -2, 3})

	if store.Count("batch-agent") != 3 {
		t.Errorf("store count = %d, want 3", store.Count("batch-agent"))
	}

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/batch-agent/trades/batch",
		map[string]any{"trades": []any{}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty batch, got %d", rec.Code)
	}
}

func TestGetTradeHistoryAndCount(t *testing.T) {
	router, _ := newTestRouter(t)
	seedReturns(t, router, "hist-agent", []float64{0.5, -0.5})

	rec := doJSON(t, router, http.MethodGet, "/api/v1/agents/hist-agent/trades", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	resp := decodeBody[struct {
		AgentID string           `json:"agent_id"`
		Trades  []map[string]any `json:"trades"`
	}](t, rec)
	if len(resp.Trades) != 2 {
		t.Errorf("expected 2 trades, got %d", len(resp.Trades))
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/agents/hist-agent/trades/count", nil)
	count := decodeBody[map[string]any](t, rec)
	if count["count"].(float64) != 2 {
		t.Errorf("expected count 2, got %v", count["count"])
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/agents/unknown/trades", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	empty := decodeBody[struct {
		Trades []map[string]any `json:"trades"`
	}](t, rec)
	if len(empty.Trades) != 0 {
		t.Errorf("unknown agent should have empty history, got %d trades", len(empty.Trades))
	}
}

func TestRunSimulation_NoHistory(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/ghost/simulate", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 without history, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRunSimulation(t *testing.T) {
	router, _ := newTestRouter(t)
	seedReturns(t, router, "sim-agent", []float64{1.2, -0.8, 0.5, 2.1, -1.4})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/sim-agent/simulate",
		map[string]any{"num_simulations": 200, "horizon_days": 10})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	report := decodeBody[montecarlo.Report](t, rec)
	if report.AgentID != "sim-agent" {
		t.Errorf("agent id = %q", report.AgentID)
	}
	if report.Config.NumSimulations != 200 || report.Config.HorizonDays != 10 {
		t.Errorf("config not echoed: %+v", report.Config)
	}
	if report.HistoricalTrades != 5 {
		t.Errorf("historical trades = %d, want 5", report.HistoricalTrades)
	}
	if report.ReportID == "" {
		t.Error("missing report id")
	}
	if report.MeanFinalValue.IsZero() {
		t.Error("mean final value should be positive")
	}
	if p := report.ProbabilityOfProfit; p < 0 || p > 100 {
		t.Errorf("probability of profit out of range: %f", p)
	}
	if len(report.Distribution) == 0 {
		t.Error("missing distribution buckets")
	}
}

func TestRunSimulation_EmptyBodyUsesDefaults(t *testing.T) {
	router, _ := newTestRouter(t)
	seedReturns(t, router, "def-agent", []float64{0.1})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/agents/def-agent/simulate", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	report := decodeBody[montecarlo.Report](t, rec)
	if report.Config.NumSimulations != montecarlo.DefaultNumSimulations {
		t.Errorf("expected default %d simulations, got %d",
			montecarlo.DefaultNumSimulations, report.Config.NumSimulations)
	}
	if report.Config.HorizonDays != montecarlo.DefaultHorizonDays {
		t.Errorf("expected default horizon, got %d", report.Config.HorizonDays)
	}
}

func TestRunSimulation_InvalidConfig(t *testing.T) {
	router, _ := newTestRouter(t)
	seedReturns(t, router, "inv-agent", []float64{1})

	cases := []map[string]any{
		{"num_simulations": 0},
		{"initial_capital": -100},
		{"confidence_level": 1.5},
		{"horizon_days": -1},
	}
	for i, body := range cases {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/inv-agent/simulate", body)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("case %d: expected 400, got %d: %s", i, rec.Code, rec.Body.String())
		}
	}
}

func TestRunSimulation_GuardRejects(t *testing.T) {
	router, _ := newTestRouter(t)
	seedReturns(t, router, "big-agent", []float64{1})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/big-agent/simulate",
		map[string]any{"num_simulations": 50000})
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 over simulation cap, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestRunComparative(t *testing.T) {
	router, _ := newTestRouter(t)
	// alpha strictly dominates beta: every path compounds faster.
	seedReturns(t, router, "alpha", []float64{2, 2, 2})
	seedReturns(t, router, "beta", []float64{1, 1, 1})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/simulate/compare", map[string]any{
		"agent_ids":       []string{"alpha", "beta"},
		"num_simulations": 100,
		"horizon_days":    10,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	report := decodeBody[montecarlo.ComparativeReport](t, rec)
	if len(report.Agents) != 2 {
		t.Fatalf("expected 2 standings, got %d", len(report.Agents))
	}
	if report.Agents[0].AgentID != "alpha" || report.Agents[0].Rank != 1 {
		t.Errorf("alpha should rank first, got %+v", report.Agents[0])
	}

	totalWins := 0
	for _, a := range report.Agents {
		totalWins += a.WinCount
		if a.Report == nil {
			t.Errorf("agent %s missing embedded report", a.AgentID)
		}
	}
	if totalWins != 100 {
		t.Errorf("win counts should sum to path count, got %d", totalWins)
	}
	if report.Agents[0].ProbabilityOfWinning != 100 {
		t.Errorf("dominant agent should win every path, got %f", report.Agents[0].ProbabilityOfWinning)
	}
	if report.Summary == "" {
		t.Error("missing summary")
	}
}

func TestRunComparative_DefaultRoster(t *testing.T) {
	router, _ := newTestRouter(t)
	seedReturns(t, router, "r1", []float64{1})
	seedReturns(t, router, "r2", []float64{-1})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/simulate/compare",
		map[string]any{"num_simulations": 50, "horizon_days": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}

	report := decodeBody[montecarlo.ComparativeReport](t, rec)
	if len(report.Agents) != 2 {
		t.Errorf("empty roster should compare all recorded agents, got %d", len(report.Agents))
	}
}

func TestRunComparative_BadRosterID(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/simulate/compare",
		map[string]any{"agent_ids": []string{"ok", "has space"}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for invalid roster id, got %d", rec.Code)
	}
}

func TestGetSimulationMetrics(t *testing.T) {
	router, _ := newTestRouter(t)
	seedReturns(t, router, "m-agent", []float64{0.3, -0.1})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/m-agent/simulate",
		map[string]any{"num_simulations": 100, "horizon_days": 5})
	if rec.Code != http.StatusOK {
		t.Fatalf("simulate: status %d", rec.Code)
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/simulations/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	snap := decodeBody[telemetry.Snapshot](t, rec)
	if snap.TotalPathsExecuted != 100 {
		t.Errorf("paths = %d, want 100", snap.TotalPathsExecuted)
	}
	if snap.TotalReportsGenerated != 1 {
		t.Errorf("reports = %d, want 1", snap.TotalReportsGenerated)
	}
	if snap.AgentsTracked != 1 || snap.TotalHistoricalTrades != 2 {
		t.Errorf("store counts wrong: %+v", snap)
	}
	if snap.LastRunAt == nil {
		t.Error("missing last-run timestamp")
	}
}

func TestAdminReset(t *testing.T) {
	router, store := newTestRouter(t)
	seedReturns(t, router, "reset-agent", []float64{1, 2})

	rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if store.TotalTrades() != 0 {
		t.Errorf("store should be empty after reset, has %d trades", store.TotalTrades())
	}

	rec = doJSON(t, router, http.MethodGet, "/api/v1/simulations/metrics", nil)
	snap := decodeBody[telemetry.Snapshot](t, rec)
	if snap.TotalReportsGenerated != 0 || snap.AgentsTracked != 0 {
		t.Errorf("telemetry should be cleared after reset: %+v", snap)
	}
}

func TestSimulationReproducible(t *testing.T) {
	run := func() montecarlo.Report {
		router, _ := newTestRouter(t)
		seedReturns(t, router, "repro", []float64{1.5, -0.7, 0.2})
		rec := doJSON(t, router, http.MethodPost, "/api/v1/agents/repro/simulate",
			map[string]any{"num_simulations": 100, "horizon_days": 10})
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
		}
		return decodeBody[montecarlo.Report](t, rec)
	}

	first, second := run(), run()
	if !first.MeanFinalValue.Equal(second.MeanFinalValue) {
		t.Errorf("seeded runs should match: %s vs %s",
			first.MeanFinalValue, second.MeanFinalValue)
	}
	if fmt.Sprintf("%v", first.Percentiles) != fmt.Sprintf("%v", second.Percentiles) {
		t.Errorf("percentile ladders differ:\n%v\n%v", first.Percentiles, second.Percentiles)
	}
}
