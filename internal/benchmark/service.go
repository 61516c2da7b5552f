// Package benchmark provides the HTTP handlers for trade ingestion,
// simulation runs, comparative rankings, and operational telemetry.
package benchmark

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/agentbench/sim-engine/internal/agent"
	"github.com/agentbench/sim-engine/internal/guard"
	"github.com/agentbench/sim-engine/internal/history"
	"github.com/agentbench/sim-engine/internal/metrics"
	"github.com/agentbench/sim-engine/internal/model"
	"github.com/agentbench/sim-engine/internal/montecarlo"
	"github.com/agentbench/sim-engine/internal/telemetry"
)

// Service wires the trade history store, the simulation engine, and the
// operational collaborators behind the HTTP surface.
type Service struct {
	store    *history.MemoryStore
	archive  history.Archive // optional durable tier; nil when not configured
	engine   *montecarlo.Engine
	tracker  *telemetry.Tracker
	limiter  *guard.RunLimiter
	wsHub    *WSHub // optional; nil disables broadcasts
	defaults montecarlo.Config
}

// NewService creates the benchmark service. archive and hub may be nil.
func NewService(
	store *history.MemoryStore,
	archive history.Archive,
	engine *montecarlo.Engine,
	tracker *telemetry.Tracker,
	limiter *guard.RunLimiter,
	hub *WSHub,
	defaults montecarlo.Config,
) *Service {
	return &Service{
		store:    store,
		archive:  archive,
		engine:   engine,
		tracker:  tracker,
		limiter:  limiter,
		wsHub:    hub,
		defaults: defaults,
	}
}

// Routes mounts all handlers on the given router under /api/v1.
func (s *Service) Routes(r chi.Router) {
	r.Route("/agents/{agentID}", func(r chi.Router) {
		r.Post("/trades", s.RecordTrade)
		r.Post("/trades/batch", s.RecordTradeBatch)
		r.Get("/trades", s.GetTradeHistory)
		r.Get("/trades/count", s.GetTradeCount)
		r.Post("/simulate", s.RunSimulation)
	})
	r.Post("/simulate/compare", s.RunComparative)
	r.Get("/simulations/metrics", s.GetSimulationMetrics)
	r.Post("/admin/reset", s.Reset)
}

// --- Request/Response types ---

// tradeRequest is the JSON body for single-trade ingestion.
type tradeRequest struct {
	Symbol    string     `json:"symbol"`
	Action    string     `json:"action"`
	ReturnPct float64    `json:"return_pct"`
	Timestamp *time.Time `json:"timestamp,omitempty"`
}

// tradeBatchRequest is the JSON body for batch ingestion.
type tradeBatchRequest struct {
	Trades []tradeRequest `json:"trades"`
}

// configRequest carries a partial simulation config; absent fields fall
// back to the service defaults.
type configRequest struct {
	NumSimulations  *int     `json:"num_simulations,omitempty"`
	HorizonDays     *int     `json:"horizon_days,omitempty"`
	InitialCapital  *float64 `json:"initial_capital,omitempty"`
	ConfidenceLevel *float64 `json:"confidence_level,omitempty"`
}

// compareRequest is the JSON body for comparative runs. An empty roster
// compares every agent with recorded history.
type compareRequest struct {
	AgentIDs []string `json:"agent_ids,omitempty"`
	configRequest
}

// overlay applies the partial request over the service defaults.
func (s *Service) overlay(req configRequest) montecarlo.Config {
	cfg := s.defaults
	if req.NumSimulations != nil {
		cfg.NumSimulations = *req.NumSimulations
	}
	if req.HorizonDays != nil {
		cfg.HorizonDays = *req.HorizonDays
	}
	if req.InitialCapital != nil {
		cfg.InitialCapital = *req.InitialCapital
	}
	if req.ConfidenceLevel != nil {
		cfg.ConfidenceLevel = *req.ConfidenceLevel
	}
	return cfg
}

func (t tradeRequest) toTrade() (model.HistoricalTrade, error) {
	action, err := model.ParseAction(t.Action)
	if err != nil {
		return model.HistoricalTrade{}, err
	}
	ts := time.Now().UTC()
	if t.Timestamp != nil {
		ts = t.Timestamp.UTC()
	}
	return model.HistoricalTrade{
		Symbol:    t.Symbol,
		Action:    action,
		ReturnPct: t.ReturnPct,
		Timestamp: ts,
	}, nil
}

// --- HTTP Handlers ---

// RecordTrade handles POST /api/v1/agents/{agentID}/trades
func (s *Service) RecordTrade(w http.ResponseWriter, r *http.Request) {
	agentID, err := agent.ParseID(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	trade, err := req.toTrade()
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.store.Record(agentID, trade)
	s.archiveTrades(r, agentID, []model.HistoricalTrade{trade})

	metrics.TradesIngested.Inc()
	metrics.TrackedAgents.Set(float64(len(s.store.Agents())))

	writeJSON(w, http.StatusCreated, map[string]any{
		"agent_id": agentID,
		"count":    s.store.Count(agentID),
	})
}

// RecordTradeBatch handles POST /api/v1/agents/{agentID}/trades/batch
func (s *Service) RecordTradeBatch(w http.ResponseWriter, r *http.Request) {
	agentID, err := agent.ParseID(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req tradeBatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Trades) == 0 {
		writeError(w, "trades must not be empty", http.StatusBadRequest)
		return
	}

	trades := make([]model.HistoricalTrade, 0, len(req.Trades))
	for _, tr := range req.Trades {
		trade, err := tr.toTrade()
		if err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
		trades = append(trades, trade)
	}

	s.store.RecordBatch(agentID, trades)
	s.archiveTrades(r, agentID, trades)

	metrics.TradesIngested.Add(float64(len(trades)))
	metrics.TrackedAgents.Set(float64(len(s.store.Agents())))

	writeJSON(w, http.StatusCreated, map[string]any{
		"agent_id": agentID,
		"ingested": len(trades),
		"count":    s.store.Count(agentID),
	})
}

// GetTradeHistory handles GET /api/v1/agents/{agentID}/trades
// Serves the full archived history when the durable tier is configured;
// otherwise the in-memory window (bounded by the ring capacity).
func (s *Service) GetTradeHistory(w http.ResponseWriter, r *http.Request) {
	agentID, err := agent.ParseID(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var trades []model.HistoricalTrade
	if s.archive != nil {
		trades, err = s.archive.AgentTrades(r.Context(), agentID)
		if err != nil {
			slog.Error("archive read failed, falling back to memory", "agent", agentID, "err", err)
			trades = s.store.Trades(agentID)
		}
	} else {
		trades = s.store.Trades(agentID)
	}
	if trades == nil {
		trades = []model.HistoricalTrade{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id": agentID,
		"trades":   trades,
	})
}

// GetTradeCount handles GET /api/v1/agents/{agentID}/trades/count
func (s *Service) GetTradeCount(w http.ResponseWriter, r *http.Request) {
	agentID, err := agent.ParseID(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"agent_id": agentID,
		"count":    s.store.Count(agentID),
	})
}

// RunSimulation handles POST /api/v1/agents/{agentID}/simulate
func (s *Service) RunSimulation(w http.ResponseWriter, r *http.Request) {
	agentID, err := agent.ParseID(chi.URLParam(r, "agentID"))
	if err != nil {
		writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var req configRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cfg := s.overlay(req)

	if err := s.limiter.Check(cfg.NumSimulations, cfg.HorizonDays, 1); err != nil {
		metrics.GuardRejections.Inc()
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	start := time.Now()
	report, err := s.engine.RunSimulation(r.Context(), agentID, cfg)
	if err != nil {
		s.writeSimulationError(w, err)
		return
	}

	metrics.PathsExecuted.Add(float64(cfg.NumSimulations))
	metrics.ReportsGenerated.WithLabelValues("single").Inc()
	metrics.ReportDuration.WithLabelValues("single").Observe(time.Since(start).Seconds())

	slog.Info("simulation complete",
		"agent", agentID,
		"paths", cfg.NumSimulations,
		"horizon_days", cfg.HorizonDays,
		"mean_final", report.MeanFinalValue.String(),
		"elapsed_ms", report.ExecutionMs,
	)

	if s.wsHub != nil {
		s.wsHub.Broadcast(WSMessage{
			Type:           "simulation_completed",
			AgentID:        agentID,
			ReportID:       report.ReportID,
			MeanFinalValue: report.MeanFinalValue.String(),
			ExecutionMs:    report.ExecutionMs,
		})
	}

	writeJSON(w, http.StatusOK, report)
}

// RunComparative handles POST /api/v1/simulate/compare
func (s *Service) RunComparative(w http.ResponseWriter, r *http.Request) {
	var req compareRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	cfg := s.overlay(req.configRequest)

	roster := req.AgentIDs
	if len(roster) == 0 {
		roster = s.store.Agents()
		sort.Strings(roster) // deterministic roster order
	}
	for _, id := range roster {
		if _, err := agent.ParseID(id); err != nil {
			writeError(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	if err := s.limiter.Check(cfg.NumSimulations, cfg.HorizonDays, len(roster)); err != nil {
		metrics.GuardRejections.Inc()
		writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	start := time.Now()
	report, err := s.engine.RunComparative(r.Context(), roster, cfg)
	if err != nil {
		s.writeSimulationError(w, err)
		return
	}

	metrics.PathsExecuted.Add(float64(cfg.NumSimulations * len(report.Agents)))
	metrics.ReportsGenerated.WithLabelValues("comparative").Inc()
	metrics.ReportDuration.WithLabelValues("comparative").Observe(time.Since(start).Seconds())

	slog.Info("comparative simulation complete",
		"roster", len(roster),
		"participants", len(report.Agents),
		"paths_per_agent", cfg.NumSimulations,
		"elapsed_ms", report.ExecutionMs,
	)

	if s.wsHub != nil && len(report.Agents) > 0 {
		lead := report.Agents[0]
		s.wsHub.Broadcast(WSMessage{
			Type:           "comparative_completed",
			AgentID:        lead.AgentID,
			ReportID:       report.ReportID,
			MeanFinalValue: lead.MeanFinalValue.String(),
			WinProbability: strconv.FormatFloat(lead.ProbabilityOfWinning, 'f', 1, 64),
			ExecutionMs:    report.ExecutionMs,
		})
	}

	writeJSON(w, http.StatusOK, report)
}

// GetSimulationMetrics handles GET /api/v1/simulations/metrics
func (s *Service) GetSimulationMetrics(w http.ResponseWriter, r *http.Request) {
	snapshot := s.tracker.Snapshot(len(s.store.Agents()), s.store.TotalTrades())
	writeJSON(w, http.StatusOK, snapshot)
}

// Reset handles POST /api/v1/admin/reset — clears the trade history store,
// the archive when configured, and the telemetry counters.
func (s *Service) Reset(w http.ResponseWriter, r *http.Request) {
	s.store.Reset()
	s.tracker.Reset()
	if s.archive != nil {
		if err := s.archive.Reset(r.Context()); err != nil {
			slog.Error("archive reset failed", "err", err)
			writeError(w, "history cleared, archive reset failed", http.StatusInternalServerError)
			return
		}
	}
	metrics.TrackedAgents.Set(0)

	slog.Info("benchmark state reset")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// --- helpers ---

// archiveTrades mirrors ingested trades into the durable tier. Archive
// failures are logged, not surfaced: the in-memory store already accepted
// the trades and the simulation contract only depends on it.
func (s *Service) archiveTrades(r *http.Request, agentID string, trades []model.HistoricalTrade) {
	if s.archive == nil {
		return
	}
	if err := s.archive.InsertTrades(r.Context(), agentID, trades); err != nil {
		slog.Error("trade archive failed", "agent", agentID, "trades", len(trades), "err", err)
	}
}

// writeSimulationError maps engine errors onto HTTP statuses.
func (s *Service) writeSimulationError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, montecarlo.ErrNoHistory):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, montecarlo.ErrNoSimulations),
		errors.Is(err, montecarlo.ErrInvalidCapital),
		errors.Is(err, montecarlo.ErrInvalidConfidence),
		errors.Is(err, montecarlo.ErrNegativeHorizon):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		writeError(w, "simulation cancelled", 499)
	default:
		writeError(w, "simulation failed", http.StatusInternalServerError)
	}
}

// decodeOptionalBody decodes a JSON body, treating an empty body as an
// empty request (all defaults).
func decodeOptionalBody(r *http.Request, v any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, message string, status int) {
	writeJSON(w, status, map[string]string{"error": message})
}
