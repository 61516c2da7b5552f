// Package history holds the per-agent trade history tiers. The in-memory
// ring is the only thing the simulation core samples from; the PostgreSQL
// archive (optional) retains everything ever ingested for the full-history
// endpoint and warm-up at boot, with an optional Redis read-through cache
// over archive reads.
package history

import (
	"sync"

	"github.com/agentbench/sim-engine/internal/model"
)

// DefaultCapacity is the per-agent ring size: insertion beyond it evicts
// the oldest entries FIFO.
const DefaultCapacity = 5000

// MemoryStore keeps a capacity-bounded, insertion-ordered trade sequence
// per agent. Safe for concurrent readers during a simulation batch; writers
// take the exclusive lock. All accessors return copies so callers never see
// internal mutation.
type MemoryStore struct {
	mu       sync.RWMutex
	capacity int
	trades   map[string][]model.HistoricalTrade
}

// NewMemoryStore creates a store with the given per-agent capacity;
// non-positive values fall back to DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{
		capacity: capacity,
		trades:   make(map[string][]model.HistoricalTrade),
	}
}

// Record appends one trade. Always succeeds; overflow drops the oldest
// entries so the sequence length never exceeds capacity.
func (s *MemoryStore) Record(agentID string, t model.HistoricalTrade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.append(agentID, t)
}

// RecordBatch appends trades in order under a single lock acquisition.
func (s *MemoryStore) RecordBatch(agentID string, trades []model.HistoricalTrade) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range trades {
		s.append(agentID, t)
	}
}

func (s *MemoryStore) append(agentID string, t model.HistoricalTrade) {
	seq := append(s.trades[agentID], t)
	if excess := len(seq) - s.capacity; excess > 0 {
		// Copy down instead of re-slicing so evicted entries are freed.
		kept := make([]model.HistoricalTrade, s.capacity)
		copy(kept, seq[excess:])
		seq = kept
	}
	s.trades[agentID] = seq
}

// Count returns the stored length, 0 for an unknown agent.
func (s *MemoryStore) Count(agentID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.trades[agentID])
}

// Trades returns a copy of the agent's stored sequence in insertion order.
func (s *MemoryStore) Trades(agentID string) []model.HistoricalTrade {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.HistoricalTrade, len(s.trades[agentID]))
	copy(out, s.trades[agentID])
	return out
}

// Returns extracts the agent's return series as a snapshot copy, so a
// simulation batch sees one consistent distribution even while ingestion
// continues.
func (s *MemoryStore) Returns(agentID string) []float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq := s.trades[agentID]
	out := make([]float64, len(seq))
	for i, t := range seq {
		out[i] = t.ReturnPct
	}
	return out
}

// Agents lists every agent with at least one stored trade.
func (s *MemoryStore) Agents() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.trades))
	for id, seq := range s.trades {
		if len(seq) > 0 {
			out = append(out, id)
		}
	}
	return out
}

// TotalTrades sums stored trades across all agents.
func (s *MemoryStore) TotalTrades() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := 0
	for _, seq := range s.trades {
		total += len(seq)
	}
	return total
}

// Reset clears all agents. Process-local only; the admin reset pairs this
// with the telemetry reset.
func (s *MemoryStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trades = make(map[string][]model.HistoricalTrade)
}
