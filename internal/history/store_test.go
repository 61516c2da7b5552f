package history

import (
	"fmt"
	"testing"
	"time"

	"github.com/agentbench/sim-engine/internal/model"
)

func trade(symbol string, returnPct float64) model.HistoricalTrade {
	return model.HistoricalTrade{
		Symbol:    symbol,
		Action:    model.ActionBuy,
		ReturnPct: returnPct,
		Timestamp: time.Now().UTC(),
	}
}

func TestRecordAndCount(t *testing.T) {
	s := NewMemoryStore(10)

	if s.Count("a") != 0 {
		t.Errorf("unknown agent should count 0, got %d", s.Count("a"))
	}

	s.Record("a", trade("SOL", 1.5))
	s.Record("a", trade("ETH", -0.5))
	s.Record("b", trade("BTC", 2.0))

	if s.Count("a") != 2 {
		t.Errorf("expected 2 trades for a, got %d", s.Count("a"))
	}
	if s.Count("b") != 1 {
		t.Errorf("expected 1 trade for b, got %d", s.Count("b"))
	}
	if s.TotalTrades() != 3 {
		t.Errorf("expected 3 total trades, got %d", s.TotalTrades())
	}
}

func TestRecordBatch(t *testing.T) {
	s := NewMemoryStore(10)
	s.RecordBatch("a", []model.HistoricalTrade{trade("SOL", 1), trade("SOL", 2), trade("SOL", 3)})

	got := s.Returns("a")
	want := []float64{1, 2, 3}
	if len(got) != len(want) {
		t.Fatalf("expected %d returns, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("returns[%d] = %f, want %f (insertion order must hold)", i, got[i], want[i])
		}
	}
}

func TestFIFOEviction(t *testing.T) {
	s := NewMemoryStore(3)
	for i := 0; i < 5; i++ {
		s.Record("a", trade(fmt.Sprintf("S%d", i), float64(i)))
	}

	if s.Count("a") != 3 {
		t.Fatalf("capacity 3 store holds %d trades", s.Count("a"))
	}
	trades := s.Trades("a")
	if trades[0].Symbol != "S2" || trades[2].Symbol != "S4" {
		t.Errorf("oldest entries should be evicted first, got %s..%s", trades[0].Symbol, trades[2].Symbol)
	}
}

func TestBatchOverflowEvictsOldest(t *testing.T) {
	s := NewMemoryStore(2)
	s.RecordBatch("a", []model.HistoricalTrade{trade("S0", 0), trade("S1", 1), trade("S2", 2), trade("S3", 3)})

	got := s.Returns("a")
	if len(got) != 2 || got[0] != 2 || got[1] != 3 {
		t.Errorf("expected the newest two returns [2 3], got %v", got)
	}
}

func TestReturnsIsSnapshot(t *testing.T) {
	s := NewMemoryStore(10)
	s.Record("a", trade("SOL", 1))

	snap := s.Returns("a")
	s.Record("a", trade("SOL", 99))

	if len(snap) != 1 || snap[0] != 1 {
		t.Errorf("snapshot must not observe later writes, got %v", snap)
	}
}

func TestAgents(t *testing.T) {
	s := NewMemoryStore(10)
	s.Record("a", trade("SOL", 1))
	s.Record("b", trade("ETH", 2))

	agents := s.Agents()
	if len(agents) != 2 {
		t.Errorf("expected 2 agents, got %v", agents)
	}
}

func TestReset(t *testing.T) {
	s := NewMemoryStore(10)
	s.Record("a", trade("SOL", 1))
	s.Reset()

	if s.Count("a") != 0 || s.TotalTrades() != 0 || len(s.Agents()) != 0 {
		t.Error("reset should clear all agents")
	}
}
