package history

import (
	"context"

	"github.com/agentbench/sim-engine/internal/model"
)

// Archive is the durable trade sink behind the in-memory ring. The ring is
// the sampling window; the archive keeps the full record beyond the ring's
// capacity. Implementations: PostgreSQL (source of truth) and a Redis
// read-through cache wrapper.
type Archive interface {
	// InsertTrade appends one immutable trade record.
	InsertTrade(ctx context.Context, agentID string, t model.HistoricalTrade) error

	// InsertTrades appends a batch in order.
	InsertTrades(ctx context.Context, agentID string, trades []model.HistoricalTrade) error

	// AgentTrades returns the agent's full archived history in insertion
	// order.
	AgentTrades(ctx context.Context, agentID string) ([]model.HistoricalTrade, error)

	// LoadAll returns every archived trade grouped by agent, used to warm
	// the in-memory ring at boot.
	LoadAll(ctx context.Context) (map[string][]model.HistoricalTrade, error)

	// Reset drops all archived trades (admin operation).
	Reset(ctx context.Context) error
}
