package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/agentbench/sim-engine/internal/model"
)

// CachedArchive wraps a primary Archive (PostgreSQL) with a Redis
// read-through cache on the per-agent history reads. Writes go to the
// primary and invalidate the cached entry; reads check Redis first then
// fall back to the primary.
type CachedArchive struct {
	primary Archive
	rdb     *redis.Client
	ttl     time.Duration
}

// NewCachedArchive creates a cached wrapper around a primary archive.
func NewCachedArchive(primary Archive, rdb *redis.Client, ttl time.Duration) *CachedArchive {
	return &CachedArchive{
		primary: primary,
		rdb:     rdb,
		ttl:     ttl,
	}
}

// --- Write-through (write to primary, invalidate cache) ---

func (a *CachedArchive) InsertTrade(ctx context.Context, agentID string, t model.HistoricalTrade) error {
	if err := a.primary.InsertTrade(ctx, agentID, t); err != nil {
		return err
	}
	a.rdb.Del(ctx, historyKey(agentID))
	return nil
}

func (a *CachedArchive) InsertTrades(ctx context.Context, agentID string, trades []model.HistoricalTrade) error {
	if err := a.primary.InsertTrades(ctx, agentID, trades); err != nil {
		return err
	}
	a.rdb.Del(ctx, historyKey(agentID))
	return nil
}

// --- Read-through (check cache first) ---

func (a *CachedArchive) AgentTrades(ctx context.Context, agentID string) ([]model.HistoricalTrade, error) {
	data, err := a.rdb.Get(ctx, historyKey(agentID)).Bytes()
	if err == nil {
		var trades []model.HistoricalTrade
		if json.Unmarshal(data, &trades) == nil {
			return trades, nil
		}
	}

	// Cache miss: read from primary and re-populate.
	trades, err := a.primary.AgentTrades(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if data, err := json.Marshal(trades); err == nil {
		a.rdb.Set(ctx, historyKey(agentID), data, a.ttl)
	}
	return trades, nil
}

// --- Passthrough (not cached) ---

func (a *CachedArchive) LoadAll(ctx context.Context) (map[string][]model.HistoricalTrade, error) {
	return a.primary.LoadAll(ctx)
}

func (a *CachedArchive) Reset(ctx context.Context) error {
	if err := a.primary.Reset(ctx); err != nil {
		return err
	}
	// Drop every cached history entry; next read re-populates.
	iter := a.rdb.Scan(ctx, 0, historyKey("*"), 0).Iterator()
	for iter.Next(ctx) {
		a.rdb.Del(ctx, iter.Val())
	}
	return iter.Err()
}

func historyKey(agentID string) string { return fmt.Sprintf("history:%s", agentID) }
