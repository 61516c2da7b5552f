package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/agentbench/sim-engine/internal/model"
)

// PostgresArchive implements Archive on PostgreSQL. Trades are append-only;
// nothing here is read during a simulation run.
type PostgresArchive struct {
	pool *pgxpool.Pool
}

// NewPostgresArchive creates a PostgreSQL-backed archive.
func NewPostgresArchive(pool *pgxpool.Pool) *PostgresArchive {
	return &PostgresArchive{pool: pool}
}

// EnsureSchema creates the trade table if it does not exist yet.
func (a *PostgresArchive) EnsureSchema(ctx context.Context) error {
	_, err := a.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS agent_trades (
			id          UUID PRIMARY KEY,
			agent_id    TEXT NOT NULL,
			symbol      TEXT NOT NULL,
			action      TEXT NOT NULL,
			return_pct  DOUBLE PRECISION NOT NULL,
			recorded_at TIMESTAMPTZ NOT NULL,
			ingested_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE INDEX IF NOT EXISTS agent_trades_agent_idx
			ON agent_trades (agent_id, ingested_at);`)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

func (a *PostgresArchive) InsertTrade(ctx context.Context, agentID string, t model.HistoricalTrade) error {
	_, err := a.pool.Exec(ctx,
		`INSERT INTO agent_trades (id, agent_id, symbol, action, return_pct, recorded_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		uuid.New().String(), agentID, t.Symbol, string(t.Action), t.ReturnPct, t.Timestamp)
	if err != nil {
		return fmt.Errorf("insert trade for %s: %w", agentID, err)
	}
	return nil
}

func (a *PostgresArchive) InsertTrades(ctx context.Context, agentID string, trades []model.HistoricalTrade) error {
	for _, t := range trades {
		if err := a.InsertTrade(ctx, agentID, t); err != nil {
			return err
		}
	}
	return nil
}

func (a *PostgresArchive) AgentTrades(ctx context.Context, agentID string) ([]model.HistoricalTrade, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT symbol, action, return_pct, recorded_at
		 FROM agent_trades WHERE agent_id = $1
		 ORDER BY ingested_at, id`, agentID)
	if err != nil {
		return nil, fmt.Errorf("load trades for %s: %w", agentID, err)
	}
	defer rows.Close()

	var out []model.HistoricalTrade
	for rows.Next() {
		var t model.HistoricalTrade
		var action string
		var ts time.Time
		if err := rows.Scan(&t.Symbol, &action, &t.ReturnPct, &ts); err != nil {
			return nil, err
		}
		t.Action = model.TradeAction(action)
		t.Timestamp = ts
		out = append(out, t)
	}
	return out, rows.Err()
}

func (a *PostgresArchive) LoadAll(ctx context.Context) (map[string][]model.HistoricalTrade, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT agent_id, symbol, action, return_pct, recorded_at
		 FROM agent_trades ORDER BY ingested_at, id`)
	if err != nil {
		return nil, fmt.Errorf("load archive: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]model.HistoricalTrade)
	for rows.Next() {
		var agentID, action string
		var t model.HistoricalTrade
		var ts time.Time
		if err := rows.Scan(&agentID, &t.Symbol, &action, &t.ReturnPct, &ts); err != nil {
			return nil, err
		}
		t.Action = model.TradeAction(action)
		t.Timestamp = ts
		out[agentID] = append(out[agentID], t)
	}
	return out, rows.Err()
}

func (a *PostgresArchive) Reset(ctx context.Context) error {
	if _, err := a.pool.Exec(ctx, `TRUNCATE agent_trades`); err != nil {
		return fmt.Errorf("reset archive: %w", err)
	}
	return nil
}
