// Package model defines the core domain types shared across the benchmark
// engine: historical trade observations and the action taxonomy attached
// to them.
package model

import (
	"fmt"
	"strings"
	"time"
)

// TradeAction labels what the agent did on a recorded trade. The action is
// informational only: sampling draws uniformly over raw returns and never
// stratifies by action.
type TradeAction string

const (
	ActionBuy  TradeAction = "buy"
	ActionSell TradeAction = "sell"
	ActionHold TradeAction = "hold"
)

// Valid reports whether the action is one of the known labels.
func (a TradeAction) Valid() bool {
	switch a {
	case ActionBuy, ActionSell, ActionHold:
		return true
	}
	return false
}

// ParseAction validates an action string from an ingestion request.
// Leading/trailing whitespace and letter case are normalized.
func ParseAction(s string) (TradeAction, error) {
	a := TradeAction(strings.ToLower(strings.TrimSpace(s)))
	if !a.Valid() {
		return "", fmt.Errorf("model: unknown trade action %q (want buy, sell or hold)", s)
	}
	return a, nil
}

// HistoricalTrade is one recorded return observation for an agent.
// Immutable once recorded — the history store keeps copies, never pointers.
type HistoricalTrade struct {
	Symbol    string      `json:"symbol" db:"symbol"`
	Action    TradeAction `json:"action" db:"action"`
	ReturnPct float64     `json:"return_pct" db:"return_pct"` // percentage, e.g. 1.5 = +1.5%
	Timestamp time.Time   `json:"timestamp" db:"recorded_at"`
}
