// Package telemetry accumulates operational counters across the process
// lifetime: paths executed, reports generated, and wall-clock timing.
// Purely observational: nothing here influences simulation outcomes.
package telemetry

import (
	"sync"
	"time"
)

// Snapshot is the point-in-time view returned to callers. Store-derived
// counts (tracked agents, total trades) are merged in at snapshot time so
// the tracker itself never holds a reference to the history store.
type Snapshot struct {
	TotalPathsExecuted    int64      `json:"total_paths_executed"`
	TotalReportsGenerated int64      `json:"total_reports_generated"`
	TotalExecutionMs      int64      `json:"total_execution_ms"`
	AvgReportMs           float64    `json:"avg_report_ms"`
	AvgPathMicros         float64    `json:"avg_path_micros"`
	AgentsTracked         int        `json:"agents_tracked"`
	TotalHistoricalTrades int        `json:"total_historical_trades"`
	LastRunAt             *time.Time `json:"last_run_at,omitempty"`
}

// Tracker is a resettable set of cumulative counters guarded by a mutex.
// One Tracker per engine instance; no module-level singleton.
type Tracker struct {
	mu           sync.Mutex
	paths        int64
	reports      int64
	reportTime   time.Duration
	pathTime     time.Duration
	lastRun      time.Time
	haveRun      bool
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// ObserveRun records one completed report: the number of paths it executed,
// the total wall-clock time of the report, and the portion spent inside the
// path simulation phase.
func (t *Tracker) ObserveRun(paths int, reportDur, pathDur time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.paths += int64(paths)
	t.reports++
	t.reportTime += reportDur
	t.pathTime += pathDur
	t.lastRun = time.Now().UTC()
	t.haveRun = true
}

// Snapshot returns the current counters merged with store-derived counts.
func (t *Tracker) Snapshot(agentsTracked, totalTrades int) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := Snapshot{
		TotalPathsExecuted:    t.paths,
		TotalReportsGenerated: t.reports,
		TotalExecutionMs:      t.reportTime.Milliseconds(),
		AgentsTracked:         agentsTracked,
		TotalHistoricalTrades: totalTrades,
	}
	if t.reports > 0 {
		s.AvgReportMs = float64(t.reportTime.Milliseconds()) / float64(t.reports)
	}
	if t.paths > 0 {
		s.AvgPathMicros = float64(t.pathTime.Microseconds()) / float64(t.paths)
	}
	if t.haveRun {
		last := t.lastRun
		s.LastRunAt = &last
	}
	return s
}

// Reset clears all counters. The admin reset operation pairs this with
// clearing the trade history store.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.paths = 0
	t.reports = 0
	t.reportTime = 0
	t.pathTime = 0
	t.lastRun = time.Time{}
	t.haveRun = false
}
