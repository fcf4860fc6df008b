package models

import "time"

// CloseReason records why a paper trade was closed.
type CloseReason string

const (
	ReasonManual    CloseReason = "manual"
	ReasonGraduated CloseReason = "graduated"
)

// Trade is an open simulated position, keyed by mint. At most one open trade
// exists per mint at any time.
type Trade struct {
	Mint          string    `json:"mint"`
	Symbol        string    `json:"symbol"`
	EntryMcap     float64   `json:"entry_mcap"`
	CurrentMcap   float64   `json:"current_mcap"`
	PeakMcap      float64   `json:"peak_mcap"`
	SolAmount     float64   `json:"sol_amount"`
	EntryTime     time.Time `json:"entry_time"`
	Score         int       `json:"score"`
	LastAlertStep int       `json:"last_alert_step"`
	Migrated      bool      `json:"migrated"`
}

// PnLPct returns the unrealized profit/loss percentage at the current mark.
func (t *Trade) PnLPct() float64 {
	if t.EntryMcap <= 0 {
		return 0
	}
	return (t.CurrentMcap/t.EntryMcap - 1) * 100
}

// PnLSOL returns the unrealized profit/loss in SOL at the current mark.
func (t *Trade) PnLSOL() float64 {
	if t.EntryMcap <= 0 {
		return 0
	}
	return (t.CurrentMcap/t.EntryMcap - 1) * t.SolAmount
}

// ClosedTrade is the immutable record of a finished position.
type ClosedTrade struct {
	Trade

	ExitMcap   float64     `json:"exit_mcap"`
	ExitTime   time.Time   `json:"exit_time"`
	DurationMs int64       `json:"duration_ms"`
	PnlSOL     float64     `json:"pnl_sol"`
	PnlUSD     float64     `json:"pnl_usd"`
	PnlPct     float64     `json:"pnl_pct"`
	Reason     CloseReason `json:"reason"`
}

// Settings holds the runtime-mutable knobs exposed to the command surface.
// Persisted inside the state snapshot and merged key-wise over defaults on
// load, so newly added options keep their default when absent from an older
// snapshot file.
type Settings struct {
	MinScore     int     `json:"minScore"`
	TradeAmount  float64 `json:"tradeAmount"`
	Paused       bool    `json:"paused"`
	PaperTrading bool    `json:"paperTradingEnabled"`
	AlertOnWatch bool    `json:"alertOnWatch"`
}

// Stats tracks monotonic process counters. Connected is runtime-only and is
// reset to false when a snapshot is loaded.
type Stats struct {
	Received     int64     `json:"received"`
	Resolved     int64     `json:"resolved"`
	Alerts       int64     `json:"alerts"`
	TradesOpened int64     `json:"tradesOpened"`
	TradesClosed int64     `json:"tradesClosed"`
	LastEventAt  time.Time `json:"lastEventAt"`
	Connected    bool      `json:"connected"`
}

// PortfolioSummary aggregates realized and unrealized performance.
type PortfolioSummary struct {
	OpenCount      int     `json:"open_count"`
	ClosedCount    int     `json:"closed_count"`
	Wins           int     `json:"wins"`
	WinRate        float64 `json:"win_rate"`
	RealizedSOL    float64 `json:"realized_sol"`
	RealizedUSD    float64 `json:"realized_usd"`
	UnrealizedSOL  float64 `json:"unrealized_sol"`
	TotalPnlSOL    float64 `json:"total_pnl_sol"`
}

// Health is the liveness report exposed for external polling.
type Health struct {
	Connected     bool    `json:"connected"`
	Received      int64   `json:"received"`
	Alerts        int64   `json:"alerts"`
	OpenCount     int     `json:"openCount"`
	TotalPnlSOL   float64 `json:"totalPnl"`
	UptimeSeconds int64   `json:"uptime"`
}
