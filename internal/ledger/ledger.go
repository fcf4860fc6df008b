// Package ledger manages the lifecycle of simulated positions: open,
// price-refresh, threshold alerts, and close.
package ledger

import (
	"math"
	"time"

	"mintwatch/internal/logger"
	"mintwatch/internal/models"
	"mintwatch/internal/state"
)

// Notifier receives trade lifecycle alerts. Implementations must not block
// the caller for long; failures are theirs to log.
type Notifier interface {
	TradeOpened(trade models.Trade, res models.ScoreResult)
	PnLBandCrossed(trade models.Trade, pnlPct float64, step int)
	Graduated(trade models.Trade)
	TradeClosed(closed models.ClosedTrade)
}

// Archive persists finished trades outside the bounded live snapshot.
type Archive interface {
	ArchiveTrade(ct models.ClosedTrade) error
}

// Config holds the ledger's fixed parameters.
type Config struct {
	MaxOpenTrades int
	// AlertStepPct is the percentage band width for P&L crossing alerts.
	AlertStepPct float64
	// SolUsdRate converts SOL P&L to USD for reporting.
	SolUsdRate float64
}

// DefaultConfig returns the standard ledger parameters.
func DefaultConfig() Config {
	return Config{
		MaxOpenTrades: 5,
		AlertStepPct:  25.0,
		SolUsdRate:    200.0,
	}
}

// Ledger applies the trade state machine on top of the state store.
type Ledger struct {
	store    *state.Store
	notifier Notifier
	archive  Archive
	config   Config
}

// New creates a Ledger. notifier and archive may be nil.
func New(store *state.Store, notifier Notifier, archive Archive, config Config) *Ledger {
	if config.AlertStepPct <= 0 {
		config.AlertStepPct = 25.0
	}
	if config.MaxOpenTrades < 1 {
		config.MaxOpenTrades = 1
	}
	return &Ledger{store: store, notifier: notifier, archive: archive, config: config}
}

// Open creates a paper trade for the scored token. Returns false when a
// trade already exists for the mint (idempotent no-op) or the open-trade cap
// is reached.
func (l *Ledger) Open(res models.ScoreResult) bool {
	amount := l.store.Settings().TradeAmount
	trade := models.Trade{
		Mint:        res.Mint,
		Symbol:      res.Symbol,
		EntryMcap:   res.UsdMarketCap,
		CurrentMcap: res.UsdMarketCap,
		PeakMcap:    res.UsdMarketCap,
		SolAmount:   amount,
		EntryTime:   time.Now(),
		Score:       res.Score,
	}

	if !l.store.OpenIfAbsent(trade, l.config.MaxOpenTrades) {
		return false
	}
	logger.Info("Opened paper trade %s (%s): %.3f SOL at $%.0f mcap, score %d",
		trade.Symbol, trade.Mint, trade.SolAmount, trade.EntryMcap, trade.Score)
	if l.notifier != nil {
		l.notifier.TradeOpened(trade, res)
	}
	return true
}

// Refresh updates the mark for an open trade. It raises the peak high-water
// mark, emits at most one alert per crossed P&L band, and closes the trade
// when the token graduates. Unknown mints are ignored.
func (l *Ledger) Refresh(mint string, newMcap float64, isComplete bool) {
	var (
		bandCrossed bool
		graduated   bool
		pnlPct      float64
		step        int
	)

	trade, ok := l.store.MutateTrade(mint, func(t *models.Trade) {
		t.CurrentMcap = newMcap
		if newMcap > t.PeakMcap {
			t.PeakMcap = newMcap
		}

		pnlPct = t.PnLPct()
		step = alertStep(pnlPct, l.config.AlertStepPct)
		if step != t.LastAlertStep && step != 0 {
			t.LastAlertStep = step
			bandCrossed = true
		}

		if isComplete && !t.Migrated {
			t.Migrated = true
			graduated = true
		}
	})
	if !ok {
		return
	}

	if bandCrossed {
		logger.Info("Trade %s crossed P&L band %d (%.1f%%)", trade.Symbol, step, pnlPct)
		if l.notifier != nil {
			l.notifier.PnLBandCrossed(trade, pnlPct, step)
		}
		l.store.RecordAlert()
	}

	if graduated {
		logger.Info("Token %s graduated, closing trade", trade.Symbol)
		if l.notifier != nil {
			l.notifier.Graduated(trade)
		}
		l.store.RecordAlert()
		l.Close(mint, newMcap, models.ReasonGraduated)
	}
}

// Close finalizes the open trade for mint. Returns false when no open trade
// exists.
func (l *Ledger) Close(mint string, exitMcap float64, reason models.CloseReason) (models.ClosedTrade, bool) {
	now := time.Now()
	closed, ok := l.store.CloseTrade(mint, func(t models.Trade) models.ClosedTrade {
		mult := 1.0
		if t.EntryMcap > 0 {
			mult = exitMcap / t.EntryMcap
		}
		pnlSOL := (mult - 1) * t.SolAmount
		return models.ClosedTrade{
			Trade:      t,
			ExitMcap:   exitMcap,
			ExitTime:   now,
			DurationMs: now.Sub(t.EntryTime).Milliseconds(),
			PnlSOL:     pnlSOL,
			PnlUSD:     pnlSOL * l.config.SolUsdRate,
			PnlPct:     (mult - 1) * 100,
			Reason:     reason,
		}
	})
	if !ok {
		return models.ClosedTrade{}, false
	}

	logger.Info("Closed trade %s (%s): %.1f%% P&L, %.4f SOL, reason %s",
		closed.Symbol, closed.Mint, closed.PnlPct, closed.PnlSOL, closed.Reason)

	if l.archive != nil {
		if err := l.archive.ArchiveTrade(closed); err != nil {
			logger.Warn("Failed to archive closed trade %s: %v", closed.Mint, err)
		}
	}
	if l.notifier != nil {
		l.notifier.TradeClosed(closed)
	}
	return closed, true
}

// Summary aggregates realized P&L over closed trades and unrealized P&L over
// open trades at their current marks.
func (l *Ledger) Summary() models.PortfolioSummary {
	var s models.PortfolioSummary

	for _, ct := range l.store.ClosedTrades() {
		s.ClosedCount++
		s.RealizedSOL += ct.PnlSOL
		s.RealizedUSD += ct.PnlUSD
		if ct.PnlPct > 0 {
			s.Wins++
		}
	}
	if s.ClosedCount > 0 {
		s.WinRate = float64(s.Wins) / float64(s.ClosedCount) * 100
	}

	open := l.store.OpenTrades()
	s.OpenCount = len(open)
	for i := range open {
		s.UnrealizedSOL += open[i].PnLSOL()
	}

	s.TotalPnlSOL = s.RealizedSOL + s.UnrealizedSOL
	return s
}

// alertStep discretizes a P&L percentage into a signed band index:
// floor(|pnl| / step) with the sign of the move.
func alertStep(pnlPct, stepPct float64) int {
	step := int(math.Floor(math.Abs(pnlPct) / stepPct))
	if pnlPct < 0 {
		return -step
	}
	return step
}
