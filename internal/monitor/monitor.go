// Package monitor wires the creation feed, scoring engine, and trade ledger
// together and exposes the operations the bot commands act on.
package monitor

import (
	"context"
	"fmt"
	"time"

	"mintwatch/internal/ledger"
	"mintwatch/internal/logger"
	"mintwatch/internal/models"
	"mintwatch/internal/scoring"
	"mintwatch/internal/state"
)

// TelemetryFetcher fetches current token telemetry by mint.
type TelemetryFetcher interface {
	FetchTelemetry(ctx context.Context, mint string) (models.Telemetry, error)
}

// Alerter delivers scored-token alerts to the user.
type Alerter interface {
	SendTokenAlert(res models.ScoreResult, commentary string) error
}

// Commentator produces optional natural-language commentary for an alert.
type Commentator interface {
	Commentary(ctx context.Context, res models.ScoreResult) (string, error)
}

// AlertArchive records sent alerts for later analysis.
type AlertArchive interface {
	RecordAlert(mint, kind string, score int, detail string) error
}

// Sink accepts resolved-signature work, normally the ingestion queue.
type Sink interface {
	Enqueue(ctx context.Context, signature string)
}

const commentaryTimeout = 20 * time.Second

// Monitor orchestrates the pipeline from creation event to alert and trade.
type Monitor struct {
	store   *state.Store
	ledger  *ledger.Ledger
	fetcher TelemetryFetcher
	alerter Alerter      // may be nil
	analyst Commentator  // may be nil
	archive AlertArchive // may be nil
	sink    Sink
}

// New creates a Monitor. alerter, analyst, and archive may be nil; the sink is
// attached separately with SetSink because the queue needs HandleResolved as
// its handler first.
func New(store *state.Store, lg *ledger.Ledger, fetcher TelemetryFetcher, alerter Alerter, analyst Commentator, archive AlertArchive) *Monitor {
	return &Monitor{
		store:   store,
		ledger:  lg,
		fetcher: fetcher,
		alerter: alerter,
		analyst: analyst,
		archive: archive,
	}
}

// SetSink attaches the ingestion queue.
func (m *Monitor) SetSink(sink Sink) {
	m.sink = sink
}

// HandleSignature is the feed callback for each creation-event signature.
// While paused, events are counted but not queued.
func (m *Monitor) HandleSignature(ctx context.Context, signature string) {
	m.store.RecordEvent()
	if m.store.Settings().Paused {
		logger.Debug("Paused, dropping signature %s", signature)
		return
	}
	if m.sink == nil {
		return
	}
	m.sink.Enqueue(ctx, signature)
}

// HandleResolved runs once per resolved signature: dedup, fetch telemetry,
// score, and act on the verdict.
func (m *Monitor) HandleResolved(ctx context.Context, signature, mint string) {
	m.store.RecordResolved()

	if !m.store.MarkSeen(mint) {
		logger.Debug("Already evaluated mint %s, skipping", mint)
		return
	}

	telemetry, err := m.fetcher.FetchTelemetry(ctx, mint)
	if err != nil {
		logger.Warn("Telemetry fetch failed for %s: %v", mint, err)
		return
	}

	res := scoring.Score(telemetry)
	settings := m.store.Settings()
	logger.Debug("Scored %s (%s): %d %s, velocity=%.2f SOL/min",
		mint, res.Symbol, res.Score, res.Verdict, res.VelocitySOL)

	switch {
	case res.Score >= settings.MinScore:
		m.recordAlert(res, "buy")
		m.dispatchAlert(res)
		if settings.PaperTrading && !settings.Paused {
			if m.ledger.Open(res) {
				logger.Info("Opened paper trade for %s (score %d)", res.Symbol, res.Score)
			}
		}
	case res.Verdict == models.VerdictWatch && settings.AlertOnWatch:
		m.recordAlert(res, "watch")
		m.dispatchAlert(res)
	}
}

func (m *Monitor) recordAlert(res models.ScoreResult, kind string) {
	m.store.RecordAlert()
	if m.archive == nil {
		return
	}
	if err := m.archive.RecordAlert(res.Mint, kind, res.Score, res.Symbol); err != nil {
		logger.Warn("Failed to archive alert for %s: %v", res.Mint, err)
	}
}

// dispatchAlert sends the alert in a detached goroutine so commentary latency
// never delays trade opening.
func (m *Monitor) dispatchAlert(res models.ScoreResult) {
	if m.alerter == nil {
		return
	}
	go func() {
		var commentary string
		if m.analyst != nil {
			ctx, cancel := context.WithTimeout(context.Background(), commentaryTimeout)
			defer cancel()
			c, err := m.analyst.Commentary(ctx, res)
			if err != nil {
				logger.Debug("Commentary unavailable for %s: %v", res.Mint, err)
			} else {
				commentary = c
			}
		}
		if err := m.alerter.SendTokenAlert(res, commentary); err != nil {
			logger.Warn("Failed to send alert for %s: %v", res.Mint, err)
		}
	}()
}

// RefreshOpenTrades re-fetches telemetry for every open position and feeds the
// marks into the ledger. A failed fetch keeps the previous mark. It returns an
// error only when every fetch in a non-empty cycle failed.
func (m *Monitor) RefreshOpenTrades(ctx context.Context) error {
	trades := m.store.OpenTrades()
	if len(trades) == 0 {
		return nil
	}

	var failures int
	for _, t := range trades {
		telemetry, err := m.fetcher.FetchTelemetry(ctx, t.Mint)
		if err != nil {
			failures++
			logger.Warn("Refresh fetch failed for %s, keeping last mark: %v", t.Mint, err)
			continue
		}
		m.ledger.Refresh(t.Mint, telemetry.UsdMarketCap, telemetry.Complete)
	}

	if failures == len(trades) {
		return fmt.Errorf("all %d open-trade refreshes failed", failures)
	}
	return nil
}

// Health returns the snapshot served by the health endpoint.
func (m *Monitor) Health() models.Health {
	stats := m.store.Stats()
	return models.Health{
		Connected:     stats.Connected,
		Received:      stats.Received,
		Alerts:        stats.Alerts,
		OpenCount:     m.store.OpenCount(),
		TotalPnlSOL:   m.ledger.Summary().TotalPnlSOL,
		UptimeSeconds: int64(m.store.Uptime().Seconds()),
	}
}

// Status implements the /status command.
func (m *Monitor) Status() (models.Health, models.Settings) {
	return m.Health(), m.store.Settings()
}

// Summary implements the /summary command.
func (m *Monitor) Summary() models.PortfolioSummary {
	return m.ledger.Summary()
}

// SetMinScore implements the /minscore command.
func (m *Monitor) SetMinScore(score int) error {
	if score < 0 || score > 100 {
		return fmt.Errorf("min score must be between 0 and 100")
	}
	m.store.SetMinScore(score)
	return nil
}

// SetTradeAmount implements the /amount command.
func (m *Monitor) SetTradeAmount(amount float64) error {
	if amount <= 0 {
		return fmt.Errorf("trade amount must be positive")
	}
	m.store.SetTradeAmount(amount)
	return nil
}

// SetPaused implements the /pause and /resume commands. It returns the
// resulting paused state.
func (m *Monitor) SetPaused(paused bool) bool {
	if m.store.Settings().Paused == paused {
		return paused
	}
	return m.store.TogglePaused()
}

// ToggleWatchAlerts implements the /watchalerts command.
func (m *Monitor) ToggleWatchAlerts() bool {
	return m.store.ToggleAlertOnWatch()
}

// CloseTrade implements the /close command, closing at the last known mark.
func (m *Monitor) CloseTrade(mint string) (models.ClosedTrade, bool) {
	t, ok := m.store.Trade(mint)
	if !ok {
		return models.ClosedTrade{}, false
	}
	return m.ledger.Close(mint, t.CurrentMcap, models.ReasonManual)
}

// Reset implements the /reset command. Dedup history survives so known mints
// are not re-alerted.
func (m *Monitor) Reset() {
	m.store.Reset()
	logger.Info("Portfolio and counters reset")
}
