package monitor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"mintwatch/internal/ledger"
	"mintwatch/internal/models"
	"mintwatch/internal/state"
)

// buyTelemetry scores 75 (BUY): velocity 20 capped at 28, twitter 8,
// engagement 12, featured 8, freshness 14, liquidity 5.
func buyTelemetry(mint string) models.Telemetry {
	return models.Telemetry{
		Mint:       mint,
		Symbol:     "BUY" + mint,
		SolInCurve: 10,
		AgeSeconds: 30,
		HasTwitter: true,
		ReplyCount: 50,
		Featured:   true,
		FetchedAt:  time.Now(),
	}
}

// watchTelemetry scores 46 (WATCH): velocity 12, twitter 8, website 4,
// engagement 12, freshness 10.
func watchTelemetry(mint string) models.Telemetry {
	return models.Telemetry{
		Mint:       mint,
		Symbol:     "WCH" + mint,
		SolInCurve: 3,
		AgeSeconds: 90,
		HasTwitter: true,
		HasWebsite: true,
		ReplyCount: 25,
		FetchedAt:  time.Now(),
	}
}

type fakeFetcher struct {
	mu        sync.Mutex
	telemetry map[string]models.Telemetry
	errs      map[string]error
	calls     map[string]int
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		telemetry: make(map[string]models.Telemetry),
		errs:      make(map[string]error),
		calls:     make(map[string]int),
	}
}

func (f *fakeFetcher) FetchTelemetry(_ context.Context, mint string) (models.Telemetry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[mint]++
	if err, ok := f.errs[mint]; ok {
		return models.Telemetry{}, err
	}
	t, ok := f.telemetry[mint]
	if !ok {
		return models.Telemetry{}, fmt.Errorf("unknown mint %s", mint)
	}
	return t, nil
}

func (f *fakeFetcher) callCount(mint string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[mint]
}

type sentAlert struct {
	res        models.ScoreResult
	commentary string
}

type fakeAlerter struct {
	alerts chan sentAlert
}

func newFakeAlerter() *fakeAlerter {
	return &fakeAlerter{alerts: make(chan sentAlert, 16)}
}

func (f *fakeAlerter) SendTokenAlert(res models.ScoreResult, commentary string) error {
	f.alerts <- sentAlert{res: res, commentary: commentary}
	return nil
}

// waitAlert blocks until an alert arrives or fails the test.
func (f *fakeAlerter) waitAlert(t *testing.T) sentAlert {
	t.Helper()
	select {
	case a := <-f.alerts:
		return a
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for alert")
		return sentAlert{}
	}
}

// expectNoAlert asserts no alert arrives within a short window.
func (f *fakeAlerter) expectNoAlert(t *testing.T) {
	t.Helper()
	select {
	case a := <-f.alerts:
		t.Fatalf("unexpected alert for %s", a.res.Mint)
	case <-time.After(100 * time.Millisecond):
	}
}

type fakeCommentator struct {
	text string
	err  error
}

func (f *fakeCommentator) Commentary(_ context.Context, _ models.ScoreResult) (string, error) {
	return f.text, f.err
}

type fakeSink struct {
	mu   sync.Mutex
	sigs []string
}

func (f *fakeSink) Enqueue(_ context.Context, signature string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sigs = append(f.sigs, signature)
}

func (f *fakeSink) queued() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sigs...)
}

type fixture struct {
	monitor *Monitor
	store   *state.Store
	fetcher *fakeFetcher
	alerter *fakeAlerter
	sink    *fakeSink
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := state.New(filepath.Join(t.TempDir(), "state.json"), models.Settings{
		MinScore:     68,
		TradeAmount:  0.1,
		PaperTrading: true,
	})
	if err != nil {
		t.Fatalf("state.New: %v", err)
	}

	fetcher := newFakeFetcher()
	alerter := newFakeAlerter()
	sink := &fakeSink{}

	lg := ledger.New(store, nil, nil, ledger.Config{MaxOpenTrades: 3, AlertStepPct: 25, SolUsdRate: 200})
	m := New(store, lg, fetcher, alerter, nil, nil)
	m.SetSink(sink)

	return &fixture{monitor: m, store: store, fetcher: fetcher, alerter: alerter, sink: sink}
}

func TestHandleSignatureEnqueues(t *testing.T) {
	f := newFixture(t)

	f.monitor.HandleSignature(context.Background(), "sig-1")

	if got := f.sink.queued(); len(got) != 1 || got[0] != "sig-1" {
		t.Errorf("queued = %v, want [sig-1]", got)
	}
	if f.store.Stats().Received != 1 {
		t.Errorf("Received = %d, want 1", f.store.Stats().Received)
	}
}

func TestHandleSignaturePausedCountsButDrops(t *testing.T) {
	f := newFixture(t)
	f.monitor.SetPaused(true)

	f.monitor.HandleSignature(context.Background(), "sig-1")

	if got := f.sink.queued(); len(got) != 0 {
		t.Errorf("queued = %v, want empty while paused", got)
	}
	if f.store.Stats().Received != 1 {
		t.Errorf("Received = %d, want 1 even while paused", f.store.Stats().Received)
	}
}

func TestHandleResolvedBuyOpensTradeAndAlerts(t *testing.T) {
	f := newFixture(t)
	f.fetcher.telemetry["mint-1"] = buyTelemetry("mint-1")

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")

	alert := f.alerter.waitAlert(t)
	if alert.res.Score != 75 || alert.res.Verdict != models.VerdictBuy {
		t.Errorf("alert score=%d verdict=%s, want 75 BUY", alert.res.Score, alert.res.Verdict)
	}
	trade, ok := f.store.Trade("mint-1")
	if !ok {
		t.Fatal("expected an open trade for mint-1")
	}
	if trade.SolAmount != 0.1 || trade.Score != 75 {
		t.Errorf("trade = %+v", trade)
	}
	if f.store.Stats().Alerts != 1 {
		t.Errorf("Alerts = %d, want 1", f.store.Stats().Alerts)
	}
}

func TestHandleResolvedDeduplicatesMint(t *testing.T) {
	f := newFixture(t)
	f.fetcher.telemetry["mint-1"] = buyTelemetry("mint-1")

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")
	f.monitor.HandleResolved(context.Background(), "sig-2", "mint-1")

	if got := f.fetcher.callCount("mint-1"); got != 1 {
		t.Errorf("fetch count = %d, want 1", got)
	}
	if f.store.Stats().Resolved != 2 {
		t.Errorf("Resolved = %d, want 2", f.store.Stats().Resolved)
	}
}

func TestHandleResolvedBelowMinScoreIgnored(t *testing.T) {
	f := newFixture(t)
	f.fetcher.telemetry["mint-1"] = watchTelemetry("mint-1")

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")

	f.alerter.expectNoAlert(t)
	if _, ok := f.store.Trade("mint-1"); ok {
		t.Error("no trade should open below the minimum score")
	}
}

func TestHandleResolvedWatchAlertWhenEnabled(t *testing.T) {
	f := newFixture(t)
	f.monitor.ToggleWatchAlerts()
	f.fetcher.telemetry["mint-1"] = watchTelemetry("mint-1")

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")

	alert := f.alerter.waitAlert(t)
	if alert.res.Verdict != models.VerdictWatch {
		t.Errorf("verdict = %s, want WATCH", alert.res.Verdict)
	}
	if _, ok := f.store.Trade("mint-1"); ok {
		t.Error("WATCH verdict must never open a trade")
	}
}

func TestHandleResolvedPausedAlertsWithoutTrading(t *testing.T) {
	f := newFixture(t)
	f.monitor.SetPaused(true)
	f.fetcher.telemetry["mint-1"] = buyTelemetry("mint-1")

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")

	f.alerter.waitAlert(t)
	if _, ok := f.store.Trade("mint-1"); ok {
		t.Error("no trade should open while paused")
	}
}

func TestHandleResolvedFetchFailure(t *testing.T) {
	f := newFixture(t)
	f.fetcher.errs["mint-1"] = errors.New("boom")

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")

	f.alerter.expectNoAlert(t)
	if _, ok := f.store.Trade("mint-1"); ok {
		t.Error("no trade should open after a failed fetch")
	}
}

func TestCommentaryAttachedToAlert(t *testing.T) {
	f := newFixture(t)
	f.monitor.analyst = &fakeCommentator{text: "Looks strong."}
	f.fetcher.telemetry["mint-1"] = buyTelemetry("mint-1")

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")

	alert := f.alerter.waitAlert(t)
	if alert.commentary != "Looks strong." {
		t.Errorf("commentary = %q", alert.commentary)
	}
}

func TestCommentaryFailureStillAlerts(t *testing.T) {
	f := newFixture(t)
	f.monitor.analyst = &fakeCommentator{err: errors.New("quota")}
	f.fetcher.telemetry["mint-1"] = buyTelemetry("mint-1")

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")

	alert := f.alerter.waitAlert(t)
	if alert.commentary != "" {
		t.Errorf("commentary = %q, want empty on failure", alert.commentary)
	}
}

func TestRefreshOpenTradesUpdatesMarks(t *testing.T) {
	f := newFixture(t)
	tel := buyTelemetry("mint-1")
	tel.UsdMarketCap = 10000
	f.fetcher.telemetry["mint-1"] = tel

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")
	f.alerter.waitAlert(t)

	tel.UsdMarketCap = 15000
	f.fetcher.telemetry["mint-1"] = tel

	if err := f.monitor.RefreshOpenTrades(context.Background()); err != nil {
		t.Fatalf("RefreshOpenTrades: %v", err)
	}
	trade, _ := f.store.Trade("mint-1")
	if trade.CurrentMcap != 15000 || trade.PeakMcap != 15000 {
		t.Errorf("trade marks = current %f peak %f, want 15000", trade.CurrentMcap, trade.PeakMcap)
	}
}

func TestRefreshOpenTradesKeepsMarkOnFailure(t *testing.T) {
	f := newFixture(t)
	tel := buyTelemetry("mint-1")
	tel.UsdMarketCap = 10000
	f.fetcher.telemetry["mint-1"] = tel

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")
	f.alerter.waitAlert(t)

	f.fetcher.errs["mint-1"] = errors.New("down")

	if err := f.monitor.RefreshOpenTrades(context.Background()); err == nil {
		t.Error("expected error when every refresh fails")
	}
	trade, _ := f.store.Trade("mint-1")
	if trade.CurrentMcap != 10000 {
		t.Errorf("CurrentMcap = %f, want last mark 10000", trade.CurrentMcap)
	}
}

func TestRefreshOpenTradesEmptyIsNoop(t *testing.T) {
	f := newFixture(t)
	if err := f.monitor.RefreshOpenTrades(context.Background()); err != nil {
		t.Errorf("RefreshOpenTrades on empty portfolio: %v", err)
	}
}

func TestCommandValidation(t *testing.T) {
	f := newFixture(t)

	if err := f.monitor.SetMinScore(101); err == nil {
		t.Error("SetMinScore(101) should fail")
	}
	if err := f.monitor.SetMinScore(-1); err == nil {
		t.Error("SetMinScore(-1) should fail")
	}
	if err := f.monitor.SetMinScore(50); err != nil {
		t.Errorf("SetMinScore(50): %v", err)
	}
	if got := f.store.Settings().MinScore; got != 50 {
		t.Errorf("MinScore = %d, want 50", got)
	}

	if err := f.monitor.SetTradeAmount(0); err == nil {
		t.Error("SetTradeAmount(0) should fail")
	}
	if err := f.monitor.SetTradeAmount(0.25); err != nil {
		t.Errorf("SetTradeAmount(0.25): %v", err)
	}
	if got := f.store.Settings().TradeAmount; got != 0.25 {
		t.Errorf("TradeAmount = %f, want 0.25", got)
	}
}

func TestSetPausedIdempotent(t *testing.T) {
	f := newFixture(t)

	if got := f.monitor.SetPaused(true); !got {
		t.Error("SetPaused(true) should report paused")
	}
	if got := f.monitor.SetPaused(true); !got {
		t.Error("repeated SetPaused(true) should stay paused")
	}
	if got := f.monitor.SetPaused(false); got {
		t.Error("SetPaused(false) should report running")
	}
}

func TestCloseTradeUnknownMint(t *testing.T) {
	f := newFixture(t)
	if _, ok := f.monitor.CloseTrade("nope"); ok {
		t.Error("closing an unknown mint should report false")
	}
}

func TestCloseTradeUsesLastMark(t *testing.T) {
	f := newFixture(t)
	tel := buyTelemetry("mint-1")
	tel.UsdMarketCap = 10000
	f.fetcher.telemetry["mint-1"] = tel

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")
	f.alerter.waitAlert(t)

	closed, ok := f.monitor.CloseTrade("mint-1")
	if !ok {
		t.Fatal("expected close to succeed")
	}
	if closed.Reason != models.ReasonManual {
		t.Errorf("reason = %s, want manual", closed.Reason)
	}
	if closed.ExitMcap != 10000 {
		t.Errorf("ExitMcap = %f, want 10000", closed.ExitMcap)
	}
}

func TestHealthSnapshot(t *testing.T) {
	f := newFixture(t)
	f.store.SetConnected(true)
	f.fetcher.telemetry["mint-1"] = buyTelemetry("mint-1")

	f.monitor.HandleSignature(context.Background(), "sig-1")
	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")
	f.alerter.waitAlert(t)

	h := f.monitor.Health()
	if !h.Connected {
		t.Error("Connected should be true")
	}
	if h.Received != 1 || h.Alerts != 1 || h.OpenCount != 1 {
		t.Errorf("health = %+v", h)
	}
}

func TestResetClearsPortfolioKeepsDedup(t *testing.T) {
	f := newFixture(t)
	f.fetcher.telemetry["mint-1"] = buyTelemetry("mint-1")

	f.monitor.HandleResolved(context.Background(), "sig-1", "mint-1")
	f.alerter.waitAlert(t)

	f.monitor.Reset()

	if f.store.OpenCount() != 0 {
		t.Error("Reset should close out the portfolio")
	}
	f.monitor.HandleResolved(context.Background(), "sig-2", "mint-1")
	if got := f.fetcher.callCount("mint-1"); got != 1 {
		t.Errorf("fetch count after reset = %d, dedup history should survive", got)
	}
}
