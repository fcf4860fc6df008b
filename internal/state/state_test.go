package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mintwatch/internal/models"
)

func testDefaults() models.Settings {
	return models.Settings{
		MinScore:     68,
		TradeAmount:  0.1,
		PaperTrading: true,
	}
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, testDefaults())
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	return s
}

func testTrade(mint string) models.Trade {
	return models.Trade{
		Mint:        mint,
		Symbol:      "TEST",
		EntryMcap:   10000,
		CurrentMcap: 10000,
		PeakMcap:    10000,
		SolAmount:   0.1,
		EntryTime:   time.Now(),
		Score:       70,
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	s := newTestStore(t)
	got := s.Settings()
	if got != testDefaults() {
		t.Errorf("Settings() = %+v, want defaults %+v", got, testDefaults())
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, testDefaults())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	s.SetMinScore(80)
	s.MarkSeen("mint-a")
	s.MarkSeen("mint-b")
	if !s.OpenIfAbsent(testTrade("mint-a"), 5) {
		t.Fatal("OpenIfAbsent failed")
	}
	s.RecordEvent()
	s.RecordAlert()

	reloaded, err := New(path, testDefaults())
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Settings().MinScore != 80 {
		t.Errorf("MinScore after reload = %d, want 80", reloaded.Settings().MinScore)
	}
	if reloaded.SeenCount() != 2 {
		t.Errorf("SeenCount after reload = %d, want 2", reloaded.SeenCount())
	}
	if _, ok := reloaded.Trade("mint-a"); !ok {
		t.Error("open trade lost across reload")
	}
	stats := reloaded.Stats()
	if stats.Received != 1 || stats.Alerts != 1 {
		t.Errorf("stats after reload = %+v, want received=1 alerts=1", stats)
	}
}

func TestLoadMergesConfigKeyWise(t *testing.T) {
	// An older snapshot that predates some settings keys keeps defaults for
	// the missing ones.
	path := filepath.Join(t.TempDir(), "state.json")
	old := `{"config": {"minScore": 55}, "seenMints": ["m1"], "stats": {"received": 7, "connected": true}}`
	if err := os.WriteFile(path, []byte(old), 0o644); err != nil {
		t.Fatal(err)
	}

	s, err := New(path, testDefaults())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	got := s.Settings()
	if got.MinScore != 55 {
		t.Errorf("MinScore = %d, want persisted 55", got.MinScore)
	}
	if got.TradeAmount != 0.1 {
		t.Errorf("TradeAmount = %f, want default 0.1", got.TradeAmount)
	}
	if !got.PaperTrading {
		t.Error("PaperTrading should keep default true")
	}
	if s.Stats().Received != 7 {
		t.Errorf("Received = %d, want 7", s.Stats().Received)
	}
	// Connectivity is runtime-only and never survives a restart.
	if s.Stats().Connected {
		t.Error("Connected must reset to false on load")
	}
}

func TestLoadCorruptFileFallsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	s, err := New(path, testDefaults())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if s.Settings() != testDefaults() {
		t.Error("corrupt snapshot should fall back to defaults")
	}
}

func TestMarkSeenDedup(t *testing.T) {
	s := newTestStore(t)
	if !s.MarkSeen("mint-1") {
		t.Error("first MarkSeen should return true")
	}
	if s.MarkSeen("mint-1") {
		t.Error("second MarkSeen should return false")
	}
	if s.SeenCount() != 1 {
		t.Errorf("SeenCount = %d, want 1", s.SeenCount())
	}
}

func TestSeenTrimHighToLowWater(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i <= SeenHighWater; i++ {
		s.MarkSeen(fmt.Sprintf("mint-%05d", i))
	}

	if got := s.SeenCount(); got != SeenLowWater {
		t.Fatalf("SeenCount after trim = %d, want %d", got, SeenLowWater)
	}
	// Newest entries survive, oldest are dropped.
	if s.MarkSeen(fmt.Sprintf("mint-%05d", SeenHighWater)) {
		t.Error("newest entry should still be in the dedup set")
	}
	if !s.MarkSeen("mint-00000") {
		t.Error("oldest entry should have been dropped from the dedup set")
	}
}

func TestOpenIfAbsent(t *testing.T) {
	s := newTestStore(t)

	if !s.OpenIfAbsent(testTrade("mint-1"), 2) {
		t.Fatal("first open should succeed")
	}
	if s.OpenIfAbsent(testTrade("mint-1"), 2) {
		t.Error("duplicate open for the same mint must be a no-op")
	}
	if s.OpenCount() != 1 {
		t.Errorf("OpenCount = %d, want 1", s.OpenCount())
	}

	if !s.OpenIfAbsent(testTrade("mint-2"), 2) {
		t.Fatal("second open should succeed")
	}
	if s.OpenIfAbsent(testTrade("mint-3"), 2) {
		t.Error("open beyond cap must be rejected")
	}
}

func TestCloseTradeNewestFirst(t *testing.T) {
	s := newTestStore(t)
	s.OpenIfAbsent(testTrade("mint-1"), 5)
	s.OpenIfAbsent(testTrade("mint-2"), 5)

	closeFn := func(reason models.CloseReason) func(models.Trade) models.ClosedTrade {
		return func(tr models.Trade) models.ClosedTrade {
			return models.ClosedTrade{Trade: tr, ExitTime: time.Now(), Reason: reason}
		}
	}

	if _, ok := s.CloseTrade("mint-1", closeFn(models.ReasonManual)); !ok {
		t.Fatal("close mint-1 failed")
	}
	if _, ok := s.CloseTrade("mint-2", closeFn(models.ReasonGraduated)); !ok {
		t.Fatal("close mint-2 failed")
	}
	if _, ok := s.CloseTrade("mint-2", closeFn(models.ReasonManual)); ok {
		t.Error("closing an already-closed mint must return false")
	}

	closed := s.ClosedTrades()
	if len(closed) != 2 {
		t.Fatalf("ClosedTrades len = %d, want 2", len(closed))
	}
	if closed[0].Mint != "mint-2" || closed[1].Mint != "mint-1" {
		t.Errorf("closed order = [%s %s], want newest first [mint-2 mint-1]",
			closed[0].Mint, closed[1].Mint)
	}
}

func TestClosedTradesCapped(t *testing.T) {
	s := newTestStore(t)
	for i := 0; i < MaxClosedTrades+10; i++ {
		mint := fmt.Sprintf("mint-%d", i)
		s.OpenIfAbsent(testTrade(mint), MaxClosedTrades+20)
		s.CloseTrade(mint, func(tr models.Trade) models.ClosedTrade {
			return models.ClosedTrade{Trade: tr, Reason: models.ReasonManual}
		})
	}
	if got := len(s.ClosedTrades()); got != MaxClosedTrades {
		t.Errorf("closed trades = %d, want capped at %d", got, MaxClosedTrades)
	}
	// The newest close must be retained.
	if s.ClosedTrades()[0].Mint != fmt.Sprintf("mint-%d", MaxClosedTrades+9) {
		t.Error("newest closed trade missing after trim")
	}
}

func TestResetKeepsSettings(t *testing.T) {
	s := newTestStore(t)
	s.SetMinScore(90)
	s.OpenIfAbsent(testTrade("mint-1"), 5)
	s.RecordEvent()
	s.SetConnected(true)

	s.Reset()

	if s.OpenCount() != 0 {
		t.Error("Reset must clear open trades")
	}
	if len(s.ClosedTrades()) != 0 {
		t.Error("Reset must clear closed trades")
	}
	if s.Stats().Received != 0 {
		t.Error("Reset must clear counters")
	}
	if !s.Stats().Connected {
		t.Error("Reset must not drop the connectivity flag")
	}
	if s.Settings().MinScore != 90 {
		t.Error("Reset must leave settings untouched")
	}
}

func TestSnapshotFileShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.json")
	s, err := New(path, testDefaults())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.MarkSeen("mint-1")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read snapshot: %v", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("snapshot is not valid JSON: %v", err)
	}
	for _, key := range []string{"config", "seenMints", "openTrades", "closedTrades", "stats"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("snapshot missing top-level key %q", key)
		}
	}
}
