// Package state owns the process-wide mutable state: runtime settings, the
// deduplication set, open and closed paper trades, and counters. All access
// goes through Store methods under one mutex; callers never touch the
// underlying snapshot directly.
package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"mintwatch/internal/logger"
	"mintwatch/internal/models"
)

// Collection bounds. The dedup sequence is trimmed from the high-water mark
// down to the low-water mark on save, keeping the newest entries.
const (
	SeenHighWater   = 2000
	SeenLowWater    = 1000
	MaxClosedTrades = 100
)

// Snapshot is the durable layout written to disk after every mutation.
type Snapshot struct {
	Settings     models.Settings          `json:"config"`
	SeenMints    []string                 `json:"seenMints"`
	OpenTrades   map[string]*models.Trade `json:"openTrades"`
	ClosedTrades []models.ClosedTrade     `json:"closedTrades"`
	Stats        models.Stats             `json:"stats"`
}

// persistedSettings mirrors models.Settings with pointer fields so that keys
// absent from an older snapshot file fall back to defaults instead of zero.
type persistedSettings struct {
	MinScore     *int     `json:"minScore"`
	TradeAmount  *float64 `json:"tradeAmount"`
	Paused       *bool    `json:"paused"`
	PaperTrading *bool    `json:"paperTradingEnabled"`
	AlertOnWatch *bool    `json:"alertOnWatch"`
}

type persistedSnapshot struct {
	Settings     persistedSettings        `json:"config"`
	SeenMints    []string                 `json:"seenMints"`
	OpenTrades   map[string]*models.Trade `json:"openTrades"`
	ClosedTrades []models.ClosedTrade     `json:"closedTrades"`
	Stats        models.Stats             `json:"stats"`
}

// Store is the single owner of the system state. It hydrates from the
// snapshot file at startup and flushes after every mutating operation.
type Store struct {
	mu      sync.Mutex
	path    string
	snap    Snapshot
	seenIdx map[string]bool
	started time.Time
}

// New creates a Store hydrated from the snapshot at path, merged over the
// given defaults. A missing or unreadable snapshot file is not an error; the
// store starts from defaults.
func New(path string, defaults models.Settings) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("state path must not be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	s := &Store{
		path: path,
		snap: Snapshot{
			Settings:   defaults,
			OpenTrades: make(map[string]*models.Trade),
		},
		seenIdx: make(map[string]bool),
		started: time.Now(),
	}
	s.load(defaults)
	return s, nil
}

// load merges the persisted snapshot over defaults. The settings sub-object
// merges key-by-key; runtime-only fields are reset regardless of what was
// persisted.
func (s *Store) load(defaults models.Settings) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warn("Failed to read state snapshot %s: %v", s.path, err)
		}
		return
	}

	var p persistedSnapshot
	if err := json.Unmarshal(data, &p); err != nil {
		logger.Warn("Failed to parse state snapshot %s: %v", s.path, err)
		return
	}

	settings := defaults
	if p.Settings.MinScore != nil {
		settings.MinScore = *p.Settings.MinScore
	}
	if p.Settings.TradeAmount != nil {
		settings.TradeAmount = *p.Settings.TradeAmount
	}
	if p.Settings.Paused != nil {
		settings.Paused = *p.Settings.Paused
	}
	if p.Settings.PaperTrading != nil {
		settings.PaperTrading = *p.Settings.PaperTrading
	}
	if p.Settings.AlertOnWatch != nil {
		settings.AlertOnWatch = *p.Settings.AlertOnWatch
	}

	s.snap.Settings = settings
	s.snap.SeenMints = p.SeenMints
	s.snap.ClosedTrades = p.ClosedTrades
	s.snap.Stats = p.Stats
	s.snap.Stats.Connected = false
	if p.OpenTrades != nil {
		s.snap.OpenTrades = p.OpenTrades
	}
	for _, mint := range p.SeenMints {
		s.seenIdx[mint] = true
	}

	logger.Info("Loaded state snapshot: %d seen, %d open, %d closed trades",
		len(s.snap.SeenMints), len(s.snap.OpenTrades), len(s.snap.ClosedTrades))
}

// save trims bounded collections and writes the snapshot atomically.
// Must be called with the mutex held. Persistence failures are logged, never
// fatal; the process continues with in-memory state.
func (s *Store) save() {
	if len(s.snap.SeenMints) > SeenHighWater {
		dropped := s.snap.SeenMints[:len(s.snap.SeenMints)-SeenLowWater]
		s.snap.SeenMints = append([]string(nil), s.snap.SeenMints[len(s.snap.SeenMints)-SeenLowWater:]...)
		for _, mint := range dropped {
			delete(s.seenIdx, mint)
		}
	}
	if len(s.snap.ClosedTrades) > MaxClosedTrades {
		s.snap.ClosedTrades = s.snap.ClosedTrades[:MaxClosedTrades]
	}

	data, err := json.MarshalIndent(&s.snap, "", "  ")
	if err != nil {
		logger.Error("Failed to marshal state snapshot: %v", err)
		return
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		logger.Error("Failed to write state snapshot: %v", err)
		return
	}
	if err := os.Rename(tmp, s.path); err != nil {
		logger.Error("Failed to replace state snapshot: %v", err)
	}
}

// Flush forces a snapshot write, used on graceful shutdown.
func (s *Store) Flush() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.save()
}

// Uptime reports how long this store (and thus the process) has been running.
func (s *Store) Uptime() time.Duration {
	return time.Since(s.started)
}

// MarkSeen records a mint in the dedup set. Returns false if it was already
// present, in which case no state changes.
func (s *Store) MarkSeen(mint string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.seenIdx[mint] {
		return false
	}
	s.seenIdx[mint] = true
	s.snap.SeenMints = append(s.snap.SeenMints, mint)
	s.save()
	return true
}

// SeenCount returns the current size of the dedup sequence.
func (s *Store) SeenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snap.SeenMints)
}

// Settings returns a copy of the current runtime settings.
func (s *Store) Settings() models.Settings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Settings
}

// SetMinScore updates the live minimum-score gate.
func (s *Store) SetMinScore(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Settings.MinScore = n
	s.save()
}

// SetTradeAmount updates the per-trade SOL amount.
func (s *Store) SetTradeAmount(amount float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Settings.TradeAmount = amount
	s.save()
}

// TogglePaused flips the paused flag and returns the new value.
func (s *Store) TogglePaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Settings.Paused = !s.snap.Settings.Paused
	s.save()
	return s.snap.Settings.Paused
}

// ToggleAlertOnWatch flips the watch-alert flag and returns the new value.
func (s *Store) ToggleAlertOnWatch() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Settings.AlertOnWatch = !s.snap.Settings.AlertOnWatch
	s.save()
	return s.snap.Settings.AlertOnWatch
}

// OpenIfAbsent inserts a trade unless one already exists for the mint or the
// open-trade count has reached maxOpen. The cap check and the insert happen
// under one lock acquisition.
func (s *Store) OpenIfAbsent(trade models.Trade, maxOpen int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.snap.OpenTrades[trade.Mint]; exists {
		return false
	}
	if len(s.snap.OpenTrades) >= maxOpen {
		return false
	}
	t := trade
	s.snap.OpenTrades[trade.Mint] = &t
	s.snap.Stats.TradesOpened++
	s.save()
	return true
}

// Trade returns a copy of the open trade for mint, if any.
func (s *Store) Trade(mint string) (models.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.snap.OpenTrades[mint]
	if !ok {
		return models.Trade{}, false
	}
	return *t, true
}

// MutateTrade applies fn to the open trade for mint under the lock and
// persists the result. fn must not block or perform I/O. Returns a copy of
// the trade after mutation.
func (s *Store) MutateTrade(mint string, fn func(*models.Trade)) (models.Trade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.snap.OpenTrades[mint]
	if !ok {
		return models.Trade{}, false
	}
	fn(t)
	s.save()
	return *t, true
}

// CloseTrade removes the open trade for mint and prepends the closed record,
// preserving the newest-first ordering of the closed list.
func (s *Store) CloseTrade(mint string, close func(models.Trade) models.ClosedTrade) (models.ClosedTrade, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.snap.OpenTrades[mint]
	if !ok {
		return models.ClosedTrade{}, false
	}
	closed := close(*t)
	delete(s.snap.OpenTrades, mint)
	s.snap.ClosedTrades = append([]models.ClosedTrade{closed}, s.snap.ClosedTrades...)
	s.snap.Stats.TradesClosed++
	s.save()
	return closed, true
}

// OpenTrades returns copies of all open trades.
func (s *Store) OpenTrades() []models.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	trades := make([]models.Trade, 0, len(s.snap.OpenTrades))
	for _, t := range s.snap.OpenTrades {
		trades = append(trades, *t)
	}
	return trades
}

// OpenCount returns the number of open trades.
func (s *Store) OpenCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.snap.OpenTrades)
}

// ClosedTrades returns copies of the closed trades, newest first.
func (s *Store) ClosedTrades() []models.ClosedTrade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.ClosedTrade(nil), s.snap.ClosedTrades...)
}

// Reset clears open and closed trades and counters. Settings and the dedup
// set are untouched.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	connected := s.snap.Stats.Connected
	s.snap.OpenTrades = make(map[string]*models.Trade)
	s.snap.ClosedTrades = nil
	s.snap.Stats = models.Stats{Connected: connected}
	s.save()
}

// RecordEvent counts a received creation event.
func (s *Store) RecordEvent() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Stats.Received++
	s.snap.Stats.LastEventAt = time.Now()
	s.save()
}

// RecordResolved counts a successfully resolved signature.
func (s *Store) RecordResolved() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Stats.Resolved++
	s.save()
}

// RecordAlert counts a dispatched alert.
func (s *Store) RecordAlert() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Stats.Alerts++
	s.save()
}

// SetConnected updates the feed connectivity flag. Runtime-only; not
// meaningful across restarts.
func (s *Store) SetConnected(connected bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Stats.Connected = connected
}

// Stats returns a copy of the current counters.
func (s *Store) Stats() models.Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Stats
}
