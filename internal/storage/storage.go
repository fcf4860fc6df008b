// Package storage provides SQLite-backed archival of closed trades and
// dispatched alerts. The archive is write-mostly history; live state lives in
// the JSON snapshot owned by internal/state.
package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"mintwatch/internal/models"
)

// Archive wraps a SQLite database for all history persistence.
type Archive struct {
	db *sql.DB
}

// New opens or creates the SQLite database at dbPath.
// An empty dbPath defaults to $TMPDIR/mintwatch/history.db.
func New(dbPath string) (*Archive, error) {
	if dbPath == "" {
		dbPath = filepath.Join(os.TempDir(), "mintwatch", "history.db")
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // single writer; WAL allows concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, fmt.Errorf("failed to set WAL mode: %w", err)
	}
	a := &Archive{db: db}
	if err := a.createTables(); err != nil {
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return a, nil
}

// Close closes the underlying database connection.
func (a *Archive) Close() error {
	return a.db.Close()
}

func (a *Archive) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS closed_trades (
			id          TEXT PRIMARY KEY,
			mint        TEXT NOT NULL,
			symbol      TEXT,
			entry_mcap  REAL NOT NULL,
			exit_mcap   REAL NOT NULL,
			peak_mcap   REAL NOT NULL,
			sol_amount  REAL NOT NULL,
			score       INTEGER NOT NULL,
			pnl_sol     REAL NOT NULL,
			pnl_usd     REAL NOT NULL,
			pnl_pct     REAL NOT NULL,
			reason      TEXT NOT NULL,
			entry_time  INTEGER NOT NULL,
			exit_time   INTEGER NOT NULL,
			duration_ms INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS alerts (
			id         TEXT PRIMARY KEY,
			mint       TEXT NOT NULL,
			kind       TEXT NOT NULL,
			score      INTEGER,
			detail     TEXT,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_closed_trades_exit_time ON closed_trades(exit_time)`,
		`CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at)`,
	}
	for _, stmt := range stmts {
		if _, err := a.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// ArchiveTrade records a finished paper trade.
func (a *Archive) ArchiveTrade(ct models.ClosedTrade) error {
	_, err := a.db.Exec(`
		INSERT INTO closed_trades
			(id, mint, symbol, entry_mcap, exit_mcap, peak_mcap, sol_amount,
			 score, pnl_sol, pnl_usd, pnl_pct, reason, entry_time, exit_time, duration_ms)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		uuid.New().String(), ct.Mint, ct.Symbol, ct.EntryMcap, ct.ExitMcap, ct.PeakMcap,
		ct.SolAmount, ct.Score, ct.PnlSOL, ct.PnlUSD, ct.PnlPct, string(ct.Reason),
		ct.EntryTime.UnixNano(), ct.ExitTime.UnixNano(), ct.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("failed to insert closed trade: %w", err)
	}
	return nil
}

// RecordAlert records a dispatched alert.
func (a *Archive) RecordAlert(mint, kind string, score int, detail string) error {
	_, err := a.db.Exec(`
		INSERT INTO alerts (id, mint, kind, score, detail, created_at)
		VALUES (?,?,?,?,?,?)`,
		uuid.New().String(), mint, kind, score, detail, time.Now().UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// LifetimeSummary aggregates all archived trades, beyond the bounded
// closed-trade list kept in the live snapshot.
type LifetimeSummary struct {
	Trades      int
	Wins        int
	TotalPnlSOL float64
	TotalPnlUSD float64
}

// Lifetime returns aggregate results over the full archive.
func (a *Archive) Lifetime() (LifetimeSummary, error) {
	row := a.db.QueryRow(`
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN pnl_pct > 0 THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(pnl_sol), 0),
		       COALESCE(SUM(pnl_usd), 0)
		FROM closed_trades`)

	var s LifetimeSummary
	if err := row.Scan(&s.Trades, &s.Wins, &s.TotalPnlSOL, &s.TotalPnlUSD); err != nil {
		return LifetimeSummary{}, fmt.Errorf("failed to aggregate closed trades: %w", err)
	}
	return s, nil
}

// RecentTrades returns the latest n archived trades, newest first.
func (a *Archive) RecentTrades(n int) ([]models.ClosedTrade, error) {
	rows, err := a.db.Query(`
		SELECT mint, symbol, entry_mcap, exit_mcap, peak_mcap, sol_amount,
		       score, pnl_sol, pnl_usd, pnl_pct, reason, entry_time, exit_time, duration_ms
		FROM closed_trades ORDER BY exit_time DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades: %w", err)
	}
	defer rows.Close()

	var trades []models.ClosedTrade
	for rows.Next() {
		var ct models.ClosedTrade
		var reason string
		var entryNano, exitNano int64
		err := rows.Scan(
			&ct.Mint, &ct.Symbol, &ct.EntryMcap, &ct.ExitMcap, &ct.PeakMcap, &ct.SolAmount,
			&ct.Score, &ct.PnlSOL, &ct.PnlUSD, &ct.PnlPct, &reason,
			&entryNano, &exitNano, &ct.DurationMs,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan closed trade: %w", err)
		}
		ct.Reason = models.CloseReason(reason)
		ct.EntryTime = time.Unix(0, entryNano)
		ct.ExitTime = time.Unix(0, exitNano)
		trades = append(trades, ct)
	}
	return trades, rows.Err()
}
