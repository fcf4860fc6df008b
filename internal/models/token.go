// Package models defines the core domain entities: token telemetry, score
// results, and paper trades.
package models

import (
	"errors"
	"time"
)

// Verdict is the categorical trade signal derived from a token's score.
type Verdict string

const (
	VerdictBuy   Verdict = "BUY"
	VerdictWatch Verdict = "WATCH"
	VerdictSkip  Verdict = "SKIP"
)

// Telemetry is a point-in-time snapshot of a token's on-chain and social
// state, as reported by the metadata API. Optional fields default to
// zero/false at the fetch boundary, so consumers never see raw partial input.
type Telemetry struct {
	Mint         string    `json:"mint"`
	Symbol       string    `json:"symbol"`
	Name         string    `json:"name"`
	SolInCurve   float64   `json:"sol_in_curve"`
	UsdMarketCap float64   `json:"usd_market_cap"`
	AgeSeconds   int64     `json:"age_seconds"`
	ReplyCount   int       `json:"reply_count"`
	HasTwitter   bool      `json:"has_twitter"`
	HasTelegram  bool      `json:"has_telegram"`
	HasWebsite   bool      `json:"has_website"`
	Featured     bool      `json:"featured"`
	Complete     bool      `json:"complete"`
	FetchedAt    time.Time `json:"fetched_at"`
}

// Validate checks telemetry field constraints.
func (t *Telemetry) Validate() error {
	if t.Mint == "" {
		return errors.New("mint must not be empty")
	}
	if t.SolInCurve < 0 {
		return errors.New("sol in curve must not be negative")
	}
	if t.UsdMarketCap < 0 {
		return errors.New("usd market cap must not be negative")
	}
	if t.AgeSeconds < 0 {
		return errors.New("age must not be negative")
	}
	if t.ReplyCount < 0 {
		return errors.New("reply count must not be negative")
	}
	return nil
}

// ScoreResult is the immutable outcome of scoring one telemetry observation.
type ScoreResult struct {
	Telemetry

	Score       int     `json:"score"`
	Verdict     Verdict `json:"verdict"`
	VelocitySOL float64 `json:"velocity_sol"`
	BondingPct  float64 `json:"bonding_pct"`
	Whale       bool    `json:"whale"`
}
