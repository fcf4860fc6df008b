// Package scoring maps token telemetry to a score, a verdict, and auxiliary
// flags. Score is a pure function: no I/O, no clock reads, fixed weights.
package scoring

import (
	"math"

	"mintwatch/internal/models"
)

// Domain-tuned constants.
const (
	// GraduationSOL is the curve reserve at which a token migrates out of
	// its bonding mechanism.
	GraduationSOL = 85.0

	// WhaleCurveSOL is the curve-reserve threshold for the whale flag.
	// Detection is reserve-based: a single large holder and a crowded curve
	// are indistinguishable without transfer history, and the reserve signal
	// needs no extra fetch.
	WhaleCurveSOL = 30.0

	// Verdict thresholds. The live minimum-score gate is separate runtime
	// configuration; these fix the verdict label only.
	BuyThreshold   = 68
	WatchThreshold = 45
)

// Score component caps and weights.
const (
	velocityWeight = 6.0
	velocityCap    = 28.0

	twitterBonus  = 8.0
	telegramBonus = 6.0
	websiteBonus  = 4.0

	engagementCap = 12.0

	featuredBonus = 8.0
)

// Score evaluates one telemetry observation.
//
// A missing creation timestamp yields age 0 and therefore the maximal
// freshness bonus. This skews partially-fetched tokens upward; kept as-is
// because the freshness default and the metadata default are the same value.
func Score(t models.Telemetry) models.ScoreResult {
	ageMinutes := float64(t.AgeSeconds) / 60.0

	velocity := t.SolInCurve / math.Max(0.1, ageMinutes)
	velocity = math.Round(velocity*1000) / 1000

	bondingPct := math.Min(99, t.SolInCurve/GraduationSOL*100)
	bondingPct = math.Round(bondingPct*10) / 10

	score := math.Min(velocityCap, velocity*velocityWeight)

	if t.HasTwitter {
		score += twitterBonus
	}
	if t.HasTelegram {
		score += telegramBonus
	}
	if t.HasWebsite {
		score += websiteBonus
	}

	score += math.Min(engagementCap, float64(t.ReplyCount)/25.0*engagementCap)

	if t.Featured {
		score += featuredBonus
	}

	switch {
	case t.AgeSeconds < 60:
		score += 14
	case t.AgeSeconds < 120:
		score += 10
	case t.AgeSeconds < 300:
		score += 5
	}

	if t.SolInCurve > 5 {
		score += 5
	}
	if t.SolInCurve > 15 {
		score += 5
	}
	if t.SolInCurve > 28 {
		score += 4
	}

	final := int(math.Round(math.Max(0, math.Min(100, score))))

	return models.ScoreResult{
		Telemetry:   t,
		Score:       final,
		Verdict:     verdictFor(final),
		VelocitySOL: velocity,
		BondingPct:  bondingPct,
		Whale:       t.SolInCurve >= WhaleCurveSOL,
	}
}

func verdictFor(score int) models.Verdict {
	switch {
	case score >= BuyThreshold:
		return models.VerdictBuy
	case score >= WatchThreshold:
		return models.VerdictWatch
	default:
		return models.VerdictSkip
	}
}
