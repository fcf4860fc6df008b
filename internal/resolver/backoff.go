package resolver

import (
	"math"
	"time"
)

// Backoff is a retry delay policy shared by call sites that talk to
// rate-limited services. Multiplier <= 1 grows the delay linearly with the
// attempt number; larger multipliers grow it geometrically.
type Backoff struct {
	Base        time.Duration
	Multiplier  float64
	Cap         time.Duration
	MaxAttempts int
}

// Delay returns the wait before retrying after the given 1-based attempt.
func (b Backoff) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	var d time.Duration
	if b.Multiplier <= 1 {
		d = b.Base * time.Duration(attempt)
	} else {
		d = time.Duration(float64(b.Base) * math.Pow(b.Multiplier, float64(attempt-1)))
	}
	if b.Cap > 0 && d > b.Cap {
		d = b.Cap
	}
	return d
}
