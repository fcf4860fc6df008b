// Package resolver turns raw creation-event signatures into token mints.
//
// A creation transaction references many accounts; the mint is identified
// heuristically as the first account that is not a known infrastructure
// identity and decodes to a full 32-byte public key.
package resolver

import (
	"context"
	"errors"
	"time"

	"github.com/mr-tron/base58"

	"mintwatch/internal/logger"
)

// ErrRateLimited must be wrapped by TransactionSource implementations when
// the upstream rejects a call for throttling reasons. It is the only error
// class the resolver retries.
var ErrRateLimited = errors.New("rate limited")

// TransactionSource is the external lookup capability.
type TransactionSource interface {
	// AccountKeys returns the account identifiers referenced by the
	// transaction with the given signature.
	AccountKeys(ctx context.Context, signature string) ([]string, error)
}

// infrastructureKeys are system identities that appear in every creation
// transaction and can never be the mint.
var infrastructureKeys = map[string]bool{
	"6EF8rrecthR5Dkzon8Nwu78hRvfCKubJ14M5uBEwF6P":  true, // pump.fun program
	"CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM": true, // pump.fun fee account
	"TSLvdd1pWpHVjahSpsvCXUbgwsL3JAcvokwaKt1eokM":  true, // pump.fun mint authority
	"11111111111111111111111111111111":             true, // system program
	"TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA":  true, // token program
	"ATokenGPvbdGVxr1b2hvZbsiqW5xWH25efTNsLJA8knL": true, // associated token program
	"metaqbxxUerdq28cj1RbAWkYQm3ybzjb6a8bt518x1s":  true, // metaplex metadata
	"ComputeBudget111111111111111111111111111111":  true, // compute budget program
	"SysvarRent111111111111111111111111111111111":  true, // rent sysvar
}

// minKeyLength is the shortest base58 form a 32-byte key can take.
const minKeyLength = 32

// Resolver resolves signatures with bounded retries under rate limiting.
type Resolver struct {
	source  TransactionSource
	backoff Backoff
}

// New creates a Resolver. maxAttempts bounds rate-limit retries; base is the
// linear backoff unit (attempt × base between retries).
func New(source TransactionSource, maxAttempts int, base time.Duration) *Resolver {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	return &Resolver{
		source: source,
		backoff: Backoff{
			Base:        base,
			Multiplier:  1,
			MaxAttempts: maxAttempts,
		},
	}
}

// Resolve maps a signature to a token mint. Returns ok=false when the lookup
// fails, the attempts are exhausted, or no account qualifies; failures are
// never propagated, since one unresolved event must not halt the queue.
func (r *Resolver) Resolve(ctx context.Context, signature string) (string, bool) {
	for attempt := 1; attempt <= r.backoff.MaxAttempts; attempt++ {
		keys, err := r.source.AccountKeys(ctx, signature)
		if err != nil {
			if errors.Is(err, ErrRateLimited) && attempt < r.backoff.MaxAttempts {
				delay := r.backoff.Delay(attempt)
				logger.Debug("Rate limited resolving %s, retrying in %v (attempt %d/%d)",
					signature, delay, attempt, r.backoff.MaxAttempts)
				select {
				case <-ctx.Done():
					return "", false
				case <-time.After(delay):
				}
				continue
			}
			logger.Debug("Failed to resolve %s: %v", signature, err)
			return "", false
		}
		return pickMint(keys)
	}
	return "", false
}

// pickMint returns the first plausible mint among the account keys.
func pickMint(keys []string) (string, bool) {
	for _, key := range keys {
		if len(key) < minKeyLength || infrastructureKeys[key] {
			continue
		}
		raw, err := base58.Decode(key)
		if err != nil || len(raw) != 32 {
			continue
		}
		return key, true
	}
	return "", false
}
