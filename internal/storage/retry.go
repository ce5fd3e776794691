package storage

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/ashita-ai/akashi/internal/apperr"
)

// WithRetry executes fn, retrying up to maxRetries times on ErrConflict.
// Retries use jittered exponential backoff starting at baseDelay, matching
// the belief-version CAS policy (max 5 retries after the first attempt,
// base 50ms, exponential).
func WithRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = fn()
		if err == nil || !errors.Is(err, apperr.ErrConflict) {
			return err
		}
		if attempt == maxRetries {
			break
		}
		jitter := time.Duration(rand.Int64N(int64(baseDelay))) //nolint:gosec // jitter doesn't need crypto-strength randomness
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(baseDelay + jitter):
		}
		baseDelay *= 2
	}
	return err
}

// DefaultMaxRetries and DefaultBaseDelay are the belief-version CAS retry
// parameters.
const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = 50 * time.Millisecond
)
