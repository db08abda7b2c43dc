package ports

import (
	"context"
	"time"
)

// NonceLedger remembers consumed SIWE nonces so a nonce verifies at most once,
// even when a client replays an older session cookie.
type NonceLedger interface {
	// Consume atomically marks the nonce as used. It returns false if the
	// nonce had already been consumed.
	Consume(ctx context.Context, nonce string, ttl time.Duration) (bool, error)
}
