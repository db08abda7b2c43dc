package ports

import "github.com/layer-3/basetips/core"

// ChallengeVerifier checks a signed SIWE message against the expected nonce
type ChallengeVerifier interface {
	Verify(message, signature, expectedNonce string) (*core.Challenge, error)
}
