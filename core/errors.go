package core

import "errors"

var (
	// ErrInvalidSIWE is the only verification failure clients ever see
	ErrInvalidSIWE = errors.New("Invalid SIWE")

	ErrMalformedChallenge = errors.New("malformed challenge")
	ErrSignatureMismatch  = errors.New("signature does not match challenge address")
	ErrNonceMismatch      = errors.New("nonce does not match session")
	ErrNonceConsumed      = errors.New("nonce already consumed")
	ErrChallengeExpired   = errors.New("challenge is outside its validity window")
	ErrDomainMismatch     = errors.New("challenge domain is not allowed")

	ErrWalletRejected = errors.New("wallet rejected the request")
	ErrTransport      = errors.New("transport error")

	ErrNoSession      = errors.New("no session")
	ErrInvalidAddress = errors.New("invalid ethereum address")
)
