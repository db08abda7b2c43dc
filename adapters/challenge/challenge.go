// Package challenge builds and verifies Sign-In with Ethereum (EIP-4361)
// messages.
package challenge

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/basetips/core"
	"github.com/spruceid/siwe-go"
)

const (
	// DefaultStatement is shown to the user by their wallet
	DefaultStatement = "Sign in with Ethereum to basetips"

	// Version is the only EIP-4361 message version
	Version = "1"

	nonceBytes = 16
)

// EIP-4361 nonces are at least 8 alphanumeric characters
var nonceRe = regexp.MustCompile(`^[a-zA-Z0-9]{8,}$`)

// ValidNonce reports whether s is acceptable as a SIWE nonce
func ValidNonce(s string) bool {
	return nonceRe.MatchString(s)
}

// NewNonce returns a random hex nonce. Hex keeps it within the
// alphanumeric alphabet EIP-4361 requires.
func NewNonce() (string, error) {
	b := make([]byte, nonceBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Build renders the canonical EIP-4361 text for the given parameters.
// The address is embedded in checksummed form and the nonce verbatim.
func Build(p core.ChallengeParams) (string, error) {
	if !common.IsHexAddress(p.Address) {
		return "", fmt.Errorf("%w: %q", core.ErrInvalidAddress, p.Address)
	}
	if !ValidNonce(p.Nonce) {
		return "", fmt.Errorf("%w: nonce must be at least 8 alphanumeric characters", core.ErrMalformedChallenge)
	}
	if p.Version != "" && p.Version != Version {
		return "", fmt.Errorf("unsupported message version %q", p.Version)
	}

	issuedAt := p.IssuedAt
	if issuedAt.IsZero() {
		issuedAt = time.Now()
	}

	options := map[string]interface{}{
		"chainId":  p.ChainID,
		"issuedAt": issuedAt.UTC().Format(time.RFC3339),
	}
	if !p.ExpiresAt.IsZero() {
		options["expirationTime"] = p.ExpiresAt.UTC().Format(time.RFC3339)
	}
	if p.Statement != "" {
		options["statement"] = p.Statement
	}

	address := common.HexToAddress(p.Address).Hex()
	msg, err := siwe.InitMessage(p.Domain, address, p.URI, p.Nonce, options)
	if err != nil {
		return "", fmt.Errorf("failed to build challenge: %w", err)
	}

	return msg.String(), nil
}
