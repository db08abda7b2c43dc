package challenge

import (
	"fmt"
	"slices"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/basetips/core"
	"github.com/layer-3/basetips/ports"
	"github.com/spruceid/siwe-go"
)

// Verifier checks signed SIWE messages
type Verifier struct {
	allowedDomains []string
}

// NewVerifier creates a verifier. An empty domain list accepts any domain.
func NewVerifier(allowedDomains ...string) ports.ChallengeVerifier {
	return &Verifier{allowedDomains: allowedDomains}
}

// Verify parses the message, checks the nonce and the validity window, and
// recovers the signer of the exact submitted text. Every failure wraps one of
// the core challenge errors.
func (v *Verifier) Verify(message, signature, expectedNonce string) (*core.Challenge, error) {
	msg, err := siwe.ParseMessage(message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrMalformedChallenge, err)
	}
	if !ValidNonce(msg.GetNonce()) {
		return nil, fmt.Errorf("%w: bad nonce", core.ErrMalformedChallenge)
	}

	if expectedNonce == "" || msg.GetNonce() != expectedNonce {
		return nil, core.ErrNonceMismatch
	}

	if len(v.allowedDomains) > 0 && !slices.Contains(v.allowedDomains, msg.GetDomain()) {
		return nil, fmt.Errorf("%w: %s", core.ErrDomainMismatch, msg.GetDomain())
	}

	if ok, err := msg.ValidNow(); !ok {
		return nil, fmt.Errorf("%w: %v", core.ErrChallengeExpired, err)
	}

	signer, err := RecoverSigner(message, signature)
	if err != nil {
		return nil, err
	}

	claimed := msg.GetAddress()
	if signer != claimed {
		return nil, fmt.Errorf("%w: signed by %s, claims %s", core.ErrSignatureMismatch, signer.Hex(), claimed.Hex())
	}

	return &core.Challenge{
		Domain:  msg.GetDomain(),
		Address: claimed.Hex(),
		ChainID: msg.GetChainID(),
		Nonce:   msg.GetNonce(),
	}, nil
}

// RecoverSigner returns the address that produced an EIP-191 personal_sign
// signature over message.
func RecoverSigner(message, signature string) (common.Address, error) {
	decodedSig, err := hexutil.Decode(signature)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to decode signature: %w", core.ErrSignatureMismatch)
	}
	if len(decodedSig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be 65 bytes: %w", core.ErrSignatureMismatch)
	}

	// Wallets return v as 27/28; recovery wants 0/1
	if decodedSig[crypto.RecoveryIDOffset] >= 27 {
		decodedSig[crypto.RecoveryIDOffset] -= 27
	}

	pub, err := crypto.SigToPub(accounts.TextHash([]byte(message)), decodedSig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", core.ErrSignatureMismatch)
	}

	return crypto.PubkeyToAddress(*pub), nil
}
