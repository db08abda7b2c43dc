package core

import "time"

// Session is the record carried in the encrypted session cookie
type Session struct {
	Nonce   string `json:"nonce,omitempty"`   // Unconsumed SIWE nonce, if any
	Address string `json:"address,omitempty"` // Checksummed address of the verified account
	ChainID int    `json:"chainId,omitempty"` // Chain the signature was scoped to
}

// Authenticated reports whether the session carries a verified identity
func (s *Session) Authenticated() bool {
	return s != nil && s.Address != ""
}

// Identity returns the verified identity of the session, or nil if anonymous
func (s *Session) Identity() *Identity {
	if !s.Authenticated() {
		return nil
	}
	return &Identity{Address: s.Address, ChainID: s.ChainID}
}

// Identity is a verified account
type Identity struct {
	Address string `json:"address"`
	ChainID int    `json:"chainId"`
}

// ChallengeParams are the inputs for building a SIWE challenge message
type ChallengeParams struct {
	Domain    string
	Address   string
	Statement string
	URI       string
	Version   string
	ChainID   int
	Nonce     string
	IssuedAt  time.Time // Zero means now
	ExpiresAt time.Time // Zero means no expiration
}

// Challenge is a parsed and signature-checked SIWE message
type Challenge struct {
	Domain  string
	Address string // Checksummed form of the signer
	ChainID int
	Nonce   string
}

// VerifyResult is the outcome of a verification attempt.
// On failure only OK and Error are set.
type VerifyResult struct {
	OK      bool   `json:"ok"`
	Address string `json:"address,omitempty"`
	ChainID int    `json:"chainId,omitempty"`
	Error   string `json:"error,omitempty"`

	// Cause is the specific reason for a failure, never sent to clients.
	Cause error `json:"-"`
}

// Verified builds a successful result
func Verified(c *Challenge) VerifyResult {
	return VerifyResult{OK: true, Address: c.Address, ChainID: c.ChainID}
}

// Rejected builds a failed result that hides the cause behind ErrInvalidSIWE
func Rejected(cause error) VerifyResult {
	return VerifyResult{Error: ErrInvalidSIWE.Error(), Cause: cause}
}
