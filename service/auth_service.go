package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/layer-3/basetips/adapters/challenge"
	"github.com/layer-3/basetips/core"
	"github.com/layer-3/basetips/internal/metrics"
	"github.com/layer-3/basetips/ports"
	"github.com/rs/zerolog"
)

// AuthConfig tunes the authentication service
type AuthConfig struct {
	// ConsumedNonceTTL is how long a consumed nonce is remembered. It should
	// be at least the session cookie lifetime so old cookies cannot be replayed.
	ConsumedNonceTTL time.Duration

	// BurnNonceOnFailure clears the session nonce after any failed attempt
	BurnNonceOnFailure bool
}

// AuthService handles the SIWE handshake business logic.
// Sessions are loaded and persisted by the caller.
type AuthService struct {
	verifier ports.ChallengeVerifier
	ledger   ports.NonceLedger
	eventPub ports.EventPublisher
	logger   zerolog.Logger
	metrics  *metrics.Metrics

	consumedTTL        time.Duration
	burnNonceOnFailure bool
	newNonce           func() (string, error)
}

// NewAuthService creates a new authentication service
func NewAuthService(
	verifier ports.ChallengeVerifier,
	ledger ports.NonceLedger,
	eventPub ports.EventPublisher,
	cfg AuthConfig,
	logger zerolog.Logger,
	m *metrics.Metrics,
) *AuthService {
	ttl := cfg.ConsumedNonceTTL
	if ttl <= 0 {
		ttl = 14 * 24 * time.Hour
	}

	return &AuthService{
		verifier:           verifier,
		ledger:             ledger,
		eventPub:           eventPub,
		logger:             logger,
		metrics:            m,
		consumedTTL:        ttl,
		burnNonceOnFailure: cfg.BurnNonceOnFailure,
		newNonce:           challenge.NewNonce,
	}
}

// IssueNonce stores a fresh nonce in the session, replacing any previous one
func (s *AuthService) IssueNonce(ctx context.Context, session *core.Session) (string, error) {
	nonce, err := s.newNonce()
	if err != nil {
		s.metrics.AuthAttempt("nonce", metrics.OutcomeError)
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	session.Nonce = nonce
	s.metrics.AuthAttempt("nonce", metrics.OutcomeOK)

	return nonce, nil
}

// Verify checks a signed challenge against the session nonce. On success the
// session carries the verified identity and its nonce is cleared. On failure
// the session is left as it was unless burning is enabled.
func (s *AuthService) Verify(ctx context.Context, session *core.Session, message, signature string) core.VerifyResult {
	if session == nil {
		return s.reject(ctx, nil, core.ErrNoSession)
	}

	verified, err := s.verifier.Verify(message, signature, session.Nonce)
	if err == nil {
		err = s.consume(ctx, verified.Nonce)
	}
	if err != nil {
		return s.reject(ctx, session, err)
	}

	session.Address = verified.Address
	session.ChainID = verified.ChainID
	session.Nonce = ""

	s.metrics.AuthAttempt("verify", metrics.OutcomeOK)
	s.logger.Info().
		Str("address", verified.Address).
		Int("chainId", verified.ChainID).
		Msg("wallet signed in")

	if err := s.eventPub.PublishLogin(ctx, verified.Address, verified.ChainID); err != nil {
		s.logger.Warn().Err(err).Str("address", verified.Address).Msg("failed to publish login event")
	}

	return core.Verified(verified)
}

func (s *AuthService) consume(ctx context.Context, nonce string) error {
	ok, err := s.ledger.Consume(ctx, nonce, s.consumedTTL)
	if err != nil {
		return fmt.Errorf("failed to consume nonce: %w", err)
	}
	if !ok {
		return core.ErrNonceConsumed
	}
	return nil
}

func (s *AuthService) reject(ctx context.Context, session *core.Session, cause error) core.VerifyResult {
	label := rejectionLabel(cause)
	outcome := metrics.OutcomeRejected
	event := s.logger.Warn()
	if label == "internal" {
		outcome = metrics.OutcomeError
		event = s.logger.Error()
	}
	s.metrics.AuthAttempt("verify", outcome)
	s.metrics.Rejection(label)
	event.Err(cause).Str("cause", label).Msg("siwe verification failed")

	if s.burnNonceOnFailure && session != nil && session.Nonce != "" {
		if _, err := s.ledger.Consume(ctx, session.Nonce, s.consumedTTL); err != nil {
			s.logger.Error().Err(err).Msg("failed to burn nonce")
		}
		session.Nonce = ""
	}

	return core.Rejected(cause)
}

func rejectionLabel(err error) string {
	switch {
	case errors.Is(err, core.ErrMalformedChallenge):
		return "malformed"
	case errors.Is(err, core.ErrNonceMismatch):
		return "nonce_mismatch"
	case errors.Is(err, core.ErrNonceConsumed):
		return "nonce_consumed"
	case errors.Is(err, core.ErrSignatureMismatch):
		return "signature_mismatch"
	case errors.Is(err, core.ErrChallengeExpired):
		return "expired"
	case errors.Is(err, core.ErrDomainMismatch):
		return "domain"
	case errors.Is(err, core.ErrNoSession):
		return "no_session"
	}
	return "internal"
}

// Me returns the verified identity of the session, or nil when anonymous
func (s *AuthService) Me(session *core.Session) *core.Identity {
	return session.Identity()
}

// Logout forgets everything the session knows. It succeeds for anonymous sessions.
func (s *AuthService) Logout(ctx context.Context, session *core.Session) {
	if session == nil {
		return
	}

	if session.Authenticated() {
		if err := s.eventPub.PublishLogout(ctx, session.Address); err != nil {
			// The cookie is cleared either way
			s.logger.Warn().Err(err).Str("address", session.Address).Msg("failed to publish logout event")
		}
		s.logger.Info().Str("address", session.Address).Msg("wallet signed out")
	}
	s.metrics.AuthAttempt("logout", metrics.OutcomeOK)

	*session = core.Session{}
}
