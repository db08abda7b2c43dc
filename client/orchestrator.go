// Package client drives the Sign-In with Ethereum handshake against a
// basetips server on behalf of a wallet.
package client

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/layer-3/basetips/adapters/challenge"
	"github.com/layer-3/basetips/core"
	"github.com/rs/zerolog"
)

// DefaultSignTimeout bounds how long a wallet may take to answer a signature request
const DefaultSignTimeout = 2 * time.Minute

// Wallet is the signing capability of a wallet connector
type Wallet interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	SignMessage(ctx context.Context, account common.Address, message string) (string, error)
}

// Config describes the challenge the orchestrator asks the wallet to sign
type Config struct {
	Domain      string
	URI         string
	ChainID     int
	Statement   string
	SignTimeout time.Duration
}

// Orchestrator runs the nonce, sign and verify steps. Calls are serialized.
type Orchestrator struct {
	api    *API
	wallet Wallet
	cfg    Config
	logger zerolog.Logger

	run sync.Mutex // held for a whole SignIn or Logout

	mu       sync.RWMutex
	state    State
	account  *common.Address
	identity *core.Identity
	lastErr  error
}

// NewOrchestrator creates an orchestrator in the Idle state
func NewOrchestrator(api *API, wallet Wallet, cfg Config, logger zerolog.Logger) *Orchestrator {
	if cfg.ChainID == 0 {
		cfg.ChainID = 8453
	}
	if cfg.Statement == "" {
		cfg.Statement = challenge.DefaultStatement
	}
	if cfg.SignTimeout <= 0 {
		cfg.SignTimeout = DefaultSignTimeout
	}

	return &Orchestrator{
		api:    api,
		wallet: wallet,
		cfg:    cfg,
		logger: logger,
		state:  Idle,
	}
}

// State returns the current handshake state
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Identity returns the verified identity, or nil unless Authenticated
func (o *Orchestrator) Identity() *core.Identity {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.state != Authenticated {
		return nil
	}
	identity := *o.identity
	return &identity
}

// Err returns the error that moved the orchestrator to Failed
func (o *Orchestrator) Err() error {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.lastErr
}

// SignIn runs the full handshake. Starting from Failed or Authenticated
// begins again from Idle.
func (o *Orchestrator) SignIn(ctx context.Context) (*core.Identity, error) {
	o.run.Lock()
	defer o.run.Unlock()

	if s := o.State(); s == Failed || s == Authenticated {
		if err := o.transition(Idle); err != nil {
			return nil, err
		}
	}

	if err := o.transition(Connecting); err != nil {
		return nil, err
	}
	account, err := o.connect(ctx)
	if err != nil {
		return nil, o.fail(err)
	}

	if err := o.transition(NonceRequested); err != nil {
		return nil, err
	}
	nonce, err := o.api.Nonce(ctx)
	if err != nil {
		return nil, o.fail(err)
	}

	message, err := challenge.Build(core.ChallengeParams{
		Domain:    o.cfg.Domain,
		Address:   account.Hex(),
		Statement: o.cfg.Statement,
		URI:       o.cfg.URI,
		Version:   challenge.Version,
		ChainID:   o.cfg.ChainID,
		Nonce:     nonce,
	})
	if err != nil {
		return nil, o.fail(fmt.Errorf("failed to build challenge: %w", err))
	}

	if err := o.transition(AwaitingSignature); err != nil {
		return nil, err
	}
	signature, err := o.sign(ctx, account, message)
	if err != nil {
		return nil, o.fail(err)
	}

	if err := o.transition(Verifying); err != nil {
		return nil, err
	}
	result, err := o.api.Verify(ctx, message, signature)
	if err != nil {
		return nil, o.fail(err)
	}
	if !result.OK {
		return nil, o.fail(fmt.Errorf("%w: %s", core.ErrInvalidSIWE, result.Error))
	}

	o.mu.Lock()
	o.identity = &core.Identity{Address: result.Address, ChainID: result.ChainID}
	o.lastErr = nil
	o.mu.Unlock()

	if err := o.transition(Authenticated); err != nil {
		return nil, err
	}
	o.logger.Info().Str("address", result.Address).Int("chainId", result.ChainID).Msg("signed in")

	return o.Identity(), nil
}

// Logout clears the server session and returns to Idle
func (o *Orchestrator) Logout(ctx context.Context) error {
	o.run.Lock()
	defer o.run.Unlock()

	if err := o.api.Logout(ctx); err != nil {
		return err
	}

	if o.State() != Idle {
		if err := o.transition(Idle); err != nil {
			return err
		}
	}

	o.mu.Lock()
	o.identity = nil
	o.lastErr = nil
	o.mu.Unlock()

	return nil
}

func (o *Orchestrator) connect(ctx context.Context) (common.Address, error) {
	o.mu.RLock()
	cached := o.account
	o.mu.RUnlock()
	if cached != nil {
		return *cached, nil
	}

	accounts, err := o.wallet.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, asWalletError(err)
	}
	if len(accounts) == 0 {
		return common.Address{}, fmt.Errorf("%w: no accounts", core.ErrWalletRejected)
	}

	account := accounts[0]
	o.mu.Lock()
	o.account = &account
	o.mu.Unlock()

	return account, nil
}

// sign asks the wallet for a signature. The result is abandoned once the
// timeout or ctx expires, even if the wallet never returns.
func (o *Orchestrator) sign(ctx context.Context, account common.Address, message string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SignTimeout)
	defer cancel()

	type signed struct {
		signature string
		err       error
	}
	done := make(chan signed, 1)

	go func() {
		signature, err := o.wallet.SignMessage(ctx, account, message)
		done <- signed{signature, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return "", asWalletError(res.err)
		}
		return res.signature, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: signature request abandoned: %w", core.ErrWalletRejected, ctx.Err())
	}
}

func (o *Orchestrator) transition(to State) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !CanTransition(o.state, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, o.state, to)
	}
	o.logger.Debug().Stringer("from", o.state).Stringer("to", to).Msg("sign-in state")
	o.state = to
	return nil
}

func (o *Orchestrator) fail(err error) error {
	o.mu.Lock()
	o.lastErr = err
	o.identity = nil
	o.mu.Unlock()

	if terr := o.transition(Failed); terr != nil {
		return errors.Join(err, terr)
	}
	o.logger.Warn().Err(err).Msg("sign-in failed")
	return err
}

func asWalletError(err error) error {
	if errors.Is(err, core.ErrWalletRejected) {
		return err
	}
	return fmt.Errorf("%w: %v", core.ErrWalletRejected, err)
}
