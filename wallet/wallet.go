// Package wallet provides a local-key wallet connector for signing SIWE
// challenges outside a browser
package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/layer-3/basetips/core"
)

// KeyWallet holds an Ethereum private key and exposes the account and
// personal_sign operations a browser wallet would
type KeyWallet struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// Load accepts either a hex private key or a path to a file holding one
func Load(keyOrPath string) (*KeyWallet, error) {
	if _, err := os.Stat(keyOrPath); err == nil {
		return FromKeyFile(keyOrPath)
	}
	return FromHex(keyOrPath)
}

// FromKeyFile loads a wallet from a hex-encoded private key file
func FromKeyFile(path string) (*KeyWallet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading key file: %w", err)
	}
	return FromHex(strings.TrimSpace(string(data)))
}

// FromHex creates a wallet from a hex-encoded private key
func FromHex(hexKey string) (*KeyWallet, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(hexKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("parsing private key: %w", err)
	}
	return FromKey(key), nil
}

// Generate creates a new random wallet
func Generate() (*KeyWallet, error) {
	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("generating key: %w", err)
	}
	return FromKey(key), nil
}

// FromKey wraps an existing private key
func FromKey(key *ecdsa.PrivateKey) *KeyWallet {
	return &KeyWallet{
		privateKey: key,
		address:    crypto.PubkeyToAddress(key.PublicKey),
	}
}

// Address returns the wallet's Ethereum address
func (w *KeyWallet) Address() common.Address {
	return w.address
}

// RequestAccounts returns the single account this wallet controls
func (w *KeyWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return []common.Address{w.address}, nil
}

// SignMessage signs a message using EIP-191 personal_sign. Requests for an
// account the wallet does not hold are rejected
func (w *KeyWallet) SignMessage(ctx context.Context, account common.Address, message string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if account != w.address {
		return "", fmt.Errorf("%w: unknown account %s", core.ErrWalletRejected, account.Hex())
	}
	return Sign(w.privateKey, message)
}

// Sign produces a personal_sign signature with v = 27 or 28
func Sign(key *ecdsa.PrivateKey, message string) (string, error) {
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), key)
	if err != nil {
		return "", fmt.Errorf("signing message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27

	return hexutil.Encode(sig), nil
}

// Key exposes the private key of w. Intended for tests and tooling that sign
// without going through the connector interface
func Key(w *KeyWallet) *ecdsa.PrivateKey {
	return w.privateKey
}
