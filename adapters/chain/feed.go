// Package chain reads recent incoming tips from an Ethereum JSON-RPC node.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/layer-3/basetips/core"
	"github.com/layer-3/basetips/ports"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

const (
	// ScanDepth is how many of the latest blocks are searched
	ScanDepth = 20

	DefaultLimit = 10
	MaxLimit     = 50
)

// Block is the part of a block the feed needs
type Block struct {
	Number       uint64
	Time         uint64
	Transactions []*Transaction
}

// Transaction is a value transfer seen in a block
type Transaction struct {
	Hash  common.Hash
	From  common.Address
	To    *common.Address
	Value *big.Int
}

// Backend is the read-only RPC surface the feed uses
type Backend interface {
	BlockNumber(ctx context.Context) (uint64, error)
	BlockByNumber(ctx context.Context, number uint64) (*Block, error)
	ReceiptSucceeded(ctx context.Context, hash common.Hash) (bool, error)
}

// Feed implements ports.TipFeed by scanning the latest blocks
type Feed struct {
	backend Backend
	price   decimal.Decimal
	logger  zerolog.Logger
	now     func() time.Time
	locate  func(tx *Transaction) string
}

// NewFeed creates a feed. ethUSD is the price used for USD estimates.
func NewFeed(backend Backend, ethUSD decimal.Decimal, logger zerolog.Logger) *Feed {
	return &Feed{
		backend: backend,
		price:   ethUSD,
		logger:  logger,
		now:     time.Now,
		locate:  tableFor,
	}
}

var _ ports.TipFeed = &Feed{}

// RecentTips returns successful incoming transfers to address, newest first.
// Blocks that cannot be read are skipped; only failing to read the chain head
// is an error.
func (f *Feed) RecentTips(ctx context.Context, address string, limit int) ([]core.Tip, error) {
	if !common.IsHexAddress(address) {
		return nil, core.ErrInvalidAddress
	}
	to := common.HexToAddress(address)
	limit = ClampLimit(limit)

	head, err := f.backend.BlockNumber(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read block number: %w", err)
	}

	var (
		mu   sync.Mutex
		tips []core.Tip
	)
	g, gctx := errgroup.WithContext(ctx)
	for i := uint64(0); i < ScanDepth && i <= head; i++ {
		number := head - i
		g.Go(func() error {
			block, err := f.backend.BlockByNumber(gctx, number)
			if err != nil {
				f.logger.Debug().Err(err).Uint64("block", number).Msg("skipping unreadable block")
				return nil
			}
			found := f.scanBlock(gctx, block, to)

			mu.Lock()
			tips = append(tips, found...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(tips, func(i, j int) bool {
		if tips[i].Timestamp != tips[j].Timestamp {
			return tips[i].Timestamp > tips[j].Timestamp
		}
		return tips[i].BlockNumber > tips[j].BlockNumber
	})
	if len(tips) > limit {
		tips = tips[:limit]
	}

	return tips, nil
}

func (f *Feed) scanBlock(ctx context.Context, block *Block, to common.Address) []core.Tip {
	var tips []core.Tip
	for _, tx := range block.Transactions {
		if tx.To == nil || *tx.To != to || tx.Value == nil || tx.Value.Sign() <= 0 {
			continue
		}

		ok, err := f.backend.ReceiptSucceeded(ctx, tx.Hash)
		if err != nil {
			f.logger.Debug().Err(err).Str("tx", tx.Hash.Hex()).Msg("skipping transaction without receipt")
			continue
		}
		if !ok {
			continue
		}

		eth := WeiToEth(tx.Value)
		ts := time.Unix(int64(block.Time), 0)
		tips = append(tips, core.Tip{
			ID:          tx.Hash.Hex(),
			Location:    f.locate(tx),
			Amount:      eth.String() + " ETH",
			AmountInEth: eth.String(),
			AmountInUSD: USDValue(eth, f.price),
			Time:        TimeAgo(f.now(), ts),
			Hash:        tx.Hash.Hex(),
			From:        tx.From.Hex(),
			To:          tx.To.Hex(),
			BlockNumber: block.Number,
			Timestamp:   ts.Unix(),
		})
	}
	return tips
}

// tableFor picks a stable demo location from the transaction hash
func tableFor(tx *Transaction) string {
	return fmt.Sprintf("Table %d", int(tx.Hash[len(tx.Hash)-1])%5+1)
}

// ClampLimit bounds a requested page size
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// WeiToEth converts a wei amount to ether
func WeiToEth(wei *big.Int) decimal.Decimal {
	return decimal.NewFromBigInt(wei, -18)
}

// USDValue formats an estimated dollar value like "≈ $12.00"
func USDValue(eth, price decimal.Decimal) string {
	return "≈ $" + eth.Mul(price).StringFixed(2)
}

// TimeAgo renders the elapsed time between then and now
func TimeAgo(now, then time.Time) string {
	diff := now.Sub(then)
	if diff < 0 {
		diff = 0
	}

	seconds := int(diff / time.Second)
	minutes := seconds / 60
	hours := minutes / 60
	days := hours / 24

	switch {
	case days > 0:
		return plural(days, "day")
	case hours > 0:
		return plural(hours, "hour")
	case minutes > 0:
		return plural(minutes, "minute")
	default:
		return plural(seconds, "second")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s ago", n, unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// depositTxType marks OP-stack deposit transactions, which go-ethereum's
// block decoder rejects
const depositTxType = 0x7e

// EthBackend adapts an ethclient.Client to Backend. Blocks and receipts are
// read over raw JSON-RPC so OP-stack chains such as Base decode
type EthBackend struct {
	client  *ethclient.Client
	chainID *big.Int
}

// Dial connects to an RPC endpoint and resolves its chain id
func Dial(ctx context.Context, rpcURL string) (*EthBackend, error) {
	client, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial rpc: %w", err)
	}
	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read chain id: %w", err)
	}

	return &EthBackend{
		client:  client,
		chainID: chainID,
	}, nil
}

// ChainID returns the chain the backend is connected to
func (b *EthBackend) ChainID() *big.Int {
	return new(big.Int).Set(b.chainID)
}

// BlockNumber returns the latest block number
func (b *EthBackend) BlockNumber(ctx context.Context) (uint64, error) {
	return b.client.BlockNumber(ctx)
}

type rpcBlock struct {
	Number       hexutil.Uint64   `json:"number"`
	Timestamp    hexutil.Uint64   `json:"timestamp"`
	Transactions []rpcTransaction `json:"transactions"`
}

type rpcTransaction struct {
	Type  hexutil.Uint64  `json:"type"`
	Hash  common.Hash     `json:"hash"`
	From  common.Address  `json:"from"`
	To    *common.Address `json:"to"`
	Value *hexutil.Big    `json:"value"`
}

type rpcReceipt struct {
	Status hexutil.Uint64 `json:"status"`
}

// BlockByNumber fetches a block with its transactions. Deposit transactions
// are dropped
func (b *EthBackend) BlockByNumber(ctx context.Context, number uint64) (*Block, error) {
	var raw *rpcBlock
	err := b.client.Client().CallContext(ctx, &raw, "eth_getBlockByNumber", hexutil.EncodeUint64(number), true)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, ethereum.NotFound
	}

	out := &Block{Number: uint64(raw.Number), Time: uint64(raw.Timestamp)}
	for _, tx := range raw.Transactions {
		if tx.Type == depositTxType || tx.Value == nil {
			continue
		}
		out.Transactions = append(out.Transactions, &Transaction{
			Hash:  tx.Hash,
			From:  tx.From,
			To:    tx.To,
			Value: tx.Value.ToInt(),
		})
	}
	return out, nil
}

// ReceiptSucceeded reports whether the transaction executed successfully
func (b *EthBackend) ReceiptSucceeded(ctx context.Context, hash common.Hash) (bool, error) {
	var raw *rpcReceipt
	if err := b.client.Client().CallContext(ctx, &raw, "eth_getTransactionReceipt", hash); err != nil {
		return false, err
	}
	if raw == nil {
		return false, ethereum.NotFound
	}
	return uint64(raw.Status) == types.ReceiptStatusSuccessful, nil
}

// Close releases the RPC connection
func (b *EthBackend) Close() {
	b.client.Close()
}
