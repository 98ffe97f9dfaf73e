package wallet

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/redskulldevv/omni-agi/internal/resilience"
	"go.uber.org/zap"
)

// weiPerEther is 10^18.
var weiPerEther = new(big.Float).SetInt(new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))

// ChainConfig points a wallet at a chain.
type ChainConfig struct {
	Address string        `json:"address"`
	RPCURLs []string      `json:"rpc_urls"`
	Timeout time.Duration `json:"timeout"`
}

// EthereumWallet reads balances and broadcasts signed transactions over
// Ethereum JSON-RPC.
type EthereumWallet struct {
	address string
	rpc     *rpcClient
	guard   *resilience.Guard
	logger  *zap.Logger
}

// NewEthereumWallet creates an Ethereum wallet. guard may be nil.
func NewEthereumWallet(cfg ChainConfig, guard *resilience.Guard, logger *zap.Logger) *EthereumWallet {
	return &EthereumWallet{
		address: cfg.Address,
		rpc:     newRPCClient(cfg.Timeout, cfg.RPCURLs...),
		guard:   guard,
		logger:  logger,
	}
}

func (w *EthereumWallet) Chain() string   { return "ethereum" }
func (w *EthereumWallet) Address() string { return w.address }

// GetBalance returns the native balance in ETH.
func (w *EthereumWallet) GetBalance(ctx context.Context) (float64, error) {
	var hexWei string
	err := guarded(ctx, w.guard, "get_balance", func(ctx context.Context) error {
		return w.rpc.call(ctx, "eth_getBalance", []interface{}{w.address, "latest"}, &hexWei)
	})
	if err != nil {
		return 0, err
	}
	wei, ok := new(big.Int).SetString(strings.TrimPrefix(hexWei, "0x"), 16)
	if !ok {
		return 0, fmt.Errorf("eth_getBalance: bad quantity %q", hexWei)
	}
	eth, _ := new(big.Float).Quo(new(big.Float).SetInt(wei), weiPerEther).Float64()
	return eth, nil
}

// ExecuteTrade broadcasts p.RawTx. Without a signed transaction the trade is
// rejected rather than failed.
func (w *EthereumWallet) ExecuteTrade(ctx context.Context, p TradeParams) (TradeResult, error) {
	if err := p.Validate(); err != nil {
		return TradeResult{}, err
	}
	if p.RawTx == "" {
		return TradeResult{Status: StatusRejected, Error: errUnsigned}, nil
	}
	raw := p.RawTx
	if !strings.HasPrefix(raw, "0x") {
		raw = "0x" + raw
	}

	var hash string
	err := guarded(ctx, w.guard, "send_transaction", func(ctx context.Context) error {
		return w.rpc.call(ctx, "eth_sendRawTransaction", []interface{}{raw}, &hash)
	})
	if err != nil {
		return TradeResult{}, err
	}
	w.logger.Info("transaction submitted",
		zap.String("chain", w.Chain()),
		zap.String("action", p.Action),
		zap.String("asset", p.Asset),
		zap.String("tx", hash))
	return TradeResult{Status: StatusSubmitted, TxHash: hash, Amount: p.Amount}, nil
}

// guarded runs fn through guard when one is configured.
func guarded(ctx context.Context, guard *resilience.Guard, op string, fn func(context.Context) error) error {
	if guard == nil {
		return fn(ctx)
	}
	return guard.Do(ctx, op, fn)
}
