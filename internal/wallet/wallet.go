// Package wallet reads balances and submits caller-signed transactions on
// Ethereum and Solana, with a paper wallet for dry runs.
package wallet

import (
	"context"
	"strings"
	"time"

	"github.com/redskulldevv/omni-agi/internal/apperr"
	"github.com/redskulldevv/omni-agi/internal/resilience"
	"go.uber.org/zap"
)

// Status is the outcome of a trade request.
type Status string

const (
	// StatusSubmitted means the network accepted the transaction.
	StatusSubmitted Status = "submitted"
	// StatusFilled means a simulated trade completed.
	StatusFilled Status = "filled"
	// StatusRejected means the trade was refused before reaching the network.
	StatusRejected Status = "rejected"
)

// TradeParams describes a trade. RawTx, when set, is a transaction already
// signed by the caller: hex for Ethereum, base64 for Solana.
type TradeParams struct {
	Action   string  `json:"action"` // buy | sell
	Asset    string  `json:"asset"`
	Amount   float64 `json:"amount"`
	Slippage float64 `json:"slippage,omitempty"`
	RawTx    string  `json:"raw_tx,omitempty"`
}

// Validate checks the parts every wallet relies on.
func (p TradeParams) Validate() error {
	switch strings.ToLower(p.Action) {
	case "buy", "sell":
	default:
		return apperr.Invalid("unknown trade action %q", p.Action)
	}
	if p.Amount <= 0 {
		return apperr.Invalid("trade amount %v must be positive", p.Amount)
	}
	if p.Asset == "" {
		return apperr.Invalid("trade asset is empty")
	}
	return nil
}

// TradeResult reports what happened to a trade.
type TradeResult struct {
	Status Status  `json:"status"`
	TxHash string  `json:"tx_hash,omitempty"`
	Amount float64 `json:"amount,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// Wallet is the narrow surface the agent trades through.
type Wallet interface {
	Chain() string
	Address() string
	GetBalance(ctx context.Context) (float64, error)
	ExecuteTrade(ctx context.Context, p TradeParams) (TradeResult, error)
}

const errUnsigned = "no signed transaction supplied; signing is not supported"

// Config selects and configures the agent's wallet.
type Config struct {
	Chain        string        `json:"chain"` // ethereum | solana
	DryRun       bool          `json:"dry_run"`
	PaperBalance float64       `json:"paper_balance"`
	CacheTTL     time.Duration `json:"cache_ttl"`
	ChainConfig
}

// New builds the wallet cfg describes, wrapped in a balance cache.
// guard may be nil.
func New(cfg Config, guard *resilience.Guard, logger *zap.Logger) (*CachedWallet, error) {
	var w Wallet
	switch {
	case cfg.DryRun:
		chain := cfg.Chain
		if chain == "" {
			chain = "ethereum"
		}
		w = NewPaperWallet(chain, cfg.PaperBalance, logger)
	case cfg.Chain == "ethereum":
		w = NewEthereumWallet(cfg.ChainConfig, guard, logger)
	case cfg.Chain == "solana":
		w = NewSolanaWallet(cfg.ChainConfig, guard, logger)
	default:
		return nil, apperr.Invalid("unknown wallet chain %q", cfg.Chain)
	}
	return NewCachedWallet(w, cfg.CacheTTL)
}
