package wallet

import (
	"context"

	"github.com/redskulldevv/omni-agi/internal/resilience"
	"go.uber.org/zap"
)

const lamportsPerSOL = 1e9

// SolanaWallet reads balances and broadcasts signed transactions over
// Solana JSON-RPC.
type SolanaWallet struct {
	address string
	rpc     *rpcClient
	guard   *resilience.Guard
	logger  *zap.Logger
}

// NewSolanaWallet creates a Solana wallet. guard may be nil.
func NewSolanaWallet(cfg ChainConfig, guard *resilience.Guard, logger *zap.Logger) *SolanaWallet {
	return &SolanaWallet{
		address: cfg.Address,
		rpc:     newRPCClient(cfg.Timeout, cfg.RPCURLs...),
		guard:   guard,
		logger:  logger,
	}
}

func (w *SolanaWallet) Chain() string   { return "solana" }
func (w *SolanaWallet) Address() string { return w.address }

type solanaBalance struct {
	Value uint64 `json:"value"`
}

// GetBalance returns the native balance in SOL.
func (w *SolanaWallet) GetBalance(ctx context.Context) (float64, error) {
	var bal solanaBalance
	err := guarded(ctx, w.guard, "get_balance", func(ctx context.Context) error {
		return w.rpc.call(ctx, "getBalance", []interface{}{w.address}, &bal)
	})
	if err != nil {
		return 0, err
	}
	return float64(bal.Value) / lamportsPerSOL, nil
}

// ExecuteTrade broadcasts the base64 encoded p.RawTx.
func (w *SolanaWallet) ExecuteTrade(ctx context.Context, p TradeParams) (TradeResult, error) {
	if err := p.Validate(); err != nil {
		return TradeResult{}, err
	}
	if p.RawTx == "" {
		return TradeResult{Status: StatusRejected, Error: errUnsigned}, nil
	}

	var sig string
	err := guarded(ctx, w.guard, "send_transaction", func(ctx context.Context) error {
		return w.rpc.call(ctx, "sendTransaction",
			[]interface{}{p.RawTx, map[string]string{"encoding": "base64"}}, &sig)
	})
	if err != nil {
		return TradeResult{}, err
	}
	w.logger.Info("transaction submitted",
		zap.String("chain", w.Chain()),
		zap.String("action", p.Action),
		zap.String("asset", p.Asset),
		zap.String("tx", sig))
	return TradeResult{Status: StatusSubmitted, TxHash: sig, Amount: p.Amount}, nil
}
