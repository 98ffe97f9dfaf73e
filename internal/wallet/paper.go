package wallet

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// PaperWallet simulates fills against an in-memory balance. Amounts are in
// the chain's native unit; buys move native balance into the asset position.
type PaperWallet struct {
	chain     string
	address   string
	balance   float64
	positions map[string]float64
	mu        sync.Mutex
	logger    *zap.Logger
}

// NewPaperWallet starts a dry-run wallet with the given native balance.
func NewPaperWallet(chain string, balance float64, logger *zap.Logger) *PaperWallet {
	return &PaperWallet{
		chain:     chain,
		address:   "paper-" + chain,
		balance:   balance,
		positions: make(map[string]float64),
		logger:    logger,
	}
}

func (w *PaperWallet) Chain() string   { return w.chain }
func (w *PaperWallet) Address() string { return w.address }

func (w *PaperWallet) GetBalance(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balance, nil
}

// Position returns the simulated holding of asset.
func (w *PaperWallet) Position(asset string) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.positions[asset]
}

func (w *PaperWallet) ExecuteTrade(ctx context.Context, p TradeParams) (TradeResult, error) {
	if err := p.Validate(); err != nil {
		return TradeResult{}, err
	}
	if err := ctx.Err(); err != nil {
		return TradeResult{}, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch strings.ToLower(p.Action) {
	case "buy":
		if p.Amount > w.balance {
			return TradeResult{
				Status: StatusRejected,
				Error:  fmt.Sprintf("insufficient balance: have %g, need %g", w.balance, p.Amount),
			}, nil
		}
		w.balance -= p.Amount
		w.positions[p.Asset] += p.Amount
	case "sell":
		held := w.positions[p.Asset]
		if p.Amount > held {
			return TradeResult{
				Status: StatusRejected,
				Error:  fmt.Sprintf("insufficient %s position: have %g, need %g", p.Asset, held, p.Amount),
			}, nil
		}
		w.positions[p.Asset] = held - p.Amount
		if w.positions[p.Asset] == 0 {
			delete(w.positions, p.Asset)
		}
		w.balance += p.Amount
	}

	hash := "paper-" + uuid.New().String()
	w.logger.Info("paper trade filled",
		zap.String("chain", w.chain),
		zap.String("action", p.Action),
		zap.String("asset", p.Asset),
		zap.Float64("amount", p.Amount),
		zap.Float64("balance", w.balance))
	return TradeResult{Status: StatusFilled, TxHash: hash, Amount: p.Amount}, nil
}
