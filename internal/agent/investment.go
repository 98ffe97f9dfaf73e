package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	ctxmgr "github.com/redskulldevv/omni-agi/internal/context"
	"github.com/redskulldevv/omni-agi/internal/eventbus"
	"github.com/redskulldevv/omni-agi/internal/learning"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/reasoning"
	"github.com/redskulldevv/omni-agi/internal/store"
	"github.com/redskulldevv/omni-agi/internal/supervisor"
	"github.com/redskulldevv/omni-agi/internal/wallet"
	"go.uber.org/zap"
)

// InvestmentCycle runs one pass of the investment loop. For each asset in
// the latest market context it decides on an action, checks it against
// the risk strategy and executes the trades that pass.
func (a *Agent) InvestmentCycle(ctx context.Context) supervisor.Result {
	if a.deps.Wallet == nil {
		return supervisor.Done()
	}

	market, err := a.refreshMarket(ctx)
	if err != nil {
		return supervisor.Classify(err)
	}
	if len(market.Prices) == 0 {
		a.logger.Debug("no market data, skipping investment cycle")
		return supervisor.Done()
	}

	balance, err := a.deps.Wallet.GetBalance(ctx)
	if err != nil {
		return supervisor.Classify(err)
	}

	assets := make([]string, 0, len(market.Prices))
	for asset := range market.Prices {
		assets = append(assets, asset)
	}
	sort.Strings(assets)

	trades := 0
	for _, asset := range assets {
		if err := ctx.Err(); err != nil {
			return supervisor.AbortErr(err)
		}
		traded, err := a.consider(ctx, asset, market.Sentiment, balance)
		if err != nil {
			return supervisor.Classify(err)
		}
		if traded {
			trades++
			if balance, err = a.deps.Wallet.GetBalance(ctx); err != nil {
				return supervisor.Classify(err)
			}
		}
	}

	a.publish(ctx, "investment", eventbus.CycleCompleted, map[string]interface{}{
		"assets": len(assets),
		"trades": trades,
	})
	return supervisor.Done()
}

// refreshMarket pulls from the feed when there is one, otherwise returns the
// current market context.
func (a *Agent) refreshMarket(ctx context.Context) (ctxmgr.MarketData, error) {
	if a.deps.Market != nil {
		data, err := a.deps.Market.Market(ctx)
		if err != nil {
			return ctxmgr.MarketData{}, fmt.Errorf("market feed: %w", err)
		}
		a.deps.Contexts.Add(data)
		return data, nil
	}
	c, ok := a.deps.Contexts.Get(ctxmgr.Market)
	if !ok {
		return ctxmgr.MarketData{}, nil
	}
	data, _ := c.Payload.(ctxmgr.MarketData)
	return data, nil
}

// consider decides on one asset and trades when the decision survives the
// risk check. It reports whether a trade was filled or submitted.
func (a *Agent) consider(ctx context.Context, asset string, sentiment, balance float64) (bool, error) {
	prices, volumes := a.series(asset)
	decision, err := a.deps.Decisions.Decide(ctx, reasoning.MarketAction, map[string]interface{}{
		"asset":     asset,
		"prices":    prices,
		"volumes":   volumes,
		"sentiment": sentiment,
	}, &reasoning.Constraints{
		ValueLimits: map[string]reasoning.Limit{"sentiment": {Min: -1, Max: 1}},
	})
	if err != nil {
		return false, err
	}
	a.archiveDecision(ctx, decision)

	if decision.Action == "hold" || !reasoning.Validate(decision, reasoning.Criteria{MinConfidence: a.cfg.MinConfidence}) {
		return false, nil
	}

	params := wallet.TradeParams{Action: decision.Action, Asset: asset}
	switch decision.Action {
	case "buy":
		params.Amount = balance * a.cfg.TradeFraction
	case "sell":
		params.Amount = a.position(asset)
	}
	if params.Amount <= 0 {
		return false, nil
	}

	risk, err := a.deps.Decisions.Decide(ctx, reasoning.RiskAssessment, map[string]interface{}{
		"drawdown": drawdown(prices),
		"exposure": a.exposure(balance, params),
	}, nil)
	if err != nil {
		return false, err
	}
	a.archiveDecision(ctx, risk)
	if risk.Action == "reduce" && params.Action == "buy" {
		a.logger.Info("trade blocked by risk check",
			zap.String("asset", asset),
			zap.Float64("confidence", risk.Confidence))
		return false, nil
	}

	return a.trade(ctx, decision, params)
}

func (a *Agent) trade(ctx context.Context, decision reasoning.Decision, params wallet.TradeParams) (bool, error) {
	result, err := a.deps.Wallet.ExecuteTrade(ctx, params)
	if err != nil {
		a.learnTrade(ctx, decision, params, wallet.TradeResult{Status: wallet.StatusRejected, Error: err.Error()})
		return false, err
	}

	a.deps.Contexts.Add(ctxmgr.TransactionData{
		Chain:  a.deps.Wallet.Chain(),
		Action: params.Action,
		Asset:  params.Asset,
		Amount: params.Amount,
		TxHash: result.TxHash,
		Status: string(result.Status),
		Error:  result.Error,
	})
	if a.deps.Archive != nil {
		if err := a.deps.Archive.RecordTrade(ctx, store.Trade{
			Chain:      a.deps.Wallet.Chain(),
			Action:     params.Action,
			Asset:      params.Asset,
			Amount:     params.Amount,
			Status:     string(result.Status),
			TxHash:     result.TxHash,
			Error:      result.Error,
			DecisionID: decision.ID,
		}); err != nil {
			a.logger.Warn("archive trade failed", zap.Error(err))
		}
	}
	a.learnTrade(ctx, decision, params, result)

	if result.Status == wallet.StatusRejected {
		a.logger.Info("trade rejected",
			zap.String("asset", params.Asset),
			zap.String("reason", result.Error))
		return false, nil
	}

	a.track(params)
	summary := fmt.Sprintf("%s %.6g %s on %s (confidence %.2f)",
		strings.ToUpper(params.Action), params.Amount, params.Asset, a.deps.Wallet.Chain(), decision.Confidence)
	a.remember(ctx, summary, memory.Episodic, memory.High,
		memory.Tags(summary, "trade", params.Asset),
		map[string]interface{}{"decision_id": decision.ID, "tx_hash": result.TxHash})
	a.publish(ctx, "investment", eventbus.TradeExecuted, map[string]interface{}{
		"asset":   params.Asset,
		"action":  params.Action,
		"amount":  params.Amount,
		"status":  string(result.Status),
		"tx_hash": result.TxHash,
	})
	if a.deps.Social != nil {
		a.deps.Social.PostUpdate(ctx, "Trade executed: "+summary)
	}
	return true, nil
}

func (a *Agent) learnTrade(ctx context.Context, d reasoning.Decision, p wallet.TradeParams, r wallet.TradeResult) {
	score := 0.0
	if r.Status != wallet.StatusRejected {
		score = d.Confidence
	}
	a.learn(ctx, learning.NewExperience{
		Type:   "trade",
		Action: p.Action,
		Context: map[string]interface{}{
			"asset": p.Asset,
			"chain": a.deps.Wallet.Chain(),
		},
		Outcome: map[string]interface{}{
			"status": string(r.Status),
			"amount": p.Amount,
			"error":  r.Error,
		},
		SuccessScore: score,
		Importance:   learning.Importance(0.8),
	})
}

func (a *Agent) archiveDecision(ctx context.Context, d reasoning.Decision) {
	if a.deps.Archive == nil {
		return
	}
	if err := a.deps.Archive.SaveDecision(ctx, d); err != nil {
		a.logger.Warn("archive decision failed", zap.String("decision", d.ID), zap.Error(err))
	}
}

// series builds the price and volume history of asset from market contexts.
func (a *Agent) series(asset string) (prices, volumes []float64) {
	for _, c := range a.deps.Contexts.History(ctxmgr.Market, a.cfg.PriceWindow) {
		data, ok := c.Payload.(ctxmgr.MarketData)
		if !ok {
			continue
		}
		if p, ok := data.Prices[asset]; ok {
			prices = append(prices, p)
		}
		if v, ok := data.Volumes[asset]; ok {
			volumes = append(volumes, v)
		}
	}
	return prices, volumes
}

// drawdown is the fall of the last price from the series peak.
func drawdown(prices []float64) float64 {
	if len(prices) == 0 {
		return 0
	}
	peak := prices[0]
	for _, p := range prices {
		if p > peak {
			peak = p
		}
	}
	if peak <= 0 {
		return 0
	}
	return (peak - prices[len(prices)-1]) / peak
}

func (a *Agent) position(asset string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.positions[asset]
}

// exposure is the share of the book held in assets after p.
func (a *Agent) exposure(balance float64, p wallet.TradeParams) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	var held float64
	for _, v := range a.positions {
		held += v
	}
	if p.Action == "buy" {
		held += p.Amount
		balance -= p.Amount
	} else {
		held -= p.Amount
		balance += p.Amount
	}
	total := held + balance
	if total <= 0 {
		return 0
	}
	return held / total
}

func (a *Agent) track(p wallet.TradeParams) {
	a.mu.Lock()
	defer a.mu.Unlock()
	switch p.Action {
	case "buy":
		a.positions[p.Asset] += p.Amount
	case "sell":
		a.positions[p.Asset] -= p.Amount
		if a.positions[p.Asset] <= 0 {
			delete(a.positions, p.Asset)
		}
	}
}
