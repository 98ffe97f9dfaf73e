package wallet

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redskulldevv/omni-agi/internal/apperr"
	"github.com/redskulldevv/omni-agi/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// rpcServer answers JSON-RPC calls from a method -> result table.
func rpcServer(t *testing.T, results map[string]interface{}, calls *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls != nil {
			calls.Add(1)
		}
		var req rpcRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		resp := map[string]interface{}{"jsonrpc": "2.0", "id": req.ID}
		if result, ok := results[req.Method]; ok {
			resp["result"] = result
		} else {
			resp["error"] = map[string]interface{}{"code": -32601, "message": "method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestEthereumBalance(t *testing.T) {
	// 1.5 ETH
	srv := rpcServer(t, map[string]interface{}{"eth_getBalance": "0x14d1120d7b160000"}, nil)
	w := NewEthereumWallet(ChainConfig{Address: "0xabc", RPCURLs: []string{srv.URL}}, nil, zap.NewNop())

	bal, err := w.GetBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 1.5, bal, 1e-9)
}

func TestRPCFallsBackToSecondEndpoint(t *testing.T) {
	dead := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusBadGateway)
	}))
	defer dead.Close()
	live := rpcServer(t, map[string]interface{}{"eth_getBalance": "0x0"}, nil)

	w := NewEthereumWallet(ChainConfig{Address: "0xabc", RPCURLs: []string{dead.URL, live.URL}}, nil, zap.NewNop())
	bal, err := w.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Zero(t, bal)
}

func TestEthereumTradeSubmitsSignedTx(t *testing.T) {
	srv := rpcServer(t, map[string]interface{}{"eth_sendRawTransaction": "0xdeadbeef"}, nil)
	w := NewEthereumWallet(ChainConfig{Address: "0xabc", RPCURLs: []string{srv.URL}}, nil, zap.NewNop())

	res, err := w.ExecuteTrade(context.Background(), TradeParams{Action: "buy", Asset: "ETH", Amount: 0.1, RawTx: "f86b"})
	require.NoError(t, err)
	assert.Equal(t, StatusSubmitted, res.Status)
	assert.Equal(t, "0xdeadbeef", res.TxHash)
}

func TestUnsignedTradeIsRejected(t *testing.T) {
	var calls atomic.Int32
	srv := rpcServer(t, map[string]interface{}{}, &calls)
	w := NewSolanaWallet(ChainConfig{Address: "So1", RPCURLs: []string{srv.URL}}, nil, zap.NewNop())

	res, err := w.ExecuteTrade(context.Background(), TradeParams{Action: "sell", Asset: "SOL", Amount: 1})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)
	assert.NotEmpty(t, res.Error)
	assert.Zero(t, calls.Load(), "nothing should reach the node")
}

func TestInvalidTradeParams(t *testing.T) {
	w := NewPaperWallet("solana", 10, zap.NewNop())
	_, err := w.ExecuteTrade(context.Background(), TradeParams{Action: "hodl", Asset: "SOL", Amount: 1})
	assert.True(t, apperr.IsValidation(err))
	_, err = w.ExecuteTrade(context.Background(), TradeParams{Action: "buy", Asset: "SOL", Amount: 0})
	assert.True(t, apperr.IsValidation(err))
}

func TestSolanaBalanceThroughGuard(t *testing.T) {
	srv := rpcServer(t, map[string]interface{}{
		"getBalance": map[string]interface{}{"context": map[string]int{"slot": 1}, "value": 2500000000},
	}, nil)
	guard := resilience.NewGuard("solana", resilience.DefaultConfig(), zap.NewNop())
	w := NewSolanaWallet(ChainConfig{Address: "So1", RPCURLs: []string{srv.URL}}, guard, zap.NewNop())

	bal, err := w.GetBalance(context.Background())
	require.NoError(t, err)
	assert.InDelta(t, 2.5, bal, 1e-9)
}

func TestRPCErrorBecomesServiceError(t *testing.T) {
	srv := rpcServer(t, map[string]interface{}{}, nil)
	cfg := resilience.DefaultConfig()
	cfg.Retry = resilience.RetryConfig{MaxRetries: 1, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond}
	guard := resilience.NewGuard("ethereum", cfg, zap.NewNop())
	w := NewEthereumWallet(ChainConfig{Address: "0xabc", RPCURLs: []string{srv.URL}}, guard, zap.NewNop())

	_, err := w.GetBalance(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrService)
	var rpcErr *rpcError
	assert.ErrorAs(t, err, &rpcErr)
}

func TestPaperWalletBook(t *testing.T) {
	ctx := context.Background()
	w := NewPaperWallet("ethereum", 1, zap.NewNop())

	res, err := w.ExecuteTrade(ctx, TradeParams{Action: "buy", Asset: "PEPE", Amount: 0.4})
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, res.Status)
	assert.NotEmpty(t, res.TxHash)

	bal, _ := w.GetBalance(ctx)
	assert.InDelta(t, 0.6, bal, 1e-9)
	assert.InDelta(t, 0.4, w.Position("PEPE"), 1e-9)

	res, err = w.ExecuteTrade(ctx, TradeParams{Action: "buy", Asset: "PEPE", Amount: 5})
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, res.Status)

	res, err = w.ExecuteTrade(ctx, TradeParams{Action: "sell", Asset: "PEPE", Amount: 0.4})
	require.NoError(t, err)
	assert.Equal(t, StatusFilled, res.Status)
	assert.Zero(t, w.Position("PEPE"))
}

func TestCachedWalletServesRepeatReads(t *testing.T) {
	var calls atomic.Int32
	srv := rpcServer(t, map[string]interface{}{
		"eth_getBalance":         "0xde0b6b3a7640000", // 1 ETH
		"eth_sendRawTransaction": "0x01",
	}, &calls)
	inner := NewEthereumWallet(ChainConfig{Address: "0xabc", RPCURLs: []string{srv.URL}}, nil, zap.NewNop())
	w, err := NewCachedWallet(inner, time.Minute)
	require.NoError(t, err)
	defer w.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		bal, err := w.GetBalance(ctx)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, bal, 1e-9)
	}
	assert.Equal(t, int32(1), calls.Load())

	_, err = w.ExecuteTrade(ctx, TradeParams{Action: "buy", Asset: "ETH", Amount: 1, RawTx: "0x01"})
	require.NoError(t, err)
	_, err = w.GetBalance(ctx)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load(), "trade should invalidate the cached balance")
}

func TestNewSelectsWallet(t *testing.T) {
	w, err := New(Config{Chain: "solana", DryRun: true, PaperBalance: 3}, nil, zap.NewNop())
	require.NoError(t, err)
	defer w.Close()
	assert.Equal(t, "solana", w.Chain())
	bal, err := w.GetBalance(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3.0, bal)

	_, err = New(Config{Chain: "dogecoin"}, nil, zap.NewNop())
	assert.True(t, apperr.IsValidation(err))
}
