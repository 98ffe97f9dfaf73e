package main

import (
	"context"
	"time"

	"github.com/redskulldevv/omni-agi/internal/config"
	"github.com/redskulldevv/omni-agi/internal/embedding"
	"github.com/redskulldevv/omni-agi/internal/eventbus"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/provider"
	"github.com/redskulldevv/omni-agi/internal/rag"
	"github.com/redskulldevv/omni-agi/internal/resilience"
	"github.com/redskulldevv/omni-agi/internal/store"
	"github.com/redskulldevv/omni-agi/internal/vectorstore"
	"github.com/redskulldevv/omni-agi/internal/wallet"
	"go.uber.org/zap"
)

// connectTimeout bounds each optional backend's startup probe.
const connectTimeout = 10 * time.Second

func guardConfig(cfg *config.Config) resilience.Config {
	r := cfg.Resilience
	return resilience.Config{
		Breaker: resilience.BreakerConfig{
			MaxFailures:          r.MaxFailures,
			Timeout:              r.OpenTimeout.D(),
			HalfOpenMaxSuccesses: r.HalfOpenProbes,
		},
		Retry: resilience.RetryConfig{
			MaxRetries:      r.MaxRetries,
			InitialInterval: r.InitialInterval.D(),
			MaxInterval:     r.MaxInterval.D(),
		},
	}
}

func buildReasoner(cfg *config.Config, logger *zap.Logger) *provider.Reasoner {
	router := provider.NewRouter(logger)
	registered := 0
	for _, pc := range cfg.Providers {
		if pc.APIKey == "" {
			logger.Warn("provider has no API key, skipping", zap.String("id", pc.ID))
			continue
		}
		p, err := provider.New(provider.ProviderConfig{
			ID:       pc.ID,
			Type:     pc.Type,
			Name:     pc.Name,
			Endpoint: pc.Endpoint,
			APIKey:   pc.APIKey,
			Models:   pc.Models,
			Timeout:  pc.Timeout.D(),
		}, logger)
		if err != nil {
			logger.Warn("provider unavailable", zap.String("id", pc.ID), zap.Error(err))
			continue
		}
		router.Register(p)
		registered++
	}
	if registered == 0 {
		logger.Warn("no LLM provider configured, running without reasoning service")
		return nil
	}

	gc := guardConfig(cfg)
	gc.RatePerSecond = cfg.LLM.RatePerSecond
	gc.Burst = cfg.LLM.Burst
	return provider.NewReasoner(router, resilience.NewGuard("llm", gc, logger), provider.ReasonerConfig{
		Model:        cfg.LLM.Model,
		MaxTokens:    cfg.LLM.MaxTokens,
		Temperature:  cfg.LLM.Temperature,
		SystemPrompt: cfg.LLM.SystemPrompt,
	}, logger)
}

func buildWallet(cfg *config.Config, logger *zap.Logger) (*wallet.CachedWallet, error) {
	chain := cfg.Wallets.Ethereum
	if cfg.Wallets.Chain == "solana" {
		chain = cfg.Wallets.Solana
	}
	return wallet.New(wallet.Config{
		Chain:        cfg.Wallets.Chain,
		DryRun:       cfg.Wallets.DryRun,
		PaperBalance: cfg.Wallets.PaperBalance,
		CacheTTL:     cfg.Wallets.BalanceCacheTTL.D(),
		ChainConfig: wallet.ChainConfig{
			Address: chain.Address,
			RPCURLs: chain.RPCURLs,
			Timeout: chain.Timeout.D(),
		},
	}, resilience.NewGuard("wallet", guardConfig(cfg), logger), logger)
}

func buildArchive(ctx context.Context, cfg *config.Config, logger *zap.Logger) *store.Store {
	if cfg.Database.Postgres.DSN == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	s, err := store.New(ctx, cfg.Database.Postgres.DSN, logger)
	if err != nil {
		logger.Warn("PostgreSQL unavailable, running without archive", zap.Error(err))
		return nil
	}
	if err := s.Migrate(ctx, cfg.Server.MigrationsDir); err != nil {
		logger.Warn("archive migration failed, running without archive", zap.Error(err))
		s.Close()
		return nil
	}
	return s
}

func buildEventBus(ctx context.Context, cfg *config.Config, logger *zap.Logger) *eventbus.Bus {
	if cfg.Database.Redis.URL == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	bus, err := eventbus.New(ctx, cfg.Database.Redis.URL, logger)
	if err != nil {
		logger.Warn("Redis unavailable, running without event bus", zap.Error(err))
		return nil
	}
	return bus
}

func buildGraph(ctx context.Context, cfg *config.Config, logger *zap.Logger) *memory.GraphStore {
	nc := cfg.Database.Neo4j
	if nc.URI == "" {
		return nil
	}
	g, err := memory.NewGraphStore(nc.URI, nc.User, nc.Password, logger)
	if err != nil {
		logger.Warn("Neo4j unavailable, running without memory graph", zap.Error(err))
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := g.Ping(ctx); err != nil {
		logger.Warn("Neo4j unreachable, running without memory graph", zap.Error(err))
		g.Close(ctx)
		return nil
	}
	return g
}

// buildRecall prefers Qdrant and falls back to an in-process chromem index.
func buildRecall(ctx context.Context, cfg *config.Config, logger *zap.Logger) *rag.Index {
	ec := cfg.Embedding
	if ec.Provider == "" || (ec.Provider == "openai" && ec.APIKey == "") {
		return nil
	}
	embedder, err := embedding.New(embedding.Config{
		Provider:  ec.Provider,
		Endpoint:  ec.Endpoint,
		Model:     ec.Model,
		APIKey:    ec.APIKey,
		Dimension: ec.Dimension,
		Timeout:   ec.Timeout.D(),
	})
	if err != nil {
		logger.Warn("embedding provider unavailable, running without recall", zap.Error(err))
		return nil
	}

	var index vectorstore.Index
	if qc := cfg.Database.Qdrant; qc.Host != "" {
		q, err := vectorstore.NewQdrant(vectorstore.QdrantConfig{Host: qc.Host, Port: qc.Port})
		if err != nil {
			logger.Warn("Qdrant unavailable, using in-process index", zap.Error(err))
		} else {
			index = q
		}
	}
	if index == nil {
		index = vectorstore.NewChromem()
	}

	recall := rag.New(embedder, index, logger)
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	if err := recall.Init(ctx); err != nil {
		logger.Warn("recall index init failed, running without recall", zap.Error(err))
		recall.Close()
		return nil
	}
	return recall
}
