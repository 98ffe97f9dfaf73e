package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redskulldevv/omni-agi/internal/agent"
	"github.com/redskulldevv/omni-agi/internal/api"
	"github.com/redskulldevv/omni-agi/internal/config"
	ctxmgr "github.com/redskulldevv/omni-agi/internal/context"
	"github.com/redskulldevv/omni-agi/internal/gateway"
	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/redskulldevv/omni-agi/internal/learning"
	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/redskulldevv/omni-agi/internal/reasoning"
	"github.com/redskulldevv/omni-agi/internal/supervisor"
	"go.uber.org/zap"
)

func main() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}

	cfgPath := config.Path()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config %s: %v\n", cfgPath, err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Server.LogLevel)
	defer logger.Sync()
	logger.Info("Starting omni", zap.String("config", cfgPath), zap.String("agent", cfg.Agent.Name))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(supervisor.Config{
		CycleTimeout:  cfg.Cognition.CycleTimeout.D(),
		ErrorCooldown: cfg.Cognition.ErrorCooldown.D(),
		MaxRetries:    cfg.Cognition.MaxRetries,
	}, logger)
	defer sup.Close()

	// Cognition core
	memStore := memory.NewStore(memory.Config{
		ShortTermLimit: cfg.Memory.ShortTermLimit,
		LongTermLimit:  cfg.Memory.LongTermLimit,
		DecayInterval:  cfg.Memory.DecayInterval.D(),
		DecayRate:      cfg.Memory.DecayRate,
	}, logger)
	contexts := ctxmgr.NewManager(ctxmgr.Config{
		DefaultTTL:   cfg.Context.TTL.D(),
		HistoryLimit: cfg.Context.HistoryLimit,
	}, logger)
	goals := goal.NewManager(logger)
	learner := learning.NewLearner(learning.Config{MaxExperiences: cfg.Learning.MaxExperiences}, logger)
	decisions := reasoning.NewEngine(reasoning.Config{HistoryLimit: cfg.Learning.DecisionHistoryLimit}, logger)

	deps := agent.Deps{
		Memory:    memStore,
		Contexts:  contexts,
		Goals:     goals,
		Learner:   learner,
		Decisions: decisions,
	}

	// External services; every one of them is optional.
	if reasoner := buildReasoner(cfg, logger); reasoner != nil {
		deps.Reasoner = reasoner
		decisions.Register(reasoning.MarketAction, reasoning.NewAnalyzerStrategy(reasoner))
	} else {
		decisions.Register(reasoning.MarketAction, reasoning.NewMarketStrategy())
	}
	decisions.Register(reasoning.RiskAssessment, reasoning.NewRiskStrategy())

	if w, err := buildWallet(cfg, logger); err != nil {
		logger.Warn("wallet unavailable, investment loop disabled", zap.Error(err))
	} else {
		deps.Wallet = w
		sup.OnClose("wallet", func() error { w.Close(); return nil })
	}

	var apiDeps api.Deps
	if archive := buildArchive(ctx, cfg, logger); archive != nil {
		deps.Archive = archive
		apiDeps.Trades = archive
		sup.OnClose("archive", func() error { archive.Close(); return nil })
	}
	if bus := buildEventBus(ctx, cfg, logger); bus != nil {
		deps.Events = bus
		apiDeps.Events = bus
		sup.OnClose("eventbus", bus.Close)
	}
	if graph := buildGraph(ctx, cfg, logger); graph != nil {
		deps.Graph = graph
		apiDeps.Graph = graph
		sup.OnClose("graph", func() error {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return graph.Close(closeCtx)
		})
	}
	if recall := buildRecall(ctx, cfg, logger); recall != nil {
		deps.Recall = recall
		sup.OnClose("recall", recall.Close)
	}

	// Gateway
	gw := gateway.New(logger)
	restAdapter := gateway.NewRESTAdapter(cfg.Server.ReplyTimeout.D(), logger)
	gw.Register(restAdapter)
	if sc := cfg.Gateway.Slack; sc.Enabled && sc.BotToken != "" {
		gw.Register(gateway.NewSlackAdapter(sc.BotToken, sc.AppToken, sc.Channels, logger))
	}
	if dc := cfg.Gateway.Discord; dc.Enabled && dc.BotToken != "" {
		gw.Register(gateway.NewDiscordAdapter(dc.BotToken, dc.Channels, logger))
	}
	broadcaster := gateway.NewBroadcaster(gw, logger)
	deps.Social = broadcaster
	deps.Inbound = gw

	omni := agent.New(deps, agent.Config{
		Name:                cfg.Agent.Name,
		MaxOpenGoals:        cfg.Agent.MaxOpenGoals,
		MemoriesPerGoal:     cfg.Agent.MemoriesPerGoal,
		PromptTokenBudget:   cfg.Agent.PromptTokenBudget,
		RecallResults:       cfg.Agent.RecallResults,
		MinConfidence:       cfg.Agent.MinConfidence,
		TradeFraction:       cfg.Agent.TradeFraction,
		ResearchTopics:      cfg.Agent.ResearchTopics,
		ResearchConcurrency: cfg.Agent.ResearchConcurrency,
	}, logger)

	// The handler must be set before adapters start delivering messages.
	gw.SetHandler(omni.Handler(gw, cfg.Server.ReplyTimeout.D()))
	if err := gw.ConnectAll(ctx); err != nil {
		logger.Warn("some gateway adapters failed to connect", zap.Error(err))
	}
	sup.OnClose("gateway", gw.Close)

	for _, l := range omni.Loops(intervals(cfg)) {
		sup.Add(l)
	}

	apiDeps.Memory = memStore
	apiDeps.Contexts = contexts
	apiDeps.Goals = goals
	apiDeps.Learner = learner
	apiDeps.Decisions = decisions
	apiDeps.Loops = sup
	apiDeps.Gateway = gw
	apiDeps.Broadcaster = broadcaster
	apiDeps.REST = restAdapter
	handler := api.NewHandler(apiDeps, logger)

	port := fmt.Sprintf("%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("omni listening", zap.String("port", port))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", zap.Error(err))
			stop()
		}
	}()

	if err := sup.Run(ctx); err != nil {
		logger.Error("loops stopped with errors", zap.Error(err))
	}

	logger.Info("Shutting down omni...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	if err := sup.Close(); err != nil {
		logger.Warn("close resources", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	var (
		logger *zap.Logger
		err    error
	)
	if level == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return zap.NewNop()
	}
	return logger
}

func intervals(cfg *config.Config) agent.Intervals {
	iv := agent.Intervals{Cognition: cfg.Cognition.CycleInterval.D()}
	if cfg.Loops.Investment.Enabled {
		iv.Investment = cfg.Loops.Investment.Interval.D()
	}
	if cfg.Loops.Community.Enabled {
		iv.Community = cfg.Loops.Community.Interval.D()
	}
	if cfg.Loops.Research.Enabled {
		iv.Research = cfg.Loops.Research.Interval.D()
	}
	return iv
}
