package config

import (
	"errors"
	"fmt"
	"time"
)

// ApplyDefaults fills every zero value with its stock setting.
func (c *Config) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "development"
	}
	if c.Server.MigrationsDir == "" {
		c.Server.MigrationsDir = "migrations"
	}
	setDuration(&c.Server.ReplyTimeout, 60*time.Second)

	if c.Agent.Name == "" {
		c.Agent.Name = "omni"
	}

	setDuration(&c.Cognition.CycleInterval, 10*time.Second)
	setDuration(&c.Cognition.ErrorCooldown, 5*time.Second)
	setDuration(&c.Cognition.CycleTimeout, 60*time.Second)
	if c.Cognition.MaxRetries == 0 {
		c.Cognition.MaxRetries = 3
	}

	setDuration(&c.Loops.Investment.Interval, time.Minute)
	setDuration(&c.Loops.Community.Interval, time.Hour)
	setDuration(&c.Loops.Research.Interval, 6*time.Hour)

	if c.Memory.ShortTermLimit == 0 {
		c.Memory.ShortTermLimit = 100
	}
	if c.Memory.LongTermLimit == 0 {
		c.Memory.LongTermLimit = 1000
	}
	setDuration(&c.Memory.DecayInterval, time.Hour)
	if c.Memory.DecayRate == 0 {
		c.Memory.DecayRate = 0.1
	}

	setDuration(&c.Context.TTL, time.Hour)
	if c.Context.HistoryLimit == 0 {
		c.Context.HistoryLimit = 1000
	}

	if c.Learning.MaxExperiences == 0 {
		c.Learning.MaxExperiences = 10000
	}
	if c.Learning.DecisionHistoryLimit == 0 {
		c.Learning.DecisionHistoryLimit = 500
	}

	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.RatePerSecond == 0 {
		c.LLM.RatePerSecond = 2
	}
	if c.LLM.Burst == 0 {
		c.LLM.Burst = 4
	}

	if c.Resilience.MaxFailures == 0 {
		c.Resilience.MaxFailures = 3
	}
	setDuration(&c.Resilience.OpenTimeout, 30*time.Second)
	if c.Resilience.HalfOpenProbes == 0 {
		c.Resilience.HalfOpenProbes = 2
	}
	if c.Resilience.MaxRetries == 0 {
		c.Resilience.MaxRetries = 3
	}
	setDuration(&c.Resilience.InitialInterval, 500*time.Millisecond)
	setDuration(&c.Resilience.MaxInterval, 10*time.Second)

	if c.Wallets.Chain == "" {
		c.Wallets.Chain = "ethereum"
	}
	if c.Wallets.DryRun && c.Wallets.PaperBalance == 0 {
		c.Wallets.PaperBalance = 10
	}
	setDuration(&c.Wallets.BalanceCacheTTL, 30*time.Second)

	if c.Database.Qdrant.Host != "" && c.Database.Qdrant.Port == 0 {
		c.Database.Qdrant.Port = 6334
	}
}

func setDuration(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

// Validate rejects settings no component can run with.
func (c *Config) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...interface{}) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	check(c.Server.Port > 0 && c.Server.Port < 65536, "server.port %d out of range", c.Server.Port)
	check(c.Agent.MaxOpenGoals >= 0, "agent.max_open_goals must not be negative")
	check(c.Agent.MemoriesPerGoal >= 0, "agent.memories_per_goal must not be negative")
	check(c.Agent.TradeFraction >= 0 && c.Agent.TradeFraction <= 1, "agent.trade_fraction %v outside [0,1]", c.Agent.TradeFraction)
	check(c.Agent.MinConfidence >= 0 && c.Agent.MinConfidence <= 1, "agent.min_confidence %v outside [0,1]", c.Agent.MinConfidence)
	check(c.Cognition.MaxRetries >= 0, "cognition.max_retries must not be negative")
	check(c.Cognition.CycleTimeout >= 0, "cognition.cycle_timeout must not be negative")
	check(c.Memory.ShortTermLimit > 0, "memory.short_term_limit must be positive")
	check(c.Memory.LongTermLimit > 0, "memory.long_term_limit must be positive")
	check(c.Context.HistoryLimit > 0, "context.history_limit must be positive")
	check(c.Learning.MaxExperiences > 0, "learning.max_experiences must be positive")
	check(c.LLM.RatePerSecond >= 0, "llm.rate_per_second must not be negative")
	check(c.Wallets.PaperBalance >= 0, "wallets.paper_balance must not be negative")

	switch c.Wallets.Chain {
	case "ethereum", "solana":
	default:
		errs = append(errs, fmt.Errorf("wallets.chain %q must be ethereum or solana", c.Wallets.Chain))
	}
	for i, p := range c.Providers {
		switch p.Type {
		case "anthropic", "openai":
		default:
			errs = append(errs, fmt.Errorf("providers[%d].type %q must be anthropic or openai", i, p.Type))
		}
	}
	return errors.Join(errs...)
}
