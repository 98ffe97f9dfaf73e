// Package config loads the agent configuration from JSON or YAML with
// ${VAR} and ${VAR:default} environment substitution.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when CONFIG_PATH is unset.
const DefaultPath = "configs/omni.json"

// Config is the top-level configuration structure.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server"`
	Agent      AgentConfig      `json:"agent" yaml:"agent"`
	Cognition  CognitionConfig  `json:"cognition" yaml:"cognition"`
	Loops      LoopsConfig      `json:"loops" yaml:"loops"`
	Memory     MemoryConfig     `json:"memory" yaml:"memory"`
	Context    ContextConfig    `json:"context" yaml:"context"`
	Learning   LearningConfig   `json:"learning" yaml:"learning"`
	Providers  []ProviderConfig `json:"providers" yaml:"providers"`
	LLM        LLMConfig        `json:"llm" yaml:"llm"`
	Resilience ResilienceConfig `json:"resilience" yaml:"resilience"`
	Wallets    WalletsConfig    `json:"wallets" yaml:"wallets"`
	Gateway    GatewayConfig    `json:"gateway" yaml:"gateway"`
	Database   DatabaseConfig   `json:"database" yaml:"database"`
	Embedding  EmbeddingConfig  `json:"embedding" yaml:"embedding"`
}

type ServerConfig struct {
	Port          int      `json:"port" yaml:"port"`
	LogLevel      string   `json:"log_level" yaml:"log_level"`
	MigrationsDir string   `json:"migrations_dir" yaml:"migrations_dir"`
	ReplyTimeout  Duration `json:"reply_timeout" yaml:"reply_timeout"`
}

type AgentConfig struct {
	Name                string   `json:"name" yaml:"name"`
	MaxOpenGoals        int      `json:"max_open_goals" yaml:"max_open_goals"`
	MemoriesPerGoal     int      `json:"memories_per_goal" yaml:"memories_per_goal"`
	PromptTokenBudget   int      `json:"prompt_token_budget" yaml:"prompt_token_budget"`
	RecallResults       int      `json:"recall_results" yaml:"recall_results"`
	MinConfidence       float64  `json:"min_confidence" yaml:"min_confidence"`
	TradeFraction       float64  `json:"trade_fraction" yaml:"trade_fraction"`
	ResearchTopics      []string `json:"research_topics" yaml:"research_topics"`
	ResearchConcurrency int      `json:"research_concurrency" yaml:"research_concurrency"`
}

type CognitionConfig struct {
	CycleInterval Duration `json:"cycle_interval" yaml:"cycle_interval"`
	ErrorCooldown Duration `json:"error_cooldown" yaml:"error_cooldown"`
	CycleTimeout  Duration `json:"cycle_timeout" yaml:"cycle_timeout"`
	MaxRetries    int      `json:"max_retries" yaml:"max_retries"`
}

// LoopConfig enables one secondary loop.
type LoopConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Interval Duration `json:"interval" yaml:"interval"`
}

type LoopsConfig struct {
	Investment LoopConfig `json:"investment" yaml:"investment"`
	Community  LoopConfig `json:"community" yaml:"community"`
	Research   LoopConfig `json:"research" yaml:"research"`
}

type MemoryConfig struct {
	ShortTermLimit int      `json:"short_term_limit" yaml:"short_term_limit"`
	LongTermLimit  int      `json:"long_term_limit" yaml:"long_term_limit"`
	DecayInterval  Duration `json:"decay_interval" yaml:"decay_interval"`
	DecayRate      float64  `json:"decay_rate" yaml:"decay_rate"`
}

type ContextConfig struct {
	TTL          Duration `json:"ttl" yaml:"ttl"`
	HistoryLimit int      `json:"history_limit" yaml:"history_limit"`
}

type LearningConfig struct {
	MaxExperiences       int `json:"max_experiences" yaml:"max_experiences"`
	DecisionHistoryLimit int `json:"decision_history_limit" yaml:"decision_history_limit"`
}

type ProviderConfig struct {
	ID       string   `json:"id" yaml:"id"`
	Type     string   `json:"type" yaml:"type"`
	Name     string   `json:"name" yaml:"name"`
	Endpoint string   `json:"endpoint" yaml:"endpoint"`
	APIKey   string   `json:"api_key" yaml:"api_key"`
	Models   []string `json:"models,omitempty" yaml:"models,omitempty"`
	Timeout  Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

type LLMConfig struct {
	Model         string  `json:"model" yaml:"model"`
	MaxTokens     int     `json:"max_tokens" yaml:"max_tokens"`
	Temperature   float64 `json:"temperature" yaml:"temperature"`
	SystemPrompt  string  `json:"system_prompt" yaml:"system_prompt"`
	RatePerSecond float64 `json:"rate_per_second" yaml:"rate_per_second"`
	Burst         int     `json:"burst" yaml:"burst"`
}

type ResilienceConfig struct {
	MaxFailures     uint32   `json:"max_failures" yaml:"max_failures"`
	OpenTimeout     Duration `json:"open_timeout" yaml:"open_timeout"`
	HalfOpenProbes  uint32   `json:"half_open_probes" yaml:"half_open_probes"`
	MaxRetries      uint64   `json:"max_retries" yaml:"max_retries"`
	InitialInterval Duration `json:"initial_interval" yaml:"initial_interval"`
	MaxInterval     Duration `json:"max_interval" yaml:"max_interval"`
}

type ChainConfig struct {
	Address string   `json:"address" yaml:"address"`
	RPCURLs []string `json:"rpc_urls" yaml:"rpc_urls"`
	Timeout Duration `json:"timeout" yaml:"timeout"`
}

type WalletsConfig struct {
	Chain           string      `json:"chain" yaml:"chain"`
	DryRun          bool        `json:"dry_run" yaml:"dry_run"`
	PaperBalance    float64     `json:"paper_balance" yaml:"paper_balance"`
	BalanceCacheTTL Duration    `json:"balance_cache_ttl" yaml:"balance_cache_ttl"`
	Ethereum        ChainConfig `json:"ethereum" yaml:"ethereum"`
	Solana          ChainConfig `json:"solana" yaml:"solana"`
}

type GatewayConfig struct {
	Slack   SlackGatewayConfig   `json:"slack" yaml:"slack"`
	Discord DiscordGatewayConfig `json:"discord" yaml:"discord"`
}

type SlackGatewayConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	BotToken string   `json:"bot_token" yaml:"bot_token"`
	AppToken string   `json:"app_token" yaml:"app_token"`
	Channels []string `json:"channels" yaml:"channels"`
}

type DiscordGatewayConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	BotToken string   `json:"bot_token" yaml:"bot_token"`
	Channels []string `json:"channels" yaml:"channels"`
}

type DatabaseConfig struct {
	Postgres PostgresConfig `json:"postgres" yaml:"postgres"`
	Neo4j    Neo4jConfig    `json:"neo4j" yaml:"neo4j"`
	Redis    RedisConfig    `json:"redis" yaml:"redis"`
	Qdrant   QdrantConfig   `json:"qdrant" yaml:"qdrant"`
}

type PostgresConfig struct {
	DSN string `json:"dsn" yaml:"dsn"`
}

type Neo4jConfig struct {
	URI      string `json:"uri" yaml:"uri"`
	User     string `json:"user" yaml:"user"`
	Password string `json:"password" yaml:"password"`
}

type RedisConfig struct {
	URL string `json:"url" yaml:"url"`
}

type QdrantConfig struct {
	Host string `json:"host" yaml:"host"`
	Port int    `json:"port" yaml:"port"`
}

type EmbeddingConfig struct {
	Provider  string   `json:"provider" yaml:"provider"`
	Endpoint  string   `json:"endpoint" yaml:"endpoint"`
	Model     string   `json:"model" yaml:"model"`
	APIKey    string   `json:"api_key" yaml:"api_key"`
	Dimension int      `json:"dimension" yaml:"dimension"`
	Timeout   Duration `json:"timeout" yaml:"timeout"`
}

// envVarRe matches ${VAR} and ${VAR:default} patterns.
var envVarRe = regexp.MustCompile(`\$\{(\w+)(?::([^}]*))?\}`)

// Path returns CONFIG_PATH, or DefaultPath when it is unset.
func Path() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return DefaultPath
}

// LoadEnv reads .env from the working directory when it exists. Variables
// already set in the environment win.
func LoadEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// Load reads a config file, substitutes environment variable references,
// fills defaults and validates the result. Files ending in .yaml or .yml
// are parsed as YAML, everything else as JSON.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	resolved := []byte(expandEnv(string(data)))
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(resolved, &cfg)
	default:
		err = json.Unmarshal(resolved, &cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return &cfg, nil
}

// expandEnv substitutes ${VAR} and ${VAR:default} with environment values.
func expandEnv(s string) string {
	return envVarRe.ReplaceAllStringFunc(s, func(match string) string {
		parts := envVarRe.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})
}
