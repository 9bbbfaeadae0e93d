package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Policy   PolicyConfig   `yaml:"policy"`
	Game     GameConfig     `yaml:"game"`
	Ledger   LedgerConfig   `yaml:"ledger"`
	Redis    RedisConfig    `yaml:"redis"`
	Throttle ThrottleConfig `yaml:"throttle"`
	Session  SessionConfig  `yaml:"session"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"`
}

// PolicyConfig holds the injection-scoring knobs. The values are policy
// choices, not derived from a model; keep them tunable.
type PolicyConfig struct {
	BlockThreshold   int `yaml:"block_threshold"`
	HomoglyphWeight  int `yaml:"homoglyph_weight"`
	InvisibleWeight  int `yaml:"invisible_weight"`
	StructuralWeight int `yaml:"structural_weight"`
	MaxMessageLength int `yaml:"max_message_length"`
}

type GameConfig struct {
	MessageCostLamports   uint64  `yaml:"message_cost_lamports"`
	WinnerPercentage      float64 `yaml:"winner_percentage"`
	DevPercentage         float64 `yaml:"dev_percentage"`
	MaxConversationLength int     `yaml:"max_conversation_length"`
}

type LedgerConfig struct {
	RPCURL              string `yaml:"rpc_url"`
	MaxTxAgeSeconds     int64  `yaml:"max_tx_age_seconds"`
	AmountTolerancePct  uint64 `yaml:"amount_tolerance_pct"`
	RentReserveLamports uint64 `yaml:"rent_reserve_lamports"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ThrottleConfig struct {
	WindowMs int `yaml:"window_ms"`
}

type SessionConfig struct {
	TTLHours int `yaml:"ttl_hours"`
}

// Secrets are never read from the yaml file, only from the environment.
type Secrets struct {
	AnthropicAPIKey    string
	TreasuryWallet     string
	TreasuryKey        string
	DevWallet          string
	AdminSecret        string
	SupabaseURL        string
	SupabaseServiceKey string
}

// Default returns the configuration with the production policy values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Env: "development"},
		Policy: PolicyConfig{
			BlockThreshold:   8,
			HomoglyphWeight:  3,
			InvisibleWeight:  4,
			StructuralWeight: 4,
			MaxMessageLength: 2000,
		},
		Game: GameConfig{
			MessageCostLamports:   100_000_000, // 0.1 SOL
			WinnerPercentage:      0.8,
			DevPercentage:         0.2,
			MaxConversationLength: 50,
		},
		Ledger: LedgerConfig{
			RPCURL:              "https://api.devnet.solana.com",
			MaxTxAgeSeconds:     600,
			AmountTolerancePct:  1,
			RentReserveLamports: 2_000_000,
		},
		Redis:    RedisConfig{Addr: "localhost:6379"},
		Throttle: ThrottleConfig{WindowMs: 1000},
		Session:  SessionConfig{TTLHours: 24},
	}
}

// Load reads a yaml config file over the defaults. A missing file is not an
// error; the defaults stand.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Policy.BlockThreshold <= 0 {
		return fmt.Errorf("policy.block_threshold must be positive")
	}
	if c.Ledger.AmountTolerancePct >= 100 {
		return fmt.Errorf("ledger.amount_tolerance_pct must be below 100")
	}
	if c.Game.WinnerPercentage+c.Game.DevPercentage > 1.0 {
		return fmt.Errorf("game payout percentages exceed 100%%")
	}
	return nil
}

// LoadSecrets pulls the secret material from the environment. Components
// validate the pieces they need; nothing here is fatal at load time.
func LoadSecrets() Secrets {
	return Secrets{
		AnthropicAPIKey:    os.Getenv("ANTHROPIC_API_KEY"),
		TreasuryWallet:     os.Getenv("TREASURY_WALLET"),
		TreasuryKey:        os.Getenv("SOLANA_PRIVATE_KEY"),
		DevWallet:          os.Getenv("DEV_WALLET"),
		AdminSecret:        os.Getenv("ADMIN_SECRET"),
		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_KEY"),
	}
}

// ThrottleWindow is the minimum interval between paid requests per wallet.
func (c *Config) ThrottleWindow() time.Duration {
	return time.Duration(c.Throttle.WindowMs) * time.Millisecond
}

// SessionTTL is how long an idle session survives.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLHours) * time.Hour
}

// MaxTxAge is the staleness window for payment transactions.
func (c *Config) MaxTxAge() time.Duration {
	return time.Duration(c.Ledger.MaxTxAgeSeconds) * time.Second
}
