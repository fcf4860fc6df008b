package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Pumpfun  PumpfunConfig  `mapstructure:"pumpfun"`
	Trading  TradingConfig  `mapstructure:"trading"`
	Queue    QueueConfig    `mapstructure:"queue"`
	Resolver ResolverConfig `mapstructure:"resolver"`
	Telegram TelegramConfig `mapstructure:"telegram"`
	AI       AIConfig       `mapstructure:"ai"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Health   HealthConfig   `mapstructure:"health"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// PumpfunConfig holds the ledger feed and metadata API endpoints.
type PumpfunConfig struct {
	WSEndpoint      string        `mapstructure:"ws_endpoint"`
	MetadataAPIURL  string        `mapstructure:"metadata_api_url"`
	RPCEndpoint     string        `mapstructure:"rpc_endpoint"`
	MetadataTimeout time.Duration `mapstructure:"metadata_timeout"`
	RPCTimeout      time.Duration `mapstructure:"rpc_timeout"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
}

// TradingConfig holds paper-trading behavior defaults. MinScore, TradeAmount,
// Paused, PaperTrading and AlertOnWatch seed the persisted settings and may be
// changed at runtime via bot commands.
type TradingConfig struct {
	MinScore      int     `mapstructure:"min_score"`
	TradeAmount   float64 `mapstructure:"trade_amount"`
	MaxOpenTrades int     `mapstructure:"max_open_trades"`
	AlertStepPct  float64 `mapstructure:"alert_step_pct"`
	SolUsdRate    float64 `mapstructure:"sol_usd_rate"`
	PaperTrading  bool    `mapstructure:"paper_trading"`
	AlertOnWatch  bool    `mapstructure:"alert_on_watch"`
}

// QueueConfig holds ingestion queue behavior.
type QueueConfig struct {
	MaxAge     time.Duration `mapstructure:"max_age"`
	DrainPause time.Duration `mapstructure:"drain_pause"`
}

// ResolverConfig holds signature resolution retry behavior.
type ResolverConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BackoffBase time.Duration `mapstructure:"backoff_base"`
}

// TelegramConfig holds Telegram notification configuration.
type TelegramConfig struct {
	BotToken       string        `mapstructure:"bot_token"`
	ChatID         string        `mapstructure:"chat_id"`
	Enabled        bool          `mapstructure:"enabled"`
	MaxRetries     int           `mapstructure:"max_retries"`
	RetryDelayBase time.Duration `mapstructure:"retry_delay_base"`
}

// AIConfig holds the commentary model configuration.
type AIConfig struct {
	APIKey  string        `mapstructure:"api_key"`
	Model   string        `mapstructure:"model"`
	Enabled bool          `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// StorageConfig holds persistence paths.
type StorageConfig struct {
	StatePath string `mapstructure:"state_path"`
	DBPath    string `mapstructure:"db_path"`
}

// HealthConfig holds the liveness endpoint configuration.
type HealthConfig struct {
	Addr    string `mapstructure:"addr"`
	Enabled bool   `mapstructure:"enabled"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from file and environment variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v)

	v.SetEnvPrefix("MINTWATCH")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Secrets come from the environment, never from the config file.
	if token := v.GetString("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.BotToken = token
	}
	if key := v.GetString("OPENAI_API_KEY"); key != "" {
		cfg.AI.APIKey = key
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pumpfun.ws_endpoint", "wss://pumpportal.fun/api/data")
	v.SetDefault("pumpfun.metadata_api_url", "https://frontend-api.pump.fun")
	v.SetDefault("pumpfun.rpc_endpoint", "https://api.mainnet-beta.solana.com")
	v.SetDefault("pumpfun.metadata_timeout", "10s")
	v.SetDefault("pumpfun.rpc_timeout", "15s")
	v.SetDefault("pumpfun.refresh_interval", "30s")

	v.SetDefault("trading.min_score", 68)
	v.SetDefault("trading.trade_amount", 0.1)
	v.SetDefault("trading.max_open_trades", 5)
	v.SetDefault("trading.alert_step_pct", 25.0)
	v.SetDefault("trading.sol_usd_rate", 200.0)
	v.SetDefault("trading.paper_trading", true)
	v.SetDefault("trading.alert_on_watch", false)

	v.SetDefault("queue.max_age", "90s")
	v.SetDefault("queue.drain_pause", "2s")

	v.SetDefault("resolver.max_attempts", 3)
	v.SetDefault("resolver.backoff_base", "2s")

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.max_retries", 3)
	v.SetDefault("telegram.retry_delay_base", "1s")

	v.SetDefault("ai.enabled", false)
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.timeout", "20s")

	v.SetDefault("storage.state_path", "./data/state.json")
	v.SetDefault("storage.db_path", "./data/mintwatch.db")

	v.SetDefault("health.addr", ":8080")
	v.SetDefault("health.enabled", true)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

// Validate checks that all configuration values are valid.
func (c *Config) Validate() error {
	if c.Pumpfun.WSEndpoint == "" {
		return fmt.Errorf("pumpfun.ws_endpoint is required")
	}
	if c.Pumpfun.MetadataAPIURL == "" {
		return fmt.Errorf("pumpfun.metadata_api_url is required")
	}
	if c.Pumpfun.RPCEndpoint == "" {
		return fmt.Errorf("pumpfun.rpc_endpoint is required")
	}
	if c.Pumpfun.RefreshInterval < 5*time.Second {
		return fmt.Errorf("pumpfun.refresh_interval must be at least 5 seconds")
	}

	if c.Trading.MinScore < 0 || c.Trading.MinScore > 100 {
		return fmt.Errorf("trading.min_score must be between 0 and 100")
	}
	if c.Trading.TradeAmount <= 0 {
		return fmt.Errorf("trading.trade_amount must be positive")
	}
	if c.Trading.MaxOpenTrades < 1 {
		return fmt.Errorf("trading.max_open_trades must be at least 1")
	}
	if c.Trading.AlertStepPct <= 0 {
		return fmt.Errorf("trading.alert_step_pct must be positive")
	}
	if c.Trading.SolUsdRate <= 0 {
		return fmt.Errorf("trading.sol_usd_rate must be positive")
	}

	if c.Queue.MaxAge < time.Second {
		return fmt.Errorf("queue.max_age must be at least 1 second")
	}
	if c.Queue.DrainPause < 0 {
		return fmt.Errorf("queue.drain_pause must not be negative")
	}

	if c.Resolver.MaxAttempts < 1 {
		return fmt.Errorf("resolver.max_attempts must be at least 1")
	}
	if c.Resolver.BackoffBase <= 0 {
		return fmt.Errorf("resolver.backoff_base must be positive")
	}

	if c.Telegram.Enabled {
		if c.Telegram.BotToken == "" {
			return fmt.Errorf("telegram.bot_token is required when telegram is enabled")
		}
		if c.Telegram.ChatID == "" {
			return fmt.Errorf("telegram.chat_id is required when telegram is enabled")
		}
	}

	if c.AI.Enabled && c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required when ai is enabled")
	}

	if c.Storage.StatePath == "" {
		return fmt.Errorf("storage.state_path is required")
	}
	if c.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}

	if c.Health.Enabled && c.Health.Addr == "" {
		return fmt.Errorf("health.addr is required when health is enabled")
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	return nil
}
