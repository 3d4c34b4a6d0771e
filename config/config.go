package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the full engine configuration. Values come from config.json
// with environment variables taking precedence. Core components receive
// their sections by injection and never read files themselves.
type Config struct {
	BitgetConfig      BitgetConfig      `json:"bitget"`
	TradingConfig     TradingConfig     `json:"trading"`
	RiskConfig        RiskConfig        `json:"risk"`
	OpportunityConfig OpportunityConfig `json:"opportunity"`
	AIConfig          AIConfig          `json:"ai"`
	PortfolioConfig   PortfolioConfig   `json:"portfolio"`
	LoggingConfig     LoggingConfig     `json:"logging"`
	ServerConfig      ServerConfig      `json:"server"`
	AuthConfig        AuthConfig        `json:"auth"`
	VaultConfig       VaultConfig       `json:"vault"`
	RedisConfig       RedisConfig       `json:"redis"`
	DatabaseConfig    DatabaseConfig    `json:"database"`
}

// BitgetConfig holds exchange connectivity settings. Credentials may come
// from Vault instead; these fields are the environment fallback.
type BitgetConfig struct {
	APIKey     string `json:"api_key"`
	SecretKey  string `json:"secret_key"`
	Passphrase string `json:"passphrase"`
	BaseURL    string `json:"base_url"`
	WSURL      string `json:"ws_url"`
	TestNet    bool   `json:"testnet"`
	MockMode   bool   `json:"mock_mode"` // use the in-memory mock client, no live orders
}

// TradingConfig holds the orchestrator policy
type TradingConfig struct {
	Symbols         []string      `json:"symbols"`
	Timeframe       string        `json:"timeframe"`
	Strategy        string        `json:"strategy"`           // momentum or reversion
	MaxRiskPerTrade float64       `json:"max_risk_per_trade"` // percent of equity
	Leverage        float64       `json:"leverage"`
	StopLossPercent float64       `json:"stop_loss_percent"`
	MinEquity       float64       `json:"min_equity"`
	AIEnabled       bool          `json:"ai_enabled"`
	BalanceTTL      time.Duration `json:"balance_ttl"`
	PollInterval    time.Duration `json:"poll_interval"`
	StrategyCode    string        `json:"strategy_code"` // 3-letter prefix for intent IDs
}

// RiskConfig holds the risk breaker limits
type RiskConfig struct {
	MaxEquityRisk        float64 `json:"max_equity_risk"` // percent
	MaxDailyLoss         float64 `json:"max_daily_loss"`  // percent
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// OpportunityConfig holds the evaluation policy
type OpportunityConfig struct {
	MinConfidence       float64 `json:"min_confidence"`
	MinExpectedReturn   float64 `json:"min_expected_return"`
	MaxExpectedReturn   float64 `json:"max_expected_return"`
	BaseReturnPerPoint  float64 `json:"base_return_per_point"`
	VolatilityAmplifier float64 `json:"volatility_amplifier"`
	MaxLeverage         float64 `json:"max_leverage"`
	SuccessRateWindow   int     `json:"success_rate_window"`
}

// AIConfig holds the confirmation gate settings
type AIConfig struct {
	Enabled     bool    `json:"enabled"`
	AIWeight    float64 `json:"ai_weight"`
	HumanWeight float64 `json:"human_weight"`
}

// PortfolioConfig holds the rebalancing policy
type PortfolioConfig struct {
	TargetAllocations  map[string]float64 `json:"target_allocations"`
	RebalanceThreshold float64            `json:"rebalance_threshold"`
	MinTradeAmount     float64            `json:"min_trade_amount"`
	MaxTradeAmount     float64            `json:"max_trade_amount"`
	RebalanceInterval  time.Duration      `json:"rebalance_interval"`
}

// LoggingConfig holds structured-logging settings
type LoggingConfig struct {
	Level       string `json:"level"`  // DEBUG, INFO, WARN, ERROR
	Output      string `json:"output"` // stdout, stderr, or file path
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// ServerConfig holds the operator API settings
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout"`  // seconds
	WriteTimeout    int    `json:"write_timeout"` // seconds
	ShutdownTimeout int    `json:"shutdown_timeout"`
}

// AuthConfig holds operator authentication settings
type AuthConfig struct {
	Enabled             bool          `json:"enabled"`
	JWTSecret           string        `json:"jwt_secret"`
	AccessTokenDuration time.Duration `json:"access_token_duration"`
	OperatorName        string        `json:"operator_name"`
	PasswordHash        string        `json:"password_hash"` // bcrypt hash of the operator password
	BcryptCost          int           `json:"bcrypt_cost"`
}

// VaultConfig holds HashiCorp Vault settings
type VaultConfig struct {
	Enabled    bool   `json:"enabled"`
	Address    string `json:"address"`
	Token      string `json:"token"`
	MountPath  string `json:"mount_path"`
	SecretPath string `json:"secret_path"`
	TLSEnabled bool   `json:"tls_enabled"`
	CACert     string `json:"ca_cert"`
}

// RedisConfig holds Redis settings for shared engine state
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
}

// DatabaseConfig holds PostgreSQL settings
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// Load reads config.json when present and applies environment overrides
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Bitget
	cfg.BitgetConfig.APIKey = getEnvOrDefault("BITGET_API_KEY", cfg.BitgetConfig.APIKey)
	cfg.BitgetConfig.SecretKey = getEnvOrDefault("BITGET_SECRET_KEY", cfg.BitgetConfig.SecretKey)
	cfg.BitgetConfig.Passphrase = getEnvOrDefault("BITGET_PASSPHRASE", cfg.BitgetConfig.Passphrase)
	cfg.BitgetConfig.BaseURL = getEnvOrDefault("BITGET_BASE_URL", cfg.BitgetConfig.BaseURL)
	cfg.BitgetConfig.WSURL = getEnvOrDefault("BITGET_WS_URL", cfg.BitgetConfig.WSURL)
	cfg.BitgetConfig.MockMode = getEnvBoolOrDefault("BITGET_MOCK_MODE", cfg.BitgetConfig.MockMode)

	// Trading
	cfg.TradingConfig.Timeframe = getEnvOrDefault("TRADING_TIMEFRAME", cfg.TradingConfig.Timeframe)
	cfg.TradingConfig.Strategy = getEnvOrDefault("TRADING_STRATEGY", cfg.TradingConfig.Strategy)
	cfg.TradingConfig.MaxRiskPerTrade = getEnvFloatOrDefault("TRADING_MAX_RISK_PER_TRADE", cfg.TradingConfig.MaxRiskPerTrade)
	cfg.TradingConfig.Leverage = getEnvFloatOrDefault("TRADING_LEVERAGE", cfg.TradingConfig.Leverage)
	cfg.TradingConfig.StopLossPercent = getEnvFloatOrDefault("TRADING_STOP_LOSS_PERCENT", cfg.TradingConfig.StopLossPercent)
	cfg.TradingConfig.AIEnabled = getEnvOrDefault("TRADING_AI_ENABLED", "true") == "true"
	cfg.AIConfig.Enabled = getEnvOrDefault("AI_CONFIRMATION_ENABLED", "true") == "true"
	cfg.TradingConfig.BalanceTTL = getEnvDurationOrDefault("TRADING_BALANCE_TTL", cfg.TradingConfig.BalanceTTL)
	cfg.TradingConfig.PollInterval = getEnvDurationOrDefault("TRADING_POLL_INTERVAL", cfg.TradingConfig.PollInterval)

	// Risk
	cfg.RiskConfig.MaxEquityRisk = getEnvFloatOrDefault("RISK_MAX_EQUITY_RISK", cfg.RiskConfig.MaxEquityRisk)
	cfg.RiskConfig.MaxDailyLoss = getEnvFloatOrDefault("RISK_MAX_DAILY_LOSS", cfg.RiskConfig.MaxDailyLoss)
	cfg.RiskConfig.MaxConsecutiveLosses = getEnvIntOrDefault("RISK_MAX_CONSECUTIVE_LOSSES", cfg.RiskConfig.MaxConsecutiveLosses)

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)

	// Server
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", cfg.ServerConfig.AllowedOrigins)

	// Auth
	cfg.AuthConfig.JWTSecret = getEnvOrDefault("AUTH_JWT_SECRET", cfg.AuthConfig.JWTSecret)
	cfg.AuthConfig.PasswordHash = getEnvOrDefault("AUTH_PASSWORD_HASH", cfg.AuthConfig.PasswordHash)
	cfg.AuthConfig.AccessTokenDuration = getEnvDurationOrDefault("AUTH_ACCESS_TOKEN_DURATION", cfg.AuthConfig.AccessTokenDuration)

	// Vault
	cfg.VaultConfig.Enabled = getEnvBoolOrDefault("VAULT_ENABLED", cfg.VaultConfig.Enabled)
	cfg.VaultConfig.Address = getEnvOrDefault("VAULT_ADDR", cfg.VaultConfig.Address)
	cfg.VaultConfig.Token = getEnvOrDefault("VAULT_TOKEN", cfg.VaultConfig.Token)

	// Redis
	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Address = getEnvOrDefault("REDIS_ADDRESS", cfg.RedisConfig.Address)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)

	// Database
	cfg.DatabaseConfig.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)
}

func applyDefaults(cfg *Config) {
	if cfg.BitgetConfig.BaseURL == "" {
		cfg.BitgetConfig.BaseURL = "https://api.bitget.com"
	}
	if cfg.BitgetConfig.WSURL == "" {
		cfg.BitgetConfig.WSURL = "wss://ws.bitget.com/v2/ws/public"
	}

	if len(cfg.TradingConfig.Symbols) == 0 {
		cfg.TradingConfig.Symbols = []string{"BTCUSDT", "ETHUSDT", "SOLUSDT"}
	}
	if cfg.TradingConfig.Timeframe == "" {
		cfg.TradingConfig.Timeframe = "1H"
	}
	if cfg.TradingConfig.Strategy == "" {
		cfg.TradingConfig.Strategy = "momentum"
	}
	if cfg.TradingConfig.MaxRiskPerTrade == 0 {
		cfg.TradingConfig.MaxRiskPerTrade = 1.0
	}
	if cfg.TradingConfig.Leverage == 0 {
		cfg.TradingConfig.Leverage = 5
	}
	if cfg.TradingConfig.StopLossPercent == 0 {
		cfg.TradingConfig.StopLossPercent = 2.0
	}
	if cfg.TradingConfig.MinEquity == 0 {
		cfg.TradingConfig.MinEquity = 10
	}
	if cfg.TradingConfig.BalanceTTL == 0 {
		cfg.TradingConfig.BalanceTTL = 30 * time.Second
	}
	if cfg.TradingConfig.PollInterval == 0 {
		cfg.TradingConfig.PollInterval = time.Minute
	}
	if cfg.TradingConfig.StrategyCode == "" {
		cfg.TradingConfig.StrategyCode = "AGT"
	}

	if cfg.RiskConfig.MaxEquityRisk == 0 {
		cfg.RiskConfig.MaxEquityRisk = 50
	}
	if cfg.RiskConfig.MaxDailyLoss == 0 {
		cfg.RiskConfig.MaxDailyLoss = 5
	}
	if cfg.RiskConfig.MaxConsecutiveLosses == 0 {
		cfg.RiskConfig.MaxConsecutiveLosses = 3
	}

	if cfg.AIConfig.AIWeight == 0 && cfg.AIConfig.HumanWeight == 0 {
		cfg.AIConfig.AIWeight = 0.4
		cfg.AIConfig.HumanWeight = 0.6
	}

	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "INFO"
	}
	if cfg.LoggingConfig.Output == "" {
		cfg.LoggingConfig.Output = "stdout"
	}

	if cfg.ServerConfig.Port == 0 {
		cfg.ServerConfig.Port = 8080
	}
	if cfg.ServerConfig.Host == "" {
		cfg.ServerConfig.Host = "0.0.0.0"
	}
	if cfg.ServerConfig.ShutdownTimeout == 0 {
		cfg.ServerConfig.ShutdownTimeout = 10
	}

	if cfg.AuthConfig.AccessTokenDuration == 0 {
		cfg.AuthConfig.AccessTokenDuration = 30 * time.Minute
	}
	if cfg.AuthConfig.OperatorName == "" {
		cfg.AuthConfig.OperatorName = "operator"
	}

	if cfg.VaultConfig.MountPath == "" {
		cfg.VaultConfig.MountPath = "secret"
	}
	if cfg.VaultConfig.SecretPath == "" {
		cfg.VaultConfig.SecretPath = "trading-engine"
	}

	if cfg.RedisConfig.Address == "" {
		cfg.RedisConfig.Address = "localhost:6379"
	}
	if cfg.RedisConfig.PoolSize == 0 {
		cfg.RedisConfig.PoolSize = 10
	}

	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
