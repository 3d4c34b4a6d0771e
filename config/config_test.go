package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.BitgetConfig.BaseURL != "https://api.bitget.com" {
		t.Errorf("BaseURL = %s", cfg.BitgetConfig.BaseURL)
	}
	if cfg.TradingConfig.Leverage != 5 {
		t.Errorf("Leverage = %v, want 5", cfg.TradingConfig.Leverage)
	}
	if cfg.TradingConfig.BalanceTTL != 30*time.Second {
		t.Errorf("BalanceTTL = %v, want 30s", cfg.TradingConfig.BalanceTTL)
	}
	if cfg.RiskConfig.MaxEquityRisk != 50 {
		t.Errorf("MaxEquityRisk = %v, want 50", cfg.RiskConfig.MaxEquityRisk)
	}
	if !cfg.TradingConfig.AIEnabled || !cfg.AIConfig.Enabled {
		t.Error("AI confirmation should default to enabled")
	}
	if cfg.AIConfig.AIWeight != 0.4 || cfg.AIConfig.HumanWeight != 0.6 {
		t.Errorf("AI weights = %v/%v, want 0.4/0.6", cfg.AIConfig.AIWeight, cfg.AIConfig.HumanWeight)
	}
	if cfg.RedisConfig.Address != "localhost:6379" {
		t.Errorf("Redis address = %s", cfg.RedisConfig.Address)
	}
	if cfg.DatabaseConfig.Port != 5432 {
		t.Errorf("DB port = %d, want 5432", cfg.DatabaseConfig.Port)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("TRADING_LEVERAGE", "10")
	t.Setenv("TRADING_BALANCE_TTL", "1m")
	t.Setenv("RISK_MAX_EQUITY_RISK", "25")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("SERVER_PORT", "9090")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.TradingConfig.Leverage != 10 {
		t.Errorf("Leverage = %v, want 10", cfg.TradingConfig.Leverage)
	}
	if cfg.TradingConfig.BalanceTTL != time.Minute {
		t.Errorf("BalanceTTL = %v, want 1m", cfg.TradingConfig.BalanceTTL)
	}
	if cfg.RiskConfig.MaxEquityRisk != 25 {
		t.Errorf("MaxEquityRisk = %v, want 25", cfg.RiskConfig.MaxEquityRisk)
	}
	if !cfg.RedisConfig.Enabled {
		t.Error("Redis should be enabled")
	}
	if cfg.ServerConfig.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.ServerConfig.Port)
	}
}

func TestInvalidEnvValuesIgnored(t *testing.T) {
	t.Setenv("TRADING_LEVERAGE", "not-a-number")
	t.Setenv("SERVER_PORT", "nope")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TradingConfig.Leverage != 5 {
		t.Errorf("Leverage = %v, want default 5", cfg.TradingConfig.Leverage)
	}
	if cfg.ServerConfig.Port != 8080 {
		t.Errorf("Port = %d, want default 8080", cfg.ServerConfig.Port)
	}
}
