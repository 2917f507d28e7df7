package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"wyckoffEngine/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Trading Parameters
	Symbol          string
	Timeframe       domain.Timeframe
	RiskPerTradePct decimal.Decimal // Percent of equity risked per trade, e.g. 1.0
	StopLossPct     decimal.Decimal // Fraction of entry, e.g. 0.02 for 2%
	TakeProfitPct   decimal.Decimal // Fraction of entry, e.g. 0.04 for 4%
	LookbackBars    int             // Detection window size

	// Database
	DBPath string

	// Logging
	LogLevel string
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	cfg.Symbol = getEnv("SYMBOL", "BTCUSDT")
	if cfg.Symbol == "" {
		errs = append(errs, "SYMBOL must be set")
	}

	cfg.Timeframe = domain.Timeframe(getEnv("TIMEFRAME", "1h"))
	if cfg.Timeframe == "" {
		errs = append(errs, "TIMEFRAME must be set")
	}

	cfg.RiskPerTradePct, err = getEnvAsDecimal("RISK_PER_TRADE_PCT", "1.0")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid RISK_PER_TRADE_PCT: %v", err))
	} else if cfg.RiskPerTradePct.Sign() <= 0 {
		errs = append(errs, "RISK_PER_TRADE_PCT must be positive")
	}

	one := decimal.NewFromInt(1)
	cfg.StopLossPct, err = getEnvAsDecimal("STOP_LOSS_PCT", "0.02")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PCT: %v", err))
	} else if cfg.StopLossPct.Sign() <= 0 || cfg.StopLossPct.Cmp(one) >= 0 {
		errs = append(errs, "STOP_LOSS_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.TakeProfitPct, err = getEnvAsDecimal("TAKE_PROFIT_PCT", "0.04")
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TAKE_PROFIT_PCT: %v", err))
	} else if cfg.TakeProfitPct.Sign() <= 0 || cfg.TakeProfitPct.Cmp(one) >= 0 {
		errs = append(errs, "TAKE_PROFIT_PCT must be between 0.0 and 1.0 (exclusive)")
	}

	cfg.LookbackBars, err = getEnvAsIntRequired("LOOKBACK_BARS", 200)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid LOOKBACK_BARS: %v", err))
	} else if cfg.LookbackBars <= 0 {
		errs = append(errs, "LOOKBACK_BARS must be positive")
	}

	cfg.DBPath = getEnv("DB_PATH", "./data/wyckoff_engine.db")
	cfg.LogLevel = getEnv("LOG_LEVEL", "INFO")

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsDecimal(key string, defaultValue string) (decimal.Decimal, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}
	value, err := decimal.NewFromString(valueStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
