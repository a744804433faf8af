package infra

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/thedudeontitan/ouro-fi/pkg/quant"
)

// Config holds every tunable the daemon needs. Secrets are never expected
// in the file itself; environment variables override after load.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Trading struct {
		Mode           string `yaml:"mode"` // paper | live
		MinLeverage    int64  `yaml:"min_leverage"`
		MaxLeverage    int64  `yaml:"max_leverage"`
		SafetyRatioBps int64  `yaml:"safety_ratio_bps"`
		TradingFeeBps  int64  `yaml:"trading_fee_bps"`
		CallTimeoutSec int    `yaml:"call_timeout_sec"`
		SettleAttempts int    `yaml:"settle_attempts"`
	} `yaml:"trading"`

	Oracle struct {
		WSURL          string            `yaml:"ws_url"`
		RestURL        string            `yaml:"rest_url"`
		Symbols        []string          `yaml:"symbols"`
		FallbackPrices map[string]string `yaml:"fallback_prices"` // human units, e.g. "4000"
		MinConfidence  int64             `yaml:"min_confidence"`
		StaleAfterSec  int               `yaml:"stale_after_sec"`
	} `yaml:"oracle"`

	Ledger struct {
		URL    string `yaml:"url"`
		APIKey string `yaml:"api_key"`
	} `yaml:"ledger"`

	Collateral struct {
		URL          string `yaml:"url"`
		PaperBalance string `yaml:"paper_balance"` // flat per-trader balance in paper mode, USDC units
	} `yaml:"collateral"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the yaml config file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate checks configuration validity. A symbol with no fallback price is a
// startup defect: the engine must always be able to quote every listed market.
func (c *Config) Validate() error {
	switch c.Trading.Mode {
	case "paper", "live":
	default:
		return fmt.Errorf("invalid trading mode: %s (want paper or live)", c.Trading.Mode)
	}

	if c.Trading.MinLeverage < 1 {
		return fmt.Errorf("min leverage must be >= 1, got %d", c.Trading.MinLeverage)
	}
	if c.Trading.MaxLeverage < c.Trading.MinLeverage {
		return fmt.Errorf("max leverage %d below min leverage %d", c.Trading.MaxLeverage, c.Trading.MinLeverage)
	}
	if c.Trading.SafetyRatioBps <= 0 || c.Trading.SafetyRatioBps >= quant.BpsScale {
		return fmt.Errorf("safety ratio must be in (0, %d) bps, got %d", quant.BpsScale, c.Trading.SafetyRatioBps)
	}
	if c.Trading.TradingFeeBps < 0 {
		return fmt.Errorf("trading fee must be non-negative, got %d bps", c.Trading.TradingFeeBps)
	}
	if c.Trading.CallTimeoutSec <= 0 {
		return fmt.Errorf("call timeout must be positive")
	}
	if c.Trading.SettleAttempts < 1 {
		return fmt.Errorf("settle attempts must be >= 1, got %d", c.Trading.SettleAttempts)
	}

	if len(c.Oracle.Symbols) == 0 {
		return fmt.Errorf("at least one oracle symbol is required")
	}
	for _, sym := range c.Oracle.Symbols {
		raw, ok := c.Oracle.FallbackPrices[sym]
		if !ok {
			return fmt.Errorf("symbol %s has no fallback price", sym)
		}
		if px := quant.ToPriceE8Str(raw); px <= 0 {
			return fmt.Errorf("symbol %s has invalid fallback price %q", sym, raw)
		}
	}
	if c.Oracle.MinConfidence < 0 || c.Oracle.MinConfidence > 100 {
		return fmt.Errorf("min confidence must be in [0, 100], got %d", c.Oracle.MinConfidence)
	}

	if c.Trading.Mode == "live" {
		if !hasPrefix(c.Oracle.WSURL, "ws://") && !hasPrefix(c.Oracle.WSURL, "wss://") {
			return fmt.Errorf("invalid oracle WS URL: %s", c.Oracle.WSURL)
		}
		if c.Oracle.RestURL == "" {
			return fmt.Errorf("oracle REST URL is required in live mode")
		}
		if c.Ledger.URL == "" {
			return fmt.Errorf("ledger URL is required in live mode")
		}
		if c.Collateral.URL == "" {
			return fmt.Errorf("collateral URL is required in live mode")
		}
	}

	return nil
}

// CallTimeout returns the per-operation deadline as a duration.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Trading.CallTimeoutSec) * time.Second
}

// FallbackTable parses the configured fallback prices into e8 fixed-point.
// Validate has already guaranteed every entry parses.
func (c *Config) FallbackTable() map[string]quant.PriceE8 {
	table := make(map[string]quant.PriceE8, len(c.Oracle.FallbackPrices))
	for sym, raw := range c.Oracle.FallbackPrices {
		table[sym] = quant.ToPriceE8Str(raw)
	}
	return table
}

func hasPrefix(s, prefix string) bool {
	return len(s) >= len(prefix) && s[0:len(prefix)] == prefix
}

// overrideWithEnv applies environment variables over file values.
// Secrets belong in the environment, not in the yaml.
func overrideWithEnv(cfg *Config) {
	if cfg.Ledger.APIKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: ledger API key found in config file.")
		fmt.Println("   Recommendation: use OURO_LEDGER_KEY instead.")
	}

	if key := os.Getenv("OURO_LEDGER_KEY"); key != "" {
		cfg.Ledger.APIKey = key
	}
	if url := os.Getenv("OURO_LEDGER_URL"); url != "" {
		cfg.Ledger.URL = url
	}
	if url := os.Getenv("OURO_COLLATERAL_URL"); url != "" {
		cfg.Collateral.URL = url
	}
	if mode := os.Getenv("OURO_MODE"); mode != "" {
		cfg.Trading.Mode = mode
	}
	if level := os.Getenv("OURO_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
}
