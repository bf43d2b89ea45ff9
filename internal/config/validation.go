package config

import (
	"fmt"
	"strings"
)

func validate(c *Config) error {
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.MT5.validate(c.Trading.Mode); err != nil {
		return err
	}
	if err := c.AI.validate(); err != nil {
		return err
	}
	return nil
}

func (t *TradingConfig) validate() error {
	switch t.Mode {
	case "live", "sim":
	default:
		return fmt.Errorf("trading.mode must be \"live\" or \"sim\", got %q", t.Mode)
	}
	if t.Mode == "live" && t.SkipVerify {
		return fmt.Errorf("trading.skip_verify is only allowed in sim mode")
	}
	for _, s := range t.Symbols {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("trading.symbols contains an empty symbol")
		}
	}
	if !validTimeframes[t.Timeframe] {
		return fmt.Errorf("trading.timeframe %q is not supported", t.Timeframe)
	}
	if t.MinConfidence <= 0 || t.MinConfidence > 1 {
		return fmt.Errorf("trading.min_confidence must be in (0,1], got %v", t.MinConfidence)
	}
	if t.CandleCount < 3 {
		return fmt.Errorf("trading.candle_count must be >= 3 for pattern analysis")
	}
	return nil
}

var validTimeframes = map[string]bool{
	"M1": true, "M5": true, "M15": true, "M30": true,
	"H1": true, "H4": true, "D1": true,
}

func (m *MT5Config) validate(mode string) error {
	if mode == "live" && strings.TrimSpace(m.BridgeURL) == "" {
		return fmt.Errorf("mt5.bridge_url cannot be empty in live mode")
	}
	return nil
}

func (a *AIConfig) validate() error {
	if !a.Enabled {
		return nil
	}
	if strings.TrimSpace(a.Model) == "" {
		return fmt.Errorf("ai.model cannot be empty when ai.enabled")
	}
	if strings.TrimSpace(a.APIURL) == "" {
		return fmt.Errorf("ai.api_url cannot be empty when ai.enabled")
	}
	return nil
}
