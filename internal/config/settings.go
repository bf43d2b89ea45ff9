package config

import (
	"fmt"
	"os"
	"sync/atomic"

	"dojihunter/internal/logger"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Settings holds the live trading settings. Readers take the current value
// with Current(); writers swap in a fresh copy with Replace(). There is no
// in-place mutation, so a cycle always sees one consistent block.
type Settings struct {
	ptr atomic.Pointer[TradingConfig]
}

func NewSettings(tc TradingConfig) *Settings {
	s := &Settings{}
	s.ptr.Store(&tc)
	return s
}

func (s *Settings) Current() TradingConfig {
	return *s.ptr.Load()
}

// Replace validates and swaps the runtime settings.
func (s *Settings) Replace(tc TradingConfig) error {
	tc.applyDefaults()
	if err := tc.validate(); err != nil {
		return err
	}
	s.ptr.Store(&tc)
	return nil
}

// SaveTrading persists the trading block back to the YAML config file,
// leaving the other sections untouched.
func SaveTrading(path string, tc TradingConfig) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config for save: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("parsing config for save: %w", err)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	doc["trading"] = map[string]any{
		"enabled":          tc.Enabled,
		"mode":             tc.Mode,
		"symbols":          tc.Symbols,
		"timeframe":        tc.Timeframe,
		"interval_seconds": tc.IntervalSeconds,
		"candle_count":     tc.CandleCount,
		"max_open_orders":  tc.MaxOpenOrders,
		"volume":           tc.Volume,
		"magic":            tc.Magic,
		"min_confidence":   tc.MinConfidence,
		"skip_verify":      tc.SkipVerify,
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

// Watch reloads the trading block whenever the config file changes on disk
// and replaces the runtime settings. Invalid edits are logged and ignored,
// the previous settings stay active.
func Watch(path string, settings *Settings) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return err
	}
	v.OnConfigChange(func(evt fsnotify.Event) {
		cfg, err := Load(path)
		if err != nil {
			logger.Warnf("config watch: reload failed, keeping previous settings: %v", err)
			return
		}
		if err := settings.Replace(cfg.Trading); err != nil {
			logger.Warnf("config watch: invalid trading settings, keeping previous: %v", err)
			return
		}
		logger.Infof("config watch: trading settings reloaded (%s)", evt.Name)
	})
	v.WatchConfig()
	return nil
}
