package config

import "strings"

const (
	defaultAppEnv          = "dev"
	defaultAppLogLevel     = "info"
	defaultAppHTTPAddr     = ":8090"
	defaultTradingMode     = "live"
	defaultTimeframe       = "M15"
	defaultInterval        = 900
	defaultCandleCount     = 10
	defaultMaxOpenOrders   = 2
	defaultVolume          = 0.1
	defaultMagic           = 234000
	defaultMinConfidence   = 0.75
	defaultMT5Bridge       = "http://127.0.0.1:5000"
	defaultMT5Timeout      = 30
	defaultAITimeout       = 60
	defaultAIRetries       = 2
	defaultBinanceREST     = "https://api.binance.com"
	defaultBinanceTimeout  = 15
	defaultHistoryPath     = "data/dojihunter.db"
	defaultJournalPath     = "data/journal.db"
)

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Trading.applyDefaults()
	c.MT5.applyDefaults()
	c.AI.applyDefaults()
	c.Binance.applyDefaults()
	c.Store.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
	if a.HTTPAddr == "" {
		a.HTTPAddr = defaultAppHTTPAddr
	}
}

func (t *TradingConfig) applyDefaults() {
	if t.Mode == "" {
		t.Mode = defaultTradingMode
	}
	t.Mode = strings.ToLower(strings.TrimSpace(t.Mode))
	if len(t.Symbols) == 0 {
		t.Symbols = []string{"BTCUSD", "ETHUSD"}
	}
	if t.Timeframe == "" {
		t.Timeframe = defaultTimeframe
	}
	if t.IntervalSeconds <= 0 {
		t.IntervalSeconds = defaultInterval
	}
	if t.CandleCount <= 0 {
		t.CandleCount = defaultCandleCount
	}
	if t.MaxOpenOrders <= 0 {
		t.MaxOpenOrders = defaultMaxOpenOrders
	}
	if t.Volume <= 0 {
		t.Volume = defaultVolume
	}
	if t.Magic == 0 {
		t.Magic = defaultMagic
	}
	if t.MinConfidence <= 0 {
		t.MinConfidence = defaultMinConfidence
	}
}

func (m *MT5Config) applyDefaults() {
	if m.BridgeURL == "" {
		m.BridgeURL = defaultMT5Bridge
	}
	if m.TimeoutSeconds <= 0 {
		m.TimeoutSeconds = defaultMT5Timeout
	}
}

func (a *AIConfig) applyDefaults() {
	if a.TimeoutSeconds <= 0 {
		a.TimeoutSeconds = defaultAITimeout
	}
	if a.MaxRetries < 0 {
		a.MaxRetries = defaultAIRetries
	}
}

func (b *BinanceConfig) applyDefaults() {
	if b.RESTBaseURL == "" {
		b.RESTBaseURL = defaultBinanceREST
	}
	if b.TimeoutSeconds <= 0 {
		b.TimeoutSeconds = defaultBinanceTimeout
	}
}

func (s *StoreConfig) applyDefaults() {
	if s.HistoryPath == "" {
		s.HistoryPath = defaultHistoryPath
	}
	if s.JournalPath == "" {
		s.JournalPath = defaultJournalPath
	}
}
