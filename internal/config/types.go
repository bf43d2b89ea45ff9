package config

// Config is the main configuration carrier for DojiHunter.
type Config struct {
	App     AppConfig     `toml:"app"`
	Trading TradingConfig `toml:"trading"`
	MT5     MT5Config     `toml:"mt5"`
	AI      AIConfig      `toml:"ai"`
	Binance BinanceConfig `toml:"binance"`
	Store   StoreConfig   `toml:"store"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	HTTPAddr string `toml:"http_addr"`
	LogPath  string `toml:"log_path"`
}

// TradingConfig is the runtime trading settings block. It is treated as an
// immutable value: updates (settings endpoint, config file watcher) replace
// the whole block atomically, nothing mutates it in place.
type TradingConfig struct {
	Enabled         bool     `toml:"enabled" json:"enabled"`
	Mode            string   `toml:"mode" json:"mode"` // "live" | "sim"
	Symbols         []string `toml:"symbols" json:"symbols"`
	Timeframe       string   `toml:"timeframe" json:"timeframe"`
	IntervalSeconds int      `toml:"interval_seconds" json:"interval_seconds"`
	CandleCount     int      `toml:"candle_count" json:"candle_count"`
	MaxOpenOrders   int      `toml:"max_open_orders" json:"max_open_orders"`
	Volume          float64  `toml:"volume" json:"volume"`
	Magic           int64    `toml:"magic" json:"magic"`
	MinConfidence   float64  `toml:"min_confidence" json:"min_confidence"`
	// SkipVerify bypasses the post-submission existence lookup and must
	// only ever be set for simulation runs. Live mode refuses it.
	SkipVerify bool `toml:"skip_verify" json:"skip_verify"`
}

// MT5Config describes the bridge exposing the MetaTrader 5 terminal.
type MT5Config struct {
	BridgeURL      string `toml:"bridge_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// AIConfig describes the OpenAI-compatible inference collaborator.
type AIConfig struct {
	Enabled        bool   `toml:"enabled"`
	APIURL         string `toml:"api_url"`
	APIKey         string `toml:"api_key"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
	MaxRetries     int    `toml:"max_retries"`
}

// BinanceConfig configures the kline source that feeds the simulated
// gateway with real market data.
type BinanceConfig struct {
	Enabled        bool   `toml:"enabled"`
	RESTBaseURL    string `toml:"rest_base_url"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

type StoreConfig struct {
	HistoryPath string `toml:"history_path"`
	JournalPath string `toml:"journal_path"`
}
