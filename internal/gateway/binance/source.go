package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	dhcfg "dojihunter/internal/config"
	"dojihunter/internal/market"

	"github.com/adshao/go-binance/v2"
)

// Source serves klines from Binance spot REST. It backs the simulated
// gateway so paper runs see real market structure instead of noise.
type Source struct {
	client *binance.Client
}

// New constructs a Source from configuration.
func New(cfg dhcfg.BinanceConfig) (*Source, error) {
	client := binance.NewClient("", "")
	if base := strings.TrimSpace(cfg.RESTBaseURL); base != "" {
		client.BaseURL = base
	}
	client.HTTPClient.Timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	return &Source{client: client}, nil
}

// timeframe maps MT5 timeframe codes to Binance kline intervals.
var timeframes = map[string]string{
	"M1":  "1m",
	"M5":  "5m",
	"M15": "15m",
	"M30": "30m",
	"H1":  "1h",
	"H4":  "4h",
	"D1":  "1d",
}

// GetCandles fetches count bars, oldest first.
func (s *Source) GetCandles(ctx context.Context, symbol, timeframe string, count int) (market.Candles, error) {
	interval, ok := timeframes[timeframe]
	if !ok {
		return nil, fmt.Errorf("unsupported timeframe %q", timeframe)
	}
	if count <= 0 {
		count = 10
	}
	klines, err := s.client.NewKlinesService().
		Symbol(pairFor(symbol)).
		Interval(interval).
		Limit(count).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("binance klines for %s: %w", symbol, err)
	}
	out := make(market.Candles, 0, len(klines))
	for _, k := range klines {
		c, err := convertKline(k)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func convertKline(k *binance.Kline) (market.Candle, error) {
	open, err := strconv.ParseFloat(k.Open, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parsing kline open: %w", err)
	}
	high, err := strconv.ParseFloat(k.High, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parsing kline high: %w", err)
	}
	low, err := strconv.ParseFloat(k.Low, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parsing kline low: %w", err)
	}
	closePx, err := strconv.ParseFloat(k.Close, 64)
	if err != nil {
		return market.Candle{}, fmt.Errorf("parsing kline close: %w", err)
	}
	volume, _ := strconv.ParseFloat(k.Volume, 64)
	return market.Candle{
		Time:   k.OpenTime / 1000,
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePx,
		Volume: volume,
	}, nil
}

// pairFor maps MT5-style symbols (BTCUSD) to Binance pairs (BTCUSDT).
// Symbols already ending in a stablecoin pass through.
func pairFor(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	if i := strings.IndexAny(s, "."); i > 0 {
		s = s[:i]
	}
	if strings.HasSuffix(s, "USDT") || strings.HasSuffix(s, "USDC") {
		return s
	}
	if strings.HasSuffix(s, "USD") {
		return s + "T"
	}
	return s
}
