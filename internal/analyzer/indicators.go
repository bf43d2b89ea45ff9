package analyzer

import (
	"fmt"
	"strings"

	"dojihunter/internal/market"

	talib "github.com/markcheno/go-talib"
)

// indicatorContext renders a short technical snapshot (RSI, EMA, ATR) that
// is appended to the inference prompt. The model sees the same series the
// pattern analyzer saw plus a little context about momentum and
// volatility.
func indicatorContext(candles market.Candles) string {
	var lines []string
	closes := candles.Closes()
	if len(closes) >= 8 {
		period := 7
		if rsi := talib.Rsi(closes, period); len(rsi) > 0 {
			if v := rsi[len(rsi)-1]; v > 0 {
				lines = append(lines, fmt.Sprintf("RSI(%d)=%.1f", period, v))
			}
		}
		if ema := talib.Ema(closes, period); len(ema) > 0 {
			last := closes[len(closes)-1]
			e := ema[len(ema)-1]
			if e > 0 {
				lines = append(lines, fmt.Sprintf("EMA(%d)=%.5f (price %+.2f%%)", period, e, (last-e)/e*100))
			}
		}
		if atr := talib.Atr(candles.Highs(), candles.Lows(), closes, period); len(atr) > 0 {
			if v := atr[len(atr)-1]; v > 0 {
				lines = append(lines, fmt.Sprintf("ATR(%d)=%.5f", period, v))
			}
		}
	}
	if len(lines) == 0 {
		return ""
	}
	return "Indicators: " + strings.Join(lines, ", ")
}
