package market

import "time"

// Candle is one OHLC bar as reported by the MT5 bridge. Candles arrive
// oldest first.
type Candle struct {
	Time   int64   `json:"time"`
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume float64 `json:"tick_volume"`
}

// Body returns the absolute open/close distance.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns high-low. Zero range marks a malformed bar.
func (c Candle) Range() float64 {
	return c.High - c.Low
}

// BodyRatio returns Body/Range, or -1 when the range is zero.
func (c Candle) BodyRatio() float64 {
	r := c.Range()
	if r == 0 {
		return -1
	}
	return c.Body() / r
}

// Bullish reports whether the bar closed above its open.
func (c Candle) Bullish() bool {
	return c.Close > c.Open
}

// OpenedAt converts the bar timestamp to time.Time.
func (c Candle) OpenedAt() time.Time {
	return time.Unix(c.Time, 0).UTC()
}

type Candles []Candle

// Last returns the newest bar; ok is false for an empty series.
func (cs Candles) Last() (Candle, bool) {
	if len(cs) == 0 {
		return Candle{}, false
	}
	return cs[len(cs)-1], true
}

// LastN returns the newest n bars in chronological order.
func (cs Candles) LastN(n int) Candles {
	if n <= 0 || len(cs) == 0 {
		return nil
	}
	if len(cs) <= n {
		return cs
	}
	return cs[len(cs)-n:]
}

// Closes extracts the close series, oldest first.
func (cs Candles) Closes() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Close
	}
	return out
}

// Highs extracts the high series, oldest first.
func (cs Candles) Highs() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.High
	}
	return out
}

// Lows extracts the low series, oldest first.
func (cs Candles) Lows() []float64 {
	out := make([]float64, len(cs))
	for i, c := range cs {
		out[i] = c.Low
	}
	return out
}
