package mt5

import (
	"context"
	"testing"

	"dojihunter/internal/market"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedSource struct {
	candles market.Candles
}

func (f *fixedSource) GetCandles(ctx context.Context, symbol, timeframe string, count int) (market.Candles, error) {
	return f.candles, nil
}

func TestSimulator_OrderLifecycle(t *testing.T) {
	ctx := context.Background()
	source := &fixedSource{candles: market.Candles{
		{Open: 100, High: 110, Low: 98, Close: 105},
	}}
	sim := NewSimulator(source)

	// The simulator fills at the last observed close, so a candle fetch
	// must precede the order.
	_, err := sim.GetCandles(ctx, "BTCUSD", "M15", 1)
	require.NoError(t, err)

	res, err := sim.PlaceOrder(ctx, OrderRequest{
		Symbol: "BTCUSD", Type: "BUY", Volume: 2, StopLoss: 90, TakeProfit: 120, Magic: 234000,
	})
	require.NoError(t, err)
	require.True(t, res.Success)
	assert.True(t, res.PositionVerified)
	assert.InDelta(t, 105.0, res.EntryPrice, 1e-9)

	vr, err := sim.GetPosition(ctx, res.Ticket)
	require.NoError(t, err)
	assert.True(t, vr.Exists)
	assert.Equal(t, int64(234000), vr.Position.Magic)

	// Price moves up; the open BUY shows unrealized profit.
	source.candles = market.Candles{{Open: 105, High: 112, Low: 104, Close: 110}}
	_, err = sim.GetCandles(ctx, "BTCUSD", "M15", 1)
	require.NoError(t, err)

	all, err := sim.GetPositions(ctx)
	require.NoError(t, err)
	require.Len(t, all.Positions, 1)
	assert.InDelta(t, 10.0, all.Positions[0].Profit, 1e-9) // (110-105)*2

	closed, err := sim.ClosePosition(ctx, res.Ticket)
	require.NoError(t, err)
	assert.True(t, closed.Success)
	assert.InDelta(t, 10.0, closed.Profit, 1e-9)

	vr, err = sim.GetPosition(ctx, res.Ticket)
	require.NoError(t, err)
	assert.False(t, vr.Exists)
}

func TestSimulator_OrderWithoutPriceRejected(t *testing.T) {
	sim := NewSimulator(nil)
	res, err := sim.PlaceOrder(context.Background(), OrderRequest{Symbol: "XAUUSD", Type: "SELL", Volume: 1})
	assert.NoError(t, err)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "no price")
}

func TestSimulator_SyntheticFallback(t *testing.T) {
	sim := NewSimulator(nil)
	candles, err := sim.GetCandles(context.Background(), "EURUSD", "M15", 10)
	assert.NoError(t, err)
	assert.Len(t, candles, 10)
	for _, c := range candles {
		assert.GreaterOrEqual(t, c.High, c.Low)
	}
}
