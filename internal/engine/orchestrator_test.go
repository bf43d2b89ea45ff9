package engine

import (
	"context"
	"errors"
	"testing"

	"dojihunter/internal/analyzer"
	"dojihunter/internal/config"
	"dojihunter/internal/gateway/mt5"
	"dojihunter/internal/market"
	"dojihunter/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func testSettings() *config.Settings {
	return config.NewSettings(config.TradingConfig{
		Enabled:         true,
		Mode:            "sim",
		Symbols:         []string{"BTCUSD"},
		Timeframe:       "M15",
		IntervalSeconds: 900,
		CandleCount:     10,
		MaxOpenOrders:   2,
		Volume:          0.1,
		Magic:           234000,
		MinConfidence:   0.75,
		SkipVerify:      true,
	})
}

func TestOrchestrator_FullBookSkipsAnalysis(t *testing.T) {
	ctx := context.Background()
	gw := new(mockGateway)
	st := &memStore{}
	gw.On("GetPositions", mock.Anything).Return(positionsResult(
		mt5.Position{Ticket: 1, Magic: 234000},
		mt5.Position{Ticket: 2, Magic: 234000},
	), nil)

	orch := NewOrchestrator(gw, st, nil, testSettings(), nil, nil)

	// Two cycles at the cap: both record max_orders_reached, neither
	// fetches candles or places anything.
	for i := 0; i < 2; i++ {
		res, err := orch.RunCycle(ctx, "BTCUSD")
		assert.NoError(t, err)
		assert.Equal(t, model.AnalysisStatusMaxOrdersReached, res.Status)
		assert.NotEmpty(t, res.TraceID)
	}
	assert.Len(t, st.analyses, 2)
	gw.AssertNotCalled(t, "GetCandles", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	gw.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestOrchestrator_EntryPath(t *testing.T) {
	ctx := context.Background()
	gw := new(mockGateway)
	st := &memStore{}

	gw.On("GetPositions", mock.Anything).Return(positionsResult(), nil)
	gw.On("GetCandles", mock.Anything, "BTCUSD", "M15", 10).Return(reversalCandles(), nil)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(req mt5.OrderRequest) bool {
		return req.Symbol == "BTCUSD" && req.Type == "SELL" && req.Magic == 234000
	})).Return(mt5.OrderResult{Success: true, Ticket: 700001, EntryPrice: 99.9, PositionVerified: true}, nil)

	inference := &stubEntryAnalyzer{result: analyzer.Result{ModelName: "test-model", IsDoji: true, Confidence: 0.85}}
	orch := NewOrchestrator(gw, st, nil, testSettings(), inference, nil)

	res, err := orch.RunCycle(ctx, "BTCUSD")
	assert.NoError(t, err)
	assert.Equal(t, model.AnalysisStatusEntry, res.Status)
	assert.True(t, res.IsDoji)
	assert.Equal(t, "700001", res.OrderTicket)
	assert.Equal(t, 1, inference.calls)

	// One analysis, two model results, one verified order, all committed.
	assert.Len(t, st.analyses, 1)
	assert.True(t, st.analyses[0].IsDojiDetected)
	assert.Len(t, st.results, 2)
	if assert.Len(t, st.orders, 1) {
		assert.Equal(t, model.OrderResultOpen, st.orders[0].Result)
		assert.Equal(t, st.analyses[0].ID, st.orders[0].AnalysisID)
	}
}

func TestOrchestrator_InferenceFailureFallsBackToHeuristic(t *testing.T) {
	ctx := context.Background()
	gw := new(mockGateway)
	st := &memStore{}

	gw.On("GetPositions", mock.Anything).Return(positionsResult(), nil)
	gw.On("GetCandles", mock.Anything, "BTCUSD", "M15", 10).Return(reversalCandles(), nil)
	gw.On("PlaceOrder", mock.Anything, mock.Anything).Return(mt5.OrderResult{Success: true, Ticket: 700002, PositionVerified: true}, nil)

	inference := &stubEntryAnalyzer{err: errors.New("model timeout")}
	orch := NewOrchestrator(gw, st, nil, testSettings(), inference, nil)

	// The heuristic fires at 0.85 on its own, so the cycle still enters.
	res, err := orch.RunCycle(ctx, "BTCUSD")
	assert.NoError(t, err)
	assert.Equal(t, model.AnalysisStatusEntry, res.Status)
	assert.Equal(t, FusionManualFallback, res.FusionMode)
	assert.Len(t, st.results, 1)
}

func TestOrchestrator_DisagreementBlocksEntry(t *testing.T) {
	ctx := context.Background()
	gw := new(mockGateway)
	st := &memStore{}

	gw.On("GetPositions", mock.Anything).Return(positionsResult(), nil)
	gw.On("GetCandles", mock.Anything, "BTCUSD", "M15", 10).Return(reversalCandles(), nil)

	inference := &stubEntryAnalyzer{result: analyzer.Result{ModelName: "test-model", IsDoji: false, Reason: "continuation"}}
	orch := NewOrchestrator(gw, st, nil, testSettings(), inference, nil)

	res, err := orch.RunCycle(ctx, "BTCUSD")
	assert.NoError(t, err)
	assert.Equal(t, model.AnalysisStatusIgnored, res.Status)
	assert.Equal(t, FusionDisagree, res.FusionMode)
	gw.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
	assert.Len(t, st.orders, 0)
}

func TestOrchestrator_NoPatternPersistsIgnored(t *testing.T) {
	ctx := context.Background()
	gw := new(mockGateway)
	st := &memStore{}

	// A steady bullish trend: no reversal, and the last bar is nowhere
	// near a doji. The cycle must still settle to a terminal status.
	gw.On("GetPositions", mock.Anything).Return(positionsResult(), nil)
	gw.On("GetCandles", mock.Anything, "BTCUSD", "M15", 10).Return(market.Candles{
		candle(100.0, 111.0, 99.0, 110.0),
		candle(110.0, 121.0, 109.0, 120.0),
		candle(120.0, 131.0, 119.0, 130.0),
	}, nil)

	orch := NewOrchestrator(gw, st, nil, testSettings(), nil, nil)
	res, err := orch.RunCycle(ctx, "BTCUSD")
	assert.NoError(t, err)
	assert.Equal(t, model.AnalysisStatusIgnored, res.Status)
	assert.Equal(t, FusionManualNoPattern, res.FusionMode)
	assert.False(t, res.IsDoji)
	if assert.Len(t, st.analyses, 1) {
		assert.Equal(t, model.AnalysisStatusIgnored, st.analyses[0].Status)
	}
	gw.AssertNotCalled(t, "PlaceOrder", mock.Anything, mock.Anything)
}

func TestOrchestrator_SingleDojiFadesPriorCandle(t *testing.T) {
	ctx := context.Background()
	gw := new(mockGateway)
	st := &memStore{}

	// Too few bars for the 3-candle pattern; the lone doji (body 5% of
	// range) enters anyway, fading the bullish bar before it.
	gw.On("GetPositions", mock.Anything).Return(positionsResult(), nil)
	gw.On("GetCandles", mock.Anything, "BTCUSD", "M15", 10).Return(market.Candles{
		candle(100.0, 106.0, 99.0, 105.0),
		candle(105.0, 110.0, 100.0, 105.5),
	}, nil)
	gw.On("PlaceOrder", mock.Anything, mock.MatchedBy(func(req mt5.OrderRequest) bool {
		return req.Type == "SELL"
	})).Return(mt5.OrderResult{Success: true, Ticket: 700003, PositionVerified: true}, nil)

	orch := NewOrchestrator(gw, st, nil, testSettings(), nil, nil)
	res, err := orch.RunCycle(ctx, "BTCUSD")
	assert.NoError(t, err)
	assert.Equal(t, model.AnalysisStatusEntry, res.Status)
	assert.Contains(t, res.Reason, "derived from prior candle")
	assert.Equal(t, "700003", res.OrderTicket)
}

func TestOrchestrator_NoCandlesAborts(t *testing.T) {
	ctx := context.Background()
	gw := new(mockGateway)
	st := &memStore{}

	gw.On("GetPositions", mock.Anything).Return(positionsResult(), nil)
	gw.On("GetCandles", mock.Anything, "BTCUSD", "M15", 10).Return(market.Candles{}, nil)

	orch := NewOrchestrator(gw, st, nil, testSettings(), nil, nil)
	_, err := orch.RunCycle(ctx, "BTCUSD")
	assert.ErrorIs(t, err, ErrNoCandles)
	assert.Len(t, st.analyses, 0)
}

func TestOrchestrator_Reconcile(t *testing.T) {
	ctx := context.Background()
	gw := new(mockGateway)
	st := &memStore{orders: []model.OrderModel{
		{Ticket: "100", Result: model.OrderResultOpen},
		{Ticket: "200", Result: model.OrderResultOpen},
		{Ticket: "300", Result: model.OrderResultWon},
	}}
	// Only ticket 100 is still live at the venue.
	gw.On("GetPositions", mock.Anything).Return(positionsResult(
		mt5.Position{Ticket: 100, Magic: 234000},
	), nil)

	orch := NewOrchestrator(gw, st, nil, testSettings(), nil, nil)
	settled, err := orch.Reconcile(ctx)
	assert.NoError(t, err)
	assert.Equal(t, 1, settled)

	order, _ := st.FindOrderByTicket(ctx, "200")
	assert.Equal(t, model.OrderResultClosedUnresolved, order.Result)
	order, _ = st.FindOrderByTicket(ctx, "100")
	assert.Equal(t, model.OrderResultOpen, order.Result)
}
