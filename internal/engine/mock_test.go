package engine

import (
	"context"
	"sync"
	"time"

	"dojihunter/internal/analyzer"
	"dojihunter/internal/gateway/mt5"
	"dojihunter/internal/market"
	"dojihunter/internal/store/model"

	"github.com/stretchr/testify/mock"
)

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) GetCandles(ctx context.Context, symbol, timeframe string, count int) (market.Candles, error) {
	args := m.Called(ctx, symbol, timeframe, count)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(market.Candles), args.Error(1)
}

func (m *mockGateway) GetPositions(ctx context.Context) (mt5.PositionsResult, error) {
	args := m.Called(ctx)
	return args.Get(0).(mt5.PositionsResult), args.Error(1)
}

func (m *mockGateway) GetPosition(ctx context.Context, ticket int64) (mt5.VerifyResult, error) {
	args := m.Called(ctx, ticket)
	return args.Get(0).(mt5.VerifyResult), args.Error(1)
}

func (m *mockGateway) PlaceOrder(ctx context.Context, req mt5.OrderRequest) (mt5.OrderResult, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(mt5.OrderResult), args.Error(1)
}

func (m *mockGateway) ClosePosition(ctx context.Context, ticket int64) (mt5.CloseResult, error) {
	args := m.Called(ctx, ticket)
	return args.Get(0).(mt5.CloseResult), args.Error(1)
}

func (m *mockGateway) TradingHealth(ctx context.Context) (mt5.Health, error) {
	args := m.Called(ctx)
	return args.Get(0).(mt5.Health), args.Error(1)
}

// memStore is an in-memory Store for orchestrator tests.
type memStore struct {
	mu       sync.Mutex
	analyses []model.AnalysisModel
	results  []model.ModelResultModel
	orders   []model.OrderModel
}

func (s *memStore) SaveCycle(ctx context.Context, analysis *model.AnalysisModel, results []model.ModelResultModel, order *model.OrderModel) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	analysis.ID = int64(len(s.analyses) + 1)
	s.analyses = append(s.analyses, *analysis)
	for _, r := range results {
		r.AnalysisID = analysis.ID
		s.results = append(s.results, r)
	}
	if order != nil {
		order.ID = int64(len(s.orders) + 1)
		order.AnalysisID = analysis.ID
		s.orders = append(s.orders, *order)
	}
	return nil
}

func (s *memStore) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.AnalysisModel(nil), s.analyses...), nil
}

func (s *memStore) ListOrders(ctx context.Context, limit int) ([]model.OrderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.OrderModel(nil), s.orders...), nil
}

func (s *memStore) ListOpenOrders(ctx context.Context) ([]model.OrderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var open []model.OrderModel
	for _, o := range s.orders {
		if o.Result == model.OrderResultOpen {
			open = append(open, o)
		}
	}
	return open, nil
}

func (s *memStore) FindOrderByTicket(ctx context.Context, ticket string) (*model.OrderModel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].Ticket == ticket {
			o := s.orders[i]
			return &o, nil
		}
	}
	return nil, nil
}

func (s *memStore) SettleOrder(ctx context.Context, ticket string, result model.OrderResult, profit float64, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].Ticket == ticket && s.orders[i].Result == model.OrderResultOpen {
			s.orders[i].Result = result
			s.orders[i].Profit = profit
			s.orders[i].ClosedAt = &closedAt
		}
	}
	return nil
}

func (s *memStore) Close() error { return nil }

type stubEntryAnalyzer struct {
	result analyzer.Result
	err    error
	calls  int
}

func (s *stubEntryAnalyzer) Analyze(ctx context.Context, symbol, timeframe string, candles market.Candles) (analyzer.Result, error) {
	s.calls++
	return s.result, s.err
}

func candle(open, high, low, close float64) market.Candle {
	return market.Candle{Time: time.Now().Unix(), Open: open, High: high, Low: low, Close: close}
}

// reversalCandles ends in a textbook evening star so the heuristic fires
// with a SELL direction.
func reversalCandles() market.Candles {
	return market.Candles{
		candle(110.0, 111.0, 101.0, 102.0),
		candle(102.0, 107.0, 97.0, 102.5),
		candle(102.5, 112.0, 102.0, 110.5),
		candle(100.0, 110.0, 100.0, 106.0),
		candle(106.0, 111.0, 101.0, 107.0),
		candle(107.0, 108.0, 98.0, 100.0),
	}
}

func positionsResult(positions ...mt5.Position) mt5.PositionsResult {
	return mt5.PositionsResult{Success: true, Count: len(positions), Positions: positions}
}
