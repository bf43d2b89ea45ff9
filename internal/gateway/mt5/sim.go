package mt5

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"dojihunter/internal/logger"
	"dojihunter/internal/market"
)

// CandleSource supplies bars to the simulator. The binance gateway
// implements it with real market data; when absent the simulator falls
// back to a synthetic random walk.
type CandleSource interface {
	GetCandles(ctx context.Context, symbol, timeframe string, count int) (market.Candles, error)
}

// Simulator is the paper-trading Gateway. Orders fill instantly at the
// last close, positions live in memory, and closes realize the difference
// to the current price. It mirrors the bridge's semantics closely enough
// that the engine cannot tell the difference, which is the point.
type Simulator struct {
	source CandleSource

	mu         sync.Mutex
	nextTicket int64
	positions  map[int64]*Position
	walks      map[string]*rand.Rand
	lastPrice  map[string]float64
}

var _ Gateway = (*Simulator)(nil)

func NewSimulator(source CandleSource) *Simulator {
	return &Simulator{
		source:     source,
		nextTicket: 700000,
		positions:  map[int64]*Position{},
		walks:      map[string]*rand.Rand{},
		lastPrice:  map[string]float64{},
	}
}

func (s *Simulator) GetCandles(ctx context.Context, symbol, timeframe string, count int) (market.Candles, error) {
	if s.source != nil {
		candles, err := s.source.GetCandles(ctx, symbol, timeframe, count)
		if err == nil {
			s.observeClose(symbol, candles)
			return candles, nil
		}
		logger.Warnf("simulator: candle source failed for %s, using synthetic walk: %v", symbol, err)
	}
	candles := s.syntheticCandles(symbol, count)
	s.observeClose(symbol, candles)
	return candles, nil
}

func (s *Simulator) observeClose(symbol string, candles market.Candles) {
	last, ok := candles.Last()
	if !ok {
		return
	}
	s.mu.Lock()
	s.lastPrice[symbol] = last.Close
	s.mu.Unlock()
}

func (s *Simulator) syntheticCandles(symbol string, count int) market.Candles {
	s.mu.Lock()
	rng, ok := s.walks[symbol]
	if !ok {
		rng = rand.New(rand.NewSource(int64(len(symbol)) + time.Now().UnixNano()))
		s.walks[symbol] = rng
	}
	price, ok := s.lastPrice[symbol]
	if !ok || price <= 0 {
		price = 100 + rng.Float64()*1000
	}
	s.mu.Unlock()

	now := time.Now().UTC().Truncate(time.Minute)
	out := make(market.Candles, 0, count)
	for i := count - 1; i >= 0; i-- {
		open := price
		move := price * (rng.Float64() - 0.5) * 0.01
		closePx := open + move
		high := maxFloat(open, closePx) + price*rng.Float64()*0.002
		low := minFloat(open, closePx) - price*rng.Float64()*0.002
		out = append(out, market.Candle{
			Time:   now.Add(-time.Duration(i) * time.Minute).Unix(),
			Open:   open,
			High:   high,
			Low:    low,
			Close:  closePx,
			Volume: float64(rng.Intn(1000) + 100),
		})
		price = closePx
	}
	return out
}

func (s *Simulator) GetPositions(ctx context.Context) (PositionsResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := PositionsResult{Success: true}
	for _, p := range s.positions {
		cp := *p
		if px, ok := s.lastPrice[p.Symbol]; ok && px > 0 {
			cp.PriceCurrent = px
			cp.Profit = unrealized(p, px)
		}
		out.Positions = append(out.Positions, cp)
	}
	out.Count = len(out.Positions)
	return out, nil
}

func (s *Simulator) GetPosition(ctx context.Context, ticket int64) (VerifyResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[ticket]
	if !ok {
		return VerifyResult{Exists: false}, nil
	}
	return VerifyResult{Exists: true, Position: *p}, nil
}

func (s *Simulator) PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	price := s.lastPrice[req.Symbol]
	if price <= 0 {
		return OrderResult{Success: false, Error: fmt.Sprintf("no price for symbol %s", req.Symbol)}, nil
	}
	s.nextTicket++
	ticket := s.nextTicket
	s.positions[ticket] = &Position{
		Ticket:       ticket,
		Symbol:       req.Symbol,
		Type:         req.Type,
		Volume:       req.Volume,
		PriceOpen:    price,
		PriceCurrent: price,
		StopLoss:     req.StopLoss,
		TakeProfit:   req.TakeProfit,
		Magic:        req.Magic,
		Comment:      "DojiHunter sim",
	}
	logger.Infof("simulator: opened %s %s @ %.5f ticket=%d", req.Type, req.Symbol, price, ticket)
	return OrderResult{
		Success:          true,
		Ticket:           ticket,
		EntryPrice:       price,
		Volume:           req.Volume,
		Retcode:          10009,
		PositionVerified: true,
	}, nil
}

func (s *Simulator) ClosePosition(ctx context.Context, ticket int64) (CloseResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.positions[ticket]
	if !ok {
		return CloseResult{Success: false, Error: fmt.Sprintf("position %d not found", ticket)}, nil
	}
	price := s.lastPrice[p.Symbol]
	if price <= 0 {
		price = p.PriceOpen
	}
	delete(s.positions, ticket)
	profit := unrealized(p, price)
	logger.Infof("simulator: closed ticket=%d @ %.5f profit=%.2f", ticket, price, profit)
	return CloseResult{Success: true, ClosePrice: price, Profit: profit}, nil
}

func (s *Simulator) TradingHealth(ctx context.Context) (Health, error) {
	return Health{Ready: true}, nil
}

func unrealized(p *Position, price float64) float64 {
	if p.Type == "SELL" {
		return (p.PriceOpen - price) * p.Volume
	}
	return (price - p.PriceOpen) * p.Volume
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
