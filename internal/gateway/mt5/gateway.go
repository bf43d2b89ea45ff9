package mt5

import (
	"context"

	"dojihunter/internal/market"
)

// Position is a live position as reported by the gateway. The gateway's
// position set is the single source of truth for what is open; nothing in
// this system asserts liveness from local state.
type Position struct {
	Ticket       int64   `json:"ticket"`
	Symbol       string  `json:"symbol"`
	Type         string  `json:"type"`
	Volume       float64 `json:"volume"`
	PriceOpen    float64 `json:"price_open"`
	PriceCurrent float64 `json:"price_current"`
	StopLoss     float64 `json:"sl"`
	TakeProfit   float64 `json:"tp"`
	Profit       float64 `json:"profit"`
	Magic        int64   `json:"magic"`
	Comment      string  `json:"comment"`
}

// PositionsResult is the /positions payload.
type PositionsResult struct {
	Success   bool       `json:"success"`
	Count     int        `json:"count"`
	Positions []Position `json:"positions"`
	Error     string     `json:"error,omitempty"`
}

// OrderRequest is what the engine submits. Magic tags the position as
// owned by this system.
type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Type       string  `json:"type"`
	Volume     float64 `json:"volume"`
	StopLoss   float64 `json:"sl"`
	TakeProfit float64 `json:"tp"`
	Magic      int64   `json:"magic"`
}

// OrderResult is the bridge's reply to an order submission. Success=false
// with a populated Error/Retcode means the venue rejected the order.
type OrderResult struct {
	Success          bool    `json:"success"`
	Ticket           int64   `json:"order_ticket"`
	DealTicket       int64   `json:"deal_ticket"`
	EntryPrice       float64 `json:"entry_price"`
	Volume           float64 `json:"volume"`
	Retcode          int     `json:"retcode"`
	PositionVerified bool    `json:"position_verified"`
	Error            string  `json:"error,omitempty"`
}

// VerifyResult is the /positions/{ticket} payload.
type VerifyResult struct {
	Exists   bool     `json:"exists"`
	Position Position `json:"-"`
}

// CloseResult is the /close/{ticket} payload.
type CloseResult struct {
	Success    bool    `json:"success"`
	ClosePrice float64 `json:"close_price"`
	Profit     float64 `json:"profit"`
	Error      string  `json:"error,omitempty"`
}

// Health reports bridge readiness for trading.
type Health struct {
	Ready  bool     `json:"ready"`
	Errors []string `json:"errors,omitempty"`
}

// Gateway is the execution/market-data venue boundary. Two implementations
// exist: the HTTP bridge Client and the in-memory Simulator; which one runs
// is decided once at construction from configuration, never inside business
// logic.
type Gateway interface {
	GetCandles(ctx context.Context, symbol, timeframe string, count int) (market.Candles, error)
	GetPositions(ctx context.Context) (PositionsResult, error)
	GetPosition(ctx context.Context, ticket int64) (VerifyResult, error)
	PlaceOrder(ctx context.Context, req OrderRequest) (OrderResult, error)
	ClosePosition(ctx context.Context, ticket int64) (CloseResult, error)
	TradingHealth(ctx context.Context) (Health, error)
}
