package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"dojihunter/internal/analyzer"
	"dojihunter/internal/gateway/mt5"
	"dojihunter/internal/logger"
	"dojihunter/internal/market"
	"dojihunter/internal/store"
	"dojihunter/internal/store/model"

	"github.com/shopspring/decimal"
)

const (
	// advisoryCloseConfidence gates the model's close advice. The manual
	// rules are authoritative; advice below this is ignored.
	advisoryCloseConfidence = 0.80

	// closeAllPace spaces sequential close requests so the bridge is not
	// hammered when flattening the book.
	closeAllPace = 500 * time.Millisecond
)

// CloseAdvisor gives an advisory second opinion on open positions. A nil
// advisor means the manual rules run alone.
type CloseAdvisor interface {
	AnalyzeClose(ctx context.Context, pos analyzer.PositionContext, candles market.Candles) (analyzer.CloseAdvice, error)
}

// ClosingPolicy decides when our open positions should be flattened and
// carries out the close. SL and TP are evaluated here in addition to the
// venue's own stops, so a bridge that dropped the protective levels still
// gets positions closed at the right prices.
type ClosingPolicy struct {
	gw      mt5.Gateway
	st      store.Store
	advisor CloseAdvisor
	magic   int64
}

func NewClosingPolicy(gw mt5.Gateway, st store.Store, advisor CloseAdvisor, magic int64) *ClosingPolicy {
	return &ClosingPolicy{gw: gw, st: st, advisor: advisor, magic: magic}
}

// Verdict is one position's closing decision.
type Verdict struct {
	ShouldClose bool
	Rule        string
	Reason      string
}

// Evaluate applies the manual closing rules in order: stop-loss touch,
// take-profit touch, adverse reversal. patternRange is the range of the
// candle that opened the position; zero disables the reversal rule.
func (c *ClosingPolicy) Evaluate(pos mt5.Position, candles market.Candles, patternRange float64) Verdict {
	current := decimal.NewFromFloat(pos.PriceCurrent)
	sl := decimal.NewFromFloat(pos.StopLoss)
	tp := decimal.NewFromFloat(pos.TakeProfit)
	isBuy := pos.Type == "BUY"

	if pos.StopLoss > 0 {
		slHit := (isBuy && current.LessThanOrEqual(sl)) || (!isBuy && current.GreaterThanOrEqual(sl))
		if slHit {
			return Verdict{
				ShouldClose: true,
				Rule:        "stop-loss",
				Reason:      fmt.Sprintf("price %.5f crossed stop %.5f", pos.PriceCurrent, pos.StopLoss),
			}
		}
	}
	if pos.TakeProfit > 0 {
		tpHit := (isBuy && current.GreaterThanOrEqual(tp)) || (!isBuy && current.LessThanOrEqual(tp))
		if tpHit {
			return Verdict{
				ShouldClose: true,
				Rule:        "take-profit",
				Reason:      fmt.Sprintf("price %.5f crossed target %.5f", pos.PriceCurrent, pos.TakeProfit),
			}
		}
	}

	if patternRange > 0 {
		if last, ok := candles.Last(); ok && last.Range() > 0 {
			opposing := (isBuy && !last.Bullish()) || (!isBuy && last.Bullish())
			// The position must actually be losing: price moved against
			// the entry by more than the pattern that opened it.
			adverse := pos.PriceOpen - pos.PriceCurrent
			if !isBuy {
				adverse = pos.PriceCurrent - pos.PriceOpen
			}
			if opposing && adverse > patternRange && last.Range() > 1.5*patternRange {
				return Verdict{
					ShouldClose: true,
					Rule:        "reversal",
					Reason: fmt.Sprintf("price moved %.5f against entry (pattern range %.5f) on an opposing bar of range %.5f",
						adverse, patternRange, last.Range()),
				}
			}
		}
	}
	return Verdict{Reason: "no closing rule triggered"}
}

// Monitor walks our open positions, evaluates each, and closes the ones a
// rule fired on. Per-position failures are logged and skipped so one bad
// symbol cannot stall the rest of the sweep.
func (c *ClosingPolicy) Monitor(ctx context.Context, timeframe string, candleCount int) (MonitorReport, error) {
	var report MonitorReport
	positions, err := c.owned(ctx)
	if err != nil {
		return report, err
	}
	for _, pos := range positions {
		report.Checked++
		candles, err := c.gw.GetCandles(ctx, pos.Symbol, timeframe, candleCount)
		if err != nil {
			logger.Warnf("monitor: candles for %s unavailable: %v", pos.Symbol, err)
			continue
		}
		verdict := c.Evaluate(pos, candles, c.patternRangeFor(ctx, pos.Ticket, candles))
		if !verdict.ShouldClose && c.advisor != nil {
			verdict = c.advisory(ctx, pos, candles)
		}
		if !verdict.ShouldClose {
			continue
		}
		logger.Infof("closing position %d on %s (%s): %s", pos.Ticket, pos.Symbol, verdict.Rule, verdict.Reason)
		if _, err := c.Close(ctx, pos.Ticket, verdict.Reason); err != nil {
			logger.Errorf("monitor: close of %d failed: %v", pos.Ticket, err)
			report.Failed++
			continue
		}
		report.Closed++
	}
	return report, nil
}

// MonitorReport summarises one closing sweep.
type MonitorReport struct {
	Checked int `json:"checked"`
	Closed  int `json:"closed"`
	Failed  int `json:"failed"`
}

// patternRangeFor recovers the entry pattern's range from the stored
// order. When the order cannot be found (opened before this process, or
// by hand) the previous candle's range stands in.
func (c *ClosingPolicy) patternRangeFor(ctx context.Context, ticket int64, candles market.Candles) float64 {
	if c.st != nil {
		order, err := c.st.FindOrderByTicket(ctx, fmt.Sprintf("%d", ticket))
		if err == nil && order != nil && len(order.PatternJSON) > 0 {
			var pattern market.Candle
			if json.Unmarshal(order.PatternJSON, &pattern) == nil && pattern.Range() > 0 {
				return pattern.Range()
			}
		}
	}
	if len(candles) >= 2 {
		return candles[len(candles)-2].Range()
	}
	return 0
}

func (c *ClosingPolicy) advisory(ctx context.Context, pos mt5.Position, candles market.Candles) Verdict {
	advice, err := c.advisor.AnalyzeClose(ctx, analyzer.PositionContext{
		Symbol:       pos.Symbol,
		Type:         pos.Type,
		PriceOpen:    pos.PriceOpen,
		PriceCurrent: pos.PriceCurrent,
		StopLoss:     pos.StopLoss,
		TakeProfit:   pos.TakeProfit,
		Profit:       pos.Profit,
	}, candles)
	if err != nil {
		logger.Warnf("close advisory for %d failed, manual rules stand: %v", pos.Ticket, err)
		return Verdict{Reason: "advisory unavailable"}
	}
	if advice.ShouldClose && advice.Confidence >= advisoryCloseConfidence {
		return Verdict{
			ShouldClose: true,
			Rule:        "advisory",
			Reason:      fmt.Sprintf("model advises close at %.0f%%: %s", advice.Confidence*100, advice.Reason),
		}
	}
	return Verdict{Reason: "advisory below confidence gate"}
}

// Close flattens one position at the venue and settles the matching order
// record from the realised profit. A missing order record is not an
// error; the venue close already happened.
func (c *ClosingPolicy) Close(ctx context.Context, ticket int64, reason string) (mt5.CloseResult, error) {
	res, err := c.gw.ClosePosition(ctx, ticket)
	if err != nil {
		return res, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !res.Success {
		return res, fmt.Errorf("close of %d refused: %s", ticket, res.Error)
	}
	result := model.OrderResultLost
	if res.Profit > 0 {
		result = model.OrderResultWon
	}
	if c.st != nil {
		if err := c.st.SettleOrder(ctx, fmt.Sprintf("%d", ticket), result, res.Profit, time.Now().UTC()); err != nil {
			logger.Warnf("settling order %d after close failed: %v", ticket, err)
		}
	}
	logger.Infof("position %d closed at %.5f, profit %.2f (%s): %s", ticket, res.ClosePrice, res.Profit, result, reason)
	return res, nil
}

// CloseAllReport summarises a flatten-everything request.
type CloseAllReport struct {
	Closed  int           `json:"closed"`
	Failed  int           `json:"failed"`
	Tickets []TicketClose `json:"tickets"`
}

type TicketClose struct {
	Ticket int64   `json:"ticket"`
	Closed bool    `json:"closed"`
	Profit float64 `json:"profit,omitempty"`
	Error  string  `json:"error,omitempty"`
}

// CloseAll flattens every position we own, pacing the requests. One
// failed close does not stop the rest.
func (c *ClosingPolicy) CloseAll(ctx context.Context, reason string) (CloseAllReport, error) {
	var report CloseAllReport
	positions, err := c.owned(ctx)
	if err != nil {
		return report, err
	}
	for i, pos := range positions {
		if i > 0 {
			if err := sleepCtx(ctx, closeAllPace); err != nil {
				return report, err
			}
		}
		res, err := c.Close(ctx, pos.Ticket, reason)
		if err != nil {
			report.Failed++
			report.Tickets = append(report.Tickets, TicketClose{Ticket: pos.Ticket, Error: err.Error()})
			continue
		}
		report.Closed++
		report.Tickets = append(report.Tickets, TicketClose{Ticket: pos.Ticket, Closed: true, Profit: res.Profit})
	}
	return report, nil
}

func (c *ClosingPolicy) owned(ctx context.Context) ([]mt5.Position, error) {
	res, err := c.gw.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, res.Error)
	}
	var owned []mt5.Position
	for _, p := range res.Positions {
		if p.Magic == c.magic {
			owned = append(owned, p)
		}
	}
	return owned, nil
}
