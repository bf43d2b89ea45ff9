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
	"dojihunter/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Stop distance multipliers relative to the pattern candle's range.
var (
	slRangeFactor = decimal.NewFromFloat(1.5)
	tpRangeFactor = decimal.NewFromInt(2)
)

const (
	// settleDelay is how long a freshly accepted order gets before the
	// existence lookup. The bridge reports fills slightly ahead of the
	// position set.
	settleDelay = 1 * time.Second

	// broadSearchTolerance bounds |price_open - entry_price| when matching
	// a position without its ticket.
	broadSearchTolerance = 1.0
)

// EntryPlan is everything the pipeline needs to place one order. Pattern
// is the candle that triggered the entry; stops are derived from its
// range.
type EntryPlan struct {
	Symbol    string
	Direction analyzer.Direction
	Pattern   market.Candle
	Volume    float64
	Magic     int64
}

// Outcome is the terminal result of one execution attempt. Order is
// non-nil only when the position was verified live (or verification was
// explicitly skipped for simulation).
type Outcome struct {
	Status model.AnalysisStatus
	Order  *model.OrderModel
	Reason string
}

// Pipeline submits orders and verifies them against the venue before
// anything is persisted. The venue's position set is the only proof an
// order exists; an accepted submission that never shows up there is
// recorded as a verification failure with no order row.
type Pipeline struct {
	gw         mt5.Gateway
	skipVerify bool

	// sleep is swapped in tests to avoid real settling delays.
	sleep func(ctx context.Context, d time.Duration) error
}

func NewPipeline(gw mt5.Gateway, skipVerify bool) *Pipeline {
	return &Pipeline{gw: gw, skipVerify: skipVerify, sleep: sleepCtx}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Execute runs submit, settle, verify. It never returns an error for a
// venue rejection or a failed verification; those are outcomes, captured
// in Status and Reason. Errors are reserved for broken transport.
func (p *Pipeline) Execute(ctx context.Context, plan EntryPlan) (Outcome, error) {
	stops, err := computeStops(plan.Pattern, plan.Direction)
	if err != nil {
		return Outcome{
			Status: model.AnalysisStatusOrderFailed,
			Reason: fmt.Sprintf("cannot derive stops: %v", err),
		}, nil
	}

	req := mt5.OrderRequest{
		Symbol:     plan.Symbol,
		Type:       string(plan.Direction),
		Volume:     plan.Volume,
		StopLoss:   stops.StopLoss,
		TakeProfit: stops.TakeProfit,
		Magic:      plan.Magic,
	}
	logger.Infof("placing %s order on %s: volume=%.2f sl=%.5f tp=%.5f",
		req.Type, req.Symbol, req.Volume, req.StopLoss, req.TakeProfit)

	res, err := p.gw.PlaceOrder(ctx, req)
	if err != nil {
		return Outcome{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !res.Success {
		return Outcome{
			Status: model.AnalysisStatusOrderFailed,
			Reason: fmt.Sprintf("order rejected by venue: %s (retcode %d)", res.Error, res.Retcode),
		}, nil
	}

	verified := res.PositionVerified
	if !p.skipVerify {
		verified, err = p.verify(ctx, plan.Symbol, plan.Magic, res)
		if err != nil {
			return Outcome{}, err
		}
	}
	if !verified {
		logger.Warnf("order %d on %s accepted but not found in live positions", res.Ticket, plan.Symbol)
		return Outcome{
			Status: model.AnalysisStatusVerificationFailed,
			Reason: fmt.Sprintf("ticket %d not present in live position set after settling", res.Ticket),
		}, nil
	}

	patternJSON, _ := json.Marshal(plan.Pattern)
	order := &model.OrderModel{
		Ticket:      fmt.Sprintf("%d", res.Ticket),
		Symbol:      plan.Symbol,
		Type:        string(plan.Direction),
		EntryPrice:  res.EntryPrice,
		StopLoss:    stops.StopLoss,
		TakeProfit:  stops.TakeProfit,
		Volume:      plan.Volume,
		Result:      model.OrderResultOpen,
		Verified:    true,
		PatternJSON: datatypes.JSON(patternJSON),
		CreatedAt:   time.Now().UTC(),
	}
	return Outcome{
		Status: model.AnalysisStatusEntry,
		Order:  order,
		Reason: fmt.Sprintf("order %d verified live at %.5f", res.Ticket, res.EntryPrice),
	}, nil
}

// verify confirms the position exists at the venue. The ticket lookup is
// tried first; when the bridge cannot resolve the ticket, the full
// position set is scanned for a match on symbol, magic and entry price.
func (p *Pipeline) verify(ctx context.Context, symbol string, magic int64, res mt5.OrderResult) (bool, error) {
	if err := p.sleep(ctx, settleDelay); err != nil {
		return false, err
	}

	vr, err := p.gw.GetPosition(ctx, res.Ticket)
	if err == nil && vr.Exists {
		return true, nil
	}
	if err != nil {
		logger.Warnf("ticket lookup for %d failed, falling back to broad search: %v", res.Ticket, err)
	}

	all, err := p.gw.GetPositions(ctx)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !all.Success {
		return false, nil
	}
	entry := decimal.NewFromFloat(res.EntryPrice)
	tol := decimal.NewFromFloat(broadSearchTolerance)
	for _, pos := range all.Positions {
		if pos.Symbol != symbol || pos.Magic != magic {
			continue
		}
		diff := decimal.NewFromFloat(pos.PriceOpen).Sub(entry).Abs()
		if diff.LessThanOrEqual(tol) {
			logger.Infof("broad search matched position %d for order %d", pos.Ticket, res.Ticket)
			return true, nil
		}
	}
	return false, nil
}

// Stops carries the derived protective levels.
type Stops struct {
	StopLoss   float64
	TakeProfit float64
}

// computeStops places the stop 1.5x the pattern range beyond the pattern
// extreme and the target 2x the range from the close, in the trade
// direction. Decimal arithmetic keeps the levels free of float drift
// before they go over the wire.
func computeStops(pattern market.Candle, dir analyzer.Direction) (Stops, error) {
	high := decimal.NewFromFloat(pattern.High)
	low := decimal.NewFromFloat(pattern.Low)
	closePx := decimal.NewFromFloat(pattern.Close)

	rng := high.Sub(low)
	if rng.Sign() <= 0 {
		return Stops{}, fmt.Errorf("pattern candle has no range")
	}
	slDist := rng.Mul(slRangeFactor)
	tpDist := rng.Mul(tpRangeFactor)

	var sl, tp decimal.Decimal
	switch dir {
	case analyzer.DirectionBuy:
		sl = low.Sub(slDist)
		tp = closePx.Add(tpDist)
	case analyzer.DirectionSell:
		sl = high.Add(slDist)
		tp = closePx.Sub(tpDist)
	default:
		return Stops{}, fmt.Errorf("unknown trade direction %q", dir)
	}

	slF, _ := sl.Float64()
	tpF, _ := tp.Float64()
	return Stops{StopLoss: slF, TakeProfit: tpF}, nil
}
