package engine

import (
	"context"
	"fmt"
	"time"

	"dojihunter/internal/analyzer"
	"dojihunter/internal/config"
	"dojihunter/internal/gateway/mt5"
	"dojihunter/internal/logger"
	"dojihunter/internal/market"
	"dojihunter/internal/store"
	"dojihunter/internal/store/journal"
	"dojihunter/internal/store/model"

	"github.com/google/uuid"
)

// EntryAnalyzer is the inference leg of the dual analysis. A nil analyzer
// means the heuristic runs alone.
type EntryAnalyzer interface {
	Analyze(ctx context.Context, symbol, timeframe string, candles market.Candles) (analyzer.Result, error)
}

// Orchestrator runs the full decision cycle for one symbol: capacity
// check, candle fetch, dual analysis, fusion, capacity re-check, order
// execution, then one atomic persistence of everything the cycle decided.
type Orchestrator struct {
	gw       mt5.Gateway
	st       store.Store
	jrnl     *journal.Journal
	settings *config.Settings

	patterns  *analyzer.PatternAnalyzer
	inference EntryAnalyzer
	advisor   CloseAdvisor
}

func NewOrchestrator(gw mt5.Gateway, st store.Store, jrnl *journal.Journal, settings *config.Settings, inference EntryAnalyzer, advisor CloseAdvisor) *Orchestrator {
	return &Orchestrator{
		gw:        gw,
		st:        st,
		jrnl:      jrnl,
		settings:  settings,
		patterns:  analyzer.NewPatternAnalyzer(),
		inference: inference,
		advisor:   advisor,
	}
}

// CycleResult is what one cycle decided, for callers and the HTTP layer.
type CycleResult struct {
	TraceID     string               `json:"trace_id"`
	Symbol      string               `json:"symbol"`
	Timeframe   string               `json:"timeframe"`
	Status      model.AnalysisStatus `json:"status"`
	IsDoji      bool                 `json:"is_doji"`
	Reason      string               `json:"reason"`
	Confidence  float64              `json:"confidence,omitempty"`
	FusionMode  string               `json:"fusion_mode,omitempty"`
	OrderTicket string               `json:"order_ticket,omitempty"`
}

// RunCycle executes one analysis cycle for symbol. The capacity gate is
// consulted twice: once up front so full books skip the analysis cost,
// and again immediately before submission because analysis takes long
// enough for the position set to have changed.
func (o *Orchestrator) RunCycle(ctx context.Context, symbol string) (CycleResult, error) {
	cfg := o.settings.Current()
	trace := uuid.NewString()
	result := CycleResult{TraceID: trace, Symbol: symbol, Timeframe: cfg.Timeframe, Status: model.AnalysisStatusWaiting}
	limiter := NewLimiter(o.gw, cfg.Magic, cfg.MaxOpenOrders)

	capacity, err := limiter.Check(ctx)
	if err != nil {
		o.journal(ctx, result, "error", capacity.Reason)
		return result, err
	}
	if !capacity.Allowed {
		result.Status = model.AnalysisStatusMaxOrdersReached
		result.Reason = capacity.Reason
		return o.persist(ctx, result, nil, nil)
	}

	candles, err := o.gw.GetCandles(ctx, symbol, cfg.Timeframe, cfg.CandleCount)
	if err != nil {
		o.journal(ctx, result, "error", err.Error())
		return result, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if len(candles) == 0 {
		o.journal(ctx, result, "error", "gateway returned no candles")
		return result, fmt.Errorf("%w: %s %s", ErrNoCandles, symbol, cfg.Timeframe)
	}

	manual := o.patterns.Analyze(candles)
	results := []model.ModelResultModel{{ModelName: manual.ModelName, Confidence: manual.Confidence}}

	var inferencePtr *analyzer.Result
	if o.inference != nil {
		verdict, err := o.inference.Analyze(ctx, symbol, cfg.Timeframe, candles)
		if err != nil {
			logger.Warnf("[%s] inference failed, heuristic decides alone: %v", trace, err)
		} else {
			inferencePtr = &verdict
			results = append(results, model.ModelResultModel{ModelName: verdict.ModelName, Confidence: verdict.Confidence})
		}
	}

	decision := Fuse(manual, inferencePtr, cfg.MinConfidence)
	result.IsDoji = decision.IsDoji
	result.Confidence = decision.Confidence
	result.FusionMode = decision.Mode
	result.Reason = decision.Reason

	// Every no-entry verdict settles to ignored; the fusion mode and
	// reason keep no-pattern distinguishable from low confidence.
	if !decision.Entry {
		result.Status = model.AnalysisStatusIgnored
		return o.persist(ctx, result, results, nil)
	}
	direction := decision.Direction
	if direction == "" {
		direction = fadeDirection(candles)
		result.Reason = fmt.Sprintf("%s; direction %s derived from prior candle", decision.Reason, direction)
	}

	capacity, err = limiter.Check(ctx)
	if err != nil || !capacity.Allowed {
		result.Status = model.AnalysisStatusMaxOrdersReached
		result.Reason = capacity.Reason
		return o.persist(ctx, result, results, nil)
	}

	pattern, _ := candles.Last()
	pipeline := NewPipeline(o.gw, cfg.SkipVerify)
	outcome, err := pipeline.Execute(ctx, EntryPlan{
		Symbol:    symbol,
		Direction: direction,
		Pattern:   pattern,
		Volume:    cfg.Volume,
		Magic:     cfg.Magic,
	})
	if err != nil {
		result.Status = model.AnalysisStatusOrderFailed
		result.Reason = fmt.Sprintf("order submission failed: %v", err)
		return o.persist(ctx, result, results, nil)
	}
	result.Status = outcome.Status
	result.Reason = outcome.Reason
	if outcome.Order != nil {
		result.OrderTicket = outcome.Order.Ticket
	}
	return o.persist(ctx, result, results, outcome.Order)
}

// fadeDirection picks a side for a pattern that carries none (a lone
// doji): trade against the candle before it, defaulting to BUY when
// there is no prior candle to read.
func fadeDirection(candles market.Candles) analyzer.Direction {
	if len(candles) >= 2 && candles[len(candles)-2].Bullish() {
		return analyzer.DirectionSell
	}
	return analyzer.DirectionBuy
}

// persist writes the cycle atomically and journals the outcome. The order
// row, when present, rides in the same transaction as the analysis.
func (o *Orchestrator) persist(ctx context.Context, result CycleResult, results []model.ModelResultModel, order *model.OrderModel) (CycleResult, error) {
	analysis := &model.AnalysisModel{
		Symbol:         result.Symbol,
		Timeframe:      result.Timeframe,
		IsDojiDetected: result.IsDoji,
		Status:         result.Status,
		Reason:         result.Reason,
		TraceID:        result.TraceID,
		CreatedAt:      time.Now().UTC(),
	}
	if err := o.st.SaveCycle(ctx, analysis, results, order); err != nil {
		o.journal(ctx, result, "error", "persisting cycle: "+err.Error())
		return result, fmt.Errorf("persisting cycle: %w", err)
	}
	o.journal(ctx, result, string(result.Status), result.Reason)
	logger.Infof("[%s] cycle %s %s: %s (%s)", result.TraceID, result.Symbol, result.Timeframe, result.Status, result.Reason)
	return result, nil
}

func (o *Orchestrator) journal(ctx context.Context, result CycleResult, outcome, reason string) {
	if o.jrnl == nil {
		return
	}
	err := o.jrnl.Append(ctx, journal.Entry{
		TraceID:   result.TraceID,
		Symbol:    result.Symbol,
		Timeframe: result.Timeframe,
		Outcome:   outcome,
		Reason:    reason,
	})
	if err != nil {
		logger.Warnf("[%s] journal append failed: %v", result.TraceID, err)
	}
}

// Closing returns a policy bound to the current settings.
func (o *Orchestrator) Closing() *ClosingPolicy {
	cfg := o.settings.Current()
	return NewClosingPolicy(o.gw, o.st, o.advisor, cfg.Magic)
}

// Monitor runs one closing sweep over our open positions.
func (o *Orchestrator) Monitor(ctx context.Context) (MonitorReport, error) {
	cfg := o.settings.Current()
	return o.Closing().Monitor(ctx, cfg.Timeframe, cfg.CandleCount)
}

// CloseAll flattens every position we own.
func (o *Orchestrator) CloseAll(ctx context.Context, reason string) (CloseAllReport, error) {
	return o.Closing().CloseAll(ctx, reason)
}

// TradingReady asks the venue whether it will accept orders right now.
func (o *Orchestrator) TradingReady(ctx context.Context) (mt5.Health, error) {
	return o.gw.TradingHealth(ctx)
}

// Capacity reports the current order-cap state for the HTTP layer.
func (o *Orchestrator) Capacity(ctx context.Context) (Capacity, error) {
	cfg := o.settings.Current()
	return NewLimiter(o.gw, cfg.Magic, cfg.MaxOpenOrders).Check(ctx)
}

// Reconcile settles stored OPEN orders whose position no longer exists at
// the venue. Such an order was closed outside this process (manually, or
// by the venue's own stops while we were down); its close price is
// unknown, so it settles as CLOSED_UNRESOLVED rather than a guess at
// won or lost.
func (o *Orchestrator) Reconcile(ctx context.Context) (int, error) {
	open, err := o.st.ListOpenOrders(ctx)
	if err != nil {
		return 0, err
	}
	if len(open) == 0 {
		return 0, nil
	}
	res, err := o.gw.GetPositions(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !res.Success {
		return 0, fmt.Errorf("%w: %s", ErrGatewayUnavailable, res.Error)
	}
	live := make(map[string]struct{}, len(res.Positions))
	for _, p := range res.Positions {
		live[fmt.Sprintf("%d", p.Ticket)] = struct{}{}
	}
	settled := 0
	for _, order := range open {
		if _, ok := live[order.Ticket]; ok {
			continue
		}
		if err := o.st.SettleOrder(ctx, order.Ticket, model.OrderResultClosedUnresolved, 0, time.Now().UTC()); err != nil {
			logger.Warnf("reconcile: settling vanished order %s failed: %v", order.Ticket, err)
			continue
		}
		logger.Infof("reconcile: order %s no longer live, marked %s", order.Ticket, model.OrderResultClosedUnresolved)
		settled++
	}
	return settled, nil
}
