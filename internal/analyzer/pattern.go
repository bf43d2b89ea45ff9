package analyzer

import (
	"fmt"
	"strings"

	"dojihunter/internal/market"
)

// Pattern thresholds. Candle 1 and 3 must be conviction bars, candle 2 is
// the indecision bar between them.
const (
	longBodyRatio   = 0.50
	shortBodyRatio  = 0.25
	singleDojiRatio = 0.15

	baseConfidence = 0.75
	maxConfidence  = 0.98
)

const (
	ModelManualPattern = "manual-3candle-v1"
	ModelManualSingle  = "manual-single-v1"

	PatternMorningStar = "Morning Star (Bullish Reversal)"
	PatternEveningStar = "Evening Star (Bearish Reversal)"
)

// PatternAnalyzer detects a 3-candle reversal (long bar, doji, long bar in
// the opposite direction), falling back to a plain single-candle doji when
// the full pattern is absent or the series is too short.
type PatternAnalyzer struct{}

func NewPatternAnalyzer() *PatternAnalyzer {
	return &PatternAnalyzer{}
}

// Analyze runs the 3-candle check first, then the single-candle fallback.
// The input is oldest first and must be non-empty.
func (a *PatternAnalyzer) Analyze(candles market.Candles) Result {
	pattern := a.analyzeReversal(candles)
	if pattern.IsDoji {
		return pattern
	}
	if last, ok := candles.Last(); ok {
		if single := a.analyzeSingle(last); single.IsDoji {
			return single
		}
	}
	return pattern
}

func (a *PatternAnalyzer) analyzeReversal(candles market.Candles) Result {
	if len(candles) < 3 {
		return Result{
			ModelName: ModelManualPattern,
			Reason:    "insufficient candles for 3-candle pattern analysis",
		}
	}
	tail := candles.LastN(3)
	c1, c2, c3 := tail[0], tail[1], tail[2]

	if c1.Range() == 0 || c2.Range() == 0 || c3.Range() == 0 {
		return Result{
			ModelName: ModelManualPattern,
			Reason:    "invalid candle data (zero range)",
		}
	}

	r1 := c1.BodyRatio()
	r2 := c2.BodyRatio()
	r3 := c3.BodyRatio()

	longFirst := r1 > longBodyRatio
	shortMiddle := r2 < shortBodyRatio
	longLast := r3 > longBodyRatio
	reversed := c1.Bullish() != c3.Bullish()

	if longFirst && shortMiddle && longLast && reversed {
		confidence := baseConfidence
		if r1 > 0.65 {
			confidence += 0.05
		}
		if r1 > 0.75 {
			confidence += 0.05
		}
		if r2 < 0.15 {
			confidence += 0.05
		}
		if r2 < 0.10 {
			confidence += 0.05
		}
		if r3 > 0.65 {
			confidence += 0.05
		}
		if r3 > 0.75 {
			confidence += 0.05
		}
		if confidence > maxConfidence {
			confidence = maxConfidence
		}

		patternType := PatternEveningStar
		direction := DirectionSell
		if c3.Bullish() {
			patternType = PatternMorningStar
			direction = DirectionBuy
		}
		return Result{
			ModelName:   ModelManualPattern,
			IsDoji:      true,
			Confidence:  confidence,
			PatternType: patternType,
			Direction:   direction,
			Reason: fmt.Sprintf("valid 3-candle pattern: %s; body ratios %.1f%% / %.1f%% / %.1f%%",
				patternType, r1*100, r2*100, r3*100),
		}
	}

	var failed []string
	if !longFirst {
		failed = append(failed, fmt.Sprintf("candle1 not long (%.1f%% <= 50%%)", r1*100))
	}
	if !shortMiddle {
		failed = append(failed, fmt.Sprintf("candle2 not short (%.1f%% >= 25%%)", r2*100))
	}
	if !longLast {
		failed = append(failed, fmt.Sprintf("candle3 not long (%.1f%% <= 50%%)", r3*100))
	}
	if !reversed {
		failed = append(failed, "no direction reversal between candle1 and candle3")
	}
	return Result{
		ModelName: ModelManualPattern,
		Reason:    "not a valid 3-candle pattern: " + strings.Join(failed, "; "),
	}
}

func (a *PatternAnalyzer) analyzeSingle(c market.Candle) Result {
	if c.Range() == 0 {
		return Result{
			ModelName: ModelManualSingle,
			Reason:    "invalid candle (zero range)",
		}
	}
	ratio := c.BodyRatio()
	if ratio >= singleDojiRatio {
		return Result{
			ModelName: ModelManualSingle,
			Reason:    fmt.Sprintf("not a doji: body ratio %.2f%% exceeds 15%% threshold", ratio*100),
		}
	}
	confidence := 1 - ratio*4
	if confidence < 0.75 {
		confidence = 0.75
	}
	if confidence > 0.90 {
		confidence = 0.90
	}
	return Result{
		ModelName:  ModelManualSingle,
		IsDoji:     true,
		Confidence: confidence,
		Reason:     fmt.Sprintf("single doji candle: body ratio %.2f%%", ratio*100),
	}
}
