package analyzer

import (
	"context"
	"fmt"
	"strings"

	"dojihunter/internal/market"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/tidwall/gjson"
)

// Chatter is the inference collaborator: one prompt in, one assistant
// reply out. Implemented by provider.ChatClient and by test doubles.
type Chatter interface {
	Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// InferenceAnalyzer asks a chat model for the same verdict shape the
// pattern analyzer produces. Any reply that does not decode into that
// shape is an error: the orchestrator decides what a failure means, this
// analyzer never invents a verdict.
type InferenceAnalyzer struct {
	client    Chatter
	modelName string
}

func NewInferenceAnalyzer(client Chatter, modelName string) *InferenceAnalyzer {
	return &InferenceAnalyzer{client: client, modelName: modelName}
}

func (a *InferenceAnalyzer) ModelName() string { return a.modelName }

const verdictSchemaJSON = `{
	"type": "object",
	"required": ["is_doji", "confidence", "reason"],
	"properties": {
		"is_doji": {"type": "boolean"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"reason": {"type": "string"}
	}
}`

const adviceSchemaJSON = `{
	"type": "object",
	"required": ["should_close", "confidence", "reason"],
	"properties": {
		"should_close": {"type": "boolean"},
		"confidence": {"type": "number", "minimum": 0, "maximum": 1},
		"reason": {"type": "string"}
	}
}`

var (
	verdictSchema = jsonschema.MustCompileString("verdict.json", verdictSchemaJSON)
	adviceSchema  = jsonschema.MustCompileString("advice.json", adviceSchemaJSON)
)

const analyzeSystemPrompt = "You are a candlestick pattern analyst. Reply with JSON only, no prose, no markdown."

// Analyze asks the model whether the series ends in a doji/reversal
// pattern.
func (a *InferenceAnalyzer) Analyze(ctx context.Context, symbol, timeframe string, candles market.Candles) (Result, error) {
	if a == nil || a.client == nil {
		return Result{}, fmt.Errorf("inference client not configured")
	}
	last, ok := candles.Last()
	if !ok {
		return Result{}, fmt.Errorf("no candles to analyze")
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Symbol %s, timeframe %s. Recent candles (oldest first):\n", symbol, timeframe)
	for _, c := range candles.LastN(5) {
		fmt.Fprintf(&sb, "O:%g H:%g L:%g C:%g\n", c.Open, c.High, c.Low, c.Close)
	}
	if ind := indicatorContext(candles); ind != "" {
		sb.WriteString(ind + "\n")
	}
	fmt.Fprintf(&sb, "Latest candle O:%g H:%g L:%g C:%g\n", last.Open, last.High, last.Low, last.Close)
	sb.WriteString(`A doji has a small body relative to its range. Is the latest candle (or the last three) a doji/reversal pattern?
Reply JSON only: {"is_doji":boolean,"confidence":0.0-1.0,"reason":"brief"}`)

	reply, err := a.client.Chat(ctx, analyzeSystemPrompt, sb.String())
	if err != nil {
		return Result{}, fmt.Errorf("inference call failed: %w", err)
	}
	obj, err := extractObject(reply, verdictSchema)
	if err != nil {
		return Result{}, fmt.Errorf("inference reply rejected: %w", err)
	}
	return Result{
		ModelName:  a.modelName,
		IsDoji:     obj.Get("is_doji").Bool(),
		Confidence: obj.Get("confidence").Float(),
		Reason:     obj.Get("reason").String(),
	}, nil
}

// AnalyzeClose asks the model whether an open position should be closed.
// Purely advisory; the manual closing rules stay authoritative.
func (a *InferenceAnalyzer) AnalyzeClose(ctx context.Context, pos PositionContext, candles market.Candles) (CloseAdvice, error) {
	if a == nil || a.client == nil {
		return CloseAdvice{}, fmt.Errorf("inference client not configured")
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "Open %s position on %s: entry %g, current %g, SL %g, TP %g, profit %g.\n",
		pos.Type, pos.Symbol, pos.PriceOpen, pos.PriceCurrent, pos.StopLoss, pos.TakeProfit, pos.Profit)
	sb.WriteString("Recent candles (oldest first):\n")
	for _, c := range candles.LastN(5) {
		fmt.Fprintf(&sb, "O:%g H:%g L:%g C:%g\n", c.Open, c.High, c.Low, c.Close)
	}
	if ind := indicatorContext(candles); ind != "" {
		sb.WriteString(ind + "\n")
	}
	sb.WriteString(`Should this position be closed now (reversal forming, momentum exhausted)?
Reply JSON only: {"should_close":boolean,"confidence":0.0-1.0,"reason":"brief"}`)

	reply, err := a.client.Chat(ctx, analyzeSystemPrompt, sb.String())
	if err != nil {
		return CloseAdvice{}, fmt.Errorf("inference call failed: %w", err)
	}
	obj, err := extractObject(reply, adviceSchema)
	if err != nil {
		return CloseAdvice{}, fmt.Errorf("inference reply rejected: %w", err)
	}
	return CloseAdvice{
		ShouldClose: obj.Get("should_close").Bool(),
		Confidence:  obj.Get("confidence").Float(),
		Reason:      obj.Get("reason").String(),
	}, nil
}

// PositionContext is the slice of a live position the close advisor needs.
type PositionContext struct {
	Symbol       string
	Type         string
	PriceOpen    float64
	PriceCurrent float64
	StopLoss     float64
	TakeProfit   float64
	Profit       float64
}

// extractObject strips markdown fences, locates the JSON object in the
// reply and validates it against the expected schema. Anything that does
// not survive this is treated as a failed call.
func extractObject(reply string, schema *jsonschema.Schema) (gjson.Result, error) {
	cleaned := strings.TrimSpace(reply)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	// Models sometimes wrap the object in prose; take the outermost braces.
	if !gjson.Valid(cleaned) {
		start := strings.Index(cleaned, "{")
		end := strings.LastIndex(cleaned, "}")
		if start < 0 || end <= start {
			return gjson.Result{}, fmt.Errorf("no JSON object in reply")
		}
		cleaned = cleaned[start : end+1]
	}
	if !gjson.Valid(cleaned) {
		return gjson.Result{}, fmt.Errorf("reply is not valid JSON")
	}
	parsed := gjson.Parse(cleaned)
	if !parsed.IsObject() {
		return gjson.Result{}, fmt.Errorf("reply root is not a JSON object")
	}
	var doc any
	if err := jsonUnmarshal(cleaned, &doc); err != nil {
		return gjson.Result{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return gjson.Result{}, fmt.Errorf("schema validation failed: %w", err)
	}
	return parsed, nil
}
