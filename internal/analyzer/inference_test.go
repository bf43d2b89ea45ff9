package analyzer

import (
	"context"
	"errors"
	"testing"

	"dojihunter/internal/market"

	"github.com/stretchr/testify/assert"
)

type stubChatter struct {
	reply string
	err   error
	calls int
}

func (s *stubChatter) Chat(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.calls++
	return s.reply, s.err
}

func testCandles() market.Candles {
	return market.Candles{
		candle(100.0, 110.0, 100.0, 106.0),
		candle(106.0, 111.0, 101.0, 107.0),
		candle(107.0, 108.0, 98.0, 100.0),
	}
}

func TestInferenceAnalyzer_Analyze(t *testing.T) {
	ctx := context.Background()

	t.Run("plain JSON reply", func(t *testing.T) {
		chat := &stubChatter{reply: `{"is_doji": true, "confidence": 0.82, "reason": "small body"}`}
		a := NewInferenceAnalyzer(chat, "test-model")

		res, err := a.Analyze(ctx, "BTCUSD", "M15", testCandles())
		assert.NoError(t, err)
		assert.True(t, res.IsDoji)
		assert.InDelta(t, 0.82, res.Confidence, 1e-9)
		assert.Equal(t, "test-model", res.ModelName)
		assert.Equal(t, 1, chat.calls)
	})

	t.Run("markdown fenced reply", func(t *testing.T) {
		chat := &stubChatter{reply: "```json\n{\"is_doji\": false, \"confidence\": 0.3, \"reason\": \"large body\"}\n```"}
		a := NewInferenceAnalyzer(chat, "test-model")

		res, err := a.Analyze(ctx, "BTCUSD", "M15", testCandles())
		assert.NoError(t, err)
		assert.False(t, res.IsDoji)
		assert.Equal(t, "large body", res.Reason)
	})

	t.Run("JSON wrapped in prose", func(t *testing.T) {
		chat := &stubChatter{reply: `Here is my verdict: {"is_doji": true, "confidence": 0.9, "reason": "doji"} hope that helps`}
		a := NewInferenceAnalyzer(chat, "test-model")

		res, err := a.Analyze(ctx, "BTCUSD", "M15", testCandles())
		assert.NoError(t, err)
		assert.True(t, res.IsDoji)
	})

	t.Run("non-JSON reply is an error", func(t *testing.T) {
		chat := &stubChatter{reply: "I cannot answer that."}
		a := NewInferenceAnalyzer(chat, "test-model")

		_, err := a.Analyze(ctx, "BTCUSD", "M15", testCandles())
		assert.Error(t, err)
	})

	t.Run("schema violation is an error", func(t *testing.T) {
		// confidence out of range must not slip through as a verdict.
		chat := &stubChatter{reply: `{"is_doji": true, "confidence": 7, "reason": "x"}`}
		a := NewInferenceAnalyzer(chat, "test-model")

		_, err := a.Analyze(ctx, "BTCUSD", "M15", testCandles())
		assert.Error(t, err)
	})

	t.Run("transport failure propagates", func(t *testing.T) {
		chat := &stubChatter{err: errors.New("connection refused")}
		a := NewInferenceAnalyzer(chat, "test-model")

		_, err := a.Analyze(ctx, "BTCUSD", "M15", testCandles())
		assert.Error(t, err)
	})

	t.Run("empty series is an error", func(t *testing.T) {
		a := NewInferenceAnalyzer(&stubChatter{}, "test-model")
		_, err := a.Analyze(ctx, "BTCUSD", "M15", nil)
		assert.Error(t, err)
	})
}

func TestInferenceAnalyzer_AnalyzeClose(t *testing.T) {
	ctx := context.Background()
	pos := PositionContext{Symbol: "BTCUSD", Type: "BUY", PriceOpen: 100, PriceCurrent: 104, Profit: 40}

	t.Run("advice decodes", func(t *testing.T) {
		chat := &stubChatter{reply: `{"should_close": true, "confidence": 0.85, "reason": "momentum fading"}`}
		a := NewInferenceAnalyzer(chat, "test-model")

		advice, err := a.AnalyzeClose(ctx, pos, testCandles())
		assert.NoError(t, err)
		assert.True(t, advice.ShouldClose)
		assert.InDelta(t, 0.85, advice.Confidence, 1e-9)
	})

	t.Run("missing field is an error", func(t *testing.T) {
		chat := &stubChatter{reply: `{"should_close": true}`}
		a := NewInferenceAnalyzer(chat, "test-model")

		_, err := a.AnalyzeClose(ctx, pos, testCandles())
		assert.Error(t, err)
	})
}
