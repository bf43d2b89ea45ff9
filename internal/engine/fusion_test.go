package engine

import (
	"testing"

	"dojihunter/internal/analyzer"

	"github.com/stretchr/testify/assert"
)

func TestFuse_DualConfirmed(t *testing.T) {
	manual := analyzer.Result{ModelName: "manual", IsDoji: true, Confidence: 0.80, Direction: analyzer.DirectionSell}
	inference := &analyzer.Result{ModelName: "model", IsDoji: true, Confidence: 0.76}

	d := Fuse(manual, inference, 0.75)
	assert.True(t, d.Entry)
	assert.Equal(t, FusionDualConfirmed, d.Mode)
	assert.InDelta(t, 0.78, d.Confidence, 1e-9)
	assert.Equal(t, analyzer.DirectionSell, d.Direction)
}

func TestFuse_Disagreement(t *testing.T) {
	t.Run("model detects, heuristic rejects", func(t *testing.T) {
		manual := analyzer.Result{ModelName: "manual", IsDoji: false, Reason: "body too large"}
		inference := &analyzer.Result{ModelName: "model", IsDoji: true, Confidence: 0.95}

		d := Fuse(manual, inference, 0.75)
		assert.False(t, d.Entry)
		assert.False(t, d.IsDoji)
		assert.Equal(t, FusionDisagree, d.Mode)
		assert.Contains(t, d.Reason, "body too large")
	})

	t.Run("heuristic detects, model rejects", func(t *testing.T) {
		manual := analyzer.Result{ModelName: "manual", IsDoji: true, Confidence: 0.85, Direction: analyzer.DirectionBuy}
		inference := &analyzer.Result{ModelName: "model", IsDoji: false, Reason: "trend continuation"}

		d := Fuse(manual, inference, 0.75)
		assert.False(t, d.Entry)
		assert.Equal(t, FusionDisagree, d.Mode)
	})
}

func TestFuse_LowConfidenceGate(t *testing.T) {
	manual := analyzer.Result{ModelName: "manual", IsDoji: true, Confidence: 0.90, Direction: analyzer.DirectionBuy}
	inference := &analyzer.Result{ModelName: "model", IsDoji: true, Confidence: 0.60}

	// One leg under the gate blocks entry even when the mean clears it.
	d := Fuse(manual, inference, 0.75)
	assert.False(t, d.Entry)
	assert.True(t, d.IsDoji)
	assert.Equal(t, FusionDualLowConf, d.Mode)
	assert.InDelta(t, 0.75, d.Confidence, 1e-9)
}

func TestFuse_NeitherDetects(t *testing.T) {
	manual := analyzer.Result{ModelName: "manual", Reason: "no pattern"}
	inference := &analyzer.Result{ModelName: "model", Reason: "nothing here"}

	d := Fuse(manual, inference, 0.75)
	assert.False(t, d.Entry)
	assert.False(t, d.IsDoji)
	assert.Equal(t, FusionNoPattern, d.Mode)
}

func TestFuse_ManualOnly(t *testing.T) {
	t.Run("confident heuristic enters alone", func(t *testing.T) {
		manual := analyzer.Result{ModelName: "manual", IsDoji: true, Confidence: 0.85, Direction: analyzer.DirectionSell, Reason: "evening star"}

		d := Fuse(manual, nil, 0.75)
		assert.True(t, d.Entry)
		assert.Equal(t, FusionManualFallback, d.Mode)
		assert.InDelta(t, 0.85, d.Confidence, 1e-9)
	})

	t.Run("low confidence blocks", func(t *testing.T) {
		manual := analyzer.Result{ModelName: "manual", IsDoji: true, Confidence: 0.70, Direction: analyzer.DirectionSell}

		d := Fuse(manual, nil, 0.75)
		assert.False(t, d.Entry)
		assert.Equal(t, FusionManualLowConf, d.Mode)
	})

	t.Run("no pattern", func(t *testing.T) {
		manual := analyzer.Result{ModelName: "manual", Reason: "flat"}

		d := Fuse(manual, nil, 0.75)
		assert.False(t, d.Entry)
		assert.Equal(t, FusionManualNoPattern, d.Mode)
	})
}
