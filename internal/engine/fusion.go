package engine

import (
	"fmt"

	"dojihunter/internal/analyzer"
)

// Fusion modes, recorded on the analysis so every verdict explains which
// path produced it.
const (
	FusionDualConfirmed   = "dual-confirmed"
	FusionDualLowConf     = "dual-low-confidence"
	FusionDisagree        = "analyzer-disagreement"
	FusionNoPattern       = "no-pattern"
	FusionManualFallback  = "manual-fallback"
	FusionManualLowConf   = "manual-fallback-low-confidence"
	FusionManualNoPattern = "manual-fallback-no-pattern"
)

// Decision is the fused verdict of the two analyzers. Entry is true only
// when every gate passed; Reason always explains the path taken.
type Decision struct {
	Entry      bool
	IsDoji     bool
	Confidence float64
	Mode       string
	Reason     string
	Direction  analyzer.Direction
}

// Fuse combines the heuristic verdict with the inference verdict. Both
// must agree the pattern exists and both must clear the threshold; the
// fused confidence is the mean of the two. When inference is nil (model
// disabled or its call failed), the heuristic alone decides, still gated
// on the threshold.
func Fuse(manual analyzer.Result, inference *analyzer.Result, threshold float64) Decision {
	if inference == nil {
		return fuseManualOnly(manual, threshold)
	}

	bothDoji := manual.IsDoji && inference.IsDoji
	if !bothDoji {
		if !manual.IsDoji && !inference.IsDoji {
			return Decision{
				Mode:   FusionNoPattern,
				Reason: fmt.Sprintf("no pattern: heuristic says %q, model says %q", manual.Reason, inference.Reason),
			}
		}
		detector, dissenter := manual, *inference
		if inference.IsDoji {
			detector, dissenter = *inference, manual
		}
		return Decision{
			IsDoji: false,
			Mode:   FusionDisagree,
			Reason: fmt.Sprintf("analyzers disagree: %s detected (%.0f%%) but %s rejected: %s",
				detector.ModelName, detector.Confidence*100, dissenter.ModelName, dissenter.Reason),
		}
	}

	fused := (manual.Confidence + inference.Confidence) / 2
	if manual.Confidence < threshold || inference.Confidence < threshold {
		return Decision{
			IsDoji:     true,
			Confidence: fused,
			Mode:       FusionDualLowConf,
			Direction:  manual.Direction,
			Reason: fmt.Sprintf("both detected but confidence below %.0f%% gate (heuristic %.0f%%, model %.0f%%)",
				threshold*100, manual.Confidence*100, inference.Confidence*100),
		}
	}
	return Decision{
		Entry:      true,
		IsDoji:     true,
		Confidence: fused,
		Mode:       FusionDualConfirmed,
		Direction:  manual.Direction,
		Reason: fmt.Sprintf("dual confirmation: heuristic %.0f%%, model %.0f%%, fused %.0f%%",
			manual.Confidence*100, inference.Confidence*100, fused*100),
	}
}

func fuseManualOnly(manual analyzer.Result, threshold float64) Decision {
	if !manual.IsDoji {
		return Decision{
			Mode:   FusionManualNoPattern,
			Reason: "heuristic-only: " + manual.Reason,
		}
	}
	if manual.Confidence < threshold {
		return Decision{
			IsDoji:     true,
			Confidence: manual.Confidence,
			Mode:       FusionManualLowConf,
			Direction:  manual.Direction,
			Reason: fmt.Sprintf("heuristic-only detection at %.0f%%, below %.0f%% gate",
				manual.Confidence*100, threshold*100),
		}
	}
	return Decision{
		Entry:      true,
		IsDoji:     true,
		Confidence: manual.Confidence,
		Mode:       FusionManualFallback,
		Direction:  manual.Direction,
		Reason: fmt.Sprintf("heuristic-only confirmation at %.0f%%: %s",
			manual.Confidence*100, manual.Reason),
	}
}
