package analyzer

// Direction is the trade side a detected pattern suggests.
type Direction string

const (
	DirectionBuy  Direction = "BUY"
	DirectionSell Direction = "SELL"
)

// Result is the common verdict shape both analyzers produce. Reason is
// always populated, also on negative verdicts, so rejections can be
// audited and asserted in tests.
type Result struct {
	ModelName   string    `json:"model_name"`
	IsDoji      bool      `json:"is_doji"`
	Confidence  float64   `json:"confidence"`
	Reason      string    `json:"reason"`
	PatternType string    `json:"pattern_type,omitempty"`
	Direction   Direction `json:"suggested_direction,omitempty"`
}

// CloseAdvice is the advisory verdict of the AI closing rule.
type CloseAdvice struct {
	ShouldClose bool    `json:"should_close"`
	Confidence  float64 `json:"confidence"`
	Reason      string  `json:"reason"`
}
