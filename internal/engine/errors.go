package engine

import "errors"

var (
	// ErrNoCandles means the gateway returned an empty series for the
	// requested symbol. The cycle aborts without a decision.
	ErrNoCandles = errors.New("no candles available")

	// ErrGatewayUnavailable wraps transport failures talking to the
	// execution venue. Capacity checks treat it as "cannot open".
	// Venue rejections and failed verifications are NOT errors; they are
	// cycle outcomes (order_failed, mt5_verification_failed).
	ErrGatewayUnavailable = errors.New("gateway unavailable")
)
