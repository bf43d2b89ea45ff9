package engine

import (
	"context"
	"fmt"

	"dojihunter/internal/gateway/mt5"
)

// Limiter enforces the open-order cap against the gateway's live position
// set. It holds no local count: every check queries the venue, so a
// position opened or closed outside this process is still counted
// correctly. Only positions carrying our magic number participate.
type Limiter struct {
	gw    mt5.Gateway
	magic int64
	max   int
}

func NewLimiter(gw mt5.Gateway, magic int64, maxOpen int) *Limiter {
	return &Limiter{gw: gw, magic: magic, max: maxOpen}
}

// Capacity is the answer to "may we open another order right now".
type Capacity struct {
	Allowed bool   `json:"allowed"`
	Count   int    `json:"count"`
	Max     int    `json:"max"`
	Reason  string `json:"reason"`
}

// Check queries the gateway and counts our positions. Any gateway failure
// denies capacity: when the venue cannot be asked, the safe answer is no.
func (l *Limiter) Check(ctx context.Context) (Capacity, error) {
	positions, err := l.Owned(ctx)
	if err != nil {
		return Capacity{
			Allowed: false,
			Max:     l.max,
			Reason:  fmt.Sprintf("cannot verify open positions: %v", err),
		}, err
	}
	count := len(positions)
	if count >= l.max {
		return Capacity{
			Allowed: false,
			Count:   count,
			Max:     l.max,
			Reason:  fmt.Sprintf("max open orders reached (%d/%d)", count, l.max),
		}, nil
	}
	return Capacity{
		Allowed: true,
		Count:   count,
		Max:     l.max,
		Reason:  fmt.Sprintf("capacity available (%d/%d)", count, l.max),
	}, nil
}

// Owned returns the live positions tagged with our magic number.
func (l *Limiter) Owned(ctx context.Context) ([]mt5.Position, error) {
	res, err := l.gw.GetPositions(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}
	if !res.Success {
		return nil, fmt.Errorf("%w: %s", ErrGatewayUnavailable, res.Error)
	}
	var owned []mt5.Position
	for _, p := range res.Positions {
		if p.Magic == l.magic {
			owned = append(owned, p)
		}
	}
	return owned, nil
}
