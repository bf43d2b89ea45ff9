package engine

import (
	"context"
	"errors"
	"testing"

	"dojihunter/internal/gateway/mt5"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestLimiter_Check(t *testing.T) {
	ctx := context.Background()

	t.Run("capacity available", func(t *testing.T) {
		gw := new(mockGateway)
		gw.On("GetPositions", mock.Anything).Return(positionsResult(
			mt5.Position{Ticket: 1, Magic: 234000},
		), nil)

		cap, err := NewLimiter(gw, 234000, 2).Check(ctx)
		assert.NoError(t, err)
		assert.True(t, cap.Allowed)
		assert.Equal(t, 1, cap.Count)
	})

	t.Run("cap reached", func(t *testing.T) {
		gw := new(mockGateway)
		gw.On("GetPositions", mock.Anything).Return(positionsResult(
			mt5.Position{Ticket: 1, Magic: 234000},
			mt5.Position{Ticket: 2, Magic: 234000},
		), nil)

		cap, err := NewLimiter(gw, 234000, 2).Check(ctx)
		assert.NoError(t, err)
		assert.False(t, cap.Allowed)
		assert.Equal(t, 2, cap.Count)
		assert.Contains(t, cap.Reason, "max open orders reached")
	})

	t.Run("foreign positions do not count", func(t *testing.T) {
		gw := new(mockGateway)
		gw.On("GetPositions", mock.Anything).Return(positionsResult(
			mt5.Position{Ticket: 1, Magic: 234000},
			mt5.Position{Ticket: 2, Magic: 999},
			mt5.Position{Ticket: 3, Magic: 0},
		), nil)

		cap, err := NewLimiter(gw, 234000, 2).Check(ctx)
		assert.NoError(t, err)
		assert.True(t, cap.Allowed)
		assert.Equal(t, 1, cap.Count)
	})

	t.Run("gateway failure denies capacity", func(t *testing.T) {
		gw := new(mockGateway)
		gw.On("GetPositions", mock.Anything).Return(mt5.PositionsResult{}, errors.New("connection refused"))

		cap, err := NewLimiter(gw, 234000, 2).Check(ctx)
		assert.Error(t, err)
		assert.ErrorIs(t, err, ErrGatewayUnavailable)
		assert.False(t, cap.Allowed)
	})

	t.Run("bridge-level failure denies capacity", func(t *testing.T) {
		gw := new(mockGateway)
		gw.On("GetPositions", mock.Anything).Return(mt5.PositionsResult{Success: false, Error: "terminal not connected"}, nil)

		cap, err := NewLimiter(gw, 234000, 2).Check(ctx)
		assert.Error(t, err)
		assert.False(t, cap.Allowed)
	})
}
