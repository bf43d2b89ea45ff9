package store

import (
	"context"
	"time"

	"dojihunter/internal/store/model"
)

// Store persists analysis history. It never asserts position liveness: the
// gateway is the source of truth for open positions, the store records what
// already happened.
type Store interface {
	// SaveCycle commits one cycle's writes atomically: the analysis record,
	// the per-analyzer model results, and the order record when an entry was
	// verified. order may be nil.
	SaveCycle(ctx context.Context, analysis *model.AnalysisModel, results []model.ModelResultModel, order *model.OrderModel) error

	ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisModel, error)
	ListOrders(ctx context.Context, limit int) ([]model.OrderModel, error)
	ListOpenOrders(ctx context.Context) ([]model.OrderModel, error)
	FindOrderByTicket(ctx context.Context, ticket string) (*model.OrderModel, error)

	// SettleOrder moves an OPEN order to a terminal result. Used by the
	// closing path (result known from the close profit) and by
	// reconciliation (CLOSED_UNRESOLVED when the position vanished).
	SettleOrder(ctx context.Context, ticket string, result model.OrderResult, profit float64, closedAt time.Time) error

	Close() error
}
