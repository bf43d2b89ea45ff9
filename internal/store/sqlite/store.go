package sqlite

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dojihunter/internal/store"
	"dojihunter/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store implements store.Store on Gorm + SQLite.
type Store struct {
	db *gorm.DB
}

var _ store.Store = (*Store)(nil)

// New opens (or creates) the history database and migrates the schema.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("sqlite store: path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:                                   logger.Default.LogMode(logger.Silent),
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.AnalysisModel{}, &model.ModelResultModel{}, &model.OrderModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little parallelism for concurrent HTTP reads while
	// keeping lock contention low.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &Store{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// SaveCycle writes the analysis, its model results and the optional order
// in one transaction. A failure rolls everything back so no partial cycle
// is ever visible.
func (s *Store) SaveCycle(ctx context.Context, analysis *model.AnalysisModel, results []model.ModelResultModel, order *model.OrderModel) error {
	if analysis == nil {
		return errors.New("analysis cannot be nil")
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if analysis.CreatedAt.IsZero() {
			analysis.CreatedAt = time.Now().UTC()
		}
		if err := tx.Create(analysis).Error; err != nil {
			return fmt.Errorf("saving analysis: %w", err)
		}
		for i := range results {
			results[i].AnalysisID = analysis.ID
			if results[i].CreatedAt.IsZero() {
				results[i].CreatedAt = analysis.CreatedAt
			}
		}
		if len(results) > 0 {
			if err := tx.Create(&results).Error; err != nil {
				return fmt.Errorf("saving model results: %w", err)
			}
		}
		if order != nil {
			order.AnalysisID = analysis.ID
			if order.CreatedAt.IsZero() {
				order.CreatedAt = analysis.CreatedAt
			}
			if err := tx.Create(order).Error; err != nil {
				return fmt.Errorf("saving order: %w", err)
			}
		}
		return nil
	})
}

func (s *Store) ListAnalyses(ctx context.Context, limit int) ([]model.AnalysisModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.AnalysisModel
	err := s.db.WithContext(ctx).
		Preload("ModelResults").
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *Store) ListOrders(ctx context.Context, limit int) ([]model.OrderModel, error) {
	if limit <= 0 {
		limit = 50
	}
	var out []model.OrderModel
	err := s.db.WithContext(ctx).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&out).Error
	return out, err
}

func (s *Store) ListOpenOrders(ctx context.Context) ([]model.OrderModel, error) {
	var out []model.OrderModel
	err := s.db.WithContext(ctx).
		Where("result = ?", model.OrderResultOpen).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *Store) FindOrderByTicket(ctx context.Context, ticket string) (*model.OrderModel, error) {
	var order model.OrderModel
	err := s.db.WithContext(ctx).Where("order_ticket = ?", ticket).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *Store) SettleOrder(ctx context.Context, ticket string, result model.OrderResult, profit float64, closedAt time.Time) error {
	if result == model.OrderResultOpen {
		return errors.New("cannot settle an order back to OPEN")
	}
	res := s.db.WithContext(ctx).
		Model(&model.OrderModel{}).
		Where("order_ticket = ? AND result = ?", ticket, model.OrderResultOpen).
		Updates(map[string]any{
			"result":    result,
			"profit":    profit,
			"closed_at": closedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no open order with ticket %s", ticket)
	}
	return nil
}
