package model

import (
	"time"

	"gorm.io/datatypes"
)

// AnalysisStatus is the terminal outcome of one analysis cycle. A record is
// created as waiting and moves exactly once to one of the other values
// before its transaction commits.
type AnalysisStatus string

const (
	AnalysisStatusWaiting            AnalysisStatus = "waiting"
	AnalysisStatusEntry              AnalysisStatus = "entry"
	AnalysisStatusIgnored            AnalysisStatus = "ignored"
	AnalysisStatusMaxOrdersReached   AnalysisStatus = "max_orders_reached"
	AnalysisStatusOrderFailed        AnalysisStatus = "order_failed"
	AnalysisStatusVerificationFailed AnalysisStatus = "mt5_verification_failed"
)

// OrderResult tracks the lifecycle of a historical order record.
// ClosedUnresolved marks an order that vanished from the gateway's live set
// without this system closing it: the close price is unknown, so win/loss
// cannot be determined.
type OrderResult string

const (
	OrderResultOpen             OrderResult = "OPEN"
	OrderResultWon              OrderResult = "WON"
	OrderResultLost             OrderResult = "LOST"
	OrderResultClosedUnresolved OrderResult = "CLOSED_UNRESOLVED"
)

type AnalysisModel struct {
	ID             int64          `gorm:"column:id;primaryKey"`
	Symbol         string         `gorm:"column:symbol;index"`
	Timeframe      string         `gorm:"column:timeframe"`
	IsDojiDetected bool           `gorm:"column:is_doji_detected"`
	Status         AnalysisStatus `gorm:"column:status"`
	Reason         string         `gorm:"column:reason"`
	TraceID        string         `gorm:"column:trace_id"`
	CreatedAt      time.Time      `gorm:"column:created_at"`

	ModelResults []ModelResultModel `gorm:"foreignKey:AnalysisID"`
}

func (AnalysisModel) TableName() string { return "ai_analyses" }

type ModelResultModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	AnalysisID int64     `gorm:"column:analysis_id;index"`
	ModelName  string    `gorm:"column:model_name"`
	Confidence float64   `gorm:"column:confidence"`
	CreatedAt  time.Time `gorm:"column:created_at"`
}

func (ModelResultModel) TableName() string { return "ai_model_results" }

type OrderModel struct {
	ID         int64       `gorm:"column:id;primaryKey"`
	AnalysisID int64       `gorm:"column:analysis_id;uniqueIndex"`
	Ticket     string      `gorm:"column:order_ticket;index"`
	Symbol     string      `gorm:"column:symbol;index"`
	Type       string      `gorm:"column:type"`
	EntryPrice float64     `gorm:"column:entry_price"`
	StopLoss   float64     `gorm:"column:sl"`
	TakeProfit float64     `gorm:"column:tp"`
	Volume     float64     `gorm:"column:volume"`
	Result     OrderResult `gorm:"column:result;index"`
	Verified   bool        `gorm:"column:mt5_verified"`
	// PatternJSON keeps the triggering pattern candle so the closing
	// reversal rule can compare against its range later.
	PatternJSON datatypes.JSON `gorm:"column:pattern_json;type:TEXT"`
	Profit      float64        `gorm:"column:profit"`
	CreatedAt   time.Time      `gorm:"column:created_at"`
	ClosedAt    *time.Time     `gorm:"column:closed_at"`
}

func (OrderModel) TableName() string { return "orders" }
