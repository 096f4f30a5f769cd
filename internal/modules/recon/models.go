package recon

import (
	"time"

	"gorm.io/datatypes"

	"merukart.com/app/internal/shared/money"
)

// OrderTransaction records one recognized payment capture applied to an
// order. The unique (order_id, reference_id) pair is the dedupe: synthesis
// is an ON CONFLICT DO NOTHING insert, never a check-then-insert.
type OrderTransaction struct {
	ID           string         `gorm:"type:char(36);primaryKey"`
	OrderID      string         `gorm:"type:char(36);not null;uniqueIndex:ux_order_tx_order_ref,priority:1"`
	Version      int            `gorm:"not null"`
	Amount       int64          `gorm:"not null"` // minor units
	RawAmount    datatypes.JSON `gorm:"type:json"`
	CurrencyCode string         `gorm:"type:char(3);not null"`
	Reference    string         `gorm:"type:varchar(32);not null"`
	ReferenceID  string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_order_tx_order_ref,priority:2"`
	CreatedAt    time.Time      `gorm:"precision:3;not null"`
	UpdatedAt    time.Time      `gorm:"precision:3;not null"`
}

func (OrderTransaction) TableName() string { return "order_transactions" }

// OrderSummary holds the totals JSON the admin dashboard reads. Derived
// entirely from order_transactions; rewritten by this engine, never edited.
type OrderSummary struct {
	OrderID   string         `gorm:"type:char(36);primaryKey"`
	Totals    datatypes.JSON `gorm:"type:json;not null"`
	UpdatedAt time.Time      `gorm:"precision:3;not null"`
}

func (OrderSummary) TableName() string { return "order_summaries" }

// Totals: integer minor units plus raw_* major-unit string twins for
// precision-sensitive consumers.
type Totals struct {
	PaidTotal            int64  `json:"paid_total"`
	RawPaidTotal         string `json:"raw_paid_total"`
	TransactionTotal     int64  `json:"transaction_total"`
	RawTransactionTotal  string `json:"raw_transaction_total"`
	PendingDifference    int64  `json:"pending_difference"`
	RawPendingDifference string `json:"raw_pending_difference"`
}

func newTotals(paid, pending int64) Totals {
	return Totals{
		PaidTotal:            paid,
		RawPaidTotal:         money.MajorString(paid),
		TransactionTotal:     paid,
		RawTransactionTotal:  money.MajorString(paid),
		PendingDifference:    pending,
		RawPendingDifference: money.MajorString(pending),
	}
}

// Report carries the run counters for operational visibility.
type Report struct {
	OrdersAnalyzed      int `json:"ordersAnalyzed"`
	TransactionsCreated int `json:"transactionsCreated"`
	SummariesFixed      int `json:"summariesFixed"`
	AlreadyCorrect      int `json:"alreadyCorrect"`
	Errors              int `json:"errors"`
}
