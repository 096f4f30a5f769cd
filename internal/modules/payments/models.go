package payments

import "time"

const (
	StatusInitiated = "initiated"
	StatusCaptured  = "captured"
	StatusFailed    = "failed"
)

// Payment records one gateway attempt against an order. The engine records
// facts about settled gateway calls; it never talks to the gateway ledger.
type Payment struct {
	ID               string  `gorm:"type:char(36);primaryKey"`
	OrderID          string  `gorm:"type:char(36);not null;index:ix_payments_order_id"`
	Gateway          string  `gorm:"type:varchar(64);not null"`
	GatewayPaymentID *string `gorm:"type:varchar(128);index:ix_payments_gateway_payment_id"`
	GatewayOrderID   *string `gorm:"type:varchar(128)"`
	Status           string  `gorm:"type:varchar(32);not null"`
	Amount           int64   `gorm:"not null"` // minor units
	Currency         string  `gorm:"type:char(3);not null"`
	IdempotencyKey   string  `gorm:"type:varchar(64);not null"`
	ErrorMessage     *string `gorm:"type:varchar(255)"`

	CapturedAt *time.Time `gorm:"precision:3"` // set iff the gateway confirmed the debit
	CreatedAt  time.Time  `gorm:"precision:3;not null"`
	UpdatedAt  time.Time  `gorm:"precision:3;not null"`
}

func (Payment) TableName() string { return "payments" }
