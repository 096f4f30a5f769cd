package orders

import "time"

// Order is owned by the storefront; the accounting engines read the handful
// of fields below and never touch line items, shipping or customer PII.
type Order struct {
	ID         string  `gorm:"type:char(36);primaryKey"`
	CustomerID *string `gorm:"type:char(36);index:ix_orders_customer_id"` // nil for guest checkout
	Status     string  `gorm:"type:varchar(32);not null"`
	TotalMinor int64   `gorm:"not null"`
	Currency   string  `gorm:"type:char(3);not null"`

	PaidAt    *time.Time `gorm:"precision:3"`
	CreatedAt time.Time  `gorm:"precision:3;not null"`
	UpdatedAt time.Time  `gorm:"precision:3;not null"`
}

func (Order) TableName() string { return "orders" }
