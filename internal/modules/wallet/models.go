package wallet

import (
	"time"

	"gorm.io/datatypes"
)

const (
	TypeEarn    = "EARN"
	TypeSpend   = "SPEND"
	TypeReverse = "REVERSE"
)

// Recognized metadata keys. The bag is open-ended JSON but writers in this
// package only ever set these.
const (
	MetaExpiresAt = "expires_at"
	MetaReason    = "reason"
	MetaEarnID    = "earn_id"
)

// expiresAtLayout is RFC3339 truncated to seconds: constant width, so
// lexicographic comparison inside JSON_EXTRACT matches time order.
const expiresAtLayout = "2006-01-02T15:04:05Z"

// Account caches the running balance. The ledger is the source of truth;
// Snapshot repairs this column whenever it drifts from SUM(amount).
type Account struct {
	CustomerID    string    `gorm:"type:char(36);primaryKey"`
	ActualBalance int64     `gorm:"not null"` // minor units, may be negative
	UpdatedAt     time.Time `gorm:"precision:3;not null"`
}

func (Account) TableName() string { return "wallet_accounts" }

// LedgerEntry is append-only: created once, never mutated or deleted.
// Corrections are new REVERSE or SPEND rows. The autoincrement id gives the
// insertion order ReverseEarned depends on.
type LedgerEntry struct {
	ID             uint64         `gorm:"primaryKey;autoIncrement"`
	CustomerID     string         `gorm:"type:char(36);not null;index:ix_wallet_ledger_customer"`
	OrderID        *string        `gorm:"type:char(36);index:ix_wallet_ledger_order"` // nil for manual adjustments
	Type           string         `gorm:"type:varchar(16);not null"`
	Amount         int64          `gorm:"not null"` // signed minor units: + EARN, - SPEND/REVERSE
	ReferenceID    *string        `gorm:"type:varchar(128);index:ix_wallet_ledger_reference"`
	IdempotencyKey *string        `gorm:"type:varchar(64);uniqueIndex:ux_wallet_ledger_idem"`
	Metadata       datatypes.JSON `gorm:"type:json"`
	CreatedAt      time.Time      `gorm:"precision:3;not null"`
}

func (LedgerEntry) TableName() string { return "wallet_ledger" }

// MutationResult is returned by every balance-affecting operation.
// Applied=false is the idempotency no-op signal, not an error: the entry
// already exists and the balance is unchanged.
type MutationResult struct {
	Applied bool  `json:"applied"`
	Balance int64 `json:"actual_balance_minor"`
}
