package wallet

import (
	"context"
	"time"

	"gorm.io/gorm"

	"merukart.com/app/internal/database"
)

// Snapshot is what the storefront renders. The display balance is never
// negative; a deficit shows up as a pending adjustment instead.
type Snapshot struct {
	ActualBalance     int64         `json:"actual_balance_minor"`
	DisplayBalance    int64         `json:"display_balance_minor"`
	PendingAdjustment int64         `json:"pending_adjustment_minor"`
	Transactions      []LedgerEntry `json:"transactions"`
}

// GetSnapshot reconciles first: the cached balance is recomputed as
// SUM(wallet_ledger.amount) and overwritten if it drifted, so an externally
// corrupted column heals on the next read. Then returns the last 50 entries.
func (s *Service) GetSnapshot(ctx context.Context, customerID string) (Snapshot, error) {
	if customerID == "" {
		return Snapshot{}, ErrMissingCustomer
	}

	var snap Snapshot
	err := database.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		acct, err := lockAccount(ctx, tx, customerID)
		if err != nil {
			return err
		}

		var sum int64
		if err := tx.WithContext(ctx).Model(&LedgerEntry{}).
			Where("customer_id = ?", customerID).
			Select("COALESCE(SUM(amount), 0)").
			Scan(&sum).Error; err != nil {
			return err
		}

		if sum != acct.ActualBalance {
			s.logger.WarnContext(ctx, "wallet balance drift repaired",
				"customer_id", customerID,
				"cached", acct.ActualBalance,
				"ledger_sum", sum,
			)
			if err := tx.WithContext(ctx).Model(&Account{}).
				Where("customer_id = ?", customerID).
				Updates(map[string]any{
					"actual_balance": sum,
					"updated_at":     time.Now(),
				}).Error; err != nil {
				return err
			}
		}

		var entries []LedgerEntry
		if err := tx.WithContext(ctx).
			Where("customer_id = ?", customerID).
			Order("id DESC").
			Limit(50).
			Find(&entries).Error; err != nil {
			return err
		}

		snap = Snapshot{
			ActualBalance:  sum,
			DisplayBalance: sum,
			Transactions:   entries,
		}
		if sum < 0 {
			snap.DisplayBalance = 0
			snap.PendingAdjustment = -sum
		}
		return nil
	})
	return snap, err
}
