package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"merukart.com/app/internal/database"
)

const defaultExpiryLimit = 500

// ExpiryItem is one unit of work for the expiry sweep: an EARN entry whose
// metadata expiry date has passed and that has no expire spend recorded yet.
type ExpiryItem struct {
	EarnID     uint64    `json:"earn_id"`
	CustomerID string    `json:"customer_id"`
	Amount     int64     `json:"amount_minor"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// ExpireEarnedCoins builds the worklist, oldest earns first, bounded by
// limit (default 500). The caller applies each item via ApplyExpiry; the
// whole sweep is driven by an external scheduler.
func (s *Service) ExpireEarnedCoins(ctx context.Context, limit int) ([]ExpiryItem, error) {
	if limit < 1 {
		limit = defaultExpiryLimit
	}
	now := time.Now().UTC().Format(expiresAtLayout)

	var earns []LedgerEntry
	err := s.db.WithContext(ctx).
		Where("type = ?", TypeEarn).
		Where("JSON_EXTRACT(metadata, '$.expires_at') IS NOT NULL").
		Where("JSON_EXTRACT(metadata, '$.expires_at') <= ?", now).
		Order("id ASC").
		Limit(limit).
		Find(&earns).Error
	if err != nil {
		return nil, err
	}
	if len(earns) == 0 {
		return nil, nil
	}

	// Drop earns whose expire spend already landed. ApplyExpiry is safe to
	// re-run regardless; this only keeps finished items off the worklist.
	keys := make([]string, 0, len(earns))
	for _, e := range earns {
		keys = append(keys, expireKey(e.ID))
	}
	var done []string
	if err := s.db.WithContext(ctx).Model(&LedgerEntry{}).
		Where("idempotency_key IN ?", keys).
		Pluck("idempotency_key", &done).Error; err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(done))
	for _, k := range done {
		applied[k] = true
	}

	items := make([]ExpiryItem, 0, len(earns))
	for _, e := range earns {
		if applied[expireKey(e.ID)] {
			continue
		}
		items = append(items, ExpiryItem{
			EarnID:     e.ID,
			CustomerID: e.CustomerID,
			Amount:     e.Amount,
			ExpiresAt:  parseExpiresAt(e.Metadata),
		})
	}
	return items, nil
}

type ApplyExpiryInput struct {
	EarnID     uint64
	CustomerID string
	Amount     int64 // minor units, > 0
}

// ApplyExpiry burns one expired earn: a SPEND entry keyed expire:{earnID},
// so re-running the sweep against the same earn is a no-op. Expiry is a
// system spend and bypasses the deficit/sufficiency gates.
func (s *Service) ApplyExpiry(ctx context.Context, in ApplyExpiryInput) (MutationResult, error) {
	if in.CustomerID == "" {
		return MutationResult{}, ErrMissingCustomer
	}
	if in.Amount <= 0 {
		return MutationResult{}, ErrInvalidAmount
	}

	var res MutationResult
	err := database.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		acct, err := lockAccount(ctx, tx, in.CustomerID)
		if err != nil {
			return err
		}

		key := expireKey(in.EarnID)
		entry := LedgerEntry{
			CustomerID:     in.CustomerID,
			Type:           TypeSpend,
			Amount:         -in.Amount,
			IdempotencyKey: &key,
			Metadata: marshalMetadata(map[string]any{
				MetaEarnID: in.EarnID,
				MetaReason: "expired",
			}),
			CreatedAt: time.Now(),
		}

		applied, err := insertEntry(ctx, tx, &entry)
		if err != nil {
			return err
		}
		if !applied {
			res = MutationResult{Applied: false, Balance: acct.ActualBalance}
			return nil
		}
		res, err = applyToBalance(ctx, tx, acct, entry.Amount)
		return err
	})
	return res, err
}

func expireKey(earnID uint64) string {
	return fmt.Sprintf("expire:%d", earnID)
}

func parseExpiresAt(metadata []byte) time.Time {
	if len(metadata) == 0 {
		return time.Time{}
	}
	var m struct {
		ExpiresAt string `json:"expires_at"`
	}
	if err := json.Unmarshal(metadata, &m); err != nil {
		return time.Time{}
	}
	t, err := time.Parse(expiresAtLayout, m.ExpiresAt)
	if err != nil {
		return time.Time{}
	}
	return t
}
