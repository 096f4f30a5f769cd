package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"merukart.com/app/internal/database"
)

// Service is the coin ledger engine. Every mutation runs in one transaction:
// lock the account row (created lazily), insert the ledger entry guarded by
// the unique idempotency key, and only if the insert landed, move the cached
// balance. A conflicting insert means the operation already happened and is
// reported as Applied=false with the unchanged balance.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, logger: slog.Default()}
}

func (s *Service) SetLogger(logger *slog.Logger) { s.logger = logger }

type EarnInput struct {
	CustomerID string
	OrderID    string
	Amount     int64 // minor units, > 0
	ExpiresAt  *time.Time
	Metadata   map[string]any
}

func (s *Service) EarnCoins(ctx context.Context, in EarnInput) (MutationResult, error) {
	var res MutationResult
	err := database.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var err error
		res, err = s.EarnCoinsInTx(ctx, tx, in)
		return err
	})
	return res, err
}

// EarnCoinsInTx runs inside an externally owned transaction (no nesting).
// The payment-confirmation workflow calls this from its own tx.
func (s *Service) EarnCoinsInTx(ctx context.Context, tx *gorm.DB, in EarnInput) (MutationResult, error) {
	if in.CustomerID == "" {
		return MutationResult{}, ErrMissingCustomer
	}
	if in.OrderID == "" {
		return MutationResult{}, ErrMissingOrder
	}
	if in.Amount <= 0 {
		return MutationResult{}, ErrInvalidAmount
	}

	acct, err := lockAccount(ctx, tx, in.CustomerID)
	if err != nil {
		return MutationResult{}, err
	}

	meta := in.Metadata
	if in.ExpiresAt != nil {
		if meta == nil {
			meta = map[string]any{}
		}
		meta[MetaExpiresAt] = in.ExpiresAt.UTC().Truncate(time.Second).Format(expiresAtLayout)
	}

	key := "earn:" + in.OrderID
	entry := LedgerEntry{
		CustomerID:     in.CustomerID,
		OrderID:        &in.OrderID,
		Type:           TypeEarn,
		Amount:         in.Amount,
		IdempotencyKey: &key,
		Metadata:       marshalMetadata(meta),
		CreatedAt:      time.Now(),
	}

	applied, err := insertEntry(ctx, tx, &entry)
	if err != nil {
		return MutationResult{}, err
	}
	if !applied {
		return MutationResult{Applied: false, Balance: acct.ActualBalance}, nil
	}
	return applyToBalance(ctx, tx, acct, entry.Amount)
}

type SpendInput struct {
	CustomerID     string
	OrderID        *string
	Amount         int64 // minor units, > 0
	ReferenceID    *string
	IdempotencyKey *string
	Metadata       map[string]any
}

// SpendCoins refuses any spend while the account is in deficit, even when
// the requested amount would nominally be covered by a future correction.
func (s *Service) SpendCoins(ctx context.Context, in SpendInput) (MutationResult, error) {
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
		if acct.ActualBalance < 0 {
			return ErrNegativeBalance
		}
		if acct.ActualBalance < in.Amount {
			return ErrInsufficientBalance
		}

		entry := LedgerEntry{
			CustomerID:     in.CustomerID,
			OrderID:        in.OrderID,
			Type:           TypeSpend,
			Amount:         -in.Amount,
			ReferenceID:    in.ReferenceID,
			IdempotencyKey: in.IdempotencyKey,
			Metadata:       marshalMetadata(in.Metadata),
			CreatedAt:      time.Now(),
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

type ReverseInput struct {
	OrderID string
	Reason  string
}

func (s *Service) ReverseEarned(ctx context.Context, in ReverseInput) (MutationResult, error) {
	var res MutationResult
	err := database.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var err error
		res, err = s.ReverseEarnedInTx(ctx, tx, in)
		return err
	})
	return res, err
}

// ReverseEarnedInTx reverses the oldest EARN entry for the order (min ledger
// id). No-op when the order never earned or the earn amount is zero.
func (s *Service) ReverseEarnedInTx(ctx context.Context, tx *gorm.DB, in ReverseInput) (MutationResult, error) {
	if in.OrderID == "" {
		return MutationResult{}, ErrMissingOrder
	}

	var earn LedgerEntry
	err := tx.WithContext(ctx).
		Where("order_id = ? AND type = ?", in.OrderID, TypeEarn).
		Order("id ASC").
		First(&earn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return MutationResult{Applied: false}, nil
	}
	if err != nil {
		return MutationResult{}, err
	}
	if earn.Amount == 0 {
		return MutationResult{Applied: false}, nil
	}

	acct, err := lockAccount(ctx, tx, earn.CustomerID)
	if err != nil {
		return MutationResult{}, err
	}

	meta := map[string]any{MetaEarnID: earn.ID}
	if in.Reason != "" {
		meta[MetaReason] = in.Reason
	}

	key := "reverse:" + in.OrderID
	entry := LedgerEntry{
		CustomerID:     earn.CustomerID,
		OrderID:        &in.OrderID,
		Type:           TypeReverse,
		Amount:         -earn.Amount,
		IdempotencyKey: &key,
		Metadata:       marshalMetadata(meta),
		CreatedAt:      time.Now(),
	}

	applied, err := insertEntry(ctx, tx, &entry)
	if err != nil {
		return MutationResult{}, err
	}
	if !applied {
		return MutationResult{Applied: false, Balance: acct.ActualBalance}, nil
	}
	return applyToBalance(ctx, tx, acct, entry.Amount)
}

type AdjustmentInput struct {
	CustomerID     string
	Amount         int64 // minor units, > 0
	ReferenceID    *string
	IdempotencyKey *string
	Reason         string
	Metadata       map[string]any
}

// CreditAdjustment is an operator-driven credit: an EARN entry with no order,
// tagged with a reason. The usual way out of a deficit account.
func (s *Service) CreditAdjustment(ctx context.Context, in AdjustmentInput) (MutationResult, error) {
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

		meta := in.Metadata
		if in.Reason != "" {
			if meta == nil {
				meta = map[string]any{}
			}
			meta[MetaReason] = in.Reason
		}

		entry := LedgerEntry{
			CustomerID:     in.CustomerID,
			OrderID:        nil,
			Type:           TypeEarn,
			Amount:         in.Amount,
			ReferenceID:    in.ReferenceID,
			IdempotencyKey: in.IdempotencyKey,
			Metadata:       marshalMetadata(meta),
			CreatedAt:      time.Now(),
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

// FindSpendByReference returns the newest SPEND entry matching the reference,
// or nil when the redemption never happened. Read-only.
func (s *Service) FindSpendByReference(ctx context.Context, customerID, referenceID string) (*LedgerEntry, error) {
	if customerID == "" {
		return nil, ErrMissingCustomer
	}
	var entry LedgerEntry
	err := s.db.WithContext(ctx).
		Where("customer_id = ? AND reference_id = ? AND type = ?", customerID, referenceID, TypeSpend).
		Order("id DESC").
		First(&entry).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// lockAccount: insert-if-absent, then SELECT ... FOR UPDATE. Concurrent
// mutations for the same customer serialize on this row lock.
func lockAccount(ctx context.Context, tx *gorm.DB, customerID string) (Account, error) {
	var a Account
	err := database.ForUpdate(tx.WithContext(ctx)).First(&a, "customer_id = ?", customerID).Error
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Account{}, err
	}

	seed := Account{CustomerID: customerID, ActualBalance: 0, UpdatedAt: time.Now()}
	if err := tx.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&seed).Error; err != nil && !database.IsDuplicateEntry(err) {
		return Account{}, err
	}
	err = database.ForUpdate(tx.WithContext(ctx)).First(&a, "customer_id = ?", customerID).Error
	return a, err
}

// insertEntry appends guarded by the unique idempotency key. The constraint,
// not a pre-insert SELECT, is the dedupe: RowsAffected==0 means the entry
// already exists.
func insertEntry(ctx context.Context, tx *gorm.DB, e *LedgerEntry) (bool, error) {
	res := tx.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "idempotency_key"}},
			DoNothing: true,
		}).
		Create(e)
	if res.Error != nil {
		if database.IsDuplicateEntry(res.Error) {
			return false, nil
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func applyToBalance(ctx context.Context, tx *gorm.DB, acct Account, delta int64) (MutationResult, error) {
	newBalance := acct.ActualBalance + delta
	err := tx.WithContext(ctx).Model(&Account{}).
		Where("customer_id = ?", acct.CustomerID).
		Updates(map[string]any{
			"actual_balance": newBalance,
			"updated_at":     time.Now(),
		}).Error
	if err != nil {
		return MutationResult{}, err
	}
	return MutationResult{Applied: true, Balance: newBalance}, nil
}

func marshalMetadata(meta map[string]any) datatypes.JSON {
	if len(meta) == 0 {
		return nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil
	}
	return datatypes.JSON(b)
}
