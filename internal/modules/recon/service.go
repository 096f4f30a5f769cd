package recon

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"merukart.com/app/internal/database"
	"merukart.com/app/internal/modules/orders"
	"merukart.com/app/internal/shared/money"
)

const defaultBatchLimit = 200

// Service keeps order_summaries consistent with the captured payments on
// record. It is read-repair: the on-demand path runs right after a payment
// confirmation, the batch path catches whatever that path missed (crash
// between steps, webhook that never fired, manual edits). It never locks
// orders against live writers; idempotent inserts plus re-reading before
// deciding "no mismatch" make overlapping runs converge.
type Service struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewService(db *gorm.DB) *Service {
	return &Service{db: db, logger: slog.Default()}
}

func (s *Service) SetLogger(logger *slog.Logger) { s.logger = logger }

// capturedPayment is the slice of the payments table this engine reads.
// A payment is captured when its capture timestamp is set.
type capturedPayment struct {
	ID               string  `gorm:"column:id"`
	GatewayPaymentID *string `gorm:"column:gateway_payment_id"`
	Amount           int64   `gorm:"column:amount"`
	Currency         string  `gorm:"column:currency"`
}

// SyncOrder reconciles a single order in one transaction and reports what
// it did. Called after each payment confirmation and per order by Run.
func (s *Service) SyncOrder(ctx context.Context, orderID string) (created int, fixed bool, err error) {
	err = database.WithTxRetry(ctx, s.db, 3, func(tx *gorm.DB) error {
		var txErr error
		created, fixed, txErr = s.SyncOrderInTx(ctx, tx, orderID)
		return txErr
	})
	return created, fixed, err
}

// SyncOrderInTx runs inside an externally owned transaction (no nesting).
func (s *Service) SyncOrderInTx(ctx context.Context, tx *gorm.DB, orderID string) (int, bool, error) {
	var ord orders.Order
	if err := tx.WithContext(ctx).First(&ord, "id = ?", orderID).Error; err != nil {
		return 0, false, err
	}

	var captured []capturedPayment
	if err := tx.WithContext(ctx).
		Table("payments").
		Select("id", "gateway_payment_id", "amount", "currency").
		Where("order_id = ? AND captured_at IS NOT NULL", orderID).
		Order("created_at ASC").
		Find(&captured).Error; err != nil {
		return 0, false, err
	}

	// Synthesize a transaction per captured payment. The unique
	// (order_id, reference_id) constraint makes repeated runs no-ops.
	createdCount := 0
	now := time.Now()
	for _, p := range captured {
		refID := p.ID
		if p.GatewayPaymentID != nil && *p.GatewayPaymentID != "" {
			refID = *p.GatewayPaymentID
		}

		otx := OrderTransaction{
			ID:           uuid.NewString(),
			OrderID:      orderID,
			Version:      1,
			Amount:       p.Amount,
			RawAmount:    rawAmountJSON(p.Amount),
			CurrencyCode: p.Currency,
			Reference:    "capture",
			ReferenceID:  refID,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		res := tx.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "order_id"}, {Name: "reference_id"}},
				DoNothing: true,
			}).
			Create(&otx)
		if res.Error != nil {
			if database.IsDuplicateEntry(res.Error) {
				continue
			}
			return createdCount, false, res.Error
		}
		createdCount += int(res.RowsAffected)
	}

	// Recompute from what is actually in the table now.
	var actualTotal int64
	if err := tx.WithContext(ctx).Model(&OrderTransaction{}).
		Where("order_id = ?", orderID).
		Select("COALESCE(SUM(amount), 0)").
		Scan(&actualTotal).Error; err != nil {
		return createdCount, false, err
	}

	var summary OrderSummary
	haveSummary := true
	if err := tx.WithContext(ctx).First(&summary, "order_id = ?", orderID).Error; err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return createdCount, false, err
		}
		haveSummary = false
	}

	var stored Totals
	if haveSummary {
		if err := json.Unmarshal(summary.Totals, &stored); err != nil {
			return createdCount, false, err
		}
	}

	// Integer minor units: the 0.01 major-unit tolerance is exactly one
	// minor unit, so comparison is plain equality.
	if haveSummary && stored.PaidTotal == actualTotal && stored.TransactionTotal == actualTotal {
		return createdCount, false, nil
	}

	pending := ord.TotalMinor - actualTotal
	if pending < 0 {
		pending = 0
	}
	totals := newTotals(actualTotal, pending)
	payload, err := json.Marshal(totals)
	if err != nil {
		return createdCount, false, err
	}

	if haveSummary {
		if err := tx.WithContext(ctx).Model(&OrderSummary{}).
			Where("order_id = ?", orderID).
			Updates(map[string]any{
				"totals":     datatypes.JSON(payload),
				"updated_at": now,
			}).Error; err != nil {
			return createdCount, false, err
		}
	} else {
		summary = OrderSummary{
			OrderID:   orderID,
			Totals:    datatypes.JSON(payload),
			UpdatedAt: now,
		}
		if err := tx.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&summary).Error; err != nil && !database.IsDuplicateEntry(err) {
			return createdCount, false, err
		}
	}

	s.logger.InfoContext(ctx, "order summary resynced",
		"order_id", orderID,
		"paid_total", actualTotal,
		"pending_difference", pending,
		"transactions_created", createdCount,
	)
	return createdCount, true, nil
}

// Run walks the most recently created orders and repairs each one. A bad
// order is counted and logged, never allowed to abort the batch.
func (s *Service) Run(ctx context.Context, limit int) Report {
	if limit < 1 {
		limit = defaultBatchLimit
	}

	var report Report

	ids, err := orders.NewRepo(s.db).RecentIDs(ctx, limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "reconciliation: listing orders failed", "err", err)
		report.Errors++
		return report
	}

	for _, id := range ids {
		report.OrdersAnalyzed++

		created, fixed, err := s.SyncOrder(ctx, id)
		if err != nil {
			report.Errors++
			s.logger.ErrorContext(ctx, "reconciliation: order failed", "order_id", id, "err", err)
			continue
		}

		report.TransactionsCreated += created
		if fixed {
			report.SummariesFixed++
		} else {
			report.AlreadyCorrect++
		}
	}

	s.logger.InfoContext(ctx, "reconciliation run finished",
		"orders_analyzed", report.OrdersAnalyzed,
		"transactions_created", report.TransactionsCreated,
		"summaries_fixed", report.SummariesFixed,
		"already_correct", report.AlreadyCorrect,
		"errors", report.Errors,
	)
	return report
}

func rawAmountJSON(minor int64) datatypes.JSON {
	b, _ := json.Marshal(map[string]any{
		"value":     money.MajorString(minor),
		"precision": 2,
	})
	return datatypes.JSON(b)
}
