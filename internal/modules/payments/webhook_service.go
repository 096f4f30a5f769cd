package payments

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"merukart.com/app/internal/database"
	"merukart.com/app/internal/modules/orders"
	"merukart.com/app/internal/modules/recon"
	"merukart.com/app/internal/modules/wallet"
)

// ProviderEvent persists every received webhook under unique
// (provider, event_id); a duplicate insert means the event was already
// processed and the delivery is acknowledged without reapplying.
type ProviderEvent struct {
	ID          string         `gorm:"type:char(36);primaryKey"`
	Provider    string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_provider_events_provider_event,priority:1"`
	EventID     string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_provider_events_provider_event,priority:2"`
	EventType   string         `gorm:"type:varchar(64);not null"`
	PayloadJSON datatypes.JSON `gorm:"type:json;not null"`

	ReceivedAt   time.Time  `gorm:"precision:3;not null"`
	ProcessedAt  *time.Time `gorm:"precision:3"`
	ProcessError *string    `gorm:"type:varchar(255)"`
}

func (ProviderEvent) TableName() string { return "provider_events" }

// WebhookService applies gateway confirmations: marks the payment captured,
// credits the coin reward and resyncs the order summary, all in the same
// transaction as the dedupe row so a failed apply is retried whole.
type WebhookService struct {
	db     *gorm.DB
	wallet *wallet.Service
	recon  *recon.Service
	logger *slog.Logger

	rewardPercent float64 // of the captured amount
	expiryDays    int     // 0 = earned coins never expire
}

func NewWebhookService(db *gorm.DB, w *wallet.Service, r *recon.Service, rewardPercent float64, expiryDays int) *WebhookService {
	return &WebhookService{
		db:            db,
		wallet:        w,
		recon:         r,
		logger:        slog.Default(),
		rewardPercent: rewardPercent,
		expiryDays:    expiryDays,
	}
}

func (s *WebhookService) SetLogger(logger *slog.Logger) { s.logger = logger }

func (s *WebhookService) Handle(ctx context.Context, providerName string, ev WebhookEvent, rawBody []byte) error {
	payload, _ := json.RawMessage(rawBody).MarshalJSON()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		pe := ProviderEvent{
			ID:          uuid.NewString(),
			Provider:    providerName,
			EventID:     ev.EventID,
			EventType:   ev.Type,
			PayloadJSON: datatypes.JSON(payload),
			ReceivedAt:  now,
		}

		// dedupe: unique(provider, event_id)
		if err := tx.WithContext(ctx).Create(&pe).Error; err != nil {
			if database.IsDuplicateEntry(err) {
				s.logger.InfoContext(ctx, "webhook event deduplicated",
					"provider", providerName, "event_id", ev.EventID, "type", ev.Type)
				return nil
			}
			s.logger.ErrorContext(ctx, "failed to persist provider event",
				"provider", providerName, "event_id", ev.EventID, "err", err)
			return err
		}

		var applyErr error
		switch ev.Type {
		case EventPaymentCaptured:
			applyErr = s.applyPaymentCaptured(ctx, tx, providerName, ev)
		case EventPaymentFailed:
			applyErr = s.applyPaymentFailed(ctx, tx, providerName, ev)
		case EventRefundProcessed:
			applyErr = s.applyRefundProcessed(ctx, tx, providerName, ev)
		default:
			applyErr = errors.New("unknown webhook event type")
		}

		if applyErr != nil {
			msg := truncate(applyErr.Error(), 250)
			if err := tx.WithContext(ctx).Model(&ProviderEvent{}).
				Where("id = ?", pe.ID).
				Updates(map[string]any{"process_error": msg}).Error; err != nil {
				return err
			}
			s.logger.ErrorContext(ctx, "webhook event apply failed",
				"provider", providerName, "event_id", ev.EventID, "type", ev.Type, "error", msg)
			// propagate so the gateway retries; the rollback also drops the
			// dedupe row, keeping the retry processable
			return applyErr
		}

		processed := now
		if err := tx.WithContext(ctx).Model(&ProviderEvent{}).
			Where("id = ?", pe.ID).
			Updates(map[string]any{"processed_at": &processed, "process_error": nil}).Error; err != nil {
			return err
		}

		s.logger.InfoContext(ctx, "webhook event processed successfully",
			"provider", providerName, "event_id", ev.EventID, "type", ev.Type)
		return nil
	})
}

func (s *WebhookService) applyPaymentCaptured(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) error {
	if ev.PaymentRef == "" {
		return errors.New("missing payment_ref")
	}

	var p Payment
	if err := database.ForUpdate(tx.WithContext(ctx)).
		First(&p, "gateway = ? AND gateway_payment_id = ?", provider, ev.PaymentRef).Error; err != nil {
		return err // not found yet: retry after the checkout write lands
	}

	// idempotent
	if p.CapturedAt != nil {
		return nil
	}

	if ev.Amount > 0 && ev.Amount != p.Amount {
		s.logger.WarnContext(ctx, "captured amount differs from payment record",
			"payment_id", p.ID, "recorded", p.Amount, "captured", ev.Amount)
	}

	now := time.Now()
	if err := tx.WithContext(ctx).Model(&Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"status":        StatusCaptured,
			"captured_at":   &now,
			"error_message": nil,
			"updated_at":    now,
		}).Error; err != nil {
		return err
	}

	var ord orders.Order
	if err := tx.WithContext(ctx).First(&ord, "id = ?", p.OrderID).Error; err != nil {
		return err
	}

	// coin reward for the captured amount; guest orders earn nothing
	if ord.CustomerID != nil && *ord.CustomerID != "" {
		reward := int64(math.Round(float64(p.Amount) * s.rewardPercent / 100))
		if reward > 0 {
			earn := wallet.EarnInput{
				CustomerID: *ord.CustomerID,
				OrderID:    ord.ID,
				Amount:     reward,
			}
			if s.expiryDays > 0 {
				exp := now.AddDate(0, 0, s.expiryDays)
				earn.ExpiresAt = &exp
			}
			if _, err := s.wallet.EarnCoinsInTx(ctx, tx, earn); err != nil {
				return err
			}
		}
	}

	_, _, err := s.recon.SyncOrderInTx(ctx, tx, ord.ID)
	return err
}

func (s *WebhookService) applyPaymentFailed(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) error {
	if ev.PaymentRef == "" {
		return errors.New("missing payment_ref")
	}

	var p Payment
	if err := database.ForUpdate(tx.WithContext(ctx)).
		First(&p, "gateway = ? AND gateway_payment_id = ?", provider, ev.PaymentRef).Error; err != nil {
		return err
	}
	if p.Status == StatusFailed || p.CapturedAt != nil {
		return nil
	}

	now := time.Now()
	return tx.WithContext(ctx).Model(&Payment{}).
		Where("id = ?", p.ID).
		Updates(map[string]any{
			"status":        StatusFailed,
			"error_message": "gateway webhook: failed",
			"updated_at":    now,
		}).Error
}

// applyRefundProcessed claws back the order's coin reward and resyncs the
// summary. The gateway's own refund ledger is not mirrored here.
func (s *WebhookService) applyRefundProcessed(ctx context.Context, tx *gorm.DB, provider string, ev WebhookEvent) error {
	if ev.PaymentRef == "" {
		return errors.New("missing payment_ref")
	}

	var p Payment
	if err := database.ForUpdate(tx.WithContext(ctx)).
		First(&p, "gateway = ? AND gateway_payment_id = ?", provider, ev.PaymentRef).Error; err != nil {
		return err
	}

	if _, err := s.wallet.ReverseEarnedInTx(ctx, tx, wallet.ReverseInput{
		OrderID: p.OrderID,
		Reason:  "refund:" + ev.RefundRef,
	}); err != nil {
		return err
	}

	_, _, err := s.recon.SyncOrderInTx(ctx, tx, p.OrderID)
	return err
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
