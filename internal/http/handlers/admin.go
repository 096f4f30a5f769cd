package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"merukart.com/app/internal/http/middleware"
	"merukart.com/app/internal/http/validation"
	"merukart.com/app/internal/modules/recon"
	"merukart.com/app/internal/modules/wallet"
	"merukart.com/app/internal/shared/apperr"
)

// AdminHandler exposes the maintenance surface: manual wallet adjustments,
// the reconciliation batch and the coin-expiry sweep. AuthN/AuthZ sits in
// front of these routes and is not this module's concern.
type AdminHandler struct {
	Wallet *wallet.Service
	Recon  *recon.Service
}

func NewAdminHandler(w *wallet.Service, r *recon.Service) *AdminHandler {
	return &AdminHandler{Wallet: w, Recon: r}
}

type adjustRequest struct {
	AmountMinor    int64   `json:"amount_minor" binding:"required,gt=0"`
	Reason         string  `json:"reason" binding:"required,max=255"`
	ReferenceID    *string `json:"reference_id"`
	IdempotencyKey *string `json:"idempotency_key"`
}

// POST /api/admin/wallet/:customer_id/adjust
func (h *AdminHandler) Adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid adjustment request.", validation.FromBindError(err, &req)))
		return
	}

	res, err := h.Wallet.CreditAdjustment(c.Request.Context(), wallet.AdjustmentInput{
		CustomerID:     c.Param("customer_id"),
		Amount:         req.AmountMinor,
		Reason:         req.Reason,
		ReferenceID:    req.ReferenceID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		middleware.Fail(c, walletErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

type reconcileRequest struct {
	Limit int `json:"limit" binding:"omitempty,gt=0,max=5000"`
}

// POST /api/admin/reconcile
func (h *AdminHandler) Reconcile(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		middleware.Fail(c, apperr.InvalidErr("Invalid reconcile request.", validation.FromBindError(err, &req)))
		return
	}

	report := h.Recon.Run(c.Request.Context(), req.Limit)
	c.JSON(http.StatusOK, report)
}

// POST /api/admin/coins/expire
func (h *AdminHandler) ExpireCoins(c *gin.Context) {
	var req reconcileRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		middleware.Fail(c, apperr.InvalidErr("Invalid expiry request.", validation.FromBindError(err, &req)))
		return
	}

	items, err := h.Wallet.ExpireEarnedCoins(c.Request.Context(), req.Limit)
	if err != nil {
		middleware.Fail(c, apperr.Wrap(err))
		return
	}

	applied, errs := 0, 0
	for _, it := range items {
		res, err := h.Wallet.ApplyExpiry(c.Request.Context(), wallet.ApplyExpiryInput{
			EarnID:     it.EarnID,
			CustomerID: it.CustomerID,
			Amount:     it.Amount,
		})
		if err != nil {
			errs++
			continue
		}
		if res.Applied {
			applied++
		}
	}

	c.JSON(http.StatusOK, gin.H{"found": len(items), "applied": applied, "errors": errs})
}
