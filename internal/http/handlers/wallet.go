package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"merukart.com/app/internal/http/middleware"
	"merukart.com/app/internal/http/validation"
	"merukart.com/app/internal/modules/wallet"
	"merukart.com/app/internal/shared/apperr"
)

type WalletHandler struct {
	Wallet *wallet.Service
}

func NewWalletHandler(w *wallet.Service) *WalletHandler {
	return &WalletHandler{Wallet: w}
}

// GET /api/wallet/:customer_id
func (h *WalletHandler) Snapshot(c *gin.Context) {
	snap, err := h.Wallet.GetSnapshot(c.Request.Context(), c.Param("customer_id"))
	if err != nil {
		middleware.Fail(c, walletErr(err))
		return
	}
	c.JSON(http.StatusOK, snap)
}

type spendRequest struct {
	AmountMinor    int64   `json:"amount_minor" binding:"required,gt=0"`
	OrderID        *string `json:"order_id"`
	ReferenceID    *string `json:"reference_id"`
	IdempotencyKey *string `json:"idempotency_key"`
}

// POST /api/wallet/:customer_id/spend
func (h *WalletHandler) Spend(c *gin.Context) {
	var req spendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.Fail(c, apperr.InvalidErr("Invalid spend request.", validation.FromBindError(err, &req)))
		return
	}

	res, err := h.Wallet.SpendCoins(c.Request.Context(), wallet.SpendInput{
		CustomerID:     c.Param("customer_id"),
		OrderID:        req.OrderID,
		Amount:         req.AmountMinor,
		ReferenceID:    req.ReferenceID,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		middleware.Fail(c, walletErr(err))
		return
	}
	c.JSON(http.StatusOK, res)
}

// GET /api/wallet/:customer_id/spends/:reference_id
func (h *WalletHandler) SpendByReference(c *gin.Context) {
	entry, err := h.Wallet.FindSpendByReference(c.Request.Context(), c.Param("customer_id"), c.Param("reference_id"))
	if err != nil {
		middleware.Fail(c, walletErr(err))
		return
	}
	if entry == nil {
		middleware.Fail(c, apperr.NotFoundErr("No spend recorded for this reference."))
		return
	}
	c.JSON(http.StatusOK, entry)
}

// walletErr translates ledger errors to caller-facing messages. A deficit
// account must read differently from plain insufficiency so support can tell
// "earn more" from "contact us".
func walletErr(err error) error {
	switch {
	case errors.Is(err, wallet.ErrInsufficientBalance):
		return apperr.ConflictErr("Insufficient coins for this redemption.")
	case errors.Is(err, wallet.ErrNegativeBalance):
		return apperr.ConflictErr("Your wallet has a pending adjustment. Please contact support.")
	case errors.Is(err, wallet.ErrInvalidAmount),
		errors.Is(err, wallet.ErrMissingCustomer),
		errors.Is(err, wallet.ErrMissingOrder):
		return apperr.InvalidErr(err.Error(), nil)
	case errors.Is(err, gorm.ErrRecordNotFound):
		return apperr.NotFoundErr("Not found.")
	default:
		return apperr.Wrap(err)
	}
}
