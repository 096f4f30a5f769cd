package http

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"merukart.com/app/internal/http/handlers"
	"merukart.com/app/internal/http/middleware"
	"merukart.com/app/internal/modules/payments"
	"merukart.com/app/internal/modules/recon"
	"merukart.com/app/internal/modules/wallet"
)

type RouterDeps struct {
	Logger     *slog.Logger
	Provider   payments.Provider
	Wallet     *wallet.Service
	Recon      *recon.Service
	WebhookSvc *payments.WebhookService
}

func NewRouter(deps RouterDeps) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(deps.Logger))
	r.Use(middleware.Recovery(deps.Logger))
	r.Use(middleware.ErrorHandler(deps.Logger))

	wh := handlers.NewWebhookHandler(deps.Logger, deps.Provider, deps.WebhookSvc)
	r.POST("/webhooks/:provider", wh.Handle)

	wlh := handlers.NewWalletHandler(deps.Wallet)
	api := r.Group("/api")
	{
		api.GET("/wallet/:customer_id", wlh.Snapshot)
		api.POST("/wallet/:customer_id/spend", wlh.Spend)
		api.GET("/wallet/:customer_id/spends/:reference_id", wlh.SpendByReference)
	}

	admin := handlers.NewAdminHandler(deps.Wallet, deps.Recon)
	adminAPI := api.Group("/admin")
	{
		adminAPI.POST("/wallet/:customer_id/adjust", admin.Adjust)
		adminAPI.POST("/reconcile", admin.Reconcile)
		adminAPI.POST("/coins/expire", admin.ExpireCoins)
	}

	return r
}
