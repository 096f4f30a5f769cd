package main

import (
	"log"
	"os"
	"strconv"

	"log/slog"

	"github.com/joho/godotenv"

	"merukart.com/app/internal/database"
	apphttp "merukart.com/app/internal/http"
	"merukart.com/app/internal/modules/payments"
	"merukart.com/app/internal/modules/recon"
	"merukart.com/app/internal/modules/wallet"
)

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := database.Open(dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	secret := os.Getenv("MOCK_WEBHOOK_SECRET")
	if secret == "" {
		log.Fatal("MOCK_WEBHOOK_SECRET environment variable is required")
	}

	walletSvc := wallet.NewService(db)
	walletSvc.SetLogger(logger)

	reconSvc := recon.NewService(db)
	reconSvc.SetLogger(logger)

	webhookSvc := payments.NewWebhookService(db, walletSvc, reconSvc,
		envFloat("REWARD_PERCENT", 5),
		envInt("COIN_EXPIRY_DAYS", 365),
	)
	webhookSvc.SetLogger(logger)

	r := apphttp.NewRouter(apphttp.RouterDeps{
		Logger:     logger,
		Provider:   payments.NewMockGateway(secret),
		Wallet:     walletSvc,
		Recon:      reconSvc,
		WebhookSvc: webhookSvc,
	})

	addr := os.Getenv("ADDR")
	if addr == "" {
		addr = ":8080"
	}
	_ = r.Run(addr)
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
