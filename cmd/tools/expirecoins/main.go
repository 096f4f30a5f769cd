package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"log/slog"

	"github.com/joho/godotenv"

	"merukart.com/app/internal/database"
	"merukart.com/app/internal/modules/wallet"
)

func main() {
	limit := flag.Int("limit", 500, "Max expired earns per batch")
	loop := flag.Bool("loop", false, "Keep sweeping until no work remains")
	flag.Parse()

	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := database.Open(dsn)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	svc := wallet.NewService(db)
	svc.SetLogger(logger)

	ctx := context.Background()
	totalApplied, totalErrs := 0, 0

	for {
		items, err := svc.ExpireEarnedCoins(ctx, *limit)
		if err != nil {
			log.Fatalf("listing expired earns failed: %v", err)
		}
		if len(items) == 0 {
			break
		}

		for _, it := range items {
			res, err := svc.ApplyExpiry(ctx, wallet.ApplyExpiryInput{
				EarnID:     it.EarnID,
				CustomerID: it.CustomerID,
				Amount:     it.Amount,
			})
			if err != nil {
				totalErrs++
				logger.Error("expiry apply failed", "earn_id", it.EarnID, "err", err)
				continue
			}
			if res.Applied {
				totalApplied++
			}
		}

		if !*loop {
			break
		}
	}

	fmt.Printf("expired earns applied: %d\n", totalApplied)
	fmt.Printf("errors:                %d\n", totalErrs)

	if totalErrs > 0 {
		os.Exit(1)
	}
}
