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
	"merukart.com/app/internal/modules/recon"
)

func main() {
	limit := flag.Int("limit", 200, "How many recent orders to scan")
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

	svc := recon.NewService(db)
	svc.SetLogger(logger)

	report := svc.Run(context.Background(), *limit)

	fmt.Printf("orders analyzed:      %d\n", report.OrdersAnalyzed)
	fmt.Printf("transactions created: %d\n", report.TransactionsCreated)
	fmt.Printf("summaries fixed:      %d\n", report.SummariesFixed)
	fmt.Printf("already correct:      %d\n", report.AlreadyCorrect)
	fmt.Printf("errors:               %d\n", report.Errors)

	if report.Errors > 0 {
		os.Exit(1)
	}
}
