package main

import (
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"merukart.com/app/internal/database"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	// the DDL below is one multi-statement batch
	db, err := database.Open(withMultiStatements(dsn))
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB: %v", err)
	}

	sql := `
	CREATE TABLE IF NOT EXISTS wallet_accounts (
	  customer_id CHAR(36) NOT NULL,
	  actual_balance BIGINT NOT NULL DEFAULT 0,
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (customer_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS wallet_ledger (
	  id BIGINT UNSIGNED NOT NULL AUTO_INCREMENT,
	  customer_id CHAR(36) NOT NULL,
	  order_id CHAR(36) NULL,
	  type VARCHAR(16) NOT NULL,
	  amount BIGINT NOT NULL,
	  reference_id VARCHAR(128) NULL,
	  idempotency_key VARCHAR(64) NULL,
	  metadata JSON NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_wallet_ledger_customer (customer_id),
	  KEY ix_wallet_ledger_order (order_id),
	  KEY ix_wallet_ledger_reference (reference_id),
	  UNIQUE KEY ux_wallet_ledger_idem (idempotency_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS payments (
	  id CHAR(36) NOT NULL,
	  order_id CHAR(36) NOT NULL,
	  gateway VARCHAR(64) NOT NULL,
	  gateway_payment_id VARCHAR(128) NULL,
	  gateway_order_id VARCHAR(128) NULL,
	  status VARCHAR(32) NOT NULL,
	  amount BIGINT NOT NULL,
	  currency CHAR(3) NOT NULL,
	  idempotency_key VARCHAR(64) NOT NULL,
	  error_message VARCHAR(255) NULL,
	  captured_at DATETIME(3) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_payments_order_id (order_id),
	  KEY ix_payments_gateway_payment_id (gateway_payment_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS provider_events (
	  id CHAR(36) NOT NULL,
	  provider VARCHAR(64) NOT NULL,
	  event_id VARCHAR(128) NOT NULL,
	  event_type VARCHAR(64) NOT NULL,
	  payload_json JSON NOT NULL,
	  received_at DATETIME(3) NOT NULL,
	  processed_at DATETIME(3) NULL,
	  process_error VARCHAR(255) NULL,
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_provider_events_provider_event (provider, event_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS order_transactions (
	  id CHAR(36) NOT NULL,
	  order_id CHAR(36) NOT NULL,
	  version INT NOT NULL DEFAULT 1,
	  amount BIGINT NOT NULL,
	  raw_amount JSON NULL,
	  currency_code CHAR(3) NOT NULL,
	  reference VARCHAR(32) NOT NULL,
	  reference_id VARCHAR(128) NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_order_tx_order_ref (order_id, reference_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;

	CREATE TABLE IF NOT EXISTS order_summaries (
	  order_id CHAR(36) NOT NULL,
	  totals JSON NOT NULL,
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (order_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
	`

	if _, err := sqlDB.Exec(sql); err != nil {
		log.Fatalf("Failed to create tables: %v", err)
	}

	log.Println("✓ wallet_accounts table created successfully")
	log.Println("✓ wallet_ledger table created successfully")
	log.Println("✓ payments table created successfully")
	log.Println("✓ provider_events table created successfully")
	log.Println("✓ order_transactions table created successfully")
	log.Println("✓ order_summaries table created successfully")
}

func withMultiStatements(dsn string) string {
	if strings.Contains(dsn, "multiStatements=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "multiStatements=true"
}
