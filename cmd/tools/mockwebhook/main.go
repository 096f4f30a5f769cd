package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"merukart.com/app/internal/modules/payments"
)

type webhookPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentRef  string `json:"payment_ref"`
		RefundRef   string `json:"refund_ref"`
		AmountMinor int64  `json:"amount_minor"`
		Currency    string `json:"currency"`
	} `json:"data"`
}

func main() {
	url := flag.String("url", "http://localhost:8080/webhooks/mock", "Webhook URL")
	secret := flag.String("secret", os.Getenv("MOCK_WEBHOOK_SECRET"), "Webhook secret")
	eventID := flag.String("event-id", "evt_"+randomHex(8), "Event ID")
	eventType := flag.String("type", payments.EventPaymentCaptured, "Event type (payment.captured, payment.failed, refund.processed)")
	paymentRef := flag.String("payment-ref", "pay_"+randomHex(8), "Gateway payment ref")
	refundRef := flag.String("refund-ref", "", "Gateway refund ref (for refund events)")
	amount := flag.Int64("amount", 10000, "Amount in minor units (paise)")
	currency := flag.String("currency", "INR", "Currency")
	dryRun := flag.Bool("dry-run", false, "Only print signature header, don't send")

	flag.Parse()

	if *secret == "" {
		fmt.Fprintf(os.Stderr, "Error: secret not provided and MOCK_WEBHOOK_SECRET not set\n")
		os.Exit(1)
	}

	payload := webhookPayload{
		ID:   *eventID,
		Type: *eventType,
	}
	payload.Data.PaymentRef = *paymentRef
	payload.Data.RefundRef = *refundRef
	payload.Data.AmountMinor = *amount
	payload.Data.Currency = *currency

	body, err := json.Marshal(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error marshaling payload: %v\n", err)
		os.Exit(1)
	}

	t := time.Now().Unix()
	sig := payments.ComputeSignature([]byte(*secret), t, body)
	sigHeader := "t=" + strconv.FormatInt(t, 10) + ",v1=" + sig

	if *dryRun {
		fmt.Printf("X-Mock-Signature: %s\n", sigHeader)
		fmt.Printf("Body: %s\n", string(body))
		return
	}

	req, err := http.NewRequest(http.MethodPost, *url, bytes.NewReader(body))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating request: %v\n", err)
		os.Exit(1)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Mock-Signature", sigHeader)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error sending request: %v\n", err)
		os.Exit(1)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)
	fmt.Printf("Status: %d\n", resp.StatusCode)
	fmt.Printf("Response: %s\n", string(respBody))

	if resp.StatusCode != http.StatusOK {
		os.Exit(1)
	}
}

func randomHex(n int) string {
	const digits = "0123456789abcdef"
	b := make([]byte, n)
	for i := range b {
		b[i] = digits[rand.Intn(len(digits))]
	}
	return string(b)
}
