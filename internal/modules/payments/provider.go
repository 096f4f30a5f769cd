package payments

import "net/http"

const (
	EventPaymentCaptured = "payment.captured"
	EventPaymentFailed   = "payment.failed"
	EventRefundProcessed = "refund.processed"
)

// WebhookEvent is a gateway confirmation after signature verification.
// Amounts are minor units; converting from whatever the gateway speaks is
// the provider adapter's job.
type WebhookEvent struct {
	EventID string
	Type    string // payment.captured|payment.failed|refund.processed

	PaymentRef string // gateway payment id
	RefundRef  string // gateway refund id (refund events)

	Amount   int64 // minor units
	Currency string
}

// Provider adapts one payment gateway. The engine trusts that the adapter
// verified authenticity before handing over an event.
type Provider interface {
	Name() string

	// VerifyAndParseWebhook checks the signature and decodes the event.
	VerifyAndParseWebhook(headers http.Header, body []byte) (WebhookEvent, error)
}
