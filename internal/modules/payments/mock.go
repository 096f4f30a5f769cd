package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// MockGateway is the dev/test gateway. Webhooks are signed with
// HMAC-SHA256 over "<unix-ts>.<body>", carried as
// "X-Mock-Signature: t=<unix-ts>,v1=<hex>". cmd/tools/mockwebhook produces
// matching requests.
type MockGateway struct {
	secret    []byte
	tolerance time.Duration
}

func NewMockGateway(secret string) *MockGateway {
	return &MockGateway{secret: []byte(secret), tolerance: 5 * time.Minute}
}

func (g *MockGateway) Name() string { return "mock" }

var (
	errBadSignature = errors.New("invalid webhook signature")
	errStaleEvent   = errors.New("webhook timestamp outside tolerance")
)

type mockPayload struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		PaymentRef  string `json:"payment_ref"`
		RefundRef   string `json:"refund_ref"`
		AmountMinor int64  `json:"amount_minor"`
		Currency    string `json:"currency"`
	} `json:"data"`
}

func (g *MockGateway) VerifyAndParseWebhook(headers http.Header, body []byte) (WebhookEvent, error) {
	t, sig, err := parseSignatureHeader(headers.Get("X-Mock-Signature"))
	if err != nil {
		return WebhookEvent{}, err
	}

	if g.tolerance > 0 {
		age := time.Since(time.Unix(t, 0))
		if age > g.tolerance || age < -g.tolerance {
			return WebhookEvent{}, errStaleEvent
		}
	}

	expected := ComputeSignature(g.secret, t, body)
	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return WebhookEvent{}, errBadSignature
	}

	var p mockPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return WebhookEvent{}, err
	}
	if p.ID == "" || p.Type == "" {
		return WebhookEvent{}, errors.New("missing event id or type")
	}

	return WebhookEvent{
		EventID:    p.ID,
		Type:       p.Type,
		PaymentRef: p.Data.PaymentRef,
		RefundRef:  p.Data.RefundRef,
		Amount:     p.Data.AmountMinor,
		Currency:   p.Data.Currency,
	}, nil
}

// ComputeSignature is shared with the mockwebhook tool.
func ComputeSignature(secret []byte, t int64, body []byte) string {
	m := hmac.New(sha256.New, secret)
	m.Write([]byte(strconv.FormatInt(t, 10)))
	m.Write([]byte("."))
	m.Write(body)
	return hex.EncodeToString(m.Sum(nil))
}

func parseSignatureHeader(h string) (int64, string, error) {
	if h == "" {
		return 0, "", errBadSignature
	}
	var ts, sig string
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			sig = v
		}
	}
	if ts == "" || sig == "" {
		return 0, "", errBadSignature
	}
	t, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return 0, "", errBadSignature
	}
	return t, sig, nil
}
