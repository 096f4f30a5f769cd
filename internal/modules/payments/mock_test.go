package payments

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signedHeaders(t *testing.T, secret string, ts int64, body []byte) http.Header {
	t.Helper()
	sig := ComputeSignature([]byte(secret), ts, body)
	h := http.Header{}
	h.Set("X-Mock-Signature", "t="+strconv.FormatInt(ts, 10)+",v1="+sig)
	return h
}

func mockBody(t *testing.T) []byte {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"id":   "evt_1",
		"type": EventPaymentCaptured,
		"data": map[string]any{
			"payment_ref":  "pay_1",
			"amount_minor": 10000,
			"currency":     "INR",
		},
	})
	require.NoError(t, err)
	return body
}

func TestMockGateway_VerifyAndParseWebhook(t *testing.T) {
	g := NewMockGateway("whsec_test")
	body := mockBody(t)

	ev, err := g.VerifyAndParseWebhook(signedHeaders(t, "whsec_test", time.Now().Unix(), body), body)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", ev.EventID)
	assert.Equal(t, EventPaymentCaptured, ev.Type)
	assert.Equal(t, "pay_1", ev.PaymentRef)
	assert.Equal(t, int64(10000), ev.Amount)
	assert.Equal(t, "INR", ev.Currency)
}

func TestMockGateway_RejectsBadSignature(t *testing.T) {
	g := NewMockGateway("whsec_test")
	body := mockBody(t)

	_, err := g.VerifyAndParseWebhook(signedHeaders(t, "wrong-secret", time.Now().Unix(), body), body)
	assert.ErrorIs(t, err, errBadSignature)

	_, err = g.VerifyAndParseWebhook(http.Header{}, body)
	assert.ErrorIs(t, err, errBadSignature)
}

func TestMockGateway_RejectsTamperedBody(t *testing.T) {
	g := NewMockGateway("whsec_test")
	body := mockBody(t)
	headers := signedHeaders(t, "whsec_test", time.Now().Unix(), body)

	tampered := append([]byte{}, body...)
	tampered[len(tampered)-2] = 'X'

	_, err := g.VerifyAndParseWebhook(headers, tampered)
	assert.ErrorIs(t, err, errBadSignature)
}

func TestMockGateway_RejectsStaleTimestamp(t *testing.T) {
	g := NewMockGateway("whsec_test")
	body := mockBody(t)
	stale := time.Now().Add(-10 * time.Minute).Unix()

	_, err := g.VerifyAndParseWebhook(signedHeaders(t, "whsec_test", stale, body), body)
	assert.ErrorIs(t, err, errStaleEvent)
}

func TestMockGateway_RejectsMissingEventFields(t *testing.T) {
	g := NewMockGateway("whsec_test")
	body := []byte(`{"data":{}}`)

	_, err := g.VerifyAndParseWebhook(signedHeaders(t, "whsec_test", time.Now().Unix(), body), body)
	assert.Error(t, err)
}
