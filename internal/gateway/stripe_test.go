package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stripeBody(eventType string) []byte {
	return []byte(fmt.Sprintf(`{
		"id": "evt_1ABC",
		"type": %q,
		"data": {"object": {"id": "pi_123", "status": "succeeded", "metadata": {"transaction_id": "42"}}}
	}`, eventType))
}

func signStripe(t *testing.T, secret string, body []byte, ts time.Time) string {
	t.Helper()
	unix := strconv.FormatInt(ts.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(unix + "."))
	mac.Write(body)
	return fmt.Sprintf("t=%s,v1=%s", unix, hex.EncodeToString(mac.Sum(nil)))
}

func TestStripeParseEvent(t *testing.T) {
	cases := []struct {
		eventType string
		want      Outcome
	}{
		{"payment_intent.succeeded", OutcomeSuccess},
		{"checkout.session.completed", OutcomeSuccess},
		{"payment_intent.payment_failed", OutcomeFailure},
		{"payment_intent.canceled", OutcomeCancelled},
		{"charge.dispute.created", OutcomeUnknown},
	}
	for _, tc := range cases {
		ev, err := Stripe{}.ParseEvent(stripeBody(tc.eventType), nil)
		require.NoError(t, err, tc.eventType)
		assert.Equal(t, tc.want, ev.Outcome, tc.eventType)
		assert.Equal(t, "evt_1ABC", ev.EventID)
		assert.Equal(t, "42", ev.TransactionID)
		assert.Equal(t, "pi_123", ev.GatewayRef)
		assert.Equal(t, tc.eventType, ev.GatewayStatus)
	}
}

func TestStripeParseEventMalformed(t *testing.T) {
	_, err := Stripe{}.ParseEvent([]byte(`{not json`), nil)
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = Stripe{}.ParseEvent([]byte(`{"id":"","type":""}`), nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestStripeVerifySignature(t *testing.T) {
	body := stripeBody("payment_intent.succeeded")
	creds := map[string]string{"webhook_secret": "whsec_test"}

	header := http.Header{}
	header.Set("Stripe-Signature", signStripe(t, "whsec_test", body, time.Now()))
	assert.NoError(t, Stripe{}.VerifySignature(body, header, creds))

	header.Set("Stripe-Signature", signStripe(t, "whsec_wrong", body, time.Now()))
	assert.ErrorIs(t, Stripe{}.VerifySignature(body, header, creds), ErrSignature)

	// Stale timestamps are rejected even with a valid mac.
	header.Set("Stripe-Signature", signStripe(t, "whsec_test", body, time.Now().Add(-time.Hour)))
	assert.ErrorIs(t, Stripe{}.VerifySignature(body, header, creds), ErrSignature)

	header.Del("Stripe-Signature")
	assert.ErrorIs(t, Stripe{}.VerifySignature(body, header, creds), ErrSignature)

	// A missing secret must fail closed, never default-allow.
	header.Set("Stripe-Signature", signStripe(t, "whsec_test", body, time.Now()))
	assert.ErrorIs(t, Stripe{}.VerifySignature(body, header, map[string]string{}), ErrSignature)
}
