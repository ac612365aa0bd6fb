package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLygosParseEvent(t *testing.T) {
	ev, err := Lygos{}.ParseEvent([]byte(`{"order_id":"ord-55","status":"success"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)
	assert.Equal(t, "ord-55", ev.TransactionID)
	assert.NotEmpty(t, ev.EventID)

	// Identical redeliveries hash to the same dedup key.
	ev2, err := Lygos{}.ParseEvent([]byte(`{"order_id":"ord-55","status":"success"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, ev.EventID, ev2.EventID)

	_, err = Lygos{}.ParseEvent([]byte(`{"status":"success"}`), nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestLygosVerifySignature(t *testing.T) {
	creds := map[string]string{"api_key": "lyg_key"}
	header := http.Header{}

	header.Set("Api-Key", "lyg_key")
	assert.NoError(t, Lygos{}.VerifySignature(nil, header, creds))

	header.Set("Api-Key", "other")
	assert.ErrorIs(t, Lygos{}.VerifySignature(nil, header, creds), ErrSignature)

	assert.ErrorIs(t, Lygos{}.VerifySignature(nil, http.Header{}, creds), ErrSignature)
	assert.ErrorIs(t, Lygos{}.VerifySignature(nil, header, map[string]string{}), ErrSignature)
}

func TestMonetbillParseEvent(t *testing.T) {
	body := []byte("payment_ref=ref-9&status=cancelled&transaction_id=mb-777")
	ev, err := Monetbill{}.ParseEvent(body, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, ev.Outcome)
	assert.Equal(t, "ref-9", ev.TransactionID)
	assert.Equal(t, "mb-777", ev.GatewayRef)

	ev, err = Monetbill{}.ParseEvent([]byte("payment_ref=ref-9&status=1"), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)

	ev, err = Monetbill{}.ParseEvent([]byte("payment_ref=ref-9&status=wat"), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, ev.Outcome)

	_, err = Monetbill{}.ParseEvent([]byte("status=success"), nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestMonetbillVerifySignature(t *testing.T) {
	body := []byte("payment_ref=ref-9&status=success")
	creds := map[string]string{"service_secret": "mb_secret"}

	mac := hmac.New(sha256.New, []byte("mb_secret"))
	mac.Write(body)

	header := http.Header{}
	header.Set("X-Monetbill-Sign", hex.EncodeToString(mac.Sum(nil)))
	assert.NoError(t, Monetbill{}.VerifySignature(body, header, creds))

	header.Set("X-Monetbill-Sign", "bad")
	assert.ErrorIs(t, Monetbill{}.VerifySignature(body, header, creds), ErrSignature)
}

func TestTaraMoneyParseEvent(t *testing.T) {
	body := []byte(`{"paymentId":"tm-1","status":"SUCCESS","metadata":{"transaction_id":"42"}}`)
	ev, err := TaraMoney{}.ParseEvent(body, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)
	assert.Equal(t, "42", ev.TransactionID)
	assert.Equal(t, "tm-1", ev.GatewayRef)

	ev, err = TaraMoney{}.ParseEvent([]byte(`{"paymentId":"tm-2","status":"CANCELLED"}`), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, ev.Outcome)

	_, err = TaraMoney{}.ParseEvent([]byte(`{"status":"SUCCESS"}`), nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTaraMoneyVerifySignature(t *testing.T) {
	creds := map[string]string{"api_token": "tara_token"}
	header := http.Header{}
	header.Set("X-Tara-Token", "tara_token")
	assert.NoError(t, TaraMoney{}.VerifySignature(nil, header, creds))

	header.Set("X-Tara-Token", "nope")
	assert.ErrorIs(t, TaraMoney{}.VerifySignature(nil, header, creds), ErrSignature)
}

func TestCallbackParseEvent(t *testing.T) {
	ev, err := Callback{}.ParseEvent([]byte("payment_ref=cb-1&status=success"), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, ev.Outcome)
	assert.Equal(t, "cb-1", ev.TransactionID)

	// Cancelled redirects never settle a row, so neither may a replay.
	ev, err = Callback{}.ParseEvent([]byte("transaction_id=cb-2&status=cancelled"), nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnknown, ev.Outcome)

	_, err = Callback{}.ParseEvent([]byte("status=success"), nil)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestCallbackVerifySignatureAlwaysFails(t *testing.T) {
	assert.ErrorIs(t, Callback{}.VerifySignature(nil, http.Header{}, map[string]string{"any": "thing"}), ErrSignature)
}

func TestRegistry(t *testing.T) {
	r := DefaultRegistry()
	for _, code := range []string{"stripe", "paypal", "lygos", "monetbill", "taramoney", "callback"} {
		a, err := r.Lookup(code)
		require.NoError(t, err, code)
		assert.Equal(t, code, a.Code())
	}
	_, err := r.Lookup("razorpay")
	assert.Error(t, err)
}
