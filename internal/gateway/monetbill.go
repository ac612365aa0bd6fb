package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type Monetbill struct{}

func (Monetbill) Code() string { return "monetbill" }

// ParseEvent decodes Monetbill's url-encoded notification body. The
// provider echoes our payment_ref and carries its own transaction id.
func (Monetbill) ParseEvent(body []byte, _ http.Header) (Event, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ref := values.Get("payment_ref")
	if ref == "" {
		return Event{}, fmt.Errorf("%w: missing payment_ref", ErrMalformed)
	}

	status := values.Get("status")
	outcome := OutcomeUnknown
	switch strings.ToLower(status) {
	case "success", "1":
		outcome = OutcomeSuccess
	case "failure", "failed", "0":
		outcome = OutcomeFailure
	case "cancelled", "cancel":
		outcome = OutcomeCancelled
	}

	return Event{
		Gateway:       "monetbill",
		EventID:       bodyDigest(body),
		TransactionID: ref,
		GatewayRef:    values.Get("transaction_id"),
		Outcome:       outcome,
		GatewayStatus: status,
		Raw:           body,
	}, nil
}

func (Monetbill) VerifySignature(body []byte, header http.Header, creds map[string]string) error {
	secret := creds["service_secret"]
	if secret == "" {
		return fmt.Errorf("%w: no service secret configured", ErrSignature)
	}
	sig := header.Get("X-Monetbill-Sign")
	if sig == "" {
		return fmt.Errorf("%w: missing X-Monetbill-Sign header", ErrSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("%w: body signature mismatch", ErrSignature)
	}
	return nil
}
