package gateway

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Callback normalizes the audited query string of a browser redirect so
// those audit rows can go through the replay path. Live callbacks are
// handled by the HTTP layer directly; this adapter only exists for
// replay. A cancelled status maps to OutcomeUnknown on purpose: a
// cancelled redirect never settles the row, and neither may its replay.
type Callback struct{}

func (Callback) Code() string { return "callback" }

func (Callback) ParseEvent(body []byte, _ http.Header) (Event, error) {
	values, err := url.ParseQuery(string(body))
	if err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	ref := values.Get("transaction_id")
	if ref == "" {
		ref = values.Get("payment_ref")
	}
	if ref == "" {
		ref = values.Get("order_id")
	}
	if ref == "" {
		return Event{}, fmt.Errorf("%w: no transaction reference", ErrMalformed)
	}

	status := values.Get("status")
	outcome := OutcomeUnknown
	switch strings.ToLower(status) {
	case "success", "successful", "1":
		outcome = OutcomeSuccess
	case "failed", "failure", "0":
		outcome = OutcomeFailure
	}

	return Event{
		Gateway:       "callback",
		EventID:       bodyDigest(body),
		TransactionID: ref,
		Outcome:       outcome,
		GatewayStatus: "callback:" + status,
		Raw:           body,
	}, nil
}

// VerifySignature always fails: redirects carry no signature, and the
// webhook endpoint must never accept a POST under this code.
func (Callback) VerifySignature(_ []byte, _ http.Header, _ map[string]string) error {
	return fmt.Errorf("%w: callbacks are not signed", ErrSignature)
}
