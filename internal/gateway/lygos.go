package gateway

import (
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type Lygos struct{}

func (Lygos) Code() string { return "lygos" }

type lygosEvent struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
}

func (Lygos) ParseEvent(body []byte, _ http.Header) (Event, error) {
	var ev lygosEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.OrderID == "" {
		return Event{}, fmt.Errorf("%w: missing order_id", ErrMalformed)
	}

	outcome := OutcomeUnknown
	switch strings.ToLower(ev.Status) {
	case "success", "successful":
		outcome = OutcomeSuccess
	case "failed", "failure":
		outcome = OutcomeFailure
	case "cancelled", "canceled":
		outcome = OutcomeCancelled
	}

	// Lygos carries our checkout reference in order_id and assigns no
	// event id of its own.
	return Event{
		Gateway:       "lygos",
		EventID:       bodyDigest(body),
		TransactionID: ev.OrderID,
		Outcome:       outcome,
		GatewayStatus: ev.Status,
		Raw:           body,
	}, nil
}

func (Lygos) VerifySignature(_ []byte, header http.Header, creds map[string]string) error {
	key := creds["api_key"]
	if key == "" {
		return fmt.Errorf("%w: no api key configured", ErrSignature)
	}
	got := header.Get("Api-Key")
	if got == "" || !hmac.Equal([]byte(key), []byte(got)) {
		return fmt.Errorf("%w: api key mismatch", ErrSignature)
	}
	return nil
}
