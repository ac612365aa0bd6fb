package gateway

import (
	"crypto/hmac"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type TaraMoney struct{}

func (TaraMoney) Code() string { return "taramoney" }

type taraEvent struct {
	PaymentID string            `json:"paymentId"`
	Status    string            `json:"status"`
	Metadata  map[string]string `json:"metadata"`
}

func (TaraMoney) ParseEvent(body []byte, _ http.Header) (Event, error) {
	var ev taraEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.PaymentID == "" {
		return Event{}, fmt.Errorf("%w: missing paymentId", ErrMalformed)
	}

	outcome := OutcomeUnknown
	switch strings.ToUpper(ev.Status) {
	case "SUCCESS", "SUCCESSFUL":
		outcome = OutcomeSuccess
	case "FAILED", "FAILURE":
		outcome = OutcomeFailure
	case "CANCELLED", "CANCELED":
		outcome = OutcomeCancelled
	}

	return Event{
		Gateway:       "taramoney",
		EventID:       bodyDigest(body),
		TransactionID: ev.Metadata["transaction_id"],
		GatewayRef:    ev.PaymentID,
		Outcome:       outcome,
		GatewayStatus: ev.Status,
		Raw:           body,
	}, nil
}

func (TaraMoney) VerifySignature(_ []byte, header http.Header, creds map[string]string) error {
	token := creds["api_token"]
	if token == "" {
		return fmt.Errorf("%w: no api token configured", ErrSignature)
	}
	got := header.Get("X-Tara-Token")
	if got == "" || !hmac.Equal([]byte(token), []byte(got)) {
		return fmt.Errorf("%w: api token mismatch", ErrSignature)
	}
	return nil
}
