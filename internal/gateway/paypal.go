package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
)

type PayPal struct{}

func (PayPal) Code() string { return "paypal" }

type paypalEvent struct {
	ID        string `json:"id"`
	EventType string `json:"event_type"`
	Resource  struct {
		ID       string `json:"id"`
		Status   string `json:"status"`
		CustomID string `json:"custom_id"`
	} `json:"resource"`
}

func (PayPal) ParseEvent(body []byte, _ http.Header) (Event, error) {
	var ev paypalEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.ID == "" || ev.EventType == "" {
		return Event{}, fmt.Errorf("%w: missing event id or type", ErrMalformed)
	}

	outcome := OutcomeUnknown
	switch ev.EventType {
	case "PAYMENT.CAPTURE.COMPLETED":
		outcome = OutcomeSuccess
	case "PAYMENT.CAPTURE.DENIED", "PAYMENT.CAPTURE.DECLINED":
		outcome = OutcomeFailure
	case "CHECKOUT.ORDER.VOIDED":
		outcome = OutcomeCancelled
	}

	return Event{
		Gateway:       "paypal",
		EventID:       ev.ID,
		TransactionID: ev.Resource.CustomID,
		GatewayRef:    ev.Resource.ID,
		Outcome:       outcome,
		GatewayStatus: ev.EventType,
		Raw:           body,
	}, nil
}

// VerifySignature checks the transmission headers against an HMAC of
// "<transmission-id>|<transmission-time>|<sha256(body)>" under the
// configured webhook secret.
func (PayPal) VerifySignature(body []byte, header http.Header, creds map[string]string) error {
	secret := creds["webhook_secret"]
	if secret == "" {
		return fmt.Errorf("%w: no webhook secret configured", ErrSignature)
	}
	id := header.Get("Paypal-Transmission-Id")
	ts := header.Get("Paypal-Transmission-Time")
	sig := header.Get("Paypal-Transmission-Sig")
	if id == "" || ts == "" || sig == "" {
		return fmt.Errorf("%w: missing transmission headers", ErrSignature)
	}

	digest := sha256.Sum256(body)
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%s|%s|%s", id, ts, hex.EncodeToString(digest[:]))
	expected := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(expected), []byte(sig)) {
		return fmt.Errorf("%w: transmission signature mismatch", ErrSignature)
	}
	return nil
}
