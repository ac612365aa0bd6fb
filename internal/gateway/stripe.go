package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// stripeTolerance bounds how old a signed timestamp may be before the
// delivery is rejected as a possible replay.
const stripeTolerance = 5 * time.Minute

type Stripe struct{}

func (Stripe) Code() string { return "stripe" }

type stripeEvent struct {
	ID   string `json:"id"`
	Type string `json:"type"`
	Data struct {
		Object struct {
			ID       string            `json:"id"`
			Status   string            `json:"status"`
			Metadata map[string]string `json:"metadata"`
		} `json:"object"`
	} `json:"data"`
}

func (Stripe) ParseEvent(body []byte, _ http.Header) (Event, error) {
	var ev stripeEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		return Event{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event id or type", ErrMalformed)
	}

	outcome := OutcomeUnknown
	switch ev.Type {
	case "payment_intent.succeeded", "checkout.session.completed":
		outcome = OutcomeSuccess
	case "payment_intent.payment_failed":
		outcome = OutcomeFailure
	case "payment_intent.canceled", "checkout.session.expired":
		outcome = OutcomeCancelled
	}

	return Event{
		Gateway:       "stripe",
		EventID:       ev.ID,
		TransactionID: ev.Data.Object.Metadata["transaction_id"],
		GatewayRef:    ev.Data.Object.ID,
		Outcome:       outcome,
		GatewayStatus: ev.Type,
		Raw:           body,
	}, nil
}

// VerifySignature checks the Stripe-Signature header: a signed timestamp
// and an HMAC-SHA256 of "<timestamp>.<body>" under the webhook secret.
func (Stripe) VerifySignature(body []byte, header http.Header, creds map[string]string) error {
	secret := creds["webhook_secret"]
	if secret == "" {
		return fmt.Errorf("%w: no webhook secret configured", ErrSignature)
	}
	sig := header.Get("Stripe-Signature")
	if sig == "" {
		return fmt.Errorf("%w: missing Stripe-Signature header", ErrSignature)
	}

	var ts string
	var candidates []string
	for _, part := range strings.Split(sig, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			ts = v
		case "v1":
			candidates = append(candidates, v)
		}
	}
	if ts == "" || len(candidates) == 0 {
		return fmt.Errorf("%w: malformed Stripe-Signature header", ErrSignature)
	}

	unix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("%w: bad timestamp in signature", ErrSignature)
	}
	if age := time.Since(time.Unix(unix, 0)); age > stripeTolerance || age < -stripeTolerance {
		return fmt.Errorf("%w: signed timestamp outside tolerance", ErrSignature)
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	for _, c := range candidates {
		if hmac.Equal([]byte(expected), []byte(c)) {
			return nil
		}
	}
	return fmt.Errorf("%w: no matching v1 signature", ErrSignature)
}
