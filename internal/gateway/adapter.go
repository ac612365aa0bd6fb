package gateway

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
)

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailure   Outcome = "failure"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeUnknown   Outcome = "unknown"
)

var (
	ErrMalformed = errors.New("malformed gateway payload")
	ErrSignature = errors.New("signature verification failed")
)

// Event is the normalized form of one gateway notification. TransactionID
// is our own reference when the provider echoes it back (metadata,
// custom_id); GatewayRef is the provider-assigned id. At least one of the
// two is set by every adapter.
type Event struct {
	Gateway       string
	EventID       string
	TransactionID string
	GatewayRef    string
	Outcome       Outcome
	GatewayStatus string
	Raw           []byte
}

// Adapter normalizes one provider's webhook payloads. VerifySignature
// must return ErrSignature (or a wrap of it) on any failed or missing
// check; there is no default-allow path.
type Adapter interface {
	Code() string
	ParseEvent(body []byte, header http.Header) (Event, error)
	VerifySignature(body []byte, header http.Header, creds map[string]string) error
}

// bodyDigest is the dedup key for providers that do not assign event ids.
// An identical redelivery hashes to the same key.
func bodyDigest(body []byte) string {
	sum := sha256.Sum256(body)
	return hex.EncodeToString(sum[:16])
}
