package audit

import (
	"errors"
	"time"
)

var ErrNotFound = errors.New("audit entry not found")

// Status is the lifecycle of one inbound notification record. Every entry
// opens as StatusReceived and is closed exactly once.
type Status string

const (
	StatusReceived Status = "received"
	StatusSuccess  Status = "success"
	StatusFailure  Status = "failure"
	StatusError    Status = "error"
)

// Entry is one inbound webhook or callback, recorded before any
// processing happens. The engine never redelivers; an operator replays
// from these rows.
type Entry struct {
	ID            int64
	Gateway       string
	EnvironmentID int64
	Payload       []byte
	Headers       map[string]string
	Status        Status
	EntityType    string
	EntityID      string
	Note          string
	ReceivedAt    time.Time
	ClosedAt      *time.Time
}
