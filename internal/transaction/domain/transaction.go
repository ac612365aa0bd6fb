package domain

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending           Status = "pending"
	StatusProcessing        Status = "processing"
	StatusCompleted         Status = "completed"
	StatusFailed            Status = "failed"
	StatusCancelled         Status = "cancelled"
	StatusRefunded          Status = "refunded"
	StatusPartiallyRefunded Status = "partially_refunded"
)

// Scope controls whether a transaction may be resolved across tenant
// boundaries. Platform-level subscription purchases are created as
// ScopeGlobal; everything else stays ScopeTenant.
type Scope string

const (
	ScopeTenant Scope = "tenant"
	ScopeGlobal Scope = "global"
)

type Transaction struct {
	ID                   int64
	TransactionID        string
	EnvironmentID        int64
	Scope                Scope
	Gateway              string
	OrderID              *int64
	CustomerName         string
	CustomerEmail        string
	AmountCents          int64
	FeeCents             int64
	TaxCents             int64
	TotalCents           int64
	Currency             string
	Status               Status
	GatewayTransactionID *string
	GatewayStatus        string
	GatewayResponse      []byte
	PaidAt               *time.Time
	RefundedAt           *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

// New builds a pending transaction. TotalCents is always derived, never
// accepted from the caller.
func New(environmentID int64, scope Scope, gateway string, amount, fee, tax int64, currency string) Transaction {
	now := time.Now().UTC()
	return Transaction{
		TransactionID: uuid.New().String(),
		EnvironmentID: environmentID,
		Scope:         scope,
		Gateway:       gateway,
		AmountCents:   amount,
		FeeCents:      fee,
		TaxCents:      tax,
		TotalCents:    amount + fee + tax,
		Currency:      currency,
		Status:        StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Settled reports whether the gateway-driven state machine is done with
// this transaction. Refund states are settled too: they are only
// reachable from a settled state.
func (s Status) Settled() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusRefunded, StatusPartiallyRefunded:
		return true
	}
	return false
}

// CanTransition reports whether the state machine allows from -> to.
// Gateway events drive pending into a settled state; refunds are an
// administrative transition out of completed or failed.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled || to == StatusProcessing
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed || to == StatusCancelled
	case StatusCompleted, StatusFailed:
		return to == StatusRefunded || to == StatusPartiallyRefunded
	case StatusPartiallyRefunded:
		return to == StatusRefunded
	}
	return false
}

// RefundStatus reports whether to is one of the admin-only refund states.
func RefundStatus(to Status) bool {
	return to == StatusRefunded || to == StatusPartiallyRefunded
}

type GatewaySetting struct {
	ID            int64
	EnvironmentID int64
	Gateway       string
	Credentials   map[string]string
	Active        bool
	Centralized   bool
}
