package application

import (
	"context"
	"errors"
	"time"

	"github.com/coursaly/payment-reconciler/internal/audit"
	"github.com/coursaly/payment-reconciler/internal/transaction/domain"
)

var (
	ErrNotFound          = errors.New("no matching transaction")
	ErrNoGatewayConfig   = errors.New("no active gateway configuration")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Reference is the pair of identifiers a gateway event may carry: our own
// transaction_id (echoed metadata) and the provider-assigned reference.
// Either may be empty, not both.
type Reference struct {
	TransactionID string
	GatewayRef    string
}

func (r Reference) Empty() bool {
	return r.TransactionID == "" && r.GatewayRef == ""
}

// Transition is the outcome of a compare-and-set against one transaction
// row. Applied is false when the row was already settled, in which case
// Status carries the status the concurrent winner wrote.
type Transition struct {
	Applied bool
	Status  domain.Status
}

type CompleteParams struct {
	ID                   int64
	GatewayTransactionID string
	GatewayStatus        string
	GatewayResponse      []byte
	PaidAt               time.Time
}

type TransactionRepository interface {
	Insert(ctx context.Context, tx domain.Transaction) (domain.Transaction, error)
	FindByTransactionID(ctx context.Context, transactionID string) (domain.Transaction, error)
	FindPending(ctx context.Context, ref Reference, environmentID int64) (domain.Transaction, error)
	FindPendingAnyEnvironment(ctx context.Context, ref Reference) (domain.Transaction, error)
	FindSettled(ctx context.Context, ref Reference, environmentID int64) (domain.Transaction, error)
	FindSettledAnyEnvironment(ctx context.Context, ref Reference) (domain.Transaction, error)

	// Complete flips pending -> completed and, inside the same database
	// transaction, marks a linked payment completed, renews its
	// subscription, and queues an OrderCompleted outbox row when the
	// transaction references an order.
	Complete(ctx context.Context, p CompleteParams) (Transition, error)
	MarkFailed(ctx context.Context, id int64, gatewayStatus string, gatewayResponse []byte) (Transition, error)
	MarkCancelled(ctx context.Context, id int64, gatewayStatus string, gatewayResponse []byte) (Transition, error)
	UpdateStatus(ctx context.Context, transactionID string, from, to domain.Status) error
}

type SettingsRepository interface {
	FindActive(ctx context.Context, environmentID int64, gateway string) (domain.GatewaySetting, error)
}

type CommissionService interface {
	Create(ctx context.Context, tx domain.Transaction) error
}

type AuditLog interface {
	Open(ctx context.Context, e audit.Entry) (int64, error)
	Close(ctx context.Context, id int64, status audit.Status, entityType, entityID, note string) error
	Get(ctx context.Context, id int64) (audit.Entry, error)
}

// DeliveryDedup short-circuits duplicate webhook deliveries before any
// database work. Keys are marked only after a delivery reached an
// outcome, so a processing error leaves the provider's retry free to
// reprocess. It is an optimization only; the row-level compare-and-set
// in the repository is the correctness guarantee.
type DeliveryDedup interface {
	Seen(ctx context.Context, key string) (bool, error)
	Mark(ctx context.Context, key string) error
}
