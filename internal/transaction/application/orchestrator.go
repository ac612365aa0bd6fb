package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursaly/payment-reconciler/internal/gateway"
	"github.com/coursaly/payment-reconciler/internal/transaction/domain"
	"github.com/coursaly/payment-reconciler/pkg/metrics"
)

// Result classifies what one delivery did to the transaction.
type Result string

const (
	ResultApplied        Result = "applied"
	ResultAlreadySettled Result = "already_settled"
	ResultNoTransition   Result = "no_transition"
)

const commissionTimeout = 5 * time.Second

// Orchestrator applies a normalized gateway event to its transaction.
// The pending check and the status write happen inside one database
// transaction in the repository; duplicates lose the row lock race and
// come back as ResultAlreadySettled with no side effects.
type Orchestrator struct {
	log        *slog.Logger
	repo       TransactionRepository
	settings   SettingsRepository
	commission CommissionService
	resolver   *Resolver
}

func NewOrchestrator(log *slog.Logger, repo TransactionRepository, settings SettingsRepository, commission CommissionService) *Orchestrator {
	return &Orchestrator{
		log:        log,
		repo:       repo,
		settings:   settings,
		commission: commission,
		resolver:   NewResolver(log, repo),
	}
}

func (o *Orchestrator) Resolve(ctx context.Context, ref Reference, environmentID int64) (domain.Transaction, error) {
	return o.resolver.Resolve(ctx, ref, environmentID)
}

// Apply resolves the event's transaction and drives the state machine.
// ErrNotFound passes through; the transport layer decides how much of
// that to reveal.
func (o *Orchestrator) Apply(ctx context.Context, ev gateway.Event, environmentID int64) (domain.Transaction, Result, error) {
	ref := Reference{TransactionID: ev.TransactionID, GatewayRef: ev.GatewayRef}
	tx, err := o.resolver.Resolve(ctx, ref, environmentID)
	if err != nil {
		return domain.Transaction{}, "", err
	}

	if tx.Status.Settled() {
		o.log.Info("duplicate delivery for settled transaction",
			"transaction_id", tx.TransactionID, "status", tx.Status, "gateway", ev.Gateway)
		return tx, ResultAlreadySettled, nil
	}

	switch ev.Outcome {
	case gateway.OutcomeSuccess:
		return o.complete(ctx, tx, ev)
	case gateway.OutcomeFailure:
		return o.settle(ctx, tx, ev, domain.StatusFailed)
	case gateway.OutcomeCancelled:
		return o.settle(ctx, tx, ev, domain.StatusCancelled)
	default:
		o.log.Warn("unknown gateway status, no transition",
			"transaction_id", tx.TransactionID, "gateway", ev.Gateway, "gateway_status", ev.GatewayStatus)
		return tx, ResultNoTransition, nil
	}
}

func (o *Orchestrator) complete(ctx context.Context, tx domain.Transaction, ev gateway.Event) (domain.Transaction, Result, error) {
	res, err := o.repo.Complete(ctx, CompleteParams{
		ID:                   tx.ID,
		GatewayTransactionID: ev.GatewayRef,
		GatewayStatus:        ev.GatewayStatus,
		GatewayResponse:      ev.Raw,
		PaidAt:               time.Now().UTC(),
	})
	if err != nil {
		return domain.Transaction{}, "", err
	}
	tx.Status = res.Status
	if !res.Applied {
		return tx, ResultAlreadySettled, nil
	}
	metrics.TransitionsTotal.WithLabelValues(tx.Gateway, string(domain.StatusCompleted)).Inc()

	o.accrueCommission(ctx, tx)
	return tx, ResultApplied, nil
}

func (o *Orchestrator) settle(ctx context.Context, tx domain.Transaction, ev gateway.Event, to domain.Status) (domain.Transaction, Result, error) {
	var res Transition
	var err error
	if to == domain.StatusFailed {
		res, err = o.repo.MarkFailed(ctx, tx.ID, ev.GatewayStatus, ev.Raw)
	} else {
		res, err = o.repo.MarkCancelled(ctx, tx.ID, ev.GatewayStatus, ev.Raw)
	}
	if err != nil {
		return domain.Transaction{}, "", err
	}
	tx.Status = res.Status
	if !res.Applied {
		return tx, ResultAlreadySettled, nil
	}
	metrics.TransitionsTotal.WithLabelValues(tx.Gateway, string(to)).Inc()
	return tx, ResultApplied, nil
}

// accrueCommission is best effort: the transaction is already committed,
// so a commission failure is logged and never propagated.
func (o *Orchestrator) accrueCommission(ctx context.Context, tx domain.Transaction) {
	setting, err := o.settings.FindActive(ctx, tx.EnvironmentID, tx.Gateway)
	if err != nil {
		if !errors.Is(err, ErrNoGatewayConfig) {
			o.log.Error("gateway setting lookup failed", "transaction_id", tx.TransactionID, "err", err)
		}
		return
	}
	if !setting.Centralized {
		return
	}

	cctx, cancel := context.WithTimeout(ctx, commissionTimeout)
	defer cancel()
	if err := o.commission.Create(cctx, tx); err != nil {
		o.log.Error("commission accrual failed",
			"transaction_id", tx.TransactionID, "environment_id", tx.EnvironmentID, "err", err)
	}
}

// AdminUpdateStatus is the only path into the refund states. Gateway
// webhooks can never reach them.
func (o *Orchestrator) AdminUpdateStatus(ctx context.Context, transactionID string, to domain.Status) error {
	if !domain.RefundStatus(to) {
		return fmt.Errorf("%w: %s is not an administrative status", ErrInvalidTransition, to)
	}
	tx, err := o.repo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return err
	}
	if !domain.CanTransition(tx.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, tx.Status, to)
	}
	if err := o.repo.UpdateStatus(ctx, transactionID, tx.Status, to); err != nil {
		return err
	}
	metrics.TransitionsTotal.WithLabelValues(tx.Gateway, string(to)).Inc()
	o.log.Info("administrative status update", "transaction_id", transactionID, "from", tx.Status, "to", to)
	return nil
}
