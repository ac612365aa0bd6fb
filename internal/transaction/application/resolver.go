package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/coursaly/payment-reconciler/internal/transaction/domain"
)

// Resolver maps a gateway reference to exactly one transaction. Lookups
// are tenant-scoped first; a cross-tenant match is accepted only when the
// transaction was created with ScopeGlobal (platform-level subscription
// purchases). Settled transactions are a last fallback so redelivered
// notifications resolve without reprocessing.
type Resolver struct {
	log  *slog.Logger
	repo TransactionRepository
}

func NewResolver(log *slog.Logger, repo TransactionRepository) *Resolver {
	return &Resolver{log: log, repo: repo}
}

func (r *Resolver) Resolve(ctx context.Context, ref Reference, environmentID int64) (domain.Transaction, error) {
	if ref.Empty() {
		return domain.Transaction{}, fmt.Errorf("%w: empty reference", ErrNotFound)
	}

	tx, err := r.repo.FindPending(ctx, ref, environmentID)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Transaction{}, err
	}

	tx, err = r.repo.FindPendingAnyEnvironment(ctx, ref)
	if err == nil {
		if tx.Scope == domain.ScopeGlobal {
			r.log.Info("resolved cross-tenant transaction",
				"transaction_id", tx.TransactionID, "owner_env", tx.EnvironmentID, "request_env", environmentID)
			return tx, nil
		}
		// A tenant-scoped row in another environment must never leak.
		return domain.Transaction{}, ErrNotFound
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Transaction{}, err
	}

	tx, err = r.repo.FindSettled(ctx, ref, environmentID)
	if err == nil {
		return tx, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return domain.Transaction{}, err
	}

	tx, err = r.repo.FindSettledAnyEnvironment(ctx, ref)
	if err == nil && tx.Scope == domain.ScopeGlobal {
		return tx, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return domain.Transaction{}, err
	}
	return domain.Transaction{}, ErrNotFound
}
