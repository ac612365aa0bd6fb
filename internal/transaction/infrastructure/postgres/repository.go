package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/coursaly/payment-reconciler/internal/transaction/application"
	"github.com/coursaly/payment-reconciler/internal/transaction/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const txColumns = `id, transaction_id, environment_id, scope, gateway, order_id,
	customer_name, customer_email, amount_cents, fee_cents, tax_cents, total_cents,
	currency, status, gateway_transaction_id, COALESCE(gateway_status,''), gateway_response,
	paid_at, refunded_at, created_at, updated_at`

type Repository struct {
	log  *slog.Logger
	pool *pgxpool.Pool
}

func NewRepository(log *slog.Logger, pool *pgxpool.Pool) *Repository {
	return &Repository{log: log, pool: pool}
}

func (r *Repository) Insert(ctx context.Context, t domain.Transaction) (domain.Transaction, error) {
	err := r.pool.QueryRow(ctx, `INSERT INTO transactions
		(transaction_id, environment_id, scope, gateway, order_id, customer_name, customer_email,
		 amount_cents, fee_cents, tax_cents, total_cents, currency, status, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		RETURNING id`,
		t.TransactionID, t.EnvironmentID, t.Scope, t.Gateway, t.OrderID, t.CustomerName, t.CustomerEmail,
		t.AmountCents, t.FeeCents, t.TaxCents, t.TotalCents, t.Currency, t.Status, t.CreatedAt, t.UpdatedAt).
		Scan(&t.ID)
	if err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}

func (r *Repository) FindByTransactionID(ctx context.Context, transactionID string) (domain.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions WHERE transaction_id=$1`, transactionID)
	return scanTransaction(row)
}

// Reference matching: webhooks carry either our transaction_id (echoed
// metadata) or the provider-assigned gateway_transaction_id; callbacks
// carry transaction_id. Empty sides of the pair never match.
const refMatch = `(($1 <> '' AND transaction_id = $1) OR ($2 <> '' AND gateway_transaction_id = $2))`

func (r *Repository) FindPending(ctx context.Context, ref application.Reference, environmentID int64) (domain.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE `+refMatch+` AND environment_id = $3 AND status = 'pending'
		ORDER BY id LIMIT 1`, ref.TransactionID, ref.GatewayRef, environmentID)
	return scanTransaction(row)
}

func (r *Repository) FindPendingAnyEnvironment(ctx context.Context, ref application.Reference) (domain.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE `+refMatch+` AND status = 'pending'
		ORDER BY id LIMIT 1`, ref.TransactionID, ref.GatewayRef)
	return scanTransaction(row)
}

func (r *Repository) FindSettled(ctx context.Context, ref application.Reference, environmentID int64) (domain.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE `+refMatch+` AND environment_id = $3 AND status = 'completed'
		ORDER BY id LIMIT 1`, ref.TransactionID, ref.GatewayRef, environmentID)
	return scanTransaction(row)
}

func (r *Repository) FindSettledAnyEnvironment(ctx context.Context, ref application.Reference) (domain.Transaction, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+txColumns+` FROM transactions
		WHERE `+refMatch+` AND status = 'completed'
		ORDER BY id LIMIT 1`, ref.TransactionID, ref.GatewayRef)
	return scanTransaction(row)
}

// Complete performs the pending -> completed compare-and-set and every
// owned-row side effect inside one database transaction: the row lock
// guarantees that concurrent duplicate deliveries settle the row exactly
// once, and the loser reads the winner's terminal status.
func (r *Repository) Complete(ctx context.Context, p application.CompleteParams) (application.Transition, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return application.Transition{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var (
		status        domain.Status
		transactionID string
		environmentID int64
		orderID       *int64
		amountCents   int64
		currency      string
	)
	err = tx.QueryRow(ctx, `SELECT status, transaction_id, environment_id, order_id, amount_cents, currency
		FROM transactions WHERE id=$1 FOR UPDATE`, p.ID).
		Scan(&status, &transactionID, &environmentID, &orderID, &amountCents, &currency)
	if errors.Is(err, pgx.ErrNoRows) {
		return application.Transition{}, application.ErrNotFound
	}
	if err != nil {
		return application.Transition{}, err
	}
	if status != domain.StatusPending && status != domain.StatusProcessing {
		return application.Transition{Applied: false, Status: status}, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `UPDATE transactions
		SET status='completed', gateway_transaction_id=COALESCE(NULLIF($2,''), gateway_transaction_id),
		    gateway_status=$3, gateway_response=$4, paid_at=$5, updated_at=$6
		WHERE id=$1`,
		p.ID, p.GatewayTransactionID, p.GatewayStatus, p.GatewayResponse, p.PaidAt, time.Now().UTC())
	if err != nil {
		return application.Transition{}, err
	}

	if err := r.completePaymentLocked(ctx, tx, transactionID); err != nil {
		return application.Transition{}, err
	}

	if orderID != nil {
		event := domain.OrderCompleted{
			OrderID:       *orderID,
			TransactionID: transactionID,
			EnvironmentID: environmentID,
			AmountCents:   amountCents,
			Currency:      currency,
			PaidAt:        p.PaidAt,
		}
		payload, err := json.Marshal(event)
		if err != nil {
			return application.Transition{}, err
		}
		_, err = tx.Exec(ctx, `INSERT INTO outbox (aggregate_type, aggregate_id, type, payload, status)
			VALUES ('transaction', $1, 'OrderCompleted', $2, 'pending')`, transactionID, payload)
		if err != nil {
			return application.Transition{}, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return application.Transition{}, err
	}
	return application.Transition{Applied: true, Status: domain.StatusCompleted}, nil
}

// completePaymentLocked marks a linked subscription payment completed and
// renews the subscription. A transaction with no payment row is a one-off
// purchase and this is a no-op.
func (r *Repository) completePaymentLocked(ctx context.Context, tx pgx.Tx, transactionID string) error {
	var (
		paymentID      int64
		subscriptionID int64
		cycle          domain.BillingCycle
	)
	err := tx.QueryRow(ctx, `SELECT p.id, p.subscription_id, s.billing_cycle
		FROM payments p JOIN subscriptions s ON s.id = p.subscription_id
		WHERE p.transaction_id = $1
		FOR UPDATE OF p, s`, transactionID).
		Scan(&paymentID, &subscriptionID, &cycle)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil
	}
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	renewed := domain.Subscription{BillingCycle: cycle}.Renew(now)

	if _, err := tx.Exec(ctx, `UPDATE payments SET status='completed', updated_at=$2 WHERE id=$1`, paymentID, now); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `UPDATE subscriptions SET status='active', next_payment_at=$2, ends_at=$3, updated_at=$4 WHERE id=$1`,
		subscriptionID, renewed.NextPaymentAt, renewed.EndsAt, now)
	return err
}

func (r *Repository) MarkFailed(ctx context.Context, id int64, gatewayStatus string, gatewayResponse []byte) (application.Transition, error) {
	return r.settle(ctx, id, domain.StatusFailed, gatewayStatus, gatewayResponse)
}

func (r *Repository) MarkCancelled(ctx context.Context, id int64, gatewayStatus string, gatewayResponse []byte) (application.Transition, error) {
	return r.settle(ctx, id, domain.StatusCancelled, gatewayStatus, gatewayResponse)
}

func (r *Repository) settle(ctx context.Context, id int64, to domain.Status, gatewayStatus string, gatewayResponse []byte) (application.Transition, error) {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return application.Transition{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	var status domain.Status
	err = tx.QueryRow(ctx, `SELECT status FROM transactions WHERE id=$1 FOR UPDATE`, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return application.Transition{}, application.ErrNotFound
	}
	if err != nil {
		return application.Transition{}, err
	}
	if status != domain.StatusPending && status != domain.StatusProcessing {
		return application.Transition{Applied: false, Status: status}, tx.Commit(ctx)
	}

	_, err = tx.Exec(ctx, `UPDATE transactions SET status=$2, gateway_status=$3, gateway_response=$4, updated_at=$5 WHERE id=$1`,
		id, to, gatewayStatus, gatewayResponse, time.Now().UTC())
	if err != nil {
		return application.Transition{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return application.Transition{}, err
	}
	return application.Transition{Applied: true, Status: to}, nil
}

// UpdateStatus is the administrative transition (refunds). The status
// predicate makes it a compare-and-set: zero rows means the transaction
// moved underneath the operator.
func (r *Repository) UpdateStatus(ctx context.Context, transactionID string, from, to domain.Status) error {
	var refundedAt *time.Time
	if domain.RefundStatus(to) {
		now := time.Now().UTC()
		refundedAt = &now
	}
	ct, err := r.pool.Exec(ctx, `UPDATE transactions
		SET status=$3, refunded_at=COALESCE($4, refunded_at), updated_at=$5
		WHERE transaction_id=$1 AND status=$2`,
		transactionID, from, to, refundedAt, time.Now().UTC())
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return application.ErrInvalidTransition
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.ID, &t.TransactionID, &t.EnvironmentID, &t.Scope, &t.Gateway, &t.OrderID,
		&t.CustomerName, &t.CustomerEmail, &t.AmountCents, &t.FeeCents, &t.TaxCents, &t.TotalCents,
		&t.Currency, &t.Status, &t.GatewayTransactionID, &t.GatewayStatus, &t.GatewayResponse,
		&t.PaidAt, &t.RefundedAt, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Transaction{}, application.ErrNotFound
	}
	if err != nil {
		return domain.Transaction{}, err
	}
	return t, nil
}
