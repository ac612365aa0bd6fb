package application

import (
	"context"
	"testing"

	"github.com/coursaly/payment-reconciler/internal/transaction/domain"
	"github.com/coursaly/payment-reconciler/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pendingTx(id int64, env int64, scope domain.Scope) domain.Transaction {
	tx := domain.New(env, scope, "stripe", 1000, 0, 0, "USD")
	tx.ID = id
	return tx
}

func TestResolverScopedPendingMatch(t *testing.T) {
	tx := pendingTx(1, 7, domain.ScopeTenant)
	repo := newFakeRepo(tx)
	r := NewResolver(logging.New("error"), repo)

	got, err := r.Resolve(context.Background(), Reference{TransactionID: tx.TransactionID}, 7)
	require.NoError(t, err)
	assert.Equal(t, tx.TransactionID, got.TransactionID)
}

func TestResolverMatchesGatewayReference(t *testing.T) {
	tx := pendingTx(1, 7, domain.ScopeTenant)
	ref := "pi_999"
	tx.GatewayTransactionID = &ref
	repo := newFakeRepo(tx)
	r := NewResolver(logging.New("error"), repo)

	got, err := r.Resolve(context.Background(), Reference{GatewayRef: "pi_999"}, 7)
	require.NoError(t, err)
	assert.Equal(t, tx.TransactionID, got.TransactionID)
}

func TestResolverCrossTenantRequiresGlobalScope(t *testing.T) {
	global := pendingTx(1, 1, domain.ScopeGlobal)
	tenant := pendingTx(2, 2, domain.ScopeTenant)
	repo := newFakeRepo(global, tenant)
	r := NewResolver(logging.New("error"), repo)

	// Globally scoped row resolves from a foreign environment.
	got, err := r.Resolve(context.Background(), Reference{TransactionID: global.TransactionID}, 99)
	require.NoError(t, err)
	assert.Equal(t, global.TransactionID, got.TransactionID)

	// A tenant-scoped row in another environment must never leak.
	_, err = r.Resolve(context.Background(), Reference{TransactionID: tenant.TransactionID}, 99)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestResolverFallsBackToSettled(t *testing.T) {
	tx := pendingTx(1, 7, domain.ScopeTenant)
	tx.Status = domain.StatusCompleted
	repo := newFakeRepo(tx)
	r := NewResolver(logging.New("error"), repo)

	got, err := r.Resolve(context.Background(), Reference{TransactionID: tx.TransactionID}, 7)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
}

func TestResolverSettledCrossTenantGlobalOnly(t *testing.T) {
	tx := pendingTx(1, 1, domain.ScopeGlobal)
	tx.Status = domain.StatusCompleted
	repo := newFakeRepo(tx)
	r := NewResolver(logging.New("error"), repo)

	got, err := r.Resolve(context.Background(), Reference{TransactionID: tx.TransactionID}, 42)
	require.NoError(t, err)
	assert.Equal(t, tx.TransactionID, got.TransactionID)
}

func TestResolverNotFound(t *testing.T) {
	r := NewResolver(logging.New("error"), newFakeRepo())

	_, err := r.Resolve(context.Background(), Reference{TransactionID: "nope"}, 7)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = r.Resolve(context.Background(), Reference{}, 7)
	assert.ErrorIs(t, err, ErrNotFound)
}
