package application

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coursaly/payment-reconciler/internal/audit"
	"github.com/coursaly/payment-reconciler/internal/transaction/domain"
)

type fakeRepo struct {
	mu            sync.Mutex
	txs           map[int64]*domain.Transaction
	completeCalls int
	failCalls     int
	cancelCalls   int
	orderEvents   int
	renewals      int
	linkedPayment map[int64]bool
}

func newFakeRepo(txs ...domain.Transaction) *fakeRepo {
	r := &fakeRepo{txs: make(map[int64]*domain.Transaction), linkedPayment: make(map[int64]bool)}
	for i := range txs {
		t := txs[i]
		r.txs[t.ID] = &t
	}
	return r
}

func (r *fakeRepo) matches(t *domain.Transaction, ref Reference) bool {
	if ref.TransactionID != "" && t.TransactionID == ref.TransactionID {
		return true
	}
	if ref.GatewayRef != "" && t.GatewayTransactionID != nil && *t.GatewayTransactionID == ref.GatewayRef {
		return true
	}
	return false
}

func (r *fakeRepo) find(ref Reference, env *int64, pending bool) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]int64, 0, len(r.txs))
	for id := range r.txs {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		t := r.txs[id]
		if !r.matches(t, ref) {
			continue
		}
		if env != nil && t.EnvironmentID != *env {
			continue
		}
		if pending && t.Status != domain.StatusPending {
			continue
		}
		if !pending && t.Status != domain.StatusCompleted {
			continue
		}
		return *t, nil
	}
	return domain.Transaction{}, ErrNotFound
}

func (r *fakeRepo) Insert(_ context.Context, t domain.Transaction) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t.ID = int64(len(r.txs) + 1)
	r.txs[t.ID] = &t
	return t, nil
}

func (r *fakeRepo) FindByTransactionID(_ context.Context, transactionID string) (domain.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txs {
		if t.TransactionID == transactionID {
			return *t, nil
		}
	}
	return domain.Transaction{}, ErrNotFound
}

func (r *fakeRepo) FindPending(_ context.Context, ref Reference, env int64) (domain.Transaction, error) {
	return r.find(ref, &env, true)
}

func (r *fakeRepo) FindPendingAnyEnvironment(_ context.Context, ref Reference) (domain.Transaction, error) {
	return r.find(ref, nil, true)
}

func (r *fakeRepo) FindSettled(_ context.Context, ref Reference, env int64) (domain.Transaction, error) {
	return r.find(ref, &env, false)
}

func (r *fakeRepo) FindSettledAnyEnvironment(_ context.Context, ref Reference) (domain.Transaction, error) {
	return r.find(ref, nil, false)
}

func (r *fakeRepo) Complete(_ context.Context, p CompleteParams) (Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[p.ID]
	if !ok {
		return Transition{}, ErrNotFound
	}
	if t.Status.Settled() {
		return Transition{Applied: false, Status: t.Status}, nil
	}
	t.Status = domain.StatusCompleted
	t.GatewayStatus = p.GatewayStatus
	t.GatewayResponse = p.GatewayResponse
	paidAt := p.PaidAt
	t.PaidAt = &paidAt
	if p.GatewayTransactionID != "" {
		gid := p.GatewayTransactionID
		t.GatewayTransactionID = &gid
	}
	r.completeCalls++
	if t.OrderID != nil {
		r.orderEvents++
	}
	if r.linkedPayment[t.ID] {
		r.renewals++
	}
	return Transition{Applied: true, Status: domain.StatusCompleted}, nil
}

func (r *fakeRepo) settle(id int64, to domain.Status) (Transition, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.txs[id]
	if !ok {
		return Transition{}, ErrNotFound
	}
	if t.Status.Settled() {
		return Transition{Applied: false, Status: t.Status}, nil
	}
	t.Status = to
	return Transition{Applied: true, Status: to}, nil
}

func (r *fakeRepo) MarkFailed(_ context.Context, id int64, _ string, _ []byte) (Transition, error) {
	r.failCalls++
	return r.settle(id, domain.StatusFailed)
}

func (r *fakeRepo) MarkCancelled(_ context.Context, id int64, _ string, _ []byte) (Transition, error) {
	r.cancelCalls++
	return r.settle(id, domain.StatusCancelled)
}

func (r *fakeRepo) UpdateStatus(_ context.Context, transactionID string, from, to domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.txs {
		if t.TransactionID == transactionID {
			if t.Status != from {
				return ErrInvalidTransition
			}
			t.Status = to
			return nil
		}
	}
	return ErrNotFound
}

func (r *fakeRepo) get(id int64) domain.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.txs[id]
}

type fakeSettings struct {
	settings map[string]domain.GatewaySetting
}

func settingsKey(env int64, gw string) string {
	return fmt.Sprintf("%s/%d", gw, env)
}

func newFakeSettings(list ...domain.GatewaySetting) *fakeSettings {
	s := &fakeSettings{settings: make(map[string]domain.GatewaySetting)}
	for _, gs := range list {
		s.settings[settingsKey(gs.EnvironmentID, gs.Gateway)] = gs
	}
	return s
}

func (s *fakeSettings) FindActive(_ context.Context, env int64, gw string) (domain.GatewaySetting, error) {
	gs, ok := s.settings[settingsKey(env, gw)]
	if !ok || !gs.Active {
		return domain.GatewaySetting{}, ErrNoGatewayConfig
	}
	return gs, nil
}

type fakeCommission struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (c *fakeCommission) Create(context.Context, domain.Transaction) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return c.err
}

type fakeAudit struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*audit.Entry
}

func newFakeAudit() *fakeAudit {
	return &fakeAudit{entries: make(map[int64]*audit.Entry)}
}

func (a *fakeAudit) Open(_ context.Context, e audit.Entry) (int64, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	e.ID = a.nextID
	e.Status = audit.StatusReceived
	a.entries[e.ID] = &e
	return e.ID, nil
}

func (a *fakeAudit) Close(_ context.Context, id int64, status audit.Status, entityType, entityID, note string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	if !ok {
		return ErrNotFound
	}
	e.Status = status
	e.EntityType = entityType
	e.EntityID = entityID
	e.Note = note
	return nil
}

func (a *fakeAudit) Get(_ context.Context, id int64) (audit.Entry, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	e, ok := a.entries[id]
	if !ok {
		return audit.Entry{}, ErrNotFound
	}
	return *e, nil
}
