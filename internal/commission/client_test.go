package commission

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/coursaly/payment-reconciler/internal/transaction/domain"
	"github.com/coursaly/payment-reconciler/pkg/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTransaction() domain.Transaction {
	tx := domain.New(7, domain.ScopeTenant, "stripe", 10_000, 0, 0, "USD")
	tx.ID = 1
	return tx
}

func TestCreateSuccess(t *testing.T) {
	var got atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/commissions", r.URL.Path)
		got.Add(1)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(logging.New("error"), srv.URL)
	require.NoError(t, c.Create(context.Background(), testTransaction()))
	assert.Equal(t, int32(1), got.Load())
}

func TestCreateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	c := NewClient(logging.New("error"), srv.URL)
	assert.Error(t, c.Create(context.Background(), testTransaction()))
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(logging.New("error"), srv.URL)
	for i := 0; i < 5; i++ {
		assert.Error(t, c.Create(context.Background(), testTransaction()))
	}

	// Once open, calls fail fast without reaching the server.
	before := hits.Load()
	err := c.Create(context.Background(), testTransaction())
	assert.Error(t, err)
	assert.Equal(t, before, hits.Load())
}
