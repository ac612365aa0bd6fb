package commission

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/coursaly/payment-reconciler/internal/transaction/domain"
	"github.com/coursaly/payment-reconciler/pkg/metrics"
	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"
)

const defaultTimeout = 3 * time.Second

type createRequest struct {
	TransactionID string `json:"transaction_id"`
	EnvironmentID int64  `json:"environment_id"`
	Gateway       string `json:"gateway"`
	AmountCents   int64  `json:"amount_cents"`
	Currency      string `json:"currency"`
}

// Client calls the commission service over HTTP. The call is best effort:
// a short timeout, no automatic retries, and a circuit breaker so a stuck
// downstream cannot eat the gateway's retry window.
type Client struct {
	log     *slog.Logger
	http    *resty.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

func NewClient(log *slog.Logger, baseURL string) *Client {
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:     "commission",
		Interval: 15 * time.Second,
		Timeout:  30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && ratio >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.SetBreakerState(name, to)
			log.Info("circuit breaker state changed", "circuit", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		log:     log,
		http:    resty.New().SetTimeout(defaultTimeout).SetRetryCount(0),
		breaker: cb,
		baseURL: baseURL,
	}
}

// Create asks the commission service to accrue a commission for a
// completed transaction. The amount itself is computed downstream.
func (c *Client) Create(ctx context.Context, tx domain.Transaction) error {
	req := createRequest{
		TransactionID: tx.TransactionID,
		EnvironmentID: tx.EnvironmentID,
		Gateway:       tx.Gateway,
		AmountCents:   tx.AmountCents,
		Currency:      tx.Currency,
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetBody(req).
			Post(c.baseURL + "/commissions")
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("commission service returned %s", resp.Status())
		}
		return nil, nil
	})
	if err == gobreaker.ErrOpenState {
		return fmt.Errorf("commission circuit open: %w", err)
	}
	return err
}
