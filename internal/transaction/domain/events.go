package domain

import "time"

type OrderCompleted struct {
	OrderID       int64     `json:"order_id"`
	TransactionID string    `json:"transaction_id"`
	EnvironmentID int64     `json:"environment_id"`
	AmountCents   int64     `json:"amount_cents"`
	Currency      string    `json:"currency"`
	PaidAt        time.Time `json:"paid_at"`
}
