package domain

import "time"

type BillingCycle string

const (
	CycleMonthly BillingCycle = "monthly"
	CycleYearly  BillingCycle = "yearly"
)

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
)

// Payment links a transaction to a subscription. A transaction without a
// payment row is a one-off purchase.
type Payment struct {
	ID             int64
	TransactionID  string
	SubscriptionID int64
	Status         PaymentStatus
}

type Subscription struct {
	ID            int64
	EnvironmentID int64
	BillingCycle  BillingCycle
	Status        string
	NextPaymentAt time.Time
	EndsAt        time.Time
}

// Renew computes the next billing window from now.
func (s Subscription) Renew(now time.Time) Subscription {
	next := now.AddDate(0, 1, 0)
	if s.BillingCycle == CycleYearly {
		next = now.AddDate(1, 0, 0)
	}
	s.NextPaymentAt = next
	s.EndsAt = next
	s.Status = "active"
	return s
}
