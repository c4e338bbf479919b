package types

import (
	"context"
	"time"
)

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// RealClock implements Clock using the real system time (always UTC).
type RealClock struct{}

// Now returns the current time in UTC.
func (RealClock) Now() time.Time { return time.Now().UTC() }

// WalletLedger is the external ledger collaborator. Debit returns
// ErrCodeInsufficientFunds when the balance does not cover the amount.
type WalletLedger interface {
	Debit(ctx context.Context, userID string, amount int64) error
	GetBalance(ctx context.Context, userID string) (int64, error)
}

// PurchaseGateway is the external airtime/data purchase collaborator.
type PurchaseGateway interface {
	Purchase(ctx context.Context, typ TopUpType, network Network, phoneNumber string, amount int64) (*PurchaseResult, error)
}

// NotificationDispatcher delivers threshold-crossed and schedule-outcome
// events to the user's notification channels. Delivery mechanics live
// outside the engine.
type NotificationDispatcher interface {
	Notify(ctx context.Context, userID string, event Event) error
}
