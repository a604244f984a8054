// Package payment tracks a mobile-money payment from acceptance by the
// gateway to its single terminal outcome.
package payment

import (
	"errors"
)

var (
	// ErrAuthExpired is returned by a Querier when the session that owns
	// the transaction has lapsed.
	ErrAuthExpired = errors.New("session expired")

	// ErrNotFound is returned by a Querier that knows for certain the
	// transaction does not exist.
	ErrNotFound = errors.New("payment transaction not found")

	// ErrAlreadyResolved means a write lost the race against an earlier
	// terminal outcome.
	ErrAlreadyResolved = errors.New("payment transaction already resolved")
)

// Transaction is the in-memory view of one payment.
type Transaction struct {
	Reference string `json:"transactionReference"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
	OrderID   string `json:"orderId,omitempty"`
}

// Observation is what a poll or push reports about a transaction.
type Observation struct {
	Status  Status `json:"status"`
	Message string `json:"message"`
	OrderID string `json:"orderId,omitempty"`
}

// Event is the push channel message.
type Event struct {
	Reference string `json:"transactionReference"`
	Status    Status `json:"status"`
	Message   string `json:"message"`
	OrderID   string `json:"orderId,omitempty"`
}

func (e Event) Observation() Observation {
	return Observation{Status: e.Status, Message: e.Message, OrderID: e.OrderID}
}

// Source names the observer that produced a terminal outcome.
type Source string

const (
	SourceInitiator Source = "initiator"
	SourcePoller    Source = "poller"
	SourcePush      Source = "push"
)

// Resolution is the single terminal outcome of a tracked transaction.
type Resolution struct {
	Principal   string
	Transaction Transaction
	Source      Source
}

// Notifier receives the resolution of a tracked transaction. It is called
// exactly once per Tracker.
type Notifier interface {
	Notify(Resolution)
}

type NotifierFunc func(Resolution)

func (f NotifierFunc) Notify(r Resolution) { f(r) }
