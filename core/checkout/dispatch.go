package checkout

import (
	"context"
	"time"

	"github.com/Izzienjeri/shoply-sub000/cache"
	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/Izzienjeri/shoply-sub000/metrics"
	"github.com/sirupsen/logrus"
)

type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

// Notification is the user-facing message for a resolved checkout.
type Notification struct {
	Kind      Kind           `json:"kind"`
	Reference string         `json:"transactionReference,omitempty"`
	Status    payment.Status `json:"status"`
	Message   string         `json:"message"`
	OrderID   string         `json:"orderId,omitempty"`
	Retry     bool           `json:"retry"`
}

func NewNotification(tx payment.Transaction) Notification {
	n := Notification{
		Kind:      KindSuccess,
		Reference: tx.Reference,
		Status:    tx.Status,
		Message:   tx.Message,
		OrderID:   tx.OrderID,
	}
	if tx.Status.Failed() {
		n.Kind = KindFailure
		n.Retry = true
	}
	return n
}

// NotifyPublisher delivers notifications to a principal.
type NotifyPublisher interface {
	Notify(ctx context.Context, principal string, v any) error
}

// Dispatcher is the Notifier of every checkout attempt.
type Dispatcher struct {
	Publisher NotifyPublisher
	Views     cache.Views
	Log       logrus.FieldLogger
	Timeout   time.Duration
}

func (d *Dispatcher) Notify(r payment.Resolution) {
	timeout := d.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tx := r.Transaction
	log := d.Log.WithFields(logrus.Fields{
		"principal": r.Principal,
		"reference": tx.Reference,
		"status":    tx.Status,
		"source":    r.Source,
	})

	metrics.Resolutions.WithLabelValues(string(tx.Status), string(r.Source)).Inc()

	if err := d.Views.Invalidate(ctx, r.Principal); err != nil {
		log.WithError(err).Warn("invalidating cached views")
	}

	if err := d.Publisher.Notify(ctx, r.Principal, NewNotification(tx)); err != nil {
		log.WithError(err).Error("publishing checkout notification")
	}

	if tx.Status.Failed() {
		log.WithField("message", tx.Message).Info("checkout failed")
		return
	}
	log.WithField("order_id", tx.OrderID).Info("checkout succeeded")
}

// Announcer publishes ledger resolutions on the push channel and drops the
// principal's cached views, which the resolution may have changed.
type Announcer struct {
	Publisher payment.Publisher
	Views     cache.Views
	Log       logrus.FieldLogger
}

func (a *Announcer) Publish(ctx context.Context, principal string, ev payment.Event) error {
	if err := a.Views.Invalidate(ctx, principal); err != nil {
		a.Log.WithError(err).WithField("principal", principal).Warn("invalidating cached views")
	}
	return a.Publisher.Publish(ctx, principal, ev)
}
