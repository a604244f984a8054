package payment

import (
	"context"

	"github.com/sirupsen/logrus"
)

// Subscription is a live feed of a principal's push events.
type Subscription interface {
	Events() <-chan Event
	Close() error
}

type Subscriber interface {
	Subscribe(ctx context.Context, principal string) (Subscription, error)
}

// Reconciler applies push events about the tracked transaction to its
// tracker. When the subscription cannot be opened the attempt carries on
// with polling alone.
type Reconciler struct {
	Subscriber Subscriber
	Log        logrus.FieldLogger
}

func (r *Reconciler) Run(ctx context.Context, t *Tracker) error {
	ref := t.Reference()
	log := r.Log.WithFields(logrus.Fields{
		"reference": ref,
		"principal": t.Principal(),
	})

	sub, err := r.Subscriber.Subscribe(ctx, t.Principal())
	if err != nil {
		log.WithError(err).Warn("push channel unavailable, relying on polling")
		return nil
	}
	defer func() {
		if err := sub.Close(); err != nil {
			log.WithError(err).Debug("closing push subscription")
		}
	}()

	events := sub.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				log.Warn("push channel closed, relying on polling")
				return nil
			}
			if ev.Reference != ref {
				continue
			}
			if _, err := ParseStatus(string(ev.Status)); err != nil {
				log.WithError(err).Warn("dropping push event")
				continue
			}
			if t.Observe(SourcePush, ev.Observation()) {
				log.WithField("status", ev.Status).Debug("push event resolved payment")
			}
		}
	}
}
