package payment

import (
	"context"
	"errors"
	"time"

	"github.com/Izzienjeri/shoply-sub000/metrics"
	"github.com/sirupsen/logrus"
)

const (
	DefaultMaxAttempts = 24
	DefaultInterval    = 5 * time.Second

	msgQueryError     = "Error reading payment status, retrying..."
	msgSessionExpired = "Your session expired while confirming the payment. Please sign in and check your orders."
	msgNotFound       = "The payment transaction could not be found."
	msgTimedOut       = "Payment confirmation timed out. Please try again."
)

// Querier reads the current state of a transaction.
type Querier interface {
	Query(ctx context.Context, reference string) (Observation, error)
}

type QuerierFunc func(ctx context.Context, reference string) (Observation, error)

func (f QuerierFunc) Query(ctx context.Context, reference string) (Observation, error) {
	return f(ctx, reference)
}

// Poller queries a transaction at a fixed interval until its tracker is
// done or MaxAttempts queries went unanswered, in which case it forces
// FailedTimeout.
type Poller struct {
	Querier     Querier
	MaxAttempts int
	Interval    time.Duration
	Log         logrus.FieldLogger
}

type queryResult struct {
	obs Observation
	err error
}

// Run polls until t is done or ctx is cancelled. The first query is issued
// immediately and queries never overlap. Cancellation does not wait for a
// query in flight; its result is dropped.
func (p *Poller) Run(ctx context.Context, t *Tracker) error {
	max := p.MaxAttempts
	if max <= 0 {
		max = DefaultMaxAttempts
	}
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	ref := t.Reference()
	log := p.Log.WithField("reference", ref)

	timer := time.NewTimer(interval)
	timer.Stop()
	defer timer.Stop()

	for attempt := 1; ; attempt++ {
		select {
		case <-ctx.Done():
			return nil
		case <-t.Done():
			return nil
		default:
		}

		res := make(chan queryResult, 1)
		go func() {
			obs, err := p.Querier.Query(ctx, ref)
			res <- queryResult{obs: obs, err: err}
		}()

		select {
		case <-ctx.Done():
			return nil
		case <-t.Done():
			return nil
		case r := <-res:
			if p.apply(t, r, log.WithField("attempt", attempt)) {
				return nil
			}
		}

		if attempt >= max {
			if t.Observe(SourcePoller, Observation{Status: FailedTimeout, Message: msgTimedOut}) {
				log.WithField("attempts", attempt).Info("payment confirmation timed out")
			}
			return nil
		}

		timer.Reset(interval)
		select {
		case <-ctx.Done():
			return nil
		case <-t.Done():
			return nil
		case <-timer.C:
		}
	}
}

// apply feeds one query result into the tracker and reports whether
// polling should stop.
func (p *Poller) apply(t *Tracker, r queryResult, log logrus.FieldLogger) bool {
	switch {
	case r.err == nil:
		metrics.PollQueries.WithLabelValues("ok").Inc()
		t.Observe(SourcePoller, r.obs)

	case errors.Is(r.err, ErrAuthExpired):
		metrics.PollQueries.WithLabelValues("auth_expired").Inc()
		log.WithError(r.err).Warn("session expired while polling")
		t.Observe(SourcePoller, Observation{Status: FailedProcessingError, Message: msgSessionExpired})

	case errors.Is(r.err, ErrNotFound):
		metrics.PollQueries.WithLabelValues("not_found").Inc()
		log.WithError(r.err).Warn("polled transaction does not exist")
		t.Observe(SourcePoller, Observation{Status: NotFound, Message: msgNotFound})

	default:
		metrics.PollQueries.WithLabelValues("error").Inc()
		log.WithError(r.err).Debug("payment status query failed")
		t.Note(msgQueryError)
	}

	select {
	case <-t.Done():
		return true
	default:
		return false
	}
}
