package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/Izzienjeri/shoply-sub000/metrics"
	"golang.org/x/sync/errgroup"
)

// Observer drives a tracker until it is done or ctx ends.
type Observer interface {
	Run(ctx context.Context, t *payment.Tracker) error
}

// Attempt is one checkout of a principal, from its submission to the
// outcome of its payment.
type Attempt struct {
	ID        string
	Request   Request
	StartedAt time.Time

	tracker *payment.Tracker
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// newAttempt binds the attempt to parent: ending parent ends the attempt.
func newAttempt(parent context.Context, id string, req Request, t *payment.Tracker, started time.Time) *Attempt {
	ctx, cancel := context.WithCancel(parent)
	return &Attempt{
		ID:        id,
		Request:   req,
		StartedAt: started,
		tracker:   t,
		ctx:       ctx,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
}

// run drives the tracker with every observer under the attempt's context
// and returns once all of them stopped. Whatever stops the attempt, the
// tracker accepts no observation afterwards.
func (a *Attempt) run(observers ...Observer) error {
	defer a.finish()
	defer a.cancel()

	if a.tracker.Snapshot().Status.Terminal() {
		return nil
	}

	metrics.ActiveAttempts.Inc()
	defer metrics.ActiveAttempts.Dec()

	g, gctx := errgroup.WithContext(a.ctx)
	for _, o := range observers {
		o := o
		g.Go(func() error { return o.Run(gctx, a.tracker) })
	}

	return g.Wait()
}

func (a *Attempt) finish() {
	a.tracker.Seal()
	a.once.Do(func() { close(a.done) })
}

// Cancel abandons the attempt. Observations still in flight are dropped and
// no notification is sent for it. Cancelling twice is a no-op.
func (a *Attempt) Cancel() {
	a.tracker.Seal()
	a.cancel()
}

// Done is closed once every observer of the attempt has stopped.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

func (a *Attempt) View() View {
	tx := a.tracker.Snapshot()
	return View{
		AttemptID:        a.ID,
		Transaction:      tx,
		Amount:           a.Request.Amount,
		DeliveryOptionID: a.Request.DeliveryOptionID,
		Retry:            tx.Status.Failed(),
	}
}
