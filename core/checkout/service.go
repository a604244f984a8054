package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Izzienjeri/shoply-sub000/api/background"
	"github.com/Izzienjeri/shoply-sub000/core/cart"
	"github.com/Izzienjeri/shoply-sub000/core/claims"
	"github.com/Izzienjeri/shoply-sub000/core/delivery"
	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/Izzienjeri/shoply-sub000/database"
	"github.com/Izzienjeri/shoply-sub000/metrics"
	"github.com/Izzienjeri/shoply-sub000/rate"
	"github.com/Izzienjeri/shoply-sub000/validate"
	"github.com/sirupsen/logrus"
)

type ServiceConfig struct {
	Catalog    Catalog
	Initiator  *Initiator
	Ledger     payment.Fetcher
	Subscriber payment.Subscriber
	Notifier   payment.Notifier
	Background *background.Background
	Log        logrus.FieldLogger

	PollAttempts int
	PollInterval time.Duration

	RateBurst    int
	RateInterval time.Duration
	RateExpiry   int

	// Retain is how long a finished attempt stays visible to its principal.
	Retain time.Duration
}

// Service owns the checkout attempts, at most one per principal.
type Service struct {
	cfg     ServiceConfig
	limiter *rate.Limiter
	log     logrus.FieldLogger
	now     func() time.Time

	ctx  context.Context
	stop context.CancelFunc

	mu       sync.Mutex
	attempts map[string]*Attempt
	starting map[string]bool
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.RateBurst <= 0 {
		cfg.RateBurst = 3
	}
	if cfg.RateInterval <= 0 {
		cfg.RateInterval = 20 * time.Second
	}
	if cfg.RateExpiry <= 0 {
		cfg.RateExpiry = 30
	}
	if cfg.Retain <= 0 {
		cfg.Retain = 30 * time.Minute
	}

	ctx, stop := context.WithCancel(context.Background())
	return &Service{
		cfg:      cfg,
		limiter:  rate.NewLimiter(cfg.RateBurst, cfg.RateExpiry, rate.Every(cfg.RateInterval)),
		log:      cfg.Log,
		now:      func() time.Time { return time.Now().UTC() },
		ctx:      ctx,
		stop:     stop,
		attempts: make(map[string]*Attempt),
		starting: make(map[string]bool),
	}
}

// Start validates a checkout for the principal, submits it and starts
// tracking its payment. A running attempt of the same principal is
// abandoned once the new one has been submitted. Validation failures are
// returned as errors before the gateway is contacted; a rejected submission
// is a terminal attempt, not an error.
func (s *Service) Start(ctx context.Context, clm claims.Claims, rn RequestNew) (View, error) {
	principal := clm.UserID

	if !s.limiter.Check(principal) {
		return View{}, reject("rate_limited", ErrRateLimited)
	}

	if err := validate.Check(rn); err != nil {
		return View{}, reject("invalid", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}
	f, err := delivery.ParseFulfillment(string(rn.Fulfillment))
	if err != nil {
		return View{}, reject("invalid", fmt.Errorf("%w: %v", ErrInvalidRequest, err))
	}

	if !s.claim(principal) {
		return View{}, ErrSubmitting
	}
	defer s.release(principal)

	c, err := s.cfg.Catalog.Cart(ctx, principal)
	switch {
	case errors.Is(err, database.ErrDBNotFound):
		c = cart.Cart{Principal: principal}
	case err != nil:
		return View{}, fmt.Errorf("fetching cart: %w", err)
	}

	av := cart.Evaluate(c)
	if av.Empty() {
		return View{}, reject("empty_cart", ErrEmptyCart)
	}

	opts, err := s.cfg.Catalog.DeliveryOptions(ctx)
	if err != nil {
		return View{}, fmt.Errorf("fetching delivery options: %w", err)
	}
	opt, err := delivery.Resolve(opts, f, rn.DeliveryOptionID)
	if err != nil {
		return View{}, reject("delivery", err)
	}

	req := Request{
		ContactID:        rn.ContactID,
		DeliveryOptionID: opt.ID,
		Amount:           delivery.Total(av.Subtotal, opt),
	}

	// an accepted push has to be recorded even if the shopper went away
	tx, err := s.cfg.Initiator.Submit(context.WithoutCancel(ctx), principal, c, av, req)
	if err != nil {
		return View{}, reject("invalid", err)
	}

	t := payment.NewTracker(principal, tx.Reference, s.cfg.Notifier)
	a := newAttempt(s.ctx, validate.GenerateID(), req, t, s.now())

	if tx.Status.Terminal() {
		t.Observe(payment.SourceInitiator, payment.Observation{Status: tx.Status, Message: tx.Message})
	} else {
		t.Note(tx.Message)
	}

	s.register(principal, a)

	poller := &payment.Poller{
		Querier: &payment.LedgerQuerier{
			Ledger:    s.cfg.Ledger,
			Principal: principal,
			Expiry:    clm.Expiry,
		},
		MaxAttempts: s.cfg.PollAttempts,
		Interval:    s.cfg.PollInterval,
		Log:         s.log,
	}
	reconciler := &payment.Reconciler{
		Subscriber: s.cfg.Subscriber,
		Log:        s.log,
	}

	s.cfg.Background.Go(func() {
		if err := a.run(poller, reconciler); err != nil {
			s.log.WithError(err).WithField("attempt_id", a.ID).Error("checkout attempt stopped")
		}
	})

	return a.View(), nil
}

// Current returns the principal's latest attempt.
func (s *Service) Current(principal string) (View, error) {
	s.mu.Lock()
	a, ok := s.attempts[principal]
	s.mu.Unlock()

	if !ok {
		return View{}, ErrNoAttempt
	}
	return a.View(), nil
}

// Abandon stops tracking the principal's latest attempt. Its payment may
// still complete; the ledger and the callback take care of it.
func (s *Service) Abandon(principal string) error {
	s.mu.Lock()
	a, ok := s.attempts[principal]
	delete(s.attempts, principal)
	s.mu.Unlock()

	if !ok {
		return ErrNoAttempt
	}

	a.Cancel()
	s.log.WithFields(logrus.Fields{
		"principal":  principal,
		"attempt_id": a.ID,
	}).Info("checkout attempt abandoned")
	return nil
}

// Shutdown stops every running attempt. The background runner waits for
// them to return.
func (s *Service) Shutdown() {
	s.stop()
	s.limiter.Stop()
}

func (s *Service) register(principal string, a *Attempt) {
	s.mu.Lock()
	prev := s.attempts[principal]
	s.attempts[principal] = a
	s.pruneLocked()
	s.mu.Unlock()

	if prev != nil {
		prev.Cancel()
		s.log.WithFields(logrus.Fields{
			"principal":  principal,
			"attempt_id": prev.ID,
			"by":         a.ID,
		}).Info("checkout attempt superseded")
	}
}

// pruneLocked forgets finished attempts older than Retain.
func (s *Service) pruneLocked() {
	cutoff := s.now().Add(-s.cfg.Retain)
	for p, a := range s.attempts {
		if a.StartedAt.After(cutoff) {
			continue
		}
		select {
		case <-a.Done():
			delete(s.attempts, p)
		default:
		}
	}
}

func (s *Service) claim(principal string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.starting[principal] {
		return false
	}
	s.starting[principal] = true
	return true
}

func (s *Service) release(principal string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.starting, principal)
}

func (s *Service) attempt(principal string) *Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempts[principal]
}

func reject(reason string, err error) error {
	metrics.CheckoutsRejected.WithLabelValues(reason).Inc()
	return err
}
