package payment

import (
	"context"
	"time"

	"github.com/Izzienjeri/shoply-sub000/daraja"
	"github.com/sirupsen/logrus"
)

// StatusQuerier asks the gateway directly about a push.
type StatusQuerier interface {
	STKQuery(ctx context.Context, checkoutRequestID string) (daraja.QueryResponse, error)
}

type StaleLedger interface {
	Ledger
	ListStale(ctx context.Context, before time.Time, limit int) ([]Record, error)
	MarkPending(ctx context.Context, reference string, msg string) error
}

// Sweeper resolves transactions whose callback never arrived by asking the
// gateway about them.
type Sweeper struct {
	Ledger    StaleLedger
	Gateway   StatusQuerier
	Publisher Publisher
	Log       logrus.FieldLogger

	Interval time.Duration
	MinAge   time.Duration
	Deadline time.Duration
	Batch    int

	Now func() time.Time
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := s.Sweep(ctx); n > 0 {
				s.Log.WithField("resolved", n).Info("sweeper resolved stale transactions")
			}
		case <-ctx.Done():
			return
		}
	}
}

// Sweep runs one pass and returns how many transactions it resolved.
func (s *Sweeper) Sweep(ctx context.Context) int {
	now := s.now()

	recs, err := s.Ledger.ListStale(ctx, now.Add(-s.MinAge), s.Batch)
	if err != nil {
		s.Log.WithError(err).Error("listing stale transactions")
		return 0
	}

	var resolved int
	for _, rec := range recs {
		if ctx.Err() != nil {
			break
		}
		if s.sweepOne(ctx, rec, now) {
			resolved++
		}
	}
	return resolved
}

func (s *Sweeper) sweepOne(ctx context.Context, rec Record, now time.Time) bool {
	log := s.Log.WithFields(logrus.Fields{
		"reference": rec.Reference,
		"principal": rec.Principal,
		"age":       now.Sub(rec.CreatedAt).String(),
	})

	var out Outcome
	resp, err := s.Gateway.STKQuery(ctx, rec.Reference)
	switch {
	case daraja.IsStillProcessing(err):
		if now.Sub(rec.CreatedAt) < s.Deadline {
			if err := s.Ledger.MarkPending(ctx, rec.Reference, msgAwaiting); err != nil {
				log.WithError(err).Warn("marking transaction pending")
			}
			return false
		}
		out = Outcome{Status: FailedTimeout, Message: "No confirmation received from M-Pesa."}

	case daraja.IsUnknownCheckout(err):
		out = Outcome{Status: NotFound, Message: "The payment provider does not know this transaction."}

	case err != nil:
		log.WithError(err).Warn("querying stale transaction")
		return false

	case resp.ResultCode == daraja.ResultOK:
		out = Outcome{Status: FailedMissingReceipt, Message: "Payment confirmed by M-Pesa but no receipt was received."}

	default:
		out = Outcome{Status: FailureStatus(resp.ResultCode), Message: resp.ResultDesc}
	}

	applied, err := s.Ledger.Resolve(ctx, rec.Reference, out)
	if err != nil {
		log.WithError(err).Error("resolving stale transaction")
		return false
	}
	if !applied {
		return false
	}

	ev := Event{Reference: rec.Reference, Status: out.Status, Message: out.Message}
	if err := s.Publisher.Publish(ctx, rec.Principal, ev); err != nil {
		log.WithError(err).Warn("publishing sweeper resolution")
	}
	log.WithField("status", out.Status).Info("stale transaction resolved")
	return true
}

func (s *Sweeper) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}
