package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Izzienjeri/shoply-sub000/database"
)

const msgAwaiting = "Awaiting confirmation on your phone. Enter your M-Pesa PIN to complete the payment."

type Fetcher interface {
	Fetch(ctx context.Context, reference string) (Record, error)
}

// LedgerQuerier answers status queries from the ledger on behalf of one
// principal whose session ends at Expiry.
type LedgerQuerier struct {
	Ledger    Fetcher
	Principal string
	Expiry    time.Time
	Now       func() time.Time
}

func (q *LedgerQuerier) Query(ctx context.Context, reference string) (Observation, error) {
	now := time.Now
	if q.Now != nil {
		now = q.Now
	}
	if !q.Expiry.IsZero() && !now().Before(q.Expiry) {
		return Observation{}, ErrAuthExpired
	}

	rec, err := q.Ledger.Fetch(ctx, reference)
	switch {
	case errors.Is(err, database.ErrDBNotFound):
		return Observation{}, ErrNotFound
	case err != nil:
		return Observation{}, fmt.Errorf("fetching transaction %s: %w", reference, err)
	}

	if rec.Principal != q.Principal {
		return Observation{}, ErrNotFound
	}

	obs := rec.Observation()
	if _, err := ParseStatus(string(obs.Status)); err != nil {
		return Observation{}, fmt.Errorf("transaction %s: %w", reference, err)
	}
	if !obs.Status.Terminal() {
		// the push reached the handset once the gateway accepted it
		obs.Status = PendingConfirmation
		if obs.Message == "" {
			obs.Message = msgAwaiting
		}
	}
	return obs, nil
}
