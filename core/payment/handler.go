package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Izzienjeri/shoply-sub000/api/web"
	"github.com/Izzienjeri/shoply-sub000/api/weberr"
	"github.com/Izzienjeri/shoply-sub000/core/claims"
	"github.com/Izzienjeri/shoply-sub000/daraja"
	"github.com/Izzienjeri/shoply-sub000/database"
	"github.com/Izzienjeri/shoply-sub000/metrics"
	"github.com/sirupsen/logrus"
)

// Ledger is the durable side of the state machine: resolutions only apply
// to rows that are still open.
type Ledger interface {
	Fetch(ctx context.Context, reference string) (Record, error)
	Resolve(ctx context.Context, reference string, o Outcome) (bool, error)
}

// Materializer turns a confirmed payment into an order and resolves the
// ledger row with out, plus the new order id, in the same transaction. It
// returns ErrAlreadyResolved when the row was resolved in the meantime.
type Materializer interface {
	Materialize(ctx context.Context, rec Record, out Outcome) (orderID string, err error)
}

// Publisher announces resolutions on the principal's push channel.
type Publisher interface {
	Publish(ctx context.Context, principal string, ev Event) error
}

type ack struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

// HandleCallback receives gateway results. The gateway is always answered
// with a success acknowledgement, whatever happened to the payload.
func HandleCallback(ledger Ledger, mat Materializer, pub Publisher, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		reply := func(outcome string, desc string) error {
			metrics.Callbacks.WithLabelValues(outcome).Inc()
			return web.Respond(ctx, w, ack{ResultCode: 0, ResultDesc: desc}, http.StatusOK)
		}

		var cb daraja.Callback
		if err := web.DecodeLenient(w, r, &cb); err != nil {
			log.WithError(err).Error("callback: invalid JSON body")
			return reply("invalid", "Accepted invalid JSON")
		}

		stk := cb.Body.STKCallback
		if stk == nil {
			log.Error("callback: missing Body.stkCallback")
			return reply("invalid", "Accepted format error")
		}
		if stk.CheckoutRequestID == "" {
			log.Error("callback: missing CheckoutRequestID")
			return reply("invalid", "Accepted missing CheckoutRequestID")
		}

		log := log.WithFields(logrus.Fields{
			"reference":   stk.CheckoutRequestID,
			"merchant_id": stk.MerchantRequestID,
			"result_code": stk.ResultCode,
		})

		rec, err := ledger.Fetch(ctx, stk.CheckoutRequestID)
		switch {
		case errors.Is(err, database.ErrDBNotFound):
			log.Warn("callback: unknown transaction")
			return reply("unknown", "Accepted, transaction not found")
		case err != nil:
			log.WithError(err).Error("callback: reading transaction, leaving it to the sweeper")
			return reply("error", "Accepted")
		}

		if rec.Status.Terminal() {
			log.WithField("status", rec.Status).Info("callback: transaction already resolved")
			return reply("duplicate", "Accepted, already processed")
		}

		out, materialize := Interpret(*stk, rec.Amount)

		out, applied, err := settle(ctx, ledger, mat, rec, out, materialize, log)
		if err != nil {
			log.WithError(err).Error("callback: recording outcome, leaving it to the sweeper")
			return reply("error", "Accepted")
		}
		if !applied {
			return reply("duplicate", "Accepted, already processed")
		}

		ev := Event{Reference: rec.Reference, Status: out.Status, Message: out.Message, OrderID: out.OrderID}
		if err := pub.Publish(ctx, rec.Principal, ev); err != nil {
			log.WithError(err).Warn("callback: publishing resolution")
		}

		log.WithField("status", out.Status).Info("callback: transaction resolved")
		return reply(string(out.Status), "Accepted")
	}
}

// settle records out, materializing the order first when the payment went
// through. A failed materialization resolves the row as a processing error.
func settle(ctx context.Context, ledger Ledger, mat Materializer, rec Record, out Outcome, materialize bool, log logrus.FieldLogger) (Outcome, bool, error) {
	if materialize {
		orderID, err := mat.Materialize(ctx, rec, out)
		switch {
		case err == nil:
			out.OrderID = orderID
			return out, true, nil
		case errors.Is(err, ErrAlreadyResolved):
			return out, false, nil
		}

		log.WithError(err).Error("materializing order for paid transaction")
		out = Outcome{
			Status:  FailedProcessingError,
			Message: fmt.Sprintf("Order creation error: %v", err),
			Receipt: out.Receipt,
		}
	}

	applied, err := ledger.Resolve(ctx, rec.Reference, out)
	return out, applied, err
}

// HandleStatus serves the ledger view of one of the caller's transactions.
func HandleStatus(ledger Fetcher) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		ref := web.Param(r, "reference")

		rec, err := ledger.Fetch(ctx, ref)
		switch {
		case errors.Is(err, database.ErrDBNotFound):
			return weberr.NotFound(fmt.Errorf("transaction %s not found", ref))
		case err != nil:
			return fmt.Errorf("fetching transaction %s: %w", ref, err)
		}

		if rec.Principal != clm.UserID {
			return weberr.NotFound(fmt.Errorf("transaction %s not owned by %s", ref, clm.UserID))
		}

		return web.Respond(ctx, w, rec.Event(), http.StatusOK)
	}
}
