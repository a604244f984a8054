package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Izzienjeri/shoply-sub000/core/cart"
	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/Izzienjeri/shoply-sub000/daraja"
	"github.com/Izzienjeri/shoply-sub000/metrics"
	"github.com/Izzienjeri/shoply-sub000/validate"
	"github.com/sirupsen/logrus"
)

const (
	msgPushSent        = "STK Push initiated successfully. Please check your phone to authorize payment."
	msgPushFailed      = "Failed to initiate STK push."
	msgMissingID       = "STK Push initiated but CheckoutRequestID was missing in response."
	msgRecordingFailed = "The payment request was sent but could not be recorded. Please contact support before paying again."
)

// Gateway accepts payment requests for the customer's handset.
type Gateway interface {
	STKPush(ctx context.Context, pr daraja.PushRequest) (daraja.PushResponse, error)
}

// Recorder keeps the accepted transactions.
type Recorder interface {
	Create(ctx context.Context, r payment.Record) error
}

// Initiator submits checkout requests to the gateway.
type Initiator struct {
	Gateway Gateway
	Ledger  Recorder
	Log     logrus.FieldLogger
	Now     func() time.Time
}

// Submit checks req against the cart evaluation and sends it to the gateway
// exactly once. A request that fails the checks is returned as an error
// without contacting the gateway. Anything that happens from the
// submission on is reported in the returned transaction, which is either
// Initiated with the gateway reference or terminal.
func (i *Initiator) Submit(ctx context.Context, principal string, c cart.Cart, av cart.Availability, req Request) (payment.Transaction, error) {
	if av.Empty() {
		return payment.Transaction{}, ErrEmptyCart
	}
	if !req.Amount.IsPositive() {
		return payment.Transaction{}, ErrNonPositiveTotal
	}
	if err := validate.Check(req); err != nil {
		return payment.Transaction{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	log := i.Log.WithFields(logrus.Fields{
		"principal": principal,
		"cart_id":   c.ID,
		"amount":    req.Amount.StringFixed(2),
	})

	resp, err := i.Gateway.STKPush(ctx, daraja.PushRequest{
		Phone:            req.ContactID,
		Amount:           req.Amount,
		AccountReference: accountReference(c.ID),
		Description:      "Payment for Shoply Cart " + short(c.ID),
	})

	switch {
	case err != nil:
		log.WithError(err).Warn("stk push failed")
		return failed(payment.FailedSTKInitiation, rejection(err)), nil
	case !resp.Accepted():
		log.WithField("response_code", resp.ResponseCode).Warn("stk push not accepted")
		msg := resp.ResponseDescription
		if msg == "" {
			msg = msgPushFailed
		}
		return failed(payment.FailedSTKInitiation, msg), nil
	case resp.CheckoutRequestID == "":
		log.WithField("merchant_id", resp.MerchantRequestID).Error("stk push accepted without a checkout request id")
		return failed(payment.FailedSTKMissingID, msgMissingID), nil
	}

	now := i.now()
	rec := payment.Record{
		ID:                validate.GenerateID(),
		Reference:         resp.CheckoutRequestID,
		MerchantRequestID: resp.MerchantRequestID,
		Principal:         principal,
		CartID:            c.ID,
		DeliveryOptionID:  req.DeliveryOptionID,
		ContactID:         req.ContactID,
		Amount:            req.Amount,
		ChargedAmount:     req.Amount.Ceil(),
		Status:            payment.Initiated,
		Items:             snapshot(av.Purchasable),
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	log = log.WithField("reference", rec.Reference)
	if err := i.Ledger.Create(ctx, rec); err != nil {
		log.WithError(err).Error("recording accepted stk push")
		tx := failed(payment.FailedProcessingError, msgRecordingFailed)
		tx.Reference = rec.Reference
		return tx, nil
	}

	metrics.CheckoutsStarted.Inc()
	log.Info("stk push accepted")

	return payment.Transaction{
		Reference: rec.Reference,
		Status:    payment.Initiated,
		Message:   msgPushSent,
	}, nil
}

func (i *Initiator) now() time.Time {
	if i.Now != nil {
		return i.Now()
	}
	return time.Now().UTC()
}

func failed(st payment.Status, msg string) payment.Transaction {
	metrics.CheckoutsRejected.WithLabelValues(string(st)).Inc()
	return payment.Transaction{Status: st, Message: msg}
}

func rejection(err error) string {
	var ae *daraja.APIError
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return msgPushFailed
}

func accountReference(cartID string) string {
	return "CART_" + short(cartID)
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func snapshot(lines []cart.Line) payment.Items {
	items := make(payment.Items, 0, len(lines))
	for _, l := range lines {
		items = append(items, payment.Item{
			LineID:    l.ID,
			ArtworkID: l.Artwork.ID,
			Name:      l.Artwork.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.Artwork.UnitPrice,
		})
	}
	return items
}
