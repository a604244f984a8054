// Package checkout runs checkout attempts: it validates the cart and the
// delivery selection, asks the gateway for a payment and tracks the payment
// until its single outcome.
package checkout

import (
	"errors"

	"github.com/Izzienjeri/shoply-sub000/core/delivery"
	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/shopspring/decimal"
)

var (
	ErrEmptyCart        = errors.New("no purchasable items in cart")
	ErrNonPositiveTotal = errors.New("checkout total must be greater than zero")
	ErrInvalidRequest   = errors.New("invalid checkout request")
	ErrRateLimited      = errors.New("too many checkout attempts")
	ErrSubmitting       = errors.New("a checkout is already being submitted")
	ErrNoAttempt        = errors.New("no checkout attempt")
)

// RequestNew is what the shopper sends to start a checkout.
type RequestNew struct {
	ContactID        string               `json:"contactId" validate:"required,msisdn"`
	DeliveryOptionID string               `json:"deliveryOptionId"`
	Fulfillment      delivery.Fulfillment `json:"fulfillment"`
}

// Request is one submission to the gateway. A new attempt always builds a
// new Request.
type Request struct {
	ContactID        string          `json:"contactId" validate:"required,msisdn"`
	DeliveryOptionID string          `json:"deliveryOptionId" validate:"required"`
	Amount           decimal.Decimal `json:"amount"`
}

// View is an attempt as shown to its principal. Retry is set once the
// payment failed and a new attempt may be started.
type View struct {
	AttemptID string `json:"attemptId"`
	payment.Transaction
	Amount           decimal.Decimal `json:"amount"`
	DeliveryOptionID string          `json:"deliveryOptionId"`
	Retry            bool            `json:"retry"`
}
