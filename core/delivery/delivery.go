package delivery

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrNoSelection means checkout was attempted without picking an option.
	ErrNoSelection = errors.New("no delivery option selected")

	// ErrStaleSelection means the selected option is inactive or does not
	// match the requested fulfillment type any more. The shopper has to pick
	// again.
	ErrStaleSelection = errors.New("selected delivery option is no longer available")
)

type Fulfillment string

const (
	Pickup   Fulfillment = "pickup"
	Shipping Fulfillment = "delivery"
)

func ParseFulfillment(s string) (Fulfillment, error) {
	switch f := Fulfillment(s); f {
	case Pickup, Shipping:
		return f, nil
	}
	return "", fmt.Errorf("unknown fulfillment type %q", s)
}

type Option struct {
	ID        string          `json:"id" db:"delivery_option_id"`
	Name      string          `json:"name" db:"name"`
	Fee       decimal.Decimal `json:"fee" db:"fee"`
	IsPickup  bool            `json:"isPickup" db:"is_pickup"`
	Active    bool            `json:"active" db:"is_active"`
	SortOrder int             `json:"-" db:"sort_order"`
}

func (o Option) Fulfillment() Fulfillment {
	if o.IsPickup {
		return Pickup
	}
	return Shipping
}

// Select keeps the active options of the requested fulfillment type, in the
// order they were given.
func Select(options []Option, f Fulfillment) []Option {
	out := make([]Option, 0, len(options))
	for _, o := range options {
		if o.Active && o.Fulfillment() == f {
			out = append(out, o)
		}
	}
	return out
}

// Resolve returns the selected option if it is still part of Select(options, f).
func Resolve(options []Option, f Fulfillment, selectedID string) (Option, error) {
	if selectedID == "" {
		return Option{}, ErrNoSelection
	}

	for _, o := range Select(options, f) {
		if o.ID == selectedID {
			return o, nil
		}
	}
	return Option{}, ErrStaleSelection
}

func Total(subtotal decimal.Decimal, o Option) decimal.Decimal {
	return subtotal.Add(o.Fee)
}
