// Package order turns confirmed payments into orders.
package order

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Izzienjeri/shoply-sub000/core/cart"
	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/Izzienjeri/shoply-sub000/database"
	"github.com/Izzienjeri/shoply-sub000/validate"
	"github.com/jmoiron/sqlx"
)

// ErrInsufficientStock is returned when an artwork sold out between the
// payment request and its confirmation.
var ErrInsufficientStock = errors.New("insufficient stock")

// Materializer creates orders for confirmed payments.
type Materializer struct {
	DB  *sqlx.DB
	Now func() time.Time
}

func NewMaterializer(db *sqlx.DB) *Materializer {
	return &Materializer{DB: db, Now: func() time.Time { return time.Now().UTC() }}
}

// Materialize writes the order for rec and resolves the ledger row with
// out, all in one transaction. Stock is checked and decremented
// under row locks, and the purchased lines leave the cart.
func (m *Materializer) Materialize(ctx context.Context, rec payment.Record, out payment.Outcome) (string, error) {
	var orderID string

	err := database.Transaction(ctx, m.DB, func(tx sqlx.ExtContext) error {
		now := m.Now()

		cur, err := payment.FetchForUpdate(ctx, tx, rec.Reference)
		if err != nil {
			return fmt.Errorf("locking transaction: %w", err)
		}
		if cur.Status.Terminal() {
			return payment.ErrAlreadyResolved
		}

		for _, it := range cur.Items {
			stock, err := lockStock(ctx, tx, it.ArtworkID)
			if err != nil {
				return fmt.Errorf("locking artwork[%s]: %w", it.ArtworkID, err)
			}
			if stock < it.Quantity {
				return fmt.Errorf("%w for %q: %d left, %d bought", ErrInsufficientStock, it.Name, stock, it.Quantity)
			}
			if err := decrementStock(ctx, tx, it.ArtworkID, it.Quantity, now); err != nil {
				return err
			}
		}

		ord := Order{
			ID:                   validate.GenerateID(),
			UserID:               cur.Principal,
			PaymentTransactionID: cur.ID,
			DeliveryOptionID:     cur.DeliveryOptionID,
			Total:                cur.Amount,
			Status:               Paid,
			PaymentGatewayRef:    out.Receipt,
			CreatedAt:            now,
			UpdatedAt:            now,
		}
		if err := Create(ctx, tx, ord); err != nil {
			return fmt.Errorf("creating order: %w", err)
		}

		lineIDs := make([]string, 0, len(cur.Items))
		for _, it := range cur.Items {
			item := Item{
				OrderID:         ord.ID,
				ArtworkID:       it.ArtworkID,
				Quantity:        it.Quantity,
				PriceAtPurchase: it.UnitPrice,
			}
			if err := CreateItem(ctx, tx, item); err != nil {
				return fmt.Errorf("creating item: %w", err)
			}
			lineIDs = append(lineIDs, it.LineID)
		}

		if err := cart.DeleteLines(ctx, tx, cur.CartID, lineIDs); err != nil {
			return err
		}

		out.OrderID = ord.ID
		applied, err := payment.Resolve(ctx, tx, cur.Reference, out, now)
		if err != nil {
			return fmt.Errorf("resolving transaction: %w", err)
		}
		if !applied {
			return payment.ErrAlreadyResolved
		}

		orderID = ord.ID
		return nil
	})

	if err != nil {
		return "", fmt.Errorf("materializing order for payment[%s]: %w", rec.Reference, err)
	}
	return orderID, nil
}
