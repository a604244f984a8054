package cart

import (
	"context"
	"fmt"

	"github.com/Izzienjeri/shoply-sub000/database"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

type lineRow struct {
	CartID        string              `db:"cart_id"`
	LineID        *string             `db:"cart_item_id"`
	Quantity      *int                `db:"quantity"`
	ArtworkID     *string             `db:"artwork_id"`
	Name          *string             `db:"name"`
	Price         decimal.NullDecimal `db:"price"`
	StockQuantity *int                `db:"stock_quantity"`
	Active        *bool               `db:"is_active"`
	ArtistActive  *bool               `db:"artist_is_active"`
}

// Fetch reads the principal's cart together with a snapshot of every
// artwork it references. It returns database.ErrDBNotFound when the
// principal has no cart.
func Fetch(ctx context.Context, db sqlx.QueryerContext, principal string) (Cart, error) {
	const q = `
	SELECT
		c.cart_id,
		ci.cart_item_id,
		ci.quantity,
		a.artwork_id,
		a.name,
		a.price,
		a.stock_quantity,
		a.is_active,
		ar.is_active AS artist_is_active
	FROM carts c
		LEFT JOIN cart_items ci ON ci.cart_id = c.cart_id
		LEFT JOIN artworks a ON a.artwork_id = ci.artwork_id
		LEFT JOIN artists ar ON ar.artist_id = a.artist_id
	WHERE c.user_id = $1
	ORDER BY ci.created_at, ci.cart_item_id`

	var rows []lineRow
	if err := sqlx.SelectContext(ctx, db, &rows, q, principal); err != nil {
		return Cart{}, fmt.Errorf("selecting cart of user[%s]: %w", principal, err)
	}

	if len(rows) == 0 {
		return Cart{}, database.ErrDBNotFound
	}

	c := Cart{
		ID:        rows[0].CartID,
		Principal: principal,
		Lines:     make([]Line, 0, len(rows)),
	}
	for _, r := range rows {
		if r.LineID == nil {
			continue
		}
		c.Lines = append(c.Lines, Line{
			ID:       *r.LineID,
			Quantity: deref(r.Quantity),
			Artwork: ArtworkSnapshot{
				ID:            deref(r.ArtworkID),
				Name:          deref(r.Name),
				UnitPrice:     r.Price.Decimal,
				StockQuantity: deref(r.StockQuantity),
				Active:        deref(r.Active),
				ArtistActive:  deref(r.ArtistActive),
			},
		})
	}

	return c, nil
}

// DeleteLines removes the given lines from a cart. Used once their artworks
// have been bought.
func DeleteLines(ctx context.Context, db sqlx.ExtContext, cartID string, lineIDs []string) error {
	if len(lineIDs) == 0 {
		return nil
	}

	q, args, err := sqlx.In(`DELETE FROM cart_items WHERE cart_id = ? AND cart_item_id IN (?)`, cartID, lineIDs)
	if err != nil {
		return fmt.Errorf("building delete: %w", err)
	}

	if _, err := db.ExecContext(ctx, db.Rebind(q), args...); err != nil {
		return fmt.Errorf("deleting lines of cart[%s]: %w", cartID, err)
	}
	return nil
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}
