package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Izzienjeri/shoply-sub000/database"
	"github.com/jmoiron/sqlx"
)

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders (
		order_id, user_id, payment_transaction_id, delivery_option_id, total,
		status, payment_gateway_ref, created_at, updated_at
	) VALUES (
		:order_id, :user_id, :payment_transaction_id, :delivery_option_id, :total,
		:status, :payment_gateway_ref, :created_at, :updated_at
	)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return err
	}
	return nil
}

func CreateItem(ctx context.Context, db sqlx.ExtContext, it Item) error {
	const q = `
	INSERT INTO order_items (order_id, artwork_id, quantity, price_at_purchase)
	VALUES (:order_id, :artwork_id, :quantity, :price_at_purchase)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, it); err != nil {
		return err
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.QueryerContext, id string) (Order, error) {
	const q = `
	SELECT
		order_id, user_id, payment_transaction_id, delivery_option_id, total,
		status, payment_gateway_ref, created_at, updated_at
	FROM orders
	WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, database.ErrDBNotFound
		}
		return Order{}, err
	}
	return ord, nil
}

func FetchItems(ctx context.Context, db sqlx.QueryerContext, orderID string) ([]Item, error) {
	const q = `
	SELECT order_id, artwork_id, quantity, price_at_purchase
	FROM order_items
	WHERE order_id = $1
	ORDER BY artwork_id`

	var its []Item
	if err := sqlx.SelectContext(ctx, db, &its, q, orderID); err != nil {
		return nil, err
	}
	return its, nil
}

// lockStock returns the stock of an artwork, locking its row until the
// surrounding transaction ends.
func lockStock(ctx context.Context, db sqlx.QueryerContext, artworkID string) (int, error) {
	const q = `SELECT stock_quantity FROM artworks WHERE artwork_id = $1 FOR UPDATE`

	var stock int
	if err := sqlx.GetContext(ctx, db, &stock, q, artworkID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, database.ErrDBNotFound
		}
		return 0, err
	}
	return stock, nil
}

func decrementStock(ctx context.Context, db sqlx.ExecerContext, artworkID string, qty int, now time.Time) error {
	const q = `
	UPDATE artworks SET
		stock_quantity = stock_quantity - $1,
		updated_at = $2
	WHERE artwork_id = $3`

	if _, err := db.ExecContext(ctx, q, qty, now, artworkID); err != nil {
		return fmt.Errorf("decrementing stock of artwork[%s]: %w", artworkID, err)
	}
	return nil
}
