package checkout

import (
	"context"

	"github.com/Izzienjeri/shoply-sub000/core/cart"
	"github.com/Izzienjeri/shoply-sub000/core/delivery"
	"github.com/jmoiron/sqlx"
)

// Catalog reads what a checkout is validated against.
type Catalog interface {
	Cart(ctx context.Context, principal string) (cart.Cart, error)
	DeliveryOptions(ctx context.Context) ([]delivery.Option, error)
}

type DBCatalog struct {
	DB *sqlx.DB
}

func (c DBCatalog) Cart(ctx context.Context, principal string) (cart.Cart, error) {
	return cart.Fetch(ctx, c.DB, principal)
}

func (c DBCatalog) DeliveryOptions(ctx context.Context) ([]delivery.Option, error) {
	return delivery.List(ctx, c.DB)
}
