package delivery

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Izzienjeri/shoply-sub000/api/web"
	"github.com/Izzienjeri/shoply-sub000/api/weberr"
	"github.com/jmoiron/sqlx"
)

// HandleList serves the options a shopper can pick for a fulfillment type.
func HandleList(db *sqlx.DB) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		f, err := ParseFulfillment(r.URL.Query().Get("fulfillment"))
		if err != nil {
			return weberr.BadRequest(err)
		}

		opts, err := List(ctx, db)
		if err != nil {
			return fmt.Errorf("listing delivery options: %w", err)
		}

		return web.Respond(ctx, w, Select(opts, f), http.StatusOK)
	}
}
