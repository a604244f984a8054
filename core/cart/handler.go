package cart

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Izzienjeri/shoply-sub000/api/web"
	"github.com/Izzienjeri/shoply-sub000/api/weberr"
	"github.com/Izzienjeri/shoply-sub000/cache"
	"github.com/Izzienjeri/shoply-sub000/core/claims"
	"github.com/Izzienjeri/shoply-sub000/database"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

// Summary is the checkout view of a cart.
type Summary struct {
	CartID string `json:"cartId,omitempty"`
	Availability
	Issues map[string]Issue `json:"issues"`
}

func Summarize(c Cart) Summary {
	av := Evaluate(c)

	issues := make(map[string]Issue, len(av.Unpurchasable))
	for _, l := range av.Unpurchasable {
		if is := l.Issue(); is != IssueNone {
			issues[l.ID] = is
		}
	}

	return Summary{CartID: c.ID, Availability: av, Issues: issues}
}

func HandleSummary(db *sqlx.DB, views cache.Views, log logrus.FieldLogger) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		key := cache.CartKey(clm.UserID)

		var sum Summary
		err = views.Get(ctx, key, &sum)
		if err == nil {
			return web.Respond(ctx, w, sum, http.StatusOK)
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			log.WithError(err).WithField("principal", clm.UserID).Warn("reading cached cart summary")
		}

		c, err := Fetch(ctx, db, clm.UserID)
		switch {
		case errors.Is(err, database.ErrDBNotFound):
			c = Cart{Principal: clm.UserID}
		case err != nil:
			return fmt.Errorf("fetching cart: %w", err)
		}

		sum = Summarize(c)
		if err := views.Set(ctx, key, sum); err != nil {
			log.WithError(err).WithField("principal", clm.UserID).Warn("caching cart summary")
		}

		return web.Respond(ctx, w, sum, http.StatusOK)
	}
}
