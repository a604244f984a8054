package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/Izzienjeri/shoply-sub000/api/web"
	"github.com/Izzienjeri/shoply-sub000/api/weberr"
	"github.com/Izzienjeri/shoply-sub000/core/claims"
	"github.com/Izzienjeri/shoply-sub000/core/delivery"
	"github.com/Izzienjeri/shoply-sub000/core/payment"
)

func HandleStart(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		var rn RequestNew
		if err := web.Decode(w, r, &rn); err != nil {
			return weberr.BadRequest(fmt.Errorf("unable to decode payload: %w", err))
		}

		view, err := svc.Start(ctx, clm, rn)
		switch {
		case errors.Is(err, ErrRateLimited):
			return weberr.TooManyRequests(err)
		case errors.Is(err, ErrSubmitting):
			return weberr.Conflict(err)
		case errors.Is(err, ErrInvalidRequest),
			errors.Is(err, ErrEmptyCart),
			errors.Is(err, ErrNonPositiveTotal),
			errors.Is(err, delivery.ErrNoSelection),
			errors.Is(err, delivery.ErrStaleSelection):
			return weberr.Unprocessable(err)
		case err != nil:
			return fmt.Errorf("starting checkout for user[%s]: %w", clm.UserID, err)
		}

		fields := weberr.WithFields(map[string]interface{}{
			"principal":  clm.UserID,
			"attempt_id": view.AttemptID,
			"reference":  view.Reference,
			"status":     view.Status,
		})
		cause := fmt.Errorf("checkout attempt %s: %s", view.AttemptID, view.Message)

		// a failed start still answers with the attempt so the shopper can retry
		switch view.Status {
		case payment.FailedSTKInitiation, payment.FailedSTKMissingID:
			return weberr.Wrap(weberr.BadGateway(cause), weberr.WithResponse(view, http.StatusBadGateway), fields)
		case payment.FailedProcessingError:
			return weberr.Wrap(weberr.InternalError(cause), weberr.WithResponse(view, http.StatusInternalServerError), fields)
		}
		return web.Respond(ctx, w, view, http.StatusAccepted)
	}
}

func HandleCurrent(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		view, err := svc.Current(clm.UserID)
		if err != nil {
			return weberr.NotFound(err)
		}

		return web.Respond(ctx, w, view, http.StatusOK)
	}
}

func HandleAbandon(svc *Service) web.Handler {
	return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		clm, err := claims.Get(ctx)
		if err != nil {
			return weberr.NotAuthorized(errors.New("user not authenticated"))
		}

		if err := svc.Abandon(clm.UserID); err != nil {
			return weberr.NotFound(err)
		}

		return web.Respond(ctx, w, nil, http.StatusNoContent)
	}
}
