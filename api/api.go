package api

import (
	"context"
	"net/http"

	"github.com/Izzienjeri/shoply-sub000/api/middleware"
	"github.com/Izzienjeri/shoply-sub000/api/web"
	"github.com/Izzienjeri/shoply-sub000/cache"
	"github.com/Izzienjeri/shoply-sub000/core/auth"
	"github.com/Izzienjeri/shoply-sub000/core/cart"
	"github.com/Izzienjeri/shoply-sub000/core/checkout"
	"github.com/Izzienjeri/shoply-sub000/core/delivery"
	"github.com/Izzienjeri/shoply-sub000/core/payment"
	"github.com/gorilla/mux"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type APIConfig struct {
	CorsOrigin   string
	Log          logrus.FieldLogger
	DB           *sqlx.DB
	Views        cache.Views
	Verifier     auth.Verifier
	Checkout     *checkout.Service
	Ledger       payment.Ledger
	Materializer payment.Materializer
	Publisher    payment.Publisher
}

type api struct {
	*mux.Router
	mw  []web.Middleware
	log logrus.FieldLogger
}

func APIMux(cfg APIConfig) http.Handler {
	a := &api{
		Router: mux.NewRouter(),
		log:    cfg.Log,
	}

	a.mw = append(a.mw, middleware.RequestID())
	a.mw = append(a.mw, middleware.Logger(cfg.Log))
	a.mw = append(a.mw, middleware.Metrics())
	a.mw = append(a.mw, middleware.Errors(cfg.Log))
	a.mw = append(a.mw, middleware.Panics())

	if cfg.CorsOrigin != "" {
		a.mw = append(a.mw, middleware.Cors(cfg.CorsOrigin))

		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			w.WriteHeader(http.StatusNoContent)
			return nil
		}

		a.Handle(http.MethodOptions, "/{path:.*}", h)
	}

	authen := auth.Authenticate(cfg.Verifier)

	a.Handle(http.MethodGet, "/cart/summary", cart.HandleSummary(cfg.DB, cfg.Views, cfg.Log), authen)
	a.Handle(http.MethodGet, "/delivery/options", delivery.HandleList(cfg.DB))

	a.Handle(http.MethodPost, "/checkout", checkout.HandleStart(cfg.Checkout), authen)
	a.Handle(http.MethodGet, "/checkout", checkout.HandleCurrent(cfg.Checkout), authen)
	a.Handle(http.MethodDelete, "/checkout", checkout.HandleAbandon(cfg.Checkout), authen)

	a.Handle(http.MethodPost, "/payments/callback", payment.HandleCallback(cfg.Ledger, cfg.Materializer, cfg.Publisher, cfg.Log))
	a.Handle(http.MethodGet, "/payments/{reference}", payment.HandleStatus(cfg.Ledger), authen)

	a.Router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return a.Router
}

func (a *api) Handle(method string, path string, handler web.Handler, mw ...web.Middleware) {

	handler = web.WrapMiddleware(mw, handler)

	handler = web.WrapMiddleware(a.mw, handler)

	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {

		ctx := r.Context()

		if err := handler(ctx, w, r); err != nil {

			a.log.WithFields(logrus.Fields{
				"req_id":  middleware.ContextRequestID(ctx),
				"message": err,
			}).Error("ERROR")
		}
	})

	a.Router.Handle(path, h).Methods(method)
}
