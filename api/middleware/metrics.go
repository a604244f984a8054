package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/Izzienjeri/shoply-sub000/api/web"
	"github.com/Izzienjeri/shoply-sub000/metrics"
	"github.com/gorilla/mux"
	"github.com/zenazn/goji/web/mutil"
)

// Metrics records request counts and latencies labelled by route template,
// so ids in the path do not explode label cardinality.
func Metrics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			start := time.Now()

			lw := mutil.WrapWriter(w)
			err := handler(ctx, lw, r)

			path := r.URL.Path
			if route := mux.CurrentRoute(r); route != nil {
				if tpl, terr := route.GetPathTemplate(); terr == nil {
					path = tpl
				}
			}

			status := lw.Status()
			if status == 0 {
				status = http.StatusOK
			}

			metrics.HTTPRequests.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
			metrics.HTTPDuration.WithLabelValues(r.Method, path).Observe(float64(time.Since(start).Milliseconds()))
			return err
		}
		return h
	}
	return m
}
