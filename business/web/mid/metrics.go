package mid

import (
	"context"
	"net/http"

	"github.com/ardanlabs/edublock/foundation/blockchain/metrics"
	"github.com/ardanlabs/edublock/foundation/web"
)

// Metrics updates program counters.
func Metrics() web.Middleware {
	m := func(handler web.Handler) web.Handler {
		h := func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
			err := handler(ctx, w, r)

			metrics.AddRequests()
			if err != nil {
				metrics.AddErrors()
			}

			return err
		}

		return h
	}

	return m
}
