package web_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ardanlabs/edublock/foundation/validate"
	"github.com/ardanlabs/edublock/foundation/web"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApp(t *testing.T) {
	shutdown := make(chan os.Signal, 1)

	var order []string
	mw := func(name string) web.Middleware {
		return func(handler web.Handler) web.Handler {
			return func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
				order = append(order, name)
				return handler(ctx, w, r)
			}
		}
	}

	app := web.NewApp(shutdown, mw("first"), mw("second"))

	app.Handle(http.MethodGet, "v1", "/blocks/:number", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		v, err := web.GetValues(ctx)
		if err != nil {
			return err
		}

		resp := struct {
			Number  string `json:"number"`
			TraceID string `json:"trace_id"`
		}{
			Number:  web.Param(r, "number"),
			TraceID: v.TraceID,
		}

		return web.Respond(ctx, w, resp, http.StatusOK)
	}, mw("route"))

	app.Handle(http.MethodPost, "v1", "/fail", func(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
		return web.NewShutdownError("integrity issue")
	})

	w := httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/blocks/12", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"number":"12"`)
	assert.Equal(t, []string{"first", "second", "route"}, order)

	w = httptest.NewRecorder()
	app.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/fail", nil))

	select {
	case <-shutdown:
	case <-time.After(time.Second):
		t.Fatal("shutdown was not signaled")
	}
}

func TestDecode(t *testing.T) {
	var msg struct {
		Host string `json:"host" validate:"required"`
	}

	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"host":"node1:9080"}`))
	require.NoError(t, web.Decode(r, &msg))
	assert.Equal(t, "node1:9080", msg.Host)

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"host":""}`))
	err := web.Decode(r, &msg)
	require.Error(t, err)
	assert.True(t, validate.IsFieldErrors(err))

	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"unknown":1}`))
	require.Error(t, web.Decode(r, &msg))

	// Slices are decoded without validation.
	var list []int
	r = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`[1,2,3]`))
	require.NoError(t, web.Decode(r, &list))
	assert.Len(t, list, 3)
}

func TestRespondNoContent(t *testing.T) {
	w := httptest.NewRecorder()
	require.NoError(t, web.Respond(context.Background(), w, nil, http.StatusNoContent))
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.String())
}
