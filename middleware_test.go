package bscript_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/bscript"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

func tracing(res *string, name string) bscript.Middleware {
	return func(next bscript.BareHandler) bscript.BareHandler {
		return bscript.BareHandlerFunc(func(w bscript.ResponseWriter, r *http.Request) error {
			*res += name + "("
			err := next.ServeBareBHTTP(w, r)
			*res += ")" + name

			if err != nil {
				return errors.Wrap(err, name)
			}

			return nil
		})
	}
}

// recoverer turns panics into errors.
func recoverer(next bscript.BareHandler) bscript.BareHandler {
	return bscript.BareHandlerFunc(func(w bscript.ResponseWriter, r *http.Request) (err error) {
		defer func() {
			if e := recover(); e != nil {
				err = bscript.NewError(bscript.CodeServiceUnavailable, errors.Newf("recovered: %v", e))
			}
		}()

		return next.ServeBareBHTTP(w, r)
	})
}

func TestWrapOrder(t *testing.T) {
	var res string

	inner := bscript.HandlerFunc(func(ctx context.Context, _ bscript.ResponseWriter, _ *http.Request) error {
		res += fmt.Sprintf("inner %v", ctx.Value(ctxKey("mw_path")))
		return errors.New("inner error")
	})

	h := bscript.Wrap(inner, tracing(&res, "1"), tracing(&res, "2"), tracing(&res, "3"))

	rec, req := httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)
	err := h.ServeBareBHTTP(bscript.NewResponseWriter(rec, -1), req)

	require.Equal(t, "1(2(3(inner <nil>)3)2)1", res)
	require.EqualError(t, err, "1: 2: 3: inner error")
}

func TestWrapWithoutMiddleware(t *testing.T) {
	called := false
	h := bscript.Wrap(bscript.HandlerFunc(func(context.Context, bscript.ResponseWriter, *http.Request) error {
		called = true
		return nil
	}))

	rec, req := httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)
	require.NoError(t, h.ServeBareBHTTP(bscript.NewResponseWriter(rec, -1), req))
	require.True(t, called)
}

func TestMiddlewareRecoversScriptRoutes(t *testing.T) {
	mux := bscript.NewServeMux()
	defer mux.Close()

	mux.Use(recoverer)
	mux.HandleFunc("GET /panic", func(_ context.Context, w bscript.ResponseWriter, _ *http.Request) error {
		w.Header().Set("X-Foo", "bar")
		fmt.Fprint(w, "some body") // reset by the error response

		panic("some panic")
	})

	rec, req := httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/panic", nil)
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Empty(t, rec.Header().Get("X-Foo"))
	require.Equal(t, "Service Unavailable\n", rec.Body.String())
}
