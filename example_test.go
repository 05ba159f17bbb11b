package bscript_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"

	"github.com/advdv/bscript"
	"github.com/cockroachdb/errors"
)

func Example() {
	mux := bscript.NewServeMux()
	defer mux.Close()

	mux.HandleFunc("GET /items/{id}", func(_ context.Context, w bscript.ResponseWriter, r *http.Request) error {
		fmt.Fprintf(w, "item %s, %s", r.PathValue("id"), r.URL.RawQuery)
		return nil
	}, "get-item")

	// old urls are served by the item route without the client noticing
	mux.HandleScript("GET /legacy/{id}", bscript.ScriptFunc(func(r *bscript.Request) error {
		target, err := mux.Reverse("get-item", "42")
		if err != nil {
			return err
		}

		return bscript.Exec(r, target, "from=legacy")
	}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/legacy/42", nil))

	fmt.Println(rec.Code, rec.Body.String())
	// Output:
	// 200 item 42, from=legacy
}

func ExampleRedirect() {
	mux := bscript.NewServeMux()
	defer mux.Close()

	mux.HandleScript("GET /old", bscript.ScriptFunc(func(r *bscript.Request) error {
		return bscript.Redirect(r, "/new", bscript.CodeMovedPermanently)
	}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/old", nil))

	fmt.Println(rec.Code, rec.Header().Get("Location"))
	// Output:
	// 301 /new
}

func ExampleExit() {
	mux := bscript.NewServeMux()
	defer mux.Close()

	mux.HandleScript("GET /private", bscript.ScriptFunc(func(r *bscript.Request) error {
		if r.RequestHeader().Get("Authorization") == "" {
			return bscript.Exit(r, bscript.CodeForbidden)
		}

		return r.Print("welcome")
	}))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/private", nil))
	fmt.Println("No token:", rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer secret")
	mux.ServeHTTP(rec, req)
	fmt.Println("Token:", rec.Code, rec.Body.String())
	// Output:
	// No token: 403
	// Token: 200 welcome
}

func ExampleServeMux_Use() {
	mux := bscript.NewServeMux()
	defer mux.Close()

	mux.Use(func(next bscript.BareHandler) bscript.BareHandler {
		return bscript.BareHandlerFunc(func(w bscript.ResponseWriter, r *http.Request) error {
			w.Header().Set("X-Request-ID", "req-123")
			return next.ServeBareBHTTP(w, r)
		})
	})

	mux.HandleFunc("GET /ping", func(_ context.Context, w bscript.ResponseWriter, _ *http.Request) error {
		fmt.Fprint(w, "pong")
		return nil
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	fmt.Println("Body:", rec.Body.String())
	fmt.Println("Request ID:", rec.Header().Get("X-Request-ID"))
	// Output:
	// Body: pong
	// Request ID: req-123
}

func ExampleCodeOf() {
	err := bscript.NewError(bscript.CodeNotFound, errors.New("user not found"))
	fmt.Println("Code:", bscript.CodeOf(err))

	// Wrapped errors preserve the code
	wrapped := errors.Wrap(err, "handler failed")
	fmt.Println("Wrapped code:", bscript.CodeOf(wrapped))

	fmt.Println("Plain error code:", bscript.CodeOf(errors.New("something went wrong")))
	// Output:
	// Code: 404
	// Wrapped code: 404
	// Plain error code: 0
}
