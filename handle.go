package bscript

import (
	"context"
	"fmt"
	"net/http"
)

// ResponseWriter implements the http.ResponseWriter but the underlying bytes are buffered. This allows the pipeline
// to reset the writer and formulate a completely new response, as long as nothing was committed yet.
type ResponseWriter interface {
	http.ResponseWriter
	Reset()
	Discard()
	Free()
	FlushBuffer() error
	Committed() bool
	SetStatus(code int)
}

// Handler mirrors http.Handler but it writes to a buffered response and can return an error.
type Handler interface {
	ServeBHTTP(ctx context.Context, w ResponseWriter, r *http.Request) error
}

// HandlerFunc allow casting a function to imple [Handler].
type HandlerFunc func(context.Context, ResponseWriter, *http.Request) error

// ServeBHTTP implements the [Handler] interface.
func (f HandlerFunc) ServeBHTTP(ctx context.Context, w ResponseWriter, r *http.Request) error {
	return f(ctx, w, r)
}

// BareHandler describes how middleware servers HTTP requests. In this library the signature for
// handling middleware [BareHandler] is different from the signature of "leaf" handlers: [Handler].
type BareHandler interface {
	ServeBareBHTTP(w ResponseWriter, r *http.Request) error
}

// BareHandlerFunc allow casting a function to an implementation of [Handler].
type BareHandlerFunc func(ResponseWriter, *http.Request) error

// ServeBareBHTTP implements the [Handler] interface.
func (f BareHandlerFunc) ServeBareBHTTP(w ResponseWriter, r *http.Request) error {
	return f(w, r)
}

// ToBare converts a leaf handler 'h' into a bare buffered handler.
func ToBare(h Handler) BareHandler {
	return BareHandlerFunc(func(w ResponseWriter, r *http.Request) error {
		return h.ServeBHTTP(r.Context(), w, r)
	})
}

type dispatchKey struct{}

// dispatch is the slot through which a re-dispatched request hands its writer to the handler and gets the error back.
type dispatch struct {
	w   ResponseWriter
	err error
}

// ToStd converts a bare handler into a standard library http.Handler. The implementation
// creates a buffered response writer and flushes it implicitly after serving the request.
// Requests re-dispatched by [ServeMux.Dispatch] keep the writer they already have.
func ToStd(h BareHandler, bufLimit int, logs Logger) http.Handler {
	return http.HandlerFunc(func(resp http.ResponseWriter, req *http.Request) {
		if d, ok := req.Context().Value(dispatchKey{}).(*dispatch); ok && d.w == resp {
			d.err = h.ServeBareBHTTP(d.w, req)
			return
		}

		bresp := NewResponseWriter(resp, bufLimit)
		defer bresp.Free()

		if err := h.ServeBareBHTTP(bresp, req); err != nil {
			renderError(bresp, err, logs)
		}

		if err := bresp.FlushBuffer(); err != nil {
			logs.LogImplicitFlushError(err)
		}
	})
}

// renderError replaces the response with a status page for err. Errors that don't carry a [Code] are logged and
// become a 500. When the headers are already committed there is nothing left to replace.
func renderError(w ResponseWriter, err error, logs Logger) {
	code := CodeOf(err)
	if code == CodeUnknown {
		logs.LogUnhandledServeError(err)
		code = CodeInternalServerError
	}

	if w.Committed() {
		return
	}

	w.Reset()
	writeStatusPage(w, code)
}

func writeStatusPage(w ResponseWriter, code Code) {
	switch code {
	case CodeNoContent, CodeNotModified:
		w.WriteHeader(int(code))
	default:
		// we don't want the client to end up with a white screen so we render the standard text.
		http.Error(w, statusText(code), int(code))
	}
}

func statusText(code Code) string {
	if txt := http.StatusText(int(code)); txt != "" {
		return txt
	}
	return fmt.Sprintf("Status %d", code)
}
