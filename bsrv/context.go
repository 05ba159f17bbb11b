package bsrv

import (
	"context"
	"net/http"

	"github.com/advdv/bscript"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// RequestIDHeader carries the request id in and out of the server.
const RequestIDHeader = "X-Request-Id"

type ctxKey int

const ctxKeyRequestDep ctxKey = iota

// requestDep holds request-scoped dependencies available via context.
type requestDep struct {
	logger *zap.Logger
}

// withRequestDep injects dependencies into the request context.
func withRequestDep(d *requestDep) bscript.Middleware {
	return func(next bscript.BareHandler) bscript.BareHandler {
		return bscript.BareHandlerFunc(func(w bscript.ResponseWriter, r *http.Request) error {
			ctx := context.WithValue(r.Context(), ctxKeyRequestDep, d)
			return next.ServeBareBHTTP(w, r.WithContext(ctx))
		})
	}
}

// withRequestID gives every request an id, taken from the X-Request-Id header when the client sent one. Requests
// that were internally redirected keep the id they already have. The id is echoed in the response.
func withRequestID() bscript.Middleware {
	return func(next bscript.BareHandler) bscript.BareHandler {
		return bscript.BareHandlerFunc(func(w bscript.ResponseWriter, r *http.Request) error {
			id := bscript.RequestID(r.Context())
			if id == "" {
				if id = r.Header.Get(RequestIDHeader); id == "" || len(id) > 128 {
					id = uuid.NewString()
				}
				r = r.WithContext(bscript.WithRequestID(r.Context(), id))
			}

			w.Header().Set(RequestIDHeader, id)
			return next.ServeBareBHTTP(w, r)
		})
	}
}

func requestDepFromContext(ctx context.Context) *requestDep {
	d, ok := ctx.Value(ctxKeyRequestDep).(*requestDep)
	if !ok {
		panic("bsrv: requestDep not found in context; is the middleware configured?")
	}
	return d
}

// Log returns a zap logger from the context, correlated with the request id and trace.
func Log(ctx context.Context) *zap.Logger {
	d := requestDepFromContext(ctx)

	fields := traceFields(ctx)
	if id := bscript.RequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}

	return d.logger.With(fields...)
}

// Span returns the current trace span from the context.
func Span(ctx context.Context) trace.Span {
	return trace.SpanFromContext(ctx)
}

// traceFields extracts trace_id and span_id from the context for log correlation.
func traceFields(ctx context.Context) []zap.Field {
	span := trace.SpanFromContext(ctx)
	if !span.SpanContext().IsValid() {
		return nil
	}
	sc := span.SpanContext()
	return []zap.Field{
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	}
}
