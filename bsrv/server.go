package bsrv

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/advdv/bscript"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// ServerConfig holds optional configuration for the HTTP server.
type ServerConfig struct {
	HealthHandler func(http.ResponseWriter, *http.Request)
}

// ServerParams holds the dependencies for creating an HTTP server.
type ServerParams struct {
	fx.In

	Env        Environment
	Mux        *Mux
	Logger     *zap.Logger
	TracerProv trace.TracerProvider
	Propagator propagation.TextMapPropagator
}

// NewServer creates an HTTP server with all middleware and the health endpoint configured. Script routes are added
// to the mux afterwards, see [LoadRoutes].
func NewServer(params ServerParams, cfg ServerConfig) *http.Server {
	d := &requestDep{
		logger: params.Logger,
	}

	params.Mux.Use(withRequestDep(d))
	params.Mux.Use(withRequestID())
	params.Mux.Use(withRecover())

	// Tracing is disabled for the health path to avoid noisy orphan traces from probes.
	healthPath := params.Env.ReadinessCheckPath
	healthHandler := cfg.HealthHandler
	if healthHandler == nil {
		healthHandler = defaultHealthHandler
	}
	params.Mux.HandleFunc("GET "+healthPath, func(_ context.Context, w bscript.ResponseWriter, r *http.Request) error {
		healthHandler(w, r)
		return nil
	})

	handler := withTracing(params.TracerProv, params.Propagator, params.Env.ServiceName, healthPath)(params.Mux)
	if params.Env.H2C {
		handler = h2c.NewHandler(handler, &http2.Server{})
	}

	return &http.Server{
		Addr:              fmt.Sprintf(":%d", params.Env.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// withRecover turns a panic in a handler into an error so the client gets a 500 instead of a dropped connection.
func withRecover() bscript.Middleware {
	return func(next bscript.BareHandler) bscript.BareHandler {
		return bscript.BareHandlerFunc(func(w bscript.ResponseWriter, r *http.Request) (err error) {
			defer func() {
				if v := recover(); v != nil {
					Log(r.Context()).Error("recovered from panic", zap.Any("panic", v))
					err = errors.Newf("panic: %v", v)
				}
			}()

			return next.ServeBareBHTTP(w, r)
		})
	}
}

// startServerHook registers lifecycle hooks for the HTTP server.
func startServerHook(lc fx.Lifecycle, server *http.Server, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting server", zap.String("addr", server.Addr))
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server error", zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("stopping server")
			return server.Shutdown(ctx)
		},
	})
}

func defaultHealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}
