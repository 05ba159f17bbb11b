package bsrv

import (
	"context"
	"net/http"
	"time"

	"github.com/advdv/bscript"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sourceLoadTimeout = 30 * time.Second

// Mux is an alias for bscript.ServeMux.
type Mux = bscript.ServeMux

// NewMux creates the mux configured from the environment. Its executors are stopped with the app.
func NewMux(lc fx.Lifecycle, env Environment, logger *zap.Logger) *Mux {
	mux := bscript.NewServeMuxWith(
		env.BufferLimit,
		newZapScriptLogger(logger),
		http.NewServeMux(),
		bscript.NewReverser(),
		bscript.NewExecutorPool(env.workers()),
		bscript.PipelineConfig{
			ArenaLimit:           env.ArenaLimit,
			MaxInternalRedirects: env.MaxInternalRedirects,
		},
	)

	lc.Append(fx.StopHook(mux.Close))

	return mux
}

// registerRoutes loads the script routes from the source onto the mux.
func registerRoutes(mux *Mux, src Source, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), sourceLoadTimeout)
	defer cancel()

	routes, err := LoadRoutes(ctx, mux, src)
	if err != nil {
		return err
	}

	for _, rt := range routes {
		logger.Info("registered script route",
			zap.String("pattern", rt.Pattern),
			zap.String("mount", rt.Mount),
			zap.String("script", rt.Script),
			zap.String("name", rt.Name))
	}

	logger.Debug("named routes", zap.Strings("names", mux.Reverser().Names()))

	return nil
}
