package bsrv

import (
	"context"
	"net/http"

	"go.uber.org/fx"
)

// App wraps an fx.App for lifecycle management.
type App struct {
	app *fx.App
}

// AppConfig holds configuration for the app.
type AppConfig struct {
	ServerConfig
	FxOptions []fx.Option
}

// Option configures the App.
type Option func(*AppConfig)

// WithFx adds fx options for dependency injection. Use it to decorate or replace what the app provides, for
// example the script [Source].
func WithFx(fxOpts ...fx.Option) Option {
	return func(c *AppConfig) {
		c.FxOptions = append(c.FxOptions, fxOpts...)
	}
}

// WithHealthHandler sets a custom health check handler.
// If not set, a default handler returning 200 OK is used.
func WithHealthHandler(h func(http.ResponseWriter, *http.Request)) Option {
	return func(c *AppConfig) {
		c.HealthHandler = h
	}
}

// FxOptions returns the fx options that make up the app. [NewApp] and the bsrvtest package build on it.
func FxOptions(opts ...Option) []fx.Option {
	var cfg AppConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	baseOpts := make([]fx.Option, 0, 10+len(cfg.FxOptions))
	baseOpts = append(baseOpts, []fx.Option{
		fx.Provide(ParseEnv),
		fx.Provide(NewLogger),
		fx.Provide(NewMux),
		fx.Provide(NewTracerProvider),
		fx.Provide(NewPropagator),
		fx.Provide(NewSource),
		fx.Supply(cfg.ServerConfig),
		fx.Provide(NewServer),
		fx.Invoke(startServerHook),
		fx.Invoke(registerRoutes),
	}...)

	return append(baseOpts, cfg.FxOptions...)
}

// NewApp creates the script server: it reads its configuration from the environment, loads the routes manifest and
// scripts from the configured source and serves them.
//
//	bsrv.NewApp().Run()
func NewApp(opts ...Option) *App {
	return &App{
		app: fx.New(append([]fx.Option{fx.NopLogger}, FxOptions(opts...)...)...),
	}
}

// Err returns the error that occurred while building the app, if any.
func (a *App) Err() error {
	return a.app.Err()
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() {
	a.app.Run()
}

// Start starts the application and blocks until ctx is done, then stops it.
func (a *App) Start(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.app.StopTimeout())
	defer cancel()

	return a.app.Stop(stopCtx)
}
