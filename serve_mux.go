package bscript

import (
	"context"
	"log"
	"net/http"
	"runtime"
)

// ServeMux is an HTTP multiplexer with buffered responses, error handling, named routes and script routes. Scripts
// that redirect internally are dispatched through the same mux again.
type ServeMux struct {
	logs        Logger
	bufLimit    int
	reverser    *Reverser
	mux         *http.ServeMux
	pipeline    *Pipeline
	execs       *ExecutorPool
	middlewares struct {
		captured bool
		buffered []Middleware
	}
}

// NewServeMux creates a new ServeMux with default settings.
func NewServeMux() *ServeMux {
	return NewServeMuxWith(-1, NewStdLogger(log.Default()), http.NewServeMux(), NewReverser(),
		NewExecutorPool(runtime.GOMAXPROCS(0)), PipelineConfig{ArenaLimit: -1})
}

// NewServeMuxWith creates a ServeMux with custom settings. Script routes run on execs.
func NewServeMuxWith(
	bufLimit int, logger Logger, baseMux *http.ServeMux, reverser *Reverser, execs *ExecutorPool, cfg PipelineConfig,
) *ServeMux {
	m := &ServeMux{
		bufLimit: bufLimit,
		logs:     logger,
		reverser: reverser,
		mux:      baseMux,
		execs:    execs,
	}

	m.pipeline = NewPipeline(cfg, execs, m, logger)

	return m
}

// Reverse returns the url based on the name and parameter values.
func (m *ServeMux) Reverse(name string, vals ...string) (string, error) {
	return m.reverser.Reverse(name, vals...)
}

// Reverser returns the mux's named routes.
func (m *ServeMux) Reverser() *Reverser { return m.reverser }

// Use allows providing of middleware.
func (m *ServeMux) Use(mw ...Middleware) {
	m.ensureNoUseAfterHandle()
	m.middlewares.buffered = append(m.middlewares.buffered, mw...)
}

// HandleFunc handles the request given the pattern using a function.
func (m *ServeMux) HandleFunc(pattern string, handler HandlerFunc, name ...string) {
	m.Handle(pattern, handler, name...)
}

// HandleStd registers a standard library [http.Handler] for the given pattern. Middleware
// registered via [ServeMux.Use] is applied. See the package-level section
// "Standard library handlers and error ownership" for details on error handling behavior.
func (m *ServeMux) HandleStd(pattern string, handler http.Handler, name ...string) {
	m.Handle(pattern, HandlerFunc(func(_ context.Context, w ResponseWriter, r *http.Request) error {
		handler.ServeHTTP(w, r)
		return nil
	}), name...)
}

// Handle handles the request given a handler.
func (m *ServeMux) Handle(pattern string, handler Handler, name ...string) {
	m.handleBare(pattern, Wrap(handler, m.middlewares.buffered...), name...)
}

// HandleScript serves requests that match pattern by running s.
func (m *ServeMux) HandleScript(pattern string, s Script, name ...string) {
	m.handleBare(pattern, wrapBare(m.pipeline.Handler(s), m.middlewares.buffered...), name...)
}

// ServeHTTP makes the server mux implement the http.Handler interface.
func (m *ServeMux) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	m.mux.ServeHTTP(w, r)
}

// Dispatch serves r into the already buffered w, as if r was received by the mux. Routes registered on this mux
// write into w directly and their error is returned instead of rendered.
func (m *ServeMux) Dispatch(w ResponseWriter, r *http.Request) error {
	d := &dispatch{w: w}
	m.mux.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), dispatchKey{}, d)))

	return d.err
}

// Close stops the executors that run scripts.
func (m *ServeMux) Close() {
	m.execs.Close()
}

func (m *ServeMux) handleBare(pattern string, bh BareHandler, name ...string) {
	m.handle(pattern, ToStd(bh, m.bufLimit, m.logs), name...)
}

func (m *ServeMux) handle(pattern string, handler http.Handler, name ...string) {
	m.middlewares.captured = true

	if len(name) > 0 {
		pattern = m.reverser.Named(name[0], pattern)
	}

	m.mux.Handle(pattern, handler)
}

func (m *ServeMux) ensureNoUseAfterHandle() {
	if m.middlewares.captured {
		panic("bscript: cannot call Use() after calling Handle")
	}
}
