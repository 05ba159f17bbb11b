package bscript

import (
	"context"
	"net/http"
	"net/url"

	"github.com/cockroachdb/errors"
)

// DefaultMaxInternalRedirects bounds how often a single client request can be re-dispatched by [Exec].
const DefaultMaxInternalRedirects = 10

// Script is the code a request runs. Run is called on the request's [Task]; everything it does to the request goes
// through r and the control operations.
type Script interface {
	Run(r *Request) error
}

// ScriptFunc allows casting a function to a [Script].
type ScriptFunc func(r *Request) error

// Run implements [Script].
func (f ScriptFunc) Run(r *Request) error { return f(r) }

// Spawner runs tasks, see [Executor] and [ExecutorPool].
type Spawner interface {
	Spawn(ctx context.Context, t *Task, decide DecideFunc) <-chan Event
}

// Dispatcher serves a request from scratch. The pipeline uses it for internal redirects.
type Dispatcher interface {
	Dispatch(w ResponseWriter, r *http.Request) error
}

// PipelineConfig configures a [Pipeline].
type PipelineConfig struct {
	// ArenaLimit is the number of bytes each request can allocate for control state, negative for no limit.
	ArenaLimit int
	// MaxInternalRedirects bounds re-dispatching, zero means [DefaultMaxInternalRedirects].
	MaxInternalRedirects int
}

// Pipeline runs scripts for requests and acts on the decisions they record. Each time a script suspends the
// pipeline reads its [ControlState]: without a decision the script is resumed, otherwise the script is abandoned and
// the decision is carried out.
type Pipeline struct {
	cfg        PipelineConfig
	spawner    Spawner
	dispatcher Dispatcher
	logs       Logger
}

// NewPipeline inits a pipeline.
func NewPipeline(cfg PipelineConfig, spawner Spawner, dispatcher Dispatcher, logs Logger) *Pipeline {
	if cfg.MaxInternalRedirects <= 0 {
		cfg.MaxInternalRedirects = DefaultMaxInternalRedirects
	}

	return &Pipeline{cfg: cfg, spawner: spawner, dispatcher: dispatcher, logs: logs}
}

// Handler returns a bare handler that serves requests with s.
func (p *Pipeline) Handler(s Script) BareHandler {
	return BareHandlerFunc(func(w ResponseWriter, r *http.Request) error {
		req, ev := p.Run(w, r, s)
		defer req.Arena().Free()

		return p.finalize(w, r, req, ev)
	})
}

// Run runs s for r until it finishes or records a decision, and returns the request handle with the event that
// ended the script.
func (p *Pipeline) Run(w ResponseWriter, r *http.Request, s Script) (*Request, Event) {
	req := NewRequest(r, w, p.cfg.ArenaLimit, p.logs)
	task := NewTask(func(*Task) error { return s.Run(req) })
	req.Bind(task)

	ev := <-p.spawner.Spawn(r.Context(), task, func(Event) bool {
		return !req.ctl.Decided()
	})

	return req, ev
}

func (p *Pipeline) finalize(w ResponseWriter, r *http.Request, req *Request, ev Event) error {
	ctl := req.Control()

	switch {
	case ctl.Failure() != nil:
		return NewError(CodeInternalServerError, ctl.Failure())
	case ev.Status == TaskAbandoned:
		return errors.Wrap(ev.Err, "script abandoned")
	case ev.Err != nil:
		p.logs.LogScriptError(req.ID(), ev.Err)
		return NewError(CodeInternalServerError, ev.Err)
	}

	if uri, args, ok := ctl.Exec(); ok {
		return p.redispatch(w, r, uri, args)
	}

	if ctl.Exited() {
		return finalizeExit(w, ctl.ExitCode())
	}

	return nil
}

func finalizeExit(w ResponseWriter, code Code) error {
	switch {
	case w.Committed():
		return nil // only bookkeeping is left
	case code.IsRedirect():
		w.Discard()
		w.SetStatus(int(code))
		return nil
	case code.IsErrorClass():
		return NewError(code, errors.Newf("script exited with %d", code))
	case code >= CodeOK:
		w.SetStatus(int(code))
		return nil
	case code < 0:
		return NewError(CodeInternalServerError, errors.Newf("script exited with %d", code))
	default:
		return nil
	}
}

type redirectsKey struct{}

// InternalRedirects returns how often the request in ctx was re-dispatched.
func InternalRedirects(ctx context.Context) int {
	n, _ := ctx.Value(redirectsKey{}).(int)
	return n
}

func (p *Pipeline) redispatch(w ResponseWriter, r *http.Request, uri, args string) error {
	n := InternalRedirects(r.Context()) + 1
	if n > p.cfg.MaxInternalRedirects {
		return NewError(CodeInternalServerError,
			errors.Newf("rewrite or internal redirection cycle while internally redirecting to %q", uri))
	}

	target, err := url.Parse(uri)
	if err != nil {
		return NewError(CodeInternalServerError, errors.Wrapf(err, "parse internal redirect target %q", uri))
	}

	if target.Scheme != "" || target.Host != "" {
		return NewError(CodeInternalServerError, errors.Newf("internal redirect target %q is not a local uri", uri))
	}

	if w.Committed() {
		return errors.Newf("cannot internally redirect to %q, response already committed", uri)
	}

	w.Reset()

	r2 := r.Clone(context.WithValue(r.Context(), redirectsKey{}, n))
	r2.URL.Path, r2.URL.RawPath, r2.URL.RawQuery = target.Path, target.RawPath, args
	r2.RequestURI = r2.URL.RequestURI()

	return p.dispatcher.Dispatch(w, r2)
}
