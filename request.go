package bscript

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

type ctxKey int

const ctxKeyRequestID ctxKey = iota

// WithRequestID returns a context that carries the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

// RequestID returns the request id carried by ctx, or an empty string.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// Request is the handle every control operation takes. It ties the in-flight http request to its buffered response,
// its [ControlState], its [Arena] and the [Task] that runs its script. A Request is created per dispatch, an internal
// redirect gets a fresh one.
type Request struct {
	ctx    context.Context
	id     string
	method string
	uri    string
	args   string
	header http.Header
	resp   ResponseWriter
	ctl    ControlState
	arena  *Arena
	task   *Task
	logs   Logger
}

// NewRequest inits the handle for r whose response is written to w. Strings kept by the control operations are
// allocated from an arena of at most arenaLimit bytes.
func NewRequest(r *http.Request, w ResponseWriter, arenaLimit int, logs Logger) *Request {
	id := RequestID(r.Context())
	if id == "" {
		id = uuid.NewString()
	}

	return &Request{
		ctx:    r.Context(),
		id:     id,
		method: r.Method,
		uri:    r.URL.Path,
		args:   r.URL.RawQuery,
		header: r.Header,
		resp:   w,
		arena:  NewArena(arenaLimit),
		logs:   logs,
	}
}

func (r *Request) Context() context.Context { return r.ctx }
func (r *Request) ID() string               { return r.id }
func (r *Request) Method() string           { return r.method }
func (r *Request) URI() string              { return r.uri }
func (r *Request) Args() string             { return r.args }

// RequestHeader returns the header the client sent.
func (r *Request) RequestHeader() http.Header { return r.header }

// Header returns the response header.
func (r *Request) Header() http.Header { return r.resp.Header() }

// Control returns the request's control state.
func (r *Request) Control() *ControlState { return &r.ctl }

// Arena returns the request's memory scope.
func (r *Request) Arena() *Arena { return r.arena }

// Response returns the buffered response.
func (r *Request) Response() ResponseWriter { return r.resp }

// Bind attaches the task that runs the request's script. Control operations suspend it.
func (r *Request) Bind(t *Task) { r.task = t }

// Print appends s to the response body.
func (r *Request) Print(s string) error {
	if _, err := r.resp.Write([]byte(s)); err != nil {
		if errors.Is(err, ErrBufferFull) {
			return errors.Mark(err, ErrResource)
		}
		return err
	}
	return nil
}

// HeadersSent reports whether the response headers are committed, also when that happened on [Request.Response]
// directly instead of through [Request.SendHeaders].
func (r *Request) HeadersSent() bool {
	if !r.ctl.headersSent && r.resp.Committed() {
		r.ctl.MarkHeadersSent()
	}
	return r.ctl.headersSent
}

// SendHeaders commits the response headers together with what is buffered so far.
func (r *Request) SendHeaders() error {
	if r.HeadersSent() {
		return nil
	}

	if err := r.resp.FlushBuffer(); err != nil {
		return errors.Wrap(err, "send headers")
	}

	r.ctl.MarkHeadersSent()

	return nil
}

// Flush sends everything buffered to the client and then suspends, which lets the pipeline run other requests
// before the script continues.
func (r *Request) Flush() error {
	if err := r.SendHeaders(); err != nil {
		return err
	}

	if f, ok := r.resp.(interface{ FlushError() error }); ok {
		if err := f.FlushError(); err != nil {
			return errors.Wrap(err, "flush")
		}
	}

	r.suspend()

	return nil
}

// suspend yields to the pipeline. Without a bound task there is no pipeline to yield to and it returns at once.
func (r *Request) suspend() {
	if r.task != nil {
		r.task.Suspend()
	}
}

// fail records err as the request's failure and ends the script without returning to it. Without a bound task it
// returns so the caller can hand err back instead.
func (r *Request) fail(err error) {
	r.ctl.recordFailure(err)
	if r.task != nil {
		r.task.Abort(err)
	}
}
