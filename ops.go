package bscript

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Exec asks the pipeline to serve the request from uri instead, as if it was received like that. The query string
// embedded in uri comes first, the optional args are appended to it. On success the script is suspended and the
// pipeline discards the response written so far.
//
// A uri that fails [ParseUnsafeURI] does not return to the script at all: the request fails with a 500.
func Exec(r *Request, uri string, args ...string) error {
	if len(args) > 1 {
		return ArgumentErrorf("expecting one or two arguments, but got %d", len(args)+1)
	}

	if uri == "" {
		return ArgumentErrorf("the uri argument is empty")
	}

	uri, err := r.arena.String(uri)
	if err != nil {
		return err
	}

	path, base, err := ParseUnsafeURI(uri)
	if err != nil {
		r.fail(err)
		return err
	}

	var extra string
	if len(args) > 0 {
		if extra, err = r.arena.String(args[0]); err != nil {
			return err
		}
	}

	merged := MergeArgs(base, extra)
	if base != "" && extra != "" {
		if merged, err = r.arena.String(merged); err != nil {
			return err
		}
	}

	if r.HeadersSent() {
		return StateErrorf("attempt to call exec after sending out response headers")
	}

	if r.ctl.exited {
		return StateErrorf("attempt to call exec after the request was finalized with %d", r.ctl.exitCode)
	}

	r.ctl.recordExec(path, merged)
	r.decided("exec", attribute.String("bscript.uri", path), attribute.String("bscript.args", merged))
	r.suspend()

	return nil
}

// Redirect sends the client to uri with a 302, or a 301 if that is given as status. The Location header and status
// are set on the response right away, the script is suspended and the request is finalized.
func Redirect(r *Request, uri string, status ...Code) error {
	if len(status) > 1 {
		return ArgumentErrorf("expecting one or two arguments, but got %d", len(status)+1)
	}

	code := CodeMovedTemporarily
	if len(status) > 0 {
		code = status[0]
	}

	if code != CodeMovedTemporarily && code != CodeMovedPermanently {
		return ArgumentErrorf("only %d and %d are allowed as redirect status, got %d",
			CodeMovedTemporarily, CodeMovedPermanently, code)
	}

	if r.HeadersSent() {
		return StateErrorf("attempt to call redirect after sending out the headers")
	}

	if r.ctl.exited {
		return StateErrorf("attempt to call redirect after the request was finalized with %d", r.ctl.exitCode)
	}

	loc, err := r.arena.String(uri)
	if err != nil {
		return err
	}

	r.resp.Header().Set("Location", loc)
	r.resp.SetStatus(int(code))
	r.ctl.recordExit(code)

	r.decided("redirect", attribute.String("bscript.location", loc), attribute.Int("bscript.status", int(code)))
	r.suspend()

	return nil
}

// Exit finalizes the request with code. Error-class codes (see [SpecialResponse]) replace the response and are
// therefore refused once the headers are sent; other codes are still recorded.
func Exit(r *Request, code Code) error {
	if code.IsErrorClass() && r.HeadersSent() {
		return StateErrorf("attempt to call exit with %d after sending out the headers", code)
	}

	if r.ctl.exited {
		return StateErrorf("attempt to call exit after the request was finalized with %d", r.ctl.exitCode)
	}

	r.ctl.recordExit(code)
	r.decided("exit", attribute.Int("bscript.status", int(code)))
	r.suspend()

	return nil
}

func (r *Request) decided(op string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(r.ctx).AddEvent("bscript."+op, trace.WithAttributes(attrs...))
	if r.logs != nil {
		r.logs.LogControlDecision(r.id, op, &r.ctl)
	}
}
