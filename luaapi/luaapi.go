// Package luaapi exposes a request to Lua scripts as the global table "http".
//
// The control operations map onto the functions of the bscript package:
//
//	http.exec(uri [, args])         internal redirect, args is a string or a table
//	http.redirect(uri [, status])   301 or 302 with a Location header
//	http.exit(code)                 finalize the request, http.throw_error is an alias
//
// Besides those, scripts write output with http.print, http.say, http.send_headers and http.flush, access the
// response header through http.header and read request data from http.var.
package luaapi

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/advdv/bscript"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Status constants available on the http table.
var constants = map[string]bscript.Code{
	"OK":                          0,
	"HTTP_OK":                     bscript.CodeOK,
	"HTTP_CREATED":                bscript.CodeCreated,
	"HTTP_NO_CONTENT":             bscript.CodeNoContent,
	"HTTP_SPECIAL_RESPONSE":       bscript.SpecialResponse,
	"HTTP_MOVED_PERMANENTLY":      bscript.CodeMovedPermanently,
	"HTTP_MOVED_TEMPORARILY":      bscript.CodeMovedTemporarily,
	"HTTP_SEE_OTHER":              bscript.CodeSeeOther,
	"HTTP_NOT_MODIFIED":           bscript.CodeNotModified,
	"HTTP_TEMPORARY_REDIRECT":     bscript.CodeTemporaryRedirect,
	"HTTP_PERMANENT_REDIRECT":     bscript.CodePermanentRedirect,
	"HTTP_BAD_REQUEST":            bscript.CodeBadRequest,
	"HTTP_UNAUTHORIZED":           bscript.CodeUnauthorized,
	"HTTP_FORBIDDEN":              bscript.CodeForbidden,
	"HTTP_NOT_FOUND":              bscript.CodeNotFound,
	"HTTP_NOT_ALLOWED":            bscript.CodeMethodNotAllowed,
	"HTTP_GONE":                   bscript.CodeGone,
	"HTTP_TOO_MANY_REQUESTS":      bscript.CodeTooManyRequests,
	"HTTP_INTERNAL_SERVER_ERROR":  bscript.CodeInternalServerError,
	"HTTP_METHOD_NOT_IMPLEMENTED": bscript.CodeNotImplemented,
	"HTTP_BAD_GATEWAY":            bscript.CodeBadGateway,
	"HTTP_SERVICE_UNAVAILABLE":    bscript.CodeServiceUnavailable,
	"HTTP_GATEWAY_TIMEOUT":        bscript.CodeGatewayTimeout,
}

// binding holds the request the http table operates on.
type binding struct {
	req *bscript.Request
	rev *bscript.Reverser

	// last error raised into Lua, so the uncaught error can be reported with its kind.
	raised    error
	raisedMsg string
}

// Open registers the global http table in l, bound to r. Named routes of rev are available through http.url_for,
// rev may be nil.
func Open(l *lua.State, r *bscript.Request, rev *bscript.Reverser) {
	(&binding{req: r, rev: rev}).open(l)
}

func (b *binding) open(l *lua.State) {
	l.NewTable()
	lua.SetFunctions(l, []lua.RegistryFunction{
		{Name: "exec", Function: b.exec},
		{Name: "redirect", Function: b.redirect},
		{Name: "exit", Function: b.exit},
		{Name: "throw_error", Function: b.exit},
		{Name: "print", Function: b.print},
		{Name: "say", Function: b.say},
		{Name: "send_headers", Function: b.sendHeaders},
		{Name: "flush", Function: b.flush},
		{Name: "headers_sent", Function: b.headersSent},
		{Name: "url_for", Function: b.urlFor},
	}, 0)

	for name, code := range constants {
		l.PushInteger(int(code))
		l.SetField(-2, name)
	}

	b.pushProxy(l, b.headerIndex, b.headerNewIndex)
	l.SetField(-2, "header")

	b.pushProxy(l, b.varIndex, readOnly("http.var"))
	l.SetField(-2, "var")

	l.SetGlobal("http")
}

// pushProxy pushes an empty table whose reads and writes go to index and newIndex.
func (b *binding) pushProxy(l *lua.State, index, newIndex lua.Function) {
	l.NewTable()
	l.NewTable()
	l.PushGoFunction(index)
	l.SetField(-2, "__index")
	l.PushGoFunction(newIndex)
	l.SetField(-2, "__newindex")
	l.SetMetaTable(-2)
}

func readOnly(name string) lua.Function {
	return func(l *lua.State) int {
		lua.Errorf(l, "%s is read-only", name)
		return 0
	}
}

// raise reports err to the script as a Lua error. It does not return.
func (b *binding) raise(l *lua.State, err error) {
	b.raised, b.raisedMsg = err, err.Error()
	lua.Errorf(l, "%s", b.raisedMsg)
}

// scriptError turns an uncaught Lua error into a Go error, keeping the kind of the error raised by an operation.
func (b *binding) scriptError(msg string) error {
	if b.raised != nil && strings.HasSuffix(msg, b.raisedMsg) {
		return errors.Wrapf(b.raised, "%s", strings.TrimSuffix(strings.TrimSuffix(msg, b.raisedMsg), ": "))
	}

	return errors.Newf("%s", msg)
}

func (b *binding) exec(l *lua.State) int {
	n := l.Top()
	if n < 1 || n > 2 {
		b.raise(l, bscript.ArgumentErrorf("expecting one or two arguments, but got %d", n))
	}

	uri := lua.CheckString(l, 1)

	var args []string
	if n == 2 {
		extra, err := queryArgs(l, 2)
		if err != nil {
			b.raise(l, err)
		}

		args = append(args, extra)
	}

	if err := bscript.Exec(b.req, uri, args...); err != nil {
		b.raise(l, err)
	}

	return 0
}

func (b *binding) redirect(l *lua.State) int {
	n := l.Top()
	if n < 1 || n > 2 {
		b.raise(l, bscript.ArgumentErrorf("expecting one or two arguments, but got %d", n))
	}

	uri := lua.CheckString(l, 1)

	var status []bscript.Code
	if n == 2 {
		status = append(status, bscript.Code(lua.CheckInteger(l, 2)))
	}

	if err := bscript.Redirect(b.req, uri, status...); err != nil {
		b.raise(l, err)
	}

	return 0
}

func (b *binding) exit(l *lua.State) int {
	if n := l.Top(); n != 1 {
		b.raise(l, bscript.ArgumentErrorf("expecting one argument, but got %d", n))
	}

	if err := bscript.Exit(b.req, bscript.Code(lua.CheckInteger(l, 1))); err != nil {
		b.raise(l, err)
	}

	return 0
}

// print and say return true, or nil and a message when the output could not be written.
func (b *binding) print(l *lua.State) int { return b.output(l, "") }
func (b *binding) say(l *lua.State) int   { return b.output(l, "\n") }

func (b *binding) output(l *lua.State, suffix string) int {
	var sb strings.Builder
	for i := 1; i <= l.Top(); i++ {
		if err := appendValue(l, &sb, i, 0); err != nil {
			lua.ArgumentError(l, i, err.Error())
		}
	}

	sb.WriteString(suffix)

	return pushResult(l, b.req.Print(sb.String()))
}

func (b *binding) sendHeaders(l *lua.State) int {
	return pushResult(l, b.req.SendHeaders())
}

func (b *binding) flush(l *lua.State) int {
	return pushResult(l, b.req.Flush())
}

func (b *binding) headersSent(l *lua.State) int {
	l.PushBoolean(b.req.HeadersSent())
	return 1
}

func (b *binding) urlFor(l *lua.State) int {
	if b.rev == nil {
		lua.Errorf(l, "no named routes available")
	}

	name := lua.CheckString(l, 1)

	vals := make([]string, 0, l.Top())
	for i := 2; i <= l.Top(); i++ {
		vals = append(vals, lua.CheckString(l, i))
	}

	res, err := b.rev.Reverse(name, vals...)
	if err != nil {
		b.raise(l, errors.Mark(err, bscript.ErrArgument))
	}

	l.PushString(res)

	return 1
}

func (b *binding) headerIndex(l *lua.State) int {
	key := headerKey(lua.CheckString(l, 2))

	vals := b.req.Header().Values(key)
	switch len(vals) {
	case 0:
		l.PushNil()
	case 1:
		l.PushString(vals[0])
	default:
		l.CreateTable(len(vals), 0)
		for i, v := range vals {
			l.PushString(v)
			l.RawSetInt(-2, i+1)
		}
	}

	return 1
}

func (b *binding) headerNewIndex(l *lua.State) int {
	key := headerKey(lua.CheckString(l, 2))

	if b.req.HeadersSent() {
		b.raise(l, bscript.StateErrorf("attempt to set http.header[%q] after sending out response headers", key))
	}

	hdr := b.req.Header()

	switch l.TypeOf(3) {
	case lua.TypeNil:
		hdr.Del(key)
	case lua.TypeTable:
		hdr.Del(key)
		for i := 1; i <= l.RawLength(3); i++ {
			l.RawGetInt(3, i)
			v, ok := l.ToString(-1)
			if !ok {
				lua.ArgumentError(l, 3, "header values must be strings or numbers")
			}

			hdr.Add(key, v)
			l.Pop(1)
		}
	default:
		v, ok := l.ToString(3)
		if !ok {
			lua.ArgumentError(l, 3, "header value must be a string, number or table")
		}

		hdr.Set(key, v)
	}

	return 0
}

func (b *binding) varIndex(l *lua.State) int {
	key := lua.CheckString(l, 2)

	switch {
	case key == "uri":
		l.PushString(b.req.URI())
	case key == "args":
		pushOptString(l, b.req.Args())
	case key == "method":
		l.PushString(b.req.Method())
	case key == "request_id":
		l.PushString(b.req.ID())
	case key == "is_args":
		pushOptString(l, lo.Ternary(b.req.Args() != "", "?", ""))
	case strings.HasPrefix(key, "arg_"):
		pushOptString(l, queryValue(b.req.Args(), key[len("arg_"):]))
	case strings.HasPrefix(key, "http_"):
		pushOptString(l, b.req.RequestHeader().Get(headerKey(key[len("http_"):])))
	default:
		l.PushNil()
	}

	return 1
}

// headerKey accepts the lua friendly spelling with underscores for header names.
func headerKey(s string) string {
	return http.CanonicalHeaderKey(strings.ReplaceAll(s, "_", "-"))
}

func pushOptString(l *lua.State, s string) {
	if s == "" {
		l.PushNil()
		return
	}

	l.PushString(s)
}

func pushResult(l *lua.State, err error) int {
	if err != nil {
		l.PushNil()
		l.PushString(err.Error())
		return 2
	}

	l.PushBoolean(true)

	return 1
}

// appendValue writes the value at idx the way http.print renders it. Tables are treated as arrays whose elements
// are written in order.
func appendValue(l *lua.State, sb *strings.Builder, idx, depth int) error {
	if depth > 16 {
		return errors.New("table nested too deep")
	}

	switch l.TypeOf(idx) {
	case lua.TypeNil:
		sb.WriteString("nil")
	case lua.TypeBoolean:
		sb.WriteString(strconv.FormatBool(l.ToBoolean(idx)))
	case lua.TypeNumber, lua.TypeString:
		s, _ := l.ToString(idx)
		sb.WriteString(s)
	case lua.TypeTable:
		idx = l.AbsIndex(idx)
		for i := 1; i <= l.RawLength(idx); i++ {
			l.RawGetInt(idx, i)
			err := appendValue(l, sb, l.Top(), depth+1)
			l.Pop(1)

			if err != nil {
				return err
			}
		}
	default:
		return errors.Newf("cannot print a %s", lua.TypeNameOf(l, idx))
	}

	return nil
}
