package luaapi

import (
	"github.com/Shopify/go-lua"
	"github.com/advdv/bscript"
	"github.com/cockroachdb/errors"
)

// libraries scripts get. io, os and package stay out: scripts talk to the world through the http table only.
var libraries = []lua.RegistryFunction{
	{Name: "_G", Function: lua.BaseOpen},
	{Name: "string", Function: lua.StringOpen},
	{Name: "table", Function: lua.TableOpen},
	{Name: "math", Function: lua.MathOpen},
	{Name: "bit32", Function: lua.Bit32Open},
}

// Script is Lua source that runs as a [bscript.Script]. Every run gets a fresh Lua state.
type Script struct {
	name string
	src  string
	rev  *bscript.Reverser
}

// Option configures a script.
type Option func(*Script)

// WithReverser makes the named routes of rev available to the script through http.url_for.
func WithReverser(rev *bscript.Reverser) Option {
	return func(s *Script) { s.rev = rev }
}

// Load checks src for syntax errors and returns it as a script. The name shows up in error messages.
func Load(name, src string, opts ...Option) (*Script, error) {
	s := &Script{name: name, src: src}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.load(lua.NewState()); err != nil {
		return nil, err
	}

	return s, nil
}

// Name returns the script's name.
func (s *Script) Name() string { return s.name }

// Run implements [bscript.Script].
func (s *Script) Run(r *bscript.Request) error {
	l := lua.NewState()
	for _, lib := range libraries {
		lua.Require(l, lib.Name, lib.Function, true)
		l.Pop(1)
	}

	b := &binding{req: r, rev: s.rev}
	b.open(l)

	if err := s.load(l); err != nil {
		return err
	}

	if err := l.ProtectedCall(0, 0, 0); err != nil {
		msg, ok := l.ToString(-1)
		if !ok {
			msg = err.Error()
		}

		return b.scriptError(msg)
	}

	return nil
}

func (s *Script) load(l *lua.State) error {
	if err := lua.LoadBuffer(l, s.src, "@"+s.name, "t"); err != nil {
		msg, _ := l.ToString(-1)
		return errors.Wrapf(err, "load script %s: %s", s.name, msg)
	}

	return nil
}
