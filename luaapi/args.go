package luaapi

import (
	"net/url"
	"slices"
	"strings"

	"github.com/Shopify/go-lua"
	"github.com/advdv/bscript"
)

// queryArgs reads the args argument of http.exec: a query string, or a table that is encoded into one. Table keys
// are sorted, a value of true adds the bare key and a list adds the key once per element.
func queryArgs(l *lua.State, idx int) (string, error) {
	switch l.TypeOf(idx) {
	case lua.TypeNil:
		return "", nil
	case lua.TypeString, lua.TypeNumber:
		s, _ := l.ToString(idx)
		return s, nil
	case lua.TypeTable:
	default:
		return "", bscript.ArgumentErrorf("args must be a string or a table, got %s", lua.TypeNameOf(l, idx))
	}

	type pair struct{ key, val string }

	var (
		pairs []pair
		bare  = map[string]bool{}
	)

	l.PushNil()
	for l.Next(idx) {
		// converting the key in place would confuse Next, so take a copy.
		l.PushValue(-2)
		key, ok := l.ToString(-1)
		l.Pop(1)

		if !ok {
			typ := lua.TypeNameOf(l, -2)
			l.Pop(2)
			return "", bscript.ArgumentErrorf("args keys must be strings, got %s", typ)
		}

		switch l.TypeOf(-1) {
		case lua.TypeBoolean:
			if l.ToBoolean(-1) {
				pairs, bare[key] = append(pairs, pair{key: key}), true
			}
		case lua.TypeTable:
			for i := 1; i <= l.RawLength(-1); i++ {
				l.RawGetInt(-1, i)
				val, ok := l.ToString(-1)
				l.Pop(1)

				if !ok {
					l.Pop(2)
					return "", bscript.ArgumentErrorf("args value list for %q must hold strings or numbers", key)
				}

				pairs = append(pairs, pair{key, val})
			}
		default:
			val, ok := l.ToString(-1)
			if !ok {
				l.Pop(2)
				return "", bscript.ArgumentErrorf("bad args value for %q", key)
			}

			pairs = append(pairs, pair{key, val})
		}

		l.Pop(1)
	}

	slices.SortStableFunc(pairs, func(a, b pair) int { return strings.Compare(a.key, b.key) })

	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		if bare[p.key] && p.val == "" {
			parts = append(parts, url.QueryEscape(p.key))
			continue
		}

		parts = append(parts, url.QueryEscape(p.key)+"="+url.QueryEscape(p.val))
	}

	return strings.Join(parts, "&"), nil
}

// queryValue returns the first value of name in the raw query string args.
func queryValue(args, name string) string {
	vals, _ := url.ParseQuery(args)
	return vals.Get(name)
}
