// Package httppattern parses the route patterns of the standard library's http.ServeMux so that urls can be built
// from them again.
package httppattern

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// Segment is one path segment of a pattern.
type Segment struct {
	Literal  string
	Wildcard string
	Multi    bool
}

// Pattern is a parsed "[METHOD ][HOST]/[PATH]" route pattern.
type Pattern struct {
	Method   string
	Host     string
	Segments []Segment
	// TrailingSlash is set for patterns that end in a slash, that includes "{$}" patterns.
	TrailingSlash bool
}

// ParsePattern parses s.
func ParsePattern(s string) (*Pattern, error) {
	if s == "" {
		return nil, errors.New("empty pattern")
	}

	pat := &Pattern{}

	rest := s
	if i := strings.IndexAny(rest, " \t"); i >= 0 {
		pat.Method, rest = rest[:i], strings.TrimLeft(rest[i+1:], " \t")
	}

	i := strings.IndexByte(rest, '/')
	if i < 0 {
		return nil, errors.Newf("pattern %q: host/path missing /", s)
	}

	pat.Host, rest = rest[:i], rest[i+1:]
	if rest == "" {
		pat.TrailingSlash = true
		return pat, nil
	}

	seen := map[string]bool{}
	for rest != "" {
		var seg string
		if j := strings.IndexByte(rest, '/'); j >= 0 {
			seg, rest = rest[:j], rest[j+1:]
			if rest == "" {
				pat.TrailingSlash = true
			}
		} else {
			seg, rest = rest, ""
		}

		if !strings.HasPrefix(seg, "{") {
			if strings.ContainsAny(seg, "{}") {
				return nil, errors.Newf("pattern %q: bad wildcard segment %q", s, seg)
			}

			pat.Segments = append(pat.Segments, Segment{Literal: seg})
			continue
		}

		if !strings.HasSuffix(seg, "}") {
			return nil, errors.Newf("pattern %q: bad wildcard segment %q", s, seg)
		}

		name := seg[1 : len(seg)-1]
		if name == "$" {
			if rest != "" {
				return nil, errors.Newf("pattern %q: {$} not at end", s)
			}

			pat.TrailingSlash = true
			break
		}

		multi := strings.HasSuffix(name, "...")
		name = strings.TrimSuffix(name, "...")
		if multi && rest != "" {
			return nil, errors.Newf("pattern %q: {...} wildcard not at end", s)
		}

		if name == "" {
			return nil, errors.Newf("pattern %q: empty wildcard", s)
		}

		if seen[name] {
			return nil, errors.Newf("pattern %q: duplicate wildcard name %q", s, name)
		}

		seen[name] = true
		pat.Segments = append(pat.Segments, Segment{Wildcard: name, Multi: multi})
	}

	return pat, nil
}

// NumWildcards returns the number of values [Build] expects.
func (p *Pattern) NumWildcards() (n int) {
	for _, seg := range p.Segments {
		if seg.Wildcard != "" {
			n++
		}
	}
	return n
}

// Build substitutes vals for the wildcards of pat, in order, and returns the path.
func Build(pat *Pattern, vals ...string) (string, error) {
	if want := pat.NumWildcards(); want != len(vals) {
		return "", errors.Newf("pattern expects %d values, got %d", want, len(vals))
	}

	var b strings.Builder

	i := 0
	for _, seg := range pat.Segments {
		b.WriteByte('/')

		switch {
		case seg.Wildcard == "":
			b.WriteString(seg.Literal)
		case seg.Multi:
			b.WriteString(escapeSegments(vals[i]))
			i++
		default:
			b.WriteString(url.PathEscape(vals[i]))
			i++
		}
	}

	if pat.TrailingSlash || b.Len() == 0 {
		b.WriteByte('/')
	}

	return b.String(), nil
}

func escapeSegments(s string) string {
	parts := strings.Split(s, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
