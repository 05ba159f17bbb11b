package bscript

import (
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"
)

// ParseUnsafeURI checks a script supplied uri before the request is dispatched to it. It splits off the query string
// and rejects uris that could escape the location they are served from: a leading dot or question mark, a NUL byte,
// a malformed percent encoding, or a ".." segment in either the raw or the decoded path.
func ParseUnsafeURI(uri string) (path, args string, err error) {
	if uri == "" || uri[0] == '.' || uri[0] == '?' {
		return "", "", unsafeURIf("unsafe uri %q", uri)
	}

	path = uri
	if i := strings.IndexByte(uri, '?'); i >= 0 {
		path, args = uri[:i], uri[i+1:]
	}

	if strings.IndexByte(path, 0) >= 0 {
		return "", "", unsafeURIf("uri %q contains a zero byte", uri)
	}

	decoded := path
	if strings.IndexByte(path, '%') >= 0 {
		if decoded, err = url.PathUnescape(path); err != nil {
			return "", "", errors.Mark(errors.Wrapf(err, "uri %q", uri), ErrSafety)
		}

		if strings.IndexByte(decoded, 0) >= 0 {
			return "", "", unsafeURIf("uri %q contains an encoded zero byte", uri)
		}
	}

	if hasDotDotSegment(path) || hasDotDotSegment(decoded) {
		return "", "", unsafeURIf("uri %q traverses above its root", uri)
	}

	return path, args, nil
}

// MergeArgs joins the query string embedded in a redirect target with the one passed along with it. The embedded
// arguments always come first.
func MergeArgs(base, extra string) string {
	switch {
	case base == "":
		return extra
	case extra == "":
		return base
	default:
		return base + "&" + extra
	}
}

func hasDotDotSegment(p string) bool {
	for seg := range strings.SplitSeq(strings.ReplaceAll(p, "\\", "/"), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}

func unsafeURIf(format string, args ...any) error {
	return errors.Mark(errors.Newf(format, args...), ErrSafety)
}
