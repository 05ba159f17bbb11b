package bscript

import (
	"github.com/advdv/bscript/internal/httppattern"
	"github.com/cockroachdb/errors"
	"github.com/samber/lo"
)

// Reverser keeps track of named patterns and allows building URLs, scripts use it to find the targets of internal
// redirects by route name.
type Reverser struct {
	pats map[string]*httppattern.Pattern
}

// NewReverser inits the reverser.
func NewReverser() *Reverser {
	return &Reverser{make(map[string]*httppattern.Pattern)}
}

// Reverse reverses the named pattern into a url.
func (r Reverser) Reverse(name string, vals ...string) (string, error) {
	pat, ok := r.pats[name]
	if !ok {
		return "", errors.Newf("no pattern named: %q, got: %v", name, lo.Keys(r.pats))
	}

	res, err := httppattern.Build(pat, vals...)
	if err != nil {
		return "", errors.Wrap(err, "failed to build")
	}

	return res, nil
}

// Names returns the names of all named patterns.
func (r Reverser) Names() []string { return lo.Keys(r.pats) }

// Named is a convenience method that panics if naming the pattern fails.
func (r Reverser) Named(name, str string) string {
	str, err := r.NamedPattern(name, str)
	if err != nil {
		panic("bscript: " + err.Error())
	}

	return str
}

// NamedPattern will parse 's' as a path pattern while returning it as well.
func (r Reverser) NamedPattern(name, str string) (string, error) {
	if _, exists := r.pats[name]; exists {
		return str, errors.Newf("pattern with name %q already exists", name)
	}

	pat, err := httppattern.ParsePattern(str)
	if err != nil {
		return str, errors.Wrap(err, "failed to parse pattern")
	}

	r.pats[name] = pat

	return str, nil
}
