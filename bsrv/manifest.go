package bsrv

import (
	"context"

	"github.com/advdv/bscript"
	"github.com/advdv/bscript/luaapi"
	"github.com/cockroachdb/errors"
	"github.com/tidwall/gjson"
)

// ManifestName is the file every script source must have, it lists the routes to serve.
const ManifestName = "routes.json"

// Route is one entry of the manifest. Either Pattern or Mount is set.
type Route struct {
	Pattern string
	Mount   string
	Script  string
	Name    string
}

// ParseManifest parses the routes manifest:
//
//	{"routes": [
//	    {"pattern": "GET /items/{id}", "script": "item.lua", "name": "item"},
//	    {"mount": "/legacy", "script": "legacy.lua"}
//	]}
func ParseManifest(data []byte) ([]Route, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("manifest is not valid JSON")
	}

	res := gjson.GetBytes(data, "routes")
	if !res.IsArray() {
		return nil, errors.New("manifest has no routes array")
	}

	var (
		routes []Route
		err    error
	)

	res.ForEach(func(_, val gjson.Result) bool {
		i := len(routes)
		rt := Route{
			Pattern: val.Get("pattern").String(),
			Mount:   val.Get("mount").String(),
			Script:  val.Get("script").String(),
			Name:    val.Get("name").String(),
		}

		switch {
		case rt.Script == "":
			err = errors.Newf("route %d: script is required", i)
		case (rt.Pattern == "") == (rt.Mount == ""):
			err = errors.Newf("route %d: exactly one of pattern and mount is required", i)
		case rt.Mount != "" && rt.Name != "":
			err = errors.Newf("route %d: mounts cannot be named", i)
		}

		routes = append(routes, rt)
		return err == nil
	})

	if err != nil {
		return nil, err
	}

	return routes, nil
}

// LoadRoutes reads the manifest from src and registers a script route on mux for each entry. All named routes are
// available to every script through http.url_for.
func LoadRoutes(ctx context.Context, mux *bscript.ServeMux, src Source) ([]Route, error) {
	data, err := src.ReadFile(ctx, ManifestName)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read manifest")
	}

	routes, err := ParseManifest(data)
	if err != nil {
		return nil, err
	}

	scripts := make(map[string]*luaapi.Script, len(routes))
	for _, rt := range routes {
		if _, ok := scripts[rt.Script]; ok {
			continue
		}

		code, err := src.ReadFile(ctx, rt.Script)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to read script for %s", rt.target())
		}

		s, err := luaapi.Load(rt.Script, string(code), luaapi.WithReverser(mux.Reverser()))
		if err != nil {
			return nil, err
		}

		scripts[rt.Script] = s
	}

	for _, rt := range routes {
		if rt.Mount != "" {
			mux.MountScript(rt.Mount, scripts[rt.Script])
			continue
		}

		var name []string
		if rt.Name != "" {
			name = append(name, rt.Name)
		}

		mux.HandleScript(rt.Pattern, scripts[rt.Script], name...)
	}

	return routes, nil
}

func (rt Route) target() string {
	if rt.Mount != "" {
		return rt.Mount
	}
	return rt.Pattern
}
