// Package bsrv runs a bscript server. It reads its configuration from the environment, loads a routes manifest
// and the Lua scripts it names from a directory, an S3 bucket or a base URL, and serves them on a [bscript.ServeMux]
// with structured logging (zap), tracing (OpenTelemetry) and dependency injection (fx).
//
// # Manifest
//
// The source must contain a routes.json file:
//
//	{"routes": [
//	    {"pattern": "GET /hello/{name}", "script": "hello.lua", "name": "hello"},
//	    {"mount": "/legacy", "script": "legacy.lua"}
//	]}
//
// Routes with a pattern are registered with [bscript.ServeMux.HandleScript], routes with a mount with
// [bscript.ServeMux.MountScript]. Named routes can be reversed by every script with http.url_for.
//
// # Request ids
//
// Every request gets an id, from the X-Request-Id header or generated. It is echoed in the response, shows up in
// the logs and is available to scripts as http.var.request_id.
package bsrv
