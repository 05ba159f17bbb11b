package bsrvtest

import (
	"strconv"
	"testing"
)

// Env provides a chainable builder for setting bsrv env vars via t.Setenv. Create one with [SetEnv].
type Env struct {
	t testing.TB
}

// SetEnv sets the env vars of [bsrv.Environment] to test defaults. Port is required because each test must use a
// unique port to avoid collisions.
//
// Defaults:
//   - BS_PORT: port
//   - BS_SERVICE_NAME: "test"
//   - BS_READINESS_CHECK_PATH: "/health"
//   - BS_OTEL_EXPORTER: "none"
//   - BS_LOG_LEVEL: "debug"
//   - BS_SCRIPT_SOURCE: "dir"
//   - BS_WORKERS: "2"
func SetEnv(t testing.TB, port int) *Env {
	t.Helper()
	t.Setenv("BS_PORT", strconv.Itoa(port))
	t.Setenv("BS_SERVICE_NAME", "test")
	t.Setenv("BS_READINESS_CHECK_PATH", "/health")
	t.Setenv("BS_OTEL_EXPORTER", "none")
	t.Setenv("BS_LOG_LEVEL", "debug")
	t.Setenv("BS_SCRIPT_SOURCE", "dir")
	t.Setenv("BS_WORKERS", "2")
	return &Env{t: t}
}

// ScriptDir overrides BS_SCRIPT_DIR.
func (e *Env) ScriptDir(dir string) *Env {
	e.t.Helper()
	e.t.Setenv("BS_SCRIPT_DIR", dir)
	return e
}

// ReadinessCheckPath overrides BS_READINESS_CHECK_PATH.
func (e *Env) ReadinessCheckPath(path string) *Env {
	e.t.Helper()
	e.t.Setenv("BS_READINESS_CHECK_PATH", path)
	return e
}

// MaxInternalRedirects overrides BS_MAX_INTERNAL_REDIRECTS.
func (e *Env) MaxInternalRedirects(n int) *Env {
	e.t.Helper()
	e.t.Setenv("BS_MAX_INTERNAL_REDIRECTS", strconv.Itoa(n))
	return e
}

// H2C overrides BS_H2C.
func (e *Env) H2C(enabled bool) *Env {
	e.t.Helper()
	e.t.Setenv("BS_H2C", strconv.FormatBool(enabled))
	return e
}
