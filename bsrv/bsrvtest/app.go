// Package bsrvtest provides test helpers for bsrv applications.
//
// It constructs the identical DI graph as [bsrv.NewApp] but uses
// [fxtest.App] which fails the test immediately on DI errors.
//
// Example:
//
//	bsrvtest.SetEnv(t, 18081).ScriptDir(dir)
//	app := bsrvtest.New(t)
//	app.RequireStart()
//	t.Cleanup(app.RequireStop)
package bsrvtest

import (
	"testing"

	"github.com/advdv/bscript/bsrv"
	"go.uber.org/fx/fxtest"
)

// App embeds *fxtest.App for testing bsrv applications.
type App struct {
	*fxtest.App
}

// New creates a test app with the same DI graph as [bsrv.NewApp].
func New(t testing.TB, opts ...bsrv.Option) *App {
	return &App{App: fxtest.New(t, bsrv.FxOptions(opts...)...)}
}
