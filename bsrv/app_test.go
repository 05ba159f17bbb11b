package bsrv_test

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/advdv/bscript/bsrv"
	"github.com/advdv/bscript/bsrv/bsrvtest"
	"github.com/carlmjohnson/requests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
)

func writeScripts(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
	}

	return dir
}

func TestApp(t *testing.T) {
	dir := writeScripts(t, map[string]string{
		"routes.json": `{"routes": [
			{"pattern": "GET /hello/{name}", "script": "hello.lua", "name": "hello"},
			{"pattern": "GET /greet", "script": "greet.lua"},
			{"pattern": "GET /gone", "script": "gone.lua"},
			{"pattern": "GET /loop", "script": "loop.lua"}
		]}`,
		"hello.lua": `http.header["X-Greeting"] = "yes"
http.say("hello ", http.var.arg_who or "nobody", " ", http.var.request_id)`,
		"greet.lua": `http.exec(http.url_for("hello", "world"), {who = "bob"})`,
		"gone.lua":  `http.exit(http.GONE)`,
		"loop.lua":  `http.exec("/loop")`,
	})

	bsrvtest.SetEnv(t, 18091).ScriptDir(dir).MaxInternalRedirects(3)
	app := bsrvtest.New(t)
	app.RequireStart()
	t.Cleanup(app.RequireStop)

	base := "http://localhost:18091"

	t.Run("health", func(t *testing.T) {
		err := requests.URL(base + "/health").CheckStatus(http.StatusOK).Fetch(t.Context())
		require.NoError(t, err)
	})

	t.Run("internal redirect keeps request id", func(t *testing.T) {
		var body string
		hdr := http.Header{}
		err := requests.URL(base+"/greet").
			Header(bsrv.RequestIDHeader, "abc").
			CopyHeaders(hdr).
			ToString(&body).
			Fetch(t.Context())
		require.NoError(t, err)

		assert.Equal(t, "hello bob abc\n", body)
		assert.Equal(t, "yes", hdr.Get("X-Greeting"))
		assert.Equal(t, "abc", hdr.Get(bsrv.RequestIDHeader))
	})

	t.Run("exit with error code", func(t *testing.T) {
		var body string
		err := requests.URL(base + "/gone").
			CheckStatus(http.StatusGone).
			ToString(&body).
			Fetch(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "Gone\n", body)
	})

	t.Run("redirect cycle", func(t *testing.T) {
		err := requests.URL(base + "/loop").CheckStatus(http.StatusInternalServerError).Fetch(t.Context())
		require.NoError(t, err)
	})

	t.Run("unknown route", func(t *testing.T) {
		err := requests.URL(base + "/nope").CheckStatus(http.StatusNotFound).Fetch(t.Context())
		require.NoError(t, err)
	})
}

func TestAppCustomHealthAndSource(t *testing.T) {
	bsrvtest.SetEnv(t, 18092).ReadinessCheckPath("/ready")

	app := bsrvtest.New(t,
		bsrv.WithHealthHandler(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("ready"))
		}),
		bsrv.WithFx(fx.Decorate(func(bsrv.Source) bsrv.Source {
			return memSource{
				"routes.json": `{"routes": [{"pattern": "/x", "script": "x.lua"}]}`,
				"x.lua":       `http.print("x")`,
			}
		})),
	)

	app.RequireStart()
	t.Cleanup(app.RequireStop)

	var body string
	require.NoError(t, requests.URL("http://localhost:18092/ready").ToString(&body).Fetch(t.Context()))
	assert.Equal(t, "ready", body)

	require.NoError(t, requests.URL("http://localhost:18092/x").ToString(&body).Fetch(t.Context()))
	assert.Equal(t, "x", strings.TrimSpace(body))
}

type memSource map[string]string

func (s memSource) ReadFile(_ context.Context, name string) ([]byte, error) {
	data, ok := s[name]
	if !ok {
		return nil, bsrv.ErrNotExist
	}
	return []byte(data), nil
}
