package bscript_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/bscript"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveScript(t *testing.T, s bscript.ScriptFunc) (*httptest.ResponseRecorder, *bscript.TestLogger) {
	t.Helper()

	logs := bscript.NewTestLogger(t)
	mux := bscript.NewServeMuxWith(-1, logs, http.NewServeMux(), bscript.NewReverser(),
		bscript.NewExecutorPool(1), bscript.PipelineConfig{ArenaLimit: -1})
	defer mux.Close()

	mux.HandleScript("/", s)

	rec, req := httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)
	mux.ServeHTTP(rec, req)

	return rec, logs
}

func TestPipelineExitFinalization(t *testing.T) {
	for _, tc := range []struct {
		name string
		code bscript.Code
		exp  int
		body string
	}{
		{"ok keeps output", 0, http.StatusOK, "output"},
		{"success status", bscript.CodeCreated, http.StatusCreated, "output"},
		{"error status page", bscript.CodeForbidden, http.StatusForbidden, "Forbidden\n"},
		{"not modified", bscript.CodeNotModified, http.StatusNotModified, ""},
		{"negative code fails", -1, http.StatusInternalServerError, "Internal Server Error\n"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			var after bool
			rec, logs := serveScript(t, func(r *bscript.Request) error {
				if err := r.Print("output"); err != nil {
					return err
				}

				err := bscript.Exit(r, tc.code)
				after = true

				return err
			})

			assert.Equal(t, tc.exp, rec.Code)
			assert.Equal(t, tc.body, rec.Body.String())
			assert.False(t, after)
			assert.EqualValues(t, 1, logs.NumLogControlDecision)
		})
	}
}

func TestPipelineStatusReplacedByDecision(t *testing.T) {
	t.Run("redirect", func(t *testing.T) {
		rec, _ := serveScript(t, func(r *bscript.Request) error {
			r.Response().WriteHeader(http.StatusOK)
			return bscript.Redirect(r, "/new", bscript.CodeMovedPermanently)
		})

		assert.Equal(t, http.StatusMovedPermanently, rec.Code)
		assert.Equal(t, "/new", rec.Header().Get("Location"))
	})

	t.Run("exit", func(t *testing.T) {
		rec, _ := serveScript(t, func(r *bscript.Request) error {
			r.Response().WriteHeader(http.StatusOK)
			return bscript.Exit(r, bscript.CodeCreated)
		})

		assert.Equal(t, http.StatusCreated, rec.Code)
	})
}

func TestPipelineRedirectAfterDirectCommit(t *testing.T) {
	var redirErr error
	rec, _ := serveScript(t, func(r *bscript.Request) error {
		if err := r.Print("streamed"); err != nil {
			return err
		}

		if err := r.Response().FlushBuffer(); err != nil {
			return err
		}

		redirErr = bscript.Redirect(r, "/new")
		return nil
	})

	require.ErrorIs(t, redirErr, bscript.ErrState)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Location"))
	assert.Equal(t, "streamed", rec.Body.String())
}

func TestPipelineExitAfterFlush(t *testing.T) {
	rec, _ := serveScript(t, func(r *bscript.Request) error {
		if err := r.Print("streamed"); err != nil {
			return err
		}

		if err := r.Flush(); err != nil {
			return err
		}

		return bscript.Exit(r, bscript.CodeOK)
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "streamed", rec.Body.String())
	assert.True(t, rec.Flushed)
}

func TestPipelineFlushResumes(t *testing.T) {
	rec, _ := serveScript(t, func(r *bscript.Request) error {
		for _, part := range []string{"a", "b", "c"} {
			if err := r.Print(part); err != nil {
				return err
			}

			if err := r.Flush(); err != nil {
				return err
			}
		}

		return nil
	})

	assert.Equal(t, "abc", rec.Body.String())
}

func TestPipelineScriptError(t *testing.T) {
	rec, logs := serveScript(t, func(r *bscript.Request) error {
		r.Header().Set("X-Partial", "1")
		return errors.New("script failed")
	})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Empty(t, rec.Header().Get("X-Partial"))
	assert.EqualValues(t, 1, logs.NumLogScriptError)
}

func TestPipelineCodedScriptError(t *testing.T) {
	rec, _ := serveScript(t, func(*bscript.Request) error {
		return bscript.NewError(bscript.CodeBadGateway, errors.New("upstream"))
	})

	// script errors always become a 500, exit is the way to pick a status
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestPipelineRunWithoutMux(t *testing.T) {
	exec := bscript.NewExecutor()
	defer exec.Close()

	p := bscript.NewPipeline(bscript.PipelineConfig{ArenaLimit: -1}, exec, nil, bscript.NewTestLogger(t))

	rec := httptest.NewRecorder()
	w := bscript.NewResponseWriter(rec, -1)
	defer w.Free()

	req, ev := p.Run(w, httptest.NewRequest(http.MethodGet, "/x", nil), bscript.ScriptFunc(func(r *bscript.Request) error {
		return bscript.Redirect(r, "/y")
	}))

	require.Equal(t, bscript.TaskSuspended, ev.Status)
	assert.True(t, req.Control().Exited())
	assert.Equal(t, "/y", w.Header().Get("Location"))
}
