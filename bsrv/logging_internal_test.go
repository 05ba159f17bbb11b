package bsrv

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/advdv/bscript"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewLogger(t *testing.T) {
	for _, lvl := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.ErrorLevel} {
		t.Run(lvl.String(), func(t *testing.T) {
			logger, err := NewLogger(Environment{LogLevel: lvl})
			require.NoError(t, err)
			assert.True(t, logger.Core().Enabled(lvl))
			assert.False(t, logger.Core().Enabled(lvl-1))
		})
	}
}

func TestZapScriptLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	sl := newZapScriptLogger(zap.New(core))

	sl.LogScriptError("req-1", errors.New("boom"))
	sl.LogUnhandledServeError(errors.New("unhandled"))
	sl.LogImplicitFlushError(errors.New("flush"))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "script error", entries[0].Message)
	assert.Equal(t, "bscript", entries[0].LoggerName)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "boom", entries[0].ContextMap()["error"])
	assert.Equal(t, "unhandled server error", entries[1].Message)
	assert.Equal(t, "error while flushing implicitly", entries[2].Message)
}

func TestControlDecisionLogging(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	mux := bscript.NewServeMuxWith(-1, newZapScriptLogger(zap.New(core)), http.NewServeMux(), bscript.NewReverser(),
		bscript.NewExecutorPool(1), bscript.PipelineConfig{ArenaLimit: -1})
	t.Cleanup(mux.Close)

	mux.HandleScript("/a", bscript.ScriptFunc(func(r *bscript.Request) error {
		return bscript.Exit(r, bscript.CodeCreated)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/a", nil)
	mux.ServeHTTP(rec, req.WithContext(bscript.WithRequestID(req.Context(), "req-9")))
	assert.Equal(t, http.StatusCreated, rec.Code)

	decisions := logs.FilterMessage("control decision").All()
	require.Len(t, decisions, 1)
	assert.Equal(t, "exit", decisions[0].ContextMap()["op"])
	assert.Equal(t, "req-9", decisions[0].ContextMap()["request_id"])
	assert.Equal(t, int64(201), decisions[0].ContextMap()["exit_code"])
	assert.Equal(t, true, decisions[0].ContextMap()["exited"])
}

func TestLogCorrelatesRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	h := bscript.Wrap(bscript.HandlerFunc(func(ctx context.Context, _ bscript.ResponseWriter, _ *http.Request) error {
		Log(ctx).Info("handling")
		return nil
	}), withRequestDep(&requestDep{logger: zap.New(core)}), withRequestID())

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "from-client")
	bscript.ToStd(h, -1, bscript.NewTestLogger(t)).ServeHTTP(rec, req)

	assert.Equal(t, "from-client", rec.Header().Get(RequestIDHeader))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "from-client", logs.All()[0].ContextMap()["request_id"])
}

func TestRequestIDGenerated(t *testing.T) {
	var seen string
	h := bscript.Wrap(bscript.HandlerFunc(func(ctx context.Context, _ bscript.ResponseWriter, _ *http.Request) error {
		seen = bscript.RequestID(ctx)
		return nil
	}), withRequestID())

	rec := httptest.NewRecorder()
	bscript.ToStd(h, -1, bscript.NewTestLogger(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))
}

func TestRecoverMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)

	h := bscript.Wrap(bscript.HandlerFunc(func(context.Context, bscript.ResponseWriter, *http.Request) error {
		panic("oops")
	}), withRequestDep(&requestDep{logger: zap.New(core)}), withRecover())

	rec := httptest.NewRecorder()
	bscript.ToStd(h, -1, bscript.NewTestLogger(t)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("recovered from panic").Len())
}
