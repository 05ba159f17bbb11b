package bscript

import (
	"log"
	"sync/atomic"
	"testing"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogUnhandledServeError(err error)
	LogImplicitFlushError(err error)
	LogScriptError(requestID string, err error)
	LogControlDecision(requestID, op string, state *ControlState)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogUnhandledServeError(err error) {
	l.Logger.Printf("bscript: unhandled server error: %s", err)
}

func (l stdLogger) LogImplicitFlushError(err error) {
	l.Logger.Printf("bscript: error while flushing implicitly: %s", err)
}

func (l stdLogger) LogScriptError(requestID string, err error) {
	l.Logger.Printf("bscript: script error in request %s: %s", requestID, err)
}

func (l stdLogger) LogControlDecision(requestID, op string, state *ControlState) {
	uri, args, _ := state.Exec()
	l.Logger.Printf("bscript: %s in request %s (exit code: %d, exec uri: %q, exec args: %q)",
		op, requestID, state.ExitCode(), uri, args)
}

func NewStdLogger(l *log.Logger) Logger {
	return stdLogger{l}
}

type TestLogger struct {
	tb testing.TB

	NumLogUnhandledServeError int64
	NumLogImplicitFlushError  int64
	NumLogScriptError         int64
	NumLogControlDecision     int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogUnhandledServeError(err error) {
	atomic.AddInt64(&l.NumLogUnhandledServeError, 1)
	l.tb.Logf("bscript: unhandled server error: %s", err)
}

func (l *TestLogger) LogImplicitFlushError(err error) {
	atomic.AddInt64(&l.NumLogImplicitFlushError, 1)
	l.tb.Logf("bscript: error while flushing implicitly: %s", err)
}

func (l *TestLogger) LogScriptError(requestID string, err error) {
	atomic.AddInt64(&l.NumLogScriptError, 1)
	l.tb.Logf("bscript: script error in request %s: %s", requestID, err)
}

func (l *TestLogger) LogControlDecision(requestID, op string, _ *ControlState) {
	atomic.AddInt64(&l.NumLogControlDecision, 1)
	l.tb.Logf("bscript: %s in request %s", op, requestID)
}

var _ Logger = &TestLogger{}
