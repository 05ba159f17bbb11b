package bsrv

import (
	"github.com/advdv/bscript"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// NewLogger creates a zap logger configured from the environment. Uses JSON encoding with ISO8601 timestamps.
func NewLogger(env Environment) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(env.LogLevel)
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg.Build()
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogUnhandledServeError(err error) {
	l.Logger.Error("unhandled server error", zap.Error(err))
}

func (l zapLogger) LogImplicitFlushError(err error) {
	l.Logger.Error("error while flushing implicitly", zap.Error(err))
}

func (l zapLogger) LogScriptError(requestID string, err error) {
	l.Logger.Error("script error", zap.String("request_id", requestID), zap.Error(err))
}

func (l zapLogger) LogControlDecision(requestID, op string, state *bscript.ControlState) {
	if ce := l.Logger.Check(zapcore.DebugLevel, "control decision"); ce != nil {
		uri, args, _ := state.Exec()
		ce.Write(
			zap.String("request_id", requestID),
			zap.String("op", op),
			zap.Bool("exited", state.Exited()),
			zap.Int("exit_code", int(state.ExitCode())),
			zap.String("exec_uri", uri),
			zap.String("exec_args", args),
		)
	}
}

func newZapScriptLogger(l *zap.Logger) bscript.Logger {
	return zapLogger{l.Named("bscript")}
}
