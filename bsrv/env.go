package bsrv

import (
	"runtime"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap/zapcore"
)

// Script source kinds for BS_SCRIPT_SOURCE.
const (
	SourceDir  = "dir"
	SourceS3   = "s3"
	SourceHTTP = "http"
)

// Environment is the configuration of the server, read from the process environment.
type Environment struct {
	Port               int           `env:"BS_PORT" envDefault:"8080"`
	ServiceName        string        `env:"BS_SERVICE_NAME" envDefault:"bscript"`
	ReadinessCheckPath string        `env:"BS_READINESS_CHECK_PATH" envDefault:"/health"`
	LogLevel           zapcore.Level `env:"BS_LOG_LEVEL" envDefault:"info"`
	OtelExporter       string        `env:"BS_OTEL_EXPORTER" envDefault:"stdout"`

	// ScriptSource selects where routes.json and the scripts it names are read from.
	ScriptSource string `env:"BS_SCRIPT_SOURCE" envDefault:"dir"`
	ScriptDir    string `env:"BS_SCRIPT_DIR" envDefault:"scripts"`
	ScriptBucket string `env:"BS_SCRIPT_BUCKET"`
	ScriptPrefix string `env:"BS_SCRIPT_PREFIX"`
	ScriptURL    string `env:"BS_SCRIPT_URL"`

	// Workers is the number of executors running scripts, zero for one per CPU.
	Workers              int  `env:"BS_WORKERS"`
	BufferLimit          int  `env:"BS_BUFFER_LIMIT" envDefault:"-1"`
	ArenaLimit           int  `env:"BS_ARENA_LIMIT" envDefault:"65536"`
	MaxInternalRedirects int  `env:"BS_MAX_INTERNAL_REDIRECTS" envDefault:"10"`
	H2C                  bool `env:"BS_H2C"`

	AWSRegion string `env:"AWS_REGION"`
}

// ParseEnv parses and validates the environment.
func ParseEnv() (Environment, error) {
	var e Environment
	if err := env.Parse(&e); err != nil {
		return e, errors.Wrap(err, "failed to parse environment")
	}

	if err := e.validate(); err != nil {
		return e, err
	}

	return e, nil
}

func (e Environment) validate() error {
	switch e.ScriptSource {
	case SourceDir:
		if e.ScriptDir == "" {
			return errors.New("BS_SCRIPT_DIR is required for the dir script source")
		}
	case SourceS3:
		if e.ScriptBucket == "" {
			return errors.New("BS_SCRIPT_BUCKET is required for the s3 script source")
		}
	case SourceHTTP:
		if e.ScriptURL == "" {
			return errors.New("BS_SCRIPT_URL is required for the http script source")
		}
	default:
		return errors.Newf("unsupported BS_SCRIPT_SOURCE: %q (supported: dir, s3, http)", e.ScriptSource)
	}

	return nil
}

func (e Environment) workers() int {
	if e.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return e.Workers
}
