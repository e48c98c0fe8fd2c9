package main

import (
	stderrors "errors"
	"os"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/wippyai/wasm-runner/errors"
	"github.com/wippyai/wasm-runner/wasi/preview1"
)

// configEnv names a config file used when --config is not given.
const configEnv = "WASM_RUNNER_CONFIG"

const defaultLogLevel = "warn"

var validate = newValidator()

// newValidator reports fields by their yaml names.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		return name
	})
	return v
}

// fileConfig holds run defaults. Flags override every field.
type fileConfig struct {
	Env              map[string]string `yaml:"env"`
	LogLevel         string            `yaml:"log_level" validate:"omitempty,oneof=debug info warn error"`
	Dirs             []string          `yaml:"dirs" validate:"dive,required"`
	Args             []string          `yaml:"args"`
	MemoryLimitPages uint32            `yaml:"memory_limit_pages" validate:"lte=65536"`
	Trace            bool              `yaml:"trace"`
}

// loadConfig reads path, or the file named by WASM_RUNNER_CONFIG when path
// is empty. With neither, it returns an empty config.
func loadConfig(path string) (*fileConfig, error) {
	if path == "" {
		path = os.Getenv(configEnv)
	}
	cfg := &fileConfig{}
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInputNotFound, err, "read config "+path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "parse config "+path)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, validationError(path, err)
	}
	return cfg, nil
}

// validationError names the first offending field and its value.
func validationError(path string, err error) *errors.Error {
	b := errors.New(errors.PhaseConfig, errors.KindInvalidInput).
		Cause(err).
		Detail("validate config %s", path)
	var fields validator.ValidationErrors
	if stderrors.As(err, &fields) && len(fields) > 0 {
		fe := fields[0]
		b.Path(fe.Field()).
			Value(fe.Value()).
			Detail("config %s: %s fails %q", path, fe.Field(), fe.Tag())
	}
	return b.Build()
}

// checkLogLevel validates a level given on the command line.
func checkLogLevel(level string) error {
	if err := validate.Var(level, "required,oneof=debug info warn error"); err != nil {
		return errors.Wrap(errors.PhaseConfig, errors.KindInvalidInput, err, "log level "+level)
	}
	return nil
}

// parseEnv splits KEY=VALUE.
func parseEnv(kv string) (string, string, error) {
	key, value, ok := strings.Cut(kv, "=")
	if !ok || key == "" {
		return "", "", errors.InvalidInput(errors.PhaseConfig, "environment entry "+kv+" is not KEY=VALUE")
	}
	return key, value, nil
}

// parseDir splits host[:guest]. Without a guest path the host path is
// used for both.
func parseDir(mapping string) (preview1.Preopen, error) {
	host, guest, ok := strings.Cut(mapping, ":")
	if host == "" {
		return preview1.Preopen{}, errors.InvalidInput(errors.PhaseConfig, "directory "+mapping+" has no host path")
	}
	if !ok || guest == "" {
		guest = host
	}
	return preview1.Preopen{Host: host, Guest: guest}, nil
}
